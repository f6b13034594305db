package agent

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"
)

// TraceRound is one orchestration round as persisted in the execution trace.
type TraceRound struct {
	Round   int            `json:"round"`
	Actions []Action       `json:"actions"`
	Results []string       `json:"results"`
	Errors  []string       `json:"errors"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Assistant chat turns carry their execution trace as a base64 JSON marker
// appended to the content. The marker must sit at the very end of the string.
var traceMarkerRe = regexp.MustCompile(`\n?\[\[EXEC_TRACE_B64:([A-Za-z0-9+/=]+)\]\]$`)

// AttachExecutionTrace appends the trace marker to an assistant reply.
// An empty trace leaves the content untouched.
func AttachExecutionTrace(content string, trace []TraceRound) string {
	if len(trace) == 0 {
		return content
	}
	raw, err := json.Marshal(trace)
	if err != nil {
		return content
	}
	return content + "\n[[EXEC_TRACE_B64:" + base64.StdEncoding.EncodeToString(raw) + "]]"
}

// ExtractExecutionTrace strips the trace marker and decodes it.
// Any decode failure returns the original content with an empty trace.
func ExtractExecutionTrace(content string) (string, []TraceRound) {
	m := traceMarkerRe.FindStringSubmatch(content)
	if m == nil {
		return content, nil
	}
	raw, err := base64.StdEncoding.DecodeString(m[1])
	if err != nil {
		return content, nil
	}
	var trace []TraceRound
	if err := json.Unmarshal(raw, &trace); err != nil {
		return content, nil
	}
	clean := strings.TrimSuffix(content, m[0])
	return clean, trace
}
