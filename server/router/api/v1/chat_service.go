package v1

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kazuhrw/schedsense/ai/agent"
	"github.com/kazuhrw/schedsense/ai/agent/dateparse"
	"github.com/kazuhrw/schedsense/ai/llm"
	"github.com/kazuhrw/schedsense/store"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

type ChatResponse struct {
	Reply          string             `json:"reply"`
	ShouldRefresh  bool               `json:"should_refresh"`
	ModifiedIDs    []string           `json:"modified_ids"`
	ExecutionTrace []agent.TraceRound `json:"execution_trace"`
}

type ChatHistoryEntry struct {
	Role           string             `json:"role"`
	Content        string             `json:"content"`
	Timestamp      int64              `json:"timestamp"`
	ExecutionTrace []agent.TraceRound `json:"execution_trace"`
}

// Chat runs one orchestration run for the posted conversation.
// The last message must be from the user.
func (s *APIV1Service) Chat(c echo.Context) error {
	if s.Orchestrator == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "LLM が設定されていません")
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Messages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "messages is empty")
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" || strings.TrimSpace(last.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "last message must be a non-empty user message")
	}

	ctx := c.Request().Context()
	today := time.Now().Format(dateparse.DateLayout)

	history := make([]llm.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := m.Role
		if role != "user" && role != "assistant" && role != "system" {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown message role: "+m.Role)
		}
		history = append(history, llm.Message{Role: role, Content: m.Content})
	}

	if _, err := s.Store.CreateChatMessage(ctx, &store.ChatHistory{
		Role:    store.ChatRoleUser,
		Content: last.Content,
	}); err != nil {
		slog.Error("chat: failed to persist user message", "error", err)
	}

	result := s.Orchestrator.Run(ctx, history, today)

	if _, err := s.Store.CreateChatMessage(ctx, &store.ChatHistory{
		Role:    store.ChatRoleAssistant,
		Content: agent.AttachExecutionTrace(result.Reply, result.Trace),
	}); err != nil {
		slog.Error("chat: failed to persist assistant message", "error", err)
	}

	return c.JSON(http.StatusOK, &ChatResponse{
		Reply:          result.Reply,
		ShouldRefresh:  result.ShouldRefresh,
		ModifiedIDs:    result.ModifiedIDs,
		ExecutionTrace: result.Trace,
	})
}

// ChatHistory returns the stored transcript, oldest first, with execution
// traces extracted from assistant turns.
func (s *APIV1Service) ChatHistory(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	messages, err := s.Store.ListChatMessages(c.Request().Context(), &store.FindChatHistory{Limit: &limit})
	if err != nil {
		slog.Error("chat: failed to list history", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list chat history")
	}

	entries := make([]*ChatHistoryEntry, 0, len(messages))
	for _, message := range messages {
		content, trace := agent.ExtractExecutionTrace(message.Content)
		entries = append(entries, &ChatHistoryEntry{
			Role:           string(message.Role),
			Content:        content,
			Timestamp:      message.CreatedTs,
			ExecutionTrace: trace,
		})
	}
	return c.JSON(http.StatusOK, entries)
}
