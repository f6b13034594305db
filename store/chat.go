package store

// ChatRole is the author of a chat history entry.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// ChatHistory is one entry of the append-only conversation transcript.
// Assistant entries may carry an execution-trace marker embedded at the
// end of Content; readers strip it with agent.ExtractExecutionTrace.
type ChatHistory struct {
	Role      ChatRole
	Content   string
	ID        int32
	CreatedTs int64
}

type FindChatHistory struct {
	Limit *int // newest-first limit; results are returned oldest-first
}
