package chat

import "time"

// Role identifies who authored a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one append-only transcript turn.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Failed    bool      `json:"failed,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
