package v1

import "time"

// Role of a stored conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Memory is one stored entry as seen by API consumers.
type Memory struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Role       Role      `json:"role"`
	Importance float64   `json:"importance"`
	Tags       []string  `json:"tags,omitempty"`
	NotePath   string    `json:"note_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Insight is an advisory suggestion or reflection mined from memory.
type Insight struct {
	Kind   string   `json:"kind"`
	Text   string   `json:"text"`
	Topics []string `json:"topics,omitempty"`
}
