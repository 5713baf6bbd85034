package models

import "time"

// Message roles inside a playground conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged entry in a session conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PlaygroundSession defines the model for the 'playground_sessions' table.
// The conversation is stored as a JSON column and always alternates
// user/assistant pairs; credits_spent only ever grows.
type PlaygroundSession struct {
	ID           string    `json:"id" db:"id"`
	UserID       int64     `json:"userId" db:"user_id"`
	PackageID    int64     `json:"packageId" db:"package_id"`
	Conversation []Message `json:"conversation" db:"conversation"`
	CreditsSpent int       `json:"creditsSpent" db:"credits_spent"`
	RunCount     int       `json:"runCount" db:"run_count"`
	LastRunAt    time.Time `json:"lastRunAt" db:"last_run_at"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
