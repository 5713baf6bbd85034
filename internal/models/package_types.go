package models

import "time"

// PromptPackage defines the model for the 'packages' table.
// A package is the unit published to the registry: a system prompt plus
// metadata the playground injects when running it against a model.
type PromptPackage struct {
	ID           int64     `json:"id" db:"id"`
	OwnerID      int64     `json:"ownerId" db:"owner_id"`
	Name         string    `json:"name" db:"name"`
	Slug         string    `json:"slug" db:"slug"`
	Description  string    `json:"description" db:"description"`
	SystemPrompt string    `json:"systemPrompt" db:"system_prompt"`
	DefaultModel string    `json:"defaultModel" db:"default_model"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
