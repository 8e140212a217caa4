package internal

import "context"

// Provider is the language-model backend boundary. Synchronous; may
// fail with ErrBackendUnavailable, which callers of optional features
// (naming, insights) swallow and log.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GenerateObject(ctx context.Context, prompt string, target any) error
}

// Structured outputs requested from the provider.

type SessionTitle struct {
	Title string `json:"title"`
}

type InsightDraft struct {
	Suggestion string   `json:"suggestion"`
	Topics     []string `json:"topics"`
}
