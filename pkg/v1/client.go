package v1

import (
	"context"
	"fmt"

	"github.com/mnemo-ai/mnemo/internal"
)

// Client is the seam the surrounding chat/UI layer talks to: store a
// turn, retrieve ranked context, read the session title, fetch
// insights.
type Client struct {
	assistant *internal.Assistant
	session   *internal.Session
}

// New builds a client over a data directory and opens a session.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		dataDir: internal.DataDir(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	fileCfg, err := internal.LoadConfig(cfg.dataDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.vaultPath != "" {
		fileCfg.Vault.Path = cfg.vaultPath
	}

	assistant, err := internal.NewAssistantWith(ctx, cfg.dataDir, fileCfg)
	if err != nil {
		return nil, fmt.Errorf("build assistant: %w", err)
	}

	if cfg.watch {
		if err := assistant.StartWatcher(ctx); err != nil {
			return nil, fmt.Errorf("start watcher: %w", err)
		}
	}

	return &Client{
		assistant: assistant,
		session:   assistant.NewSession(ctx),
	}, nil
}

// StoreTurn remembers one utterance.
func (c *Client) StoreTurn(ctx context.Context, role Role, text string) (*Memory, error) {
	entry, err := c.assistant.StoreTurn(ctx, c.session, internal.Role(role), text)
	if err != nil {
		return nil, fmt.Errorf("store turn: %w", err)
	}
	return toMemory(entry), nil
}

// RetrieveContext returns a ranked context block for the query. Empty
// output means degraded or no matches, never an aborted turn.
func (c *Client) RetrieveContext(ctx context.Context, query string, k int) string {
	return c.assistant.RetrieveContext(ctx, c.session, query, k)
}

// SessionTitle is the current session's name; a timestamp placeholder
// until the namer fires.
func (c *Client) SessionTitle() string {
	return c.assistant.SessionTitle(c.session)
}

// Insights returns current advisory insights.
func (c *Client) Insights(ctx context.Context) []Insight {
	var out []Insight
	for _, in := range c.assistant.Insights(ctx) {
		out = append(out, Insight{Kind: in.Kind, Text: in.Text, Topics: in.Topics})
	}
	return out
}

// Welcome returns a contextual greeting for session start.
func (c *Client) Welcome(ctx context.Context) string {
	return c.assistant.Welcome(ctx)
}

// ImportNote indexes an existing vault note into memory.
func (c *Client) ImportNote(ctx context.Context, path string) error {
	return c.assistant.ImportNote(ctx, path)
}

// Close flushes the index and stops background workers.
func (c *Client) Close(ctx context.Context) error {
	return c.assistant.Close(ctx)
}

func toMemory(entry *internal.MemoryEntry) *Memory {
	return &Memory{
		ID:         entry.ID,
		Text:       entry.Text,
		Role:       Role(entry.Role),
		Importance: entry.Importance,
		Tags:       entry.Tags,
		NotePath:   entry.NotePath,
		CreatedAt:  entry.CreatedAt,
	}
}
