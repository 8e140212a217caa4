package internal

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
)

// NoteInfo identifies a vault note without its content.
type NoteInfo struct {
	Path     string    `json:"path"`
	Modified time.Time `json:"modified,omitempty"`
}

// VaultNote is one note as read from the vault. Content ownership is
// shared with the external application; externally modified content is
// authoritative and must be reconciled, never blindly overwritten.
type VaultNote struct {
	Path     string
	Content  string
	Tags     []string
	Daily    bool
	Modified time.Time
}

// SearchMatch is one result of a vault content search.
type SearchMatch struct {
	Path    string `json:"path"`
	Snippet string `json:"snippet"`
}

// Vault is the uniform note contract. Both transports must produce
// identical logical results for GetNote and SearchNotes given the same
// vault state; only the transport differs. Writes are all-or-nothing.
type Vault interface {
	ListNotes(ctx context.Context) ([]NoteInfo, error)
	GetNote(ctx context.Context, path string) (*VaultNote, error)
	CreateNote(ctx context.Context, path, content string) error
	UpdateNote(ctx context.Context, path, content string) error
	SearchNotes(ctx context.Context, query string) ([]SearchMatch, error)
}

// OpenVault probes the API transport once and falls back to the
// filesystem transport when the endpoint is unreachable. Both nil means
// the vault is unavailable; memory operations continue locally and sync
// is retried on the next write.
func OpenVault(ctx context.Context, cfg VaultConfig) (Vault, error) {
	if cfg.APIBaseURL != "" {
		api := NewAPIVault(cfg.APIBaseURL, cfg.APIToken, cfg.APITimeout)
		if api.Probe(ctx) {
			return api, nil
		}
		log.Warn("vault API unreachable, falling back to filesystem transport", "url", cfg.APIBaseURL)
	}

	if cfg.Path != "" {
		return NewFSVault(cfg.Path)
	}

	return nil, ErrVaultUnavailable
}

// parseNote extracts tags and the daily flag from raw markdown. Notes
// that are not valid UTF-8 are treated as malformed and skipped by
// callers with a logged warning.
func parseNote(path, content string, modified time.Time) (*VaultNote, error) {
	if !utf8.ValidString(content) {
		return nil, ErrMalformedNote
	}

	note := &VaultNote{
		Path:     path,
		Content:  content,
		Modified: modified,
		Daily:    isDailyNotePath(path),
	}

	for _, line := range strings.Split(content, "\n") {
		for _, field := range strings.Fields(line) {
			if len(field) > 1 && field[0] == '#' && field[1] != '#' {
				note.Tags = append(note.Tags, strings.TrimPrefix(field, "#"))
			}
		}
	}
	return note, nil
}

func isDailyNotePath(path string) bool {
	base := path[strings.LastIndex(path, "/")+1:]
	base = strings.TrimSuffix(base, ".md")
	if len(base) != 10 {
		return false
	}
	_, err := time.Parse("2006-01-02", base)
	return err == nil
}

// NoteTitle derives the concept name for a note: its first heading if
// present, else the filename without extension.
func NoteTitle(note *VaultNote) string {
	for _, line := range strings.Split(note.Content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	base := note.Path[strings.LastIndex(note.Path, "/")+1:]
	return strings.TrimSuffix(base, ".md")
}
