package internal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// ConversationsDir holds one note per chat session.
const ConversationsDir = "Conversations"

// NoteRenamer is implemented by transports that can move a note to a
// new path.
type NoteRenamer interface {
	RenameNote(ctx context.Context, oldPath, newPath string) error
}

// SessionNamer drives the per-session naming state machine:
// Untitled(timestamp) transitions to Named(title) exactly once, after
// two user turns exist. Named is terminal; later turns never rename.
type SessionNamer struct {
	provider Provider
	vault    Vault
}

func NewSessionNamer(provider Provider, vault Vault) *SessionNamer {
	return &SessionNamer{provider: provider, vault: vault}
}

// MaybeName fires the transition if its preconditions hold. Returns
// true when the session became Named. Failures are non-fatal to the
// chat path: they leave the session Untitled for a later attempt.
func (n *SessionNamer) MaybeName(ctx context.Context, session *Session) (bool, error) {
	if session.Named() || n.provider == nil {
		return false, nil
	}
	if session.UserTurns() < 2 {
		return false, nil
	}

	title, err := n.generateTitle(ctx, session)
	if err != nil {
		return false, fmt.Errorf("generate title: %w", err)
	}

	if n.vault != nil && session.NotePath != "" {
		newPath := fmt.Sprintf("%s/%s_%s.md",
			ConversationsDir, time.Now().Format("20060102"), sanitizeFilename(title))
		if newPath != session.NotePath {
			if err := renameNote(ctx, n.vault, session.NotePath, newPath); err != nil {
				log.Warn("renaming session note failed, keeping timestamp name", "err", err)
			} else {
				session.NotePath = newPath
			}
		}
	}

	session.SetTitle(title)
	return true, nil
}

func (n *SessionNamer) generateTitle(ctx context.Context, session *Session) (string, error) {
	var b strings.Builder
	b.WriteString("Generate a short, descriptive title (3-6 words) capturing the main topic of this conversation. ")
	b.WriteString("Return only the title.\n\n")
	for _, turn := range session.RecentUserTurns(3) {
		fmt.Fprintf(&b, "User: %s\n", turn)
	}

	var structured SessionTitle
	if err := n.provider.GenerateObject(ctx, b.String(), &structured); err == nil && structured.Title != "" {
		return cleanTitle(structured.Title), nil
	}

	raw, err := n.provider.Complete(ctx, b.String())
	if err != nil {
		return "", err
	}
	title := cleanTitle(raw)
	if title == "" {
		return "", fmt.Errorf("empty title from provider")
	}
	return title, nil
}

func cleanTitle(raw string) string {
	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"'`))
	if len(title) > 50 {
		title = strings.TrimSpace(title[:50])
	}
	return title
}

func sanitizeFilename(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			// dropped: invalid in note filenames
		case ' ':
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 50 {
		out = out[:50]
	}
	return strings.Trim(out, "-.")
}

// renameNote uses the transport's native rename when available; the
// API transport falls back to creating the new note and leaving a
// pointer at the old path.
func renameNote(ctx context.Context, vault Vault, oldPath, newPath string) error {
	if r, ok := vault.(NoteRenamer); ok {
		return r.RenameNote(ctx, oldPath, newPath)
	}

	note, err := vault.GetNote(ctx, oldPath)
	if err != nil {
		return err
	}
	if err := vault.CreateNote(ctx, newPath, note.Content); err != nil {
		return err
	}
	redirect := fmt.Sprintf("Moved to [[%s]]\n", strings.TrimSuffix(newPath, ".md"))
	return vault.UpdateNote(ctx, oldPath, redirect)
}
