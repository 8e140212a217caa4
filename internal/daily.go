package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SectionKind is the fixed vocabulary for appended daily-note sections.
type SectionKind string

const (
	SectionRetrieved  SectionKind = "retrieved"
	SectionGenerated  SectionKind = "generated"
	SectionPrompt     SectionKind = "prompt"
	SectionReflection SectionKind = "reflection"
)

func (k SectionKind) valid() bool {
	switch k {
	case SectionRetrieved, SectionGenerated, SectionPrompt, SectionReflection:
		return true
	}
	return false
}

func (k SectionKind) heading() string {
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

const DailyNotesDir = "Daily"

// DailyNotes maintains the one-note-per-day convention: ensure today's
// note exists and append delimited, collapsible sections keyed by a
// stable id so re-appending the same logical event is a no-op.
type DailyNotes struct {
	vault Vault
}

func NewDailyNotes(vault Vault) *DailyNotes {
	return &DailyNotes{vault: vault}
}

func DailyNotePath(date time.Time) string {
	return fmt.Sprintf("%s/%s.md", DailyNotesDir, date.Format("2006-01-02"))
}

// Ensure creates the day's note if absent. Idempotent: an existing note
// is left untouched.
func (d *DailyNotes) Ensure(ctx context.Context, date time.Time) (string, error) {
	path := DailyNotePath(date)

	if _, err := d.vault.GetNote(ctx, path); err == nil {
		return path, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("probe daily note: %w", err)
	}

	content := fmt.Sprintf("# Daily Note: %s\n\nCreated: %s\n\n## Conversations\n\n",
		date.Format("2006-01-02"), date.Format("15:04:05"))
	if err := d.vault.CreateNote(ctx, path, content); err != nil {
		return "", fmt.Errorf("create daily note: %w", err)
	}
	return path, nil
}

func sectionMarker(kind SectionKind, id string) string {
	return fmt.Sprintf("%%%%mnemo:%s:%s%%%%", kind, id)
}

// AppendSection appends a collapsible callout section tagged with kind
// and keyed by id. Appending the same id twice leaves the note's
// section count unchanged.
func (d *DailyNotes) AppendSection(ctx context.Context, date time.Time, kind SectionKind, id, body string) error {
	if !kind.valid() {
		return fmt.Errorf("unknown section kind %q", kind)
	}

	path, err := d.Ensure(ctx, date)
	if err != nil {
		return err
	}

	note, err := d.vault.GetNote(ctx, path)
	if err != nil {
		return fmt.Errorf("read daily note: %w", err)
	}

	marker := sectionMarker(kind, id)
	if strings.Contains(note.Content, marker) {
		return nil
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(note.Content, "\n"))
	b.WriteString("\n\n")
	b.WriteString(marker)
	b.WriteString("\n")
	fmt.Fprintf(&b, "> [!note]- %s (%s)\n", kind.heading(), time.Now().Format("15:04"))
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		b.WriteString("> ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	if err := d.vault.UpdateNote(ctx, path, b.String()); err != nil {
		return fmt.Errorf("append daily section: %w", err)
	}
	return nil
}

// SectionCount reports how many delimited sections of a kind the day's
// note carries.
func (d *DailyNotes) SectionCount(ctx context.Context, date time.Time, kind SectionKind) (int, error) {
	note, err := d.vault.GetNote(ctx, DailyNotePath(date))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strings.Count(note.Content, fmt.Sprintf("%%%%mnemo:%s:", kind)), nil
}

// LinkSession records a link to a conversation note under the
// Conversations heading, once per session note.
func (d *DailyNotes) LinkSession(ctx context.Context, date time.Time, notePath, title string) error {
	path, err := d.Ensure(ctx, date)
	if err != nil {
		return err
	}

	note, err := d.vault.GetNote(ctx, path)
	if err != nil {
		return fmt.Errorf("read daily note: %w", err)
	}

	link := fmt.Sprintf("[[%s|%s]]", strings.TrimSuffix(notePath, ".md"), title)
	if strings.Contains(note.Content, link) {
		return nil
	}

	line := fmt.Sprintf("- %s: %s\n", time.Now().Format("15:04"), link)
	content := note.Content
	if idx := strings.Index(content, "## Conversations\n"); idx >= 0 {
		insert := idx + len("## Conversations\n")
		content = content[:insert] + "\n" + line + content[insert:]
	} else {
		content = strings.TrimRight(content, "\n") + "\n\n## Conversations\n\n" + line
	}

	if err := d.vault.UpdateNote(ctx, path, content); err != nil {
		return fmt.Errorf("link session in daily note: %w", err)
	}
	return nil
}
