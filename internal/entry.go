package internal

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ErrNotFound           = errors.New("memory entry not found")
	ErrBackendUnavailable = errors.New("embedding or language-model backend unavailable")
	ErrVaultUnavailable   = errors.New("vault unreachable on any transport")
	ErrIndexCorrupt       = errors.New("vector index missing or corrupt")
	ErrMalformedNote      = errors.New("malformed vault note")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Importance tags produced by the extractor.
const (
	TagPersonalFact   = "personal-fact"
	TagPreference     = "preference"
	TagDateBound      = "date-bound"
	TagEmphasis       = "emphasis"
	TagRecurringTopic = "recurring-topic"
	TagNegativeAffect = "negative-affect"
)

// MemoryEntry is one remembered utterance. Immutable once created except
// for importance re-scoring and vault-path backfill, both done by the
// VectorStore under its write lock.
type MemoryEntry struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Importance float64   `json:"importance"`
	Tags       []string  `json:"tags,omitempty"`
	NotePath   string    `json:"note_path,omitempty"`
	ChunkID    string    `json:"chunk_id,omitempty"`
}

func NewMemoryEntry(text string, role Role) *MemoryEntry {
	now := time.Now().UTC()
	return &MemoryEntry{
		ID:        newEntryID(now),
		Text:      text,
		Role:      role,
		CreatedAt: now,
	}
}

func newEntryID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

func (e *MemoryEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// DocumentChunk is a bounded span of a source document, produced by the
// Chunker for embedding. Regenerated whenever the source is re-chunked.
type DocumentChunk struct {
	ID       string
	SourceID string
	Text     string
	Start    int
	End      int
}
