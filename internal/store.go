package internal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Scored pairs an entry with its index distance (ascending is closer).
type Scored struct {
	Entry    *MemoryEntry
	Distance float32
}

// VectorStore owns MemoryEntries. Raw entries live in the journal (the
// source of truth); the Annoy index is a derived cache rebuilt from it
// on corruption. All mutation happens under a single write lock so
// watcher-triggered and user-triggered writes never interleave.
type VectorStore struct {
	mu      sync.RWMutex
	journal *EntryJournal
	index   *AnnoyIndex
}

func NewVectorStore(journal *EntryJournal, index *AnnoyIndex) *VectorStore {
	return &VectorStore{journal: journal, index: index}
}

func (s *VectorStore) Journal() *EntryJournal { return s.journal }

// Load restores the derived index, falling back to a full rebuild from
// the journal when the index file is missing or corrupt.
func (s *VectorStore) Load(ctx context.Context) error {
	err := s.index.Load(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrIndexCorrupt) {
		return err
	}
	return s.RebuildIndex(ctx)
}

// Add persists a new entry and indexes its embedding. Entries without
// an embedding (stored while the backend was down) are journaled only;
// they surface through keyword ranking until a rebuild re-embeds them.
func (s *VectorStore) Add(ctx context.Context, entry *MemoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.journal.Append(ctx, entry); err != nil {
		return fmt.Errorf("journal entry: %w", err)
	}
	if len(entry.Embedding) > 0 {
		if err := s.index.Add(ctx, entry.ID, entry.Embedding); err != nil {
			return fmt.Errorf("index entry: %w", err)
		}
	}
	return nil
}

// Rescore updates an entry's importance in place.
func (s *VectorStore) Rescore(ctx context.Context, id string, score float64, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.journal.Get(ctx, id)
	if err != nil {
		return err
	}
	entry.Importance = score
	entry.Tags = tags
	return s.journal.Update(ctx, entry)
}

// BackfillNotePath records which vault note an entry was persisted to.
func (s *VectorStore) BackfillNotePath(ctx context.Context, id, notePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.journal.Get(ctx, id)
	if err != nil {
		return err
	}
	entry.NotePath = notePath
	return s.journal.Update(ctx, entry)
}

func (s *VectorStore) Get(ctx context.Context, id string) (*MemoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.journal.Get(ctx, id)
}

// List returns all entries, oldest first.
func (s *VectorStore) List(ctx context.Context) ([]*MemoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.journal.List(ctx)
}

// Recent returns up to n entries created within the window, newest
// first. A zero window means no age cutoff.
func (s *VectorStore) Recent(ctx context.Context, n int, window time.Duration) ([]*MemoryEntry, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Time{}
	if window > 0 {
		cutoff = time.Now().Add(-window)
	}

	var recent []*MemoryEntry
	for i := len(entries) - 1; i >= 0 && len(recent) < n; i-- {
		if entries[i].CreatedAt.Before(cutoff) {
			break
		}
		recent = append(recent, entries[i])
	}
	return recent, nil
}

// Search returns at most k entries ordered by ascending distance, ties
// broken by more recent creation time.
func (s *VectorStore) Search(ctx context.Context, query []float32, k int) ([]Scored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, err := s.index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	results := make([]Scored, 0, len(hits))
	for _, hit := range hits {
		entry, err := s.journal.Get(ctx, hit.EntryID)
		if err != nil {
			continue // entry deleted since last rebuild
		}
		results = append(results, Scored{Entry: entry, Distance: hit.Distance})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Entry.CreatedAt.After(results[j].Entry.CreatedAt)
	})

	return results, nil
}

// EntriesForNote returns entries sourced from a vault note path.
func (s *VectorStore) EntriesForNote(ctx context.Context, notePath string) ([]*MemoryEntry, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*MemoryEntry
	for _, entry := range entries {
		if entry.NotePath == notePath {
			matched = append(matched, entry)
		}
	}
	return matched, nil
}

// ReplaceNoteEntries swaps all entries derived from one note for fresh
// chunks, under a single write lock. Used by the watcher to reconcile
// an externally edited note without touching the rest of the corpus.
func (s *VectorStore) ReplaceNoteEntries(ctx context.Context, notePath string, replacements []*MemoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.journal.List(ctx)
	if err != nil {
		return err
	}
	for _, entry := range old {
		if entry.NotePath != notePath || entry.ChunkID == "" {
			continue
		}
		if err := s.journal.Delete(ctx, entry.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		s.index.Remove(ctx, entry.ID)
	}

	for _, entry := range replacements {
		if err := s.journal.Append(ctx, entry); err != nil {
			return fmt.Errorf("journal replacement: %w", err)
		}
		if len(entry.Embedding) > 0 {
			if err := s.index.Add(ctx, entry.ID, entry.Embedding); err != nil {
				return fmt.Errorf("index replacement: %w", err)
			}
		}
	}
	return nil
}

// RebuildIndex reconstructs the derived index from the journal. This is
// the recovery path for ErrIndexCorrupt, not an optimization.
func (s *VectorStore) RebuildIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.journal.List(ctx)
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}

	s.index.Reset()
	for _, entry := range entries {
		if len(entry.Embedding) == 0 {
			continue
		}
		if err := s.index.Add(ctx, entry.ID, entry.Embedding); err != nil {
			return fmt.Errorf("reindex %s: %w", entry.ID, err)
		}
	}
	return nil
}

// Persist flushes the derived index to disk. A no-op when nothing
// changed since the last load or save.
func (s *VectorStore) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Save(ctx)
}
