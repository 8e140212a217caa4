package internal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testDimension = 4

func newTestStore(t *testing.T) *VectorStore {
	t.Helper()
	journal := newTestJournal(t)
	index, err := NewAnnoyIndex(t.TempDir(), testDimension)
	if err != nil {
		t.Fatalf("NewAnnoyIndex: %v", err)
	}
	return NewVectorStore(journal, index)
}

func addEntry(t *testing.T, store *VectorStore, text string, vec []float32) *MemoryEntry {
	t.Helper()
	entry := NewMemoryEntry(text, RoleUser)
	entry.Embedding = vec
	if err := store.Add(context.Background(), entry); err != nil {
		t.Fatalf("Add %q: %v", text, err)
	}
	time.Sleep(2 * time.Millisecond)
	return entry
}

func TestStoreSearchOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	near := addEntry(t, store, "near", []float32{1, 0, 0, 0})
	addEntry(t, store, "far", []float32{0, 1, 0, 0})
	addEntry(t, store, "opposite", []float32{-1, 0, 0, 0})

	results, err := store.Search(ctx, []float32{0.9, 0.1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len = %d", len(results))
	}
	if results[0].Entry.ID != near.ID {
		t.Errorf("nearest = %q", results[0].Entry.Text)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("results not in ascending distance order")
		}
	}
}

func TestStoreSearchBetweenAdds(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := addEntry(t, store, "first", []float32{1, 0, 0, 0})
	results, err := store.Search(ctx, []float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Entry.ID != first.ID {
		t.Fatalf("results = %v", results)
	}

	second := addEntry(t, store, "second", []float32{0, 1, 0, 0})
	results, err = store.Search(ctx, []float32{0, 1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search after Add: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len = %d, want 2", len(results))
	}
	if results[0].Entry.ID != second.ID {
		t.Errorf("nearest = %q, want second", results[0].Entry.Text)
	}
}

func TestStoreAddWithoutEmbeddingJournalOnly(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	entry := NewMemoryEntry("stored while backend was down", RoleUser)
	if err := store.Add(ctx, entry); err != nil {
		t.Fatalf("Add: %v", err)
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("journal entries = %d, want 1", len(entries))
	}

	// Nothing was indexed, so a search has no candidates.
	results, err := store.Search(ctx, []float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}

func TestStoreRescore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	entry := addEntry(t, store, "my birthday is soon", []float32{1, 0, 0, 0})

	if err := store.Rescore(ctx, entry.ID, 0.9, []string{TagPersonalFact}); err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	got, err := store.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Importance != 0.9 || !got.HasTag(TagPersonalFact) {
		t.Errorf("got %+v", got)
	}
}

func TestStoreBackfillNotePath(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	entry := addEntry(t, store, "hello", []float32{1, 0, 0, 0})

	if err := store.BackfillNotePath(ctx, entry.ID, "Conversations/Chat.md"); err != nil {
		t.Fatalf("BackfillNotePath: %v", err)
	}
	matched, err := store.EntriesForNote(ctx, "Conversations/Chat.md")
	if err != nil {
		t.Fatalf("EntriesForNote: %v", err)
	}
	if len(matched) != 1 || matched[0].ID != entry.ID {
		t.Errorf("matched = %v", matched)
	}
}

func TestStoreRecent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	addEntry(t, store, "oldest", []float32{1, 0, 0, 0})
	addEntry(t, store, "middle", []float32{0, 1, 0, 0})
	newest := addEntry(t, store, "newest", []float32{0, 0, 1, 0})

	recent, err := store.Recent(ctx, 2, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len = %d", len(recent))
	}
	if recent[0].ID != newest.ID {
		t.Errorf("newest first expected, got %q", recent[0].Text)
	}

	none, err := store.Recent(ctx, 10, time.Nanosecond)
	if err != nil {
		t.Fatalf("Recent with window: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no entries inside a nanosecond window, got %d", len(none))
	}
}

func TestStoreReplaceNoteEntries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	old := NewMemoryEntry("old chunk", RoleSystem)
	old.NotePath = "Garden.md"
	old.ChunkID = "chunk-old"
	old.Embedding = []float32{1, 0, 0, 0}
	if err := store.Add(ctx, old); err != nil {
		t.Fatalf("Add: %v", err)
	}

	conversational := addEntry(t, store, "keep me", []float32{0, 1, 0, 0})
	if err := store.BackfillNotePath(ctx, conversational.ID, "Garden.md"); err != nil {
		t.Fatalf("BackfillNotePath: %v", err)
	}

	fresh := NewMemoryEntry("new chunk", RoleSystem)
	fresh.NotePath = "Garden.md"
	fresh.ChunkID = "chunk-new"
	fresh.Embedding = []float32{0, 0, 1, 0}
	if err := store.ReplaceNoteEntries(ctx, "Garden.md", []*MemoryEntry{fresh}); err != nil {
		t.Fatalf("ReplaceNoteEntries: %v", err)
	}

	if _, err := store.Get(ctx, old.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old chunk still present: %v", err)
	}
	if _, err := store.Get(ctx, fresh.ID); err != nil {
		t.Errorf("fresh chunk missing: %v", err)
	}
	// Conversational entries tied to the note survive re-chunking.
	if _, err := store.Get(ctx, conversational.ID); err != nil {
		t.Errorf("conversational entry lost: %v", err)
	}
}

func TestStoreRebuildIndexMatchesSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	near := addEntry(t, store, "near", []float32{1, 0, 0, 0})
	addEntry(t, store, "far", []float32{0, 0, 0, 1})

	before, err := store.Search(ctx, []float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search before: %v", err)
	}

	if err := store.RebuildIndex(ctx); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}

	after, err := store.Search(ctx, []float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search after: %v", err)
	}
	if len(before) != len(after) {
		t.Fatalf("result counts differ: %d vs %d", len(before), len(after))
	}
	if after[0].Entry.ID != near.ID {
		t.Errorf("nearest after rebuild = %q", after[0].Entry.Text)
	}
}

func TestStoreLoadRecoversFromCorruptIndex(t *testing.T) {
	ctx := context.Background()
	journal := newTestJournal(t)
	vectorDir := t.TempDir()
	index, err := NewAnnoyIndex(vectorDir, testDimension)
	if err != nil {
		t.Fatalf("NewAnnoyIndex: %v", err)
	}
	store := NewVectorStore(journal, index)

	entry := addEntry(t, store, "survives corruption", []float32{1, 0, 0, 0})
	if err := store.Persist(ctx); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	// Truncate the mapping so Load sees a corrupt index.
	if err := os.WriteFile(filepath.Join(vectorDir, MappingFilename), []byte("{"), 0644); err != nil {
		t.Fatalf("corrupt mapping: %v", err)
	}

	fresh, err := NewAnnoyIndex(vectorDir, testDimension)
	if err != nil {
		t.Fatalf("NewAnnoyIndex: %v", err)
	}
	recovered := NewVectorStore(journal, fresh)
	if err := recovered.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	results, err := recovered.Search(ctx, []float32{1, 0, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Entry.ID != entry.ID {
		t.Errorf("results = %v", results)
	}
}
