package internal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Shadow keeps the last content this process saw for each vault note.
// Comparing it against the note on disk is how the watcher tells an
// external edit from an echo of its own write.
type Shadow struct {
	dir string
}

func NewShadow(dir string) *Shadow {
	return &Shadow{dir: dir}
}

func (s *Shadow) path(rel string) string {
	return filepath.Join(s.dir, filepath.FromSlash(rel))
}

func (s *Shadow) Read(rel string) (string, bool) {
	data, err := os.ReadFile(s.path(rel))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (s *Shadow) Write(rel, content string) error {
	p := s.path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(content), 0644)
}

func (s *Shadow) Remove(rel string) {
	_ = os.Remove(s.path(rel))
}

// VaultWatcher observes the vault directory for out-of-band edits. A
// burst of filesystem events for one edit settles into a single logical
// update after the debounce window; on settle the changed note is
// re-read, the ConceptIndex updated, and only that note's store entries
// re-chunked and re-embedded. External edits win for content: the
// system never rewrites what it finds, it only reconciles its caches.
type VaultWatcher struct {
	root     string
	vault    Vault
	concepts *ConceptIndex
	store    *VectorStore
	embedder Embedder
	chunker  *Chunker
	ignore   *VaultIgnore
	shadow   *Shadow
	debounce time.Duration

	fsw  *fsnotify.Watcher
	stop chan struct{}
	wg   sync.WaitGroup
}

type WatcherDeps struct {
	Vault    Vault
	Concepts *ConceptIndex
	Store    *VectorStore
	Embedder Embedder
	Chunker  *Chunker
	Ignore   *VaultIgnore
	Shadow   *Shadow
	Debounce time.Duration
}

func NewVaultWatcher(root string, deps WatcherDeps) *VaultWatcher {
	if deps.Debounce <= 0 {
		deps.Debounce = 500 * time.Millisecond
	}
	if deps.Chunker == nil {
		deps.Chunker = NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	}
	return &VaultWatcher{
		root:     root,
		vault:    deps.Vault,
		concepts: deps.Concepts,
		store:    deps.Store,
		embedder: deps.Embedder,
		chunker:  deps.Chunker,
		ignore:   deps.Ignore,
		shadow:   deps.Shadow,
		debounce: deps.Debounce,
	}
}

// Start begins watching. It returns after the watcher goroutine is
// running; Stop shuts it down and releases the filesystem handles.
func (w *VaultWatcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	w.stop = make(chan struct{})

	if err := w.addWatchDirs(); err != nil {
		fsw.Close()
		return err
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *VaultWatcher) Stop() {
	if w.fsw == nil {
		return
	}
	close(w.stop)
	w.fsw.Close()
	w.wg.Wait()
	w.fsw = nil
}

func (w *VaultWatcher) addWatchDirs() error {
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(w.root, path)
		if rerr != nil {
			return nil
		}
		if rel != "." {
			if strings.HasPrefix(filepath.Base(path), ".") {
				return filepath.SkipDir
			}
			if w.ignore != nil && w.ignore.MatchDir(filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
		}
		return w.fsw.Add(path)
	})
}

func (w *VaultWatcher) loop(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			rel, skip := w.classify(event)
			if skip {
				continue
			}
			pending[rel] = struct{}{}
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("vault watch error", "err", err)
		case <-timer.C:
			for rel := range pending {
				w.Reconcile(ctx, rel)
				delete(pending, rel)
			}
		}
	}
}

// classify maps a filesystem event to a vault-relative note path, or
// skip for anything the vault layer must not touch.
func (w *VaultWatcher) classify(event fsnotify.Event) (string, bool) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return "", true
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return "", true
	}
	rel = filepath.ToSlash(rel)

	if !strings.HasSuffix(rel, ".md") {
		// New directories need a watch of their own.
		if event.Op&fsnotify.Create != 0 {
			if info, serr := os.Stat(event.Name); serr == nil && info.IsDir() {
				_ = w.fsw.Add(event.Name)
			}
		}
		return "", true
	}
	if strings.HasPrefix(filepath.Base(rel), ".") {
		return "", true
	}
	if w.ignore != nil && w.ignore.Match(rel) {
		return "", true
	}
	return rel, false
}

// Reconcile brings the concept cache and memory store in line with one
// note after it settled. Exposed for bulk import and tests.
func (w *VaultWatcher) Reconcile(ctx context.Context, rel string) {
	note, err := w.vault.GetNote(ctx, rel)
	switch {
	case errors.Is(err, ErrNotFound):
		w.concepts.RemoveByPath(rel)
		w.shadow.Remove(rel)
		if rerr := w.store.ReplaceNoteEntries(ctx, rel, nil); rerr != nil {
			log.Warn("dropping entries for removed note failed", "path", rel, "err", rerr)
		}
		return
	case errors.Is(err, ErrMalformedNote):
		log.Warn("skipping malformed vault note", "path", rel)
		return
	case err != nil:
		log.Warn("re-reading changed note failed", "path", rel, "err", err)
		return
	}

	if previous, ok := w.shadow.Read(rel); ok {
		if previous == note.Content {
			return // echo of our own write, nothing external changed
		}
		dmp := diffmatchpatch.New()
		diffs := dmp.DiffMain(previous, note.Content, false)
		ins, del := diffStats(diffs)
		log.Info("external vault edit detected", "path", rel, "inserted", ins, "deleted", del)
	}

	w.concepts.RemoveByPath(rel)
	w.concepts.Upsert(NoteTitle(note), rel)

	if err := IndexNote(ctx, w.store, w.embedder, w.chunker, note); err != nil {
		log.Warn("re-indexing changed note failed", "path", rel, "err", err)
	}
	if err := w.shadow.Write(rel, note.Content); err != nil {
		log.Warn("updating shadow copy failed", "path", rel, "err", err)
	}
}

func diffStats(diffs []diffmatchpatch.Diff) (inserted, deleted int) {
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			inserted += len(d.Text)
		case diffmatchpatch.DiffDelete:
			deleted += len(d.Text)
		}
	}
	return inserted, deleted
}

// IndexNote re-chunks one note and swaps its derived store entries.
// Chunks that cannot be embedded (backend down) are journaled without a
// vector and surface through keyword ranking until the next rebuild.
func IndexNote(ctx context.Context, store *VectorStore, embedder Embedder, chunker *Chunker, note *VaultNote) error {
	chunks := chunker.Split(note.Path, note.Content)

	entries := make([]*MemoryEntry, 0, len(chunks))
	for _, chunk := range chunks {
		entry := NewMemoryEntry(chunk.Text, RoleSystem)
		entry.NotePath = note.Path
		entry.ChunkID = chunk.ID

		if embedder != nil {
			vec, err := embedder.Embed(ctx, chunk.Text)
			if err == nil {
				entry.Embedding = vec
			} else if !errors.Is(err, ErrBackendUnavailable) {
				return err
			}
		}
		entries = append(entries, entry)
	}

	return store.ReplaceNoteEntries(ctx, note.Path, entries)
}
