package internal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Assistant is the seam the chat/UI layer talks to: store a turn,
// retrieve ranked context, read the session title, fetch insights.
// Everything else happens behind it.
type Assistant struct {
	cfg     *Config
	dataDir string

	store     *VectorStore
	embedder  Embedder
	retriever *Retriever
	chunker   *Chunker

	vault    Vault
	vaultCfg VaultConfig
	concepts *ConceptIndex
	daily    *DailyNotes
	shadow   *Shadow
	namer    *SessionNamer
	insights *InsightGenerator
	watcher  *VaultWatcher

	provider Provider
}

// NewAssistant wires the engine from a data directory. The vault and
// the LLM provider are optional collaborators: without them, memory
// operations still work and enrichment features degrade quietly.
func NewAssistant(ctx context.Context, dataDir string) (*Assistant, error) {
	cfg, err := LoadConfig(dataDir)
	if err != nil {
		return nil, err
	}
	return NewAssistantWith(ctx, dataDir, cfg)
}

func NewAssistantWith(ctx context.Context, dataDir string, cfg *Config) (*Assistant, error) {
	if err := InitJournal(JournalPath(dataDir)); err != nil {
		return nil, err
	}
	journal, err := NewEntryJournal(JournalPath(dataDir))
	if err != nil {
		return nil, err
	}

	index, err := NewAnnoyIndex(VectorPath(dataDir), cfg.Embeddings.Dimension)
	if err != nil {
		return nil, err
	}

	store := NewVectorStore(journal, index)
	if err := store.Load(ctx); err != nil {
		return nil, fmt.Errorf("load vector store: %w", err)
	}

	embedder := NewHTTPEmbedder(cfg.Embeddings.BaseURL, cfg.Embeddings.Model,
		cfg.Embeddings.Dimension, cfg.Embeddings.Timeout)

	a := &Assistant{
		cfg:       cfg,
		dataDir:   dataDir,
		store:     store,
		embedder:  embedder,
		retriever: NewRetriever(store, embedder, cfg.Retrieval),
		chunker:   NewChunker(DefaultChunkSize, DefaultChunkOverlap),
		vaultCfg:  cfg.Vault,
		concepts:  NewConceptIndex(),
		shadow:    NewShadow(ShadowPath(dataDir)),
	}

	if name := cfg.DefaultProvider; name != "" {
		if pcfg, ok := cfg.Providers[name]; ok {
			provider, perr := NewFantasyProvider(ctx, name, pcfg)
			if perr != nil {
				log.Warn("language-model provider unavailable, naming and insights degrade", "provider", name, "err", perr)
			} else {
				a.provider = provider
			}
		}
	}

	a.connectVault(ctx)
	a.namer = NewSessionNamer(a.provider, a.vault)
	a.insights = NewInsightGenerator(store, a.provider)

	return a, nil
}

// UseVault swaps the vault transport. Mostly a test seam, but also how
// the CLI injects a probed transport.
func (a *Assistant) UseVault(vault Vault) {
	a.vault = vault
	a.daily = NewDailyNotes(vault)
	a.namer = NewSessionNamer(a.provider, vault)
}

// connectVault probes transports; on total failure the vault stays nil
// and sync is retried lazily on the next write.
func (a *Assistant) connectVault(ctx context.Context) {
	if a.vault != nil {
		return
	}
	vault, err := OpenVault(ctx, a.vaultCfg)
	if err != nil {
		if a.vaultCfg.Path != "" || a.vaultCfg.APIBaseURL != "" {
			log.Warn("vault unavailable, sync deferred", "err", err)
		}
		return
	}
	a.vault = vault
	a.daily = NewDailyNotes(vault)
	a.namer = NewSessionNamer(a.provider, vault)
	if err := a.concepts.Rebuild(ctx, vault); err != nil {
		log.Warn("building concept index failed", "err", err)
	}
}

// StartWatcher runs the background vault watcher until Close.
func (a *Assistant) StartWatcher(ctx context.Context) error {
	if a.vaultCfg.Path == "" {
		return fmt.Errorf("no vault path configured")
	}
	fsVault, err := NewFSVault(a.vaultCfg.Path)
	if err != nil {
		return err
	}

	a.watcher = NewVaultWatcher(a.vaultCfg.Path, WatcherDeps{
		Vault:    fsVault,
		Concepts: a.concepts,
		Store:    a.store,
		Embedder: a.embedder,
		Chunker:  a.chunker,
		Ignore:   fsVault.ignore,
		Shadow:   a.shadow,
	})
	return a.watcher.Start(ctx)
}

// NewSession opens a session, ensures today's daily note, and creates
// the session's conversation note. Vault failures defer sync; the
// session is still usable.
func (a *Assistant) NewSession(ctx context.Context) *Session {
	session := NewSession()
	a.connectVault(ctx)
	if a.vault == nil {
		return session
	}

	session.NotePath = session.DefaultNotePath()
	content := a.concepts.Linkify(session.Transcript())
	if err := a.vault.CreateNote(ctx, session.NotePath, content); err != nil {
		log.Warn("creating conversation note failed, sync deferred", "err", err)
		session.NotePath = ""
		return session
	}
	a.recordShadow(session.NotePath, content)

	if err := a.daily.LinkSession(ctx, time.Now(), session.NotePath, session.Title()); err != nil {
		log.Warn("linking session in daily note failed", "err", err)
	}
	return session
}

// StoreTurn chunks, embeds, scores, journals, and syncs one utterance.
// A turn over the chunk size is split into overlapping entries rather
// than silently truncated by the embedding backend. The store path is
// the only one that can fail the call; vault sync and naming are
// enrichment and only log.
func (a *Assistant) StoreTurn(ctx context.Context, session *Session, role Role, text string) (*MemoryEntry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty turn")
	}

	window := a.retriever.recentWindow(ctx)

	var first *MemoryEntry
	if len(text) <= a.chunker.MaxSize {
		entry := NewMemoryEntry(text, role)
		entry.Importance, entry.Tags = ScoreImportance(text, window)
		entry.NotePath = session.NotePath
		if err := a.embedInto(ctx, entry); err != nil {
			return nil, err
		}
		if err := a.store.Add(ctx, entry); err != nil {
			return nil, err
		}
		first = entry
	} else {
		turnID := newEntryID(time.Now().UTC())
		for _, chunk := range a.chunker.Split(turnID, text) {
			entry := NewMemoryEntry(chunk.Text, role)
			entry.Importance, entry.Tags = ScoreImportance(chunk.Text, window)
			entry.NotePath = session.NotePath
			entry.ChunkID = chunk.ID
			if err := a.embedInto(ctx, entry); err != nil {
				return nil, err
			}
			if err := a.store.Add(ctx, entry); err != nil {
				return nil, err
			}
			if first == nil {
				first = entry
			}
		}
	}
	session.AddTurn(role, text)

	a.syncSessionNote(ctx, session)
	a.maybeName(ctx, session)
	return first, nil
}

// embedInto attaches an embedding, degrading to a vector-less entry
// when the backend is down.
func (a *Assistant) embedInto(ctx context.Context, entry *MemoryEntry) error {
	vec, err := a.embedder.Embed(ctx, entry.Text)
	if err == nil {
		entry.Embedding = vec
		return nil
	}
	if errors.Is(err, ErrBackendUnavailable) {
		log.Warn("embedding backend unavailable, storing turn without vector", "err", err)
		return nil
	}
	return err
}

func (a *Assistant) syncSessionNote(ctx context.Context, session *Session) {
	a.connectVault(ctx)
	if a.vault == nil {
		return
	}

	if session.NotePath == "" {
		session.NotePath = session.DefaultNotePath()
		content := a.concepts.Linkify(session.Transcript())
		if err := a.vault.CreateNote(ctx, session.NotePath, content); err != nil {
			log.Warn("creating conversation note failed, sync deferred", "err", err)
			session.NotePath = ""
			return
		}
		a.recordShadow(session.NotePath, content)
		return
	}

	content := a.concepts.Linkify(session.Transcript())
	if err := a.vault.UpdateNote(ctx, session.NotePath, content); err != nil {
		log.Warn("updating conversation note failed, sync deferred", "err", err)
		return
	}
	a.recordShadow(session.NotePath, content)
}

func (a *Assistant) maybeName(ctx context.Context, session *Session) {
	oldPath := session.NotePath
	named, err := a.namer.MaybeName(ctx, session)
	if err != nil {
		log.Warn("session naming failed", "err", err)
		return
	}
	if !named {
		return
	}

	if oldPath != "" && session.NotePath != "" && session.NotePath != oldPath {
		a.rebindNoteEntries(ctx, oldPath, session.NotePath)
	}
	if a.vault != nil && session.NotePath != "" {
		if err := a.daily.LinkSession(ctx, time.Now(), session.NotePath, session.Title()); err != nil {
			log.Warn("linking renamed session failed", "err", err)
		}
	}
}

// rebindNoteEntries points entries stored under a renamed note at its
// new path so EntriesForNote and watcher reconciliation keep working.
func (a *Assistant) rebindNoteEntries(ctx context.Context, oldPath, newPath string) {
	entries, err := a.store.EntriesForNote(ctx, oldPath)
	if err != nil {
		log.Warn("listing entries for renamed note failed", "err", err)
		return
	}
	for _, entry := range entries {
		if err := a.store.BackfillNotePath(ctx, entry.ID, newPath); err != nil {
			log.Warn("rebinding entry note path failed", "id", entry.ID, "err", err)
		}
	}
}

// RetrieveContext returns a ranked context block for a query. On total
// retrieval failure it returns an empty context rather than an error a
// turn would propagate.
func (a *Assistant) RetrieveContext(ctx context.Context, session *Session, query string, k int) string {
	ranked, err := a.retriever.Retrieve(ctx, query, k)
	if err != nil {
		log.Warn("retrieval failed, returning empty context", "err", err)
		return ""
	}
	if len(ranked) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant memories:\n")
	for _, r := range ranked {
		fmt.Fprintf(&b, "- [%s, %s] %s\n",
			r.Entry.Role, r.Entry.CreatedAt.Format("2006-01-02"), r.Entry.Text)
	}
	block := b.String()

	a.appendRetrievedSection(ctx, query, ranked, block)
	return block
}

// appendRetrievedSection records what was retrieved in the daily note,
// keyed by the query and result set so repeats do not duplicate.
func (a *Assistant) appendRetrievedSection(ctx context.Context, query string, ranked []RankedEntry, block string) {
	a.connectVault(ctx)
	if a.vault == nil {
		return
	}

	h := sha256.New()
	h.Write([]byte(query))
	for _, r := range ranked {
		h.Write([]byte(r.Entry.ID))
	}
	id := hex.EncodeToString(h.Sum(nil)[:8])

	body := fmt.Sprintf("Query: %s\n\n%s", query, a.concepts.Linkify(block))
	if err := a.daily.AppendSection(ctx, time.Now(), SectionRetrieved, id, body); err != nil {
		log.Warn("appending retrieved section failed", "err", err)
	}
}

func (a *Assistant) SessionTitle(session *Session) string {
	return session.Title()
}

// Insights returns current advisory insights and records reflections in
// the daily note.
func (a *Assistant) Insights(ctx context.Context) []Insight {
	insights := a.insights.Generate(ctx)

	a.connectVault(ctx)
	if a.vault != nil {
		for _, insight := range insights {
			kind := SectionGenerated
			if insight.Kind == "reflection" {
				kind = SectionReflection
			}
			sum := sha256.Sum256([]byte(insight.Text))
			id := hex.EncodeToString(sum[:8])
			if err := a.daily.AppendSection(ctx, time.Now(), kind, id, insight.Text); err != nil {
				log.Warn("recording insight failed", "err", err)
			}
		}
	}
	return insights
}

func (a *Assistant) Welcome(ctx context.Context) string {
	return a.insights.Welcome(ctx)
}

// ImportNote chunks an existing vault note into the memory store.
func (a *Assistant) ImportNote(ctx context.Context, path string) error {
	a.connectVault(ctx)
	if a.vault == nil {
		return ErrVaultUnavailable
	}

	note, err := a.vault.GetNote(ctx, path)
	if err != nil {
		return err
	}

	a.concepts.Upsert(NoteTitle(note), path)
	if err := IndexNote(ctx, a.store, a.embedder, a.chunker, note); err != nil {
		return err
	}
	return a.shadow.Write(path, note.Content)
}

func (a *Assistant) Store() *VectorStore     { return a.store }
func (a *Assistant) Concepts() *ConceptIndex { return a.concepts }

func (a *Assistant) recordShadow(path, content string) {
	if err := a.shadow.Write(path, content); err != nil {
		log.Warn("recording shadow copy failed", "path", path, "err", err)
	}
}

// Close stops the watcher and flushes the derived index.
func (a *Assistant) Close(ctx context.Context) error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	return a.store.Persist(ctx)
}
