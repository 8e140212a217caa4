package internal

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// textVector derives a stable unit-ish vector from the prompt so the
// embedding server is deterministic across calls.
func textVector(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, testDimension)
	for i := range vec {
		vec[i] = float32(sum[i])/255 + 0.01
	}
	return vec
}

func newTestAssistant(t *testing.T) (*Assistant, *FSVault) {
	t.Helper()
	embedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: textVector(req.Prompt)})
	}))
	t.Cleanup(embedServer.Close)

	cfg := DefaultConfig()
	cfg.Embeddings.BaseURL = embedServer.URL
	cfg.Embeddings.Dimension = testDimension
	cfg.Embeddings.Timeout = time.Second

	assistant, err := NewAssistantWith(context.Background(), t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("NewAssistantWith: %v", err)
	}
	t.Cleanup(func() { assistant.Close(context.Background()) })

	vault := newMemVault(t)
	assistant.UseVault(vault)
	return assistant, vault
}

func TestAssistantStoreTurn(t *testing.T) {
	ctx := context.Background()
	assistant, vault := newTestAssistant(t)
	session := assistant.NewSession(ctx)

	entry, err := assistant.StoreTurn(ctx, session, RoleUser, "My name is Chris and I love hiking")
	if err != nil {
		t.Fatalf("StoreTurn: %v", err)
	}
	if entry.Importance <= 0 {
		t.Errorf("importance = %v", entry.Importance)
	}
	if !entry.HasTag(TagPersonalFact) || !entry.HasTag(TagPreference) {
		t.Errorf("tags = %v", entry.Tags)
	}
	if len(entry.Embedding) != testDimension {
		t.Errorf("embedding length = %d", len(entry.Embedding))
	}

	if session.NotePath == "" {
		t.Fatal("session has no conversation note")
	}
	note, err := vault.GetNote(ctx, session.NotePath)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if !strings.Contains(note.Content, "My name is Chris") {
		t.Errorf("turn not synced to conversation note:\n%s", note.Content)
	}
}

func TestAssistantStoreTurnChunksLongText(t *testing.T) {
	ctx := context.Background()
	assistant, _ := newTestAssistant(t)
	session := assistant.NewSession(ctx)

	long := strings.Repeat("I spent the morning planning the vegetable garden beds. ", 30)
	entry, err := assistant.StoreTurn(ctx, session, RoleUser, long)
	if err != nil {
		t.Fatalf("StoreTurn: %v", err)
	}
	if entry.ChunkID == "" {
		t.Error("long turn entry has no chunk id")
	}

	entries, err := assistant.Store().List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	chunked := 0
	for _, e := range entries {
		if e.ChunkID == "" {
			continue
		}
		chunked++
		if e.Role != RoleUser {
			t.Errorf("chunk entry role = %q", e.Role)
		}
		if len(e.Text) > DefaultChunkSize {
			t.Errorf("chunk entry length = %d, over %d", len(e.Text), DefaultChunkSize)
		}
		if len(e.Embedding) != testDimension {
			t.Errorf("chunk entry embedding length = %d", len(e.Embedding))
		}
	}
	if chunked < 2 {
		t.Errorf("chunk entries = %d, want at least 2", chunked)
	}
}

func TestAssistantRenameRebindsEntries(t *testing.T) {
	ctx := context.Background()
	assistant, vault := newTestAssistant(t)
	provider := &fakeProvider{title: "Garden Planning"}
	assistant.provider = provider
	assistant.namer = NewSessionNamer(provider, vault)

	session := assistant.NewSession(ctx)
	oldPath := session.NotePath
	if oldPath == "" {
		t.Fatal("session has no conversation note")
	}

	if _, err := assistant.StoreTurn(ctx, session, RoleUser, "planning the garden beds"); err != nil {
		t.Fatalf("StoreTurn: %v", err)
	}
	if _, err := assistant.StoreTurn(ctx, session, RoleUser, "which tomatoes grow best here"); err != nil {
		t.Fatalf("StoreTurn: %v", err)
	}

	if !session.Named() {
		t.Fatal("session not named after two user turns")
	}
	if session.NotePath == oldPath {
		t.Fatalf("note path unchanged: %q", session.NotePath)
	}

	moved, err := assistant.Store().EntriesForNote(ctx, session.NotePath)
	if err != nil {
		t.Fatalf("EntriesForNote: %v", err)
	}
	if len(moved) != 2 {
		t.Errorf("entries under renamed note = %d, want 2", len(moved))
	}
	stale, err := assistant.Store().EntriesForNote(ctx, oldPath)
	if err != nil {
		t.Fatalf("EntriesForNote: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("entries still bound to old note path: %d", len(stale))
	}
}

func TestAssistantStoreTurnEmptyText(t *testing.T) {
	assistant, _ := newTestAssistant(t)
	session := assistant.NewSession(context.Background())
	if _, err := assistant.StoreTurn(context.Background(), session, RoleUser, "   "); err == nil {
		t.Error("expected error for blank turn")
	}
}

func TestAssistantNewSessionLinksDailyNote(t *testing.T) {
	ctx := context.Background()
	assistant, vault := newTestAssistant(t)
	session := assistant.NewSession(ctx)

	if session.NotePath == "" {
		t.Fatal("no conversation note created")
	}
	daily, err := vault.GetNote(ctx, DailyNotePath(time.Now()))
	if err != nil {
		t.Fatalf("daily note missing: %v", err)
	}
	link := strings.TrimSuffix(session.NotePath, ".md")
	if !strings.Contains(daily.Content, link) {
		t.Errorf("daily note lacks session link:\n%s", daily.Content)
	}
}

func TestAssistantRetrieveContext(t *testing.T) {
	ctx := context.Background()
	assistant, vault := newTestAssistant(t)
	session := assistant.NewSession(ctx)

	if _, err := assistant.StoreTurn(ctx, session, RoleUser, "planning a trip to Colorado"); err != nil {
		t.Fatalf("StoreTurn: %v", err)
	}

	block := assistant.RetrieveContext(ctx, session, "planning a trip to Colorado", 3)
	if !strings.HasPrefix(block, "Relevant memories:") {
		t.Errorf("block = %q", block)
	}
	if !strings.Contains(block, "Colorado") {
		t.Errorf("stored turn not retrieved:\n%s", block)
	}

	daily, err := vault.GetNote(ctx, DailyNotePath(time.Now()))
	if err != nil {
		t.Fatalf("daily note missing: %v", err)
	}
	if !strings.Contains(daily.Content, "%%mnemo:retrieved:") {
		t.Error("retrieval not recorded in daily note")
	}
}

func TestAssistantRetrieveContextEmptyStore(t *testing.T) {
	assistant, _ := newTestAssistant(t)
	session := assistant.NewSession(context.Background())
	if block := assistant.RetrieveContext(context.Background(), session, "anything", 3); block != "" {
		t.Errorf("block = %q, want empty", block)
	}
}

func TestAssistantImportNote(t *testing.T) {
	ctx := context.Background()
	assistant, vault := newTestAssistant(t)

	if err := vault.CreateNote(ctx, "Garden.md", "# Garden\n\nTomatoes, peppers, and basil this year.\n"); err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if err := assistant.ImportNote(ctx, "Garden.md"); err != nil {
		t.Fatalf("ImportNote: %v", err)
	}

	if _, ok := assistant.Concepts().Lookup("Garden"); !ok {
		t.Error("imported note title not a concept")
	}
	entries, err := assistant.Store().EntriesForNote(ctx, "Garden.md")
	if err != nil {
		t.Fatalf("EntriesForNote: %v", err)
	}
	if len(entries) == 0 {
		t.Error("no entries indexed from imported note")
	}
}

func TestAssistantWelcome(t *testing.T) {
	assistant, _ := newTestAssistant(t)
	if got := assistant.Welcome(context.Background()); !strings.HasPrefix(got, "Welcome back") {
		t.Errorf("greeting = %q", got)
	}
}

func TestAssistantConceptLinksInConversationNote(t *testing.T) {
	ctx := context.Background()
	assistant, vault := newTestAssistant(t)

	if err := vault.CreateNote(ctx, "Colorado.md", "# Colorado\n\nMountains.\n"); err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if err := assistant.ImportNote(ctx, "Colorado.md"); err != nil {
		t.Fatalf("ImportNote: %v", err)
	}

	session := assistant.NewSession(ctx)
	if _, err := assistant.StoreTurn(ctx, session, RoleUser, "thinking about Colorado again"); err != nil {
		t.Fatalf("StoreTurn: %v", err)
	}

	note, err := vault.GetNote(ctx, session.NotePath)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if !strings.Contains(note.Content, "[[Colorado]]") {
		t.Errorf("concept not auto-linked:\n%s", note.Content)
	}
}
