package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	DefaultAuthor = "mnemo"
	DefaultEmail  = "mnemo@local"

	entriesDir = "entries"
)

// EntryJournal is the source of truth for memory entries: one JSON
// document per entry inside a git worktree, committed on every write.
// The vector index is derived from it and can always be rebuilt.
type EntryJournal struct {
	repo     *git.Repository
	worktree *git.Worktree
	rootPath string
}

func InitJournal(rootPath string) error {
	if err := os.MkdirAll(filepath.Join(rootPath, entriesDir), 0755); err != nil {
		return fmt.Errorf("create entries directory: %w", err)
	}

	repo, err := git.PlainInit(rootPath, false)
	if err == git.ErrRepositoryAlreadyExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("init journal: %w", err)
	}

	keep := filepath.Join(rootPath, entriesDir, ".keep")
	if err := os.WriteFile(keep, nil, 0644); err != nil {
		return fmt.Errorf("write keep file: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}
	if _, err := worktree.Add(filepath.Join(entriesDir, ".keep")); err != nil {
		return fmt.Errorf("stage keep file: %w", err)
	}
	if _, err := worktree.Commit("init: memory journal", commitOptions()); err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	return nil
}

func NewEntryJournal(rootPath string) (*EntryJournal, error) {
	repo, err := git.PlainOpen(rootPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}

	return &EntryJournal{
		repo:     repo,
		worktree: worktree,
		rootPath: rootPath,
	}, nil
}

func commitOptions() *git.CommitOptions {
	return &git.CommitOptions{
		Author: &object.Signature{
			Name:  DefaultAuthor,
			Email: DefaultEmail,
			When:  time.Now(),
		},
	}
}

func (j *EntryJournal) entryPath(id string) string {
	return filepath.Join(j.rootPath, entriesDir, id+".json")
}

// Append persists a new entry and commits it.
func (j *EntryJournal) Append(ctx context.Context, entry *MemoryEntry) error {
	return j.write(ctx, entry, "add")
}

// Update rewrites an existing entry. Entries are immutable except for
// importance re-scoring and vault-path backfill, which go through here.
func (j *EntryJournal) Update(ctx context.Context, entry *MemoryEntry) error {
	if _, err := os.Stat(j.entryPath(entry.ID)); os.IsNotExist(err) {
		return ErrNotFound
	}
	return j.write(ctx, entry, "update")
}

func (j *EntryJournal) write(ctx context.Context, entry *MemoryEntry, verb string) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := os.WriteFile(j.entryPath(entry.ID), data, 0644); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}

	rel := filepath.Join(entriesDir, entry.ID+".json")
	if _, err := j.worktree.Add(rel); err != nil {
		return fmt.Errorf("stage entry: %w", err)
	}

	msg := fmt.Sprintf("%s: %s (%s)", verb, entry.ID, entry.Role)
	if _, err := j.worktree.Commit(msg, commitOptions()); err != nil {
		return fmt.Errorf("commit entry: %w", err)
	}

	return nil
}

func (j *EntryJournal) Get(ctx context.Context, id string) (*MemoryEntry, error) {
	data, err := os.ReadFile(j.entryPath(id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}

	var entry MemoryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parse entry %s: %w", id, err)
	}
	return &entry, nil
}

// Delete removes an entry and commits the removal. Used when a vault
// note is re-chunked and its derived entries are regenerated.
func (j *EntryJournal) Delete(ctx context.Context, id string) error {
	rel := filepath.Join(entriesDir, id+".json")
	if _, err := os.Stat(j.entryPath(id)); os.IsNotExist(err) {
		return ErrNotFound
	}

	if err := os.Remove(j.entryPath(id)); err != nil {
		return fmt.Errorf("remove entry: %w", err)
	}
	if _, err := j.worktree.Add(rel); err != nil {
		return fmt.Errorf("stage removal: %w", err)
	}
	if _, err := j.worktree.Commit(fmt.Sprintf("del: %s", id), commitOptions()); err != nil {
		return fmt.Errorf("commit removal: %w", err)
	}
	return nil
}

// List loads every entry, oldest first. ULID ids sort by creation time,
// so lexical filename order is chronological.
func (j *EntryJournal) List(ctx context.Context) ([]*MemoryEntry, error) {
	dir := filepath.Join(j.rootPath, entriesDir)
	names, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read entries directory: %w", err)
	}

	var entries []*MemoryEntry
	for _, name := range names {
		if name.IsDir() || !strings.HasSuffix(name.Name(), ".json") {
			continue
		}
		entry, err := j.Get(ctx, strings.TrimSuffix(name.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, k int) bool { return entries[i].ID < entries[k].ID })
	return entries, nil
}

// History returns the most recent journal commits, newest first.
func (j *EntryJournal) History(ctx context.Context, limit int) ([]string, error) {
	iter, err := j.repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("journal log: %w", err)
	}
	defer iter.Close()

	var messages []string
	for len(messages) < limit {
		commit, err := iter.Next()
		if err != nil {
			break
		}
		messages = append(messages, strings.TrimSpace(commit.Message))
	}
	return messages, nil
}
