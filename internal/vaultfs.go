package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// FSVault reads and writes markdown files directly under the vault
// root, with the same path semantics as the API transport. It works
// against any billy filesystem so tests can run on memfs.
type FSVault struct {
	fs     billy.Filesystem
	ignore *VaultIgnore
}

func NewFSVault(root string) (*FSVault, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("%w: vault root: %v", ErrVaultUnavailable, err)
	}
	return NewFSVaultOn(osfs.New(root))
}

// NewFSVaultOn wraps an existing filesystem rooted at the vault.
func NewFSVaultOn(fs billy.Filesystem) (*FSVault, error) {
	ignore, err := NewVaultIgnore(fs)
	if err != nil {
		return nil, fmt.Errorf("load vault ignore rules: %w", err)
	}
	return &FSVault{fs: fs, ignore: ignore}, nil
}

func (v *FSVault) ListNotes(ctx context.Context) ([]NoteInfo, error) {
	var notes []NoteInfo
	err := util.Walk(v.fs, "/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel := strings.TrimPrefix(p, "/")
		if info.IsDir() {
			if rel != "" && v.ignore.MatchDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(rel, ".md") || v.ignore.Match(rel) {
			return nil
		}
		notes = append(notes, NoteInfo{Path: rel, Modified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk vault: %w", err)
	}
	return notes, nil
}

func (v *FSVault) GetNote(ctx context.Context, notePath string) (*VaultNote, error) {
	f, err := v.fs.Open(notePath)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open note: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read note: %w", err)
	}

	var modified time.Time
	if info, serr := v.fs.Stat(notePath); serr == nil {
		modified = info.ModTime()
	}

	return parseNote(notePath, string(data), modified)
}

func (v *FSVault) CreateNote(ctx context.Context, notePath, content string) error {
	if _, err := v.fs.Stat(notePath); err == nil {
		return fmt.Errorf("create note %s: already exists", notePath)
	}
	return v.writeAtomic(notePath, content)
}

func (v *FSVault) UpdateNote(ctx context.Context, notePath, content string) error {
	return v.writeAtomic(notePath, content)
}

// writeAtomic stages the content into a temp file in the same directory
// and renames it into place, so a failed write never leaves a
// half-written note.
func (v *FSVault) writeAtomic(notePath, content string) error {
	dir := path.Dir(notePath)
	if err := v.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create note directory: %w", err)
	}

	tmp, err := v.fs.TempFile(dir, ".mnemo-write-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write([]byte(content)); err != nil {
		tmp.Close()
		_ = v.fs.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = v.fs.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := v.fs.Rename(tmpName, notePath); err != nil {
		_ = v.fs.Remove(tmpName)
		return fmt.Errorf("place note: %w", err)
	}
	return nil
}

// RenameNote moves a note to a new path in one filesystem operation.
func (v *FSVault) RenameNote(ctx context.Context, oldPath, newPath string) error {
	if _, err := v.fs.Stat(oldPath); os.IsNotExist(err) {
		return ErrNotFound
	}
	if err := v.fs.MkdirAll(path.Dir(newPath), 0755); err != nil {
		return fmt.Errorf("create note directory: %w", err)
	}
	if err := v.fs.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("rename note: %w", err)
	}
	return nil
}

func (v *FSVault) SearchNotes(ctx context.Context, query string) ([]SearchMatch, error) {
	notes, err := v.ListNotes(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var matches []SearchMatch
	for _, info := range notes {
		note, err := v.GetNote(ctx, info.Path)
		if err != nil {
			log.Warn("skipping unreadable note in search", "path", info.Path, "err", err)
			continue
		}
		idx := strings.Index(strings.ToLower(note.Content), needle)
		if idx < 0 {
			continue
		}
		matches = append(matches, SearchMatch{
			Path:    info.Path,
			Snippet: snippetAround(note.Content, idx, len(query)),
		})
	}
	return matches, nil
}

func snippetAround(content string, idx, matchLen int) string {
	const margin = 60
	start := idx - margin
	if start < 0 {
		start = 0
	}
	end := idx + matchLen + margin
	if end > len(content) {
		end = len(content)
	}
	return strings.TrimSpace(strings.ReplaceAll(content[start:end], "\n", " "))
}
