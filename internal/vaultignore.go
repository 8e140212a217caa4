package internal

import (
	"bufio"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

const IgnoreFilename = ".mnemoignore"

// Directories the external note application owns; never scanned,
// watched, or linked.
var builtinIgnores = []string{
	".obsidian/",
	".trash/",
	"templates/",
}

// VaultIgnore filters vault paths the sync layer and watcher must not
// touch. Patterns come from built-in defaults plus an optional
// .mnemoignore at the vault root, gitignore syntax.
type VaultIgnore struct {
	patterns []gitignore.Pattern
}

func NewVaultIgnore(fs billy.Filesystem) (*VaultIgnore, error) {
	patterns := make([]gitignore.Pattern, 0, len(builtinIgnores))
	for _, line := range builtinIgnores {
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	f, err := fs.Open(IgnoreFilename)
	if os.IsNotExist(err) {
		return &VaultIgnore{patterns: patterns}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &VaultIgnore{patterns: patterns}, nil
}

func (m *VaultIgnore) Match(relPath string) bool {
	return m.match(relPath, false)
}

func (m *VaultIgnore) MatchDir(relPath string) bool {
	return m.match(relPath, true)
}

func (m *VaultIgnore) match(relPath string, isDir bool) bool {
	parts := strings.Split(strings.Trim(relPath, "/"), "/")
	for _, p := range m.patterns {
		if p.Match(parts, isDir) == gitignore.Exclude {
			return true
		}
	}
	return false
}
