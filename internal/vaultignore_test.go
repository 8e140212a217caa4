package internal

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultIgnoreBuiltins(t *testing.T) {
	ignore, err := NewVaultIgnore(memfs.New())
	require.NoError(t, err)

	assert.True(t, ignore.MatchDir(".obsidian"))
	assert.True(t, ignore.MatchDir(".trash"))
	assert.True(t, ignore.MatchDir("templates"))
	assert.True(t, ignore.Match(".obsidian/workspace.json"))
	assert.False(t, ignore.MatchDir("Daily"))
	assert.False(t, ignore.Match("Garden.md"))
}

func TestVaultIgnoreCustomFile(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, IgnoreFilename, []byte("# comment\n\ndrafts/\n*.tmp.md\n"), 0644))

	ignore, err := NewVaultIgnore(fs)
	require.NoError(t, err)

	assert.True(t, ignore.MatchDir("drafts"))
	assert.True(t, ignore.Match("drafts/wip.md"))
	assert.True(t, ignore.Match("notes/scratch.tmp.md"))
	assert.False(t, ignore.Match("notes/keeper.md"))
}

func TestVaultIgnoreMissingFile(t *testing.T) {
	ignore, err := NewVaultIgnore(memfs.New())
	require.NoError(t, err)
	assert.False(t, ignore.Match("anything/goes.md"))
}
