package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/inkr/errors"
)

func TestResolveRoot_Local(t *testing.T) {
	dir := t.TempDir()
	log := zaptest.NewLogger(t).Sugar()

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"absolute", dir, dir},
		{"file url", "file://" + dir, dir},
		{"trailing slash", dir + "/", dir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := ResolveRoot(context.Background(), tt.source, t.TempDir(), log)
			require.NoError(t, err)
			assert.Equal(t, tt.want, root.LocalPath)
			assert.Equal(t, tt.source, root.Source)
			assert.False(t, root.Fetched)
		})
	}

	t.Run("relative to working directory", func(t *testing.T) {
		root, err := ResolveRoot(context.Background(), ".inkr", "", nil)
		require.NoError(t, err)
		wd, _ := os.Getwd()
		assert.Equal(t, filepath.Join(wd, ".inkr"), root.LocalPath)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ResolveRoot(context.Background(), " ", "", nil)
		assert.True(t, errors.IsInvalidRequestError(err))
	})
}

func TestFetch(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "context.yaml"), []byte("triggers: []\n"), 0644))
	dst := filepath.Join(t.TempDir(), "cache", "root")
	log := zaptest.NewLogger(t).Sugar()

	require.NoError(t, fetch(context.Background(), "file://"+src, dst, src, log))
	data, err := os.ReadFile(filepath.Join(dst, "context.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "triggers: []\n", string(data))

	// a second fetch replaces the first
	require.NoError(t, fetch(context.Background(), "file://"+src, dst, src, log))

	err = fetch(context.Background(), "file://"+filepath.Join(src, "missing"), filepath.Join(t.TempDir(), "x"), src, log)
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestCacheName(t *testing.T) {
	tests := map[string]string{
		"github.com/acme/templates":          "github.com_acme_templates",
		"git@github.com:acme/templates.git":  "git-github.com-acme_templates",
		"https://example.com/t.tgz?ref=v1.0": "https-__example.com_t.tgz",
		"":                                   "root",
	}
	for in, want := range tests {
		assert.Equal(t, want, cacheName(in), in)
	}
}

func TestAppRoot(t *testing.T) {
	t.Run("inside a worktree", func(t *testing.T) {
		repo := t.TempDir()
		_, err := git.PlainInit(repo, false)
		require.NoError(t, err)
		nested := filepath.Join(repo, "src", "billing")
		require.NoError(t, os.MkdirAll(nested, 0755))

		got, err := AppRoot(nested)
		require.NoError(t, err)
		assert.Equal(t, repo, got)
	})

	t.Run("outside any repository", func(t *testing.T) {
		dir := t.TempDir()
		got, err := AppRoot(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, got)
	})
}
