package display

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/inkr/errors"
)

func newCmd() (*cobra.Command, *cobra.Command) {
	root := &cobra.Command{Use: "inkr"}
	root.PersistentFlags().Bool("json", false, "")
	child := &cobra.Command{Use: "child", Run: func(*cobra.Command, []string) {}}
	root.AddCommand(child)
	return root, child
}

func TestShouldOutputJSON(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(OutputEnv, "")
		_, child := newCmd()
		assert.False(t, ShouldOutputJSON(child))
	})

	t.Run("global flag", func(t *testing.T) {
		t.Setenv(OutputEnv, "")
		root, child := newCmd()
		require.NoError(t, root.PersistentFlags().Set("json", "true"))
		assert.True(t, ShouldOutputJSON(child))
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(OutputEnv, "json")
		_, child := newCmd()
		assert.True(t, ShouldOutputJSON(child))
		assert.True(t, ShouldOutputJSON(nil))
	})
}

func TestWriteJSON(t *testing.T) {
	t.Run("indented for humans", func(t *testing.T) {
		t.Setenv(OutputEnv, "")
		var buf bytes.Buffer
		require.NoError(t, WriteJSON(&buf, map[string]int{"a": 1}))
		assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
	})

	t.Run("compact for machines", func(t *testing.T) {
		t.Setenv(OutputEnv, "json")
		var buf bytes.Buffer
		require.NoError(t, WriteJSON(&buf, map[string]int{"a": 1}))
		assert.Equal(t, "{\"a\":1}\n", buf.String())
	})

	t.Run("unmarshalable", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, WriteJSON(&buf, make(chan int)))
	})
}

func TestNewErrorView(t *testing.T) {
	err := errors.WithHint(errors.NewNotFoundError("increment %q not found", "x"), "list increments first")
	v := NewErrorView(err)
	assert.Equal(t, errors.Kind(err), v.Kind)
	assert.Contains(t, v.Message, `increment "x" not found`)
	assert.Equal(t, []string{"list increments first"}, v.Hints)
}
