package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/inkr/am"
	"github.com/teranos/inkr/configstore"
	"github.com/teranos/inkr/engine"
	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/generate"
	"github.com/teranos/inkr/journal"
	"github.com/teranos/inkr/plugin"
	"github.com/teranos/inkr/plugins/object"
)

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		configstore.ContextFile: `
triggers:
  - id: java_pojo
    type: object
    templateFolder: pojo
    matchers:
      - {type: tag, value: isEntity=true}
`,
		"pojo/" + configstore.TemplatesFile: `
templates:
  - {name: impl, file: Impl.java.tmpl, destination: "{{className}}Impl.java"}
  - {name: api, file: Api.java.tmpl, destination: "{{className}}.java"}
increments:
  - {name: logic_impl, templates: [impl]}
`,
		"pojo/Impl.java.tmpl": "class {{className}}Impl {}",
		"pojo/Api.java.tmpl":  "interface {{className}} {}",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	cfg := am.Defaults()
	cfg.Generator.ConfigRoot = root
	b := plugin.NewBuilder(plugin.DevVersion)
	require.NoError(t, b.Register(object.Bundle()))
	e, err := engine.New(cfg, b.Build())
	require.NoError(t, err)
	return e
}

func TestSelectArtifacts(t *testing.T) {
	e := testEngine(t)
	entity := &object.Input{Name: "Order", Values: map[string]interface{}{"isEntity": true, "className": "Order"}}

	tests := []struct {
		name    string
		input   interface{}
		ids     []string
		want    []string
		wantErr func(error) bool
	}{
		{"matching increments by default", entity, nil, []string{"logic_impl"}, nil},
		{"increment before template", entity, []string{"java_pojo/logic_impl", "api"}, []string{"logic_impl", "api"}, nil},
		{"unknown id", entity, []string{"nope"}, nil, errors.IsNotFoundError},
		{"nothing matches", &object.Input{Name: "x"}, nil, nil, errors.IsNotFoundError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectArtifacts(e, tt.input, tt.ids)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			var ids []string
			for _, a := range got {
				ids = append(ids, a.ArtifactID())
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestReaderArgs(t *testing.T) {
	tests := []struct {
		set     string
		want    []interface{}
		wantErr bool
	}{
		{"", []interface{}{}, false},
		{"isEntity=true", []interface{}{"isEntity=true"}, false},
		{`isEntity=true note="two words"`, []interface{}{"isEntity=true", "note=two words"}, false},
		{`note='unterminated`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.set, func(t *testing.T) {
			f := inputFlags{set: tt.set}
			got, err := f.readerArgs()
			if tt.wantErr {
				assert.True(t, errors.IsInvalidRequestError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordRun(t *testing.T) {
	e := testEngine(t)
	path := filepath.Join(t.TempDir(), "journal.db")
	e.Config().Generator.Journal = path

	entity := &object.Input{Name: "Order", Values: map[string]interface{}{"isEntity": true, "className": "Order"}}
	inc, err := e.Increment("logic_impl")
	require.NoError(t, err)
	target := t.TempDir()
	generateTarget = target
	defer func() { generateTarget = "." }()

	report := e.Generate(context.Background(), entity, []configstore.GenerableArtifact{inc}, target, generate.Options{})
	require.Equal(t, generate.StatusCompleted, report.Status)
	GenerateCmd.SetContext(context.Background())
	recordRun(GenerateCmd, e, report)

	j, err := journal.Open(path, nil)
	require.NoError(t, err)
	defer j.Close()
	run, err := j.LastWriter(context.Background(), filepath.Join(target, "OrderImpl.java"))
	require.NoError(t, err)
	assert.Equal(t, report.ID, run.ID)
	assert.Equal(t, e.Root(), run.ConfigRoot)
}
