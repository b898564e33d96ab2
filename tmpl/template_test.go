package tmpl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/inkr/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		template     string
		wantErr      bool
		placeholders []string
	}{
		{name: "literal only", template: "Hello world"},
		{name: "single placeholder", template: "Hello {{className}}", placeholders: []string{"className"}},
		{name: "spaced placeholder", template: "Hello {{ className }}", placeholders: []string{"className"}},
		{name: "nested path", template: "{{pojo.name}} in {{pojo.package}}", placeholders: []string{"pojo.name", "pojo.package"}},
		{name: "repeats kept", template: "{{a}}{{a}}", placeholders: []string{"a", "a"}},
		{name: "empty template", template: "", wantErr: true},
		{name: "trailing dot", template: "{{pojo.}}", wantErr: true},
		{name: "double dot", template: "{{pojo..name}}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Parse(tt.template)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.placeholders, tmpl.GetPlaceholders())
			assert.Equal(t, tt.template, tmpl.Raw())
		})
	}
}

func TestExecute(t *testing.T) {
	model := map[string]interface{}{
		"className": "Order",
		"idField":   "orderId",
		"count":     3,
		"ratio":     0.5,
		"entity":    true,
		"pojo": map[string]interface{}{
			"name":   "Order",
			"fields": []string{"id", "total"},
			"meta":   map[string]string{"table": "ORDERS"},
		},
	}

	tests := []struct {
		name     string
		template string
		want     string
		wantErr  bool
	}{
		{"example scenario", `class {{className}}Impl { String id = "{{idField}}"; }`, `class OrderImpl { String id = "orderId"; }`, false},
		{"nested", "{{pojo.name}}/{{pojo.meta.table}}", "Order/ORDERS", false},
		{"scalars", "{{count}} {{ratio}} {{entity}}", "3 0.5 true", false},
		{"string list", "{{pojo.fields}}", "id, total", false},
		{"missing value", "{{unknown}}", "", true},
		{"traverse scalar", "{{className.length}}", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Parse(tt.template)
			require.NoError(t, err)

			got, err := tmpl.Execute(model)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrTemplateRender))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Impl.java.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("class {{className}}Impl {}\n"), 0644))

	out, err := Renderer{}.Render(path, map[string]interface{}{"className": "Order"})
	require.NoError(t, err)
	assert.Equal(t, "class OrderImpl {}\n", out)

	_, err = Renderer{}.Render(filepath.Join(dir, "missing.tmpl"), nil)
	assert.True(t, errors.Is(err, errors.ErrTemplateRender))

	dest, err := RenderString("{{className}}Impl.java", map[string]interface{}{"className": "Order"})
	require.NoError(t, err)
	assert.Equal(t, "OrderImpl.java", dest)
}
