package detect

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/inkr/configstore"
	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/plugin"
	"github.com/teranos/inkr/plugins/java"
	"github.com/teranos/inkr/tmpl"
)

const contextYAML = `
triggers:
  - id: java_entity
    type: java
    templateFolder: entity
    matchers:
      - {type: annotation, value: Entity}
`

const templatesYAML = `
templates:
  - {name: impl, file: Impl.java.tmpl, destination: "{{className}}Impl.java"}
  - {name: api, file: Api.java.tmpl, destination: "{{className}}.java"}
increments:
  - {name: logic_impl, templates: [impl]}
  - {name: all, templates: [impl, api]}
`

func write(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

type fixture struct {
	configRoot string
	appRoot    string
	holder     *configstore.Holder
	detector   *Detector
}

func newFixture(t *testing.T, matcher Matcher) *fixture {
	t.Helper()
	configRoot := t.TempDir()
	write(t, filepath.Join(configRoot, configstore.ContextFile), contextYAML)
	write(t, filepath.Join(configRoot, "entity", configstore.TemplatesFile), templatesYAML)
	write(t, filepath.Join(configRoot, "entity", "Impl.java.tmpl"), `class {{className}}Impl { String id = "{{idField}}"; }`)
	write(t, filepath.Join(configRoot, "entity", "Api.java.tmpl"), `interface {{className}} {}`)

	appRoot := t.TempDir()
	write(t, filepath.Join(appRoot, "src", "OrderImpl.java"), `class OrderImpl { String id = "orderId"; }`)
	write(t, filepath.Join(appRoot, "src", "Order.java"), `interface Order {}`)
	write(t, filepath.Join(appRoot, "src", "billing", "InvoiceImpl.java"), `class InvoiceImpl { String id = "invoiceId"; }`)
	write(t, filepath.Join(appRoot, "src", "README.md"), `class ReadmeImpl { String id = "x"; }`)

	b := plugin.NewBuilder(plugin.DevVersion)
	require.NoError(t, b.Register(java.Bundle()))
	reg := b.Build()
	holder := configstore.NewHolder(configRoot, reg)

	if matcher == nil {
		matcher = tmpl.PatternMatcher{Workers: 2}
	}
	return &fixture{
		configRoot: configRoot,
		appRoot:    appRoot,
		holder:     holder,
		detector:   NewDetector(holder, reg, matcher, Options{Workers: 3}),
	}
}

func (f *fixture) increment(t *testing.T, id string) *configstore.Increment {
	t.Helper()
	cfg, err := f.holder.Templates("java_entity")
	require.NoError(t, err)
	inc, ok := cfg.Increment(id)
	require.True(t, ok)
	return inc
}

func TestDetect_ExampleScenario(t *testing.T) {
	f := newFixture(t, nil)
	inc := f.increment(t, "logic_impl")

	matches, err := f.detector.Detect(context.Background(), inc, filepath.Join("src", "OrderImpl.java"), f.appRoot)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Same(t, inc, m.Pattern)
	assert.Equal(t, map[string]string{"className": "Order", "idField": "orderId"}, m.VariableSubstitutions)
	assert.Equal(t, map[string]string{"impl": filepath.Join(f.appRoot, "src", "OrderImpl.java")}, m.TemplateMatches)
	assert.Empty(t, m.Ambiguous)
}

func TestDetect_DirectoryJoinsTemplates(t *testing.T) {
	f := newFixture(t, nil)

	matches, err := f.detector.Detect(context.Background(), f.increment(t, "all"), "src", f.appRoot)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, map[string]string{"className": "Order", "idField": "orderId"}, matches[0].VariableSubstitutions)
	assert.Equal(t, map[string]string{
		"api":  filepath.Join(f.appRoot, "src", "Order.java"),
		"impl": filepath.Join(f.appRoot, "src", "OrderImpl.java"),
	}, matches[0].TemplateMatches)

	assert.Equal(t, map[string]string{"className": "Invoice", "idField": "invoiceId"}, matches[1].VariableSubstitutions)
	assert.Equal(t, map[string]string{"impl": filepath.Join(f.appRoot, "src", "billing", "InvoiceImpl.java")}, matches[1].TemplateMatches)
}

func TestDetectFiles(t *testing.T) {
	f := newFixture(t, nil)

	matches, err := f.detector.DetectFiles(context.Background(), f.increment(t, "logic_impl"),
		[]string{filepath.Join("src", "billing", "InvoiceImpl.java")}, f.appRoot)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Invoice", matches[0].VariableSubstitutions["className"])

	none, err := f.detector.DetectFiles(context.Background(), f.increment(t, "logic_impl"), []string{}, f.appRoot)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDetect_UsesReloadedConfiguration(t *testing.T) {
	f := newFixture(t, nil)
	stale := f.increment(t, "logic_impl")

	write(t, filepath.Join(f.configRoot, "entity", configstore.TemplatesFile), `
templates:
  - {name: impl, file: Impl.java.tmpl, destination: "{{className}}Impl.java"}
  - {name: api, file: Api.java.tmpl, destination: "{{className}}.java"}
increments:
  - {name: logic_impl, templates: [api]}
`)
	f.holder.Reload()

	matches, err := f.detector.Detect(context.Background(), stale, filepath.Join("src", "Order.java"), f.appRoot)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, map[string]string{"api": filepath.Join(f.appRoot, "src", "Order.java")}, matches[0].TemplateMatches)
	assert.NotSame(t, stale, matches[0].Pattern)
	assert.Equal(t, "api", matches[0].Pattern.Templates[0].ID)
}

func TestEnumerate_FileFilter(t *testing.T) {
	f := newFixture(t, nil)
	root := filepath.Join(f.appRoot, "src")

	files, err := f.detector.enumerate(context.Background(), root, java.Bundle().FileFilter)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "Order.java"),
		filepath.Join(root, "OrderImpl.java"),
		filepath.Join(root, "billing", "InvoiceImpl.java"),
	}, files)

	all, err := f.detector.enumerate(context.Background(), root, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = f.detector.enumerate(context.Background(), root, "[")
	assert.True(t, errors.IsConfigurationError(err))
}

type failingMatcher struct{}

func (failingMatcher) Detect([]string, []string, string) ([]tmpl.RawMatch, error) {
	return []tmpl.RawMatch{{Variables: map[string]string{"partial": "yes"}}}, errors.New("grammar exploded")
}

func TestDetect_Failures(t *testing.T) {
	t.Run("missing search path", func(t *testing.T) {
		f := newFixture(t, nil)
		matches, err := f.detector.Detect(context.Background(), f.increment(t, "all"), "nowhere", f.appRoot)
		assert.Nil(t, matches)
		assert.True(t, errors.Is(err, errors.ErrDetectionFailed))
		assert.Equal(t, "DetectionFailed", errors.Kind(err))
	})

	t.Run("template removed after load", func(t *testing.T) {
		f := newFixture(t, nil)
		inc := f.increment(t, "all")
		require.NoError(t, os.Remove(filepath.Join(f.configRoot, "entity", "Api.java.tmpl")))

		matches, err := f.detector.Detect(context.Background(), inc, "src", f.appRoot)
		assert.Nil(t, matches)
		assert.True(t, errors.Is(err, errors.ErrDetectionFailed))
	})

	t.Run("matcher error discards partial results", func(t *testing.T) {
		f := newFixture(t, failingMatcher{})
		matches, err := f.detector.Detect(context.Background(), f.increment(t, "all"), "src", f.appRoot)
		assert.Nil(t, matches)
		assert.True(t, errors.Is(err, errors.ErrDetectionFailed))
		assert.Contains(t, err.Error(), "grammar exploded")
	})

	t.Run("invalid requests", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.detector.Detect(context.Background(), nil, "src", f.appRoot)
		assert.True(t, errors.IsInvalidRequestError(err))
		_, err = f.detector.Detect(context.Background(), f.increment(t, "all"), "", f.appRoot)
		assert.True(t, errors.IsInvalidRequestError(err))
		_, err = f.detector.DetectFiles(context.Background(), f.increment(t, "all"), nil, f.appRoot)
		assert.True(t, errors.IsInvalidRequestError(err))
	})

	t.Run("unknown increment", func(t *testing.T) {
		f := newFixture(t, nil)
		nope := &configstore.Increment{ID: "nope", TriggerID: "java_entity"}
		matches, err := f.detector.Detect(context.Background(), nope, "src", f.appRoot)
		assert.Nil(t, matches)
		assert.True(t, errors.IsNotFoundError(err))

		_, err = f.detector.DetectFiles(context.Background(), nope, []string{}, f.appRoot)
		assert.True(t, errors.IsNotFoundError(err))
	})

	t.Run("unknown trigger", func(t *testing.T) {
		f := newFixture(t, nil)
		orphan := &configstore.Increment{ID: "orphan", TriggerID: "missing"}
		_, err := f.detector.Detect(context.Background(), orphan, "src", f.appRoot)
		assert.True(t, errors.IsConfigurationError(err))
	})
}
