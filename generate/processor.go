// Package generate renders requested templates and increments for an input
// into a target tree and reports the outcome per template.
package generate

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/teranos/inkr/am"
	"github.com/teranos/inkr/configstore"
	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/logger"
	"github.com/teranos/inkr/model"
	"github.com/teranos/inkr/plugin"
	"github.com/teranos/inkr/trigger"
)

// Renderer renders a template file against a model
type Renderer interface {
	Render(templatePath string, model map[string]interface{}) (string, error)
}

// Options adjust one Generate call
type Options struct {
	// ForceOverride overwrites existing destinations
	ForceOverride bool

	// Contributors add model values after the technology's contributors
	Contributors []plugin.ModelContributor

	// RawModel replaces the built model
	RawModel map[string]interface{}

	// FormatGo runs goimports over rendered .go destinations
	FormatGo bool
}

// Processor drives generation. It holds no per-call state and may be used
// concurrently.
type Processor struct {
	holder   *configstore.Holder
	registry *plugin.Registry
	interp   trigger.Interpreter
	models   *model.Builder
	renderer Renderer
}

// NewProcessor creates a generation processor
func NewProcessor(holder *configstore.Holder, registry *plugin.Registry, interp trigger.Interpreter, models *model.Builder, renderer Renderer) *Processor {
	return &Processor{
		holder:   holder,
		registry: registry,
		interp:   interp,
		models:   models,
		renderer: renderer,
	}
}

// Generate renders artifacts for input under targetRoot. Request validation
// failures yield a FAILED report with nothing written. Failures of single
// templates are recorded in the report and never stop the remaining ones.
func (p *Processor) Generate(ctx context.Context, input interface{}, artifacts []configstore.GenerableArtifact, targetRoot string, opts Options) *Report {
	report := newReport()
	ctx = logger.WithReportID(ctx, report.ID)
	log := logger.LoggerFromContext(logger.WithComponent(ctx, "generate"))
	start := time.Now()

	if err := validate(input, artifacts, targetRoot); err != nil {
		log.Warnw("Generation request rejected", logger.FieldError, err.Error())
		return report.fail(err)
	}

	for _, tpl := range p.expand(artifacts) {
		if err := ctx.Err(); err != nil {
			report.add(Entry{TemplateID: tpl.ID, TriggerID: tpl.TriggerID, Outcome: OutcomeFailed, Cause: err})
			continue
		}
		for _, e := range p.generateTemplate(input, tpl, targetRoot, opts) {
			if e.Outcome == OutcomeRendered {
				report.Written = append(report.Written, e.Destination)
			}
			if e.Outcome == OutcomeFailed {
				log.Warnw("Template failed",
					logger.FieldTemplate, e.TemplateID,
					logger.FieldTrigger, e.TriggerID,
					logger.FieldKind, errors.Kind(e.Cause),
					logger.FieldError, e.Cause.Error())
			}
			report.add(e)
		}
	}

	report.finish()
	log.Infow("Generation finished",
		logger.FieldStatus, string(report.Status),
		logger.FieldCount, len(report.Written),
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return report
}

func validate(input interface{}, artifacts []configstore.GenerableArtifact, targetRoot string) error {
	if isNilInput(input) {
		return errors.NewInvalidRequestError("input is nil")
	}
	if artifacts == nil {
		return errors.NewInvalidRequestError("artifact list is nil")
	}
	for i, a := range artifacts {
		if isNil(a) {
			return errors.WithHint(
				errors.NewInvalidRequestError("artifact %d of %d is nil", i+1, len(artifacts)),
				"no artifact of a request with a nil entry is generated")
		}
	}
	if targetRoot == "" {
		return errors.NewInvalidRequestError("target root is empty")
	}
	return nil
}

func isNil(a configstore.GenerableArtifact) bool {
	switch v := a.(type) {
	case nil:
		return true
	case *configstore.Template:
		return v == nil
	case *configstore.Increment:
		return v == nil
	}
	return false
}

// isNilInput also catches typed nils such as a nil *object.Input
func isNilInput(input interface{}) bool {
	if input == nil {
		return true
	}
	v := reflect.ValueOf(input)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// expand resolves increments to their templates, keeping request order and
// dropping repeats
func (p *Processor) expand(artifacts []configstore.GenerableArtifact) []*configstore.Template {
	var out []*configstore.Template
	seen := make(map[[2]string]bool)
	add := func(t *configstore.Template) {
		key := [2]string{t.TriggerID, t.ID}
		if !seen[key] {
			seen[key] = true
			out = append(out, t)
		}
	}
	for _, a := range artifacts {
		switch v := a.(type) {
		case *configstore.Template:
			add(v)
		case *configstore.Increment:
			for _, t := range v.Templates {
				add(t)
			}
		}
	}
	return out
}

// generateTemplate produces one entry per input the template applies to.
// Container inputs of a container trigger fan out to their elements.
func (p *Processor) generateTemplate(input interface{}, tpl *configstore.Template, targetRoot string, opts Options) []Entry {
	failed := func(err error) []Entry {
		return []Entry{{TemplateID: tpl.ID, TriggerID: tpl.TriggerID, Outcome: OutcomeFailed, Cause: err}}
	}

	t, err := p.holder.Trigger(tpl.TriggerID)
	if err != nil {
		return failed(err)
	}

	inputs := []interface{}{input}
	if t.MatchesByContainerMatcher() {
		bundle, err := p.registry.Lookup(t.Type)
		if err != nil {
			return failed(err)
		}
		if bundle.Resolver != nil && bundle.Resolver.IsContainer(input) {
			inputs, err = p.interp.ResolveContainerElements(input, t)
			if err != nil {
				return failed(err)
			}
		}
	}

	entries := make([]Entry, 0, len(inputs))
	for _, in := range inputs {
		entries = append(entries, p.render(in, t, tpl, targetRoot, opts))
	}
	return entries
}

func (p *Processor) render(input interface{}, t *configstore.Trigger, tpl *configstore.Template, targetRoot string, opts Options) Entry {
	e := Entry{TemplateID: tpl.ID, TriggerID: t.ID}
	fail := func(err error) Entry {
		e.Outcome = OutcomeFailed
		e.Cause = err
		return e
	}

	ok, err := p.interp.Matches(t, input)
	if err != nil {
		return fail(err)
	}
	if !ok {
		e.Outcome = OutcomeSkippedNoMatch
		e.Reason = "input does not match trigger " + t.ID
		return e
	}

	m, err := p.models.BuildWith(input, t, model.Options{Contributors: opts.Contributors, Raw: opts.RawModel})
	if err != nil {
		return fail(err)
	}

	dest, err := destination(targetRoot, tpl, m)
	if err != nil {
		return fail(err)
	}
	e.Destination = dest

	if _, err := os.Stat(dest); err == nil && !opts.ForceOverride {
		e.Outcome = OutcomeSkippedExists
		return e
	}

	content, err := p.renderer.Render(tpl.AbsolutePath, m)
	if err != nil {
		if !errors.Is(err, errors.ErrTemplateRender) {
			err = errors.Mark(err, errors.ErrTemplateRender)
		}
		return fail(errors.Wrapf(err, "template %q", tpl.ID))
	}

	data := []byte(content)
	if opts.FormatGo && filepath.Ext(dest) == ".go" {
		data = formatGo(dest, data)
	}

	if err := os.MkdirAll(filepath.Dir(dest), am.DefaultDirPermissions); err != nil {
		return fail(errors.Mark(errors.Wrapf(err, "creating directory for %s", dest), errors.ErrDestinationWrite))
	}
	if err := writeFileAtomic(dest, data, am.DefaultFilePermissions); err != nil {
		return fail(errors.Mark(errors.Wrapf(err, "writing %s", dest), errors.ErrDestinationWrite))
	}

	e.Outcome = OutcomeRendered
	logger.Debugw("Rendered template",
		logger.FieldTemplate, tpl.ID,
		logger.FieldDestination, dest)
	return e
}

// writeFileAtomic writes via a temp file in the destination directory and a
// rename, so readers never see a partial file
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
