// Package engine is the entry point to inkr: one Engine serves generation
// and detection for one configuration root. Engines share nothing and are
// safe for concurrent use.
package engine

import (
	"context"
	"strings"

	"github.com/teranos/inkr/am"
	"github.com/teranos/inkr/cache"
	"github.com/teranos/inkr/configstore"
	"github.com/teranos/inkr/detect"
	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/generate"
	"github.com/teranos/inkr/logger"
	"github.com/teranos/inkr/model"
	"github.com/teranos/inkr/plugin"
	"github.com/teranos/inkr/tmpl"
	"github.com/teranos/inkr/trigger"
	"github.com/teranos/inkr/version"
)

// Engine wires the configuration store, trigger matching, caching, model
// building, generation and detection for one configuration root
type Engine struct {
	cfg      *am.Config
	registry *plugin.Registry
	holder   *configstore.Holder

	// store is nil when caching is disabled
	store *cache.Store

	interp    trigger.Interpreter
	planner   generate.Planning
	models    *model.Builder
	processor *generate.Processor
	detector  *detect.Detector
}

// New creates an engine. A nil cfg uses am.Defaults(); a nil registry is
// built from the compiled-in plugins restricted by cfg.Plugin.
func New(cfg *am.Config, registry *plugin.Registry) (*Engine, error) {
	if cfg == nil {
		cfg = am.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Mark(err, errors.ErrConfigurationInvalid)
	}

	if registry == nil {
		manifest, err := plugin.LoadManifest(cfg.Plugin.Manifest)
		if err != nil {
			return nil, err
		}
		registry, err = plugin.NewDefaultRegistry(version.Get().Version, cfg.Plugin.Enabled, manifest)
		if err != nil {
			return nil, err
		}
	}

	e := &Engine{
		cfg:      cfg,
		registry: registry,
		holder:   configstore.NewHolder(cfg.Generator.ConfigRoot, registry),
	}

	var interp trigger.Interpreter = trigger.NewEvaluator(e.holder, registry, cfg.Generator.Charset)
	if cfg.Cache.Enabled {
		store, err := cache.NewStore(cfg.Cache.Size)
		if err != nil {
			return nil, err
		}
		e.store = store
		interp = cache.NewInterpreter(interp, store)
	}
	e.interp = interp
	e.models = model.NewBuilder(interp, registry)

	var planner generate.Planning = generate.NewPlanner(e.holder, interp, e.models)
	if e.store != nil {
		planner = cache.NewPlanner(planner, e.store)
	}
	e.planner = planner

	e.processor = generate.NewProcessor(e.holder, registry, interp, e.models, tmpl.Renderer{})
	e.detector = detect.NewDetector(e.holder, registry,
		tmpl.PatternMatcher{Workers: cfg.Detect.Workers},
		detect.Options{TemplateSuffix: cfg.Detect.TemplateSuffix, Workers: cfg.Detect.Workers})

	logger.Debugw("Engine created",
		logger.FieldRoot, e.holder.Root(),
		"plugins", registry.List(),
		"cache", cfg.Cache.Enabled)
	return e, nil
}

// Config returns the engine configuration
func (e *Engine) Config() *am.Config { return e.cfg }

// Registry returns the plugin registry
func (e *Engine) Registry() *plugin.Registry { return e.registry }

// Root returns the configuration root
func (e *Engine) Root() string { return e.holder.Root() }

// CacheStats returns cache counters; zero when caching is disabled
func (e *Engine) CacheStats() cache.Stats {
	if e.store == nil {
		return cache.Stats{}
	}
	return e.store.Stats()
}

// Generate renders artifacts for input under targetRoot. The configured
// force_override and format_go defaults apply in addition to opts.
func (e *Engine) Generate(ctx context.Context, input interface{}, artifacts []configstore.GenerableArtifact, targetRoot string, opts generate.Options) *generate.Report {
	opts.ForceOverride = opts.ForceOverride || e.cfg.Generator.ForceOverride
	opts.FormatGo = opts.FormatGo || e.cfg.Generator.FormatGo
	return e.processor.Generate(ctx, input, artifacts, targetRoot, opts)
}

// GenerateOne renders a single template or increment
func (e *Engine) GenerateOne(ctx context.Context, input interface{}, artifact configstore.GenerableArtifact, targetRoot string, opts generate.Options) *generate.Report {
	return e.Generate(ctx, input, []configstore.GenerableArtifact{artifact}, targetRoot, opts)
}

// GetAllIncrements returns every increment, ordered by trigger then id
func (e *Engine) GetAllIncrements() ([]*configstore.Increment, error) {
	return e.holder.AllIncrements()
}

// GetAllTemplates returns every template, ordered by trigger then id
func (e *Engine) GetAllTemplates() ([]*configstore.Template, error) {
	ctx, err := e.holder.Context()
	if err != nil {
		return nil, err
	}
	out := []*configstore.Template{}
	for _, id := range ctx.TriggerIDs() {
		cfg, err := e.holder.Templates(id)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg.Templates()...)
	}
	return out, nil
}

// GetMatchingIncrements returns the increments applicable to input
func (e *Engine) GetMatchingIncrements(input interface{}) ([]*configstore.Increment, error) {
	return e.planner.MatchingIncrements(input)
}

// GetMatchingTemplates returns the templates applicable to input
func (e *Engine) GetMatchingTemplates(input interface{}) ([]*configstore.Template, error) {
	return e.planner.MatchingTemplates(input)
}

// GetMatchingTriggerIDs returns the ids of the triggers accepting input
func (e *Engine) GetMatchingTriggerIDs(input interface{}) ([]string, error) {
	return e.interp.MatchingTriggerIDs(input)
}

// ResolveTemplateDestinationPath returns where template would be written
// for input under targetRoot
func (e *Engine) ResolveTemplateDestinationPath(targetRoot string, template *configstore.Template, input interface{}) (string, error) {
	return e.planner.ResolveTemplateDestinationPath(targetRoot, template, input)
}

// CombinesMultipleInputs reports whether input is a container for some trigger
func (e *Engine) CombinesMultipleInputs(input interface{}) (bool, error) {
	return e.interp.CombinesMultipleInputs(input)
}

// ResolveContainers flattens input through the container triggers accepting it
func (e *Engine) ResolveContainers(input interface{}) ([]interface{}, error) {
	return e.interp.ResolveContainers(input)
}

// GetInputObjects returns the direct elements of a container input
func (e *Engine) GetInputObjects(input interface{}) ([]interface{}, error) {
	return e.interp.InputObjects(input, e.cfg.Generator.Charset, false)
}

// GetInputObjectsRecursively returns the elements of a container input,
// descending into nested containers
func (e *Engine) GetInputObjectsRecursively(input interface{}) ([]interface{}, error) {
	return e.interp.InputObjects(input, e.cfg.Generator.Charset, true)
}

// Read reads an input of technology from path. Reads are never cached.
func (e *Engine) Read(technology, path string, args ...interface{}) (interface{}, error) {
	return e.interp.Read(technology, path, e.cfg.Generator.Charset, args...)
}

// ModelBuilder returns the template model of input for the trigger with
// triggerID
func (e *Engine) ModelBuilder(input interface{}, triggerID string) (model.Model, error) {
	ctx, err := e.holder.Context()
	if err != nil {
		return nil, err
	}
	t, ok := ctx.Trigger(triggerID)
	if !ok {
		return nil, errors.NewNotFoundError("trigger %q not found", triggerID)
	}
	return e.models.Build(input, t)
}

// ModelBuilderFor returns the template model of input for the first trigger
// accepting it, in trigger id order
func (e *Engine) ModelBuilderFor(input interface{}) (model.Model, error) {
	triggers, err := e.interp.MatchingTriggers(input)
	if err != nil {
		return nil, err
	}
	if len(triggers) == 0 {
		return nil, errors.NewNotFoundError("no trigger matches %T", input)
	}
	return e.models.Build(input, triggers[0])
}

// Increment finds an increment by id. Ids may be qualified as
// "trigger/increment"; an unqualified id must be unique across triggers.
func (e *Engine) Increment(id string) (*configstore.Increment, error) {
	all, err := e.GetAllIncrements()
	if err != nil {
		return nil, err
	}
	items := make([]configstore.GenerableArtifact, len(all))
	for i, inc := range all {
		items[i] = inc
	}
	found, err := find(items, id, "increment")
	if err != nil {
		return nil, err
	}
	return found.(*configstore.Increment), nil
}

// Template finds a template by id, qualified as for Increment
func (e *Engine) Template(id string) (*configstore.Template, error) {
	all, err := e.GetAllTemplates()
	if err != nil {
		return nil, err
	}
	items := make([]configstore.GenerableArtifact, len(all))
	for i, tpl := range all {
		items[i] = tpl
	}
	found, err := find(items, id, "template")
	if err != nil {
		return nil, err
	}
	return found.(*configstore.Template), nil
}

func find(items []configstore.GenerableArtifact, id, kind string) (configstore.GenerableArtifact, error) {
	triggerID, artifactID, qualified := strings.Cut(id, "/")
	if !qualified {
		triggerID, artifactID = "", id
	}

	var hits []configstore.GenerableArtifact
	for _, item := range items {
		if item.ArtifactID() == artifactID && (triggerID == "" || item.OwningTriggerID() == triggerID) {
			hits = append(hits, item)
		}
	}

	switch len(hits) {
	case 0:
		return nil, errors.NewNotFoundError("%s %q not found", kind, id)
	case 1:
		return hits[0], nil
	}
	owners := make([]string, len(hits))
	for i, h := range hits {
		owners[i] = h.OwningTriggerID() + "/" + artifactID
	}
	return nil, errors.WithHintf(
		errors.NewInvalidRequestError("%s %q is defined by %d triggers", kind, id, len(hits)),
		"qualify it as one of %s", strings.Join(owners, ", "))
}

// Detect scans searchPath, relative to appRoot unless absolute, for
// renderings of increment
func (e *Engine) Detect(ctx context.Context, increment *configstore.Increment, searchPath, appRoot string) ([]detect.PatternMatch, error) {
	return e.detector.Detect(ctx, increment, searchPath, appRoot)
}

// DetectFiles scans an explicit file list for renderings of increment
func (e *Engine) DetectFiles(ctx context.Context, increment *configstore.Increment, files []string, appRoot string) ([]detect.PatternMatch, error) {
	return e.detector.DetectFiles(ctx, increment, files, appRoot)
}

// Reload drops parsed configuration and cached results, then reparses the
// context configuration so errors surface immediately
func (e *Engine) Reload() error {
	e.holder.Reload()
	if e.store != nil {
		e.store.Purge()
	}
	if _, err := e.holder.Context(); err != nil {
		logger.Warnw("Configuration reload failed",
			logger.FieldRoot, e.holder.Root(),
			logger.FieldKind, errors.Kind(err),
			logger.FieldError, err.Error())
		return err
	}
	logger.Infow("Configuration reloaded",
		logger.FieldRoot, e.holder.Root(),
		"generation", e.holder.Generation())
	return nil
}
