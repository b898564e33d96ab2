package configstore

import (
	"sync"

	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/logger"
	"github.com/teranos/inkr/plugin"
)

// Holder lazily loads and keeps the configuration of one root. Reads are
// concurrent; Reload drops everything so the next read parses from disk.
type Holder struct {
	root     string
	registry *plugin.Registry

	mu         sync.RWMutex
	generation uint64
	context    *ContextConfiguration
	templates  map[string]*TemplatesConfiguration
}

// NewHolder creates a holder for a configuration root
func NewHolder(root string, registry *plugin.Registry) *Holder {
	return &Holder{
		root:      root,
		registry:  registry,
		templates: make(map[string]*TemplatesConfiguration),
	}
}

// Root returns the configuration root this holder reads
func (h *Holder) Root() string {
	return h.root
}

// Generation increases with every Reload
func (h *Holder) Generation() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.generation
}

// Context returns the parsed context configuration
func (h *Holder) Context() (*ContextConfiguration, error) {
	h.mu.RLock()
	ctx := h.context
	h.mu.RUnlock()
	if ctx != nil {
		return ctx, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.context != nil {
		return h.context, nil
	}

	ctx, err := LoadContextConfiguration(h.root, h.registry)
	if err != nil {
		return nil, err
	}
	h.context = ctx
	logger.Debugw("Loaded context configuration",
		logger.FieldRoot, ctx.Root,
		logger.FieldCount, len(ctx.ids))
	return ctx, nil
}

// Trigger returns a trigger by id. An undefined id is a configuration error:
// callers reach this through references held in configuration.
func (h *Holder) Trigger(id string) (*Trigger, error) {
	ctx, err := h.Context()
	if err != nil {
		return nil, err
	}
	t, ok := ctx.Trigger(id)
	if !ok {
		return nil, errors.WithHintf(
			errors.NewConfigurationError("trigger %q is not defined", id),
			"defined triggers: %v", ctx.ids)
	}
	return t, nil
}

// Templates returns the templates configuration of a trigger
func (h *Holder) Templates(triggerID string) (*TemplatesConfiguration, error) {
	for {
		h.mu.RLock()
		cfg := h.templates[triggerID]
		gen := h.generation
		h.mu.RUnlock()
		if cfg != nil {
			return cfg, nil
		}

		trigger, err := h.Trigger(triggerID)
		if err != nil {
			return nil, err
		}

		cfg, stored, err := h.loadTemplates(gen, trigger)
		if err != nil || stored {
			return cfg, err
		}
		// a Reload ran since trigger was read; resolve it again
	}
}

// loadTemplates parses the templates of trigger and stores them unless the
// holder was reloaded after generation gen. stored is false in that case.
func (h *Holder) loadTemplates(gen uint64, trigger *Trigger) (cfg *TemplatesConfiguration, stored bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.generation != gen {
		return nil, false, nil
	}
	if cfg := h.templates[trigger.ID]; cfg != nil {
		return cfg, true, nil
	}

	cfg, err = LoadTemplatesConfiguration(h.root, trigger)
	if err != nil {
		return nil, false, err
	}
	h.templates[trigger.ID] = cfg
	logger.Debugw("Loaded templates configuration",
		logger.FieldTrigger, trigger.ID,
		logger.FieldCount, len(cfg.templates))
	return cfg, true, nil
}

// AllIncrements returns the increments of every trigger, ordered by trigger
// id then increment id
func (h *Holder) AllIncrements() ([]*Increment, error) {
	ctx, err := h.Context()
	if err != nil {
		return nil, err
	}
	var out []*Increment
	for _, id := range ctx.ids {
		cfg, err := h.Templates(id)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg.Increments()...)
	}
	return out, nil
}

// Reload discards all parsed configuration
func (h *Holder) Reload() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.context = nil
	h.templates = make(map[string]*TemplatesConfiguration)
	h.generation++
	logger.Debugw("Configuration dropped for reload",
		logger.FieldRoot, h.root)
}
