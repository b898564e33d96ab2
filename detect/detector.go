// Package detect recovers, from already generated and possibly edited
// source trees, which increment produced a file and which values were
// substituted into it.
package detect

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/inkr/configstore"
	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/logger"
	"github.com/teranos/inkr/plugin"
	"github.com/teranos/inkr/tmpl"
)

// DefaultTemplateSuffix is the file suffix of template bodies
const DefaultTemplateSuffix = ".tmpl"

// Matcher scans application files for renderings of templates.
// tmpl.PatternMatcher is the default implementation.
type Matcher interface {
	Detect(templatePaths []string, files []string, suffix string) ([]tmpl.RawMatch, error)
}

// PatternMatch is one detected application of an increment
type PatternMatch struct {
	Pattern *configstore.Increment `json:"-"`
	// VariableSubstitutions maps placeholder name to the recovered value
	VariableSubstitutions map[string]string `json:"variables"`
	// TemplateMatches maps template id to the file it was detected in
	TemplateMatches map[string]string `json:"templates"`
	// Ambiguous lists variables bound more than once within one template;
	// the last binding wins
	Ambiguous []string `json:"ambiguous,omitempty"`
}

// Options configure a Detector
type Options struct {
	// TemplateSuffix is stripped from template file names to find the
	// target extension (default .tmpl)
	TemplateSuffix string
	// Workers bounds file enumeration parallelism (default GOMAXPROCS)
	Workers int
}

// Detector orchestrates pattern detection for increments
type Detector struct {
	holder   *configstore.Holder
	registry *plugin.Registry
	matcher  Matcher
	opts     Options
}

// NewDetector creates a detector
func NewDetector(holder *configstore.Holder, registry *plugin.Registry, matcher Matcher, opts Options) *Detector {
	if opts.TemplateSuffix == "" {
		opts.TemplateSuffix = DefaultTemplateSuffix
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Detector{holder: holder, registry: registry, matcher: matcher, opts: opts}
}

// Detect scans searchPath for renderings of increment. A file is scanned
// alone; a directory is walked and filtered by the file filter of the
// increment's technology. A relative searchPath is taken relative to
// appRoot.
func (d *Detector) Detect(ctx context.Context, increment *configstore.Increment, searchPath, appRoot string) ([]PatternMatch, error) {
	if increment == nil {
		return nil, errors.NewInvalidRequestError("nil increment")
	}
	if searchPath == "" {
		return nil, errors.NewInvalidRequestError("empty search path")
	}

	increment, bundle, err := d.resolveIncrement(increment)
	if err != nil {
		return nil, err
	}

	files, err := d.enumerate(ctx, resolve(appRoot, searchPath), bundle.FileFilter)
	if err != nil {
		return nil, errors.WrapKindf(err, errors.ErrDetectionFailed, "enumerating %s", searchPath)
	}
	return d.detect(ctx, increment, files)
}

// DetectFiles scans an explicit file list. Relative entries are taken
// relative to appRoot.
func (d *Detector) DetectFiles(ctx context.Context, increment *configstore.Increment, files []string, appRoot string) ([]PatternMatch, error) {
	if increment == nil {
		return nil, errors.NewInvalidRequestError("nil increment")
	}
	if files == nil {
		return nil, errors.NewInvalidRequestError("nil file list")
	}
	increment, _, err := d.resolveIncrement(increment)
	if err != nil {
		return nil, err
	}

	resolved := make([]string, len(files))
	for i, f := range files {
		resolved[i] = resolve(appRoot, f)
	}
	return d.detect(ctx, increment, resolved)
}

// resolveIncrement looks increment up by trigger and id in the current
// configuration, so a caller holding an increment from before a Reload
// scans the templates now on disk
func (d *Detector) resolveIncrement(increment *configstore.Increment) (*configstore.Increment, plugin.Bundle, error) {
	t, err := d.holder.Trigger(increment.TriggerID)
	if err != nil {
		return nil, plugin.Bundle{}, err
	}
	cfg, err := d.holder.Templates(t.ID)
	if err != nil {
		return nil, plugin.Bundle{}, err
	}
	current, ok := cfg.Increment(increment.ID)
	if !ok {
		return nil, plugin.Bundle{}, errors.NewNotFoundError("increment %q is not defined by trigger %q", increment.ID, t.ID)
	}
	bundle, err := d.registry.Lookup(t.Type)
	if err != nil {
		return nil, plugin.Bundle{}, err
	}
	return current, bundle, nil
}

func (d *Detector) detect(ctx context.Context, increment *configstore.Increment, files []string) ([]PatternMatch, error) {
	log := logger.LoggerFromContext(logger.WithComponent(ctx, "detect"))

	paths, byPath, err := d.templatePaths(ctx, increment)
	if err != nil {
		return nil, errors.WrapKindf(err, errors.ErrDetectionFailed, "increment %q", increment.ID)
	}

	raw, err := d.matcher.Detect(paths, files, d.opts.TemplateSuffix)
	if err != nil {
		return nil, errors.WrapKindf(err, errors.ErrDetectionFailed, "increment %q", increment.ID)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapKind(err, errors.ErrDetectionFailed, "detection cancelled")
	}

	matches := make([]PatternMatch, len(raw))
	for i, r := range raw {
		m := PatternMatch{
			Pattern:               increment,
			VariableSubstitutions: r.Variables,
			TemplateMatches:       make(map[string]string, len(r.TemplateFiles)),
			Ambiguous:             r.Ambiguous,
		}
		for path, file := range r.TemplateFiles {
			m.TemplateMatches[byPath[path]] = file
		}
		if len(m.Ambiguous) > 0 {
			log.Warnw("Ambiguous pattern variables",
				logger.FieldIncrement, increment.ID,
				"variables", m.Ambiguous)
		}
		matches[i] = m
	}

	log.Infow("Detection finished",
		logger.FieldIncrement, increment.ID,
		logger.FieldCount, len(matches),
		"files", len(files))
	return matches, nil
}

// templatePaths resolves every template of increment to its absolute
// source, in template order, and indexes template ids by path
func (d *Detector) templatePaths(ctx context.Context, increment *configstore.Increment) ([]string, map[string]string, error) {
	paths := make([]string, len(increment.Templates))
	g, ctx := errgroup.WithContext(ctx)
	for i, t := range increment.Templates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			abs, err := filepath.Abs(t.AbsolutePath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(abs); err != nil {
				return errors.Wrapf(err, "template %q", t.ID)
			}
			paths[i] = abs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	byPath := make(map[string]string, len(paths))
	for i, p := range paths {
		byPath[p] = increment.Templates[i].ID
	}
	return paths, byPath, nil
}

// enumerate lists the files under root accepted by filter. A walker feeds
// candidates to filter workers.
func (d *Detector) enumerate(ctx context.Context, root, filter string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	if filter != "" && !doublestar.ValidatePattern(filter) {
		return nil, errors.NewConfigurationError("invalid file filter %q", filter)
	}

	g, ctx := errgroup.WithContext(ctx)
	candidates := make(chan string)

	g.Go(func() error {
		defer close(candidates)
		return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			select {
			case candidates <- path:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	var (
		mu    sync.Mutex
		files []string
	)
	for i := 0; i < d.opts.Workers; i++ {
		g.Go(func() error {
			for path := range candidates {
				ok, err := accepts(root, path, filter)
				if err != nil {
					return err
				}
				if ok {
					mu.Lock()
					files = append(files, path)
					mu.Unlock()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func accepts(root, path, filter string) (bool, error) {
	if filter == "" {
		return true, nil
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false, err
	}
	return doublestar.Match(filter, filepath.ToSlash(rel))
}

func resolve(appRoot, path string) string {
	if filepath.IsAbs(path) || appRoot == "" {
		return path
	}
	return filepath.Join(appRoot, path)
}
