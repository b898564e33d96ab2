package tmpl

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/logger"
	"golang.org/x/sync/errgroup"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Pattern is a template inverted into a regular expression with one group
// per placeholder occurrence
type Pattern struct {
	re     *regexp.Regexp
	groups []string // group index (1-based, minus one) -> placeholder path
}

// Binding is one occurrence of a pattern in a text
type Binding struct {
	Variables map[string]string
	// Ambiguous lists variables bound more than once with differing values;
	// the last occurrence wins
	Ambiguous []string
}

// Pattern compiles the template into a Pattern. Literal whitespace runs
// match any whitespace run, so reformatted output is still recognized.
func (t *Template) Pattern() (*Pattern, error) {
	segments := trimSegments(t.segments)
	if len(segments) == 0 {
		return nil, errors.New("template has no content to match")
	}

	var b strings.Builder
	var groups []string
	for i, seg := range segments {
		if seg.literal {
			b.WriteString(literalPattern(seg.content))
			continue
		}
		// Values are single-line. A trailing placeholder is greedy so it
		// does not stop after one character. A leading one has no literal
		// before it to stop at, so it binds a single token.
		switch {
		case i == len(segments)-1:
			fmt.Fprintf(&b, "(?P<v%d>[^\\n]+)", len(groups))
		case i == 0:
			fmt.Fprintf(&b, "(?P<v%d>\\S+?)", len(groups))
		default:
			fmt.Fprintf(&b, "(?P<v%d>[^\\n]+?)", len(groups))
		}
		groups = append(groups, seg.content)
	}

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, errors.Wrap(err, "template does not compile to a pattern")
	}
	return &Pattern{re: re, groups: groups}, nil
}

// trimSegments drops leading and trailing whitespace of the template body
func trimSegments(in []segment) []segment {
	out := append([]segment(nil), in...)
	if len(out) > 0 && out[0].literal {
		out[0].content = strings.TrimLeftFunc(out[0].content, isSpace)
		if out[0].content == "" {
			out = out[1:]
		}
	}
	if n := len(out); n > 0 && out[n-1].literal {
		out[n-1].content = strings.TrimRightFunc(out[n-1].content, isSpace)
		if out[n-1].content == "" {
			out = out[:n-1]
		}
	}
	return out
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func literalPattern(s string) string {
	parts := whitespaceRun.Split(s, -1)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(parts, `\s+`)
}

// FindAll returns every non-overlapping occurrence of the pattern in text
func (p *Pattern) FindAll(text string) []Binding {
	var out []Binding
	for _, m := range p.re.FindAllStringSubmatch(text, -1) {
		b := Binding{Variables: make(map[string]string, len(p.groups))}
		for i, name := range p.groups {
			value := m[i+1]
			if prev, seen := b.Variables[name]; seen && prev != value {
				b.Ambiguous = appendUnique(b.Ambiguous, name)
			}
			b.Variables[name] = value
		}
		out = append(out, b)
	}
	return out
}

// RawMatch is one consistent set of variable bindings found across the
// templates of a detection run
type RawMatch struct {
	Variables map[string]string
	// TemplateFiles maps template path to the file it was detected in
	TemplateFiles map[string]string
	Ambiguous     []string
}

// PatternMatcher scans application files for template renderings. It
// satisfies the detector's matching contract
// detect(templatePaths, files, suffix) -> matches.
type PatternMatcher struct {
	// Workers bounds concurrent file scans; zero means unbounded
	Workers int
}

type compiledTemplate struct {
	path    string
	ext     string // target extension hint, "" if unknown
	pattern *Pattern
}

type hit struct {
	template string
	file     string
	binding  Binding
}

// Detect compiles each template, scans files in parallel and joins the
// per-template bindings into matches whose shared variables agree. The
// extension left after stripping suffix from a template's name restricts
// the files it is matched against.
func (pm PatternMatcher) Detect(templatePaths []string, files []string, suffix string) ([]RawMatch, error) {
	templates := make([]compiledTemplate, 0, len(templatePaths))
	for _, path := range sortedCopy(templatePaths) {
		t, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		p, err := t.Pattern()
		if err != nil {
			return nil, errors.Wrapf(err, "template %s", path)
		}
		templates = append(templates, compiledTemplate{
			path:    path,
			ext:     filepath.Ext(strings.TrimSuffix(filepath.Base(path), suffix)),
			pattern: p,
		})
	}

	files = sortedCopy(files)
	perFile := make([][]hit, len(files))

	g := new(errgroup.Group)
	if pm.Workers > 0 {
		g.SetLimit(pm.Workers)
	}
	for i, file := range files {
		g.Go(func() error {
			hits, err := scanFile(file, templates)
			if err != nil {
				return err
			}
			perFile[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// template order, then file order
	var hits []hit
	for _, t := range templates {
		for _, fh := range perFile {
			for _, h := range fh {
				if h.template == t.path {
					hits = append(hits, h)
				}
			}
		}
	}

	matches := join(hits)
	logger.Debugw("Pattern scan finished",
		logger.FieldCount, len(matches),
		"templates", len(templates),
		"files", len(files))
	return matches, nil
}

func scanFile(file string, templates []compiledTemplate) ([]hit, error) {
	var candidates []compiledTemplate
	for _, t := range templates {
		if t.ext == "" || strings.EqualFold(filepath.Ext(file), t.ext) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", file)
	}
	text := string(data)

	var hits []hit
	for _, t := range candidates {
		for _, b := range t.pattern.FindAll(text) {
			hits = append(hits, hit{template: t.path, file: file, binding: b})
		}
	}
	return hits, nil
}

// join merges each hit into every match that has not yet seen its template
// and agrees on all shared variables. A hit merging nowhere opens a new match.
func join(hits []hit) []RawMatch {
	var matches []RawMatch
	for _, h := range hits {
		merged := false
		for i := range matches {
			m := &matches[i]
			if _, seen := m.TemplateFiles[h.template]; seen || !consistent(m.Variables, h.binding.Variables) {
				continue
			}
			for k, v := range h.binding.Variables {
				m.Variables[k] = v
			}
			m.TemplateFiles[h.template] = h.file
			for _, a := range h.binding.Ambiguous {
				m.Ambiguous = appendUnique(m.Ambiguous, a)
			}
			merged = true
		}
		if merged {
			continue
		}

		m := RawMatch{
			Variables:     make(map[string]string, len(h.binding.Variables)),
			TemplateFiles: map[string]string{h.template: h.file},
			Ambiguous:     append([]string(nil), h.binding.Ambiguous...),
		}
		for k, v := range h.binding.Variables {
			m.Variables[k] = v
		}
		matches = append(matches, m)
	}

	for i := range matches {
		sort.Strings(matches[i].Ambiguous)
	}
	return matches
}

func consistent(a, b map[string]string) bool {
	for k, v := range b {
		if prev, ok := a[k]; ok && prev != v {
			return false
		}
	}
	return true
}

func appendUnique(list []string, s string) []string {
	for _, e := range list {
		if e == s {
			return list
		}
	}
	return append(list, s)
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
