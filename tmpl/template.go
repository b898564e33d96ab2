// Package tmpl renders {{path.to.value}} templates against a model and
// inverts them into patterns that recover the substituted values from
// rendered text.
//
// Placeholders use dot paths into the model:
//   - {{className}} - top-level model value
//   - {{pojo.name}} - nested map value
//   - {{variables.idField}} - same as {{idField}} when the model carries a variables alias
package tmpl

import (
	"encoding/json"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/teranos/inkr/errors"
)

// Template is a parsed template with literal and placeholder segments
type Template struct {
	raw      string
	segments []segment
}

// segment is either a literal string or a placeholder
type segment struct {
	literal bool
	content string // literal: the text; placeholder: the dot path
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)

// Parse creates a Template from a raw template string
func Parse(raw string) (*Template, error) {
	if raw == "" {
		return nil, errors.New("empty template")
	}

	t := &Template{raw: raw}

	matches := placeholderPattern.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		t.segments = []segment{{literal: true, content: raw}}
		return t, nil
	}

	var segments []segment
	lastEnd := 0

	for _, match := range matches {
		// match[0]:match[1] is {{field}}, match[2]:match[3] the field
		start, end := match[0], match[1]
		field := raw[match[2]:match[3]]

		if start > lastEnd {
			segments = append(segments, segment{literal: true, content: raw[lastEnd:start]})
		}

		if strings.HasSuffix(field, ".") || strings.Contains(field, "..") {
			return nil, errors.Newf("invalid placeholder {{%s}}: empty path element", field)
		}
		segments = append(segments, segment{content: field})

		lastEnd = end
	}

	if lastEnd < len(raw) {
		segments = append(segments, segment{literal: true, content: raw[lastEnd:]})
	}

	t.segments = segments
	return t, nil
}

// ParseFile reads and parses a template body
func ParseFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read template %s", path)
	}
	t, err := Parse(string(data))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse template %s", path)
	}
	return t, nil
}

// Execute interpolates the template with values from model. A placeholder
// without a value is an error, never an empty substitution.
func (t *Template) Execute(model map[string]interface{}) (string, error) {
	var result strings.Builder
	result.Grow(len(t.raw) * 2)

	for _, seg := range t.segments {
		if seg.literal {
			result.WriteString(seg.content)
			continue
		}

		value, ok := Lookup(model, seg.content)
		if !ok {
			return "", errors.Mark(
				errors.Newf("no value for {{%s}}", seg.content),
				errors.ErrTemplateRender)
		}
		result.WriteString(ValueToString(value))
	}

	return result.String(), nil
}

// Lookup navigates a dot-separated path in the model
func Lookup(model map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = model

	for _, part := range parts {
		switch v := current.(type) {
		case map[string]interface{}:
			val, ok := v[part]
			if !ok {
				return nil, false
			}
			current = val
		case map[string]string:
			val, ok := v[part]
			if !ok {
				return nil, false
			}
			current = val
		default:
			return nil, false
		}
	}

	return current, true
}

// ValueToString converts a model value to its rendered form
func ValueToString(v interface{}) string {
	if v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []string:
		return strings.Join(val, ", ")
	default:
		return toJSON(val)
	}
}

func toJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// GetPlaceholders returns all placeholder paths in order of appearance,
// repeats included
func (t *Template) GetPlaceholders() []string {
	var placeholders []string
	for _, seg := range t.segments {
		if !seg.literal {
			placeholders = append(placeholders, seg.content)
		}
	}
	return placeholders
}

// Raw returns the original template string
func (t *Template) Raw() string {
	return t.raw
}

// Renderer renders template files. It satisfies the generator's rendering
// contract render(template, model) -> text.
type Renderer struct{}

// Render reads the template at path and executes it against model
func (Renderer) Render(path string, model map[string]interface{}) (string, error) {
	t, err := ParseFile(path)
	if err != nil {
		return "", errors.Mark(err, errors.ErrTemplateRender)
	}
	out, err := t.Execute(model)
	if err != nil {
		return "", errors.Wrapf(err, "rendering %s", path)
	}
	return out, nil
}

// RenderString parses and executes an inline expression such as a
// destination path
func RenderString(expr string, model map[string]interface{}) (string, error) {
	t, err := Parse(expr)
	if err != nil {
		return "", errors.Mark(err, errors.ErrTemplateRender)
	}
	return t.Execute(model)
}
