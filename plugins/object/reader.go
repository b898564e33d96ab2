package object

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/plugin"
	"gopkg.in/yaml.v3"
)

var documentExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// Reader reads documents into *Input and directories into *Collection
type Reader struct {
	charset   string
	overrides map[string]interface{}
}

// Read implements plugin.InputReader. A document's name is its "name" value
// when that is a string, else the file name without extension.
//
// Each string arg of the form key=value overrides a top-level value on every
// document read; the value is parsed as YAML, so isEntity=true is a bool.
func (r Reader) Read(path string, charset string, args ...interface{}) (interface{}, error) {
	if err := plugin.CheckCharset(charset); err != nil {
		return nil, err
	}
	overrides, err := parseOverrides(args)
	if err != nil {
		return nil, err
	}
	r.charset = charset
	r.overrides = overrides

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read object input %s", path)
	}
	if info.IsDir() {
		return r.readDir(path)
	}
	return r.readDocument(path)
}

func (r Reader) readDir(dir string) (*Collection, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot list %s", dir)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	c := &Collection{Name: filepath.Base(dir)}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			sub, err := r.readDir(path)
			if err != nil {
				return nil, err
			}
			c.Items = append(c.Items, sub)
			continue
		}
		if !documentExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		doc, err := r.readDocument(path)
		if err != nil {
			return nil, err
		}
		c.Items = append(c.Items, doc)
	}
	return c, nil
}

func (r Reader) readDocument(path string) (*Input, error) {
	data, err := plugin.ReadFile(path, r.charset)
	if err != nil {
		if errors.IsInvalidRequestError(err) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "cannot read object input %s", path)
	}

	// JSON documents are valid YAML
	values := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, errors.WithDetailf(
			errors.NewInvalidRequestError("malformed object document %s", path),
			"%v", err)
	}

	for k, v := range r.overrides {
		values[k] = v
	}

	name, _ := values["name"].(string)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &Input{Name: name, Values: values}, nil
}

func parseOverrides(args []interface{}) (map[string]interface{}, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(args))
	for _, a := range args {
		s, ok := a.(string)
		if !ok {
			return nil, errors.NewInvalidRequestError("object reader args must be key=value strings, got %T", a)
		}
		key, raw, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, errors.NewInvalidRequestError("object reader arg %q is not key=value", s)
		}
		var v interface{}
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		out[strings.TrimSpace(key)] = v
	}
	return out, nil
}
