// Package object is the technology plugin for generic structured inputs:
// YAML or JSON documents read into name/value maps.
//
// Matchers:
//   - tag: "key=value", true if Values[key] renders as value
//   - has: "key", true if Values contains key
//   - name: regular expression on the input name (full match)
//   - collection: regular expression on a collection name (container matcher)
package object

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/plugin"
)

// Technology is the id triggers use to reference this plugin
const Technology = "object"

// Input is one structured document
type Input struct {
	Name   string
	Values map[string]interface{}
}

// CacheKey implements plugin.Keyed
func (i *Input) CacheKey() string {
	data, err := json.Marshal(i.Values)
	if err != nil {
		// unmarshalable values fall back to their printed form
		data = []byte(fmt.Sprintf("%v", i.Values))
	}
	return i.Name + "|" + string(data)
}

// Collection wraps further inputs: *Input or *Collection
type Collection struct {
	Name  string
	Items []interface{}
}

// CacheKey implements plugin.Keyed. A collection containing itself is keyed
// with a cycle marker instead of recursing.
func (c *Collection) CacheKey() string {
	var b strings.Builder
	c.writeKey(&b, map[*Collection]bool{})
	return b.String()
}

func (c *Collection) writeKey(b *strings.Builder, visiting map[*Collection]bool) {
	if visiting[c] {
		fmt.Fprintf(b, "@cycle:%s", c.Name)
		return
	}
	visiting[c] = true
	defer delete(visiting, c)

	b.WriteString(c.Name)
	b.WriteString("[")
	for i, item := range c.Items {
		if i > 0 {
			b.WriteString(",")
		}
		switch v := item.(type) {
		case *Collection:
			v.writeKey(b, visiting)
		case plugin.Keyed:
			b.WriteString(v.CacheKey())
		default:
			fmt.Fprintf(b, "%T:%v", item, item)
		}
	}
	b.WriteString("]")
}

// Bundle returns the capability set of the object technology
func Bundle() plugin.Bundle {
	return plugin.Bundle{
		Metadata: plugin.Metadata{
			Name:        Technology,
			Version:     "1.0.0",
			Description: "Structured YAML/JSON documents",
		},
		Reader:       Reader{},
		Matcher:      Matcher{},
		Resolver:     Resolver{},
		Contributors: []plugin.ModelContributor{Contributor{}},
		FileFilter:   "**/*.{yaml,yml,json}",
	}
}

func init() {
	plugin.Provide(Bundle())
}

// Matcher evaluates object matchers
type Matcher struct{}

// MatcherTypes implements plugin.TriggerMatcher
func (Matcher) MatcherTypes() []string {
	return []string{"tag", "has", "name", "collection"}
}

// Matches implements plugin.TriggerMatcher
func (Matcher) Matches(m plugin.Matcher, input interface{}) (bool, error) {
	switch m.Type {
	case "tag":
		in, ok := input.(*Input)
		if !ok || in == nil {
			return false, nil
		}
		key, want, found := strings.Cut(m.Value, "=")
		if !found {
			return false, errors.NewConfigurationError("tag matcher %q: expected key=value", m.Value)
		}
		v, present := in.Values[strings.TrimSpace(key)]
		return present && render(v) == strings.TrimSpace(want), nil

	case "has":
		in, ok := input.(*Input)
		if !ok || in == nil {
			return false, nil
		}
		_, present := in.Values[m.Value]
		return present, nil

	case "name":
		in, ok := input.(*Input)
		if !ok || in == nil {
			return false, nil
		}
		return fullMatch(m.Value, in.Name)

	case "collection":
		c, ok := input.(*Collection)
		if !ok || c == nil {
			return false, nil
		}
		return fullMatch(m.Value, c.Name)
	}

	return false, errors.NewConfigurationError("object technology has no matcher type %q", m.Type)
}

func fullMatch(expr, s string) (bool, error) {
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return false, errors.NewConfigurationError("invalid matcher expression %q: %v", expr, err)
	}
	return re.MatchString(s), nil
}

func render(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Resolver flattens collections
type Resolver struct{}

// IsContainer implements plugin.ContainerResolver
func (Resolver) IsContainer(input interface{}) bool {
	c, ok := input.(*Collection)
	return ok && c != nil
}

// Elements implements plugin.ContainerResolver
func (Resolver) Elements(input interface{}, charset string) ([]interface{}, error) {
	if err := plugin.CheckCharset(charset); err != nil {
		return nil, err
	}
	c, ok := input.(*Collection)
	if !ok || c == nil {
		return nil, errors.NewInvalidRequestError("%T is not an object collection", input)
	}
	return append([]interface{}(nil), c.Items...), nil
}

// Contributor exposes the document values plus its name
type Contributor struct{}

// Name implements plugin.ModelContributor
func (Contributor) Name() string { return "object.values" }

// Contribute implements plugin.ModelContributor
func (Contributor) Contribute(input interface{}) (map[string]interface{}, error) {
	in, ok := input.(*Input)
	if !ok || in == nil {
		return nil, errors.NewInvalidRequestError("object contributor cannot model %T", input)
	}
	out := make(map[string]interface{}, len(in.Values)+1)
	for k, v := range in.Values {
		out[k] = v
	}
	if _, set := out["name"]; !set {
		out["name"] = in.Name
	}
	return out, nil
}
