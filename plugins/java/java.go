// Package java is the technology plugin for Java sources. Files are read
// into *Class, directories into *Package containers.
package java

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/teranos/inkr/errors"
	"github.com/teranos/inkr/plugin"
)

// Technology is the id triggers use to reference this plugin
const Technology = "java"

// Package is a source directory: its classes and sub-packages
type Package struct {
	Name     string
	Path     string
	Classes  []*Class
	Packages []*Package
}

// CacheKey implements plugin.Keyed
func (p *Package) CacheKey() string {
	var b strings.Builder
	b.WriteString(p.Path)
	b.WriteString("{")
	for _, c := range p.Classes {
		b.WriteString(c.CacheKey())
		b.WriteString(";")
	}
	for _, sub := range p.Packages {
		b.WriteString(sub.CacheKey())
	}
	b.WriteString("}")
	return b.String()
}

// CacheKey implements plugin.Keyed
func (c *Class) CacheKey() string {
	var b strings.Builder
	b.WriteString(c.Kind)
	b.WriteString(" ")
	b.WriteString(c.FQN())
	b.WriteString(" @")
	b.WriteString(strings.Join(c.Annotations, ","))
	for _, f := range c.Fields {
		b.WriteString(" ")
		b.WriteString(f.Type)
		b.WriteString(":")
		b.WriteString(f.Name)
	}
	return b.String()
}

// Bundle returns the capability set of the java technology
func Bundle() plugin.Bundle {
	return plugin.Bundle{
		Metadata: plugin.Metadata{
			Name:        Technology,
			Version:     "1.0.0",
			Description: "Java source classes and packages",
		},
		Reader:       Reader{},
		Matcher:      Matcher{},
		Resolver:     Resolver{},
		Contributors: []plugin.ModelContributor{Contributor{}},
		FileFilter:   "**/*.java",
	}
}

func init() {
	plugin.Provide(Bundle())
}

// Reader reads .java files and source directories
type Reader struct{}

// Read implements plugin.InputReader
func (r Reader) Read(path string, charset string, args ...interface{}) (interface{}, error) {
	if err := plugin.CheckCharset(charset); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read java input %s", path)
	}
	if info.IsDir() {
		return readPackage(path, charset)
	}
	return readClass(path, charset)
}

func readClass(path, charset string) (*Class, error) {
	data, err := plugin.ReadFile(path, charset)
	if err != nil {
		if errors.IsInvalidRequestError(err) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "cannot read java input %s", path)
	}
	c, ok := Parse(string(data))
	if !ok {
		return nil, errors.NewInvalidRequestError("no type declaration in %s", path)
	}
	return c, nil
}

func readPackage(dir, charset string) (*Package, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot list %s", dir)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	p := &Package{Name: filepath.Base(dir), Path: dir}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		switch {
		case e.IsDir():
			sub, err := readPackage(path, charset)
			if err != nil {
				return nil, err
			}
			p.Packages = append(p.Packages, sub)
		case strings.HasSuffix(e.Name(), ".java"):
			c, err := readClass(path, charset)
			if err != nil {
				return nil, err
			}
			p.Classes = append(p.Classes, c)
		}
	}
	if len(p.Classes) > 0 && p.Classes[0].Package != "" {
		p.Name = p.Classes[0].Package
	}
	return p, nil
}

// Matcher evaluates java matchers:
//   - fqn: regular expression on the fully qualified class name
//   - package: regular expression on the package of a class or a package container
//   - annotation: simple or qualified annotation name present on the class
type Matcher struct{}

// MatcherTypes implements plugin.TriggerMatcher
func (Matcher) MatcherTypes() []string {
	return []string{"fqn", "package", "annotation"}
}

// Matches implements plugin.TriggerMatcher
func (Matcher) Matches(m plugin.Matcher, input interface{}) (bool, error) {
	switch m.Type {
	case "fqn":
		c, ok := input.(*Class)
		if !ok || c == nil {
			return false, nil
		}
		return fullMatch(m.Value, c.FQN())

	case "package":
		switch v := input.(type) {
		case *Class:
			return fullMatch(m.Value, v.Package)
		case *Package:
			return fullMatch(m.Value, v.Name)
		}
		return false, nil

	case "annotation":
		c, ok := input.(*Class)
		if !ok || c == nil {
			return false, nil
		}
		want := strings.TrimPrefix(m.Value, "@")
		if i := strings.LastIndex(want, "."); i >= 0 {
			want = want[i+1:]
		}
		for _, a := range c.Annotations {
			if a == want {
				return true, nil
			}
		}
		return false, nil
	}

	return false, errors.NewConfigurationError("java technology has no matcher type %q", m.Type)
}

func fullMatch(expr, s string) (bool, error) {
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return false, errors.NewConfigurationError("invalid matcher expression %q: %v", expr, err)
	}
	return re.MatchString(s), nil
}

// Resolver flattens packages into classes and sub-packages
type Resolver struct{}

// IsContainer implements plugin.ContainerResolver
func (Resolver) IsContainer(input interface{}) bool {
	p, ok := input.(*Package)
	return ok && p != nil
}

// Elements implements plugin.ContainerResolver
func (Resolver) Elements(input interface{}, charset string) ([]interface{}, error) {
	if err := plugin.CheckCharset(charset); err != nil {
		return nil, err
	}
	p, ok := input.(*Package)
	if !ok || p == nil {
		return nil, errors.NewInvalidRequestError("%T is not a java package", input)
	}
	out := make([]interface{}, 0, len(p.Classes)+len(p.Packages))
	for _, c := range p.Classes {
		out = append(out, c)
	}
	for _, sub := range p.Packages {
		out = append(out, sub)
	}
	return out, nil
}

// Contributor models a class as pojo.* plus flat className and packageName
type Contributor struct{}

// Name implements plugin.ModelContributor
func (Contributor) Name() string { return "java.pojo" }

// Contribute implements plugin.ModelContributor
func (Contributor) Contribute(input interface{}) (map[string]interface{}, error) {
	c, ok := input.(*Class)
	if !ok || c == nil {
		return nil, errors.NewInvalidRequestError("java contributor cannot model %T", input)
	}

	fields := make([]interface{}, 0, len(c.Fields))
	names := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		fields = append(fields, map[string]interface{}{
			"name":        f.Name,
			"type":        f.Type,
			"annotations": append([]string(nil), f.Annotations...),
		})
		names = append(names, f.Name)
	}

	return map[string]interface{}{
		"className":   c.Name,
		"packageName": c.Package,
		"fqn":         c.FQN(),
		"pojo": map[string]interface{}{
			"name":        c.Name,
			"package":     c.Package,
			"kind":        c.Kind,
			"fields":      fields,
			"fieldNames":  names,
			"annotations": append([]string(nil), c.Annotations...),
		},
	}, nil
}
