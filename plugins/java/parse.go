package java

import (
	"regexp"
	"strings"
)

// Field is a class member variable
type Field struct {
	Name        string
	Type        string
	Annotations []string
}

// Class is the structural summary of one Java source file
type Class struct {
	Package     string
	Name        string
	Kind        string // class, interface, enum or record
	Annotations []string
	Fields      []Field
}

// FQN returns the fully qualified class name
func (c *Class) FQN() string {
	if c.Package == "" {
		return c.Name
	}
	return c.Package + "." + c.Name
}

var (
	commentPattern    = regexp.MustCompile(`(?s)/\*.*?\*/|//[^\n]*`)
	packagePattern    = regexp.MustCompile(`(?m)^\s*package\s+([\w.]+)\s*;`)
	typePattern       = regexp.MustCompile(`((?:@[\w.]+(?:\([^)]*\))?\s*)*)(?:(?:public|protected|private|abstract|final|static|sealed)\s+)*\b(class|interface|enum|record)\s+(\w+)`)
	annotationPattern = regexp.MustCompile(`@([\w.]+)`)
	fieldPattern      = regexp.MustCompile(`(?m)^\s*((?:@[\w.]+(?:\([^)]*\))?\s+)*)((?:(?:private|protected|public|static|final|transient|volatile)\s+)+)([\w.$]+(?:<[^;=()]*>)?(?:\[\])*)\s+(\w+)\s*(?:=[^;]*)?;`)
)

// Parse extracts package, the first top-level type, its annotations and its
// fields from Java source. It is a structural scan, not a compiler: it
// returns ok=false when no type declaration is found.
func Parse(src string) (*Class, bool) {
	src = commentPattern.ReplaceAllString(src, "")

	c := &Class{}
	if m := packagePattern.FindStringSubmatch(src); m != nil {
		c.Package = m[1]
	}

	loc := typePattern.FindStringSubmatchIndex(src)
	if loc == nil {
		return nil, false
	}
	c.Annotations = annotations(src[loc[2]:loc[3]])
	c.Kind = src[loc[4]:loc[5]]
	c.Name = src[loc[6]:loc[7]]

	body := src[loc[1]:]
	for _, m := range fieldPattern.FindAllStringSubmatch(body, -1) {
		if strings.Contains(m[2], "static") {
			continue
		}
		c.Fields = append(c.Fields, Field{
			Name:        m[4],
			Type:        m[3],
			Annotations: annotations(m[1]),
		})
	}

	return c, true
}

func annotations(s string) []string {
	var out []string
	for _, m := range annotationPattern.FindAllStringSubmatch(s, -1) {
		name := m[1]
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[i+1:]
		}
		out = append(out, name)
	}
	return out
}
