// Package plugin provides the technology plugin architecture for inkr.
//
// A technology plugin (e.g. "java", "object") contributes the capabilities
// needed to generate from one kind of input:
//   - an InputReader that turns a file or directory into an input object
//   - a TriggerMatcher that evaluates trigger matchers against inputs
//   - an optional ContainerResolver for inputs wrapping several leaf inputs
//   - ModelContributors that assemble the template model
//
// Plugins are compiled in. Each plugin package calls Provide from init(), and
// the engine builds an immutable Registry once at startup from the compiled
// set, filtered by configuration and the plugins.toml manifest.
package plugin

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Bundle is the capability set one technology registers
type Bundle struct {
	Metadata Metadata

	// Reader reads inputs from disk; nil means the plugin only matches
	// inputs constructed by callers
	Reader InputReader

	// Matcher evaluates trigger and container matchers
	Matcher TriggerMatcher

	// Resolver flattens container inputs; nil if the technology has none
	Resolver ContainerResolver

	// Contributors assemble the template model, applied in order
	Contributors []ModelContributor

	// FileFilter is a doublestar glob selecting files this technology can
	// read during pattern detection (e.g. "**/*.java")
	FileFilter string
}

// Metadata describes a technology plugin
type Metadata struct {
	// Name is the technology identifier referenced by triggers (e.g. "java")
	Name string

	// Version is the plugin version (semver)
	Version string

	// RequiresVersion is the required inkr version (semver constraint)
	RequiresVersion string

	// Description is a human-readable description
	Description string
}

// Matcher is one matcher declaration as seen by a plugin
type Matcher struct {
	Type  string
	Value string
}

// InputReader reads input objects from disk
type InputReader interface {
	// Read reads the file or directory at path. Extra arguments are
	// technology specific.
	Read(path string, charset string, args ...interface{}) (interface{}, error)
}

// TriggerMatcher evaluates matcher declarations against an input
type TriggerMatcher interface {
	// Matches reports whether input satisfies m. Unknown matcher types are
	// an error, not a mismatch.
	Matches(m Matcher, input interface{}) (bool, error)

	// MatcherTypes lists the matcher types this plugin understands
	MatcherTypes() []string
}

// ContainerResolver flattens container inputs
type ContainerResolver interface {
	// IsContainer reports whether input wraps further inputs
	IsContainer(input interface{}) bool

	// Elements returns the direct children of a container input
	Elements(input interface{}, charset string) ([]interface{}, error)
}

// ModelContributor contributes named values to the template model
type ModelContributor interface {
	Name() string
	Contribute(input interface{}) (map[string]interface{}, error)
}

// ContributorFunc adapts a function to ModelContributor
type ContributorFunc struct {
	ID string
	Fn func(input interface{}) (map[string]interface{}, error)
}

// Name implements ModelContributor
func (c ContributorFunc) Name() string { return c.ID }

// Contribute implements ModelContributor
func (c ContributorFunc) Contribute(input interface{}) (map[string]interface{}, error) {
	return c.Fn(input)
}

// Keyed is implemented by inputs that provide their own value-equality key.
// Inputs that don't are keyed by their JSON encoding only when they are plain
// data (scalars, strings, and maps, slices or arrays of plain data).
type Keyed interface {
	CacheKey() string
}

// Key returns a value-equality key for input. ok is false when input cannot
// be keyed; callers must then treat it as unique. Structs and pointers that
// don't implement Keyed are never keyed, since their JSON encoding drops
// unexported and `json:"-"` state.
func Key(input interface{}) (key string, ok bool) {
	if input == nil {
		return "nil", true
	}
	if k, isKeyed := input.(Keyed); isKeyed {
		return fmt.Sprintf("%T:%s", input, k.CacheKey()), true
	}
	if !isPlain(reflect.ValueOf(input)) {
		return "", false
	}
	// encoding/json sorts map keys, so equal values encode identically
	data, err := json.Marshal(input)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%T:%s", input, data), true
}

func isPlain(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Interface:
		return v.IsNil() || isPlain(v.Elem())
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if !isPlain(v.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return false
		}
		iter := v.MapRange()
		for iter.Next() {
			if !isPlain(iter.Value()) {
				return false
			}
		}
		return true
	}
	return false
}

// Identity returns a comparable identity for input within one resolution
// pass. Reference types are identified by address, values by Key.
func Identity(input interface{}) interface{} {
	if input == nil {
		return nil
	}
	v := reflect.ValueOf(input)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return fmt.Sprintf("%T:nil", input)
		}
		return fmt.Sprintf("%T@%x", input, v.Pointer())
	}
	if k, ok := Key(input); ok {
		return k
	}
	return fmt.Sprintf("%T:%v", input, input)
}
