package params

import (
	"sort"
	"strings"

	"codeberg.org/mutker/kerntune/internal/errors"
)

// Setting assigns a Value to a Name.
type Setting struct {
	Name  Name
	Value Value
}

// Point is one complete or partial assignment of tunables. Settings keep
// the order they were given in.
type Point struct {
	settings []Setting
}

// NewPoint validates settings against the vocabulary.
func NewPoint(settings ...Setting) (Point, error) {
	errFactory := errors.New()
	seen := make(map[Name]struct{}, len(settings))

	for _, s := range settings {
		if !s.Name.Known() {
			return Point{}, errFactory.WithData(ErrUnknownParameter, struct {
				Name string
			}{string(s.Name)})
		}
		if s.Value == nil || s.Value.Kind() != s.Name.Kind() {
			return Point{}, errFactory.WithData(ErrKindMismatch, struct {
				Name     string
				Expected string
			}{string(s.Name), s.Name.Kind().String()})
		}
		if _, dup := seen[s.Name]; dup {
			return Point{}, errFactory.WithData(ErrDuplicate, struct {
				Name string
			}{string(s.Name)})
		}
		seen[s.Name] = struct{}{}
	}

	out := make([]Setting, len(settings))
	copy(out, settings)

	return Point{settings: out}, nil
}

// ParsePoint builds a Point from textual key/value pairs, ordered by the
// canonical vocabulary order.
func ParsePoint(kv map[string]string) (Point, error) {
	settings := make([]Setting, 0, len(kv))
	for key, text := range kv {
		name, ok := Lookup(key)
		if !ok {
			return Point{}, errors.New().WithData(ErrUnknownParameter, struct {
				Name string
			}{key})
		}
		v, err := Parse(name, text)
		if err != nil {
			return Point{}, err
		}
		settings = append(settings, Setting{Name: name, Value: v})
	}
	sort.Slice(settings, func(i, j int) bool {
		return settings[i].Name.order() < settings[j].Name.order()
	})

	return NewPoint(settings...)
}

func (p Point) Len() int {
	return len(p.settings)
}

func (p Point) Empty() bool {
	return len(p.settings) == 0
}

// Settings returns a copy of the point's settings in order.
func (p Point) Settings() []Setting {
	out := make([]Setting, len(p.settings))
	copy(out, p.settings)

	return out
}

func (p Point) Get(name Name) (Value, bool) {
	for _, s := range p.settings {
		if s.Name == name {
			return s.Value, true
		}
	}

	return nil, false
}

// Only returns the settings of p whose sysctl key is in keys, in p's order.
func (p Point) Only(keys ...string) Point {
	keep := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keep[k] = struct{}{}
	}

	var out []Setting
	for _, s := range p.settings {
		if _, ok := keep[string(s.Name)]; ok {
			out = append(out, s)
		}
	}

	return Point{settings: out}
}

// Features returns the flattened numeric columns of every setting.
func (p Point) Features() map[string]float64 {
	out := make(map[string]float64)
	for _, s := range p.settings {
		cols := s.Name.Columns()
		vals := s.Value.Flatten()
		for i := range cols {
			if i < len(vals) {
				out[cols[i]] = vals[i]
			}
		}
	}

	return out
}

// Map returns the settings as sysctl key to textual value.
func (p Point) Map() map[string]string {
	out := make(map[string]string, len(p.settings))
	for _, s := range p.settings {
		out[string(s.Name)] = s.Value.String()
	}

	return out
}

func (p Point) String() string {
	parts := make([]string, len(p.settings))
	for i, s := range p.settings {
		parts[i] = string(s.Name) + "=" + s.Value.String()
	}

	return strings.Join(parts, ", ")
}
