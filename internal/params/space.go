package params

import (
	"iter"
	"math"

	"codeberg.org/mutker/kerntune/internal/errors"
)

// Dimension lists the candidate values for one parameter.
type Dimension struct {
	Name   Name
	Values []Value
}

// Space is the Cartesian product of its dimensions. It holds no iteration
// state; every call to All or First starts a fresh enumeration.
type Space struct {
	dims []Dimension
}

// NewSpace validates dims against the vocabulary.
func NewSpace(dims ...Dimension) (*Space, error) {
	errFactory := errors.New()
	seen := make(map[Name]struct{}, len(dims))

	for _, d := range dims {
		if !d.Name.Known() {
			return nil, errFactory.WithData(ErrUnknownParameter, struct {
				Name string
			}{string(d.Name)})
		}
		if _, dup := seen[d.Name]; dup {
			return nil, errFactory.WithData(ErrDuplicate, struct {
				Name string
			}{string(d.Name)})
		}
		seen[d.Name] = struct{}{}
		for _, v := range d.Values {
			if v == nil || v.Kind() != d.Name.Kind() {
				return nil, errFactory.WithData(ErrKindMismatch, struct {
					Name     string
					Expected string
				}{string(d.Name), d.Name.Kind().String()})
			}
		}
	}

	out := make([]Dimension, len(dims))
	for i, d := range dims {
		vals := make([]Value, len(d.Values))
		copy(vals, d.Values)
		out[i] = Dimension{Name: d.Name, Values: vals}
	}

	return &Space{dims: out}, nil
}

// Dimensions returns the parameter names in input order.
func (s *Space) Dimensions() []Name {
	out := make([]Name, len(s.dims))
	for i, d := range s.dims {
		out[i] = d.Name
	}

	return out
}

// Size is the number of points in the full product, saturating at
// math.MaxInt. An empty space has size 0.
func (s *Space) Size() int {
	if len(s.dims) == 0 {
		return 0
	}
	size := 1
	for _, d := range s.dims {
		n := len(d.Values)
		if n == 0 {
			return 0
		}
		if size > math.MaxInt/n {
			return math.MaxInt
		}
		size *= n
	}

	return size
}

// All yields every point lexicographically by input order: the last
// dimension varies fastest.
func (s *Space) All() iter.Seq[Point] {
	return func(yield func(Point) bool) {
		if s.Size() == 0 {
			return
		}
		idx := make([]int, len(s.dims))
		for {
			settings := make([]Setting, len(s.dims))
			for i, d := range s.dims {
				settings[i] = Setting{Name: d.Name, Value: d.Values[idx[i]]}
			}
			if !yield(Point{settings: settings}) {
				return
			}

			// odometer increment
			i := len(idx) - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(s.dims[i].Values) {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}

// First returns at most n points from the start of the enumeration. n <= 0
// means unbounded.
func (s *Space) First(n int) []Point {
	var out []Point
	if n > 0 {
		out = make([]Point, 0, min(n, s.Size()))
	}
	for p := range s.All() {
		if n > 0 && len(out) >= n {
			break
		}
		out = append(out, p)
	}

	return out
}
