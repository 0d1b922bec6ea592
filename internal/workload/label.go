package workload

import (
	"strings"

	"codeberg.org/mutker/kerntune/internal/errors"
)

// Label classifies the dominant resource pressure on the host.
type Label string

const (
	CPUBound    Label = "cpu_bound"
	IOBound     Label = "io_bound"
	MemoryBound Label = "memory_bound"
	Mixed       Label = "mixed"
	Unknown     Label = "unknown"
)

// Labels returns the concrete workload classes in model output order.
func Labels() []Label {
	return []Label{CPUBound, IOBound, MemoryBound, Mixed}
}

// Parse accepts one of the concrete labels. Unknown is not a valid input.
func Parse(s string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if l.Concrete() {
		return l, nil
	}

	return "", errors.New().WithData(ErrInvalidLabel, struct {
		Label string
		Valid string
	}{s, "cpu_bound, io_bound, memory_bound, mixed"})
}

// Concrete reports whether l is one of the trainable classes.
func (l Label) Concrete() bool {
	switch l {
	case CPUBound, IOBound, MemoryBound, Mixed:
		return true
	default:
		return false
	}
}

// Index returns l's position in Labels, or -1.
func (l Label) Index() int {
	for i, c := range Labels() {
		if c == l {
			return i
		}
	}

	return -1
}

// FromIndex maps a model class index back to a Label.
func FromIndex(i int) Label {
	labels := Labels()
	if i < 0 || i >= len(labels) {
		return Unknown
	}

	return labels[i]
}

func (l Label) String() string {
	return string(l)
}
