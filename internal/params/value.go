package params

import (
	"fmt"
	"strconv"
	"strings"

	"codeberg.org/mutker/kerntune/internal/errors"
)

// Value is a parameter setting: either a Scalar or a Triple.
type Value interface {
	Kind() ValueKind
	// String renders the value as written to the kernel.
	String() string
	// Flatten returns the value's numeric feature columns.
	Flatten() []float64
	sealed()
}

// Scalar is a single integer setting.
type Scalar int64

func (Scalar) Kind() ValueKind { return KindScalar }

func (s Scalar) String() string { return strconv.FormatInt(int64(s), 10) }

func (s Scalar) Flatten() []float64 { return []float64{float64(s)} }

func (Scalar) sealed() {}

// Triple is a min/default/max setting such as net.ipv4.tcp_rmem.
type Triple struct {
	Min, Default, Max int64
}

func (Triple) Kind() ValueKind { return KindTriple }

func (t Triple) String() string {
	return fmt.Sprintf("%d %d %d", t.Min, t.Default, t.Max)
}

func (t Triple) Flatten() []float64 {
	return []float64{float64(t.Min), float64(t.Default), float64(t.Max)}
}

func (Triple) sealed() {}

// Parse converts the textual form of a setting for name into a Value.
// Triples must hold exactly three whitespace-separated integers.
func Parse(name Name, text string) (Value, error) {
	errFactory := errors.New()

	if !name.Known() {
		return nil, errFactory.WithData(ErrUnknownParameter, struct {
			Name string
		}{string(name)})
	}

	fields := strings.Fields(text)
	ints := make([]int64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, errFactory.WrapWithData(ErrInvalidValue, err, struct {
				Name  string
				Value string
			}{string(name), text})
		}
		ints = append(ints, v)
	}

	switch name.Kind() {
	case KindTriple:
		if len(ints) != 3 {
			return nil, errFactory.WithData(ErrInvalidValue, struct {
				Name   string
				Value  string
				Reason string
			}{string(name), text, "expected three integers"})
		}
		return Triple{Min: ints[0], Default: ints[1], Max: ints[2]}, nil
	default:
		if len(ints) != 1 {
			return nil, errFactory.WithData(ErrInvalidValue, struct {
				Name   string
				Value  string
				Reason string
			}{string(name), text, "expected one integer"})
		}
		return Scalar(ints[0]), nil
	}
}
