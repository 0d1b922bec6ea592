package snapshot

import (
	"strconv"
)

// Kind distinguishes numeric from textual metric values.
type Kind uint8

const (
	KindNumber Kind = iota
	KindString
)

// Value is a single metric reading, either a number or a string.
type Value struct {
	kind Kind
	num  float64
	text string
}

// Number returns a numeric Value.
func Number(v float64) Value {
	return Value{kind: KindNumber, num: v}
}

// String returns a textual Value.
func String(s string) Value {
	return Value{kind: KindString, text: s}
}

func (v Value) Kind() Kind {
	return v.kind
}

// Float returns the numeric reading. Textual values that parse as a
// number are accepted as well.
func (v Value) Float() (float64, bool) {
	if v.kind == KindNumber {
		return v.num, true
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil {
		return 0, false
	}

	return f, true
}

// Text renders the value the way it is written to the sample log.
func (v Value) Text() string {
	if v.kind == KindString {
		return v.text
	}

	return strconv.FormatFloat(v.num, 'f', -1, 64)
}

func (v Value) String() string {
	return v.Text()
}
