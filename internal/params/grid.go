package params

import (
	"fmt"
	"os"
	"strconv"

	"codeberg.org/mutker/kerntune/internal/errors"
	"gopkg.in/yaml.v3"
)

type gridFile struct {
	Parameters []struct {
		Name   string `yaml:"name"`
		Values []any  `yaml:"values"`
	} `yaml:"parameters"`
}

// DefaultSpace is the grid used for training runs when no grid file is
// configured.
func DefaultSpace() *Space {
	s, err := NewSpace(
		Dimension{SchedLatency, []Value{Scalar(6000000), Scalar(10000000), Scalar(20000000)}},
		Dimension{SchedMigrationCost, []Value{Scalar(500000), Scalar(5000000)}},
		Dimension{Swappiness, []Value{Scalar(10), Scalar(30)}},
		Dimension{DirtyRatio, []Value{Scalar(5), Scalar(10)}},
		Dimension{DirtyExpire, []Value{Scalar(300), Scalar(500)}},
		Dimension{TCPRmem, []Value{
			Triple{4096, 87380, 6291456},
			Triple{4096, 65536, 4194304},
		}},
	)
	if err != nil {
		panic(err)
	}

	return s
}

// LoadGrid reads a YAML grid file.
func LoadGrid(path string) (*Space, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errFactory.Wrap(ErrReadGrid, err)
	}

	return ParseGrid(data)
}

// ParseGrid decodes a YAML grid document.
func ParseGrid(data []byte) (*Space, error) {
	errFactory := errors.New()

	var doc gridFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errFactory.Wrap(ErrReadGrid, err)
	}

	dims := make([]Dimension, 0, len(doc.Parameters))
	for _, p := range doc.Parameters {
		name, ok := Lookup(p.Name)
		if !ok {
			return nil, errFactory.WithData(ErrUnknownParameter, struct {
				Name string
			}{p.Name})
		}
		d := Dimension{Name: name}
		for _, raw := range p.Values {
			v, err := Parse(name, rawText(raw))
			if err != nil {
				return nil, err
			}
			d.Values = append(d.Values, v)
		}
		dims = append(dims, d)
	}

	return NewSpace(dims...)
}

func rawText(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
