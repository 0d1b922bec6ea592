// Package sysctl reads and writes kernel parameters.
package sysctl

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"codeberg.org/mutker/kerntune/internal/errors"
)

const (
	DefaultRoot   = "/proc/sys"
	DefaultBinary = "sysctl"

	SinkProcfs = "procfs"
	SinkExec   = "exec"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)+$`)

// Sink writes one kernel parameter.
type Sink interface {
	Write(ctx context.Context, key, value string) error
}

// NewSink returns the sink named by kind.
func NewSink(kind, root string) (Sink, error) {
	switch kind {
	case SinkProcfs, "":
		return &ProcSink{Root: root}, nil
	case SinkExec:
		return &ExecSink{}, nil
	default:
		return nil, errors.New().WithData(ErrUnknownSink, struct {
			Sink string
		}{kind})
	}
}

// ValidateKey rejects keys that are not dotted sysctl names.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return errors.New().WithData(ErrInvalidKey, struct {
			Key string
		}{key})
	}

	return nil
}

// Path maps a dotted key to its file under root.
func Path(root, key string) string {
	if root == "" {
		root = DefaultRoot
	}

	return filepath.Join(root, strings.ReplaceAll(key, ".", "/"))
}

// ProcSink writes directly to files under Root (default /proc/sys).
type ProcSink struct {
	Root string
}

func (s *ProcSink) Write(_ context.Context, key, value string) error {
	errFactory := errors.New()

	if err := ValidateKey(key); err != nil {
		return err
	}

	f, err := os.OpenFile(Path(s.Root, key), os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return errFactory.WrapWithData(ErrWriteFailed, err, struct {
			Key string
		}{key})
	}
	defer f.Close()

	if _, err := f.WriteString(value + "\n"); err != nil {
		return errFactory.WrapWithData(ErrWriteFailed, err, struct {
			Key string
		}{key})
	}

	return nil
}

// ExecSink runs `sysctl -w key=value`. The assignment is passed as a single
// argument, so values with embedded whitespace need no shell quoting.
type ExecSink struct {
	Binary string
}

func (s *ExecSink) Write(ctx context.Context, key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	bin := s.Binary
	if bin == "" {
		bin = DefaultBinary
	}

	out, err := exec.CommandContext(ctx, bin, "-w", key+"="+value).CombinedOutput()
	if err != nil {
		return errors.New().WrapWithData(ErrWriteFailed, err, struct {
			Key    string
			Output string
		}{key, strings.TrimSpace(string(out))})
	}

	return nil
}

// Command renders the equivalent shell command for key and value.
func Command(key, value string) string {
	return "sysctl -w " + Quote(key+"="+value)
}

// Quote returns s unchanged when it is safe for a POSIX shell, and single
// quoted otherwise.
func Quote(s string) string {
	if s != "" && strings.IndexFunc(s, unsafeRune) < 0 {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func unsafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("._-=/:,+", r):
		return false
	default:
		return true
	}
}

// Read returns the current value of key under root with runs of whitespace
// collapsed to single spaces.
func Read(root, key string) (string, error) {
	errFactory := errors.New()

	if err := ValidateKey(key); err != nil {
		return "", err
	}

	data, err := os.ReadFile(Path(root, key))
	if err != nil {
		return "", errFactory.WrapWithData(ErrReadFailed, err, struct {
			Key string
		}{key})
	}

	return strings.Join(strings.Fields(string(data)), " "), nil
}

// Capture reads every key it can; unreadable keys are left out.
func Capture(root string, keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, err := Read(root, k); err == nil {
			out[k] = v
		}
	}

	return out
}
