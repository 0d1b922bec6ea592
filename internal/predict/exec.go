package predict

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"time"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/logger"
)

const defaultExecTimeout = 30 * time.Second

// execOutput is the document the external process writes back.
type execOutput struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// Exec runs an external program for each batch. The program is invoked as
// `Command Args... <input.json> <output.json>`; it reads a Batch from the
// input file and writes {"predictions": [[...], ...]} to the output file.
type Exec struct {
	Command    string
	Args       []string
	WorkingDir string
	Timeout    time.Duration
}

func (e *Exec) Predict(ctx context.Context, batch Batch) ([][]float64, error) {
	errFactory := errors.New()

	inputFile, err := e.tempFile("kerntune-input-*.json")
	if err != nil {
		return nil, errFactory.Wrap(ErrPredictFailed, err)
	}
	defer os.Remove(inputFile)

	outputFile, err := e.tempFile("kerntune-output-*.json")
	if err != nil {
		return nil, errFactory.Wrap(ErrPredictFailed, err)
	}
	defer os.Remove(outputFile)

	if err := writeJSON(inputFile, batch); err != nil {
		return nil, errFactory.Wrap(ErrPredictFailed, err)
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultExecTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string(nil), e.Args...), inputFile, outputFile)
	cmd := exec.CommandContext(ctx, e.Command, args...)
	if e.WorkingDir != "" {
		cmd.Dir = e.WorkingDir
	}

	logger.Debug().
		Str("command", e.Command).
		Int("rows", len(batch.Rows)).
		Msg("Executing external predictor")

	combined, err := cmd.CombinedOutput()
	if err != nil {
		return nil, errFactory.WrapWithData(ErrPredictFailed, err, struct {
			Command string
			Output  string
		}{e.Command, string(combined)})
	}

	var out execOutput
	data, err := os.ReadFile(outputFile)
	if err != nil {
		return nil, errFactory.Wrap(ErrPredictFailed, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errFactory.Wrap(ErrInvalidModel, err)
	}
	if out.Error != "" {
		return nil, errFactory.WithData(ErrPredictFailed, struct {
			Command string
			Error   string
		}{e.Command, out.Error})
	}

	return out.Predictions, nil
}

func (e *Exec) tempFile(pattern string) (string, error) {
	f, err := os.CreateTemp(e.WorkingDir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()

	return name, f.Close()
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(v)
}
