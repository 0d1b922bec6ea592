package predict

import (
	"os"
	"time"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/logger"
)

const (
	TypeNone   = ""
	TypeLinear = "linear"
	TypeExec   = "exec"
)

// Config selects and locates a model.
type Config struct {
	Type    string        `mapstructure:"type"`
	Path    string        `mapstructure:"path"`
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load builds the model described by cfg. A model that is not configured,
// or whose file does not exist, yields an absent handle without error.
func Load(name string, cfg Config) (Model, error) {
	errFactory := errors.New()

	switch cfg.Type {
	case TypeNone:
		logger.Debug().Str("model", name).Msg("Model not configured")
		return None(name), nil
	case TypeLinear:
		if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
			logger.Warn().Str("model", name).Str("path", cfg.Path).Msg("Model file not found")
			return None(name), nil
		}
		l, err := LoadLinear(cfg.Path)
		if err != nil {
			return None(name), err
		}
		logger.Info().Str("model", name).Str("path", cfg.Path).Strs("outputs", l.Outputs()).Msg("Loaded linear model")
		return Loaded(name, l), nil
	case TypeExec:
		if cfg.Command == "" {
			return None(name), errFactory.WithData(ErrInvalidModel, struct {
				Model  string
				Reason string
			}{name, "exec model requires a command"})
		}
		logger.Info().Str("model", name).Str("command", cfg.Command).Msg("Using external predictor")
		return Loaded(name, &Exec{Command: cfg.Command, Args: cfg.Args, Timeout: cfg.Timeout}), nil
	default:
		return None(name), errFactory.WithData(ErrUnknownType, struct {
			Model string
			Type  string
		}{name, cfg.Type})
	}
}
