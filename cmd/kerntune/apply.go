package main

import (
	"fmt"
	"strings"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/sysctl"
	"github.com/spf13/cobra"
)

func newApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply key=value...",
		Short: "Write kernel parameters through the configured sink",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := parseSettings(args)
			if err != nil {
				return err
			}

			applier, err := newApplier()
			if err != nil {
				return err
			}

			report := applier.Apply(cmd.Context(), settings)

			out := cmd.OutOrStdout()
			for _, o := range report.Outcomes {
				switch {
				case report.DryRun:
					fmt.Fprintf(out, "would run: %s\n", sysctl.Command(o.Key, o.Value))
				case o.Err != nil:
					fmt.Fprintf(out, "failed:  %s (%v)\n", o.Key, o.Err)
				default:
					fmt.Fprintf(out, "applied: %s = %s\n", o.Key, o.Value)
				}
			}

			return report.Err()
		},
	}
}

// parseSettings splits key=value arguments. The value may contain spaces
// and further '=' characters.
func parseSettings(args []string) (map[string]string, error) {
	settings := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.New().WithData(errors.ErrInvalidArgs, struct {
				Argument string
			}{arg})
		}
		settings[key] = strings.TrimSpace(value)
	}

	return settings, nil
}
