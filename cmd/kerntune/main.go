// Copyright © 2024 Mutker Telag <witty.text5011@fastmail.com>
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/logger"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		var appErr errors.Error
		if cfg != nil && errors.As(err, &appErr) {
			logger.ErrorWithCode(appErr).Msg("kerntune failed")
		} else {
			fmt.Fprintf(os.Stderr, "kerntune: %v\n", err)
		}
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go handleSignals(ctx, cancel)

	return ctx, cancel
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		logger.Info().Msg("Received termination signal.")
		cancel()
	case <-ctx.Done():
	}
}
