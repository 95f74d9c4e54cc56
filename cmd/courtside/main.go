package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"courtside/internal/services"
)

// Exit codes let scripts tell a bad invocation from a bad video.
const (
	exitFailure       = 1
	exitConfiguration = 2
	exitMedia         = 3
	exitInterrupted   = 130
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, services.ErrConfiguration):
		return exitConfiguration
	case errors.Is(err, services.ErrMedia):
		return exitMedia
	default:
		return exitFailure
	}
}
