package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scriptd/internal/config"
)

// ErrAborted is wrapped by every error a backend returns because its
// context was cancelled.
var ErrAborted = errors.New("execution aborted")

// Backend runs one script and returns its text output. Cancelling ctx
// aborts the run; the backend then returns promptly with ErrAborted.
type Backend interface {
	Run(ctx context.Context, code string) (string, error)
}

func abortedErr(ctx context.Context) error {
	return fmt.Errorf("%w: %v", ErrAborted, context.Cause(ctx))
}

// New builds the backend selected by cfg.Kind.
func New(cfg config.BackendConfig) (Backend, error) {
	switch cfg.Kind {
	case "", config.BackendShell:
		cmd := cfg.Shell.Command
		if cmd == "" {
			cmd = "sh"
		}
		return NewShell(cmd, cfg.Shell.Args, time.Duration(cfg.Shell.WaitDelayMs)*time.Millisecond), nil
	case config.BackendBrowser:
		return NewBrowser(cfg.Browser.ControlURL)
	default:
		return nil, fmt.Errorf("unknown backend kind %q (expected shell|browser)", cfg.Kind)
	}
}
