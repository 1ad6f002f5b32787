package backend

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// Shell runs each script in a fresh interpreter process, feeding the code
// on stdin. Stdout becomes the output; on a non-zero exit the trimmed
// stderr becomes the error message.
type Shell struct {
	Command   string
	Args      []string
	WaitDelay time.Duration
}

func NewShell(command string, args []string, waitDelay time.Duration) *Shell {
	return &Shell{
		Command:   command,
		Args:      append([]string(nil), args...),
		WaitDelay: waitDelay,
	}
}

func (s *Shell) Run(ctx context.Context, code string) (string, error) {
	if ctx.Err() != nil {
		return "", abortedErr(ctx)
	}

	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Stdin = strings.NewReader(code)
	killProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Grandchildren may keep the pipes open after the interpreter is
	// killed; bound how long Wait blocks on them.
	cmd.WaitDelay = s.WaitDelay

	err := cmd.Run()
	if ctx.Err() != nil {
		return "", abortedErr(ctx)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", errors.New(msg)
	}
	return stdout.String(), nil
}
