package importer

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"slices"

	xe "github.com/eosc4cancer/cbiobridge/pkg/errors"
)

// Result is the outcome of an external process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Command is an external process which can be run with arguments.
type Command interface {
	// Run starts the process with args and waits for it.
	//
	// A non-zero exit is not an error; it is reported by Result.ExitCode.
	// error is returned when the process could not be run at all.
	Run(ctx context.Context, args []string) (Result, error)
}

// CommandFunc adapts a function as Command.
type CommandFunc func(ctx context.Context, args []string) (Result, error)

func (f CommandFunc) Run(ctx context.Context, args []string) (Result, error) {
	return f(ctx, args)
}

// ExecCommand runs a program on this host.
type ExecCommand struct {
	// program to be run. looked up in PATH when it has no separator.
	Path string

	// arguments put before the arguments given to Run.
	Args []string

	// extra environment variables, "KEY=value".
	Env []string
}

var _ Command = ExecCommand{}

func (c ExecCommand) Run(ctx context.Context, args []string) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Path, append(slices.Clone(c.Args), args...)...)
	if len(c.Env) != 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, xe.Wrap(ctxErr)
		}
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	} else if err != nil {
		return res, xe.Wrap(err)
	}
	return res, nil
}
