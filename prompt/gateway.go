// Package prompt invokes the interactive program that asks the human
// for a password. The bridge treats it as a black box: it gets a label
// and a message, and either produces secret bytes or it does not.
package prompt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"text/template"
	"time"

	"github.com/askbridge/askbridge/logging"
	"github.com/askbridge/askbridge/secret"
)

// pipeGrace bounds how long a finished prompt program's stdout pipe may
// stay open before it is abandoned. Helpers that fork background
// children leak their write end to them; the bridge must not wait for
// those to exit.
const pipeGrace = time.Second

// Gateway obtains a secret from the human. A nil buffer with a nil
// error means no input: the user cancelled or entered nothing. Errors
// report program or environment failures; callers treat them the same
// as no input, they are never fatal to the request loop.
type Gateway interface {
	Prompt(ctx context.Context, label, message string) (*secret.Buffer, error)
}

// DefaultArgs passes the prompt label as the program's sole argument,
// the convention ssh-askpass implementations expect.
var DefaultArgs = []string{"{{.Prompt}}"}

// ExecGateway runs an external prompt program. The rendered arguments
// carry the label and message, the secret comes back on the program's
// stdout, and a non-zero exit means the user dismissed the dialog.
type ExecGateway struct {
	program string
	args    []string
	extra   []string
	logger  logging.Printer
}

// NewExecGateway builds a gateway around program. args are rendered as
// templates with {{.Prompt}} and {{.Message}} fields and default to
// DefaultArgs when empty; extraArgs are forwarded verbatim after them.
func NewExecGateway(program string, args, extraArgs []string, logger logging.Printer) *ExecGateway {
	if logger == nil {
		logger = logging.NewNop()
	}
	if len(args) == 0 {
		args = DefaultArgs
	}
	return &ExecGateway{program: program, args: args, extra: extraArgs, logger: logger}
}

type argData struct {
	Prompt  string
	Message string
}

// Prompt implements Gateway.
func (g *ExecGateway) Prompt(ctx context.Context, label, message string) (*secret.Buffer, error) {
	args, err := renderArgs(g.args, argData{Prompt: label, Message: message})
	if err != nil {
		return nil, err
	}
	args = append(args, g.extra...)

	cmd := exec.CommandContext(ctx, g.program, args...)
	cmd.WaitDelay = pipeGrace
	var out bytes.Buffer
	out.Grow(4096)
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr

	runErr := cmd.Run()
	captured := out.Bytes()

	if errors.Is(runErr, exec.ErrWaitDelay) {
		// The program itself exited cleanly; only an inherited copy of
		// the pipe stayed open. Whatever it wrote still counts.
		runErr = nil
	}
	if ctx.Err() != nil {
		secret.Scrub(captured)
		g.logger.Warnf("prompt program did not finish in time")
		return nil, ctx.Err()
	}
	if runErr != nil {
		secret.Scrub(captured)
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			g.logger.Debugf("prompt program exited %d, treating as cancel", exitErr.ExitCode())
			return nil, nil
		}
		return nil, runErr
	}

	entered := trimEOL(captured)
	if len(entered) == 0 {
		secret.Scrub(captured)
		return nil, nil
	}
	return secret.New(entered), nil
}

// trimEOL strips trailing newline bytes without copying, so the secret
// stays in the buffer the caller wipes.
func trimEOL(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func renderArgs(raw []string, data argData) ([]string, error) {
	args := make([]string, 0, len(raw))
	for _, r := range raw {
		tpl, err := template.New("arg").Delims("{{", "}}").Parse(r)
		if err != nil {
			return nil, fmt.Errorf("bad prompt argument %q: %w", r, err)
		}
		var buf bytes.Buffer
		if err := tpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("bad prompt argument %q: %w", r, err)
		}
		args = append(args, buf.String())
	}
	return args, nil
}
