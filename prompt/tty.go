package prompt

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/askbridge/askbridge/logging"
	"github.com/askbridge/askbridge/secret"
)

// TTYGateway prompts on the controlling terminal, for running the
// bridge without a graphical prompt program. Stdin carries broker
// traffic, so the password is read from /dev/tty directly with echo
// disabled.
type TTYGateway struct {
	logger logging.Printer
}

// NewTTYGateway builds a terminal-backed gateway.
func NewTTYGateway(logger logging.Printer) *TTYGateway {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TTYGateway{logger: logger}
}

// Prompt implements Gateway.
func (g *TTYGateway) Prompt(ctx context.Context, label, message string) (*secret.Buffer, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(tty, "%s\n%s ", message, label)

	fd := int(tty.Fd())
	state, err := term.GetState(fd)
	if err != nil {
		tty.Close()
		return nil, err
	}

	type result struct {
		pw  []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		pw, err := term.ReadPassword(fd)
		ch <- result{pw, err}
	}()

	select {
	case <-ctx.Done():
		// Turn echo back on; ReadPassword never got to do it. The
		// abandoned reader keeps the file open until it returns, then
		// scrubs whatever was typed late.
		_ = term.Restore(fd, state)
		fmt.Fprintln(tty)
		go func() {
			if r := <-ch; r.pw != nil {
				secret.Scrub(r.pw)
			}
			tty.Close()
		}()
		g.logger.Warnf("terminal prompt did not finish in time")
		return nil, ctx.Err()
	case r := <-ch:
		fmt.Fprintln(tty)
		tty.Close()
		if r.err != nil {
			return nil, r.err
		}
		if len(r.pw) == 0 {
			return nil, nil
		}
		return secret.New(r.pw), nil
	}
}
