// Package bridge runs the request loop between the privilege broker and
// the human. It reads one request per line from the broker channel,
// serializes the prompt behind the cross-process lock, and writes back
// exactly one response per recognized request. The lock never outlives
// the request that acquired it, whatever way that request ends.
package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/askbridge/askbridge/internal"
	"github.com/askbridge/askbridge/lockdir"
	"github.com/askbridge/askbridge/logging"
	"github.com/askbridge/askbridge/prompt"
	"github.com/askbridge/askbridge/protocol"
	"github.com/askbridge/askbridge/secret"
)

// Option customises a Bridge.
type Option func(*Bridge)

// WithLogger attaches a logger.
func WithLogger(p logging.Printer) Option {
	return func(b *Bridge) {
		if p != nil {
			b.logger = p
		}
	}
}

// WithAudit attaches an audit trail.
func WithAudit(a *internal.AuditLogger) Option {
	return func(b *Bridge) {
		b.audit = a
	}
}

// WithRuntimeDir enables status.json updates in dir.
func WithRuntimeDir(dir string) Option {
	return func(b *Bridge) {
		b.runtimeDir = dir
	}
}

// Bridge couples the broker channel to the lock manager and the prompt
// gateway. Requests are handled strictly sequentially.
type Bridge struct {
	reader     *bufio.Reader
	writer     io.Writer
	locks      *lockdir.Manager
	gateway    prompt.Gateway
	logger     logging.Printer
	audit      *internal.AuditLogger
	runtimeDir string

	// current holds the in-flight request's lock handle so the signal
	// path can release it. Release is idempotent, so racing with normal
	// completion is harmless.
	current atomic.Pointer[lockdir.Handle]

	done chan struct{}
}

// New builds a Bridge reading requests from r and writing responses to
// w. Nothing but responses may ever be written to w.
func New(r io.Reader, w io.Writer, locks *lockdir.Manager, gateway prompt.Gateway, opts ...Option) *Bridge {
	b := &Bridge{
		reader:  bufio.NewReader(r),
		writer:  w,
		locks:   locks,
		gateway: gateway,
		logger:  logging.NewNop(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run processes requests until the channel closes, then returns nil.
// It may be called once. A termination signal releases the in-flight
// lock before the process exits.
func (b *Bridge) Run(ctx context.Context) error {
	defer close(b.done)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go b.watchSignals(sigCh)

	b.logger.Infof("bridge started (pid %d)", os.Getpid())
	b.audit.LogEvent("start", "")
	defer b.audit.LogEvent("stop", "")

	for {
		line, err := b.reader.ReadBytes('\n')
		if len(line) > 0 {
			b.handleLine(ctx, line)
		}
		if err != nil {
			if err == io.EOF {
				b.logger.Infof("channel closed")
				return nil
			}
			b.logger.Errorf("channel read: %v", err)
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// watchSignals implements the cleanup guarantee for abnormal exits: the
// lock is released before the process dies.
func (b *Bridge) watchSignals(sigCh <-chan os.Signal) {
	select {
	case sig := <-sigCh:
		b.logger.Warnf("received %s, releasing lock and exiting", sig)
		b.ReleaseCurrent()
		b.audit.Log(internal.AuditEntry{Event: "signal", Message: sig.String()})
		if s, ok := sig.(syscall.Signal); ok {
			os.Exit(128 + int(s))
		}
		os.Exit(1)
	case <-b.done:
	}
}

// ReleaseCurrent releases the lock held by the in-flight request, if any.
func (b *Bridge) ReleaseCurrent() {
	if h := b.current.Load(); h != nil {
		h.Release()
	}
}

func (b *Bridge) handleLine(ctx context.Context, line []byte) {
	req, ok := protocol.ParseRequest(line)
	if !ok {
		b.logger.Debugf("ignoring unrecognized input")
		return
	}

	id := shortID()
	start := time.Now()
	b.logger.Infof("request %s received", id)
	b.audit.LogEvent("request", id)

	handle, err := b.locks.Acquire(ctx)
	if err != nil {
		if errors.Is(err, lockdir.ErrBusy) {
			b.logger.Warnf("request %s: prompt lock is busy", id)
		} else {
			b.logger.Errorf("request %s: lock acquisition: %v", id, err)
			b.audit.LogError("lock acquisition failed", err)
		}
		b.audit.LogOutcome("busy", id, protocol.ReasonBusy, time.Since(start))
		b.respond(protocol.EncodeCancel(protocol.ReasonBusy))
		return
	}

	b.current.Store(handle)
	defer func() {
		handle.Release()
		b.current.CompareAndSwap(handle, nil)
		b.setStatus("idle")
	}()
	b.setStatus("prompting")

	// A hung prompt may not hold the lock past the point where another
	// instance would reclaim it as stale.
	pctx, cancel := context.WithTimeout(ctx, b.locks.StaleAfter())
	defer cancel()

	buf, perr := b.gateway.Prompt(pctx, req.Prompt, req.Message)
	if perr != nil {
		b.logger.Warnf("request %s: prompt: %v", id, perr)
	}

	if perr != nil || buf == nil || buf.Len() == 0 {
		buf.Wipe()
		b.logger.Infof("request %s: no input, cancelling", id)
		b.audit.LogOutcome("cancel", id, "", time.Since(start))
		b.respond(protocol.EncodeCancel(""))
		return
	}

	wire := protocol.AppendAuthenticate(make([]byte, 0, 6*buf.Len()+64), buf.Bytes())
	buf.Wipe()
	b.respondSecret(wire)
	b.logger.Infof("request %s: authenticated", id)
	b.audit.LogOutcome("authenticate", id, "", time.Since(start))
}

func (b *Bridge) respond(msg []byte) {
	if _, err := fmt.Fprintln(b.writer, string(msg)); err != nil {
		b.logger.Errorf("channel write: %v", err)
	}
}

// respondSecret writes a response carrying the password and scrubs the
// wire bytes afterwards. The buffer has headroom for the newline, so
// the append cannot reallocate and leave an unscrubbed copy behind.
func (b *Bridge) respondSecret(wire []byte) {
	wire = append(wire, '\n')
	_, err := b.writer.Write(wire)
	secret.Scrub(wire)
	if err != nil {
		b.logger.Errorf("channel write: %v", err)
	}
}

func (b *Bridge) setStatus(state string) {
	if b.runtimeDir == "" {
		return
	}
	if err := internal.SetStatus(b.runtimeDir, state); err != nil {
		b.logger.Debugf("status write failed: %v", err)
	}
}

func shortID() string {
	return uuid.NewString()[:8]
}
