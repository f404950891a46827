package bridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askbridge/askbridge/internal"
	"github.com/askbridge/askbridge/lockdir"
	"github.com/askbridge/askbridge/prompt"
	"github.com/askbridge/askbridge/secret"
)

type fakeGateway struct {
	input     []byte
	err       error
	delay     time.Duration
	failFirst bool

	calls   atomic.Int32
	label   string
	message string
}

func (f *fakeGateway) Prompt(ctx context.Context, label, message string) (*secret.Buffer, error) {
	n := f.calls.Add(1)
	f.label, f.message = label, message
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.failFirst && n == 1 {
		return nil, errors.New("prompt program crashed")
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.input == nil {
		return nil, nil
	}
	cp := make([]byte, len(f.input))
	copy(cp, f.input)
	return secret.New(cp), nil
}

func newTestBridge(t *testing.T, in io.Reader, g prompt.Gateway) (*Bridge, *bytes.Buffer, *lockdir.Manager) {
	t.Helper()
	m := lockdir.New(filepath.Join(t.TempDir(), "lock"),
		lockdir.WithWaitTimeout(500*time.Millisecond),
		lockdir.WithPollInterval(10*time.Millisecond),
	)
	var out bytes.Buffer
	return New(in, &out, m, g), &out, m
}

const requestLine = `{"action":"request password","prompt":"P","message":"M"}` + "\n"

func TestRoundTripAuthenticate(t *testing.T) {
	g := &fakeGateway{input: []byte("hunter2")}
	b, out, m := newTestBridge(t, strings.NewReader(requestLine), g)

	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, `{"action":"authenticate","password":"hunter2"}`+"\n", out.String())
	assert.EqualValues(t, 1, g.calls.Load())

	_, held := m.Inspect()
	assert.False(t, held, "lock must be released after the request")
}

func TestEmptyInputYieldsPlainCancel(t *testing.T) {
	g := &fakeGateway{}
	b, out, _ := newTestBridge(t, strings.NewReader(requestLine), g)

	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, `{"action":"cancel"}`+"\n", out.String())
}

func TestGatewayFailureYieldsPlainCancel(t *testing.T) {
	g := &fakeGateway{err: errors.New("display unavailable")}
	b, out, m := newTestBridge(t, strings.NewReader(requestLine), g)

	require.NoError(t, b.Run(context.Background()), "a prompt failure must never terminate the loop")

	assert.Equal(t, `{"action":"cancel"}`+"\n", out.String())

	_, held := m.Inspect()
	assert.False(t, held, "lock must be released after a failed prompt")
}

func TestMalformedLinesAreSilent(t *testing.T) {
	input := "not json\n" +
		`{"action":"something else"}` + "\n" +
		"\n" +
		requestLine +
		"[1,2,3]\n"

	g := &fakeGateway{input: []byte("pw")}
	b, out, _ := newTestBridge(t, strings.NewReader(input), g)

	require.NoError(t, b.Run(context.Background()))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 1, "only the recognized request may produce output")
	assert.Equal(t, `{"action":"authenticate","password":"pw"}`, lines[0])
	assert.EqualValues(t, 1, g.calls.Load())
}

func TestDefaultsReachGateway(t *testing.T) {
	g := &fakeGateway{input: []byte("pw")}
	b, _, _ := newTestBridge(t, strings.NewReader(`{"action":"request password"}`+"\n"), g)

	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, "Password:", g.label)
	assert.Equal(t, "No message given!", g.message)
}

func TestBusyYieldsReasonedCancel(t *testing.T) {
	g := &fakeGateway{input: []byte("pw")}
	b, out, m := newTestBridge(t, strings.NewReader(requestLine), g)

	holder, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer holder.Release()

	start := time.Now()
	require.NoError(t, b.Run(context.Background()))
	assert.Less(t, time.Since(start), 5*time.Second, "busy must not block past the wait timeout")

	assert.Equal(t,
		`{"action":"cancel","reason":"Authentication already in progress or system busy"}`+"\n",
		out.String())
	assert.EqualValues(t, 0, g.calls.Load(), "no prompt may run while the lock is held elsewhere")

	_, held := m.Inspect()
	assert.True(t, held, "the holder's lock must survive the busy request")
}

func TestSequentialRequestsShareTheLock(t *testing.T) {
	g := &fakeGateway{input: []byte("pw")}
	b, out, m := newTestBridge(t, strings.NewReader(requestLine+requestLine), g)

	require.NoError(t, b.Run(context.Background()))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, lines[0], lines[1])
	assert.EqualValues(t, 2, g.calls.Load())

	_, held := m.Inspect()
	assert.False(t, held)
}

func TestRequestAfterFailedFlowAcquires(t *testing.T) {
	g := &fakeGateway{input: []byte("pw"), failFirst: true}
	b, out, _ := newTestBridge(t, strings.NewReader(requestLine+requestLine), g)

	require.NoError(t, b.Run(context.Background()))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"action":"cancel"}`, lines[0])
	assert.Equal(t, `{"action":"authenticate","password":"pw"}`, lines[1])
}

func TestMidFlightReleaseFromSignalPath(t *testing.T) {
	pr, pw := io.Pipe()
	g := &fakeGateway{input: []byte("pw"), delay: 10 * time.Second}

	m := lockdir.New(filepath.Join(t.TempDir(), "lock"),
		lockdir.WithWaitTimeout(500*time.Millisecond),
		lockdir.WithPollInterval(10*time.Millisecond),
		lockdir.WithStaleAfter(time.Second),
	)
	runtimeDir := t.TempDir()
	var out bytes.Buffer
	b := New(pr, &out, m, g, WithRuntimeDir(runtimeDir))

	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(context.Background()) }()

	_, err := pw.Write([]byte(requestLine))
	require.NoError(t, err)

	// The prompting status is written only after the in-flight handle
	// is published, so the release below cannot miss it.
	require.Eventually(t, func() bool {
		return internal.GetStatus(runtimeDir).Status == "prompting"
	}, 2*time.Second, 10*time.Millisecond, "bridge must reach the prompting state")

	b.ReleaseCurrent()

	_, held := m.Inspect()
	assert.False(t, held, "signal-path release must free the lock mid-flight")

	require.NoError(t, pw.Close())
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not stop after channel close")
	}

	// The aborted prompt still produced exactly one response.
	assert.Equal(t, `{"action":"cancel"}`+"\n", out.String())
}

func TestTrailingLineWithoutNewline(t *testing.T) {
	g := &fakeGateway{input: []byte("pw")}
	b, out, _ := newTestBridge(t, strings.NewReader(`{"action":"request password"}`), g)

	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, `{"action":"authenticate","password":"pw"}`+"\n", out.String())
}

func TestRunReturnsNilOnEmptyChannel(t *testing.T) {
	g := &fakeGateway{}
	b, out, _ := newTestBridge(t, strings.NewReader(""), g)

	require.NoError(t, b.Run(context.Background()))
	assert.Zero(t, out.Len())
}
