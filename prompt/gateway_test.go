package prompt

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePosixTools(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("gateway tests need a POSIX shell")
	}
}

func TestExecGatewayCapturesSecret(t *testing.T) {
	requirePosixTools(t)
	g := NewExecGateway("echo", []string{"hunter2"}, nil, nil)

	buf, err := g.Prompt(context.Background(), "Password:", "No message given!")
	require.NoError(t, err)
	require.NotNil(t, buf)
	defer buf.Wipe()

	// echo appends a newline the gateway must strip.
	assert.Equal(t, []byte("hunter2"), buf.Bytes())
}

func TestExecGatewayRendersTemplateArgs(t *testing.T) {
	requirePosixTools(t)
	g := NewExecGateway("echo", []string{"{{.Prompt}}", "{{.Message}}"}, nil, nil)

	buf, err := g.Prompt(context.Background(), "P", "M")
	require.NoError(t, err)
	require.NotNil(t, buf)
	defer buf.Wipe()

	assert.Equal(t, []byte("P M"), buf.Bytes())
}

func TestExecGatewayDefaultArgIsLabel(t *testing.T) {
	requirePosixTools(t)
	g := NewExecGateway("echo", nil, nil, nil)

	buf, err := g.Prompt(context.Background(), "Enter passphrase:", "ignored")
	require.NoError(t, err)
	require.NotNil(t, buf)
	defer buf.Wipe()

	assert.Equal(t, []byte("Enter passphrase:"), buf.Bytes())
}

func TestExecGatewayForwardsExtraArgs(t *testing.T) {
	requirePosixTools(t)
	g := NewExecGateway("echo", []string{"a"}, []string{"b", "c"}, nil)

	buf, err := g.Prompt(context.Background(), "P", "M")
	require.NoError(t, err)
	require.NotNil(t, buf)
	defer buf.Wipe()

	assert.Equal(t, []byte("a b c"), buf.Bytes())
}

func TestExecGatewayNonZeroExitMeansCancel(t *testing.T) {
	requirePosixTools(t)
	g := NewExecGateway("sh", []string{"-c", "exit 1"}, nil, nil)

	buf, err := g.Prompt(context.Background(), "P", "M")
	assert.NoError(t, err, "a dismissed dialog is not an error")
	assert.Nil(t, buf)
}

func TestExecGatewayEmptyOutputMeansNoInput(t *testing.T) {
	requirePosixTools(t)

	for _, script := range []string{"exit 0", "printf '\\n'"} {
		g := NewExecGateway("sh", []string{"-c", script}, nil, nil)

		buf, err := g.Prompt(context.Background(), "P", "M")
		assert.NoError(t, err)
		assert.Nil(t, buf, "script %q must yield no input", script)
	}
}

func TestExecGatewayTimeout(t *testing.T) {
	requirePosixTools(t)
	g := NewExecGateway("sleep", []string{"10"}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	buf, err := g.Prompt(ctx, "P", "M")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, buf)
	assert.Less(t, time.Since(start), 5*time.Second, "a hung prompt must not block past its deadline")
}

func TestExecGatewayLingeringChildDoesNotBlock(t *testing.T) {
	requirePosixTools(t)
	// The backgrounded sleep inherits the stdout pipe and outlives the
	// program. The return must be bounded by the program's own exit.
	g := NewExecGateway("sh", []string{"-c", "sleep 5 & exit 0"}, nil, nil)

	start := time.Now()
	buf, err := g.Prompt(context.Background(), "P", "M")
	assert.NoError(t, err)
	assert.Nil(t, buf)
	assert.Less(t, time.Since(start), 3*time.Second,
		"a lingering child holding stdout must not delay the return")
}

func TestExecGatewaySecretSurvivesLingeringChild(t *testing.T) {
	requirePosixTools(t)
	g := NewExecGateway("sh", []string{"-c", "printf hunter2; sleep 5 & exit 0"}, nil, nil)

	start := time.Now()
	buf, err := g.Prompt(context.Background(), "P", "M")
	require.NoError(t, err)
	require.NotNil(t, buf)
	defer buf.Wipe()

	assert.Equal(t, []byte("hunter2"), buf.Bytes())
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestExecGatewayMissingProgram(t *testing.T) {
	g := NewExecGateway("/nonexistent/prompt-program", nil, nil, nil)

	buf, err := g.Prompt(context.Background(), "P", "M")
	require.Error(t, err)
	assert.Nil(t, buf)

	var exitErr *exec.ExitError
	assert.False(t, errors.As(err, &exitErr), "spawn failures are not exit statuses")
}

func TestExecGatewayBadTemplateArg(t *testing.T) {
	g := NewExecGateway("echo", []string{"{{.Broken"}, nil, nil)

	buf, err := g.Prompt(context.Background(), "P", "M")
	require.Error(t, err)
	assert.Nil(t, buf)
	assert.Contains(t, err.Error(), "bad prompt argument")
}
