package internal_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/askbridge/askbridge/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, path string) []internal.AuditEntry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []internal.AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e internal.AuditEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestAuditLoggerAppendsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	a, err := internal.NewAuditLogger(path, "bridge")
	require.NoError(t, err)
	defer a.Close()

	a.LogEvent("request", "req-1")
	a.LogOutcome("authenticate", "req-1", "", 120*time.Millisecond)
	a.LogOutcome("cancel", "req-2", "user dismissed", 3*time.Second)

	entries := readEntries(t, path)
	require.Len(t, entries, 3)

	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, int64(2), entries[1].Seq)
	assert.Equal(t, int64(3), entries[2].Seq)

	assert.Equal(t, "request", entries[0].Event)
	assert.Equal(t, "req-1", entries[0].RequestID)
	assert.Equal(t, "bridge", entries[0].Source)
	assert.Equal(t, os.Getpid(), entries[0].Pid)
	assert.NotEmpty(t, entries[0].Timestamp)

	assert.Equal(t, "authenticate", entries[1].Event)
	assert.Equal(t, "120ms", entries[1].Duration)

	assert.Equal(t, "cancel", entries[2].Event)
	assert.Equal(t, "user dismissed", entries[2].Reason)
}

func TestAuditLoggerFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	a, err := internal.NewAuditLogger(path, "bridge")
	require.NoError(t, err)
	defer a.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "audit file must be owner-only")
}

func TestAuditLoggerLogError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	a, err := internal.NewAuditLogger(path, "bridge")
	require.NoError(t, err)
	defer a.Close()

	a.LogError("prompt failed", os.ErrDeadlineExceeded)

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "error", entries[0].Event)
	assert.Equal(t, "prompt failed", entries[0].Message)
	assert.Contains(t, entries[0].Reason, "deadline")
}

func TestAuditLoggerNilSafe(t *testing.T) {
	var a *internal.AuditLogger

	// Must not panic on a nil logger (audit is optional).
	a.LogEvent("request", "req-1")
	a.LogError("boom", nil)
	assert.NoError(t, a.Close())
}
