package internal_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/askbridge/askbridge/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetStatus(t *testing.T) {
	runtimeDir := t.TempDir()

	// Test setting idle status
	err := internal.SetStatus(runtimeDir, "idle")
	require.NoError(t, err)

	// Verify file exists
	statusPath := filepath.Join(runtimeDir, "status.json")
	_, err = os.Stat(statusPath)
	assert.NoError(t, err, "Status file should be created")

	// Test setting prompting status
	err = internal.SetStatus(runtimeDir, "prompting")
	require.NoError(t, err)

	status := internal.GetStatus(runtimeDir)
	assert.Equal(t, "prompting", status.Status)
	assert.Equal(t, os.Getpid(), status.Pid)
	assert.NotNil(t, status.Since, "Prompting status should have Since timestamp")
	assert.WithinDuration(t, time.Now(), *status.Since, 5*time.Second)
}

func TestGetStatus(t *testing.T) {
	runtimeDir := t.TempDir()

	// Test getting status when file doesn't exist
	status := internal.GetStatus(runtimeDir)
	assert.Equal(t, "idle", status.Status, "Default status should be idle")

	// Test getting status after setting
	require.NoError(t, internal.SetStatus(runtimeDir, "prompting"))
	status = internal.GetStatus(runtimeDir)
	assert.Equal(t, "prompting", status.Status)

	// Test getting status with invalid JSON
	statusPath := filepath.Join(runtimeDir, "status.json")
	require.NoError(t, os.WriteFile(statusPath, []byte("invalid json"), 0600))
	status = internal.GetStatus(runtimeDir)
	assert.Equal(t, "idle", status.Status, "Invalid JSON should fallback to idle")
}

func TestSetStatus_DirNotExist(t *testing.T) {
	nonExistentDir := filepath.Join(t.TempDir(), "nonexistent", "runtime")

	err := internal.SetStatus(nonExistentDir, "idle")
	assert.Error(t, err, "Should fail when directory doesn't exist")
}

func TestSetStatus_IdleHasNoSince(t *testing.T) {
	runtimeDir := t.TempDir()

	// First set prompting (has Since)
	require.NoError(t, internal.SetStatus(runtimeDir, "prompting"))
	status := internal.GetStatus(runtimeDir)
	assert.NotNil(t, status.Since)

	// Then set idle (should not have Since)
	require.NoError(t, internal.SetStatus(runtimeDir, "idle"))
	status = internal.GetStatus(runtimeDir)
	assert.Equal(t, "idle", status.Status)
	assert.Nil(t, status.Since, "Idle status should not have Since timestamp")
	assert.Zero(t, status.Pid)
}
