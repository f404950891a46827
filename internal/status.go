package internal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const statusFileName = "status.json"

// Status represents the bridge's current activity.
type Status struct {
	Status string     `json:"status"`          // "idle" | "prompting"
	Pid    int        `json:"pid,omitempty"`   // process owning the prompt
	Since  *time.Time `json:"since,omitempty"` // when prompting started
}

// SetStatus writes status.json into the runtime directory.
func SetStatus(runtimeDir string, status string) error {
	path := filepath.Join(runtimeDir, statusFileName)

	s := Status{Status: status}
	if status == "prompting" {
		now := time.Now()
		s.Since = &now
		s.Pid = os.Getpid()
	}

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// GetStatus reads status.json from the runtime directory.
// Returns "idle" if the file doesn't exist or is invalid.
func GetStatus(runtimeDir string) Status {
	path := filepath.Join(runtimeDir, statusFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		return Status{Status: "idle"}
	}

	var s Status
	if err := json.Unmarshal(data, &s); err != nil {
		return Status{Status: "idle"}
	}

	return s
}
