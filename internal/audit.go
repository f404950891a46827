package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// AuditLogger appends one JSON object per line to the audit file.
// Entries carry request metadata only; passwords never reach this file.
type AuditLogger struct {
	file   *os.File
	mu     sync.Mutex
	seqNum int64
	source string
}

// AuditEntry represents a single audit record.
type AuditEntry struct {
	Seq       int64  `json:"seq"`
	Timestamp string `json:"ts"`
	Source    string `json:"src"`
	Pid       int    `json:"pid"`
	Event     string `json:"event"`                // "request", "authenticate", "cancel", "busy", "error"
	RequestID string `json:"request_id,omitempty"` // correlates request with outcome
	Reason    string `json:"reason,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Message   string `json:"msg,omitempty"`
}

// NewAuditLogger opens (or creates) the audit file for appending.
// The file is created owner-readable only.
func NewAuditLogger(path, source string) (*AuditLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	return &AuditLogger{file: f, source: source}, nil
}

// Log writes an entry to the audit file.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil || a.file == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seqNum++
	entry.Seq = a.seqNum
	entry.Timestamp = time.Now().Format(time.RFC3339Nano)
	entry.Source = a.source
	entry.Pid = os.Getpid()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = a.file.Write(data)
	_, _ = a.file.Write([]byte("\n"))
}

// LogEvent records a lifecycle event for a request.
func (a *AuditLogger) LogEvent(event, requestID string) {
	a.Log(AuditEntry{Event: event, RequestID: requestID})
}

// LogOutcome records the terminal event for a request with its duration.
func (a *AuditLogger) LogOutcome(event, requestID, reason string, took time.Duration) {
	a.Log(AuditEntry{Event: event, RequestID: requestID, Reason: reason, Duration: took.String()})
}

// LogError records a failure.
func (a *AuditLogger) LogError(message string, err error) {
	entry := AuditEntry{Event: "error", Message: message}
	if err != nil {
		entry.Reason = err.Error()
	}
	a.Log(entry)
}

// Close closes the audit file.
func (a *AuditLogger) Close() error {
	if a != nil && a.file != nil {
		return a.file.Close()
	}
	return nil
}
