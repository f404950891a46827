// Package protocol implements the line-delimited JSON messages exchanged
// with the privilege broker: one request or response object per line,
// UTF-8 encoded.
package protocol

import "encoding/json"

// Action tags understood on the channel.
const (
	ActionRequestPassword = "request password"
	ActionAuthenticate    = "authenticate"
	ActionCancel          = "cancel"
)

// Defaults substituted for absent request fields.
const (
	DefaultPrompt  = "Password:"
	DefaultMessage = "No message given!"
)

// ReasonBusy is the cancel reason sent when the prompt lock is taken.
const ReasonBusy = "Authentication already in progress or system busy"

// Request is one inbound broker message.
type Request struct {
	Action  string `json:"action"`
	Prompt  string `json:"prompt,omitempty"`
	Message string `json:"message,omitempty"`
}

// ParseRequest decodes a single channel line. ok is false when the line
// is not a well-formed password request; such lines get no response.
// Absent prompt and message fields are filled with their defaults.
func ParseRequest(line []byte) (Request, bool) {
	if !isRequestShaped(line) {
		return Request{}, false
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, false
	}
	if req.Action != ActionRequestPassword {
		return Request{}, false
	}

	if req.Prompt == "" {
		req.Prompt = DefaultPrompt
	}
	if req.Message == "" {
		req.Message = DefaultMessage
	}
	return req, true
}
