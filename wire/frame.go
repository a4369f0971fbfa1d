// Package wire defines the message envelope the platform client speaks
// over WebSocket: request/response frames correlated by ID, plus
// server-pushed event frames scoped to a channel.
package wire

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/await"
)

// FrameType identifies the frame category.
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FrameEvent    FrameType = "event"
	FrameErr      FrameType = "error"
	FramePing     FrameType = "ping"
	FramePong     FrameType = "pong"
)

// Frame is the message envelope. Every message exchanged with the
// platform is a Frame.
type Frame struct {
	// ID uniquely identifies this frame.
	ID string `json:"id"`

	// Type categorizes the frame.
	Type FrameType `json:"type"`

	// Method names the operation for request frames (e.g., "run.status").
	Method string `json:"method,omitempty"`

	// CorrelID links a response to its originating request.
	CorrelID string `json:"correl_id,omitempty"`

	// Token carries auth credentials (only on the auth frame).
	Token string `json:"token,omitempty"`

	// Data carries the method-specific payload.
	Data json.RawMessage `json:"data,omitempty"`

	// Error carries error details for error frames.
	Error *ErrorDetail `json:"error,omitempty"`

	// Channel identifies the subscription channel for event and
	// subscribe frames.
	Channel string `json:"channel,omitempty"`

	// Timestamp records when this frame was created.
	Timestamp time.Time `json:"ts"`
}

// ErrorDetail describes an error in a response or error frame.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Err converts the detail to an *Error, or nil.
func (d *ErrorDetail) Err() error {
	if d == nil {
		return nil
	}
	return &Error{Code: d.Code, Message: d.Message}
}

// Error is a platform-reported protocol error.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("wire: %d %s", e.Code, e.Message)
}

// ── Well-known methods ──────────────────────────────

const (
	MethodAuth        = "auth"
	MethodRunStatus   = "run.status"
	MethodRunCancel   = "run.cancel"
	MethodSubscribe   = "subscribe"
	MethodUnsubscribe = "unsubscribe"
)

// ── Well-known error codes ──────────────────────────

const (
	ErrCodeBadRequest   = 400
	ErrCodeUnauthorized = 401
	ErrCodeNotFound     = 404
	ErrCodeConflict     = 409
	ErrCodeInternal     = 500
	ErrCodeUnavailable  = 503
)

// ── Payloads ────────────────────────────────────────

// AuthRequest opens a session.
type AuthRequest struct {
	Token string `json:"token"`
}

// AuthResponse acknowledges a session.
type AuthResponse struct {
	SessionID string `json:"session_id"`
}

// RunStatusRequest asks for the current state of a run.
type RunStatusRequest struct {
	JobID string `json:"job_id"`
	RunID string `json:"run_id"`
}

// RunStatusResponse mirrors await.RunStatus on the wire.
type RunStatusResponse struct {
	State  await.RunState  `json:"state"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  *await.RunError `json:"error,omitempty"`
}

// RunCancelRequest asks the platform to cancel a run.
type RunCancelRequest struct {
	JobID string `json:"job_id"`
	RunID string `json:"run_id"`
}

// RunCancelResponse reports whether the cancel took effect.
type RunCancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// SubscribeRequest registers interest in a channel.
type SubscribeRequest struct {
	Channel string `json:"channel"`
}

// UnsubscribeRequest removes interest in a channel.
type UnsubscribeRequest struct {
	Channel string `json:"channel"`
}

// RunEvent is the payload of event frames on run channels. State is
// advisory; consumers confirm by polling.
type RunEvent struct {
	State await.RunState `json:"state,omitempty"`
}

// ── Helpers ─────────────────────────────────────────

// GenerateFrameID returns a process-unique frame identifier.
func GenerateFrameID() string {
	return time.Now().UTC().Format("20060102150405.000000000")
}

// NewRequestFrame builds a request frame with a marshaled payload.
func NewRequestFrame(id, method string, data any) (*Frame, error) {
	frame := &Frame{
		ID:        id,
		Type:      FrameRequest,
		Method:    method,
		Timestamp: time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("wire: marshal %s payload: %w", method, err)
		}
		frame.Data = raw
	}
	return frame, nil
}

// RunChannel returns the event channel name for one run.
func RunChannel(id await.Identity) string {
	return "run:" + id.JobID + ":" + id.RunID
}

// ParseRunChannel extracts the identity from a run channel name.
func ParseRunChannel(channel string) (await.Identity, bool) {
	rest, ok := strings.CutPrefix(channel, "run:")
	if !ok {
		return await.Identity{}, false
	}
	jobID, runID, ok := strings.Cut(rest, ":")
	if !ok || jobID == "" || runID == "" {
		return await.Identity{}, false
	}
	return await.Identity{JobID: jobID, RunID: runID}, true
}
