package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrTransportUnavailable means the transport could not be brought up:
	// the worker failed to start or exited during the settle period.
	ErrTransportUnavailable = goerr.New("transport unavailable")

	// ErrNoResponse means a request was written but the stream ended before
	// a response line arrived.
	ErrNoResponse = goerr.New("no response from worker")

	// ErrRemote matches every *RemoteError.
	ErrRemote = goerr.New("remote error")

	ErrUnknownTool       = goerr.New("unknown tool")
	ErrNotReady          = goerr.New("bridge is not ready")
	ErrStopped           = goerr.New("bridge is stopped")
	ErrCallTimeout       = goerr.New("call timed out")
	ErrMalformedResponse = goerr.New("malformed response")
)

// RemoteError is a well-formed error envelope returned by the worker. Raw is
// the error field exactly as received.
type RemoteError struct {
	Code    int
	Message string
	Data    json.RawMessage
	Raw     json.RawMessage
}

func newRemoteError(raw json.RawMessage) *RemoteError {
	e := &RemoteError{Raw: append(json.RawMessage(nil), raw...)}

	var obj ErrorObject
	if err := json.Unmarshal(raw, &obj); err == nil {
		e.Code = obj.Code
		e.Message = obj.Message
		e.Data = obj.Data
		return e
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		e.Message = text
		return e
	}

	e.Message = string(raw)
	return e
}

func (e *RemoteError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
	}
	return "remote error: " + e.Message
}

// Is lets errors.Is match ErrRemote, and ErrUnknownTool for unknown-tool codes.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRemote:
		return true
	case ErrUnknownTool:
		return e.Code == CodeUnknownTool
	}
	return false
}
