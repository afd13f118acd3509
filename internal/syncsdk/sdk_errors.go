package syncsdk

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	ErrNoServerURL  = errors.New("sdk: server url missing")
	ErrNoSourceID   = errors.New("sdk: source id missing")
	ErrNoCredential = errors.New("sdk: credential missing")
	ErrClientClosed = errors.New("sdk: client closed")
	ErrNotConnected = errors.New("sdk: not connected")
)

// ErrorKind classifies stream failures so the UI can decide between a
// transient toast, a reconnecting indicator, or a terminal state.
type ErrorKind string

const (
	// ErrKindAuth means no usable credential at connect time. Terminal
	// for the client instance, never retried automatically.
	ErrKindAuth ErrorKind = "auth"
	// ErrKindDecode means a frame could not be parsed into a known
	// event type. Reported, never fatal.
	ErrKindDecode ErrorKind = "decode"
	// ErrKindServer is a server-reported stream problem (an "error"
	// frame). Does not close the transport.
	ErrKindServer ErrorKind = "server"
	// ErrKindTransport is a network or transport failure. Triggers the
	// reconnect evaluation.
	ErrKindTransport ErrorKind = "transport"
	// ErrKindReconnectExhausted is reported exactly once when the retry
	// bound is reached without a successful reopen.
	ErrKindReconnectExhausted ErrorKind = "reconnect_exhausted"
)

// StreamError is the single error shape delivered through OnError.
type StreamError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stream error (%s): %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("stream error (%s): %s", e.Kind, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

func newStreamError(kind ErrorKind, message string, err error) *StreamError {
	return &StreamError{Kind: kind, Message: message, Err: err}
}

// IsAuthError reports whether err is a terminal authentication failure.
func IsAuthError(err error) bool {
	var se *StreamError
	return errors.As(err, &se) && se.Kind == ErrKindAuth
}

const (
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied
	CodeSourceNotFound = "E_SOURCE_NOT_FOUND"
	CodeUnknownError   = "E_UNKNOWN_ERR"
)

// APIError represents DocBox REST API errors.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func NewAPIError(code, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

// handleAPIError is a helper function that handles the common error pattern
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s %w", operation, requestErr)
	}

	// got a response, but api returned an error
	if resp.IsErrorState() {
		if err, ok := resp.ErrorResult().(*APIError); ok {
			return fmt.Errorf("%s %w", operation, err)
		}

		return fmt.Errorf("api error: %s %s", operation, resp.Dump())
	}

	return nil
}
