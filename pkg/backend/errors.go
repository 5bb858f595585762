package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrUnknownBackend is returned when a backend id is not in the Set.
var ErrUnknownBackend = errors.New("unknown backend")

// FatalError wraps a backend failure. It aborts the current request; its
// message is the adapter's error unmodified.
type FatalError struct {
	Backend string
	Err     error
}

func (e *FatalError) Error() string { return e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as a FatalError for the named backend. It returns nil
// for a nil err and does not double-wrap.
func Fatal(name string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return err
	}
	return &FatalError{Backend: name, Err: err}
}

// HTTPError maps a non-2xx vendor response to an error carrying the
// vendor's message when one can be extracted from the body.
func HTTPError(resp *http.Response) error {
	msg := extractErrorMessage(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if msg == "" {
			msg = "backend authentication failed"
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		if msg == "" {
			msg = "backend rate limit exceeded"
		}
	case resp.StatusCode >= http.StatusInternalServerError:
		if msg == "" {
			msg = "backend server error"
		}
	default:
		if msg == "" {
			msg = "unexpected backend error"
		}
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
}

// extractErrorMessage reads {"error":{"message":...}}, the shape both
// OpenAI-compatible servers and the Gemini API use.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return string(data)
}
