package transport

import (
	"fmt"
	"net/http"

	session "github.com/goliatone/go-session"
)

// StatusError is returned for non 2xx responses. A 401 response matches
// session.ErrUnauthorized, every other status is an ordinary failure.
type StatusError struct {
	Method   string
	Path     string
	Status   int
	TextCode string
	Message  string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "unexpected response status"
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// Is reports a match against session.ErrUnauthorized for 401 responses.
func (e *StatusError) Is(target error) bool {
	if e == nil {
		return false
	}
	return e.Status == http.StatusUnauthorized && target == session.ErrUnauthorized
}

// Unauthorized reports whether the server rejected the access credential.
func (e *StatusError) Unauthorized() bool {
	return e != nil && e.Status == http.StatusUnauthorized
}

// Metadata returns details suitable for go-errors metadata and logs.
func (e *StatusError) Metadata() map[string]any {
	if e == nil {
		return nil
	}
	meta := map[string]any{
		"method": e.Method,
		"path":   e.Path,
		"status": e.Status,
	}
	if e.TextCode != "" {
		meta["text_code"] = e.TextCode
	}
	if e.Message != "" {
		meta["message"] = e.Message
	}
	return meta
}

type errorBody struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	TextCode string `json:"text_code"`
}
