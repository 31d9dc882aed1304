package apiclient

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// ErrNotFound is returned when the backend has no project with the given id.
var ErrNotFound = errors.New("project not found")

// TransportError means the backend could not be reached or answered with a
// body that could not be decoded.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BackendError is a non-2xx answer from the backend.
type BackendError struct {
	Op         string
	StatusCode int
	// Detail is the backend's own diagnostic message, if it sent one.
	Detail string
}

func (e *BackendError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
}

// Is lets errors.Is(err, ErrNotFound) match 404 answers.
func (e *BackendError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Message returns the most specific user-facing text for err: the backend's
// detail when present, otherwise the error text. It returns "" for nil.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var be *BackendError
	if errors.As(err, &be) && be.Detail != "" {
		return be.Detail
	}
	return err.Error()
}

// IsNotFound reports whether err is a NotFound answer.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// detailFromBody extracts a diagnostic message from an error body. It
// understands {"detail": "..."}, FastAPI validation arrays
// ({"detail": [{"msg": "..."}]}) and {"error"|"message": "..."}.
func detailFromBody(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}

	detail := gjson.GetBytes(body, "detail")
	switch {
	case detail.Type == gjson.String:
		return strings.TrimSpace(detail.String())
	case detail.IsArray():
		var msgs []string
		for _, m := range detail.Get("#.msg").Array() {
			if s := strings.TrimSpace(m.String()); s != "" {
				msgs = append(msgs, s)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	case detail.IsObject():
		if msg := detail.Get("msg"); msg.Exists() {
			return strings.TrimSpace(msg.String())
		}
	}

	for _, key := range []string{"error", "message"} {
		if v := gjson.GetBytes(body, key); v.Type == gjson.String {
			return strings.TrimSpace(v.String())
		}
	}
	return ""
}
