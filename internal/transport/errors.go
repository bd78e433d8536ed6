package transport

import (
	"fmt"
	"net/http"
)

// StatusError is returned for any non-2xx response. The body is kept verbatim
// and never interpreted.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("kwikpik: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}
