package kwikpik

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kwikpik/kwikpik-go/internal/transport"
)

var (
	// ErrInvalidArgument matches every *ArgumentError.
	ErrInvalidArgument = errors.New("kwikpik: invalid argument")
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("kwikpik: validation failed")
)

// ArgumentError reports a programming error caught before any I/O.
type ArgumentError struct {
	Op      string
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("kwikpik: %s: %s", e.Op, e.Message)
}

func (e *ArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

func argError(op, format string, args ...any) *ArgumentError {
	return &ArgumentError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// ValidationError carries every schema violation of a payload, in order.
// Its message is the JSON array of those violations.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	raw, err := json.MarshalIndent(e.Messages, "", "  ")
	if err != nil {
		return fmt.Sprintf("%q", e.Messages)
	}
	return string(raw)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StatusError is returned by Call and Send for non-2xx responses.
type StatusError = transport.StatusError
