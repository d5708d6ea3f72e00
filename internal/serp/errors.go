package serp

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds returned by Search. Match with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrConnection   = errors.New("connection error")
	ErrParsing      = errors.New("parsing error")
)

// Error carries the kind of a search failure plus whatever detail the failing
// step had: the last HTTP status for exhausted retries, the underlying cause
// for transport and parse failures.
type Error struct {
	Kind       error
	Op         string
	StatusCode int
	Reason     string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("serp: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
		if e.Reason != "" {
			b.WriteString(" ")
			b.WriteString(e.Reason)
		}
	} else if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func invalidInput(reason string) error {
	return &Error{Kind: ErrInvalidInput, Op: "search", Reason: reason}
}

func connectionError(op string, err error) error {
	return &Error{Kind: ErrConnection, Op: op, Err: err}
}

func statusError(attempts, code int, reason string) error {
	return &Error{
		Kind:       ErrConnection,
		Op:         fmt.Sprintf("http error after %d attempts", attempts),
		StatusCode: code,
		Reason:     reason,
	}
}

func parsingError(err error) error {
	return &Error{Kind: ErrParsing, Op: "extract", Err: err}
}
