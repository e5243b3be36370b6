package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies the step that failed
type Kind string

const (
	KindDiscovery Kind = "discovery" // no archive link on the index page
	KindFetch     Kind = "fetch"     // transport error or non-2xx response
	KindLocate    Kind = "locate"    // unreadable archive or no CSV member
	KindParse     Kind = "parse"     // malformed CSV content
	KindWrite     Kind = "write"     // output or manifest could not be written
)

// Error is a failure of one pipeline step
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none
func KindOf(err error) Kind {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Kind
	}
	return ""
}
