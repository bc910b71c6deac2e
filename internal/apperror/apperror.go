// Package apperror classifies engine failures into the four kinds the
// adapter layer turns into user-visible responses.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the error class.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindState      Kind = "state"
)

// Error carries enough context for the adapter to build a precise message.
// Zero-valued fields are simply omitted from Error().
type Error struct {
	Kind    Kind
	Op      string
	Message string

	SlotID        string
	NegotiationID string
	PriceCents    int64
	MinCents      int64
	MaxCents      int64

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)

	var details []string
	if e.NegotiationID != "" {
		details = append(details, "negotiation="+e.NegotiationID)
	}
	if e.SlotID != "" {
		details = append(details, "slot="+e.SlotID)
	}
	if e.PriceCents != 0 {
		details = append(details, fmt.Sprintf("price=%d", e.PriceCents))
	}
	if e.MinCents != 0 || e.MaxCents != 0 {
		details = append(details, fmt.Sprintf("range=[%d,%d]", e.MinCents, e.MaxCents))
	}
	if len(details) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(details, " "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a KindValidation error.
func Validation(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

// Conflict builds a KindConflict error.
func Conflict(op, msg string) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: msg}
}

// NotFound builds a KindNotFound error.
func NotFound(op, msg string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: msg}
}

// State builds a KindState error. Retrying after a StateError is safe.
func State(op, msg string) *Error {
	return &Error{Kind: KindState, Op: op, Message: msg}
}

// WithSlot sets SlotID and returns e.
func (e *Error) WithSlot(id string) *Error {
	e.SlotID = id
	return e
}

// WithNegotiation sets NegotiationID and returns e.
func (e *Error) WithNegotiation(id string) *Error {
	e.NegotiationID = id
	return e
}

// WithPrice records the attempted price and, optionally, the allowed range.
func (e *Error) WithPrice(price, min, max int64) *Error {
	e.PriceCents = price
	e.MinCents = min
	e.MaxCents = max
	return e
}

// Wrap attaches the underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
