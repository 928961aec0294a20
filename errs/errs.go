package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failure by where it originated.
type Kind int

const (
	Internal Kind = iota
	InvalidArgument
	Upstream
	Timeout
	Storage
	Catalog
	Cancelled
)

var kindLabels = map[Kind]string{
	Internal:        "Internal error",
	InvalidArgument: "Invalid argument",
	Upstream:        "Image generation failed",
	Timeout:         "Timed out",
	Storage:         "Upload failed",
	Catalog:         "Listing failed",
	Cancelled:       "Cancelled",
}

var kindCodes = map[Kind]string{
	Internal:        "GEN001",
	InvalidArgument: "VAL001",
	Upstream:        "API001",
	Timeout:         "NET001",
	Storage:         "FOE001",
	Catalog:         "TPS001",
	Cancelled:       "CON001",
}

// String returns the label shown to users.
func (k Kind) String() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Code returns the stable short code for the kind.
func (k Kind) Code() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return kindCodes[Internal]
}

// Error is a classified failure. Op names the operation that failed,
// e.g. "fal.generate" or "shopify.create_product".
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or Internal when err carries no classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Classify wraps err with a kind. Deadline and network timeouts become
// Timeout, context cancellation becomes Cancelled, an already classified
// error keeps its kind, and anything else gets fallback.
func Classify(op string, err error, fallback Kind) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return E(Timeout, op, err)
	case errors.Is(err, context.Canceled):
		return E(Cancelled, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return E(Timeout, op, err)
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return E(fallback, op, err)
}

// Message renders err as the short text shown to a user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		inner := e.Err
		if inner == nil {
			return e.Kind.String()
		}
		return e.Kind.String() + ": " + inner.Error()
	}
	return Internal.String() + ": " + err.Error()
}
