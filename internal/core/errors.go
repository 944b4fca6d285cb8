package core

import (
	"errors"
	"fmt"
)

// Kind classifies where in the guidance pipeline a failure happened.
type Kind string

const (
	KindInput           Kind = "input"
	KindRecognition     Kind = "recognition"
	KindTranslation     Kind = "translation"
	KindGeneration      Kind = "generation"
	KindSynthesis       Kind = "synthesis"
	KindDocument        Kind = "document"
	KindPayloadTooLarge Kind = "payload_too_large"
	KindEmail           Kind = "email"
)

// StageError is the error type returned by every pipeline stage.
type StageError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *StageError) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func (e *StageError) Unwrap() error { return e.Err }

// NewError builds a StageError with a message and no cause.
func NewError(kind Kind, msg string) error {
	return &StageError{Kind: kind, Msg: msg}
}

// WrapError attaches kind to err. A nil err stays nil.
func WrapError(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the outermost StageError in err's chain.
func KindOf(err error) (Kind, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
