package domain

import (
	"errors"
	"fmt"
)

// Kind classifies caller-visible failures. The HTTP boundary picks a status
// per kind, so kinds must never be collapsed into one another.
type Kind string

const (
	KindUnsupportedFileType       Kind = "unsupported_file_type"
	KindExtractionFailed          Kind = "extraction_failed"
	KindClassificationUnavailable Kind = "classification_unavailable"
	KindNotFound                  Kind = "not_found"
	KindInvalidRequest            Kind = "invalid_request"
	KindInternal                  Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	// Subject names the offending value, e.g. the rejected MIME type.
	Subject string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Subject != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Subject)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func WithSubject(kind Kind, message, subject string) error {
	return &Error{Kind: kind, Message: message, Subject: subject}
}

// KindOf reports the kind of the first domain error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the user-facing message of a domain error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		if de.Subject != "" {
			return fmt.Sprintf("%s (%s)", de.Message, de.Subject)
		}
		return de.Message
	}
	return "internal error"
}
