package domain

import (
	"errors"
	"fmt"
)

// AskRequest is a question from a user, optionally scoped to one document.
type AskRequest struct {
	Query      string
	OwnerID    string
	DocumentID string
}

// SourceExcerpt is a chunk that was supplied to the model as context.
type SourceExcerpt struct {
	ChunkID      string
	DocumentID   string
	DocumentName string
	Position     int
	Content      string
	Score        float64
}

// Answer is the result of a successful question.
type Answer struct {
	ExchangeID  string
	Text        string
	Mode        AnswerMode
	Provenance  Provenance
	Excerpts    []SourceExcerpt
	Suggestions []string
}

// ErrorKind classifies failures returned to users.
type ErrorKind string

// Error kinds. The first four are declines: expected preconditions that
// the user can act on.
const (
	KindNotFound            ErrorKind = "not_found"
	KindNotReady            ErrorKind = "not_ready"
	KindReprocessRequired   ErrorKind = "reprocess_required"
	KindNoRelevantContent   ErrorKind = "no_relevant_content"
	KindInvalidInput        ErrorKind = "invalid_input"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindInternal            ErrorKind = "internal"
)

// AskError is the structured envelope for declines and failures.
type AskError struct {
	Kind    ErrorKind
	Message string

	// Status is the document status behind a not_ready or
	// reprocess_required decline.
	Status DocumentStatus

	Err error
}

func (e *AskError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AskError) Unwrap() error {
	return e.Err
}

// IsDecline reports whether the error is an expected precondition rather
// than a fault.
func (e *AskError) IsDecline() bool {
	switch e.Kind {
	case KindNotFound, KindNotReady, KindReprocessRequired, KindNoRelevantContent:
		return true
	default:
		return false
	}
}

// AsAskError extracts an AskError from err.
func AsAskError(err error) (*AskError, bool) {
	var askErr *AskError
	if errors.As(err, &askErr) {
		return askErr, true
	}
	return nil, false
}

// DeclineForStatus returns the decline for a scoped question against a
// document that is not ready, or nil when the document is ready.
func DeclineForStatus(status DocumentStatus) *AskError {
	switch status {
	case DocumentReady:
		return nil
	case DocumentError:
		return &AskError{
			Kind:    KindReprocessRequired,
			Message: "This document failed processing. Please re-upload or reprocess it.",
			Status:  status,
		}
	case DocumentNotStarted:
		return &AskError{
			Kind:    KindNotReady,
			Message: "This document has not been processed yet.",
			Status:  status,
		}
	default:
		return &AskError{
			Kind:    KindNotReady,
			Message: "This document is still being processed. Please try again in a moment.",
			Status:  status,
		}
	}
}
