package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound             = errors.New("not found")
	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)
	ErrMessageNotFound      = fmt.Errorf("message %w", ErrNotFound)
	ErrConflict             = errors.New("already exists")
	ErrValidation           = errors.New("validation failed")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrNotLastMessage       = errors.New("anchor is not the last message")
	ErrEditNotAllowed       = errors.New("only user messages can be edited")
	ErrSeqMismatch          = errors.New("sequence mismatch")
)

// SeqMismatchError reports an optimistic-lock failure: the sequence number the
// client observed no longer matches the stored one. The caller should reload
// the conversation and retry with fresh data; the engine never retries on its own.
type SeqMismatchError struct {
	MessageID   string
	ExpectedSeq int
	ActualSeq   int
}

func (e *SeqMismatchError) Error() string {
	return fmt.Sprintf("message %s: expected seq %d, stored seq is %d", e.MessageID, e.ExpectedSeq, e.ActualSeq)
}

// Is allows errors.Is() to match against ErrSeqMismatch
func (e *SeqMismatchError) Is(target error) bool {
	return target == ErrSeqMismatch
}

// Code returns the wire-level error code for a domain error.
// Unrecognized errors map to internal_error.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrConversationNotFound):
		return "conversation_not_found"
	case errors.Is(err, ErrMessageNotFound):
		return "message_not_found"
	case errors.Is(err, ErrSeqMismatch):
		return "seq_mismatch"
	case errors.Is(err, ErrNotLastMessage):
		return "not_last_message"
	case errors.Is(err, ErrEditNotAllowed):
		return "edit_not_allowed"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "missing_required_field"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal_error"
	}
}
