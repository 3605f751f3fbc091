package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies decision failures. None of them is fatal; all may be retried.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindFetch      ErrorKind = "fetch"
	KindCommit     ErrorKind = "commit"
	KindConflict   ErrorKind = "conflict"
)

const (
	MsgReasonRequired     = "Please provide a reason for rejection."
	MsgOutstandingBalance = "Cannot approve with an outstanding balance"
	MsgFetchFailed        = "Failed to fetch patient list."
	MsgCommitFailed       = "Failed to update patient status."
	MsgAlreadyDecided     = "Discharge was already decided by another staff member."
	MsgDecisionInFlight   = "A decision for this patient is already being processed."
)

// DecisionError carries a user-facing message plus the underlying cause.
type DecisionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DecisionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DecisionError) Unwrap() error { return e.Err }

func ValidationError(msg string) error {
	return &DecisionError{Kind: KindValidation, Message: msg}
}

func FetchError(msg string, err error) error {
	return &DecisionError{Kind: KindFetch, Message: msg, Err: err}
}

func CommitError(err error) error {
	return &DecisionError{Kind: KindCommit, Message: MsgCommitFailed, Err: err}
}

func ConflictError(msg string, err error) error {
	return &DecisionError{Kind: KindConflict, Message: msg, Err: err}
}

// KindOf returns the error kind, or "" for errors outside the decision workflow.
func KindOf(err error) ErrorKind {
	var de *DecisionError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// UserMessage returns the message safe to show an operator.
func UserMessage(err error) string {
	var de *DecisionError
	if errors.As(err, &de) {
		return de.Message
	}
	return MsgCommitFailed
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsFetch(err error) bool      { return KindOf(err) == KindFetch }
func IsCommit(err error) bool     { return KindOf(err) == KindCommit }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
