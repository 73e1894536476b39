// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package apperr

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// Kind classifies an error for callers and for the HTTP layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthorizationDenied
	KindInvalidState
	KindInsufficientCredits
	KindValidation
	KindNotFound
	KindTransientStorage
)

func (k Kind) String() string {
	switch k {
	case KindAuthorizationDenied:
		return "AuthorizationDenied"
	case KindInvalidState:
		return "InvalidState"
	case KindInsufficientCredits:
		return "InsufficientCredits"
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFound"
	case KindTransientStorage:
		return "TransientStorageError"
	default:
		return "Unknown"
	}
}

// Error codes
const (
	CodeNotEligible         = "NotEligible"
	CodeUnitNotEligible     = "UnitNotEligible"
	CodeQuestionNotOpen     = "QuestionNotOpen"
	CodeOptionMismatch      = "OptionMismatch"
	CodeAssemblyNotActive   = "AssemblyNotActive"
	CodeIllegalTransition   = "IllegalTransition"
	CodeStructureFrozen     = "StructureFrozen"
	CodeInsufficientCredits = "InsufficientCredits"
	CodeProxyCapExceeded    = "ProxyCapExceeded"
	CodePowerAlreadyGranted = "PowerAlreadyGranted"
	CodeNoUnits             = "NoUnits"
	CodeInvalidHandle       = "InvalidHandle"
	CodeInvalidInput        = "InvalidInput"
	CodeDuplicate           = "Duplicate"
	CodeNotFound            = "NotFound"
	CodeStorageBusy         = "StorageBusy"
	CodeRoleDenied          = "RoleDenied"
)

// Error is the single error shape returned by the engine. Required and
// Available are only set for KindInsufficientCredits.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Required  int64
	Available int64
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry automatically.
func (e *Error) Retryable() bool { return e.Kind == KindTransientStorage }

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

func NotEligible() *Error {
	return &Error{
		Kind:    KindAuthorizationDenied,
		Code:    CodeNotEligible,
		Message: "handle is not eligible to vote for any unit in this assembly",
	}
}

func UnitNotEligible(unitID string) *Error {
	return &Error{
		Kind:    KindAuthorizationDenied,
		Code:    CodeUnitNotEligible,
		Message: "unit " + unitID + " is not in the caller's eligible units",
	}
}

func QuestionNotOpen(state string) *Error {
	return &Error{
		Kind:    KindInvalidState,
		Code:    CodeQuestionNotOpen,
		Message: "question is " + state + ", voting requires open",
	}
}

func OptionMismatch(optionID, questionID string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeOptionMismatch,
		Message: "option " + optionID + " does not belong to question " + questionID,
	}
}

func RoleDenied(role string) *Error {
	return &Error{
		Kind:    KindAuthorizationDenied,
		Code:    CodeRoleDenied,
		Message: "role " + role + " may not perform this operation",
	}
}

func InvalidState(code, message string) *Error {
	return &Error{Kind: KindInvalidState, Code: code, Message: message}
}

// InsufficientCredits reports the exact numbers so the caller can offer a top-up.
func InsufficientCredits(required, available int64) *Error {
	return &Error{
		Kind:      KindInsufficientCredits,
		Code:      CodeInsufficientCredits,
		Message:   fmt.Sprintf("operation requires %s credits, balance is %s", humanize.Comma(required), humanize.Comma(available)),
		Required:  required,
		Available: available,
	}
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: what + " not found"}
}

func Transient(err error) *Error {
	return &Error{
		Kind:    KindTransientStorage,
		Code:    CodeStorageBusy,
		Message: "storage temporarily unavailable, retry",
		Err:     err,
	}
}
