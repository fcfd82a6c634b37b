package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed rule/template payload or a broken
// timing configuration. Always caller-visible.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a missing resource or one owned by someone else;
// the two cases are deliberately indistinguishable to the caller.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func NewNotFound(resource string, id int64) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError reports a state-guard violation: cancelling inside the lock
// window, cancelling a non-pending message, or losing a claim race.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func NewConflict(reason string) error {
	return &ConflictError{Reason: reason}
}

// ProviderError reports a rejected or failed provider send. It is recorded
// in the delivery ledger and never propagates through the API.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("provider %s: %s", e.Code, e.Message)
}

func NewProvider(code, message string) error {
	return &ProviderError{Code: code, Message: message}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsProvider(err error) bool {
	var p *ProviderError
	return errors.As(err, &p)
}
