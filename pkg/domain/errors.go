package domain

import (
	"errors"
	"fmt"
)

// Relationship rejection causes, carried in ValidationError.Err.
var (
	ErrSelfRelationship      = errors.New("self relationship")
	ErrDuplicateRelationship = errors.New("duplicate relationship")
	ErrCycle                 = errors.New("parent-child cycle")
)

// ValidationError reports bad input: an empty name, a self reference, a
// duplicate edge, or an edge that would create an ancestry cycle. Err, when
// set, names the relationship rule that rejected the input.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap returns the rejection cause, if any.
func (e ValidationError) Unwrap() error { return e.Err }

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     int
	Key    string
}

func (e NotFoundError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
	}
	return fmt.Sprintf("%s not found (ID: %d)", e.Entity, e.ID)
}

// PersistenceError wraps load and save failures of a snapshot backend.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return fmt.Sprintf("transaction blocked by rules: %s", v.Message)
		}
	}
	return "transaction blocked by rules"
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

// IsPersistence reports whether err is or wraps a PersistenceError.
func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}

// IsRuleViolation reports whether err is or wraps a RuleViolationError.
func IsRuleViolation(err error) bool {
	var target RuleViolationError
	return errors.As(err, &target)
}
