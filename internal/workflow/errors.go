package workflow

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// PreconditionError reports a command issued before its required artifact exists.
type PreconditionError struct {
	Project string
	Missing string
	Next    string
}

func (e *PreconditionError) Error() string {
	if e.Next == "" {
		return e.Missing
	}
	return fmt.Sprintf("%s; call %s first", e.Missing, e.Next)
}

// NotFoundError reports an unknown project name.
type NotFoundError struct {
	Project string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Project '%s' not found", e.Project)
}

// ConflictError reports a project name that is already active in this process.
type ConflictError struct {
	Project string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Project '%s' is already active; use get_workflow_status to inspect it", e.Project)
}

// InvalidInputError reports a malformed command argument.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotStarted returns the precondition error for a command issued against a
// project that was never started.
func NotStarted(name string) error {
	return &PreconditionError{
		Project: name,
		Missing: fmt.Sprintf("Project '%s' not started", name),
		Next:    "start_project",
	}
}

// IsPrecondition reports whether err is or wraps a PreconditionError.
func IsPrecondition(err error) bool {
	var target *PreconditionError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidateName checks that a project name is usable as a directory name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) || strings.Contains(name, "..") {
		return &InvalidInputError{
			Field:  "project_name",
			Reason: fmt.Sprintf("%q must be 1-64 letters, digits, '.', '_' or '-' and start with a letter or digit", name),
		}
	}
	return nil
}
