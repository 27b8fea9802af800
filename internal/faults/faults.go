// Package faults classifies errors into the operator-facing categories
// used for reporting and retry decisions.
package faults

import (
	"errors"
	"fmt"
)

// Class identifies the failure category an error belongs to.
type Class string

const (
	ClassConfig            Class = "ConfigError"
	ClassConnectivity      Class = "ConnectivityError"
	ClassAuthorization     Class = "AuthorizationError"
	ClassInvalidFilename   Class = "InvalidFilename"
	ClassControlRowMissing Class = "ControlRowMissing"
	ClassNoMappingFound    Class = "NoMappingFound"
	ClassAmbiguousMapping  Class = "AmbiguousMapping"
	ClassCertification     Class = "CertificationError"
	ClassLockHeld          Class = "LockHeld"
	ClassLockStale         Class = "LockStale"
	ClassRender            Class = "RenderError"
	ClassUpload            Class = "UploadError"
	ClassInternal          Class = "InternalError"
)

// Error wraps an underlying error with a classification.
type Error struct {
	Class Class
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error from a format string.
func New(class Class, format string, args ...any) error {
	return &Error{Class: class, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a classification to an existing error. A nil err returns nil.
// If err is already classified, the original class is preserved.
func Wrap(class Class, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Class: class, Err: err}
}

// ClassOf returns the classification of err, or ClassInternal for
// unclassified errors.
func ClassOf(err error) Class {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Class
	}
	return ClassInternal
}

// Retryable reports whether an error represents a transient condition on a
// collaborator boundary. Structural and data-authoring failures are never
// retryable; they require correction upstream.
func Retryable(err error) bool {
	switch ClassOf(err) {
	case ClassConnectivity, ClassUpload:
		return true
	}
	return false
}
