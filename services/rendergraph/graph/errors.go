// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for the graph package.
var (
	// ErrDuplicateName is returned when adding a pass under a name already in use.
	ErrDuplicateName = errors.New("pass with this name already exists")

	// ErrUnknownPass is returned when an edge or output references a missing pass.
	ErrUnknownPass = errors.New("pass not found")

	// ErrPortAlreadyConnected is returned when a destination port already has an incoming edge.
	ErrPortAlreadyConnected = errors.New("destination port already has an incoming edge")

	// ErrInvalidReference is returned when a port reference is malformed.
	ErrInvalidReference = errors.New("invalid port reference")

	// ErrEdgeNotFound is returned when removing an edge that does not exist.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrNilPass is returned when a nil pass is provided.
	ErrNilPass = errors.New("pass must not be nil")

	// ErrEmptyName is returned when a pass name is empty.
	ErrEmptyName = errors.New("pass name must not be empty")

	// ErrInvalidOption is returned when a pass option holds a non-scalar value.
	ErrInvalidOption = errors.New("invalid pass option")
)

// PassError wraps an error with the pass that caused it.
type PassError struct {
	PassName string
	Err      error
}

// Error returns the error message.
func (e *PassError) Error() string {
	return fmt.Sprintf("pass %q: %v", e.PassName, e.Err)
}

// Unwrap returns the underlying error.
func (e *PassError) Unwrap() error {
	return e.Err
}

// NewPassError creates a PassError.
func NewPassError(passName string, err error) *PassError {
	return &PassError{
		PassName: passName,
		Err:      err,
	}
}

// ReferenceError wraps an error with the port reference that caused it.
type ReferenceError struct {
	Ref string
	Err error
}

// Error returns the error message.
func (e *ReferenceError) Error() string {
	return fmt.Sprintf("port reference %q: %v", e.Ref, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReferenceError) Unwrap() error {
	return e.Err
}

// NewReferenceError creates a ReferenceError.
func NewReferenceError(ref string, err error) *ReferenceError {
	return &ReferenceError{
		Ref: ref,
		Err: err,
	}
}
