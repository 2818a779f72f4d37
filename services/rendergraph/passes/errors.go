// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package passes

import (
	"errors"
	"fmt"
)

// Sentinel errors for the passes package.
var (
	// ErrUnresolvedType is returned when creating a pass whose type is not registered.
	// Usually the library that provides the type has not been loaded.
	ErrUnresolvedType = errors.New("unresolved pass type")

	// ErrUnknownLibrary is returned when loading a library the registry does not know.
	ErrUnknownLibrary = errors.New("unknown pass library")

	// ErrDuplicateType is returned when registering a type name twice.
	ErrDuplicateType = errors.New("pass type already registered")

	// ErrInvalidDescriptor is returned when a descriptor has no type name or factory.
	ErrInvalidDescriptor = errors.New("invalid pass descriptor")

	// ErrInvalidOptions is returned when pass options fail validation.
	ErrInvalidOptions = errors.New("invalid pass options")
)

// TypeError wraps an error with the pass type that caused it.
type TypeError struct {
	Type string
	Err  error
}

// Error returns the error message.
func (e *TypeError) Error() string {
	return fmt.Sprintf("pass type %q: %v", e.Type, e.Err)
}

// Unwrap returns the underlying error.
func (e *TypeError) Unwrap() error {
	return e.Err
}
