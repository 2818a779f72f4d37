// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package script

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidScript is returned when a script document is malformed.
	ErrInvalidScript = errors.New("invalid graph script")

	// ErrScriptTooLarge is returned when a script file exceeds MaxScriptFileSize.
	ErrScriptTooLarge = errors.New("graph script too large")

	// ErrNilScript is returned when Run is given a nil script.
	ErrNilScript = errors.New("script must not be nil")

	// ErrScriptNotFound is returned when a built-in script name is unknown.
	ErrScriptNotFound = errors.New("script not found")
)

// BuildError reports which step of a script failed.
type BuildError struct {
	// Script is the script name.
	Script string

	// Step describes the failing statement, e.g. `addEdge("A.out", "B.in")`.
	Step string

	Err error
}

// Error returns the error message.
func (e *BuildError) Error() string {
	return fmt.Sprintf("script %q: %s: %v", e.Script, e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error {
	return e.Err
}
