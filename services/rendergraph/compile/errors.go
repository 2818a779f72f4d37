// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
)

var (
	// ErrNilGraph is returned when Compile is given a nil graph.
	ErrNilGraph = errors.New("graph must not be nil")

	// ErrNoOutputs is returned when a graph has no marked output.
	ErrNoOutputs = errors.New("graph has no outputs")

	// ErrCycleDetected is returned when pass dependencies form a cycle.
	ErrCycleDetected = errors.New("cycle detected in render graph")

	// ErrUnknownPort is returned when a reference names a port the pass does not declare.
	ErrUnknownPort = errors.New("unknown port")

	// ErrPortDirection is returned when an edge or output uses a port against its direction.
	ErrPortDirection = errors.New("port used in wrong direction")

	// ErrMissingInput is returned when a required input of a contributing pass is unconnected.
	ErrMissingInput = errors.New("required input not connected")

	// ErrNoReflection is returned in strict mode for passes that do not declare ports.
	ErrNoReflection = errors.New("pass does not declare its ports")
)

// PortError ties a port validation failure to the offending reference.
type PortError struct {
	Ref graph.PortRef
	Err error
}

// Error returns the error message.
func (e *PortError) Error() string {
	return fmt.Sprintf("port %s: %v", e.Ref, e.Err)
}

// Unwrap returns the underlying error.
func (e *PortError) Unwrap() error {
	return e.Err
}

// CycleError provides the pass names along a detected cycle.
//
// The first and last element of Path are the same pass.
type CycleError struct {
	Path []string
}

// Error returns the cycle description.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Path, " -> "))
}

// Unwrap lets errors.Is match ErrCycleDetected.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}
