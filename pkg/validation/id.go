// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-provided identifiers before they reach
// storage keys.
//
// Catalog keys are built by concatenating a prefix and the record id, so
// an unchecked id such as "" or "../x" could address keys outside the
// record namespace.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidID is returned for ids that are not canonical record ids.
var ErrInvalidID = errors.New("invalid record id")

// ValidateRecordID checks that id is a canonical lowercase UUID, the only
// form the catalog assigns.
//
// Example:
//
//	if err := validation.ValidateRecordID(c.Param("id")); err != nil {
//	    return err
//	}
//	// Safe to use as a catalog key
func ValidateRecordID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return fmt.Errorf("%w: %q (must be a lowercase hyphenated UUID)", ErrInvalidID, id)
	}
	return nil
}

// ValidateRecordIDs validates several ids and lists every invalid one.
func ValidateRecordIDs(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateRecordID(id); err != nil {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: %q", ErrInvalidID, invalid)
	}
	return nil
}

// SanitizeRecordID normalizes user input, such as an uppercase or braced
// UUID pasted from elsewhere, to the canonical form.
//
//	id, err := validation.SanitizeRecordID(args[0])
//	if err != nil {
//	    return err
//	}
func SanitizeRecordID(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, input)
	}
	return parsed.String(), nil
}
