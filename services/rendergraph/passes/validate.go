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
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// imageExtensions lists the file extensions the image loader accepts.
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tga", ".dds", ".hdr", ".exr", ".pfm"}

// optionsValidate is the validator instance for pass option structs.
var optionsValidate *validator.Validate

func init() {
	optionsValidate = validator.New()
	if err := optionsValidate.RegisterValidation("imagefile", validateImageFile); err != nil {
		panic(fmt.Sprintf("register imagefile validation: %v", err))
	}

	// Report failures under the script option key instead of the Go field name.
	optionsValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		if key := f.Tag.Get("opt"); key != "" {
			return key
		}
		return f.Name
	})
}

// validateImageFile checks that a filename carries a supported image extension.
func validateImageFile(fl validator.FieldLevel) bool {
	ext := strings.ToLower(filepath.Ext(fl.Field().String()))
	for _, allowed := range imageExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// validateSettings runs struct validation and flattens the result into a
// single ErrInvalidOptions error naming each failing field.
func validateSettings(settings any) error {
	err := optionsValidate.Struct(settings)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(msgs, "; "))
}
