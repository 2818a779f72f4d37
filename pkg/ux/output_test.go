// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"strings"
	"testing"
)

func capture(t *testing.T, level PersonalityLevel) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	prevOut, prevErr, prevLevel := Out, Err, GetPersonality()
	Out, Err = &out, &errOut
	SetPersonality(level)
	t.Cleanup(func() {
		Out, Err = prevOut, prevErr
		SetPersonality(prevLevel)
	})
	return &out, &errOut
}

func TestParsePersonalityLevel(t *testing.T) {
	tests := map[string]PersonalityLevel{
		"full":    PersonalityFull,
		"MIN":     PersonalityMinimal,
		"quiet":   PersonalityMachine,
		" q ":     PersonalityMachine,
		"unknown": PersonalityFull,
	}
	for in, want := range tests {
		if got := ParsePersonalityLevel(in); got != want {
			t.Errorf("ParsePersonalityLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInitPersonality_Env(t *testing.T) {
	prev := GetPersonality()
	defer SetPersonality(prev)

	t.Setenv("RENDERGRAPH_PERSONALITY", "minimal")
	InitPersonality()
	if got := GetPersonality(); got != PersonalityMinimal {
		t.Errorf("GetPersonality() = %q, want minimal", got)
	}
}

func TestMachineOutput(t *testing.T) {
	out, errOut := capture(t, PersonalityMachine)

	Title("hidden")
	Success("compiled")
	Warning("culled 1 pass")
	Error("cycle detected")
	KeyValue("passes", 4)
	List("Order", []string{"A", "B"})
	Box("Plan", "A\nB")

	wantOut := "OK: compiled\npasses\t4\nA\nB\nPlan: A; B\n"
	if out.String() != wantOut {
		t.Errorf("stdout = %q, want %q", out.String(), wantOut)
	}
	wantErr := "WARN: culled 1 pass\nERROR: cycle detected\n"
	if errOut.String() != wantErr {
		t.Errorf("stderr = %q, want %q", errOut.String(), wantErr)
	}
	if ShouldShowColors() {
		t.Error("ShouldShowColors() = true in machine mode")
	}
}

func TestFullOutput(t *testing.T) {
	out, _ := capture(t, PersonalityFull)

	Title("Temporal Delay Graph")
	List("Order", []string{"ImageLoader"})
	KeyValue("edges", 3)

	s := out.String()
	for _, want := range []string{"Temporal Delay Graph", "Order", "ImageLoader", "edges:", "3"} {
		if !strings.Contains(s, want) {
			t.Errorf("output %q missing %q", s, want)
		}
	}
}
