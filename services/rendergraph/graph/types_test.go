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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePortRef(t *testing.T) {
	tests := []struct {
		in      string
		want    PortRef
		wantErr bool
	}{
		{in: "ImageLoader.dst", want: PortRef{Pass: "ImageLoader", Port: "dst"}},
		{in: "Blur.out.hdr", want: PortRef{Pass: "Blur", Port: "out.hdr"}},
		{in: "TemporalDelayPass.maxDelay-1", want: PortRef{Pass: "TemporalDelayPass", Port: "maxDelay-1"}},
		{in: "NoSeparator", wantErr: true},
		{in: "", wantErr: true},
		{in: ".port", wantErr: true},
		{in: "pass.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePortRef(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidReference)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestOptions_Validate(t *testing.T) {
	valid := Options{
		"s": "x", "b": true, "i": 3, "i64": int64(4), "u8": uint8(1), "f": 1.5,
	}
	assert.NoError(t, valid.Validate())

	assert.ErrorIs(t, Options{"m": map[string]any{}}.Validate(), ErrInvalidOption)
	assert.ErrorIs(t, Options{"n": nil}.Validate(), ErrInvalidOption)
	assert.ErrorIs(t, Options{"": 1}.Validate(), ErrInvalidOption)
	assert.NoError(t, Options(nil).Validate())
}

func TestOptions_Getters(t *testing.T) {
	opts := Options{
		"filename": "smoke-puff.png",
		"mips":     false,
		"delay":    16,
		"jsonInt":  float64(8),
		"ratio":    0.5,
	}

	s, err := opts.GetString("filename", "")
	require.NoError(t, err)
	assert.Equal(t, "smoke-puff.png", s)

	b, err := opts.GetBool("mips", true)
	require.NoError(t, err)
	assert.False(t, b)

	b, err = opts.GetBool("srgb", true)
	require.NoError(t, err)
	assert.True(t, b, "absent key returns default")

	i, err := opts.GetInt("delay", 1)
	require.NoError(t, err)
	assert.Equal(t, 16, i)

	i, err = opts.GetInt("jsonInt", 1)
	require.NoError(t, err)
	assert.Equal(t, 8, i)

	_, err = opts.GetInt("ratio", 1)
	assert.ErrorIs(t, err, ErrInvalidOption)

	f, err := opts.GetFloat("delay", 0)
	require.NoError(t, err)
	assert.Equal(t, 16.0, f)

	_, err = opts.GetString("delay", "")
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = opts.GetBool("filename", false)
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestOptions_GetIntRange(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    int
		wantErr bool
	}{
		{"uint64 in range", uint64(16), 16, false},
		{"uint64 max", uint64(math.MaxUint64), 0, true},
		{"uint max", uint(math.MaxUint), 0, true},
		{"int64 max", int64(math.MaxInt64), math.MaxInt64, false},
		{"float above range", 1e30, 0, true},
		{"float below range", -1e30, 0, true},
		{"float at 2^63", float64(1 << 63), 0, true},
		{"float at min", float64(math.MinInt64), math.MinInt64, false},
		{"float32 large", float32(1e20), 0, true},
		{"infinity", math.Inf(1), 0, true},
		{"nan", math.NaN(), 0, true},
		{"negative integral float", -3.0, -3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Options{"delay": tt.value}.GetInt("delay", 1)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOption)
				assert.Equal(t, 1, got, "default is returned on error")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReflection_Port(t *testing.T) {
	var r Reflection
	r.AddInput("src", "source").AddOutput("dst", "result").AddInputOutput("color", "")

	p, ok := r.Port("color")
	require.True(t, ok)
	assert.True(t, p.Kind.IsInput())
	assert.True(t, p.Kind.IsOutput())

	p, ok = r.Port("src")
	require.True(t, ok)
	assert.False(t, p.Kind.IsOutput())

	_, ok = r.Port("missing")
	assert.False(t, ok)
}
