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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
)

func loadedRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewDefaultRegistry(nil)
	for _, lib := range r.Libraries() {
		require.NoError(t, r.LoadLibrary(lib))
	}
	return r
}

func TestImageLoader(t *testing.T) {
	r := loadedRegistry(t)

	t.Run("defaults", func(t *testing.T) {
		p, err := r.Create("ImageLoader", graph.Options{"filename": "smoke-puff.png"})
		require.NoError(t, err)
		loader := p.(*ImageLoader)
		assert.Equal(t, ImageLoaderSettings{Filename: "smoke-puff.png", Mips: true, SRGB: true}, loader.Settings())

		port, ok := loader.Reflect().Port("dst")
		require.True(t, ok)
		assert.Equal(t, graph.PortOutput, port.Kind)
	})

	t.Run("explicit", func(t *testing.T) {
		p, err := r.Create("ImageLoader", graph.Options{"filename": "smoke-puff.png", "mips": false, "srgb": true})
		require.NoError(t, err)
		assert.Equal(t, ImageLoaderSettings{Filename: "smoke-puff.png", Mips: false, SRGB: true}, p.(*ImageLoader).Settings())
	})

	tests := []struct {
		name string
		opts graph.Options
	}{
		{"missing filename", graph.Options{}},
		{"unsupported extension", graph.Options{"filename": "smoke-puff.txt"}},
		{"wrong type", graph.Options{"filename": "smoke-puff.png", "mips": "yes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Create("ImageLoader", tt.opts)
			require.Error(t, err)
		})
	}

	t.Run("validation names option key", func(t *testing.T) {
		_, err := r.Create("ImageLoader", graph.Options{"filename": "smoke-puff.txt"})
		require.ErrorIs(t, err, ErrInvalidOptions)
		assert.Contains(t, err.Error(), "filename failed imagefile")
	})
}

func TestTemporalDelayPass(t *testing.T) {
	r := loadedRegistry(t)

	p, err := r.Create("TemporalDelayPass", graph.Options{"delay": 16})
	require.NoError(t, err)
	delay := p.(*TemporalDelayPass)
	assert.Equal(t, 16, delay.Settings().Delay)

	refl := delay.Reflect()
	_, ok := refl.Port("maxDelay")
	assert.True(t, ok)
	_, ok = refl.Port("maxDelay-15")
	assert.True(t, ok)
	_, ok = refl.Port("maxDelay-16")
	assert.False(t, ok)
	src, ok := refl.Port("src")
	require.True(t, ok)
	assert.True(t, src.Kind.IsInput())

	p, err = r.Create("TemporalDelayPass", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p.(*TemporalDelayPass).Settings().Delay)
	assert.Len(t, p.(*TemporalDelayPass).Reflect().Ports, 2)

	_, err = r.Create("TemporalDelayPass", graph.Options{"delay": -1})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = r.Create("TemporalDelayPass", graph.Options{"delay": MaxTemporalDelay + 1})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestDepthAndForwardLighting(t *testing.T) {
	r := loadedRegistry(t)

	p, err := r.Create("DepthPass", nil)
	require.NoError(t, err)
	assert.Equal(t, "D32Float", p.(*DepthPass).Settings().DepthFormat)

	_, err = r.Create("DepthPass", graph.Options{"depthFormat": "RGBA8"})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	p, err = r.Create("ForwardLightingPass", graph.Options{"sampleCount": 4})
	require.NoError(t, err)
	fwd := p.(*ForwardLightingPass)
	assert.Equal(t, 4, fwd.Settings().SampleCount)

	color, ok := fwd.Reflect().Port("color")
	require.True(t, ok)
	assert.Equal(t, graph.PortInputOutput, color.Kind)

	_, err = r.Create("ForwardLightingPass", graph.Options{"sampleCount": 3})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestReflectedPasses(t *testing.T) {
	r := loadedRegistry(t)

	for _, typeName := range []string{"TutorialPass", "ReprojectionPass", "GBufferRaster", "SimpleShadowPass", "Lighting"} {
		t.Run(typeName, func(t *testing.T) {
			p, err := r.Create(typeName, nil)
			require.NoError(t, err)
			assert.Equal(t, typeName, p.Type())

			refl, ok := p.(graph.Reflector)
			require.True(t, ok)
			assert.NotEmpty(t, refl.Reflect().Ports)
		})
	}
}
