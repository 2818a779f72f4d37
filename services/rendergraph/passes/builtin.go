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
	"fmt"

	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
)

// Built-in library names.
const (
	CoreLibrary                       = "Core"
	ImageLoaderLibrary                = "ImageLoader"
	TemporalDelayLibrary              = "TemporalDelayPass"
	TutorialLibrary                   = "TutorialPass"
	ReprojectionLibrary               = "ReprojectionPass"
	SpatioTemporalReprojectionLibrary = "SpatioTemporalReprojection"
)

// BuiltinLibraries returns every library shipped with the module.
func BuiltinLibraries() []Library {
	return []Library{
		{
			Name: CoreLibrary,
			Passes: []Descriptor{
				{
					Type:        "DepthPass",
					Description: "Renders scene depth into a depth buffer",
					Keys:        []string{"depthFormat"},
					Factory:     newDepthPass,
				},
				{
					Type:        "ForwardLightingPass",
					Description: "Forward shading with optional depth pre-pass",
					Keys:        []string{"sampleCount", "superSampling"},
					Factory:     newForwardLightingPass,
				},
			},
		},
		{
			Name: ImageLoaderLibrary,
			Passes: []Descriptor{{
				Type:        "ImageLoader",
				Description: "Loads an image file into a texture",
				Keys:        []string{"filename", "mips", "srgb"},
				Factory:     newImageLoader,
			}},
		},
		{
			Name: TemporalDelayLibrary,
			Passes: []Descriptor{{
				Type:        "TemporalDelayPass",
				Description: "Delays its input by a fixed number of frames",
				Keys:        []string{"delay"},
				Factory:     newTemporalDelayPass,
			}},
		},
		{
			Name: TutorialLibrary,
			Passes: []Descriptor{{
				Type:        "TutorialPass",
				Description: "Renders a scene as a wireframe",
				Factory:     reflectedFactory("TutorialPass", tutorialPorts),
			}},
		},
		{
			Name: ReprojectionLibrary,
			Passes: []Descriptor{{
				Type:        "ReprojectionPass",
				Description: "Reprojects the left eye image to the right eye",
				Factory:     reflectedFactory("ReprojectionPass", reprojectionPorts),
			}},
		},
		{
			Name: SpatioTemporalReprojectionLibrary,
			Passes: []Descriptor{
				{
					Type:        "GBufferRaster",
					Description: "Rasterizes the scene into a G-buffer",
					Factory:     reflectedFactory("GBufferRaster", gbufferPorts),
				},
				{
					Type:        "SimpleShadowPass",
					Description: "Renders a shadow map from the main light",
					Factory:     reflectedFactory("SimpleShadowPass", shadowPorts),
				},
				{
					Type:        "Lighting",
					Description: "Deferred lighting from G-buffer attributes",
					Factory:     reflectedFactory("Lighting", lightingPorts),
				},
			},
		},
	}
}

// reflectedPass is a pass with fixed ports and no options.
type reflectedPass struct {
	graph.BasePass
	reflection graph.Reflection
}

// Reflect returns the pass's ports.
func (p *reflectedPass) Reflect() graph.Reflection {
	return p.reflection
}

func reflectedFactory(typeName string, ports func() graph.Reflection) Factory {
	return func(opts graph.Options) (graph.Pass, error) {
		return &reflectedPass{
			BasePass:   *graph.NewPass(typeName, opts),
			reflection: ports(),
		}, nil
	}
}

func tutorialPorts() graph.Reflection {
	var r graph.Reflection
	r.AddOutput("output", "this is the output")
	return r
}

func reprojectionPorts() graph.Reflection {
	var r graph.Reflection
	r.AddInput("depth", "G-buffer depth").
		AddInput("gbufferNormal", "World space normals").
		AddInput("gbufferPosition", "World space positions").
		AddInput("leftIn", "Shaded left eye image").
		AddInput("shadowDepth", "Shadow map depth").
		AddOutput("out", "Reprojected right eye image")
	return r
}

func gbufferPorts() graph.Reflection {
	var r graph.Reflection
	r.AddOutput("posW", "World space position").
		AddOutput("normW", "World space normal").
		AddOutput("diffuseOpacity", "Diffuse color and opacity").
		AddOutput("specRough", "Specular color and roughness").
		AddOutput("depthStencil", "Depth-stencil buffer")
	return r
}

func shadowPorts() graph.Reflection {
	var r graph.Reflection
	r.AddOutput("depthStencil", "Shadow map depth")
	return r
}

func lightingPorts() graph.Reflection {
	var r graph.Reflection
	r.AddInput("posW", "World space position").
		AddInput("normW", "World space normal").
		AddInput("diffuseOpacity", "Diffuse color and opacity").
		AddInput("specRough", "Specular color and roughness").
		AddInput("ShadowDepth", "Shadow map depth").
		AddOutput("out", "Lit image")
	return r
}

// =============================================================================
// ImageLoader
// =============================================================================

// ImageLoaderSettings are the decoded ImageLoader options.
type ImageLoaderSettings struct {
	Filename string `opt:"filename" validate:"required,imagefile"`
	Mips     bool   `opt:"mips"`
	SRGB     bool   `opt:"srgb"`
}

// ImageLoader loads an image file into its "dst" output.
type ImageLoader struct {
	graph.BasePass
	settings ImageLoaderSettings
}

// Settings returns the decoded options.
func (p *ImageLoader) Settings() ImageLoaderSettings {
	return p.settings
}

// Reflect returns the pass's ports.
func (p *ImageLoader) Reflect() graph.Reflection {
	var r graph.Reflection
	r.AddOutput("dst", "Destination texture")
	return r
}

func newImageLoader(opts graph.Options) (graph.Pass, error) {
	var s ImageLoaderSettings
	var err error
	if s.Filename, err = opts.GetString("filename", ""); err != nil {
		return nil, err
	}
	if s.Mips, err = opts.GetBool("mips", true); err != nil {
		return nil, err
	}
	if s.SRGB, err = opts.GetBool("srgb", true); err != nil {
		return nil, err
	}
	if err := validateSettings(s); err != nil {
		return nil, err
	}
	return &ImageLoader{BasePass: *graph.NewPass("ImageLoader", opts), settings: s}, nil
}

// =============================================================================
// TemporalDelayPass
// =============================================================================

// MaxTemporalDelay bounds the delay option.
const MaxTemporalDelay = 1024

// TemporalDelaySettings are the decoded TemporalDelayPass options.
type TemporalDelaySettings struct {
	Delay int `opt:"delay" validate:"gte=0,lte=1024"`
}

// TemporalDelayPass forwards its input after a number of frames.
//
// It exposes "maxDelay" for the oldest frame and "maxDelay-i" for each
// intermediate frame i in [1, delay).
type TemporalDelayPass struct {
	graph.BasePass
	settings TemporalDelaySettings
}

// Settings returns the decoded options.
func (p *TemporalDelayPass) Settings() TemporalDelaySettings {
	return p.settings
}

// Reflect returns the pass's ports.
func (p *TemporalDelayPass) Reflect() graph.Reflection {
	var r graph.Reflection
	r.AddInput("src", "Source texture")
	r.AddOutput("maxDelay", "Texture delayed by the full delay")
	for i := 1; i < p.settings.Delay; i++ {
		r.AddOutput(fmt.Sprintf("maxDelay-%d", i), fmt.Sprintf("Texture delayed by %d frames", p.settings.Delay-i))
	}
	return r
}

func newTemporalDelayPass(opts graph.Options) (graph.Pass, error) {
	var s TemporalDelaySettings
	var err error
	if s.Delay, err = opts.GetInt("delay", 1); err != nil {
		return nil, err
	}
	if err := validateSettings(s); err != nil {
		return nil, err
	}
	return &TemporalDelayPass{BasePass: *graph.NewPass("TemporalDelayPass", opts), settings: s}, nil
}

// =============================================================================
// DepthPass
// =============================================================================

// DepthPassSettings are the decoded DepthPass options.
type DepthPassSettings struct {
	DepthFormat string `opt:"depthFormat" validate:"oneof=D32Float D24UnormS8 D16Unorm"`
}

// DepthPass renders scene depth.
type DepthPass struct {
	graph.BasePass
	settings DepthPassSettings
}

// Settings returns the decoded options.
func (p *DepthPass) Settings() DepthPassSettings {
	return p.settings
}

// Reflect returns the pass's ports.
func (p *DepthPass) Reflect() graph.Reflection {
	var r graph.Reflection
	r.AddOutput("depth", "Depth buffer")
	return r
}

func newDepthPass(opts graph.Options) (graph.Pass, error) {
	var s DepthPassSettings
	var err error
	if s.DepthFormat, err = opts.GetString("depthFormat", "D32Float"); err != nil {
		return nil, err
	}
	if err := validateSettings(s); err != nil {
		return nil, err
	}
	return &DepthPass{BasePass: *graph.NewPass("DepthPass", opts), settings: s}, nil
}

// =============================================================================
// ForwardLightingPass
// =============================================================================

// ForwardLightingSettings are the decoded ForwardLightingPass options.
type ForwardLightingSettings struct {
	SampleCount   int  `opt:"sampleCount" validate:"oneof=1 2 4 8"`
	SuperSampling bool `opt:"superSampling"`
}

// ForwardLightingPass shades the scene. "color" may be seeded by an
// upstream pass and is also the shaded result.
type ForwardLightingPass struct {
	graph.BasePass
	settings ForwardLightingSettings
}

// Settings returns the decoded options.
func (p *ForwardLightingPass) Settings() ForwardLightingSettings {
	return p.settings
}

// Reflect returns the pass's ports.
func (p *ForwardLightingPass) Reflect() graph.Reflection {
	r := graph.Reflection{Ports: []graph.PortInfo{
		{Name: "depth", Kind: graph.PortInput, Description: "Pre-initialized depth buffer", Optional: true},
	}}
	r.AddInputOutput("color", "Shaded color")
	r.AddOutput("normals", "World space normals")
	r.AddOutput("motionVecs", "Screen space motion vectors")
	return r
}

func newForwardLightingPass(opts graph.Options) (graph.Pass, error) {
	var s ForwardLightingSettings
	var err error
	if s.SampleCount, err = opts.GetInt("sampleCount", 1); err != nil {
		return nil, err
	}
	if s.SuperSampling, err = opts.GetBool("superSampling", false); err != nil {
		return nil, err
	}
	if err := validateSettings(s); err != nil {
		return nil, err
	}
	return &ForwardLightingPass{BasePass: *graph.NewPass("ForwardLightingPass", opts), settings: s}, nil
}
