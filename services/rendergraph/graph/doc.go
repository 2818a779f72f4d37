// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the render graph construction core.
//
// A Graph is an in-memory directed graph of named pass instances connected
// by port-to-port edges, plus a set of ports designated as graph outputs.
// Every mutation is validated at the call that performs it:
//   - Pass names are unique within a graph
//   - Edge endpoints and outputs must reference passes already added
//   - A destination port accepts at most one incoming edge
//
// Port references are written "PassName.portName" and split on the first
// '.' separator, so "Blur.out.hdr" names port "out.hdr" on pass "Blur".
//
// The graph does not know which ports a pass type actually exposes. Pass
// types that want port checking implement Reflector; the compile package
// uses that information, construction never does.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent mutation. Build a graph in a single
// goroutine, then hand it off; concurrent readers are fine once no more
// mutations happen.
//
// # Example
//
//	g := graph.New("Temporal Delay Graph")
//	if err := g.AddPass(loader, "ImageLoader"); err != nil {
//	    return err
//	}
//	if err := g.AddPass(lighting, "ForwardLightingPass"); err != nil {
//	    return err
//	}
//	if err := g.AddEdge("ImageLoader.dst", "ForwardLightingPass.color"); err != nil {
//	    return err
//	}
//	if err := g.MarkOutput("ForwardLightingPass.color"); err != nil {
//	    return err
//	}
package graph
