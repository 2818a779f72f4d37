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
	"fmt"
	"math"
	"sort"
	"strings"
)

// Pass is a processing stage that can be inserted into a Graph.
//
// Description:
//
//	A pass carries an opaque type tag (e.g. "ImageLoader", "DepthPass") and
//	the configuration options it was created with. The graph treats both as
//	opaque; interpretation belongs to the pass type registry.
//
// Thread Safety:
//
//	Implementations must be immutable once created.
type Pass interface {
	// Type returns the pass type tag.
	Type() string

	// Options returns a copy of the creation options.
	Options() Options
}

// BasePass provides a minimal Pass implementation.
//
// Embed it in concrete pass types:
//
//	type BlurPass struct {
//	    graph.BasePass
//	    radius int
//	}
type BasePass struct {
	PassType    string
	PassOptions Options
}

// NewPass creates a BasePass with a private copy of opts.
func NewPass(passType string, opts Options) *BasePass {
	return &BasePass{
		PassType:    passType,
		PassOptions: opts.Clone(),
	}
}

// Type returns the pass type tag.
func (p *BasePass) Type() string {
	return p.PassType
}

// Options returns a copy of the pass options.
func (p *BasePass) Options() Options {
	return p.PassOptions.Clone()
}

// Options maps option keys to scalar values.
//
// Allowed value kinds are string, bool and every integer and floating point
// kind. Anything else is rejected by Validate.
type Options map[string]any

// Clone returns a shallow copy. Values are scalars, so a shallow copy is a full copy.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Keys returns the option keys in sorted order.
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that every value is a scalar.
//
// Outputs:
//
//	error - Wraps ErrInvalidOption naming the first offending key (sorted order).
func (o Options) Validate() error {
	for _, k := range o.Keys() {
		if k == "" {
			return fmt.Errorf("%w: empty option key", ErrInvalidOption)
		}
		if !isScalar(o[k]) {
			return fmt.Errorf("%w: %q has non-scalar value of type %T", ErrInvalidOption, k, o[k])
		}
	}
	return nil
}

// GetString returns the string option at key, or def when absent.
func (o Options) GetString(key, def string) (string, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return def, fmt.Errorf("%w: %q must be a string, got %T", ErrInvalidOption, key, v)
	}
	return s, nil
}

// GetBool returns the bool option at key, or def when absent.
func (o Options) GetBool(key string, def bool) (bool, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return def, fmt.Errorf("%w: %q must be a bool, got %T", ErrInvalidOption, key, v)
	}
	return b, nil
}

// GetInt returns the integer option at key, or def when absent.
//
// Floating point values are accepted when they hold an integral value, since
// JSON decoding produces float64 for every number. Values that do not fit
// in an int are rejected with ErrInvalidOption.
func (o Options) GetInt(key string, def int) (int, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		if n >= math.MinInt && n <= math.MaxInt {
			return int(n), nil
		}
		return def, outOfRange(key, v)
	case uint:
		if uint64(n) <= math.MaxInt {
			return int(n), nil
		}
		return def, outOfRange(key, v)
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		if uint64(n) <= math.MaxInt {
			return int(n), nil
		}
		return def, outOfRange(key, v)
	case uint64:
		if n <= math.MaxInt {
			return int(n), nil
		}
		return def, outOfRange(key, v)
	case float32:
		return floatToInt(key, float64(n), v, def)
	case float64:
		return floatToInt(key, n, v, def)
	}
	return def, fmt.Errorf("%w: %q must be an integer, got %v", ErrInvalidOption, key, v)
}

// floatToInt converts an integral float within int range.
func floatToInt(key string, n float64, v any, def int) (int, error) {
	if n != math.Trunc(n) {
		return def, fmt.Errorf("%w: %q must be an integer, got %v", ErrInvalidOption, key, v)
	}
	// float64(math.MaxInt) rounds up to 2^63 (or 2^31), one past the limit.
	if n < float64(math.MinInt) || n >= float64(math.MaxInt) {
		return def, outOfRange(key, v)
	}
	return int(n), nil
}

func outOfRange(key string, v any) error {
	return fmt.Errorf("%w: %q is out of integer range, got %v", ErrInvalidOption, key, v)
}

// GetFloat returns the numeric option at key as float64, or def when absent.
func (o Options) GetFloat(key string, def float64) (float64, error) {
	v, ok := o[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	}
	if i, err := o.GetInt(key, 0); err == nil {
		return float64(i), nil
	}
	return def, fmt.Errorf("%w: %q must be a number, got %T", ErrInvalidOption, key, v)
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// PortSeparator separates the pass name from the port name in a reference.
const PortSeparator = "."

// PortRef identifies a port on a pass.
type PortRef struct {
	Pass string `json:"pass" yaml:"pass"`
	Port string `json:"port" yaml:"port"`
}

// ParsePortRef parses a "PassName.portName" reference.
//
// Description:
//
//	Splits on the first separator. Both segments must be non-empty; a
//	reference without a separator is malformed.
//
// Outputs:
//
//	PortRef - The parsed reference.
//	error - *ReferenceError wrapping ErrInvalidReference when malformed.
func ParsePortRef(s string) (PortRef, error) {
	passName, port, found := strings.Cut(s, PortSeparator)
	if !found {
		return PortRef{}, NewReferenceError(s, fmt.Errorf("%w: missing %q separator", ErrInvalidReference, PortSeparator))
	}
	if passName == "" {
		return PortRef{}, NewReferenceError(s, fmt.Errorf("%w: empty pass name", ErrInvalidReference))
	}
	if port == "" {
		return PortRef{}, NewReferenceError(s, fmt.Errorf("%w: empty port name", ErrInvalidReference))
	}
	return PortRef{Pass: passName, Port: port}, nil
}

// String returns the "PassName.portName" form.
func (r PortRef) String() string {
	return r.Pass + PortSeparator + r.Port
}

// Edge is a directed connection between two ports.
type Edge struct {
	// From is the source port.
	From PortRef `json:"from"`

	// To is the destination port.
	To PortRef `json:"to"`
}

// String returns "From -> To".
func (e Edge) String() string {
	return e.From.String() + " -> " + e.To.String()
}

// PortKind describes the direction of a reflected port.
type PortKind string

const (
	// PortInput is a port that can receive an edge.
	PortInput PortKind = "input"

	// PortOutput is a port that can feed edges and be marked as a graph output.
	PortOutput PortKind = "output"

	// PortInputOutput is usable in both directions.
	PortInputOutput PortKind = "inout"
)

// IsInput reports whether the port can be an edge destination.
func (k PortKind) IsInput() bool {
	return k == PortInput || k == PortInputOutput
}

// IsOutput reports whether the port can be an edge source or graph output.
func (k PortKind) IsOutput() bool {
	return k == PortOutput || k == PortInputOutput
}

// PortInfo describes one reflected port.
type PortInfo struct {
	Name        string   `json:"name"`
	Kind        PortKind `json:"kind"`
	Description string   `json:"description,omitempty"`
	Optional    bool     `json:"optional,omitempty"`
}

// Reflection is the set of ports a pass exposes.
type Reflection struct {
	Ports []PortInfo `json:"ports"`
}

// AddInput appends an input port.
func (r *Reflection) AddInput(name, desc string) *Reflection {
	r.Ports = append(r.Ports, PortInfo{Name: name, Kind: PortInput, Description: desc})
	return r
}

// AddOutput appends an output port.
func (r *Reflection) AddOutput(name, desc string) *Reflection {
	r.Ports = append(r.Ports, PortInfo{Name: name, Kind: PortOutput, Description: desc})
	return r
}

// AddInputOutput appends a port usable in both directions.
func (r *Reflection) AddInputOutput(name, desc string) *Reflection {
	r.Ports = append(r.Ports, PortInfo{Name: name, Kind: PortInputOutput, Description: desc})
	return r
}

// Port looks up a port by name.
func (r Reflection) Port(name string) (PortInfo, bool) {
	for _, p := range r.Ports {
		if p.Name == name {
			return p, true
		}
	}
	return PortInfo{}, false
}

// Reflector is implemented by passes that declare their ports.
type Reflector interface {
	Reflect() Reflection
}
