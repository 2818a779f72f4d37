// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export renders graph descriptions for humans and tools.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
)

// Format names an export format.
type Format string

const (
	FormatDOT     Format = "dot"
	FormatMermaid Format = "mermaid"
	FormatJSON    Format = "json"
)

// ErrUnknownFormat is returned for an unsupported Format.
var ErrUnknownFormat = errors.New("unknown export format")

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatDOT, FormatMermaid, FormatJSON}
}

// Options configures rendering.
type Options struct {
	// Direction is the layout direction (TB, LR, BT, RL). Default: LR.
	Direction string

	// Culled names passes to draw as inactive.
	Culled []string
}

// Render renders d in the given format.
func Render(format Format, d graph.Description, opts Options) ([]byte, error) {
	switch format {
	case FormatDOT:
		return []byte(DOT(d, opts)), nil
	case FormatMermaid:
		return []byte(Mermaid(d, opts)), nil
	case FormatJSON:
		return JSON(d)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// JSON encodes d with indentation.
func JSON(d graph.Description) ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

func direction(opts Options) string {
	switch opts.Direction {
	case "TB", "LR", "BT", "RL":
		return opts.Direction
	}
	return "LR"
}

// DOT renders d as a Graphviz digraph.
//
// Passes become record nodes listing their ports, edges connect ports and
// every graph output gets a dashed edge into a sink node.
func DOT(d graph.Description, opts Options) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "digraph %s {\n", dotID(d.Name))
	fmt.Fprintf(&sb, "    rankdir=%s;\n", direction(opts))
	sb.WriteString("    node [shape=record, style=filled, fillcolor=\"#dfe6e9\"];\n")
	sb.WriteString("\n")

	for _, p := range d.Passes {
		label := escapeDOTRecord(p.Name) + "\\n" + escapeDOTRecord(p.Type)
		if ports := portFields(d, p); ports != "" {
			label = "{" + label + "|" + ports + "}"
		}
		fill := "#74b9ff"
		if slices.Contains(opts.Culled, p.Name) {
			fill = "#b2bec3"
		}
		fmt.Fprintf(&sb, "    %s [label=\"%s\", fillcolor=\"%s\"];\n", dotID(p.Name), label, fill)
	}

	if len(d.Edges) > 0 {
		sb.WriteString("\n")
	}
	for _, e := range d.Edges {
		fmt.Fprintf(&sb, "    %s -> %s;\n", dotPort(e.From), dotPort(e.To))
	}

	if len(d.Outputs) > 0 {
		sb.WriteString("\n")
		sb.WriteString("    \"__outputs\" [label=\"outputs\", shape=doublecircle, fillcolor=\"#ff6b6b\", fontcolor=\"white\"];\n")
		for _, out := range d.Outputs {
			fmt.Fprintf(&sb, "    %s -> \"__outputs\" [style=dashed, label=\"%s\"];\n", dotPort(out), escapeDOTLabel(out))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// portFields returns the record fields for a pass's ports. Ports named by
// edges or outputs are included even when the pass does not declare them.
func portFields(d graph.Description, p graph.PassDescription) string {
	var names []string
	for _, port := range p.Ports {
		names = append(names, port.Name)
	}
	add := func(ref string) {
		pr, err := graph.ParsePortRef(ref)
		if err == nil && pr.Pass == p.Name && !slices.Contains(names, pr.Port) {
			names = append(names, pr.Port)
		}
	}
	for _, e := range d.Edges {
		add(e.From)
		add(e.To)
	}
	for _, out := range d.Outputs {
		add(out)
	}

	fields := make([]string, len(names))
	for i, n := range names {
		fields[i] = "<" + recordPortID(n) + "> " + escapeDOTRecord(n)
	}
	return strings.Join(fields, "|")
}

func dotPort(ref string) string {
	pr, err := graph.ParsePortRef(ref)
	if err != nil {
		return dotID(ref)
	}
	return dotID(pr.Pass) + ":" + recordPortID(pr.Port)
}

func dotID(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
}

// recordPortID maps a port name to a record field id.
func recordPortID(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

func escapeDOTLabel(s string) string {
	return strings.NewReplacer("\"", "\\\"", "\n", "\\n").Replace(s)
}

// escapeDOTRecord escapes characters that are structural inside record labels.
func escapeDOTRecord(s string) string {
	return strings.NewReplacer(
		"\"", "\\\"",
		"{", "\\{",
		"}", "\\}",
		"|", "\\|",
		"<", "\\<",
		">", "\\>",
		" ", "\\ ",
	).Replace(s)
}

// Mermaid renders d as a Mermaid flowchart.
func Mermaid(d graph.Description, opts Options) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "flowchart %s\n", direction(opts))
	for _, p := range d.Passes {
		fmt.Fprintf(&sb, "    %s[\"%s<br/>%s\"]\n", mermaidID(p.Name), escapeMermaidLabel(p.Name), escapeMermaidLabel(p.Type))
	}
	for _, e := range d.Edges {
		from, errFrom := graph.ParsePortRef(e.From)
		to, errTo := graph.ParsePortRef(e.To)
		if errFrom != nil || errTo != nil {
			continue
		}
		fmt.Fprintf(&sb, "    %s -->|\"%s → %s\"| %s\n",
			mermaidID(from.Pass), escapeMermaidLabel(from.Port), escapeMermaidLabel(to.Port), mermaidID(to.Pass))
	}
	if len(d.Outputs) > 0 {
		sb.WriteString("    __outputs((outputs))\n")
		for _, out := range d.Outputs {
			pr, err := graph.ParsePortRef(out)
			if err != nil {
				continue
			}
			fmt.Fprintf(&sb, "    %s -.->|\"%s\"| __outputs\n", mermaidID(pr.Pass), escapeMermaidLabel(pr.Port))
		}
	}
	for _, name := range opts.Culled {
		fmt.Fprintf(&sb, "    style %s fill:#b2bec3\n", mermaidID(name))
	}
	return sb.String()
}

func mermaidID(s string) string {
	id := strings.NewReplacer(
		" ", "_",
		".", "_",
		"-", "_",
		":", "_",
		"/", "_",
		"(", "",
		")", "",
	).Replace(s)
	if id != "" && id[0] >= '0' && id[0] <= '9' {
		id = "n" + id
	}
	return id
}

func escapeMermaidLabel(s string) string {
	return strings.NewReplacer("\"", "#quot;", "<", "&lt;", ">", "&gt;").Replace(s)
}
