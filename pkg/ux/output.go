// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the rendergraph CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Out and Err are where the print helpers write. Tests replace them.
var (
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr
)

// Title prints a styled title
func Title(text string) {
	if GetPersonality() == PersonalityMachine {
		return
	}
	fmt.Fprintln(Out, Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func Success(text string) {
	switch GetPersonality() {
	case PersonalityMachine:
		fmt.Fprintf(Out, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(Out, "%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Fprintf(Out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func Warning(text string) {
	switch GetPersonality() {
	case PersonalityMachine:
		fmt.Fprintf(Err, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(Err, "%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Fprintf(Err, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message
func Error(text string) {
	switch GetPersonality() {
	case PersonalityMachine:
		fmt.Fprintf(Err, "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(Err, "%s %s\n", IconError.Render(), text)
	default:
		fmt.Fprintf(Err, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message
func Info(text string) {
	if GetPersonality() == PersonalityMachine {
		fmt.Fprintln(Out, text)
		return
	}
	fmt.Fprintf(Out, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints secondary text
func Muted(text string) {
	if GetPersonality() == PersonalityMachine {
		return
	}
	fmt.Fprintln(Out, Styles.Muted.Render(text))
}

// KeyValue prints an aligned "key: value" line.
func KeyValue(key string, value any) {
	if GetPersonality() == PersonalityMachine {
		fmt.Fprintf(Out, "%s\t%v\n", key, value)
		return
	}
	fmt.Fprintf(Out, "  %s %v\n", Styles.Muted.Render(fmt.Sprintf("%-10s", key+":")), value)
}

// List prints items as a bulleted list under an optional heading.
func List(heading string, items []string) {
	if GetPersonality() == PersonalityMachine {
		for _, item := range items {
			fmt.Fprintln(Out, item)
		}
		return
	}
	if heading != "" {
		fmt.Fprintln(Out, Styles.Subtitle.Render(heading))
	}
	for _, item := range items {
		fmt.Fprintf(Out, "  %s %s\n", IconBullet.Render(), item)
	}
}

// Box prints text in a rounded box
func Box(title, content string) {
	if GetPersonality() == PersonalityMachine {
		fmt.Fprintf(Out, "%s: %s\n", title, strings.ReplaceAll(content, "\n", "; "))
		return
	}
	fmt.Fprintln(Out, Styles.Box.Width(60).Render(Styles.Title.Render(title)+"\n"+content))
}

// ErrorBox prints text in an error-styled box
func ErrorBox(title, content string) {
	if GetPersonality() == PersonalityMachine {
		fmt.Fprintf(Err, "ERROR %s: %s\n", title, content)
		return
	}
	fmt.Fprintln(Err, Styles.ErrorBox.Width(60).Render(Styles.Error.Bold(true).Render(title)+"\n"+content))
}
