// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the clippycheck CLI.
package ux

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - headings
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text

	// Semantic colors
	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorNotice  = lipgloss.Color("#5DADE2")
)

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconNotice  Icon = "ℹ"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Theme is a set of styles bound to one output.
//
// Colors are only emitted when that output is a color-capable terminal,
// so the same code prints plain text into pipes, files and test buffers.
type Theme struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Notice  lipgloss.Style
	Box     lipgloss.Style
}

// NewTheme creates the styles for w.
func NewTheme(w io.Writer) Theme {
	r := lipgloss.NewRenderer(w)
	return Theme{
		Title:   r.NewStyle().Bold(true).Foreground(ColorTealBright),
		Muted:   r.NewStyle().Foreground(ColorSlate),
		Bold:    r.NewStyle().Bold(true),
		Success: r.NewStyle().Foreground(ColorSuccess),
		Warning: r.NewStyle().Foreground(ColorWarning),
		Error:   r.NewStyle().Foreground(ColorError),
		Notice:  r.NewStyle().Foreground(ColorNotice),
		Box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorTealDeep).
			Padding(0, 1),
	}
}

// Icon renders i in its status color.
func (t Theme) Icon(i Icon) string {
	switch i {
	case IconSuccess:
		return t.Success.Render(string(i))
	case IconWarning:
		return t.Warning.Render(string(i))
	case IconError:
		return t.Error.Render(string(i))
	case IconNotice:
		return t.Notice.Render(string(i))
	case IconPending:
		return t.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Level returns the style and icon for a check annotation level
// ("failure", "warning" or "notice").
func (t Theme) Level(level string) (lipgloss.Style, Icon) {
	switch level {
	case "failure":
		return t.Error, IconError
	case "warning":
		return t.Warning, IconWarning
	default:
		return t.Notice, IconNotice
	}
}

// Conclusion returns the style and icon for a check run conclusion.
func (t Theme) Conclusion(conclusion string) (lipgloss.Style, Icon) {
	switch conclusion {
	case "success":
		return t.Success, IconSuccess
	case "failure":
		return t.Error, IconError
	default:
		return t.Muted, IconPending
	}
}
