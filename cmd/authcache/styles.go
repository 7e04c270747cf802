package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	salmonPink = lipgloss.Color("#FFB3BA") // primary accent
	mintGreen  = lipgloss.Color("#A8E6CF") // success
	amber      = lipgloss.Color("#FCD34D") // stale or expiring
	mutedGray  = lipgloss.Color("#6B7280") // secondary text
)

type styles struct {
	title  lipgloss.Style
	label  lipgloss.Style
	good   lipgloss.Style
	warn   lipgloss.Style
	bad    lipgloss.Style
	muted  lipgloss.Style
	box    lipgloss.Style
	header lipgloss.Style
}

// newStyles renders for w, so colors are dropped when w is not a terminal.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:  r.NewStyle().Foreground(salmonPink).Bold(true),
		label:  r.NewStyle().Foreground(mutedGray).Width(22),
		good:   r.NewStyle().Foreground(mintGreen),
		warn:   r.NewStyle().Foreground(amber),
		bad:    r.NewStyle().Foreground(salmonPink).Bold(true),
		muted:  r.NewStyle().Foreground(mutedGray),
		box:    r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(salmonPink).Padding(0, 1),
		header: r.NewStyle().Foreground(salmonPink).Bold(true).Padding(0, 1),
	}
}
