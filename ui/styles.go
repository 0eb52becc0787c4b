package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	cream     = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	green     = lipgloss.Color("#04B575")
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	amber     = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	logoStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(lipgloss.Color("#5A56E0")).
			Render

	statusBarCounterStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#949494", Dark: "#5A5A5A"}).
				Background(statusBarBg).
				Render

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarWarningStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#1B1B1B")).
				Background(amber).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(cream).
				Background(red).
				Render

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(lipgloss.AdaptiveColor{Light: "#f2f2f2", Dark: "#1B1B1B"}).
			Render

	dimStyle = lipgloss.NewStyle().Foreground(gray)
	errStyle = lipgloss.NewStyle().Foreground(red)
)

func logoView() string {
	return logoStyle(" dramaplay ")
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
