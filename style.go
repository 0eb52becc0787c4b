package main

import "github.com/charmbracelet/lipgloss"

var (
	keywordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	faintStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"})
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

func keyword(s string) string {
	return keywordStyle.Render(s)
}

func paragraph(s string) string {
	return lipgloss.NewStyle().Width(78).Padding(0, 2).Render(s)
}
