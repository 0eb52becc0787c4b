package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/dramaplay/internal/script"
	"github.com/muesli/reflow/wordwrap"
)

const transcriptIndent = 4

var (
	labelStyle        = lipgloss.NewStyle().Foreground(statusBarNoteFg).Bold(true)
	currentLabelStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
	currentTextStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1B1B1B", Dark: "#FFFDF5"})
	sfxTextStyle      = lipgloss.NewStyle().Foreground(gray).Italic(true)
)

func itemLabel(k script.Kind) string {
	if k == script.SoundEffect {
		return "Sound Effect"
	}
	return "Narrator"
}

// renderTranscript lays out every item, marking current. It returns the
// rendered text and the first line of each item.
func renderTranscript(items []script.Item, current, width int) (string, []int) {
	wrap := max(10, width-transcriptIndent-2)
	offsets := make([]int, len(items))

	var b strings.Builder
	line := 0
	for i, it := range items {
		offsets[i] = line

		marker := "  "
		label := labelStyle.Render(fmt.Sprintf("%d. %s", i+1, itemLabel(it.Kind)))
		if i == current {
			marker = currentLabelStyle.Render("▶ ")
			label = currentLabelStyle.Render(fmt.Sprintf("%d. %s", i+1, itemLabel(it.Kind)))
		}

		text := wordwrap.String(strings.TrimSpace(it.Content), wrap)
		switch {
		case i == current:
			text = currentTextStyle.Render(text)
		case it.Kind == script.SoundEffect:
			text = sfxTextStyle.Render(text)
		}

		block := marker + label + "\n" + indent(text, transcriptIndent) + "\n"
		b.WriteString(block)
		line += strings.Count(block, "\n")
	}
	return strings.TrimSuffix(b.String(), "\n"), offsets
}
