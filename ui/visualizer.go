package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/dramaplay/internal/script"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// FrequencySource is the analyser tap the visualizer draws from.
type FrequencySource interface {
	FrequencyBinCount() int
	ByteFrequencyData(dst []byte) int
}

// Palette is a two colour gradient, top to bottom.
type Palette struct {
	Primary   string
	Secondary string
}

// PaletteFor returns the palette of a mode.
func PaletteFor(mode script.Mode) Palette {
	if mode == script.ExamPassage {
		return Palette{Primary: "#fbbf24", Secondary: "#f59e0b"}
	}
	return Palette{Primary: "#34d399", Secondary: "#14b8a6"}
}

// idleHeights are the resting bar heights, in twentieths of full height.
var idleHeights = []int{12, 16, 20, 14, 18, 12, 16, 20}

// eighths of a cell, from empty to full
var blocks = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Visualizer draws frequency bars from an analyser.
type Visualizer struct {
	source  FrequencySource
	palette Palette
	width   int
	height  int
	data    []byte
	rows    []lipgloss.Style
	idle    lipgloss.Style
}

// NewVisualizer creates a visualizer for mode.
func NewVisualizer(mode script.Mode, height int) *Visualizer {
	if height < 1 {
		height = 1
	}
	v := &Visualizer{palette: PaletteFor(mode), height: height}
	v.buildStyles()
	return v
}

// SetSource attaches the analyser. A nil source renders the idle view.
func (v *Visualizer) SetSource(src FrequencySource) {
	v.source = src
	if src != nil {
		v.data = make([]byte, src.FrequencyBinCount())
	}
}

// SetWidth sets the number of columns drawn.
func (v *Visualizer) SetWidth(w int) {
	v.width = max(0, w)
}

// Height is the number of rows View returns.
func (v *Visualizer) Height() int {
	return v.height
}

func (v *Visualizer) buildStyles() {
	top, err1 := colorful.Hex(v.palette.Primary)
	bottom, err2 := colorful.Hex(v.palette.Secondary)

	v.rows = make([]lipgloss.Style, v.height)
	for r := range v.rows {
		c := v.palette.Primary
		if err1 == nil && err2 == nil && v.height > 1 {
			c = top.BlendLab(bottom, float64(r)/float64(v.height-1)).Clamped().Hex()
		}
		v.rows[r] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}

	idle := v.palette.Primary
	if err1 == nil {
		// washed out towards the terminal background
		if bg, err := colorful.Hex("#1e293b"); err == nil {
			idle = top.BlendLab(bg, 0.7).Clamped().Hex()
		}
	}
	v.idle = lipgloss.NewStyle().Foreground(lipgloss.Color(idle))
}

// View renders the bars. Without a source or while not playing it shows
// a fixed resting pattern.
func (v *Visualizer) View(playing bool) string {
	if v.width == 0 {
		return strings.TrimSuffix(strings.Repeat("\n", v.height), "\n")
	}
	if !playing || v.source == nil {
		return v.idleView()
	}

	v.source.ByteFrequencyData(v.data)

	// the upper bins carry little energy in speech, so only the lower
	// third is spread across the width
	visible := max(1, len(v.data)/3)
	levels := make([]int, v.width)
	for x := range levels {
		i := x * visible / v.width
		levels[x] = int(v.data[i]) * v.height * 8 / 255
	}
	return v.bars(levels, v.rows)
}

func (v *Visualizer) idleView() string {
	n := min(len(idleHeights), max(1, v.width/2))
	levels := make([]int, v.width)
	for k := 0; k < n; k++ {
		x := k * 2
		if x < v.width {
			levels[x] = idleHeights[k] * v.height * 8 / 20 / 2
		}
	}
	styles := make([]lipgloss.Style, v.height)
	for r := range styles {
		styles[r] = v.idle
	}
	return v.bars(levels, styles)
}

// bars renders columns of the given heights, in eighths of a cell.
func (v *Visualizer) bars(levels []int, styles []lipgloss.Style) string {
	lines := make([]string, v.height)
	row := make([]rune, len(levels))
	for r := 0; r < v.height; r++ {
		floor := (v.height - 1 - r) * 8
		for x, l := range levels {
			fill := l - floor
			switch {
			case fill <= 0:
				row[x] = ' '
			case fill >= 8:
				row[x] = blocks[8]
			default:
				row[x] = blocks[fill]
			}
		}
		lines[r] = styles[r].Render(string(row))
	}
	return strings.Join(lines, "\n")
}
