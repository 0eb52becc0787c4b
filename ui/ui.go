// Package ui provides the playback TUI for dramaplay.
package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dramaplay/internal/export"
	"github.com/dgnsrekt/dramaplay/internal/script"
	"github.com/dgnsrekt/dramaplay/internal/sequencer"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"
)

const (
	statusMessageTimeout = time.Second * 3
	ellipsis             = "…"

	headerHeight    = 2
	progressHeight  = 2
	statusBarHeight = 1
	helpHeight      = 6
)

// Sequencer is the part of the playback controller the TUI drives.
type Sequencer interface {
	Start() error
	Stop() error
	Session() sequencer.Session
	Items() []script.Item
	Mode() script.Mode
	SetSynthesisParams(voiceID, modelID string) bool
}

// SynthesisParamsMsg asks the TUI to switch voice or model, typically after
// the config file changed.
type SynthesisParamsMsg struct {
	Voice string
	Model string
}

type (
	controlDoneMsg struct {
		op  string
		err error
	}
	frameMsg         struct{}
	statusTimeoutMsg int
)

type statusLevel int

const (
	statusInfo statusLevel = iota
	statusWarning
	statusError
)

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, seq Sequencer, events *Events) *tea.Program {
	log.Debug("starting tui", "mode", seq.Mode(), "items", len(seq.Items()))

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, seq, events), opts...)
}

type model struct {
	cfg    Config
	seq    Sequencer
	events *Events
	items  []script.Item

	width  int
	height int

	viewport viewport.Model
	spinner  spinner.Model
	progress progress.Model
	vis      *Visualizer
	offsets  []int

	playing  bool
	busy     bool
	ticking  bool
	finished bool
	current  int
	showHelp bool

	statusMessage string
	statusLevel   statusLevel
	statusID      int
}

func newModel(cfg Config, seq Sequencer, events *Events) model {
	if cfg.Mode == "" {
		cfg.Mode = seq.Mode()
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	pal := PaletteFor(cfg.Mode)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(pal.Primary))

	m := model{
		cfg:      cfg,
		seq:      seq,
		events:   events,
		items:    seq.Items(),
		viewport: viewport.New(0, 0),
		spinner:  sp,
		progress: progress.New(
			progress.WithGradient(pal.Primary, pal.Secondary),
			progress.WithoutPercentage(),
		),
		vis:     NewVisualizer(cfg.Mode, cfg.VisualizerHeight),
		current: -1,
	}
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.events.wait(), m.spinner.Tick}
	if m.cfg.AutoPlay && len(m.items) > 0 {
		cmds = append(cmds, startCmd(m.seq))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.setSize()
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case " ":
			if m.busy || len(m.items) == 0 {
				return m, nil
			}
			m.busy = true
			if m.playing {
				return m, stopCmd(m.seq)
			}
			return m, startCmd(m.seq)
		case "s":
			if m.busy || !m.playing {
				return m, nil
			}
			m.busy = true
			return m, stopCmd(m.seq)
		case "c":
			body := export.Transcript(m.items)
			termenv.Copy(body)
			if err := clipboard.WriteAll(body); err != nil {
				log.Debug("native clipboard unavailable", "error", err)
			}
			return m, m.showStatus("Copied transcript", statusInfo)
		case "?":
			m.showHelp = !m.showHelp
			m.setSize()
			if m.viewport.PastBottom() {
				m.viewport.GotoBottom()
			}
			return m, nil
		}

	case controlDoneMsg:
		m.busy = false
		if msg.err != nil {
			if errors.Is(msg.err, sequencer.ErrNotPlaying) {
				m.playing = false
				return m, nil
			}
			log.Error("playback control failed", "op", msg.op, "error", msg.err)
			return m, m.showStatus(msg.err.Error(), statusError)
		}
		if msg.op == "start" {
			m.playing = m.seq.Session().IsPlaying
			m.finished = false
			return m, m.startFrames()
		}
		return m, nil

	case itemStartMsg:
		m.playing = true
		m.current = int(msg)
		m.refreshTranscript()
		if m.current < len(m.offsets) {
			m.viewport.SetYOffset(m.offsets[m.current])
		}
		return m, tea.Batch(m.events.wait(), m.startFrames())

	case completeMsg:
		m.playing = false
		m.finished = true
		m.current = -1
		m.refreshTranscript()
		return m, tea.Batch(m.events.wait(), m.showStatus("Finished", statusInfo))

	case stoppedMsg:
		m.playing = false
		m.current = -1
		m.refreshTranscript()
		return m, tea.Batch(m.events.wait(), m.showStatus("Stopped", statusInfo))

	case statusMsg:
		return m, tea.Batch(m.events.wait(), m.showStatus(statusText(sequencer.Status(msg)), statusLevelOf(msg.Kind)))

	case analyserMsg:
		m.vis.SetSource(msg.analyser)
		return m, m.events.wait()

	case eventsDoneMsg:
		return m, nil

	case frameMsg:
		if !m.playing {
			m.ticking = false
			return m, nil
		}
		return m, frame(m.cfg.FPS)

	case statusTimeoutMsg:
		if int(msg) == m.statusID {
			m.statusMessage = ""
		}
		return m, nil

	case SynthesisParamsMsg:
		m.cfg.VoiceID, m.cfg.ModelID = msg.Voice, msg.Model
		if m.seq.SetSynthesisParams(msg.Voice, msg.Model) {
			return m, m.showStatus("Voice settings updated", statusInfo)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if m.width == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintln(&b, m.headerView())
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, m.vis.View(m.playing))
	fmt.Fprintln(&b, m.progressView())
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, m.viewport.View())
	m.statusBarView(&b)
	if m.showHelp {
		fmt.Fprint(&b, "\n"+m.helpView())
	}
	return b.String()
}

func (m *model) setSize() {
	m.vis.SetWidth(m.width - 4)
	m.progress.Width = max(10, m.width-8)
	m.viewport.Width = m.width

	h := m.height - headerHeight - m.vis.Height() - progressHeight - statusBarHeight - 1
	if m.showHelp {
		h -= helpHeight
	}
	m.viewport.Height = max(1, h)
}

func (m *model) refreshTranscript() {
	s, offsets := renderTranscript(m.items, m.current, m.width)
	m.offsets = offsets
	m.viewport.SetContent(s)
}

func (m *model) showStatus(s string, level statusLevel) tea.Cmd {
	m.statusID++
	m.statusMessage = s
	m.statusLevel = level
	id := m.statusID
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusTimeoutMsg(id)
	})
}

func (m *model) startFrames() tea.Cmd {
	if m.ticking || !m.playing {
		return nil
	}
	m.ticking = true
	return frame(m.cfg.FPS)
}

func (m model) headerView() string {
	title := m.cfg.Title
	if title == "" {
		title = "Untitled"
	}
	mode := dimStyle.Render(m.cfg.Mode.Title())
	return "  " + logoView() + " " + lipgloss.NewStyle().Bold(true).Render(title) + "  " + mode
}

func (m model) progressView() string {
	total := len(m.items)
	var pct float64
	switch {
	case m.finished:
		pct = 1
	case total > 0 && m.current >= 0:
		pct = float64(m.current+1) / float64(total)
	}

	lead := "  "
	if m.playing || m.busy {
		lead = m.spinner.View() + " "
	}
	return "  " + lead + m.progress.ViewAs(pct)
}

func (m model) note() string {
	total := len(m.items)
	switch {
	case total == 0:
		return "Nothing to play"
	case m.busy && !m.playing:
		return "Starting..."
	case m.playing && m.current >= 0:
		it := m.items[m.current]
		return fmt.Sprintf("Playing %s", strings.ToLower(itemLabel(it.Kind)))
	case m.playing:
		return "Preparing audio..."
	case m.finished:
		return "Finished. Press space to play again"
	default:
		return "Press space to play"
	}
}

func (m model) statusBarView(b *strings.Builder) {
	showStatusMessage := m.statusMessage != ""

	logo := logoView()

	counter := fmt.Sprintf(" %d/%d ", max(0, m.current+1), len(m.items))
	counter = statusBarCounterStyle(counter)

	helpNote := statusBarHelpStyle(" ? Help ")

	style := statusBarNoteStyle
	note := m.note()
	if showStatusMessage {
		note = m.statusMessage
		switch m.statusLevel {
		case statusWarning:
			style = statusBarWarningStyle
		case statusError:
			style = statusBarErrorStyle
		default:
			style = statusBarMessageStyle
		}
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(counter)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	note = style(note)

	padding := max(0,
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(counter)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := style(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s%s",
		logo,
		note,
		emptySpace,
		counter,
		helpNote,
	)
}

func (m model) helpView() (s string) {
	voice := m.cfg.VoiceID
	if voice == "" {
		voice = "default"
	}

	s += "\n"
	s += "space    play/stop           c       copy transcript\n"
	s += "s        stop                ?       close help\n"
	s += "k/↑      up                  q       quit\n"
	s += "j/↓      down\n"
	s += "\n"
	s += "voice    " + voice

	s = indent(s, 2)

	if m.width > 0 {
		lines := strings.Split(s, "\n")
		for i := 0; i < len(lines); i++ {
			l := runewidth.StringWidth(lines[i])
			n := max(m.width-l, 0)
			lines[i] += strings.Repeat(" ", n)
		}
		s = strings.Join(lines, "\n")
	}

	return helpViewStyle(s)
}

func statusText(st sequencer.Status) string {
	if st.Message != "" {
		return st.Message
	}
	switch st.Kind {
	case sequencer.StatusQuota:
		return fmt.Sprintf("Voice quota reached, item %d uses the local voice", st.Index+1)
	case sequencer.StatusFallback:
		return fmt.Sprintf("Item %d uses the local voice", st.Index+1)
	default:
		if st.Err != nil {
			return fmt.Sprintf("Item %d failed: %v", st.Index+1, st.Err)
		}
		return fmt.Sprintf("Item %d failed", st.Index+1)
	}
}

func statusLevelOf(k sequencer.StatusKind) statusLevel {
	if k == sequencer.StatusError {
		return statusError
	}
	return statusWarning
}

// COMMANDS

// Start and Stop may wait on callbacks that this program delivers, so they
// never run inside Update.
func startCmd(seq Sequencer) tea.Cmd {
	return func() tea.Msg {
		return controlDoneMsg{op: "start", err: seq.Start()}
	}
}

func stopCmd(seq Sequencer) tea.Cmd {
	return func() tea.Msg {
		return controlDoneMsg{op: "stop", err: seq.Stop()}
	}
}

func frame(fps int) tea.Cmd {
	return tea.Tick(time.Second/time.Duration(fps), func(time.Time) tea.Msg {
		return frameMsg{}
	})
}
