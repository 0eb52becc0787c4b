package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/dramaplay/internal/audio"
	"github.com/dgnsrekt/dramaplay/internal/sequencer"
)

type (
	itemStartMsg  int
	completeMsg   struct{}
	stoppedMsg    struct{}
	statusMsg     sequencer.Status
	analyserMsg   struct{ analyser *audio.Analyser }
	eventsDoneMsg struct{}
)

// Events carries controller callbacks into the Bubble Tea program. Create
// it before the controller, pass Callbacks to the controller and the
// Events itself to NewProgram.
type Events struct {
	ch   chan tea.Msg
	done chan struct{}
	once sync.Once
}

// NewEvents returns an open event bridge.
func NewEvents() *Events {
	return &Events{
		ch:   make(chan tea.Msg, 16),
		done: make(chan struct{}),
	}
}

// Callbacks returns controller callbacks that forward to the program.
func (e *Events) Callbacks() sequencer.Callbacks {
	return sequencer.Callbacks{
		OnItemStart: func(i int) { e.send(itemStartMsg(i)) },
		OnComplete:  func() { e.send(completeMsg{}) },
		OnStop:      func() { e.send(stoppedMsg{}) },
		OnStatus:    func(s sequencer.Status) { e.send(statusMsg(s)) },
		OnAnalyser:  func(a *audio.Analyser) { e.send(analyserMsg{a}) },
	}
}

// Close unblocks pending callbacks. Call it once the program has exited
// and before closing the controller.
func (e *Events) Close() {
	e.once.Do(func() { close(e.done) })
}

func (e *Events) send(msg tea.Msg) {
	select {
	case e.ch <- msg:
	case <-e.done:
	}
}

// wait delivers the next event. Update re-issues it after every event.
func (e *Events) wait() tea.Cmd {
	if e == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case msg := <-e.ch:
			return msg
		case <-e.done:
			return eventsDoneMsg{}
		}
	}
}
