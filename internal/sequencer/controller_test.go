package sequencer

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/dramaplay/internal/audio"
	"github.com/dgnsrekt/dramaplay/internal/cache"
	"github.com/dgnsrekt/dramaplay/internal/script"
	"github.com/dgnsrekt/dramaplay/internal/speech"
	"github.com/dgnsrekt/dramaplay/internal/synth"
)

// mockSynth returns silent PCM for every item unless told otherwise.
type mockSynth struct {
	mu       sync.Mutex
	calls    map[string]int
	inflight map[string]int
	maxPer   int
	fail     map[string]error
	data     map[string][]byte
	block    map[string]chan struct{}
	started  map[string]chan struct{}
	delay    time.Duration
}

func newMockSynth() *mockSynth {
	return &mockSynth{
		calls:    map[string]int{},
		inflight: map[string]int{},
		fail:     map[string]error{},
		data:     map[string][]byte{},
		block:    map[string]chan struct{}{},
		started:  map[string]chan struct{}{},
	}
}

// blockOn makes synthesis of content wait until the returned func is called.
func (m *mockSynth) blockOn(content string) (started <-chan struct{}, release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := make(chan struct{})
	s := make(chan struct{})
	m.block[content] = b
	m.started[content] = s
	var once sync.Once
	return s, func() { once.Do(func() { close(b) }) }
}

func (m *mockSynth) Synthesize(ctx context.Context, item script.Item, _ script.Mode, _, _ string) ([]byte, error) {
	m.mu.Lock()
	m.calls[item.Content]++
	m.inflight[item.Content]++
	if m.inflight[item.Content] > m.maxPer {
		m.maxPer = m.inflight[item.Content]
	}
	block, started := m.block[item.Content], m.started[item.Content]
	delete(m.started, item.Content)
	err, data := m.fail[item.Content], m.data[item.Content]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inflight[item.Content]--
		m.mu.Unlock()
	}()

	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if data != nil {
		return data, nil
	}
	return make([]byte, 256), nil
}

func (m *mockSynth) maxInflight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxPer
}

func (m *mockSynth) callCount(content string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[content]
}

// events records callbacks.
type events struct {
	mu       sync.Mutex
	starts   []int
	statuses []Status
	stops    int
	done     chan struct{}
	analyser *audio.Analyser
}

func newEvents() *events {
	return &events{done: make(chan struct{}, 4)}
}

func (e *events) callbacks() Callbacks {
	return Callbacks{
		OnItemStart: func(i int) {
			e.mu.Lock()
			e.starts = append(e.starts, i)
			e.mu.Unlock()
		},
		OnStatus: func(s Status) {
			e.mu.Lock()
			e.statuses = append(e.statuses, s)
			e.mu.Unlock()
		},
		OnComplete: func() { e.done <- struct{}{} },
		OnStop: func() {
			e.mu.Lock()
			e.stops++
			e.mu.Unlock()
		},
		OnAnalyser: func(a *audio.Analyser) {
			e.mu.Lock()
			e.analyser = a
			e.mu.Unlock()
		},
	}
}

func (e *events) Starts() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.starts...)
}

func (e *events) Statuses() []Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Status(nil), e.statuses...)
}

func (e *events) waitComplete(t *testing.T) {
	t.Helper()
	select {
	case <-e.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Timed out waiting for completion, starts=%v", e.Starts())
	}
}

type harness struct {
	ctrl   *Controller
	synth  *mockSynth
	out    *audio.MockOutput
	ev     *events
	speech *speech.Recorder
	cache  *cache.AudioCache
}

func newHarness(t *testing.T, items []script.Item, out *audio.MockOutput) *harness {
	t.Helper()
	if out == nil {
		out = &audio.MockOutput{}
	}

	cfg := audio.DefaultConfig()
	cfg.PollInterval = time.Millisecond
	cfg.Decoder = audio.PCMDecoder{SampleRate: 44100}
	cfg.NewOutput = audio.NewMockOutput(out)
	engine, err := audio.NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	h := &harness{
		synth:  newMockSynth(),
		out:    out,
		ev:     newEvents(),
		speech: &speech.Recorder{},
		cache:  cache.NewAudioCache(),
	}
	h.ctrl, err = New(Config{
		Items:       items,
		Mode:        script.ChildrenBook,
		Synthesizer: h.synth,
		Player:      engine,
		Fallback:    h.speech,
		Cache:       h.cache,
		Callbacks:   h.ev.callbacks(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		h.ctrl.Close()
		_ = engine.Destroy()
	})
	return h
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestControllerNew(t *testing.T) {
	if _, err := New(Config{Player: &audio.Engine{}}); err == nil {
		t.Error("Expected error without synthesizer")
	}
	if _, err := New(Config{Synthesizer: newMockSynth()}); err == nil {
		t.Error("Expected error without player")
	}
}

func TestControllerPlaysInOrder(t *testing.T) {
	items := []script.Item{script.NewSpeech("hello"), script.NewSoundEffect("glitter")}
	h := newHarness(t, items, nil)

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h.ev.waitComplete(t)

	if got := h.ev.Starts(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("Expected starts [0 1], got %v", got)
	}
	if st := h.ev.Statuses(); len(st) != 0 {
		t.Errorf("Expected no status messages, got %+v", st)
	}
	if s := h.ctrl.Session(); s.CurrentIndex != -1 || s.IsPlaying || s.LastError != "" {
		t.Errorf("Unexpected session after completion: %+v", s)
	}
	if h.ctrl.State() != Completed {
		t.Errorf("Expected Completed, got %s", h.ctrl.State())
	}
	if h.out.VoiceCount() != 2 {
		t.Errorf("Expected 2 voices, got %d", h.out.VoiceCount())
	}
	if h.ev.analyser == nil {
		t.Error("OnAnalyser should fire on Start")
	}
	if len(h.speech.Texts()) != 0 {
		t.Error("Fallback should not be used")
	}
}

func TestControllerQuotaFallback(t *testing.T) {
	h := newHarness(t, []script.Item{script.NewSpeech("x")}, nil)
	h.synth.fail["x"] = &synth.RemoteError{Status: 401, Code: "quota_exceeded", Message: "You have exceeded your quota"}

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h.ev.waitComplete(t)

	if got := h.ev.Starts(); !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("Expected starts [0], got %v", got)
	}
	st := h.ev.Statuses()
	if len(st) != 1 || st[0].Kind != StatusQuota {
		t.Fatalf("Expected one quota status, got %+v", st)
	}
	if texts := h.speech.Texts(); !reflect.DeepEqual(texts, []string{"x"}) {
		t.Errorf("Expected fallback for \"x\", got %v", texts)
	}
	if h.ctrl.State() != Completed {
		t.Errorf("Expected Completed, got %s", h.ctrl.State())
	}
	if h.cache.Has(0) {
		t.Error("Fallback audio must not be cached")
	}

	var ie *ItemError
	if !errors.As(st[0].Err, &ie) || ie.Stage != StageRemote || ie.Index != 0 {
		t.Errorf("Unexpected status error %v", st[0].Err)
	}
}

func TestControllerAuthFallback(t *testing.T) {
	h := newHarness(t, []script.Item{script.NewSpeech("x")}, nil)
	h.synth.fail["x"] = &synth.RemoteError{Status: 401, Code: "invalid_api_key", Message: "Invalid API key"}

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h.ev.waitComplete(t)

	st := h.ev.Statuses()
	if len(st) != 1 || st[0].Kind != StatusFallback {
		t.Fatalf("Expected one fallback status, got %+v", st)
	}
	if st[0].Message != "API key rejected. Using the local voice instead." {
		t.Errorf("Unexpected message %q", st[0].Message)
	}
	if !errors.Is(st[0].Err, synth.ErrUnauthorized) {
		t.Errorf("Status error should match ErrUnauthorized, got %v", st[0].Err)
	}
}

func TestControllerGenericFallback(t *testing.T) {
	items := []script.Item{script.NewSpeech("a"), script.NewSoundEffect("boom"), script.NewSpeech("c")}
	h := newHarness(t, items, nil)
	h.synth.fail["boom"] = &synth.RemoteError{Status: 500, Message: "internal"}

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h.ev.waitComplete(t)

	if got := h.ev.Starts(); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Errorf("Expected all items started, got %v", got)
	}
	st := h.ev.Statuses()
	if len(st) != 1 || st[0].Kind != StatusFallback || st[0].Index != 1 {
		t.Errorf("Expected fallback status for item 1, got %+v", st)
	}
	// the raw content is spoken, not the bracketed cue
	if texts := h.speech.Texts(); !reflect.DeepEqual(texts, []string{"boom"}) {
		t.Errorf("Unexpected fallback texts %v", texts)
	}
	if s := h.ctrl.Session(); s.LastError == "" {
		t.Error("LastError should record the failure")
	}
}

func TestControllerPlaybackErrorFallsBack(t *testing.T) {
	h := newHarness(t, []script.Item{script.NewSpeech("bad"), script.NewSpeech("good")}, nil)
	h.synth.data["bad"] = []byte{1, 2, 3} // not frame aligned

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h.ev.waitComplete(t)

	st := h.ev.Statuses()
	if len(st) != 1 || st[0].Kind != StatusFallback {
		t.Fatalf("Expected playback fallback status, got %+v", st)
	}
	var ie *ItemError
	if !errors.As(st[0].Err, &ie) || ie.Stage != StagePlayback {
		t.Errorf("Expected playback stage, got %v", st[0].Err)
	}
	if texts := h.speech.Texts(); !reflect.DeepEqual(texts, []string{"bad"}) {
		t.Errorf("Unexpected fallback texts %v", texts)
	}
	if got := h.ev.Starts(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("Expected starts [0 1], got %v", got)
	}
}

func TestControllerOutputErrorFallsBack(t *testing.T) {
	out := &audio.MockOutput{Manual: true}
	out.OnVoice = func(v *audio.MockVoice) {
		go func() {
			for !v.IsPlaying() {
				time.Sleep(time.Millisecond)
			}
			v.Drained()
			v.Finish(errors.New("device lost"))
		}()
	}
	h := newHarness(t, []script.Item{script.NewSpeech("a")}, out)

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h.ev.waitComplete(t)

	if texts := h.speech.Texts(); !reflect.DeepEqual(texts, []string{"a"}) {
		t.Errorf("Expected fallback after output error, got %v", texts)
	}
}

func TestControllerFallbackFailureIsTerminal(t *testing.T) {
	h := newHarness(t, []script.Item{script.NewSpeech("x"), script.NewSpeech("y")}, nil)
	h.synth.fail["x"] = errors.New("network down")
	h.speech.Err = errors.New("no espeak")

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h.ev.waitComplete(t)

	st := h.ev.Statuses()
	if len(st) != 2 || st[0].Kind != StatusFallback || st[1].Kind != StatusError {
		t.Fatalf("Expected fallback then error status, got %+v", st)
	}
	if got := h.ev.Starts(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("Sequence should continue after a failed item, got %v", got)
	}
}

func TestControllerEmptyStartIsNoop(t *testing.T) {
	h := newHarness(t, nil, nil)

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if h.ctrl.State() != Idle {
		t.Errorf("Expected Idle, got %s", h.ctrl.State())
	}
	if s := h.ctrl.Session(); s.CurrentIndex != -1 {
		t.Errorf("Expected index -1, got %d", s.CurrentIndex)
	}
	time.Sleep(20 * time.Millisecond)
	if len(h.ev.Starts()) != 0 {
		t.Error("No events expected for empty script")
	}
}

func TestControllerStartWhilePlaying(t *testing.T) {
	h := newHarness(t, []script.Item{script.NewSpeech("a")}, &audio.MockOutput{Manual: true})

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.ctrl.Start(); !errors.Is(err, ErrAlreadyPlaying) {
		t.Errorf("Expected ErrAlreadyPlaying, got %v", err)
	}
	if err := h.ctrl.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := h.ctrl.Stop(); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("Expected ErrNotPlaying, got %v", err)
	}
}

func TestControllerStopDuringPlayback(t *testing.T) {
	out := &audio.MockOutput{Manual: true}
	h := newHarness(t, []script.Item{script.NewSpeech("a"), script.NewSpeech("b")}, out)

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	eventually(t, "first voice", func() bool { return out.VoiceCount() == 1 })

	if err := h.ctrl.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !out.Last().Closed() {
		t.Error("Active voice should be closed by Stop")
	}
	if h.ctrl.State() != Stopped {
		t.Errorf("Expected Stopped, got %s", h.ctrl.State())
	}

	time.Sleep(30 * time.Millisecond)
	if got := h.ev.Starts(); !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("No item should start after Stop, got %v", got)
	}
	if out.VoiceCount() != 1 {
		t.Errorf("No playback should start after Stop, got %d voices", out.VoiceCount())
	}
}

func TestControllerStopCancelsFallback(t *testing.T) {
	h := newHarness(t, []script.Item{script.NewSpeech("x"), script.NewSpeech("y")}, nil)
	h.synth.fail["x"] = errors.New("offline")
	h.speech.Delay = time.Hour

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	eventually(t, "fallback", func() bool { return len(h.speech.Texts()) == 1 })

	if err := h.ctrl.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if got := h.ev.Starts(); !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("Cancelled fallback must not advance, got %v", got)
	}
}

// Stopping while item 2 resolves lets the prefetch of item 3 land in the
// cache without starting playback.
func TestControllerStopMidResolution(t *testing.T) {
	items := []script.Item{
		script.NewSpeech("a"), script.NewSpeech("b"), script.NewSpeech("c"),
		script.NewSpeech("d"), script.NewSpeech("e"),
	}
	h := newHarness(t, items, nil)
	_, releaseC := h.synth.blockOn("c")
	dStarted, releaseD := h.synth.blockOn("d")
	defer releaseC()
	defer releaseD()

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	eventually(t, "item 2 to start", func() bool { return len(h.ev.Starts()) == 3 })
	select {
	case <-dStarted:
	case <-time.After(5 * time.Second):
		t.Fatal("Prefetch of item 3 never started")
	}

	voices := h.out.VoiceCount()
	if err := h.ctrl.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if s := h.ctrl.Session(); s.CurrentIndex != -1 || s.IsPlaying {
		t.Errorf("Unexpected session after stop: %+v", s)
	}

	releaseD()
	releaseC()
	eventually(t, "item 3 cached", func() bool { return h.cache.Has(3) })
	eventually(t, "item 2 cached", func() bool { return h.cache.Has(2) })
	time.Sleep(30 * time.Millisecond)

	if got := h.ev.Starts(); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Errorf("No item should start after Stop, got %v", got)
	}
	if h.out.VoiceCount() != voices {
		t.Errorf("Prefetch must not play: voices %d -> %d", voices, h.out.VoiceCount())
	}
	if h.synth.callCount("c") != 1 {
		t.Errorf("Main path should join the prefetch of item 2, got %d calls", h.synth.callCount("c"))
	}
}

func TestControllerOneRequestPerIndex(t *testing.T) {
	items := []script.Item{
		script.NewSpeech("a"), script.NewSpeech("b"), script.NewSpeech("c"), script.NewSpeech("d"),
	}
	h := newHarness(t, items, nil)
	h.synth.delay = 15 * time.Millisecond

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h.ev.waitComplete(t)

	for _, it := range items {
		if n := h.synth.callCount(it.Content); n != 1 {
			t.Errorf("Item %q synthesized %d times", it.Content, n)
		}
	}
	if n := h.synth.maxInflight(); n != 1 {
		t.Errorf("Expected at most one request per index, saw %d", n)
	}
}

func TestControllerReplayUsesCache(t *testing.T) {
	items := []script.Item{script.NewSpeech("a"), script.NewSpeech("b")}
	h := newHarness(t, items, nil)

	for run := 0; run < 2; run++ {
		if err := h.ctrl.Start(); err != nil {
			t.Fatalf("Start %d failed: %v", run, err)
		}
		h.ev.waitComplete(t)
	}

	if got := h.ev.Starts(); !reflect.DeepEqual(got, []int{0, 1, 0, 1}) {
		t.Errorf("Unexpected starts %v", got)
	}
	if h.synth.callCount("a") != 1 || h.synth.callCount("b") != 1 {
		t.Error("Replay should be served from the cache")
	}
}

func TestControllerSetSynthesisParams(t *testing.T) {
	h := newHarness(t, []script.Item{script.NewSpeech("a")}, nil)

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h.ev.waitComplete(t)
	if !h.cache.Has(0) {
		t.Fatal("Item should be cached after playback")
	}

	if !h.ctrl.SetSynthesisParams("voice-2", "") {
		t.Error("Changing the voice should report a change")
	}
	if h.cache.Has(0) {
		t.Error("Cache should be cleared on parameter change")
	}
	if h.ctrl.SetSynthesisParams("voice-2", "") {
		t.Error("Same parameters should not clear again")
	}
	if v, m := h.ctrl.SynthesisParams(); v != "voice-2" || m != "" {
		t.Errorf("Unexpected params %q %q", v, m)
	}
}

func TestControllerFetchAllAudio(t *testing.T) {
	items := []script.Item{script.NewSpeech("a"), script.NewSpeech("b"), script.NewSpeech("c")}
	h := newHarness(t, items, nil)
	h.synth.fail["b"] = errors.New("bad request")

	var percents []int
	snap, err := h.ctrl.FetchAllAudio(context.Background(), func(p Progress) {
		percents = append(percents, p.Percent())
	})
	if err != nil {
		t.Fatalf("FetchAllAudio failed: %v", err)
	}

	if len(snap) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(snap))
	}
	if _, ok := snap[1]; ok {
		t.Error("Failed item must be skipped")
	}
	if _, ok := snap[0]; !ok {
		t.Error("Item 0 missing")
	}
	if _, ok := snap[2]; !ok {
		t.Error("Item 2 missing")
	}
	if !reflect.DeepEqual(percents, []int{33, 66, 100}) {
		t.Errorf("Expected progress [33 66 100], got %v", percents)
	}
	if len(h.speech.Texts()) != 0 {
		t.Error("Export must not use the fallback")
	}
	if h.out.VoiceCount() != 0 {
		t.Error("Export must not play")
	}

	snap[0][0] = 42
	if b, _ := h.cache.Bytes(0); b[0] == 42 {
		t.Error("Snapshot must be a copy")
	}

	// cached items are not fetched again
	if _, err := h.ctrl.FetchAllAudio(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if h.synth.callCount("a") != 1 {
		t.Errorf("Expected cached item reuse, got %d calls", h.synth.callCount("a"))
	}
}

func TestControllerFetchAllAudioCanceled(t *testing.T) {
	h := newHarness(t, []script.Item{script.NewSpeech("a")}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.ctrl.FetchAllAudio(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// gatedPlayer holds Play until release is closed.
type gatedPlayer struct {
	*audio.Engine
	entered chan struct{}
	release chan struct{}
}

func (g *gatedPlayer) Play(clip *audio.Clip) *audio.Playback {
	g.entered <- struct{}{}
	<-g.release
	return g.Engine.Play(clip)
}

func TestControllerSessionDuringPlayStart(t *testing.T) {
	out := &audio.MockOutput{Manual: true}
	cfg := audio.DefaultConfig()
	cfg.PollInterval = time.Millisecond
	cfg.Decoder = audio.PCMDecoder{SampleRate: 44100}
	cfg.NewOutput = audio.NewMockOutput(out)
	engine, err := audio.NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	player := &gatedPlayer{Engine: engine, entered: make(chan struct{}, 1), release: make(chan struct{})}
	ctrl, err := New(Config{
		Items:       []script.Item{script.NewSpeech("a")},
		Synthesizer: newMockSynth(),
		Player:      player,
		Fallback:    &speech.Recorder{},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		ctrl.Close()
		_ = engine.Destroy()
	})

	if err := ctrl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	select {
	case <-player.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for Play")
	}

	got := make(chan Session, 1)
	go func() { got <- ctrl.Session() }()
	select {
	case s := <-got:
		if !s.IsPlaying || s.CurrentIndex != 0 {
			t.Errorf("Unexpected session %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("Session blocked while a clip was starting")
	}

	// stopped before the clip existed: it must not keep playing
	if err := ctrl.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	close(player.release)
	eventually(t, "late clip stopped", func() bool {
		return out.VoiceCount() == 1 && !engine.IsPlaying()
	})
}

func TestControllerClose(t *testing.T) {
	h := newHarness(t, []script.Item{script.NewSpeech("a")}, &audio.MockOutput{Manual: true})

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	eventually(t, "playback", func() bool { return h.out.VoiceCount() == 1 })

	h.ctrl.Close()
	h.ctrl.Close()

	if h.cache.Len() != 0 {
		t.Error("Close should release the cache")
	}
	if err := h.ctrl.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if _, err := h.ctrl.FetchAllAudio(context.Background(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		p        Progress
		want     int
		fraction float64
	}{
		{Progress{1, 4}, 25, 0.25},
		{Progress{1, 3}, 33, 1.0 / 3},
		{Progress{2, 3}, 66, 2.0 / 3},
		{Progress{3, 3}, 100, 1},
		{Progress{0, 0}, 100, 1},
	}
	for _, tt := range tests {
		if got := tt.p.Percent(); got != tt.want {
			t.Errorf("%+v: expected %d, got %d", tt.p, tt.want, got)
		}
		if got := tt.p.Fraction(); got != tt.fraction {
			t.Errorf("%+v: expected fraction %v, got %v", tt.p, tt.fraction, got)
		}
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{Idle: "idle", Playing: "playing", Completed: "completed", Stopped: "stopped"} {
		if s.String() != want {
			t.Errorf("Expected %q, got %q", want, s.String())
		}
	}
}
