package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dramaplay/internal/audio"
	"github.com/dgnsrekt/dramaplay/internal/cache"
	"github.com/dgnsrekt/dramaplay/internal/script"
	"github.com/dgnsrekt/dramaplay/internal/speech"
	"github.com/dgnsrekt/dramaplay/internal/synth"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultLookahead is how many items are prefetched after each play start.
const DefaultLookahead = 2

// Synthesizer turns one item into encoded audio.
type Synthesizer = synth.Synthesizer

// Player is the playback engine the controller drives.
type Player interface {
	Play(clip *audio.Clip) *audio.Playback
	Stop()
	InitializeAnalyser() (*audio.Analyser, error)
	Suspend() error
}

// Callbacks receive controller events. Any of them may be nil.
type Callbacks struct {
	OnItemStart func(index int)
	OnComplete  func()
	OnStop      func()
	OnStatus    func(Status)
	OnAnalyser  func(*audio.Analyser)
}

// Config wires a controller.
type Config struct {
	Items     []script.Item
	Mode      script.Mode
	VoiceID   string
	ModelID   string
	Lookahead int

	Synthesizer Synthesizer
	Player      Player
	Fallback    speech.Speaker
	Cache       *cache.AudioCache // created when nil
	Callbacks   Callbacks
}

// Controller sequences playback over a fixed list of items.
type Controller struct {
	items     []script.Item
	mode      script.Mode
	lookahead int
	synth     Synthesizer
	player    Player
	fallback  speech.Speaker
	cache     *cache.AudioCache
	cb        Callbacks

	// fetches outlive a stopped run so late results still land in the cache
	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group
	wg     sync.WaitGroup

	// eventMu orders callbacks with Stop: once Stop returns, no callback of
	// the stopped run can fire.
	eventMu sync.Mutex
	playMu  sync.Mutex

	mu          sync.Mutex
	state       State
	current     int
	lastErr     string
	voiceID     string
	modelID     string
	run         uint64
	runCancel   context.CancelFunc
	prefetching map[int]struct{}
	closed      bool
}

// fetched is the shared result of one synthesis.
type fetched struct {
	clip *audio.Clip
	data []byte
}

// New creates a controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Synthesizer == nil {
		return nil, errors.New("synthesizer is required")
	}
	if cfg.Player == nil {
		return nil, errors.New("player is required")
	}
	if cfg.Fallback == nil {
		cfg.Fallback = speech.Unavailable{}
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewAudioCache()
	}
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = DefaultLookahead
	}
	if cfg.Mode == "" {
		cfg.Mode = script.ChildrenBook
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		items:       append([]script.Item(nil), cfg.Items...),
		mode:        cfg.Mode,
		lookahead:   cfg.Lookahead,
		synth:       cfg.Synthesizer,
		player:      cfg.Player,
		fallback:    cfg.Fallback,
		cache:       cfg.Cache,
		cb:          cfg.Callbacks,
		ctx:         ctx,
		cancel:      cancel,
		current:     -1,
		voiceID:     cfg.VoiceID,
		modelID:     cfg.ModelID,
		prefetching: make(map[int]struct{}),
	}, nil
}

// Items returns the script being sequenced.
func (c *Controller) Items() []script.Item {
	return append([]script.Item(nil), c.items...)
}

// Mode returns the script mode.
func (c *Controller) Mode() script.Mode {
	return c.mode
}

// Cache returns the controller's audio cache.
func (c *Controller) Cache() *cache.AudioCache {
	return c.cache
}

// State returns the playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a snapshot of the current run.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Session{
		CurrentIndex: c.current,
		IsPlaying:    c.state == Playing,
		LastError:    c.lastErr,
	}
}

// Start plays the script from the first item and returns immediately.
// With no items it does nothing.
func (c *Controller) Start() error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case len(c.items) == 0:
		c.mu.Unlock()
		return nil
	case c.state == Playing:
		c.mu.Unlock()
		return ErrAlreadyPlaying
	}

	c.run++
	run := c.run
	ctx, cancel := context.WithCancel(c.ctx)
	c.runCancel = cancel
	c.state = Playing
	c.current = 0
	c.lastErr = ""
	c.wg.Add(1)
	c.mu.Unlock()

	if a, err := c.player.InitializeAnalyser(); err != nil {
		log.Warn("audio analyser unavailable", "error", err)
	} else if c.cb.OnAnalyser != nil {
		c.cb.OnAnalyser(a)
	}

	id := uuid.NewString()
	log.Info("playback started", "run", id, "items", len(c.items), "mode", c.mode)
	go c.loop(ctx, run, id)
	return nil
}

func (c *Controller) loop(ctx context.Context, run uint64, id string) {
	defer c.wg.Done()

	for i := range c.items {
		if !c.enter(run, i) {
			return
		}
		c.playItem(ctx, run, i)
		if ctx.Err() != nil {
			log.Debug("playback run ended early", "run", id, "index", i)
			return
		}
	}
	c.complete(run, id)
}

// enter makes i the current item of run.
func (c *Controller) enter(run uint64, i int) bool {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.mu.Lock()
	if c.run != run || c.state != Playing {
		c.mu.Unlock()
		return false
	}
	c.current = i
	c.mu.Unlock()

	if c.cb.OnItemStart != nil {
		c.cb.OnItemStart(i)
	}
	return true
}

func (c *Controller) playItem(ctx context.Context, run uint64, i int) {
	clip, err := c.resolve(ctx, i)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("remote synthesis failed", "index", i, "error", err)
		c.report(run, remoteStatus(i, err))
		c.speakFallback(ctx, run, i)
		return
	}

	pb, ok := c.start(run, clip)
	if !ok {
		return
	}

	if !pb.Started() {
		log.Warn("playback failed to start", "index", i, "playback", pb.ID(), "error", pb.Err())
		c.report(run, playbackStatus(i, pb.Err()))
		c.speakFallback(ctx, run, i)
		return
	}

	c.prefetchAfter(i)

	select {
	case <-pb.Done():
		if err := pb.Err(); err != nil && !errors.Is(err, audio.ErrInterrupted) {
			log.Warn("playback failed", "index", i, "playback", pb.ID(), "error", err)
			c.report(run, playbackStatus(i, err))
			c.speakFallback(ctx, run, i)
		}
	case <-ctx.Done():
	}
}

// start plays clip for run. Play runs outside mu; playMu keeps a later run
// from starting a clip before this one is checked again.
func (c *Controller) start(run uint64, clip *audio.Clip) (*audio.Playback, bool) {
	c.playMu.Lock()
	defer c.playMu.Unlock()

	if !c.active(run) {
		return nil, false
	}
	pb := c.player.Play(clip)
	if !c.active(run) {
		// Stop ran while Play was starting and found nothing to halt
		c.player.Stop()
		return nil, false
	}
	return pb, true
}

func (c *Controller) active(run uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run == run && c.state == Playing
}

// resolve returns the clip for i from the cache or the synthesizer. The
// wait is abandoned when ctx ends; the fetch itself carries on.
func (c *Controller) resolve(ctx context.Context, i int) (*audio.Clip, error) {
	if clip, ok := c.cache.Handle(i); ok {
		return clip, nil
	}

	c.mu.Lock()
	ch := c.fetchLocked(i)
	c.mu.Unlock()

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(fetched).clip, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetchLocked joins or starts the synthesis for i. Results are keyed by the
// cache epoch so a request made after a parameter change never joins one
// made before it.
func (c *Controller) fetchLocked(i int) <-chan singleflight.Result {
	epoch := c.cache.Epoch()
	voice, model := c.voiceID, c.modelID
	item := c.items[i]
	key := fmt.Sprintf("%d/%d", epoch, i)

	return c.group.DoChan(key, func() (interface{}, error) {
		data, err := c.synth.Synthesize(c.ctx, item, c.mode, voice, model)
		if err != nil {
			return nil, err
		}
		if clip, _ := c.cache.SetIfAbsent(epoch, i, data); clip != nil {
			return fetched{clip: clip, data: data}, nil
		}
		// parameters changed while in flight: usable once, not cached
		return fetched{clip: audio.NewClip(data), data: data}, nil
	})
}

func (c *Controller) prefetchAfter(i int) {
	for k := 1; k <= c.lookahead; k++ {
		j := i + k
		if j >= len(c.items) {
			return
		}
		c.prefetch(j)
	}
}

// prefetch fetches j into the cache in the background. It never plays.
func (c *Controller) prefetch(j int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if _, busy := c.prefetching[j]; busy || c.cache.Has(j) {
		c.mu.Unlock()
		return
	}
	c.prefetching[j] = struct{}{}
	ch := c.fetchLocked(j)
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		r := <-ch

		c.mu.Lock()
		delete(c.prefetching, j)
		c.mu.Unlock()

		if r.Err != nil {
			log.Debug("prefetch failed", "index", j, "error", r.Err)
		}
	}()
}

// speakFallback voices item i locally and waits for it to settle.
func (c *Controller) speakFallback(ctx context.Context, run uint64, i int) {
	err := <-c.fallback.Speak(ctx, c.items[i].Content)
	if err == nil || ctx.Err() != nil {
		return
	}
	log.Warn("local speech failed", "index", i, "error", err)
	c.report(run, fallbackStatus(i, err))
}

func (c *Controller) report(run uint64, st Status) {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.mu.Lock()
	if c.run != run || c.state != Playing {
		c.mu.Unlock()
		return
	}
	c.lastErr = st.Message
	c.mu.Unlock()

	if c.cb.OnStatus != nil {
		c.cb.OnStatus(st)
	}
}

func (c *Controller) complete(run uint64, id string) {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.mu.Lock()
	if c.run != run || c.state != Playing {
		c.mu.Unlock()
		return
	}
	c.state = Completed
	c.current = -1
	c.runCancel()
	c.mu.Unlock()

	if err := c.player.Suspend(); err != nil {
		log.Debug("failed to suspend output", "error", err)
	}
	log.Info("playback completed", "run", id)

	if c.cb.OnComplete != nil {
		c.cb.OnComplete()
	}
}

// Stop halts playback and any local utterance. Results still in flight may
// fill the cache but will not play.
func (c *Controller) Stop() error {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.mu.Lock()
	if c.state != Playing {
		c.mu.Unlock()
		return ErrNotPlaying
	}
	c.state = Stopped
	c.current = -1
	c.runCancel()
	c.player.Stop()
	c.mu.Unlock()

	log.Info("playback stopped")
	if c.cb.OnStop != nil {
		c.cb.OnStop()
	}
	return nil
}

// SetSynthesisParams changes voice and model. Cached audio belongs to the
// old parameters, so the cache is cleared when either changes.
func (c *Controller) SetSynthesisParams(voiceID, modelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if voiceID == c.voiceID && modelID == c.modelID {
		return false
	}
	c.voiceID, c.modelID = voiceID, modelID
	c.cache.Clear()
	log.Info("synthesis parameters changed", "voice", voiceID, "model", modelID)
	return true
}

// SynthesisParams returns the current voice and model.
func (c *Controller) SynthesisParams() (voiceID, modelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voiceID, c.modelID
}

// FetchAllAudio resolves every item without playing, in order. Items that
// fail are logged and left out; local speech is never used because it
// produces no bytes. progress is called after each item.
func (c *Controller) FetchAllAudio(ctx context.Context, progress func(Progress)) (map[int][]byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.mu.Unlock()

	out := make(map[int][]byte, len(c.items))
	for i := range c.items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if data, ok := c.cache.Bytes(i); ok {
			out[i] = append([]byte(nil), data...)
		} else {
			c.mu.Lock()
			ch := c.fetchLocked(i)
			c.mu.Unlock()

			select {
			case r := <-ch:
				if r.Err != nil {
					log.Warn("export skipping item", "index", i, "error", r.Err)
				} else {
					out[i] = append([]byte(nil), r.Val.(fetched).data...)
				}
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if progress != nil {
			progress(Progress{Processed: i + 1, Total: len(c.items)})
		}
	}
	return out, nil
}

// Close stops playback, waits for background fetches and releases the
// cache. The player is owned by the caller.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.state == Playing {
		c.state = Stopped
		c.current = -1
		c.runCancel()
	}
	c.player.Stop()
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.cache.Close()
}
