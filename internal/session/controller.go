// Package session owns the voice session state machine.
//
// A [Controller] acquires the microphone and audio output, connects the live
// model and routes its events: audio goes to the playback scheduler,
// transcription fragments to the turn aggregator and tool calls to the tool
// dispatcher. Teardown is unconditional and idempotent.
//
// Every session gets its own generation. Events, playback callbacks and tool
// results belonging to an older generation are ignored, so a stopped or
// restarted session can never write into the current one.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/aura/internal/conversation"
	"github.com/MrWong99/aura/internal/locale"
	"github.com/MrWong99/aura/internal/observe"
	"github.com/MrWong99/aura/internal/reminder"
	"github.com/MrWong99/aura/internal/tools"
	"github.com/MrWong99/aura/internal/transcript"
	"github.com/MrWong99/aura/pkg/audio"
	"github.com/MrWong99/aura/pkg/audio/playback"
	"github.com/MrWong99/aura/pkg/provider/live"
	"github.com/MrWong99/aura/pkg/provider/search"
)

var (
	// ErrAcquisition reports that an audio device could not be opened.
	ErrAcquisition = errors.New("session: audio device acquisition failed")

	// ErrConnection reports a failed handshake or a lost live connection.
	ErrConnection = errors.New("session: live connection failed")

	// ErrActive is returned by Start while a session is already running.
	ErrActive = errors.New("session: already active")

	// ErrStopped is returned by Start when Stop interrupted it.
	ErrStopped = errors.New("session: stopped during start")
)

// Option is a functional option for [New].
type Option func(*Controller)

// WithSearch sets the web search collaborator used by the web_search tool.
func WithSearch(p search.Provider) Option {
	return func(c *Controller) { c.search = p }
}

// WithCatalog sets the string catalog. Default: [locale.Default].
func WithCatalog(cat *locale.Catalog) Option {
	return func(c *Controller) { c.catalog = cat }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock replaces time.Now for messages and reminders.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithTickInterval sets the reminder polling cadence.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) { c.tickInterval = d }
}

// WithSearchTimeout bounds each web search. Zero keeps the tool default.
func WithSearchTimeout(d time.Duration) Option {
	return func(c *Controller) { c.searchTimeout = d }
}

// WithAssistant sets the instructions and voice sent on connect.
func WithAssistant(instructions, voice string) Option {
	return func(c *Controller) {
		c.instructions = instructions
		c.voice = voice
	}
}

// Controller drives one voice session at a time. All methods are safe for
// concurrent use.
type Controller struct {
	mic      audio.Microphone
	speaker  audio.Speaker
	provider live.Provider
	search   search.Provider
	catalog  *locale.Catalog
	metrics  *observe.Metrics
	now      func() time.Time

	tickInterval  time.Duration
	searchTimeout time.Duration

	log       *conversation.Log
	reminders *reminder.Scheduler
	turns     *transcript.Aggregator

	mu           sync.Mutex
	status       Status
	gen          uint64
	active       *run
	notification *reminder.Reminder
	instructions string
	voice        string

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

// run holds the resources of one session generation.
type run struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc

	// Set during Start, read-only afterwards.
	capture audio.CaptureStream
	output  audio.Output
	player  *playback.Scheduler
	sess    live.Session
	tools   *tools.Dispatcher

	// Guarded by Controller.mu.
	pumping   bool
	searching int    // web searches in flight
	resume    Status // status to return to when searching drops to 0

	wg sync.WaitGroup
}

// New creates an idle Controller.
func New(mic audio.Microphone, speaker audio.Speaker, provider live.Provider, opts ...Option) *Controller {
	c := &Controller{
		mic:          mic,
		speaker:      speaker,
		provider:     provider,
		now:          time.Now,
		tickInterval: reminder.DefaultTickInterval,
		status:       StatusIdle,
		turns:        transcript.New(),
		subs:         make(map[chan struct{}]struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.catalog == nil {
		c.catalog = locale.Default()
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	c.log = conversation.NewLog(
		conversation.WithClock(c.now),
		conversation.WithOnAppend(func(conversation.Message) { c.notify() }),
	)
	c.reminders = reminder.New(
		reminder.WithClock(c.now),
		reminder.WithTickInterval(c.tickInterval),
		reminder.WithOnDue(c.reminderDue),
	)
	return c
}

// SetAssistant replaces the instructions and voice. The change applies to the
// next session.
func (c *Controller) SetAssistant(instructions, voice string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instructions = instructions
	c.voice = voice
}

// Run polls reminders until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	return c.reminders.Run(ctx)
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

// Start opens the microphone, the audio output and the live connection. ctx
// bounds acquisition and handshake only; the session itself lives until
// [Controller.Stop] or a transport failure.
//
// On failure the controller enters [StatusError], posts a message and tears
// down whatever was acquired. The returned error wraps [ErrAcquisition] or
// [ErrConnection].
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status.Active() {
		c.mu.Unlock()
		return ErrActive
	}
	c.gen++
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{gen: c.gen, ctx: runCtx, cancel: cancel}
	c.active = r
	cfg := live.SessionConfig{
		Instructions:     c.instructions,
		Voice:            c.voice,
		Tools:            tools.Declarations(),
		TranscribeInput:  true,
		TranscribeOutput: true,
	}
	c.setStatusLocked(StatusProcessing)
	c.mu.Unlock()

	slog.Info("session: starting", "gen", r.gen)

	capture, err := c.mic.Open(ctx)
	if err != nil {
		err = fmt.Errorf("%w: microphone: %w", ErrAcquisition, err)
		c.fail(r, err, "microphone", locale.MicrophoneError)
		return err
	}
	if !c.attach(r, func() { r.capture = capture }) {
		_ = capture.Close()
		return ErrStopped
	}

	out, err := c.speaker.Open(ctx, audio.OutputSampleRate)
	if err != nil {
		err = fmt.Errorf("%w: output: %w", ErrAcquisition, err)
		c.fail(r, err, "output", locale.OutputError)
		return err
	}
	player := playback.New(out, playback.WithOnIdle(func() { c.playbackIdle(r) }))
	if !c.attach(r, func() { r.output, r.player = out, player }) {
		_ = out.Close()
		return ErrStopped
	}

	sess, err := c.connect(ctx, cfg)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrConnection, err)
		c.fail(r, err, "connection", locale.ConnectionError)
		return err
	}
	dispatcher := tools.New(runMessages{c: c, r: r}, c.reminders,
		tools.WithSearch(c.search),
		tools.WithStatusGuard(runGuard{c: c, r: r}),
		tools.WithCatalog(c.catalog),
		tools.WithMetrics(c.metrics),
		tools.WithClock(c.now),
		tools.WithSearchTimeout(c.searchTimeout),
	)
	if !c.attach(r, func() { r.sess, r.tools = sess, dispatcher }) {
		_ = sess.Close()
		return ErrStopped
	}
	c.metrics.ActiveSessions.Add(r.ctx, 1)

	r.wg.Go(func() { c.loop(r) })
	return nil
}

func (c *Controller) connect(ctx context.Context, cfg live.SessionConfig) (sess live.Session, err error) {
	ctx, span := observe.StartClientSpan(ctx, "session.connect", "live")
	defer func() { observe.EndSpan(span, err) }()

	start := time.Now()
	sess, err = c.provider.Connect(ctx, cfg)
	c.metrics.ConnectDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordProviderRequest(ctx, "live", "error")
		return nil, err
	}
	c.metrics.RecordProviderRequest(ctx, "live", "ok")
	return sess, nil
}

// attach runs set under the lock if r is still the current run.
func (c *Controller) attach(r *run, set func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != r {
		return false
	}
	set()
	return true
}

// Stop ends the current session and returns to [StatusIdle]. It waits for the
// session's goroutines to exit. Calling Stop when idle is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	r := c.active
	c.active = nil
	c.setStatusLocked(StatusIdle)
	c.mu.Unlock()

	if r == nil {
		return
	}
	slog.Info("session: stopping", "gen", r.gen)
	c.teardown(r)
	r.wg.Wait()
}

// fail moves r into [StatusError] with a localized message and tears it down.
// It is a no-op if r is no longer current.
func (c *Controller) fail(r *run, err error, kind string, key locale.Key) {
	c.mu.Lock()
	if c.active != r {
		c.mu.Unlock()
		return
	}
	c.active = nil
	c.setStatusLocked(StatusError)
	c.log.Append(conversation.SenderSystem, c.catalog.Text(key))
	c.mu.Unlock()

	slog.Error("session: failed", "gen", r.gen, "kind", kind, "err", err)
	c.metrics.RecordSessionError(context.WithoutCancel(r.ctx), kind)
	c.teardown(r)
}

// teardown releases every resource of r. Each step runs regardless of the
// outcome of the others. It must be called after r was detached.
func (c *Controller) teardown(r *run) {
	r.cancel()

	c.mu.Lock()
	capture, output, player, sess := r.capture, r.output, r.player, r.sess
	c.turns.Reset()
	c.mu.Unlock()

	var errs []error
	if capture != nil {
		if err := capture.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close microphone: %w", err))
		}
	}
	if player != nil {
		player.StopAll()
	}
	if output != nil {
		if err := output.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close output: %w", err))
		}
	}
	if sess != nil {
		if err := sess.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close live session: %w", err))
		}
		c.metrics.ActiveSessions.Add(context.WithoutCancel(r.ctx), -1)
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("session: teardown incomplete", "gen", r.gen, "err", err)
	}
	c.notify()
}

// Reset stops the session and clears the conversation, reminders and any
// active notification.
func (c *Controller) Reset() {
	c.Stop()
	c.log.Reset()
	c.reminders.Reset()
	c.mu.Lock()
	c.notification = nil
	c.turns.Reset()
	c.mu.Unlock()
	c.notify()
}

// ── Event loop ───────────────────────────────────────────────────────────────

// loop consumes live events in arrival order until the session ends.
func (c *Controller) loop(r *run) {
	for ev := range r.sess.Events() {
		c.handle(r, ev)
	}
	if err := r.sess.Err(); err != nil {
		c.fail(r, fmt.Errorf("%w: %w", ErrConnection, err), "transport", locale.TransportError)
	}
}

func (c *Controller) handle(r *run, ev live.Event) {
	slog.Debug("session: event", "gen", r.gen, "type", ev.Type)

	switch ev.Type {
	case live.EventOpen:
		c.mu.Lock()
		if c.active != r {
			c.mu.Unlock()
			return
		}
		if c.status == StatusProcessing {
			c.setStatusLocked(StatusListening)
		}
		startPump := !r.pumping
		r.pumping = true
		c.mu.Unlock()
		if startPump {
			slog.Info("session: listening", "gen", r.gen)
			r.wg.Go(func() { c.pump(r) })
		}

	case live.EventAudio:
		c.playAudio(r, ev.Audio)

	case live.EventInputTranscript:
		c.withCurrent(r, func() {
			c.turns.AppendInput(ev.Text)
			c.notify()
		})

	case live.EventOutputTranscript:
		c.withCurrent(r, func() { c.turns.AppendOutput(ev.Text) })

	case live.EventTurnComplete:
		c.withCurrent(r, func() {
			turn := c.turns.Flush()
			if turn.User != "" {
				c.log.Append(conversation.SenderUser, turn.User)
			}
			if turn.Assistant != "" {
				c.log.Append(conversation.SenderAssistant, turn.Assistant)
			}
			if turn.AssistantSuppressed {
				slog.Debug("session: assistant transcript suppressed", "gen", r.gen)
			}
			if c.status.Active() && r.player.Active() == 0 {
				c.setStatusLocked(StatusListening)
			}
			c.notify()
		})

	case live.EventToolCall:
		if ev.ToolCall == nil {
			return
		}
		call := *ev.ToolCall
		if !c.withCurrent(r, c.turns.MarkToolCall) {
			return
		}
		// Searches block on the network; everything else runs to completion
		// here, in arrival order.
		if call.Name == tools.WebSearch {
			r.wg.Go(func() { c.runTool(r, call) })
		} else {
			c.runTool(r, call)
		}

	case live.EventError:
		c.fail(r, fmt.Errorf("%w: %w", ErrConnection, ev.Err), "transport", locale.TransportError)
	}
}

// withCurrent runs fn under the lock if r is the current run.
func (c *Controller) withCurrent(r *run, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != r {
		return false
	}
	fn()
	return true
}

// playAudio schedules one inbound chunk. Status flips to speaking before the
// chunk is queued so that an immediate completion cannot be missed.
func (c *Controller) playAudio(r *run, chunk []byte) {
	if !c.withCurrent(r, func() {
		if c.status.Active() {
			c.setStatusLocked(StatusSpeaking)
		}
	}) {
		return
	}

	if _, err := r.player.Enqueue(chunk); err != nil {
		slog.Warn("session: dropping audio chunk", "gen", r.gen, "bytes", len(chunk), "err", err)
		c.metrics.MalformedChunks.Add(r.ctx, 1)
	} else {
		c.metrics.PlaybackChunks.Add(r.ctx, 1)
	}
	c.playbackIdle(r)
}

// playbackIdle returns to listening once nothing is playing.
func (c *Controller) playbackIdle(r *run) {
	c.withCurrent(r, func() {
		if c.status == StatusSpeaking && r.player.Active() == 0 {
			c.setStatusLocked(StatusListening)
		}
	})
}

func (c *Controller) runTool(r *run, call live.ToolCall) {
	res := r.tools.Dispatch(r.ctx, call)
	if err := r.sess.SendToolResponse(call.ID, call.Name, res.Response()); err != nil {
		slog.Debug("session: tool response not delivered", "gen", r.gen, "tool", call.Name, "err", err)
	}
}

// ── Capture ──────────────────────────────────────────────────────────────────

// pump streams captured frames upstream in capture order.
func (c *Controller) pump(r *run) {
	frames := r.capture.Frames()
	for {
		select {
		case <-r.ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				if r.ctx.Err() == nil {
					c.fail(r, fmt.Errorf("%w: microphone stream ended", ErrAcquisition), "microphone", locale.MicrophoneError)
				}
				return
			}
			pcm := audio.ToInputPCM(f)
			if len(pcm) == 0 {
				continue
			}
			if err := r.sess.SendAudio(pcm); err != nil {
				slog.Debug("session: send audio failed, draining capture", "gen", r.gen, "err", err)
				audio.Drain(frames)
				return
			}
		}
	}
}

// ── Reminders and notifications ──────────────────────────────────────────────

func (c *Controller) reminderDue(rem reminder.Reminder) {
	c.mu.Lock()
	c.notification = &rem
	c.log.Append(conversation.SenderSystem, c.catalog.Text(locale.ReminderDue, "text", rem.Text))
	c.mu.Unlock()
	c.metrics.RemindersFired.Add(context.Background(), 1)
}

// AcknowledgeNotification dismisses the active reminder notification if it
// belongs to id. It reports whether a notification was dismissed.
func (c *Controller) AcknowledgeNotification(id string) bool {
	rem, ok := c.reminders.Get(id)
	if !ok || !rem.Notified {
		slog.Debug("session: acknowledge of unknown or pending reminder", "id", id, "known", ok)
		return false
	}
	c.mu.Lock()
	if c.notification == nil || c.notification.ID != id {
		c.mu.Unlock()
		return false
	}
	c.notification = nil
	c.mu.Unlock()
	slog.Info("session: reminder acknowledged", "id", id, "text", rem.Text)
	c.notify()
	return true
}

// ── Status ───────────────────────────────────────────────────────────────────

// setStatusLocked must be called with c.mu held.
func (c *Controller) setStatusLocked(s Status) {
	if c.status == s {
		return
	}
	slog.Debug("session: status", "from", c.status, "to", s)
	c.status = s
	c.notify()
}

// Status returns the current status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// runGuard implements [tools.StatusGuard] for one run.
type runGuard struct {
	c *Controller
	r *run
}

// EnterProcessing switches to processing and returns the restore function.
// Overlapping searches share one processing period: the status in effect
// before the first one is restored when the last one finishes. Restoring is
// skipped when the session was stopped, failed or replaced in the meantime.
func (g runGuard) EnterProcessing() func() {
	c, r := g.c, g.r
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != r || !c.status.Active() {
		return func() {}
	}
	if r.searching == 0 {
		r.resume = c.status
	}
	r.searching++
	c.setStatusLocked(StatusProcessing)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			r.searching--
			if r.searching > 0 || c.active != r || c.status == StatusIdle {
				return
			}
			resume := r.resume
			if resume == StatusSpeaking && r.player.Active() == 0 {
				resume = StatusListening
			}
			c.setStatusLocked(resume)
		})
	}
}

// runMessages implements [tools.Messages], dropping output of stale runs.
type runMessages struct {
	c *Controller
	r *run
}

func (m runMessages) Append(sender conversation.Sender, text string, sources ...conversation.SearchSource) conversation.Message {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	if m.c.active != m.r {
		return conversation.Message{}
	}
	return m.c.log.Append(sender, text, sources...)
}
