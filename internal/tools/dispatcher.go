// Package tools declares the functions offered to the live model and
// executes the calls it makes.
//
// Device controls are simulated: they only produce an acknowledgement
// message. Reminders go to the reminder scheduler and web searches to a
// [search.Provider]. Every call yields a [Result] that is sent back to the
// model, whatever branch ran.
package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/aura/internal/conversation"
	"github.com/MrWong99/aura/internal/locale"
	"github.com/MrWong99/aura/internal/observe"
	"github.com/MrWong99/aura/internal/reminder"
	"github.com/MrWong99/aura/pkg/provider/live"
	"github.com/MrWong99/aura/pkg/provider/search"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrToolExecution marks a tool call that could not be carried out.
var ErrToolExecution = errors.New("tools: tool execution failed")

// defaultSearchTimeout bounds a single web search.
const defaultSearchTimeout = 30 * time.Second

// Messages receives the user-visible output of a tool call.
// [*conversation.Log] satisfies it.
type Messages interface {
	Append(sender conversation.Sender, text string, sources ...conversation.SearchSource) conversation.Message
}

// Reminders schedules reminders. [*reminder.Scheduler] satisfies it.
type Reminders interface {
	Schedule(text string, due time.Time) (reminder.Reminder, error)
}

// StatusGuard lets a long-running tool mark the session as processing.
// EnterProcessing returns a function that restores the previous status; the
// implementation must skip the restore when the session has gone idle in the
// meantime.
type StatusGuard interface {
	EnterProcessing() (restore func())
}

// Result is the outcome of one dispatched call.
type Result struct {
	// Output is the text reported back to the model.
	Output string

	// Err is non-nil when the call failed. The failure has already been
	// surfaced to the user as a message.
	Err error
}

// Response returns the acknowledgement payload for the live session.
func (r Result) Response() map[string]any {
	return map[string]any{"result": r.Output}
}

// Option is a functional option for [New].
type Option func(*Dispatcher)

// WithSearch sets the web search collaborator. Without one every web_search
// call fails.
func WithSearch(p search.Provider) Option {
	return func(d *Dispatcher) { d.search = p }
}

// WithStatusGuard sets the guard used by web_search.
func WithStatusGuard(g StatusGuard) Option {
	return func(d *Dispatcher) { d.guard = g }
}

// WithCatalog sets the string catalog. Default: [locale.Default].
func WithCatalog(c *locale.Catalog) Option {
	return func(d *Dispatcher) { d.catalog = c }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithClock replaces time.Now for reminder resolution.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithSearchTimeout bounds each web search. Default: 30s.
func WithSearchTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.searchTimeout = timeout
		}
	}
}

type handler func(ctx context.Context, args map[string]any) Result

// Dispatcher executes tool calls. It is safe for concurrent use; each call
// emits its messages independently.
type Dispatcher struct {
	messages      Messages
	reminders     Reminders
	search        search.Provider
	guard         StatusGuard
	catalog       *locale.Catalog
	metrics       *observe.Metrics
	now           func() time.Time
	searchTimeout time.Duration
	handlers      map[string]handler
}

// New creates a Dispatcher writing to messages and scheduling on reminders.
func New(messages Messages, reminders Reminders, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		messages:      messages,
		reminders:     reminders,
		now:           time.Now,
		searchTimeout: defaultSearchTimeout,
	}
	for _, o := range opts {
		o(d)
	}
	if d.catalog == nil {
		d.catalog = locale.Default()
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	d.handlers = map[string]handler{
		SystemControl:      d.systemControl,
		ApplicationControl: d.applicationControl,
		MediaControl:       d.mediaControl,
		SetReminder:        d.setReminder,
		WebSearch:          d.webSearch,
	}
	return d
}

// Dispatch runs call and returns its result. It never panics on bad input
// and never returns without having emitted a user-visible message.
func (d *Dispatcher) Dispatch(ctx context.Context, call live.ToolCall) Result {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "tools.dispatch",
		attribute.String("aura.tool.name", call.Name),
		attribute.String("aura.tool.call_id", call.ID),
	)
	h, ok := d.handlers[call.Name]
	var res Result
	if ok {
		res = h(ctx, call.Args)
	} else {
		res = d.fail(locale.ToolFailed, fmt.Errorf("%w: unknown tool %q", ErrToolExecution, call.Name))
	}
	observe.EndSpan(span, res.Err)

	status := "ok"
	if res.Err != nil {
		status = "error"
		observe.Logger(ctx).Warn("tools: call failed", "tool", call.Name, "id", call.ID, "err", res.Err)
	}
	d.metrics.RecordToolCall(ctx, call.Name, status)
	d.metrics.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("tool", call.Name)))
	return res
}

// ── Simulated controls ───────────────────────────────────────────────────────

func (d *Dispatcher) systemControl(_ context.Context, args map[string]any) Result {
	action, ok := actionArg(args, systemActions)
	if !ok {
		return d.invalidArgs(SystemControl, args)
	}
	return d.ack(d.catalog.Text(locale.SystemAck, "action", d.actionText(action)))
}

func (d *Dispatcher) applicationControl(_ context.Context, args map[string]any) Result {
	action, ok := actionArg(args, applicationActions)
	app := stringArg(args, "applicationName")
	if !ok || app == "" {
		return d.invalidArgs(ApplicationControl, args)
	}
	return d.ack(d.catalog.Text(locale.ApplicationAck, "action", d.actionText(action), "app", app))
}

func (d *Dispatcher) mediaControl(_ context.Context, args map[string]any) Result {
	action, ok := actionArg(args, mediaActions)
	if !ok {
		return d.invalidArgs(MediaControl, args)
	}
	if target := stringArg(args, "target"); target != "" {
		return d.ack(d.catalog.Text(locale.MediaAckTarget, "action", d.actionText(action), "target", target))
	}
	return d.ack(d.catalog.Text(locale.MediaAck, "action", d.actionText(action)))
}

func (d *Dispatcher) ack(text string) Result {
	d.messages.Append(conversation.SenderAssistant, text)
	return Result{Output: text}
}

func (d *Dispatcher) actionText(action string) string {
	return d.catalog.Text(locale.Key("action_" + strings.ToLower(action)))
}

// ── Reminders ────────────────────────────────────────────────────────────────

func (d *Dispatcher) setReminder(_ context.Context, args map[string]any) Result {
	text := stringArg(args, "reminderText")
	if text == "" {
		return d.invalidArgs(SetReminder, args)
	}

	now := d.now()
	delay, hasDelay := numberArg(args, "delayMinutes")
	var delayPtr *float64
	if hasDelay {
		delayPtr = &delay
	}

	due, err := reminder.ResolveDue(now, delayPtr, stringArg(args, "specificTime"))
	if err != nil {
		return d.fail(locale.ReminderTimeInvalid, err)
	}
	r, err := d.reminders.Schedule(text, due)
	if err != nil {
		return d.fail(locale.ReminderTimeInvalid, err)
	}

	var msg string
	switch {
	case hasDelay && delay == 1:
		msg = d.catalog.Text(locale.ReminderSetInMinute, "text", r.Text)
	case hasDelay && delay > 0 && !math.IsInf(delay, 0):
		msg = d.catalog.Text(locale.ReminderSetIn, "text", r.Text,
			"minutes", strconv.FormatFloat(delay, 'f', -1, 64))
	default:
		key := locale.ReminderSet
		if !reminder.SameDay(now, r.Due) {
			key = locale.ReminderSetTomorrow
		}
		clock := r.Due.Format(d.catalog.Text(locale.TimeFormat))
		msg = d.catalog.Text(key, "text", r.Text, "time", clock)
	}
	d.messages.Append(conversation.SenderAssistant, msg)
	return Result{Output: msg}
}

// ── Web search ───────────────────────────────────────────────────────────────

func (d *Dispatcher) webSearch(ctx context.Context, args map[string]any) Result {
	query := stringArg(args, "query")
	if query == "" {
		return d.invalidArgs(WebSearch, args)
	}

	if d.guard != nil {
		restore := d.guard.EnterProcessing()
		defer restore()
	}

	d.messages.Append(conversation.SenderSystem, d.catalog.Text(locale.Searching, "query", query))

	if d.search == nil {
		return d.fail(locale.SearchFailed, fmt.Errorf("%w: no search provider configured", ErrToolExecution))
	}

	ctx, cancel := context.WithTimeout(ctx, d.searchTimeout)
	defer cancel()
	ctx, span := observe.StartClientSpan(ctx, "tools.web_search", "search")
	start := time.Now()
	res, err := d.search.Search(ctx, query)
	d.metrics.SearchDuration.Record(ctx, time.Since(start).Seconds())
	observe.EndSpan(span, err)
	if err != nil {
		d.metrics.RecordProviderRequest(ctx, "search", "error")
		return d.fail(locale.SearchFailed, fmt.Errorf("%w: web search: %w", ErrToolExecution, err))
	}
	d.metrics.RecordProviderRequest(ctx, "search", "ok")

	sources := make([]conversation.SearchSource, 0, len(res.Sources))
	for _, s := range res.Sources {
		sources = append(sources, conversation.SearchSource{URI: s.URI, Title: s.Title})
	}
	d.messages.Append(conversation.SenderAssistant, res.Answer, conversation.DedupeSources(sources)...)
	return Result{Output: res.Answer}
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func (d *Dispatcher) fail(key locale.Key, err error) Result {
	text := d.catalog.Text(key)
	d.messages.Append(conversation.SenderSystem, text)
	return Result{Output: text, Err: err}
}

func (d *Dispatcher) invalidArgs(tool string, args map[string]any) Result {
	return d.fail(locale.ToolFailed, fmt.Errorf("%w: %s: invalid arguments %v", ErrToolExecution, tool, args))
}

// actionArg returns the upper-cased "action" argument if it is one of allowed.
func actionArg(args map[string]any, allowed []string) (string, bool) {
	action := strings.ToUpper(stringArg(args, "action"))
	return action, slices.Contains(allowed, action)
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

// numberArg accepts JSON numbers and numeric strings.
func numberArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
