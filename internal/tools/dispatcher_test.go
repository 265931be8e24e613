package tools_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/aura/internal/conversation"
	"github.com/MrWong99/aura/internal/locale"
	"github.com/MrWong99/aura/internal/observe"
	"github.com/MrWong99/aura/internal/reminder"
	"github.com/MrWong99/aura/internal/tools"
	"github.com/MrWong99/aura/pkg/provider/live"
	"github.com/MrWong99/aura/pkg/provider/search"
	searchmock "github.com/MrWong99/aura/pkg/provider/search/mock"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// 5:00 PM on a Monday.
var now = time.Date(2026, 5, 4, 17, 0, 0, 0, time.UTC)

// guard records EnterProcessing/restore pairs.
type guard struct {
	mu       sync.Mutex
	entered  int
	restored int
}

func (g *guard) EnterProcessing() func() {
	g.mu.Lock()
	g.entered++
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		g.restored++
		g.mu.Unlock()
	}
}

type fixture struct {
	log       *conversation.Log
	reminders *reminder.Scheduler
	search    *searchmock.Provider
	guard     *guard
	reader    *sdkmetric.ManualReader
	d         *tools.Dispatcher
	cat       *locale.Catalog
}

func newFixture(t *testing.T, opts ...tools.Option) *fixture {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	clock := func() time.Time { return now }
	f := &fixture{
		log:       conversation.NewLog(conversation.WithClock(clock)),
		reminders: reminder.New(reminder.WithClock(clock)),
		search:    &searchmock.Provider{},
		guard:     &guard{},
		reader:    reader,
		cat:       locale.Default(),
	}
	all := append([]tools.Option{
		tools.WithSearch(f.search),
		tools.WithStatusGuard(f.guard),
		tools.WithCatalog(f.cat),
		tools.WithMetrics(m),
		tools.WithClock(clock),
	}, opts...)
	f.d = tools.New(f.log, f.reminders, all...)
	return f
}

func call(name string, args map[string]any) live.ToolCall {
	return live.ToolCall{ID: "call-1", Name: name, Args: args}
}

func (f *fixture) onlyMessage(t *testing.T) conversation.Message {
	t.Helper()
	msgs := f.log.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want exactly 1: %+v", len(msgs), msgs)
	}
	return msgs[0]
}

// ── Declarations ─────────────────────────────────────────────────────────────

func TestDeclarations(t *testing.T) {
	t.Parallel()

	decls := tools.Declarations()
	var names []string
	for _, d := range decls {
		names = append(names, d.Name)
		if d.Description == "" {
			t.Errorf("%s: empty description", d.Name)
		}
		if d.Parameters["type"] != "OBJECT" {
			t.Errorf("%s: parameters type = %v, want OBJECT", d.Name, d.Parameters["type"])
		}
	}
	want := []string{tools.SystemControl, tools.ApplicationControl, tools.MediaControl, tools.SetReminder, tools.WebSearch}
	if !slices.Equal(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}

	media := decls[2].Parameters["properties"].(map[string]any)["action"].(map[string]any)
	if got := media["enum"].([]string); !slices.Equal(got, []string{"PLAY", "PAUSE", "VOLUME_UP", "VOLUME_DOWN"}) {
		t.Errorf("media_control enum = %v", got)
	}
	if got := decls[1].Parameters["required"].([]string); !slices.Equal(got, []string{"action", "applicationName"}) {
		t.Errorf("application_control required = %v", got)
	}
	if got := decls[3].Parameters["required"].([]string); !slices.Equal(got, []string{"reminderText"}) {
		t.Errorf("set_reminder required = %v", got)
	}
}

// ── Simulated controls ───────────────────────────────────────────────────────

func TestDispatch_SimulatedControls(t *testing.T) {
	t.Parallel()

	cat := locale.Default()
	tests := []struct {
		name     string
		tool     string
		args     map[string]any
		wantText string
		wantErr  bool
	}{
		{
			name:     "system shutdown",
			tool:     tools.SystemControl,
			args:     map[string]any{"action": "SHUTDOWN"},
			wantText: cat.Text(locale.SystemAck, "action", "shut down"),
		},
		{
			name:     "system action normalised",
			tool:     tools.SystemControl,
			args:     map[string]any{"action": "restart"},
			wantText: cat.Text(locale.SystemAck, "action", "restart"),
		},
		{
			name:     "system invalid action",
			tool:     tools.SystemControl,
			args:     map[string]any{"action": "REBOOT"},
			wantText: cat.Text(locale.ToolFailed),
			wantErr:  true,
		},
		{
			name:     "application open",
			tool:     tools.ApplicationControl,
			args:     map[string]any{"action": "Open", "applicationName": "Spotify"},
			wantText: cat.Text(locale.ApplicationAck, "action", "open", "app", "Spotify"),
		},
		{
			name:     "application without name",
			tool:     tools.ApplicationControl,
			args:     map[string]any{"action": "CLOSE"},
			wantText: cat.Text(locale.ToolFailed),
			wantErr:  true,
		},
		{
			name:     "media without target",
			tool:     tools.MediaControl,
			args:     map[string]any{"action": "volume_up"},
			wantText: cat.Text(locale.MediaAck, "action", "turn the volume up"),
		},
		{
			name:     "media with target",
			tool:     tools.MediaControl,
			args:     map[string]any{"action": "PAUSE", "target": "Spotify"},
			wantText: cat.Text(locale.MediaAckTarget, "action", "pause playback", "target", "Spotify"),
		},
		{
			name:     "media missing action",
			tool:     tools.MediaControl,
			args:     map[string]any{},
			wantText: cat.Text(locale.ToolFailed),
			wantErr:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			res := f.d.Dispatch(context.Background(), call(tc.tool, tc.args))

			if (res.Err != nil) != tc.wantErr {
				t.Fatalf("Err = %v, wantErr %v", res.Err, tc.wantErr)
			}
			if tc.wantErr && !errors.Is(res.Err, tools.ErrToolExecution) {
				t.Errorf("Err = %v, want ErrToolExecution", res.Err)
			}
			msg := f.onlyMessage(t)
			if msg.Text != tc.wantText {
				t.Errorf("message = %q, want %q", msg.Text, tc.wantText)
			}
			if res.Output != tc.wantText {
				t.Errorf("Output = %q, want %q", res.Output, tc.wantText)
			}
		})
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.d.Dispatch(context.Background(), call("launch_rocket", nil))

	if !errors.Is(res.Err, tools.ErrToolExecution) {
		t.Fatalf("Err = %v, want ErrToolExecution", res.Err)
	}
	msg := f.onlyMessage(t)
	if msg.Sender != conversation.SenderSystem || msg.Text != f.cat.Text(locale.ToolFailed) {
		t.Errorf("message = %+v", msg)
	}
	if got := res.Response()["result"]; got != f.cat.Text(locale.ToolFailed) {
		t.Errorf("response result = %v", got)
	}
}

// ── Reminders ────────────────────────────────────────────────────────────────

func TestDispatch_SetReminderRelative(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.d.Dispatch(context.Background(), call(tools.SetReminder, map[string]any{
		"reminderText": "stretch",
		"delayMinutes": float64(5),
	}))
	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}

	pending := f.reminders.Pending()
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if want := now.Add(300000 * time.Millisecond); !pending[0].Due.Equal(want) {
		t.Errorf("due = %v, want %v", pending[0].Due, want)
	}
	want := `Reminder set: "stretch" in 5 minutes.`
	if msg := f.onlyMessage(t); msg.Text != want {
		t.Errorf("message = %q, want %q", msg.Text, want)
	}
}

func TestDispatch_SetReminderDelayConfirmation(t *testing.T) {
	t.Parallel()

	es, err := locale.New(locale.Spanish, nil)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name  string
		cat   *locale.Catalog
		delay any
		want  string
	}{
		{name: "one minute", cat: locale.Default(), delay: float64(1), want: `Reminder set: "tea" in 1 minute.`},
		{name: "fractional", cat: locale.Default(), delay: 2.5, want: `Reminder set: "tea" in 2.5 minutes.`},
		{name: "numeric string", cat: locale.Default(), delay: "10", want: `Reminder set: "tea" in 10 minutes.`},
		{name: "spanish", cat: es, delay: float64(3), want: `Recordatorio programado: "tea" en 3 minutos.`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, tools.WithCatalog(tt.cat))

			res := f.d.Dispatch(context.Background(), call(tools.SetReminder, map[string]any{
				"reminderText": "tea",
				"delayMinutes": tt.delay,
			}))
			if res.Err != nil {
				t.Fatalf("Err = %v", res.Err)
			}
			if msg := f.onlyMessage(t); msg.Text != tt.want || res.Output != tt.want {
				t.Errorf("message = %q, output = %q, want %q", msg.Text, res.Output, tt.want)
			}
		})
	}
}

func TestDispatch_SetReminderClockRollsToTomorrow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.d.Dispatch(context.Background(), call(tools.SetReminder, map[string]any{
		"reminderText": "call mom",
		"specificTime": "4:00 PM",
	}))
	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}

	pending := f.reminders.Pending()
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	want := time.Date(2026, 5, 5, 16, 0, 0, 0, time.UTC)
	if !pending[0].Due.Equal(want) {
		t.Errorf("due = %v, want %v", pending[0].Due, want)
	}
	wantText := f.cat.Text(locale.ReminderSetTomorrow, "text", "call mom", "time", "4:00 PM")
	if msg := f.onlyMessage(t); msg.Text != wantText {
		t.Errorf("message = %q, want %q", msg.Text, wantText)
	}
}

func TestDispatch_SetReminderNumericString(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.d.Dispatch(context.Background(), call(tools.SetReminder, map[string]any{
		"reminderText": "tea",
		"delayMinutes": "10",
	}))
	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if got := f.reminders.Pending()[0].Due; !got.Equal(now.Add(10 * time.Minute)) {
		t.Errorf("due = %v", got)
	}
}

func TestDispatch_SetReminderInvalidTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args map[string]any
	}{
		{"no time", map[string]any{"reminderText": "x"}},
		{"garbage clock", map[string]any{"reminderText": "x", "specificTime": "teatime"}},
		{"24h clock", map[string]any{"reminderText": "x", "specificTime": "16:00"}},
		{"negative delay", map[string]any{"reminderText": "x", "delayMinutes": float64(-3)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			res := f.d.Dispatch(context.Background(), call(tools.SetReminder, tc.args))

			if !errors.Is(res.Err, reminder.ErrInvalidSchedule) {
				t.Errorf("Err = %v, want ErrInvalidSchedule", res.Err)
			}
			if n := len(f.reminders.Pending()); n != 0 {
				t.Errorf("reminders created = %d, want 0", n)
			}
			if msg := f.onlyMessage(t); msg.Text != f.cat.Text(locale.ReminderTimeInvalid) {
				t.Errorf("message = %q", msg.Text)
			}
		})
	}
}

func TestDispatch_SetReminderMissingText(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.d.Dispatch(context.Background(), call(tools.SetReminder, map[string]any{"delayMinutes": float64(5)}))

	if !errors.Is(res.Err, tools.ErrToolExecution) {
		t.Errorf("Err = %v, want ErrToolExecution", res.Err)
	}
	if n := len(f.reminders.Pending()); n != 0 {
		t.Errorf("reminders created = %d, want 0", n)
	}
	f.onlyMessage(t)
}

// ── Web search ───────────────────────────────────────────────────────────────

func TestDispatch_WebSearchDedupesSources(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.search.Result = &search.Result{
		Answer: "It is sunny.",
		Sources: []search.Source{
			{URI: "a", Title: "X"},
			{URI: "a", Title: "Y"},
			{URI: "b", Title: "Z"},
			{URI: "c", Title: ""},
		},
	}

	res := f.d.Dispatch(context.Background(), call(tools.WebSearch, map[string]any{"query": "weather"}))
	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if res.Output != "It is sunny." {
		t.Errorf("Output = %q", res.Output)
	}

	msgs := f.log.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Sender != conversation.SenderSystem || msgs[0].Text != f.cat.Text(locale.Searching, "query", "weather") {
		t.Errorf("first message = %+v", msgs[0])
	}
	answer := msgs[1]
	if answer.Sender != conversation.SenderAssistant || answer.Text != "It is sunny." {
		t.Errorf("answer = %+v", answer)
	}
	wantSources := []conversation.SearchSource{{URI: "a", Title: "Y"}, {URI: "b", Title: "Z"}}
	if !slices.Equal(answer.Sources, wantSources) {
		t.Errorf("sources = %+v, want %+v", answer.Sources, wantSources)
	}
	if f.guard.entered != 1 || f.guard.restored != 1 {
		t.Errorf("guard entered=%d restored=%d, want 1/1", f.guard.entered, f.guard.restored)
	}
	if got := f.search.Queries; !slices.Equal(got, []string{"weather"}) {
		t.Errorf("queries = %v", got)
	}
}

func TestDispatch_WebSearchFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	boom := errors.New("503 from upstream")
	f.search.Err = boom

	res := f.d.Dispatch(context.Background(), call(tools.WebSearch, map[string]any{"query": "news"}))

	if !errors.Is(res.Err, tools.ErrToolExecution) || !errors.Is(res.Err, boom) {
		t.Fatalf("Err = %v, want ErrToolExecution wrapping cause", res.Err)
	}
	msgs := f.log.Messages()
	if len(msgs) != 2 || msgs[1].Text != f.cat.Text(locale.SearchFailed) {
		t.Fatalf("messages = %+v", msgs)
	}
	if f.guard.restored != 1 {
		t.Errorf("restore ran %d times, want 1", f.guard.restored)
	}
}

func TestDispatch_WebSearchHonoursTimeout(t *testing.T) {
	t.Parallel()
	f := newFixture(t, tools.WithSearchTimeout(20*time.Millisecond))
	f.search.Hook = func(ctx context.Context, _ string) { <-ctx.Done() }
	f.search.Err = context.DeadlineExceeded

	res := f.d.Dispatch(context.Background(), call(tools.WebSearch, map[string]any{"query": "slow"}))

	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want deadline exceeded", res.Err)
	}
	if f.guard.restored != 1 {
		t.Errorf("restore ran %d times, want 1", f.guard.restored)
	}
}

func TestDispatch_WebSearchWithoutProvider(t *testing.T) {
	t.Parallel()
	f := newFixture(t, tools.WithSearch(nil))

	res := f.d.Dispatch(context.Background(), call(tools.WebSearch, map[string]any{"query": "q"}))

	if !errors.Is(res.Err, tools.ErrToolExecution) {
		t.Errorf("Err = %v", res.Err)
	}
	if f.guard.restored != f.guard.entered {
		t.Errorf("guard entered=%d restored=%d", f.guard.entered, f.guard.restored)
	}
}

func TestDispatch_WebSearchEmptyQuery(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.d.Dispatch(context.Background(), call(tools.WebSearch, map[string]any{"query": "  "}))

	if res.Err == nil {
		t.Fatal("expected error")
	}
	if f.guard.entered != 0 || f.search.CallCount() != 0 {
		t.Errorf("empty query reached search: entered=%d calls=%d", f.guard.entered, f.search.CallCount())
	}
	if msg := f.onlyMessage(t); !strings.Contains(msg.Text, "couldn't") {
		t.Errorf("message = %q", msg.Text)
	}
}

// ── Metrics ──────────────────────────────────────────────────────────────────

func TestDispatch_RecordsToolCalls(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.d.Dispatch(ctx, call(tools.SystemControl, map[string]any{"action": "SHUTDOWN"}))
	f.d.Dispatch(ctx, call("nope", nil))

	var rm metricdata.ResourceMetrics
	if err := f.reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "aura.tool.calls" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 2 {
		t.Errorf("aura.tool.calls total = %d, want 2", total)
	}
}
