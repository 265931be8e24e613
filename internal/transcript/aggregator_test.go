package transcript_test

import (
	"testing"

	"github.com/MrWong99/aura/internal/transcript"
)

func TestAggregator_Flush(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    []string
		output   []string
		toolCall bool
		want     transcript.Turn
	}{
		{
			name:   "both channels",
			input:  []string{"What's ", "the ", "time?"},
			output: []string{" It is ", "noon. "},
			want:   transcript.Turn{User: "What's the time?", Assistant: "It is noon."},
		},
		{
			name:   "whitespace only is empty",
			input:  []string{"  ", "\n"},
			output: []string{"\t"},
			want:   transcript.Turn{},
		},
		{
			name:   "nothing accumulated",
			want:   transcript.Turn{},
			output: nil,
		},
		{
			name:     "tool call suppresses assistant",
			input:    []string{"remind me"},
			output:   []string{"Sure, setting it now."},
			toolCall: true,
			want:     transcript.Turn{User: "remind me", AssistantSuppressed: true},
		},
		{
			name:     "tool call with silent assistant",
			input:    []string{"search cats"},
			toolCall: true,
			want:     transcript.Turn{User: "search cats"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := transcript.New()
			for _, f := range tt.input {
				a.AppendInput(f)
			}
			for _, f := range tt.output {
				a.AppendOutput(f)
			}
			if tt.toolCall {
				a.MarkToolCall()
			}
			if got := a.Flush(); got != tt.want {
				t.Errorf("Flush = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAggregator_FlushClearsState(t *testing.T) {
	t.Parallel()

	a := transcript.New()
	a.AppendInput("first")
	a.AppendOutput("reply")
	a.MarkToolCall()
	a.Flush()

	a.AppendOutput("second reply")
	got := a.Flush()
	if got.User != "" || got.Assistant != "second reply" || got.AssistantSuppressed {
		t.Errorf("second Flush = %+v; tool-call mark must not carry over", got)
	}
}

func TestAggregator_LiveInputAndReset(t *testing.T) {
	t.Parallel()

	a := transcript.New()
	a.AppendInput("hel")
	a.AppendInput("lo")
	if got := a.LiveInput(); got != "hello" {
		t.Errorf("LiveInput = %q, want hello", got)
	}
	a.Reset()
	if got := a.LiveInput(); got != "" {
		t.Errorf("LiveInput after Reset = %q", got)
	}
	if got := a.Flush(); got != (transcript.Turn{}) {
		t.Errorf("Flush after Reset = %+v", got)
	}
}
