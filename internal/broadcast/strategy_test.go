package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeGenerator struct {
	res   GenerationResult
	err   error
	stall bool
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, _ GenerationInput) (GenerationResult, error) {
	f.calls++
	if f.stall {
		<-ctx.Done()
		return GenerationResult{}, ctx.Err()
	}
	return f.res, f.err
}

func goodStrategy() BlockStrategy {
	return BlockStrategy{
		MusicStyle:        StyleUpbeat,
		MusicVolume:       0.8,
		VoiceFrequency:    VoiceModerate,
		InterruptionLevel: InterruptMedium,
		Reasoning:         "generated",
	}
}

func TestResolver_nil_generator_uses_rules(t *testing.T) {
	r := NewResolver(nil, 0, testLogger())
	res := r.Resolve(context.Background(), GenerationInput{At: testStart, BlockDuration: 30 * time.Minute})

	if !res.Strategy.MusicStyle.Valid() {
		t.Errorf("rule strategy must have a valid style, got %q", res.Strategy.MusicStyle)
	}
	if len(res.VoiceSegments) != 0 {
		t.Errorf("rule strategy produces no voice segments, got %d", len(res.VoiceSegments))
	}
}

func TestResolver_rule_strategy_meeting(t *testing.T) {
	r := NewResolver(nil, 0, testLogger())
	res := r.Resolve(context.Background(), GenerationInput{
		At:            testStart,
		BlockDuration: 30 * time.Minute,
		Events: []CalendarEvent{{
			ID:        "e1",
			Summary:   "standup",
			Start:     testStart.Add(10 * time.Minute),
			End:       testStart.Add(25 * time.Minute),
			Attendees: []string{"a@example.com"},
		}},
	})

	if res.Strategy.MusicStyle != StyleAmbient {
		t.Errorf("meeting should force ambient, got %s", res.Strategy.MusicStyle)
	}
	if res.Strategy.VoiceFrequency != VoiceNone {
		t.Errorf("meeting should silence the DJ, got %s", res.Strategy.VoiceFrequency)
	}
	if res.Strategy.InterruptionLevel != InterruptNone {
		t.Errorf("meeting should block interruptions, got %s", res.Strategy.InterruptionLevel)
	}
}

func TestResolver_rule_strategy_ignores_events_without_attendees(t *testing.T) {
	r := NewResolver(nil, 0, testLogger())
	res := r.Resolve(context.Background(), GenerationInput{
		At:            testStart,
		BlockDuration: 30 * time.Minute,
		Events: []CalendarEvent{{
			ID:      "e1",
			Summary: "blocked focus time",
			Start:   testStart,
			End:     testStart.Add(30 * time.Minute),
		}},
	})

	if res.Strategy.VoiceFrequency == VoiceNone {
		t.Error("attendee-less events should not trigger meeting rules")
	}
}

func TestResolver_rule_strategy_deterministic_rotation(t *testing.T) {
	r := NewResolver(nil, 0, testLogger())
	in := GenerationInput{At: testStart, BlockDuration: 30 * time.Minute, BlockIndex: 3}

	first := r.Resolve(context.Background(), in)
	second := r.Resolve(context.Background(), in)
	if first.Strategy.MusicStyle != second.Strategy.MusicStyle {
		t.Errorf("rule strategy must be deterministic: %s vs %s",
			first.Strategy.MusicStyle, second.Strategy.MusicStyle)
	}

	other := r.Resolve(context.Background(), GenerationInput{At: testStart, BlockDuration: 30 * time.Minute, BlockIndex: 4})
	if other.Strategy.MusicStyle == first.Strategy.MusicStyle {
		t.Errorf("adjacent block indexes should rotate the palette, both got %s", first.Strategy.MusicStyle)
	}
}

func TestResolver_generator_success(t *testing.T) {
	gen := &fakeGenerator{res: GenerationResult{
		Strategy: goodStrategy(),
		VoiceSegments: []VoiceSegment{
			{Timing: -5, Content: "welcome back to the morning show"},
			{Timing: 600, Content: "quick calendar check", Duration: 12},
			{Timing: 0, Content: "   "},
		},
	}}
	r := NewResolver(gen, time.Second, testLogger())
	res := r.Resolve(context.Background(), GenerationInput{At: testStart, BlockDuration: 30 * time.Minute})

	if res.Strategy.Reasoning != "generated" {
		t.Fatalf("expected generated strategy, got %+v", res.Strategy)
	}
	if len(res.VoiceSegments) != 2 {
		t.Fatalf("blank-content segment should be dropped, got %d segments", len(res.VoiceSegments))
	}

	first := res.VoiceSegments[0]
	if first.ID == "" {
		t.Error("voice segment must get a fresh id")
	}
	if first.Timing != 0 {
		t.Errorf("negative timing must normalize to 0, got %v", first.Timing)
	}
	if first.Duration < minVoiceDuration {
		t.Errorf("missing duration must be estimated, got %v", first.Duration)
	}
	if first.Priority != PriorityMedium {
		t.Errorf("missing priority defaults to medium, got %s", first.Priority)
	}

	second := res.VoiceSegments[1]
	if second.Duration != 12 {
		t.Errorf("provided duration must be kept, got %v", second.Duration)
	}
	if second.ID == first.ID {
		t.Error("segment ids must be unique")
	}
}

func TestResolver_generator_error_falls_back(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	r := NewResolver(gen, time.Second, testLogger())
	res := r.Resolve(context.Background(), GenerationInput{At: testStart, BlockDuration: 30 * time.Minute})

	if res.Strategy.Reasoning == "generated" {
		t.Error("generator error must fall back to rules")
	}
	if !res.Strategy.MusicStyle.Valid() {
		t.Errorf("fallback strategy must be valid, got %q", res.Strategy.MusicStyle)
	}
}

func TestResolver_generator_timeout_falls_back(t *testing.T) {
	gen := &fakeGenerator{stall: true}
	r := NewResolver(gen, 10*time.Millisecond, testLogger())

	done := make(chan StrategyResult, 1)
	go func() {
		done <- r.Resolve(context.Background(), GenerationInput{At: testStart, BlockDuration: 30 * time.Minute})
	}()

	select {
	case res := <-done:
		if !res.Strategy.MusicStyle.Valid() {
			t.Errorf("timeout fallback must produce a valid strategy, got %q", res.Strategy.MusicStyle)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Resolve blocked past its timeout")
	}
}

func TestResolver_malformed_strategy_falls_back(t *testing.T) {
	cases := []struct {
		name     string
		strategy BlockStrategy
	}{
		{"unknown_style", BlockStrategy{MusicStyle: "dubstep-hyperpop", MusicVolume: 0.5, VoiceFrequency: VoiceMinimal}},
		{"unknown_frequency", BlockStrategy{MusicStyle: StyleCalm, MusicVolume: 0.5, VoiceFrequency: "constant"}},
		{"volume_out_of_range", BlockStrategy{MusicStyle: StyleCalm, MusicVolume: 1.7, VoiceFrequency: VoiceMinimal}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &fakeGenerator{res: GenerationResult{Strategy: tc.strategy}}
			r := NewResolver(gen, time.Second, testLogger())
			res := r.Resolve(context.Background(), GenerationInput{At: testStart, BlockDuration: 30 * time.Minute})

			if !wellFormed(res.Strategy) {
				t.Errorf("fallback must be well formed, got %+v", res.Strategy)
			}
			if res.Strategy == tc.strategy {
				t.Error("malformed strategy must be discarded")
			}
		})
	}
}

func TestEstimateSpokenDuration(t *testing.T) {
	if d := estimateSpokenDuration("one two three"); d != minVoiceDuration {
		t.Errorf("short text floors at %v, got %v", minVoiceDuration, d)
	}

	long := ""
	for i := 0; i < 50; i++ {
		long += "word "
	}
	if d := estimateSpokenDuration(long); d != 20 {
		t.Errorf("50 words at 2.5 wps should be 20s, got %v", d)
	}
}
