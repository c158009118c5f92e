package broadcast

import (
	"context"
	"time"
)

// GenerationInput is the read-only context handed to the content generator.
type GenerationInput struct {
	Events        []CalendarEvent
	News          []NewsItem
	Preferences   UserPreferences
	At            time.Time
	BlockDuration time.Duration
	BlockIndex    int
	Profile       *TasteProfile
}

// GenerationResult is what the content generator must return: a strategy for
// the block plus voice copy with block-relative timings.
type GenerationResult struct {
	Strategy         BlockStrategy
	VoiceSegments    []VoiceSegment
	MusicDescription string
}

// ContentGenerator turns broadcast context into a strategy and DJ voice text.
// Implementations call out to a language model and may fail or time out; the
// resolver recovers with a rule-based strategy, never the caller.
type ContentGenerator interface {
	Generate(ctx context.Context, in GenerationInput) (GenerationResult, error)
}

// SpeechSynthesizer renders voice segment text to audio. A failure must not
// block playback; callers proceed without audio and log the failure.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voicePersona string) ([]byte, error)
}

// TrackSource recommends tracks for a mood. On failure callers substitute
// the fixed known-good pool.
type TrackSource interface {
	Recommend(ctx context.Context, profile *TasteProfile, mood MusicStyle, exploration ExplorationLevel, count int) ([]Track, error)
}

// CalendarSource lists upcoming events. No calendar connected is a valid,
// common state; callers must work with an empty event list.
type CalendarSource interface {
	UpcomingEvents(ctx context.Context, hoursAhead int) ([]CalendarEvent, error)
}

// fallbackPools holds a small pool of known-good tracks per mood, used when
// the track source is unavailable. The silent style has no pool on purpose.
var fallbackPools = map[MusicStyle][]Track{
	StyleAmbient: {
		{URI: "radio:pool:ambient:drift", DurationSeconds: 292, Name: "Drift", Artist: "Station Library"},
		{URI: "radio:pool:ambient:lowtide", DurationSeconds: 247, Name: "Low Tide", Artist: "Station Library"},
		{URI: "radio:pool:ambient:overcast", DurationSeconds: 311, Name: "Overcast", Artist: "Station Library"},
	},
	StyleFocus: {
		{URI: "radio:pool:focus:gridlines", DurationSeconds: 263, Name: "Gridlines", Artist: "Station Library"},
		{URI: "radio:pool:focus:deepwork", DurationSeconds: 305, Name: "Deep Work", Artist: "Station Library"},
		{URI: "radio:pool:focus:flowstate", DurationSeconds: 278, Name: "Flow State", Artist: "Station Library"},
	},
	StyleEnergetic: {
		{URI: "radio:pool:energetic:ignition", DurationSeconds: 214, Name: "Ignition", Artist: "Station Library"},
		{URI: "radio:pool:energetic:overdrive", DurationSeconds: 236, Name: "Overdrive", Artist: "Station Library"},
	},
	StyleUpbeat: {
		{URI: "radio:pool:upbeat:sunnyside", DurationSeconds: 198, Name: "Sunny Side", Artist: "Station Library"},
		{URI: "radio:pool:upbeat:goodcompany", DurationSeconds: 221, Name: "Good Company", Artist: "Station Library"},
	},
	StyleCalm: {
		{URI: "radio:pool:calm:stillwater", DurationSeconds: 284, Name: "Still Water", Artist: "Station Library"},
		{URI: "radio:pool:calm:firstlight", DurationSeconds: 256, Name: "First Light", Artist: "Station Library"},
	},
}

// StaticTrackPool is a TrackSource backed by the fixed per-mood pools. It is
// both the production fallback and the default wiring when no catalog
// provider is configured.
type StaticTrackPool struct{}

// Recommend implements TrackSource by cycling through the mood's pool.
// The silent mood (and unknown moods) yield no tracks.
func (StaticTrackPool) Recommend(_ context.Context, _ *TasteProfile, mood MusicStyle, _ ExplorationLevel, count int) ([]Track, error) {
	pool := fallbackPools[mood]
	if len(pool) == 0 || count <= 0 {
		return nil, nil
	}
	out := make([]Track, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, pool[i%len(pool)])
	}
	return out, nil
}

// fallbackTrack returns the first pool track for the mood, defaulting to the
// ambient pool so fallback blocks always have something to play.
func fallbackTrack(mood MusicStyle) Track {
	if pool := fallbackPools[mood]; len(pool) > 0 {
		return pool[0]
	}
	return fallbackPools[StyleAmbient][0]
}
