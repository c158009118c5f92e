package broadcast

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultGenerateTimeout bounds a single content generator call.
	DefaultGenerateTimeout = 20 * time.Second

	// Narration speed used to estimate spoken duration when the generator
	// does not provide one.
	wordsPerSecond   = 2.5
	minVoiceDuration = 5.0
)

// fallbackPalette is the mood rotation used when no calendar signal applies.
var fallbackPalette = []MusicStyle{StyleFocus, StyleUpbeat, StyleAmbient, StyleEnergetic, StyleCalm}

// StrategyResult is what Resolve always produces: a valid strategy plus
// normalized voice segments ready for assembly.
type StrategyResult struct {
	Strategy      BlockStrategy
	VoiceSegments []VoiceSegment
}

// Resolver decides each block's strategy and voice content. It delegates to
// a ContentGenerator when one is configured and falls back to deterministic
// time-of-day rules when the generator errors, stalls, or returns malformed
// data. Resolve never fails; the broadcast must not halt on upstream trouble.
type Resolver struct {
	gen     ContentGenerator
	timeout time.Duration
	log     *slog.Logger
}

// NewResolver returns a Resolver. gen may be nil for a fully rule-based
// broadcast. A non-positive timeout uses DefaultGenerateTimeout.
func NewResolver(gen ContentGenerator, timeout time.Duration, log *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}
	return &Resolver{gen: gen, timeout: timeout, log: log}
}

// Resolve returns the strategy and voice segments for one block. Upstream
// failures are logged and recovered locally, never surfaced.
func (r *Resolver) Resolve(ctx context.Context, in GenerationInput) StrategyResult {
	if r.gen == nil {
		return StrategyResult{Strategy: r.ruleStrategy(in)}
	}

	genCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.gen.Generate(genCtx, in)
	if err != nil {
		r.log.Warn("content generation failed, using rule strategy",
			slog.Int("block_index", in.BlockIndex),
			slog.String("error", err.Error()))
		return StrategyResult{Strategy: r.ruleStrategy(in)}
	}

	if !wellFormed(res.Strategy) {
		r.log.Warn("content generation returned malformed strategy, using rule strategy",
			slog.Int("block_index", in.BlockIndex),
			slog.String("music_style", string(res.Strategy.MusicStyle)),
			slog.String("voice_frequency", string(res.Strategy.VoiceFrequency)))
		return StrategyResult{Strategy: r.ruleStrategy(in)}
	}

	return StrategyResult{
		Strategy:      res.Strategy,
		VoiceSegments: normalizeVoice(res.VoiceSegments),
	}
}

// ruleStrategy is the deterministic fallback. Attendee-bearing events
// overlapping the block mean someone is in a meeting: ambient, quiet, no
// interruptions. Otherwise the mood rotates through a fixed palette keyed by
// block index and hour of day.
func (r *Resolver) ruleStrategy(in GenerationInput) BlockStrategy {
	blockEnd := in.At.Add(in.BlockDuration)
	for _, ev := range in.Events {
		if len(ev.Attendees) > 0 && ev.Start.Before(blockEnd) && ev.End.After(in.At) {
			return BlockStrategy{
				MusicStyle:        StyleAmbient,
				MusicVolume:       0.3,
				VoiceFrequency:    VoiceNone,
				InterruptionLevel: InterruptNone,
				Reasoning:         "rule: meeting in progress",
			}
		}
	}

	style := fallbackPalette[(in.BlockIndex+in.At.Hour())%len(fallbackPalette)]
	return BlockStrategy{
		MusicStyle:        style,
		MusicVolume:       0.7,
		VoiceFrequency:    VoiceMinimal,
		InterruptionLevel: InterruptLow,
		Reasoning:         "rule: palette rotation",
	}
}

// wellFormed checks a generator-produced strategy against the enum and range
// contract. Malformed strategies are discarded in favor of the rule fallback.
func wellFormed(s BlockStrategy) bool {
	return s.MusicStyle.Valid() &&
		s.VoiceFrequency.Valid() &&
		s.MusicVolume >= 0 && s.MusicVolume <= 1
}

// normalizeVoice assigns every segment a fresh unique id, clamps timing to be
// block-relative and non-negative, fills missing durations from the text at a
// conservative narration speed, and drops segments with no content.
func normalizeVoice(segments []VoiceSegment) []VoiceSegment {
	out := make([]VoiceSegment, 0, len(segments))
	for _, seg := range segments {
		if strings.TrimSpace(seg.Content) == "" {
			continue
		}
		seg.ID = uuid.NewString()
		if seg.Timing < 0 {
			seg.Timing = 0
		}
		if seg.Duration <= 0 {
			seg.Duration = estimateSpokenDuration(seg.Content)
		}
		if seg.Priority == "" {
			seg.Priority = PriorityMedium
		}
		out = append(out, seg)
	}
	return out
}

// estimateSpokenDuration estimates seconds of speech from word count.
func estimateSpokenDuration(text string) float64 {
	d := float64(len(strings.Fields(text))) / wordsPerSecond
	if d < minVoiceDuration {
		return minVoiceDuration
	}
	return d
}
