package broadcast

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	// minMusicSegment is the shortest audible music placement; leftover gaps
	// below this stay silent rather than producing a blip of a track.
	minMusicSegment = 10.0

	// truncateFadeOut is applied when a track is cut at a boundary.
	truncateFadeOut = 2.0
)

// Assembler lays voice and music segments onto a block's time axis. Voice
// offsets are reserved first per the strategy's rhythm; music fills the gaps
// and is advanced or truncated around voice, never the reverse. The output
// is structurally valid: segments cannot overlap by construction.
type Assembler struct {
	tracks      TrackSource
	profile     *TasteProfile
	exploration ExplorationLevel
	log         *slog.Logger
}

// NewAssembler returns an Assembler recommending from tracks with the given
// listener profile and exploration level. tracks may be nil; the fixed
// known-good pools are used instead.
func NewAssembler(tracks TrackSource, profile *TasteProfile, exploration ExplorationLevel, log *slog.Logger) *Assembler {
	if tracks == nil {
		tracks = StaticTrackPool{}
	}
	if exploration == "" {
		exploration = ExploreBalanced
	}
	return &Assembler{tracks: tracks, profile: profile, exploration: exploration, log: log}
}

// voiceBreaks maps a voice frequency to the number of DJ breaks in a block.
func voiceBreaks(f VoiceFrequency) int {
	switch f {
	case VoiceMinimal:
		return 1
	case VoiceModerate:
		return 2
	case VoiceActive:
		return 3
	default:
		return 0
	}
}

// AssembleBlock builds one block spanning [startTime, endTime). now stamps
// GeneratedAt so assembly stays deterministic under test.
func (a *Assembler) AssembleBlock(ctx context.Context, now, startTime, endTime time.Time, strategy BlockStrategy, voice []VoiceSegment) AudioBlock {
	block := AudioBlock{
		ID:          uuid.NewString(),
		StartTime:   startTime,
		EndTime:     endTime,
		Strategy:    strategy,
		GeneratedAt: now,
	}
	blockDur := block.Duration()

	block.VoiceSegments = a.placeVoice(voice, strategy, blockDur)

	if strategy.MusicStyle != StyleSilent {
		block.MusicSegments = a.fillMusic(ctx, block.VoiceSegments, strategy, blockDur)
	}

	return block
}

// placeVoice reserves evenly spaced offsets for up to voiceBreaks(frequency)
// segments, the first at block start. Durations are clamped so a segment
// never runs into the next reservation or past the block boundary.
func (a *Assembler) placeVoice(voice []VoiceSegment, strategy BlockStrategy, blockDur float64) []VoiceSegment {
	n := voiceBreaks(strategy.VoiceFrequency)
	if n > len(voice) {
		n = len(voice)
	}
	if n == 0 {
		return nil
	}

	placed := make([]VoiceSegment, 0, n)
	interval := blockDur / float64(n)
	for i := 0; i < n; i++ {
		seg := voice[i]
		seg.Timing = interval * float64(i)

		limit := blockDur - seg.Timing
		if i < n-1 {
			limit = interval
		}
		if seg.Duration > limit {
			seg.Duration = limit
		}
		if seg.Duration <= 0 {
			continue
		}
		placed = append(placed, seg)
	}
	return placed
}

// fillMusic fills every gap around the placed voice segments with tracks at
// their natural duration, truncating the final track of each gap to fit.
func (a *Assembler) fillMusic(ctx context.Context, voice []VoiceSegment, strategy BlockStrategy, blockDur float64) []MusicSegment {
	next := a.trackFeed(ctx, strategy.MusicStyle, blockDur)

	sorted := make([]VoiceSegment, len(voice))
	copy(sorted, voice)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timing < sorted[j].Timing })

	var out []MusicSegment
	cursor := 0.0
	for _, v := range sorted {
		out = append(out, a.fillGap(next, cursor, v.Timing, strategy.MusicVolume)...)
		cursor = v.Timing + v.Duration
	}
	out = append(out, a.fillGap(next, cursor, blockDur, strategy.MusicVolume)...)
	return out
}

// fillGap places tracks across [from, to), truncating the last to fit.
func (a *Assembler) fillGap(next func() Track, from, to, volume float64) []MusicSegment {
	var out []MusicSegment
	for to-from >= minMusicSegment {
		track := next()
		seg := MusicSegment{
			Timing:    from,
			Duration:  track.DurationSeconds,
			TrackURI:  track.URI,
			TrackName: track.Name,
			Artist:    track.Artist,
			Volume:    volume,
		}
		if seg.Duration > to-from {
			seg.Duration = to - from
			seg.FadeOut = truncateFadeOut
		}
		out = append(out, seg)
		from += seg.Duration
	}
	return out
}

// trackFeed returns a cycling supplier of recommended tracks, falling back
// to the per-mood known-good pool when the track source fails, is empty, or
// returns unplayable durations. A malformed response degrades exactly like
// an unavailable source.
func (a *Assembler) trackFeed(ctx context.Context, mood MusicStyle, blockDur float64) func() Track {
	count := int(blockDur/120) + 2
	tracks, err := a.tracks.Recommend(ctx, a.profile, mood, a.exploration, count)
	if err != nil || !playable(tracks) {
		if err != nil {
			a.log.Warn("track recommendation failed, using known-good pool",
				slog.String("mood", string(mood)),
				slog.String("error", err.Error()))
		} else if len(tracks) > 0 {
			a.log.Warn("track recommendation unplayable, using known-good pool",
				slog.String("mood", string(mood)))
		}
		tracks = fallbackPools[mood]
		if len(tracks) == 0 {
			tracks = []Track{fallbackTrack(mood)}
		}
	}

	i := 0
	return func() Track {
		t := tracks[i%len(tracks)]
		i++
		return t
	}
}

// playable reports whether every recommended track carries an audible
// duration. Non-positive or sub-minimum durations would stall or litter the
// fill loop, so one bad entry disqualifies the batch.
func playable(tracks []Track) bool {
	if len(tracks) == 0 {
		return false
	}
	for _, t := range tracks {
		if t.DurationSeconds < minMusicSegment {
			return false
		}
	}
	return true
}
