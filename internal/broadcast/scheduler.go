package broadcast

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultWindowHours is the schedule look-ahead window.
	DefaultWindowHours = 12

	// DefaultBlockMinutes is the default block length.
	DefaultBlockMinutes = 30
)

// ScheduleContext carries the read-only inputs shared by every block of a
// generation run.
type ScheduleContext struct {
	Events      []CalendarEvent
	News        []NewsItem
	Preferences UserPreferences
	Profile     *TasteProfile
}

// Scheduler produces a bounded run of consecutive blocks covering the
// look-ahead window, independent of any one client session being open.
type Scheduler struct {
	resolver  *Resolver
	assembler *Assembler
	log       *slog.Logger
}

// NewScheduler returns a Scheduler using the given resolver and assembler.
func NewScheduler(resolver *Resolver, assembler *Assembler, log *slog.Logger) *Scheduler {
	return &Scheduler{resolver: resolver, assembler: assembler, log: log}
}

// GenerateSchedule builds windowHours*60/blockMinutes contiguous blocks. The
// first block starts at the blockMinutes boundary covering windowStart
// (09:07 with 30-minute blocks yields a first block at 09:00), so a client
// tuning in at windowStart is already inside the schedule. A failure on one
// block yields a static fallback block for that index only; the rest of the
// run is unaffected.
func (s *Scheduler) GenerateSchedule(ctx context.Context, now, windowStart time.Time, windowHours, blockMinutes int, sctx ScheduleContext) []AudioBlock {
	if windowHours <= 0 {
		windowHours = DefaultWindowHours
	}
	if blockMinutes <= 0 {
		blockMinutes = DefaultBlockMinutes
	}

	blockDur := time.Duration(blockMinutes) * time.Minute
	start := windowStart.Truncate(blockDur)
	count := windowHours * 60 / blockMinutes

	blocks := make([]AudioBlock, 0, count)
	for i := 0; i < count; i++ {
		blockStart := start.Add(time.Duration(i) * blockDur)
		blockEnd := blockStart.Add(blockDur)

		res := s.resolver.Resolve(ctx, GenerationInput{
			Events:        sctx.Events,
			News:          sctx.News,
			Preferences:   sctx.Preferences,
			At:            blockStart,
			BlockDuration: blockDur,
			BlockIndex:    i,
			Profile:       sctx.Profile,
		})

		block := s.assembler.AssembleBlock(ctx, now, blockStart, blockEnd, res.Strategy, res.VoiceSegments)
		if err := ValidateBlock(block); err != nil {
			s.log.Error("assembled block failed validation, substituting fallback",
				slog.Int("block_index", i),
				slog.String("error", err.Error()))
			block = fallbackBlock(now, blockStart, blockEnd)
		}
		blocks = append(blocks, block)
	}

	return blocks
}

// fallbackBlock is the minimal static block: one full-duration track from
// the known-good pool, no voice. It is the worst-case content under
// cascading upstream failure.
func fallbackBlock(now, startTime, endTime time.Time) AudioBlock {
	track := fallbackTrack(StyleAmbient)
	return AudioBlock{
		ID:        uuid.NewString(),
		StartTime: startTime,
		EndTime:   endTime,
		Strategy: BlockStrategy{
			MusicStyle:        StyleAmbient,
			MusicVolume:       0.5,
			VoiceFrequency:    VoiceNone,
			InterruptionLevel: InterruptNone,
			Reasoning:         "fallback: static block",
		},
		MusicSegments: []MusicSegment{{
			Timing:    0,
			Duration:  endTime.Sub(startTime).Seconds(),
			TrackURI:  track.URI,
			TrackName: track.Name,
			Artist:    track.Artist,
			Volume:    0.5,
		}},
		GeneratedAt: now,
	}
}
