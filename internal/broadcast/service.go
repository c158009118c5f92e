package broadcast

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"radio-engine/internal/platform/metrics"
)

const (
	calendarTimeout = 10 * time.Second
	synthTimeout    = 30 * time.Second
)

// ServiceConfig wires a Service. Calendar, Tracks, and Synth may be nil;
// the engine degrades per component rather than failing. Metrics may be nil
// to disable recording (e.g. in tests).
type ServiceConfig struct {
	Store        *SessionStore
	Scheduler    *Scheduler
	Calendar     CalendarSource
	Tracks       TrackSource
	Synth        SpeechSynthesizer
	Preferences  UserPreferences
	News         []NewsItem
	Profile      *TasteProfile
	WindowHours  int
	BlockMinutes int
	Metrics      *metrics.Metrics
	Log          *slog.Logger
}

// Service ties the session store, scheduler, locator, and regeneration
// policy together behind the operations the playback surface consumes.
type Service struct {
	store        *SessionStore
	scheduler    *Scheduler
	calendar     CalendarSource
	tracks       TrackSource
	synth        SpeechSynthesizer
	prefs        UserPreferences
	news         []NewsItem
	profile      *TasteProfile
	windowHours  int
	blockMinutes int
	metrics      *metrics.Metrics
	log          *slog.Logger
}

// NewService returns a Service for the given configuration.
func NewService(cfg ServiceConfig) *Service {
	if cfg.WindowHours <= 0 {
		cfg.WindowHours = DefaultWindowHours
	}
	if cfg.BlockMinutes <= 0 {
		cfg.BlockMinutes = DefaultBlockMinutes
	}
	return &Service{
		store:        cfg.Store,
		scheduler:    cfg.Scheduler,
		calendar:     cfg.Calendar,
		tracks:       cfg.Tracks,
		synth:        cfg.Synth,
		prefs:        cfg.Preferences,
		news:         cfg.News,
		profile:      cfg.Profile,
		windowHours:  cfg.WindowHours,
		blockMinutes: cfg.BlockMinutes,
		metrics:      cfg.Metrics,
		log:          cfg.Log,
	}
}

// LiveStatus is the outward answer to "what should be playing right now".
type LiveStatus struct {
	SessionID  string         `json:"sessionId"`
	BlockID    string         `json:"blockId,omitempty"`
	BlockStart time.Time      `json:"blockStart"`
	BlockEnd   time.Time      `json:"blockEnd"`
	Strategy   *BlockStrategy `json:"strategy,omitempty"`
	Position   LivePosition   `json:"position"`
	AudioRef   string         `json:"audioRef,omitempty"`
}

// Live returns the live position at the given instant, creating or
// regenerating the session as the policy demands. Persistence failures are
// logged; the broadcast keeps serving from the in-memory session.
func (s *Service) Live(ctx context.Context, at time.Time) (LiveStatus, error) {
	events := s.upcomingEvents(ctx)
	gen := s.generatorWith(events)

	sess, created, err := s.store.GetOrCreate(ctx, at, gen)
	if err != nil {
		s.log.Warn("session persistence degraded", slog.String("error", err.Error()))
	}
	if created {
		s.recordEventCount(ctx, sess, countOverlapping(events, sess))
		if s.metrics != nil {
			s.metrics.IncSessionsCreated()
		}
	} else if ShouldRegenerate(sess, countOverlapping(events, sess), at) {
		regenerated, err := s.store.RegenerateForward(ctx, at, gen)
		if err != nil {
			s.log.Warn("session persistence degraded during regeneration", slog.String("error", err.Error()))
		}
		sess = regenerated
		s.recordEventCount(ctx, sess, countOverlapping(events, sess))
		if s.metrics != nil {
			s.metrics.IncRegenerations()
		}
		s.log.Info("schedule regenerated forward",
			slog.String("session_id", sess.ID),
			slog.Int("blocks", len(sess.Blocks)))
	}

	status := LiveStatus{SessionID: sess.ID}
	block := LocateInSchedule(sess.Blocks, at)
	if block == nil {
		return status, nil
	}

	pos, err := Locate(*block, at)
	if err != nil {
		return status, err
	}
	status.BlockID = block.ID
	status.BlockStart = block.StartTime
	status.BlockEnd = block.EndTime
	status.Strategy = &block.Strategy
	status.Position = pos

	if pos.Live && pos.Type == SegmentVoice {
		status.AudioRef = s.ensureVoiceAudio(ctx, pos.Segment.Voice)
	}
	return status, nil
}

// UpNext returns up to limit segments that have not started yet at the given
// instant, continuing into the following block when the current one runs out.
func (s *Service) UpNext(ctx context.Context, at time.Time, limit int) ([]Segment, error) {
	sess, _, err := s.store.GetOrCreate(ctx, at, s.generator)
	if err != nil {
		s.log.Warn("session persistence degraded", slog.String("error", err.Error()))
	}

	block := LocateInSchedule(sess.Blocks, at)
	if block == nil {
		return nil, nil
	}

	out := Upcoming(*block, at.Sub(block.StartTime).Seconds())
	for i := range sess.Blocks {
		if sess.Blocks[i].StartTime.Equal(block.EndTime) {
			out = append(out, sess.Blocks[i].Merged()...)
			break
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Regenerate discards the session and builds a fresh one; the explicit user
// action, not the policy path.
func (s *Service) Regenerate(ctx context.Context, now time.Time) (*BroadcastSession, error) {
	sess, err := s.store.ForceRegenerate(ctx, now, s.generator)
	if s.metrics != nil {
		s.metrics.IncRegenerations()
	}
	return sess, err
}

// Shuffle swaps the track of the next not-yet-started music segment.
func (s *Service) Shuffle(ctx context.Context, at time.Time) (bool, error) {
	return s.store.Update(ctx, func(sess *BroadcastSession) bool {
		return ShuffleUpcoming(ctx, sess, at, s.tracks)
	})
}

// Session returns the current persisted session, nil when none exists.
func (s *Service) Session(ctx context.Context) *BroadcastSession {
	return s.store.Current(ctx)
}

// SessionBlockCount reports the current session's block count, for gauges.
func (s *Service) SessionBlockCount(ctx context.Context) int {
	if sess := s.store.Current(ctx); sess != nil {
		return len(sess.Blocks)
	}
	return 0
}

// generator is the Generator handed to the session store: fetch calendar
// context, then run the scheduler over the configured window.
func (s *Service) generator(ctx context.Context, now time.Time) []AudioBlock {
	return s.generatorWith(s.upcomingEvents(ctx))(ctx, now)
}

// generatorWith builds a Generator over an already-fetched event list, so
// one Live poll fetches the calendar once for both policy and generation.
func (s *Service) generatorWith(events []CalendarEvent) Generator {
	return func(ctx context.Context, now time.Time) []AudioBlock {
		return s.scheduler.GenerateSchedule(ctx, now, now, s.windowHours, s.blockMinutes, ScheduleContext{
			Events:      events,
			News:        s.news,
			Preferences: s.prefs,
			Profile:     s.profile,
		})
	}
}

// recordEventCount pins the live event count the schedule was built against
// on the session; the calendar heuristic stays quiet until it changes.
// A persistence failure is logged; the in-memory session still carries it.
func (s *Service) recordEventCount(ctx context.Context, sess *BroadcastSession, n int) {
	sess.EventCount = n
	if _, err := s.store.Update(ctx, func(persisted *BroadcastSession) bool {
		if persisted.EventCount == n {
			return false
		}
		persisted.EventCount = n
		return true
	}); err != nil {
		s.log.Warn("event count record failed", slog.String("error", err.Error()))
	}
}

// upcomingEvents fetches calendar events under a timeout. No calendar
// connected, or a fetch failure, yields an empty list.
func (s *Service) upcomingEvents(ctx context.Context) []CalendarEvent {
	if s.calendar == nil {
		return nil
	}
	calCtx, cancel := context.WithTimeout(ctx, calendarTimeout)
	defer cancel()
	events, err := s.calendar.UpcomingEvents(calCtx, s.windowHours)
	if err != nil {
		s.log.Warn("calendar fetch failed", slog.String("error", err.Error()))
		return nil
	}
	return events
}

// countOverlapping counts events overlapping the session's block window.
func countOverlapping(events []CalendarEvent, sess *BroadcastSession) int {
	if sess == nil || len(sess.Blocks) == 0 {
		return 0
	}
	windowStart := sess.Blocks[0].StartTime
	windowEnd := sess.Blocks[len(sess.Blocks)-1].EndTime
	n := 0
	for _, ev := range events {
		if ev.Start.Before(windowEnd) && ev.End.After(windowStart) {
			n++
		}
	}
	return n
}

// ensureVoiceAudio returns the cached audio reference for the live voice
// segment, synthesizing and caching it on first need. Synthesis failure
// logs and returns empty; the client plays on without audio.
func (s *Service) ensureVoiceAudio(ctx context.Context, v *VoiceSegment) string {
	if ref, ok := s.store.VoiceAudio(ctx, v.ID); ok {
		return ref
	}
	if s.synth == nil {
		return ""
	}

	synthCtx, cancel := context.WithTimeout(ctx, synthTimeout)
	defer cancel()
	audio, err := s.synth.Synthesize(synthCtx, v.Content, s.prefs.VoicePersona)
	if err != nil {
		s.log.Warn("speech synthesis failed",
			slog.String("voice_id", v.ID),
			slog.String("error", err.Error()))
		return ""
	}

	ref := base64.StdEncoding.EncodeToString(audio)
	if err := s.store.CacheVoiceAudio(ctx, v.ID, ref); err != nil {
		s.log.Warn("voice audio cache write failed",
			slog.String("voice_id", v.ID),
			slog.String("error", err.Error()))
	}
	return ref
}
