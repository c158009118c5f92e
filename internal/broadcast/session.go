package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a generated session stays valid.
const DefaultSessionTTL = 12 * time.Hour

// ErrNoSession is returned when an operation needs an existing session and
// none is persisted.
var ErrNoSession = errors.New("no broadcast session")

// Generator builds a fresh block run for a session, normally the Scheduler.
type Generator func(ctx context.Context, now time.Time) []AudioBlock

// SessionStore owns the single shared mutable resource of the engine: the
// persisted broadcast session. Reads vastly outnumber writes; writes happen
// only at creation, regeneration, and voice-audio caching. The mutex
// serializes callers within one process; across processes the backend's
// last write wins, a benign race the design accepts.
type SessionStore struct {
	mu      sync.Mutex
	backend SessionBackend
	ttl     time.Duration
	log     *slog.Logger
}

// NewSessionStore returns a SessionStore over backend. A non-positive ttl
// uses DefaultSessionTTL.
func NewSessionStore(backend SessionBackend, ttl time.Duration, log *slog.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{backend: backend, ttl: ttl, log: log}
}

// Current returns the persisted session without creating one. A backend read
// failure is logged and reported as absent; the broadcast regenerates rather
// than halts.
func (s *SessionStore) Current(ctx context.Context) *BroadcastSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked(ctx)
}

// GetOrCreate returns the persisted session when it is still valid at now;
// otherwise it invokes generate, stamps and persists a fresh session, and
// returns it. created reports whether a new session was built. This is the
// mechanism by which all concurrent viewers converge on one shared timeline.
func (s *SessionStore) GetOrCreate(ctx context.Context, now time.Time, generate Generator) (sess *BroadcastSession, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess := s.currentLocked(ctx); sess.Valid(now) {
		return sess, false, nil
	}

	sess = s.newSessionLocked(ctx, now, generate(ctx, now))
	return sess, true, s.putLocked(ctx, sess)
}

// ForceRegenerate discards any persisted session and builds a fresh one.
// This is the explicit user action; nothing from the old session survives.
func (s *SessionStore) ForceRegenerate(ctx context.Context, now time.Time, generate Generator) (*BroadcastSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx); err != nil {
		s.log.Warn("session delete failed during forced regeneration", slog.String("error", err.Error()))
	}
	sess := s.newSessionLocked(ctx, now, generate(ctx, now))
	return sess, s.putLocked(ctx, sess)
}

// RegenerateForward rebuilds only the future slice of the schedule: blocks
// already started at now are preserved byte-for-byte and marked locked, so a
// listener mid-segment never experiences a discontinuity. The session keeps
// its identity and voice-audio cache; its validity window restarts at now,
// and locked blocks that ended more than one ttl ago are pruned.
func (s *SessionStore) RegenerateForward(ctx context.Context, now time.Time, generate Generator) (*BroadcastSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.currentLocked(ctx)
	fresh := generate(ctx, now)
	if old == nil {
		sess := s.newSessionLocked(ctx, now, fresh)
		return sess, s.putLocked(ctx, sess)
	}

	old.Blocks = dropEndedBefore(MergeRegenerated(old.Blocks, fresh, now), now.Add(-s.ttl))
	old.CreatedAt = now
	old.ExpiresAt = now.Add(s.ttl)
	if len(old.Blocks) > 0 {
		old.StartTime = old.Blocks[0].StartTime
	}
	return old, s.putLocked(ctx, old)
}

// CacheVoiceAudio stores a rendered-audio reference for a voice segment id.
func (s *SessionStore) CacheVoiceAudio(ctx context.Context, voiceID, audioRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.currentLocked(ctx)
	if sess == nil {
		return ErrNoSession
	}
	if sess.VoiceAudio == nil {
		sess.VoiceAudio = make(map[string]string)
	}
	sess.VoiceAudio[voiceID] = audioRef
	return s.putLocked(ctx, sess)
}

// VoiceAudio returns the cached audio reference for a voice segment id.
func (s *SessionStore) VoiceAudio(ctx context.Context, voiceID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.currentLocked(ctx)
	if sess == nil {
		return "", false
	}
	ref, ok := sess.VoiceAudio[voiceID]
	return ref, ok
}

// Update applies mutate to the persisted session and writes it back when
// mutate reports a change. Returns ErrNoSession when nothing is persisted.
func (s *SessionStore) Update(ctx context.Context, mutate func(*BroadcastSession) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.currentLocked(ctx)
	if sess == nil {
		return false, ErrNoSession
	}
	if !mutate(sess) {
		return false, nil
	}
	return true, s.putLocked(ctx, sess)
}

// Clear removes the persisted session.
func (s *SessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Delete(ctx)
}

// dropEndedBefore prunes blocks that ended before horizon. Each forward
// regeneration extends the session, so without pruning its locked past
// would grow without bound.
func dropEndedBefore(blocks []AudioBlock, horizon time.Time) []AudioBlock {
	kept := make([]AudioBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.EndTime.After(horizon) {
			kept = append(kept, b)
		}
	}
	return kept
}

// currentLocked reads the backend, treating read failures as absence.
// Caller must hold s.mu.
func (s *SessionStore) currentLocked(ctx context.Context) *BroadcastSession {
	sess, err := s.backend.Get(ctx)
	if err != nil {
		s.log.Warn("session read failed, treating as absent", slog.String("error", err.Error()))
		return nil
	}
	return sess
}

// newSessionLocked stamps a fresh session around the generated blocks.
func (s *SessionStore) newSessionLocked(_ context.Context, now time.Time, blocks []AudioBlock) *BroadcastSession {
	sess := &BroadcastSession{
		ID:         uuid.NewString(),
		Blocks:     blocks,
		VoiceAudio: make(map[string]string),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if len(blocks) > 0 {
		sess.StartTime = blocks[0].StartTime
	}
	return sess
}

// putLocked persists the session. Write failures are logged and returned;
// callers keep serving the in-memory session so the broadcast stays up even
// when persistence degrades.
func (s *SessionStore) putLocked(ctx context.Context, sess *BroadcastSession) error {
	if err := s.backend.Put(ctx, sess); err != nil {
		s.log.Warn("session write failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}
