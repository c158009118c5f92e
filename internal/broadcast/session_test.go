package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func contiguousBlocks(start time.Time, n int) []AudioBlock {
	blocks := make([]AudioBlock, 0, n)
	for i := 0; i < n; i++ {
		bs := start.Add(time.Duration(i) * 30 * time.Minute)
		blocks = append(blocks, AudioBlock{
			ID:        "block-" + string(rune('a'+i)),
			StartTime: bs,
			EndTime:   bs.Add(30 * time.Minute),
			Strategy:  BlockStrategy{MusicStyle: StyleFocus, MusicVolume: 0.7, VoiceFrequency: VoiceNone},
			MusicSegments: []MusicSegment{{
				Timing: 0, Duration: 1800, TrackURI: "radio:t1", Volume: 0.7,
			}},
			GeneratedAt: start,
		})
	}
	return blocks
}

func staticGenerator(blocks []AudioBlock) Generator {
	return func(context.Context, time.Time) []AudioBlock { return blocks }
}

func newTestStore(ttl time.Duration) *SessionStore {
	return NewSessionStore(NewMemoryBackend(), ttl, testLogger())
}

func TestSessionStore_GetOrCreate_idempotent(t *testing.T) {
	store := newTestStore(12 * time.Hour)
	ctx := context.Background()
	gen := staticGenerator(contiguousBlocks(testStart, 2))

	first, created, err := store.GetOrCreate(ctx, testStart, gen)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if !created {
		t.Error("first call must create")
	}
	if first.ID == "" || len(first.Blocks) != 2 {
		t.Fatalf("unexpected session: %+v", first)
	}
	if !first.StartTime.Equal(testStart) {
		t.Errorf("session start must be the first block's start, got %v", first.StartTime)
	}
	if !first.ExpiresAt.Equal(testStart.Add(12 * time.Hour)) {
		t.Errorf("expiry must be createdAt+ttl, got %v", first.ExpiresAt)
	}

	second, created, err := store.GetOrCreate(ctx, testStart.Add(time.Minute), gen)
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if created {
		t.Error("second call within ttl must not create")
	}
	if second.ID != first.ID {
		t.Errorf("expected same session id, got %s vs %s", second.ID, first.ID)
	}
}

func TestSessionStore_GetOrCreate_expired(t *testing.T) {
	store := newTestStore(time.Hour)
	ctx := context.Background()
	gen := staticGenerator(contiguousBlocks(testStart, 1))

	first, _, err := store.GetOrCreate(ctx, testStart, gen)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	second, created, err := store.GetOrCreate(ctx, testStart.Add(2*time.Hour), gen)
	if err != nil {
		t.Fatalf("GetOrCreate after expiry: %v", err)
	}
	if !created {
		t.Error("expired session must be replaced")
	}
	if second.ID == first.ID {
		t.Error("replacement session must get a new id")
	}
}

func TestSessionStore_ForceRegenerate(t *testing.T) {
	store := newTestStore(12 * time.Hour)
	ctx := context.Background()
	gen := staticGenerator(contiguousBlocks(testStart, 1))

	first, _, err := store.GetOrCreate(ctx, testStart, gen)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	second, err := store.ForceRegenerate(ctx, testStart.Add(time.Minute), gen)
	if err != nil {
		t.Fatalf("ForceRegenerate: %v", err)
	}
	if second.ID == first.ID {
		t.Error("forced regeneration must discard the old session")
	}

	current := store.Current(ctx)
	if current == nil || current.ID != second.ID {
		t.Errorf("persisted session must be the regenerated one")
	}
}

func TestSessionStore_RegenerateForward_preserves_locked(t *testing.T) {
	store := newTestStore(12 * time.Hour)
	ctx := context.Background()
	old := contiguousBlocks(testStart, 2)

	sess, _, err := store.GetOrCreate(ctx, testStart, staticGenerator(old))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	persisted := store.Current(ctx)

	// Regenerate 45 minutes in: both old blocks have started.
	now := testStart.Add(45 * time.Minute)
	fresh := contiguousBlocks(testStart.Add(30*time.Minute), 3)
	merged, err := store.RegenerateForward(ctx, now, staticGenerator(fresh))
	if err != nil {
		t.Fatalf("RegenerateForward: %v", err)
	}

	if merged.ID != sess.ID {
		t.Errorf("forward regeneration keeps the session identity")
	}
	if !merged.ExpiresAt.Equal(now.Add(12 * time.Hour)) {
		t.Errorf("validity window restarts at regeneration, got %v", merged.ExpiresAt)
	}
	if len(merged.Blocks) != 4 {
		t.Fatalf("expected 2 locked + 2 future blocks, got %d", len(merged.Blocks))
	}

	for i := 0; i < 2; i++ {
		if !merged.Blocks[i].Locked {
			t.Errorf("started block %d must be locked", i)
		}
		want := persisted.Blocks[i]
		want.Locked = true
		wantJSON, _ := json.Marshal(want)
		gotJSON, _ := json.Marshal(merged.Blocks[i])
		if string(wantJSON) != string(gotJSON) {
			t.Errorf("locked block %d must be preserved byte-for-byte:\n%s\n%s", i, wantJSON, gotJSON)
		}
	}

	// Fresh blocks overlapping the locked range are dropped; the future
	// slice starts where locked content ends.
	if !merged.Blocks[2].StartTime.Equal(testStart.Add(60 * time.Minute)) {
		t.Errorf("future slice must start after locked content, got %v", merged.Blocks[2].StartTime)
	}
}

func TestSessionStore_RegenerateForward_prunes_stale_past(t *testing.T) {
	store := newTestStore(time.Hour)
	ctx := context.Background()

	old := contiguousBlocks(testStart, 2)
	if _, _, err := store.GetOrCreate(ctx, testStart, staticGenerator(old)); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	// 90 minutes in with a 1-hour ttl: the first block ended more than one
	// ttl ago and is dropped; the second is kept locked.
	now := testStart.Add(90 * time.Minute)
	fresh := contiguousBlocks(now, 1)
	merged, err := store.RegenerateForward(ctx, now, staticGenerator(fresh))
	if err != nil {
		t.Fatalf("RegenerateForward: %v", err)
	}

	if len(merged.Blocks) != 2 {
		t.Fatalf("expected 1 retained + 1 fresh block, got %d", len(merged.Blocks))
	}
	if merged.Blocks[0].ID != old[1].ID || !merged.Blocks[0].Locked {
		t.Errorf("recent past block must be retained locked, got %+v", merged.Blocks[0])
	}
	if !merged.StartTime.Equal(old[1].StartTime) {
		t.Errorf("session start must follow the pruned schedule, got %v", merged.StartTime)
	}
}

func TestSessionStore_RegenerateForward_no_existing_session(t *testing.T) {
	store := newTestStore(12 * time.Hour)
	sess, err := store.RegenerateForward(context.Background(), testStart, staticGenerator(contiguousBlocks(testStart, 1)))
	if err != nil {
		t.Fatalf("RegenerateForward: %v", err)
	}
	if sess == nil || len(sess.Blocks) != 1 {
		t.Fatalf("expected fresh session, got %+v", sess)
	}
}

func TestSessionStore_voice_audio_cache(t *testing.T) {
	store := newTestStore(12 * time.Hour)
	ctx := context.Background()

	if err := store.CacheVoiceAudio(ctx, "v1", "ref"); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession before a session exists, got %v", err)
	}

	_, _, err := store.GetOrCreate(ctx, testStart, staticGenerator(contiguousBlocks(testStart, 1)))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if _, ok := store.VoiceAudio(ctx, "v1"); ok {
		t.Error("no audio cached yet")
	}
	if err := store.CacheVoiceAudio(ctx, "v1", "opaque-audio-ref"); err != nil {
		t.Fatalf("CacheVoiceAudio: %v", err)
	}
	ref, ok := store.VoiceAudio(ctx, "v1")
	if !ok || ref != "opaque-audio-ref" {
		t.Errorf("expected cached ref, got %q ok=%v", ref, ok)
	}

	// The cache must survive a round trip through the backend.
	again := store.Current(ctx)
	if again.VoiceAudio["v1"] != "opaque-audio-ref" {
		t.Error("voice audio must persist with the session")
	}
}

func TestSessionStore_Clear(t *testing.T) {
	store := newTestStore(12 * time.Hour)
	ctx := context.Background()

	_, _, _ = store.GetOrCreate(ctx, testStart, staticGenerator(contiguousBlocks(testStart, 1)))
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if store.Current(ctx) != nil {
		t.Error("cleared store must have no session")
	}
}

func TestSessionStore_Update(t *testing.T) {
	store := newTestStore(12 * time.Hour)
	ctx := context.Background()

	if _, err := store.Update(ctx, func(*BroadcastSession) bool { return true }); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}

	_, _, _ = store.GetOrCreate(ctx, testStart, staticGenerator(contiguousBlocks(testStart, 1)))

	changed, err := store.Update(ctx, func(s *BroadcastSession) bool {
		s.Blocks[0].MusicSegments[0].TrackURI = "radio:swapped"
		return true
	})
	if err != nil || !changed {
		t.Fatalf("Update: changed=%v err=%v", changed, err)
	}
	if store.Current(ctx).Blocks[0].MusicSegments[0].TrackURI != "radio:swapped" {
		t.Error("mutation must be persisted")
	}

	changed, err = store.Update(ctx, func(*BroadcastSession) bool { return false })
	if err != nil || changed {
		t.Errorf("no-op mutate must not report change: changed=%v err=%v", changed, err)
	}
}
