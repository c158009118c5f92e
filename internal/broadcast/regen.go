package broadcast

import (
	"context"
	"strings"
	"time"
)

// SchedulingKeywords are the voice-text markers the calendar-change
// heuristic looks for. A policy knob, not a contract: deployments with
// event-id diffing from their calendar provider should replace the
// heuristic entirely.
var SchedulingKeywords = []string{"meeting", "event", "calendar"}

// ShouldRegenerate decides whether the session must be rebuilt at now.
// Expiry is authoritative and boundary-inclusive: exactly at ExpiresAt the
// session is stale. Before expiry, a calendar-change heuristic applies:
// voice segments referencing scheduling keywords with no live events, or
// live events with no voice segment mentioning them, signal the calendar
// changed materially since generation. The heuristic only runs when
// liveEventCount differs from the count the schedule was built against;
// otherwise a persistent mismatch would re-fire on every poll. It is
// content-based and approximate; it can both over- and under-trigger.
func ShouldRegenerate(session *BroadcastSession, liveEventCount int, now time.Time) bool {
	if session == nil {
		return true
	}
	if !now.Before(session.ExpiresAt) {
		return true
	}
	if liveEventCount == session.EventCount {
		return false
	}

	mentions := keywordVoiceCount(session)
	if liveEventCount > 0 && mentions == 0 {
		return true
	}
	if liveEventCount == 0 && mentions > 0 {
		return true
	}
	return false
}

// keywordVoiceCount counts voice segments whose text references a
// scheduling keyword.
func keywordVoiceCount(session *BroadcastSession) int {
	n := 0
	for _, block := range session.Blocks {
		for _, v := range block.VoiceSegments {
			content := strings.ToLower(v.Content)
			for _, kw := range SchedulingKeywords {
				if strings.Contains(content, kw) {
					n++
					break
				}
			}
		}
	}
	return n
}

// MergeRegenerated combines an old schedule with a freshly generated one.
// Old blocks already started at now, and any explicitly locked block, are
// preserved byte-for-byte and marked locked; fresh blocks cover the future.
// The replacement is delete-then-reinsert of the future slice only, never a
// field-level edit of preserved content.
func MergeRegenerated(old, fresh []AudioBlock, now time.Time) []AudioBlock {
	var merged []AudioBlock
	cutoff := now
	for _, b := range old {
		if b.Locked || b.StartTime.Before(now) {
			b.Locked = true
			merged = append(merged, b)
			if b.EndTime.After(cutoff) {
				cutoff = b.EndTime
			}
		}
	}
	for _, b := range fresh {
		if !b.StartTime.Before(cutoff) {
			merged = append(merged, b)
		}
	}
	return merged
}

// ShuffleUpcoming replaces the track of the next not-yet-started music
// segment with a new recommendation. Only future, unlocked content may
// change; everything at or before now is immutable. It reports whether a
// segment was changed.
func ShuffleUpcoming(ctx context.Context, session *BroadcastSession, now time.Time, tracks TrackSource) bool {
	if session == nil || tracks == nil {
		return false
	}

	for i := range session.Blocks {
		block := &session.Blocks[i]
		if !block.EndTime.After(now) {
			continue
		}
		elapsed := now.Sub(block.StartTime).Seconds()
		for j := range block.MusicSegments {
			seg := &block.MusicSegments[j]
			if seg.Timing <= elapsed {
				continue
			}
			recs, err := tracks.Recommend(ctx, nil, block.Strategy.MusicStyle, ExploreExplorative, 1)
			if err != nil || len(recs) == 0 {
				recs = []Track{fallbackTrack(block.Strategy.MusicStyle)}
			}
			// Keep the slot's timing and duration; only the track changes,
			// so the block's layout invariants are untouched.
			seg.TrackURI = recs[0].URI
			seg.TrackName = recs[0].Name
			seg.Artist = recs[0].Artist
			return true
		}
	}
	return false
}
