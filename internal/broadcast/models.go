package broadcast

import (
	"sort"
	"time"
)

// SegmentType discriminates the two segment shapes on a block's time axis.
type SegmentType string

const (
	SegmentVoice SegmentType = "voice"
	SegmentMusic SegmentType = "music"
)

// Priority indicates how important a voice segment is relative to others.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// MusicStyle is the qualitative mood driving track selection for a block.
type MusicStyle string

const (
	StyleAmbient   MusicStyle = "ambient"
	StyleFocus     MusicStyle = "focus"
	StyleEnergetic MusicStyle = "energetic"
	StyleUpbeat    MusicStyle = "upbeat"
	StyleCalm      MusicStyle = "calm"
	StyleSilent    MusicStyle = "silent"
)

// Valid reports whether s is one of the known styles.
func (s MusicStyle) Valid() bool {
	switch s {
	case StyleAmbient, StyleFocus, StyleEnergetic, StyleUpbeat, StyleCalm, StyleSilent:
		return true
	}
	return false
}

// VoiceFrequency controls how many DJ breaks a block gets.
type VoiceFrequency string

const (
	VoiceNone     VoiceFrequency = "none"
	VoiceMinimal  VoiceFrequency = "minimal"
	VoiceModerate VoiceFrequency = "moderate"
	VoiceActive   VoiceFrequency = "active"
)

// Valid reports whether f is one of the known frequencies.
func (f VoiceFrequency) Valid() bool {
	switch f {
	case VoiceNone, VoiceMinimal, VoiceModerate, VoiceActive:
		return true
	}
	return false
}

// InterruptionLevel expresses how much the broadcast may intrude on the listener.
type InterruptionLevel string

const (
	InterruptNone   InterruptionLevel = "none"
	InterruptLow    InterruptionLevel = "low"
	InterruptMedium InterruptionLevel = "medium"
	InterruptHigh   InterruptionLevel = "high"
)

// ExplorationLevel controls how adventurous track recommendations should be.
type ExplorationLevel string

const (
	ExploreFamiliar    ExplorationLevel = "familiar"
	ExploreBalanced    ExplorationLevel = "balanced"
	ExploreExplorative ExplorationLevel = "explorative"
)

// VoiceSegment is a spoken DJ segment positioned relative to its block's start.
// Timing and Duration are in seconds.
type VoiceSegment struct {
	ID       string   `json:"id"`
	Timing   float64  `json:"timing"`
	Content  string   `json:"content"`
	Duration float64  `json:"duration"`
	AudioRef string   `json:"audioRef,omitempty"`
	Priority Priority `json:"priority"`
}

// MusicSegment is a single track placement on the block's time axis.
// Timing, Duration, FadeIn, FadeOut are in seconds; Volume is in [0,1].
type MusicSegment struct {
	Timing    float64 `json:"timing"`
	Duration  float64 `json:"duration"`
	TrackURI  string  `json:"trackUri"`
	TrackName string  `json:"trackName,omitempty"`
	Artist    string  `json:"artist,omitempty"`
	Volume    float64 `json:"volume"`
	FadeIn    float64 `json:"fadeIn,omitempty"`
	FadeOut   float64 `json:"fadeOut,omitempty"`
}

// Segment is the tagged union over the two segment shapes. Exactly one of
// Voice or Music is non-nil, matching Type. Code that consumes merged
// sequences must switch on Type and handle both cases.
type Segment struct {
	Type  SegmentType   `json:"type"`
	Voice *VoiceSegment `json:"voice,omitempty"`
	Music *MusicSegment `json:"music,omitempty"`
}

// Timing returns the segment's offset from block start in seconds.
func (s Segment) Timing() float64 {
	if s.Type == SegmentVoice {
		return s.Voice.Timing
	}
	return s.Music.Timing
}

// Duration returns the segment's length in seconds.
func (s Segment) Duration() float64 {
	if s.Type == SegmentVoice {
		return s.Voice.Duration
	}
	return s.Music.Duration
}

// End returns Timing+Duration, the half-open end of the segment's range.
func (s Segment) End() float64 {
	return s.Timing() + s.Duration()
}

// BlockStrategy is the qualitative decision governing a block's content.
// Reasoning is diagnostic free text and is never parsed.
type BlockStrategy struct {
	MusicStyle        MusicStyle        `json:"musicStyle"`
	MusicVolume       float64           `json:"musicVolume"`
	VoiceFrequency    VoiceFrequency    `json:"voiceFrequency"`
	InterruptionLevel InterruptionLevel `json:"interruptionLevel"`
	Reasoning         string            `json:"reasoning,omitempty"`
}

// AudioBlock is a fixed span of the broadcast holding an ordered,
// non-overlapping mix of voice and music segments.
type AudioBlock struct {
	ID            string         `json:"id"`
	StartTime     time.Time      `json:"startTime"`
	EndTime       time.Time      `json:"endTime"`
	Strategy      BlockStrategy  `json:"strategy"`
	VoiceSegments []VoiceSegment `json:"voiceSegments"`
	MusicSegments []MusicSegment `json:"musicSegments"`
	GeneratedAt   time.Time      `json:"generatedAt"`
	Locked        bool           `json:"locked,omitempty"`
}

// Duration returns the block length in seconds.
func (b AudioBlock) Duration() float64 {
	return b.EndTime.Sub(b.StartTime).Seconds()
}

// Merged returns the block's voice and music segments as one sequence
// sorted by timing. Voice segments sort before music at equal timing.
func (b AudioBlock) Merged() []Segment {
	merged := make([]Segment, 0, len(b.VoiceSegments)+len(b.MusicSegments))
	for i := range b.VoiceSegments {
		merged = append(merged, Segment{Type: SegmentVoice, Voice: &b.VoiceSegments[i]})
	}
	for i := range b.MusicSegments {
		merged = append(merged, Segment{Type: SegmentMusic, Music: &b.MusicSegments[i]})
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timing() < merged[j].Timing()
	})
	return merged
}

// BroadcastSession is a persisted, time-bounded run of blocks shared by all
// viewers. VoiceAudio maps voice segment IDs to cached rendered audio refs.
// EventCount is the live calendar event count the schedule was last built
// against; the regeneration heuristic stays quiet while it is unchanged.
type BroadcastSession struct {
	ID         string            `json:"id"`
	StartTime  time.Time         `json:"startTime"`
	Blocks     []AudioBlock      `json:"blocks"`
	VoiceAudio map[string]string `json:"voiceAudio,omitempty"`
	EventCount int               `json:"eventCount"`
	CreatedAt  time.Time         `json:"createdAt"`
	ExpiresAt  time.Time         `json:"expiresAt"`
}

// Valid reports whether the session is still live at the given instant.
// The expiry boundary itself counts as expired.
func (s *BroadcastSession) Valid(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// CalendarEvent is read-only strategy input from the calendar collaborator.
type CalendarEvent struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Attendees []string  `json:"attendees,omitempty"`
	Location  string    `json:"location,omitempty"`
}

// NewsItem is read-only strategy input from a news feed.
type NewsItem struct {
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// UserPreferences is read-only listener configuration feeding the resolver.
type UserPreferences struct {
	NewsCategories        []string          `json:"newsCategories,omitempty"`
	MusicMoods            []MusicStyle      `json:"musicMoods,omitempty"`
	InterruptionTolerance InterruptionLevel `json:"interruptionTolerance,omitempty"`
	VoicePersona          string            `json:"voicePersona,omitempty"`
	Exploration           ExplorationLevel  `json:"exploration,omitempty"`
}

// TasteProfile summarizes the listener's music history for recommendations.
type TasteProfile struct {
	TopGenres  []string `json:"topGenres,omitempty"`
	TopArtists []string `json:"topArtists,omitempty"`
}

// Track is a playable item from the music catalog collaborator.
type Track struct {
	URI             string  `json:"uri"`
	DurationSeconds float64 `json:"durationSeconds"`
	Name            string  `json:"name"`
	Artist          string  `json:"artist"`
}
