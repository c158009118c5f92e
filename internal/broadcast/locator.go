package broadcast

import "time"

// LivePosition is the answer to "what plays right now". When Live is false
// and TotalElapsed lies inside the block, the broadcast is in transition
// silence between segments; that is an expected state, not an error.
type LivePosition struct {
	Live              bool        `json:"live"`
	Segment           *Segment    `json:"segment,omitempty"`
	Type              SegmentType `json:"segmentType,omitempty"`
	PositionInSegment float64     `json:"positionInSegment"`
	TotalElapsed      float64     `json:"totalElapsed"`
}

// Locate computes the live segment and in-segment offset for a block at the
// given wall-clock instant. It is a pure function: no mutation, no hidden
// cursor, safe for any number of concurrent readers. The only error is a
// malformed block, which is a caller defect rather than a runtime state.
func Locate(block AudioBlock, at time.Time) (LivePosition, error) {
	if !block.EndTime.After(block.StartTime) {
		return LivePosition{}, ErrInvalidBlock
	}

	elapsed := at.Sub(block.StartTime).Seconds()
	pos := LivePosition{TotalElapsed: elapsed}
	if elapsed < 0 || elapsed >= block.Duration() {
		return pos, nil
	}

	for _, seg := range block.Merged() {
		if seg.Timing() <= elapsed && elapsed < seg.End() {
			seg := seg
			return LivePosition{
				Live:              true,
				Segment:           &seg,
				Type:              seg.Type,
				PositionInSegment: elapsed - seg.Timing(),
				TotalElapsed:      elapsed,
			}, nil
		}
	}

	// Inside the block but between segments: transition silence.
	return pos, nil
}

// LocateInSchedule returns the block satisfying startTime <= at < endTime,
// or nil when the instant falls outside every block. Schedules are
// contiguous and non-overlapping by construction, so at most one matches.
func LocateInSchedule(blocks []AudioBlock, at time.Time) *AudioBlock {
	for i := range blocks {
		if !blocks[i].StartTime.After(at) && at.Before(blocks[i].EndTime) {
			return &blocks[i]
		}
	}
	return nil
}

// Upcoming returns the merged segments that have not yet started at the
// given elapsed offset, in timing order.
func Upcoming(block AudioBlock, elapsed float64) []Segment {
	var out []Segment
	for _, seg := range block.Merged() {
		if seg.Timing() > elapsed {
			out = append(out, seg)
		}
	}
	return out
}

// Past returns the merged segments that have fully ended at the given
// elapsed offset, in timing order.
func Past(block AudioBlock, elapsed float64) []Segment {
	var out []Segment
	for _, seg := range block.Merged() {
		if seg.End() <= elapsed {
			out = append(out, seg)
		}
	}
	return out
}
