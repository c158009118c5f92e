package broadcast

import (
	"errors"
	"fmt"
)

// ErrInvalidBlock is returned when a block's end time is not after its start
// time. This is a caller error, distinct from the recoverable upstream
// failures the engine absorbs internally.
var ErrInvalidBlock = errors.New("block end time must be after start time")

// ContainmentError reports a segment that does not fit inside its block.
type ContainmentError struct {
	Type          SegmentType
	Timing        float64
	Duration      float64
	BlockDuration float64
}

func (e *ContainmentError) Error() string {
	return fmt.Sprintf("%s segment [%.1f, %.1f) escapes block of %.1fs",
		e.Type, e.Timing, e.Timing+e.Duration, e.BlockDuration)
}

// OverlapError reports two segments claiming the same offset range.
type OverlapError struct {
	FirstType   SegmentType
	FirstEnd    float64
	SecondType  SegmentType
	SecondStart float64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("%s segment ending at %.1f overlaps %s segment starting at %.1f",
		e.FirstType, e.FirstEnd, e.SecondType, e.SecondStart)
}

// ValidateBlock checks the scheduling contract every assembled block must
// uphold: the end time is after the start time, every segment lies within
// [0, blockDuration] with positive duration, and no two segments in the
// merged timing-sorted sequence overlap. Gaps between segments are permitted;
// they represent transition silence.
func ValidateBlock(b AudioBlock) error {
	if !b.EndTime.After(b.StartTime) {
		return ErrInvalidBlock
	}

	blockDur := b.Duration()
	merged := b.Merged()

	for _, seg := range merged {
		if seg.Timing() < 0 || seg.Duration() <= 0 || seg.End() > blockDur {
			return &ContainmentError{
				Type:          seg.Type,
				Timing:        seg.Timing(),
				Duration:      seg.Duration(),
				BlockDuration: blockDur,
			}
		}
	}

	for i := 1; i < len(merged); i++ {
		prev, cur := merged[i-1], merged[i]
		if cur.Timing() < prev.End() {
			return &OverlapError{
				FirstType:   prev.Type,
				FirstEnd:    prev.End(),
				SecondType:  cur.Type,
				SecondStart: cur.Timing(),
			}
		}
	}

	return nil
}
