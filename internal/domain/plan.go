package domain

import (
	"fmt"
	"time"
)

// Plan is the ordered collection of segments for one chapter.
//
// Plans are created by the segmenter (or loaded from storage) and mutated
// exclusively through the planops package. A plan is never deleted: when
// the chapter's source text changes it is marked stale and superseded by
// a regenerated plan.
type Plan struct {
	ID        string    `json:"id"`
	ChapterID string    `json:"chapter_id"`
	Segments  []Segment `json:"segments"`

	IsComplete bool `json:"is_complete"`

	// Stale means the chapter's source text changed after this plan was
	// generated; the plan remains readable but should be regenerated.
	Stale bool `json:"stale,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SegmentIndex returns the position of the segment with the given ID,
// or -1 if no such segment exists.
func (p *Plan) SegmentIndex(segmentID string) int {
	for i := range p.Segments {
		if p.Segments[i].ID == segmentID {
			return i
		}
	}
	return -1
}

// Segment returns the segment with the given ID, or nil.
func (p *Plan) Segment(segmentID string) *Segment {
	if i := p.SegmentIndex(segmentID); i >= 0 {
		return &p.Segments[i]
	}
	return nil
}

// Reindex renumbers Order to a dense 0..N-1 sequence in slice order.
// Called automatically after every structural mutation.
func (p *Plan) Reindex() {
	for i := range p.Segments {
		p.Segments[i].Order = i
	}
}

// Clone returns a deep copy of the plan. Segment values are copied, so
// mutations of the clone never leak into the original.
func (p *Plan) Clone() *Plan {
	clone := *p
	clone.Segments = make([]Segment, len(p.Segments))
	copy(clone.Segments, p.Segments)
	return &clone
}

// Text returns the concatenation of all segment texts in order, joined
// with double newlines. For an unedited machine-generated plan this is
// the normalized chapter text.
func (p *Plan) Text() string {
	var total int
	for i := range p.Segments {
		total += len(p.Segments[i].Text) + 2
	}
	buf := make([]byte, 0, total)
	for i := range p.Segments {
		if i > 0 {
			buf = append(buf, '\n', '\n')
		}
		buf = append(buf, p.Segments[i].Text...)
	}
	return string(buf)
}

// SizeValidator reports the estimated payload size of a text span.
// Satisfied by estimate.EstimateBytes.
type SizeValidator func(text string) int

// Validate checks the plan's structural invariants:
//
//  1. Order values are exactly 0..N-1 with no gaps or duplicates.
//  2. Segment IDs are unique; offsets are well-formed and non-overlapping.
//  3. No segment's estimated size exceeds maxBytes unless flagged Oversized.
//  4. The plan contains at least one segment.
//
// A nil estimator skips the ceiling check (used when loading persisted
// plans whose ceiling is unknown).
func (p *Plan) Validate(estimator SizeValidator, maxBytes int) error {
	if len(p.Segments) == 0 {
		return fmt.Errorf("plan %s: no segments", p.ID)
	}

	seen := make(map[string]struct{}, len(p.Segments))
	prevEnd := -1
	for i := range p.Segments {
		seg := &p.Segments[i]

		if seg.ID == "" {
			return fmt.Errorf("plan %s: segment %d has empty id", p.ID, i)
		}
		if _, dup := seen[seg.ID]; dup {
			return fmt.Errorf("plan %s: duplicate segment id %s", p.ID, seg.ID)
		}
		seen[seg.ID] = struct{}{}

		if seg.Order != i {
			return fmt.Errorf("plan %s: segment %s has order %d, want %d", p.ID, seg.ID, seg.Order, i)
		}
		if seg.Text == "" {
			return fmt.Errorf("plan %s: segment %s is empty", p.ID, seg.ID)
		}
		if seg.StartIndex < 0 || seg.EndIndex < seg.StartIndex {
			return fmt.Errorf("plan %s: segment %s has invalid range [%d,%d)", p.ID, seg.ID, seg.StartIndex, seg.EndIndex)
		}
		if seg.StartIndex < prevEnd {
			return fmt.Errorf("plan %s: segment %s overlaps previous segment", p.ID, seg.ID)
		}
		prevEnd = seg.EndIndex

		if estimator != nil && maxBytes > 0 && !seg.Oversized {
			if size := estimator(seg.Text); size > maxBytes {
				return fmt.Errorf("plan %s: segment %s estimated at %d bytes exceeds ceiling %d", p.ID, seg.ID, size, maxBytes)
			}
		}
	}

	return nil
}

// Touch updates the modification timestamp.
func (p *Plan) Touch() {
	p.UpdatedAt = time.Now().UTC()
}

// MarkComplete flags the plan as finished by an external workflow action.
func (p *Plan) MarkComplete() {
	p.IsComplete = true
	p.Touch()
}

// MarkStale flags the plan as superseded by a source-text change.
func (p *Plan) MarkStale() {
	p.Stale = true
	p.Touch()
}

// OversizedSegments returns the segments flagged as oversized atomic units.
func (p *Plan) OversizedSegments() []Segment {
	var out []Segment
	for i := range p.Segments {
		if p.Segments[i].Oversized {
			out = append(out, p.Segments[i])
		}
	}
	return out
}
