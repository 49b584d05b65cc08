// Package planops implements the user-driven segment operations on a plan.
//
// Every operation is a pure transform: it takes a plan, returns a new plan
// or a typed domain error, and never mutates its input. Undo snapshots are
// the caller's responsibility; operations stay free of ambient state so
// they can be tested and composed in isolation.
package planops

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/narratorapp/narrator-server/internal/domain"
	"github.com/narratorapp/narrator-server/internal/errors"
	"github.com/narratorapp/narrator-server/internal/estimate"
	"github.com/narratorapp/narrator-server/internal/id"
)

// Direction selects which neighbor a merge consumes.
type Direction string

const (
	// DirectionForward merges a segment with its successor.
	DirectionForward Direction = "forward"
	// DirectionBackward merges a segment with its predecessor.
	DirectionBackward Direction = "backward"
)

// Valid reports whether the direction is a known value.
func (d Direction) Valid() bool {
	return d == DirectionForward || d == DirectionBackward
}

// Split divides a segment in two at the word boundary nearest to (at or
// before) the given byte offset into the segment's text. Both halves
// inherit the manual-split delimiter. Fails with InvalidPosition when the
// offset (after snapping) would produce an empty half, and with NotFound
// for an unknown segment.
func Split(plan *domain.Plan, segmentID string, offset, maxBytes int) (*domain.Plan, error) {
	if maxBytes <= 0 {
		maxBytes = estimate.DefaultMaxRequestBytes
	}

	idx := plan.SegmentIndex(segmentID)
	if idx < 0 {
		return nil, errors.NotFoundf("segment %s not found", segmentID)
	}
	seg := plan.Segments[idx]

	if offset <= 0 || offset >= len(seg.Text) {
		return nil, errors.InvalidPosition("split offset must fall inside the segment text")
	}

	pos := snapToWordBoundary(seg.Text, offset)
	if pos <= 0 || pos >= len(seg.Text) {
		return nil, errors.InvalidPosition("split would produce an empty segment")
	}

	leftText, rightText := seg.Text[:pos], seg.Text[pos:]

	mid := seg.StartIndex + pos
	if mid > seg.EndIndex {
		mid = seg.EndIndex
	}

	left := seg
	left.Text = leftText
	left.OriginalText = leftText
	left.EndIndex = mid
	left.Delimiter = domain.DelimiterManualSplit
	left.Oversized = !estimate.FitsWithin(leftText, maxBytes)

	right := seg
	right.ID = id.MustGenerate(id.PrefixSegment)
	right.Text = rightText
	right.OriginalText = rightText
	right.StartIndex = mid
	right.Delimiter = domain.DelimiterManualSplit
	right.Oversized = !estimate.FitsWithin(rightText, maxBytes)

	next := plan.Clone()
	next.Segments = append(next.Segments[:idx], append([]domain.Segment{left, right}, next.Segments[idx+1:]...)...)
	next.Reindex()
	next.Touch()
	return next, nil
}

// Merge concatenates a segment with its neighbor in the given direction,
// preserving document order. Fails with NoNeighbor at a plan boundary and
// with SizeExceeded when the merged text would violate the ceiling.
func Merge(plan *domain.Plan, segmentID string, dir Direction, maxBytes int) (*domain.Plan, error) {
	if maxBytes <= 0 {
		maxBytes = estimate.DefaultMaxRequestBytes
	}
	if !dir.Valid() {
		return nil, errors.Validationf("unknown merge direction %q", dir)
	}

	idx := plan.SegmentIndex(segmentID)
	if idx < 0 {
		return nil, errors.NotFoundf("segment %s not found", segmentID)
	}

	first := idx
	if dir == DirectionBackward {
		first = idx - 1
	}
	if first < 0 || first+1 >= len(plan.Segments) {
		return nil, errors.NoNeighbor("no neighbor to merge with at plan boundary")
	}

	a, b := plan.Segments[first], plan.Segments[first+1]
	mergedText := joinTexts(a.Text, b.Text)
	if !estimate.FitsWithin(mergedText, maxBytes) {
		return nil, errors.SizeExceededf("merged segment estimated at %d bytes exceeds ceiling %d",
			estimate.EstimateBytes(mergedText), maxBytes)
	}

	merged := a
	merged.Text = mergedText
	merged.OriginalText = joinTexts(a.OriginalText, b.OriginalText)
	merged.EndIndex = b.EndIndex
	merged.NeedsRevision = a.NeedsRevision || b.NeedsRevision
	merged.Oversized = false

	next := plan.Clone()
	next.Segments = append(next.Segments[:first], append([]domain.Segment{merged}, next.Segments[first+2:]...)...)
	next.Reindex()
	next.Touch()
	return next, nil
}

// Delete removes a segment and re-indexes the remainder. Fails with
// LastSegment when the plan would become empty.
func Delete(plan *domain.Plan, segmentID string) (*domain.Plan, error) {
	idx := plan.SegmentIndex(segmentID)
	if idx < 0 {
		return nil, errors.NotFoundf("segment %s not found", segmentID)
	}
	if len(plan.Segments) == 1 {
		return nil, errors.LastSegment("a plan must keep at least one segment")
	}

	next := plan.Clone()
	next.Segments = append(next.Segments[:idx], next.Segments[idx+1:]...)
	next.Reindex()
	next.Touch()
	return next, nil
}

// EditText replaces a segment's text. Fails with SizeExceeded when the
// new text violates the ceiling; the caller is then expected to split.
// OriginalText is preserved so drift from the last synthesis remains
// detectable.
func EditText(plan *domain.Plan, segmentID, newText string, maxBytes int) (*domain.Plan, error) {
	if maxBytes <= 0 {
		maxBytes = estimate.DefaultMaxRequestBytes
	}

	idx := plan.SegmentIndex(segmentID)
	if idx < 0 {
		return nil, errors.NotFoundf("segment %s not found", segmentID)
	}
	if strings.TrimSpace(newText) == "" {
		return nil, errors.Validation("segment text cannot be empty")
	}
	if !estimate.FitsWithin(newText, maxBytes) {
		return nil, errors.SizeExceededf("edited text estimated at %d bytes exceeds ceiling %d",
			estimate.EstimateBytes(newText), maxBytes)
	}

	next := plan.Clone()
	next.Segments[idx].Text = newText
	next.Segments[idx].Oversized = false
	next.Touch()
	return next, nil
}

// SetNeedsRevision toggles the review flag on a segment. The flag is
// independent of structural mutation and does not affect any invariant.
func SetNeedsRevision(plan *domain.Plan, segmentID string, needsRevision bool) (*domain.Plan, error) {
	idx := plan.SegmentIndex(segmentID)
	if idx < 0 {
		return nil, errors.NotFoundf("segment %s not found", segmentID)
	}

	next := plan.Clone()
	next.Segments[idx].NeedsRevision = needsRevision
	next.Touch()
	return next, nil
}

// AssignVoices writes an externally computed segment-to-voice mapping
// onto the plan. Mappings for segment IDs no longer present are skipped;
// assignment runs against a plan that may have been edited since the
// mapping was computed. Returns the new plan and the IDs actually
// updated.
func AssignVoices(plan *domain.Plan, voices map[string]string) (*domain.Plan, []string) {
	next := plan.Clone()
	var applied []string
	for i := range next.Segments {
		if voice, ok := voices[next.Segments[i].ID]; ok && voice != next.Segments[i].Voice {
			next.Segments[i].Voice = voice
			applied = append(applied, next.Segments[i].ID)
		}
	}
	if len(applied) > 0 {
		next.Touch()
	}
	return next, applied
}

// snapToWordBoundary returns the greatest position p <= offset such that
// text[:p] ends a word (the rune at p starts a word or is preceded by
// whitespace). Splitting mid-word is never allowed.
func snapToWordBoundary(text string, offset int) int {
	// Align to a rune boundary first.
	for offset > 0 && !utf8.RuneStart(text[offset]) {
		offset--
	}
	// Walk back to the start of the current word.
	pos := offset
	for pos > 0 {
		prev, _ := utf8.DecodeLastRuneInString(text[:pos])
		if unicode.IsSpace(prev) {
			break
		}
		pos--
	}
	// If the offset sat in leading text of the first word, pos is 0 and
	// the caller reports InvalidPosition.
	return pos
}

// joinTexts concatenates two segment texts, inserting a single space only
// when neither side already provides separating whitespace. A merge that
// reverses a split therefore reproduces the original text exactly.
func joinTexts(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	last, _ := utf8.DecodeLastRuneInString(a)
	first, _ := utf8.DecodeRuneInString(b)
	if unicode.IsSpace(last) || unicode.IsSpace(first) {
		return a + b
	}
	return a + " " + b
}
