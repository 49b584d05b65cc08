package domain

// Delimiter identifies the boundary type that produced a segment.
type Delimiter string

const (
	// DelimiterParagraph marks a segment flushed at a paragraph boundary.
	DelimiterParagraph Delimiter = "paragraph"
	// DelimiterSentence marks a segment produced by sentence-level fallback
	// when a single paragraph exceeded the size ceiling.
	DelimiterSentence Delimiter = "sentence"
	// DelimiterManualSplit marks a segment produced by a user-driven split.
	DelimiterManualSplit Delimiter = "manual-split"
)

// Valid reports whether the delimiter is a known value.
func (d Delimiter) Valid() bool {
	switch d {
	case DelimiterParagraph, DelimiterSentence, DelimiterManualSplit:
		return true
	}
	return false
}

// Segment is one contiguous, size-bounded unit of chapter text intended
// for a single synthesis request.
//
// StartIndex and EndIndex are byte offsets into the original chapter text.
// EndIndex is exclusive, everywhere, without exception. Offsets describe
// where the segment came from; Text is what will actually be synthesized
// and may drift from the original range through user edits.
type Segment struct {
	ID         string    `json:"id"`
	Order      int       `json:"order"`
	StartIndex int       `json:"start_idx"`
	EndIndex   int       `json:"end_idx"`
	Text       string    `json:"text"`
	Delimiter  Delimiter `json:"delimiter"`

	// OriginalText is the text at the last generation/sync point.
	// A mismatch with Text means previously synthesized audio is stale.
	OriginalText string `json:"original_text,omitempty"`

	// Voice is the assigned speaker label; empty means unassigned.
	Voice string `json:"voice,omitempty"`

	// NeedsRevision is a user-togglable review flag. It is independent of
	// all structural mutation logic.
	NeedsRevision bool `json:"needs_revision,omitempty"`

	// Oversized marks a segment whose single sentence could not be reduced
	// under the size ceiling. Reported, never silently dropped.
	Oversized bool `json:"oversized,omitempty"`
}

// Drifted reports whether the segment's text has changed since the last
// generation/sync point.
func (s *Segment) Drifted() bool {
	return s.OriginalText != "" && s.Text != s.OriginalText
}

// Len returns the byte length of the segment's current text.
func (s *Segment) Len() int {
	return len(s.Text)
}
