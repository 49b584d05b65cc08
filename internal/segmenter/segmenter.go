// Package segmenter splits chapter text into synthesis-sized segments.
//
// The segmenter prefers paragraph boundaries: paragraphs are accumulated
// greedily until the next one would push the estimated request size past
// the ceiling. A paragraph that alone exceeds the ceiling falls back to
// sentence boundaries. A single sentence that still cannot fit is emitted
// flagged rather than dropped, so a plan is always produced for valid
// input even when the provider will reject individual segments.
package segmenter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/narratorapp/narrator-server/internal/domain"
	"github.com/narratorapp/narrator-server/internal/estimate"
	"github.com/narratorapp/narrator-server/internal/id"
)

// span is a half-open byte range [start, end) into the chapter text.
type span struct {
	start int
	end   int
}

// Segment splits chapterText into an ordered sequence of segments, each
// estimated to fit under maxBytes except flagged oversized sentences.
// Offsets are byte offsets into chapterText with exclusive end indexes.
// Passing maxBytes <= 0 uses estimate.DefaultMaxRequestBytes.
func Segment(chapterText string, maxBytes int) []domain.Segment {
	if maxBytes <= 0 {
		maxBytes = estimate.DefaultMaxRequestBytes
	}
	if strings.TrimSpace(chapterText) == "" {
		return nil
	}

	paragraphs := splitParagraphs(chapterText)

	var segments []domain.Segment
	var buffered []span // paragraphs accumulated for the pending segment

	flush := func() {
		if len(buffered) == 0 {
			return
		}
		s := span{start: buffered[0].start, end: buffered[len(buffered)-1].end}
		segments = append(segments, newSegment(chapterText, s, domain.DelimiterParagraph, false))
		buffered = nil
	}

	for _, p := range paragraphs {
		// A paragraph that can never fit on its own is handled at
		// sentence granularity.
		if !estimate.FitsWithin(chapterText[p.start:p.end], maxBytes) {
			flush()
			segments = append(segments, splitOversizedParagraph(chapterText, p, maxBytes)...)
			continue
		}

		if len(buffered) > 0 {
			merged := chapterText[buffered[0].start:p.end]
			if !estimate.FitsWithin(merged, maxBytes) {
				flush()
			}
		}
		buffered = append(buffered, p)
	}
	flush()

	for i := range segments {
		segments[i].Order = i
	}
	return segments
}

func newSegment(chapterText string, s span, delim domain.Delimiter, oversized bool) domain.Segment {
	text := chapterText[s.start:s.end]
	return domain.Segment{
		ID:           id.MustGenerate(id.PrefixSegment),
		StartIndex:   s.start,
		EndIndex:     s.end,
		Text:         text,
		OriginalText: text,
		Delimiter:    delim,
		Oversized:    oversized,
	}
}

// splitOversizedParagraph emits sentence-level segments for a paragraph
// that exceeds the ceiling on its own. Sentences are accumulated greedily
// the same way paragraphs are; a lone sentence over the ceiling is
// emitted flagged.
func splitOversizedParagraph(chapterText string, p span, maxBytes int) []domain.Segment {
	sentences := splitSentences(chapterText, p)

	var segments []domain.Segment
	var buffered []span

	flush := func() {
		if len(buffered) == 0 {
			return
		}
		s := span{start: buffered[0].start, end: buffered[len(buffered)-1].end}
		segments = append(segments, newSegment(chapterText, s, domain.DelimiterSentence, false))
		buffered = nil
	}

	for _, s := range sentences {
		if !estimate.FitsWithin(chapterText[s.start:s.end], maxBytes) {
			flush()
			segments = append(segments, newSegment(chapterText, s, domain.DelimiterSentence, true))
			continue
		}

		if len(buffered) > 0 {
			merged := chapterText[buffered[0].start:s.end]
			if !estimate.FitsWithin(merged, maxBytes) {
				flush()
			}
		}
		buffered = append(buffered, s)
	}
	flush()

	return segments
}

// splitParagraphs returns the blank-line delimited blocks of text as byte
// ranges, excluding leading and trailing whitespace of each block.
func splitParagraphs(text string) []span {
	var spans []span

	pos := 0
	for pos < len(text) {
		// Skip separator run (whitespace including blank lines).
		start := pos
		for start < len(text) && isSpaceAt(text, start) {
			start += runeLenAt(text, start)
		}
		if start >= len(text) {
			break
		}

		// Scan until a blank line (two newlines with only spaces between)
		// or end of text.
		end := start
		lastNonSpace := start
		newlines := 0
		for end < len(text) {
			r, size := utf8.DecodeRuneInString(text[end:])
			if r == '\n' {
				newlines++
				if newlines >= 2 {
					break
				}
			} else if !unicode.IsSpace(r) {
				newlines = 0
				lastNonSpace = end + size
			}
			end += size
		}

		spans = append(spans, span{start: start, end: lastNonSpace})
		pos = end
	}

	return spans
}

// Abbreviations that end with a period but do not end a sentence.
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "rev": {},
	"st": {}, "jr": {}, "sr": {}, "vs": {}, "etc": {}, "eg": {}, "ie": {},
	"no": {}, "vol": {}, "ch": {}, "pp": {},
}

// splitSentences returns sentence byte ranges within the paragraph span.
// A sentence ends at '.', '!', '?' or '…' (optionally followed by closing
// quotes or brackets) when followed by whitespace, unless the terminator
// belongs to an initial or a known abbreviation.
func splitSentences(text string, p span) []span {
	var spans []span

	start := p.start
	i := p.start
	for i < p.end {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isSentenceTerminator(r) {
			i += size
			continue
		}

		end := i + size
		// Absorb closing quotes and brackets after the terminator.
		for end < p.end {
			q, qsize := utf8.DecodeRuneInString(text[end:])
			if !isClosingMark(q) {
				break
			}
			end += qsize
		}

		if end < p.end && !isSpaceAt(text, end) {
			// Mid-token punctuation ("3.14", "U.S.A"): not a boundary.
			i = end
			continue
		}
		if r == '.' && isAbbreviationBefore(text, start, i) {
			i = end
			continue
		}

		spans = append(spans, span{start: start, end: end})

		// Skip whitespace to the start of the next sentence.
		i = end
		for i < p.end && isSpaceAt(text, i) {
			i += runeLenAt(text, i)
		}
		start = i
	}

	if start < p.end {
		spans = append(spans, span{start: start, end: p.end})
	}

	return spans
}

// isAbbreviationBefore reports whether the word ending at dot (exclusive)
// is a single-letter initial or a known abbreviation.
func isAbbreviationBefore(text string, sentenceStart, dot int) bool {
	wordStart := dot
	for wordStart > sentenceStart {
		r, size := decodeLastRune(text[sentenceStart:wordStart])
		if !unicode.IsLetter(r) {
			break
		}
		wordStart -= size
	}
	word := text[wordStart:dot]
	if word == "" {
		return false
	}
	if utf8.RuneCountInString(word) == 1 && unicode.IsUpper([]rune(word)[0]) {
		// A lone capital is an initial only when it is not the tail of an
		// alphanumeric token ("221B." ends a sentence, "J." does not).
		if wordStart == sentenceStart {
			return true
		}
		prev, _ := decodeLastRune(text[sentenceStart:wordStart])
		return !unicode.IsLetter(prev) && !unicode.IsDigit(prev)
	}
	_, ok := abbreviations[strings.ToLower(word)]
	return ok
}

func isSentenceTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

func isClosingMark(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', ')', ']', '»':
		return true
	}
	return false
}

func isSpaceAt(text string, i int) bool {
	r, _ := utf8.DecodeRuneInString(text[i:])
	return unicode.IsSpace(r)
}

func runeLenAt(text string, i int) int {
	_, size := utf8.DecodeRuneInString(text[i:])
	return size
}

func decodeLastRune(s string) (rune, int) {
	return utf8.DecodeLastRuneInString(s)
}
