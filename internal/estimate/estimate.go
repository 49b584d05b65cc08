// Package estimate predicts the serialized request size of a text span.
//
// Synthesis requests are not sent as raw text: the provider payload wraps
// each span in markup (voice and prosody elements, escaping, envelope
// fields), so the bytes on the wire are always larger than the text
// itself. Every size check in the planner goes through this package so
// the ceiling invariant holds for the payload actually constructed
// downstream, not just for the visible text.
package estimate

// DefaultMaxRequestBytes is the provider's per-request payload ceiling.
const DefaultMaxRequestBytes = 48 * 1024

// Markup overhead model. The proportional factor covers escaping and
// per-span markup that grows with text length; the envelope constant
// covers the fixed wrapper around each request. Both are deliberately
// generous: the estimate must never come in under the real payload.
const (
	overheadNumerator   = 5
	overheadDenominator = 4
	envelopeBytes       = 512
)

// EstimateBytes returns a conservative estimate of the serialized request
// size for the given text. Pure function; never under-estimates.
func EstimateBytes(text string) int {
	if text == "" {
		return envelopeBytes
	}
	n := len(text)
	// Integer ceiling of n * 5/4.
	scaled := (n*overheadNumerator + overheadDenominator - 1) / overheadDenominator
	return scaled + envelopeBytes
}

// FitsWithin reports whether the text's estimated request size is within
// the given ceiling.
func FitsWithin(text string, maxBytes int) bool {
	return EstimateBytes(text) <= maxBytes
}
