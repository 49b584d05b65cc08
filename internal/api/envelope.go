package api

import (
	"github.com/danielgtaylor/huma/v2"
)

// envelopeVersion is bumped when the wire shape changes incompatibly.
const envelopeVersion = 1

// Envelope is the consistent JSON wrapper around every huma response.
type Envelope struct {
	V       int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// EnvelopeTransformer wraps handler outputs in the response envelope.
// Error payloads (huma.StatusError implementations) land in the error
// field; everything else is data.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	success := len(status) > 0 && status[0] == '2'

	envelope := Envelope{
		V:       envelopeVersion,
		Success: success,
	}
	if success {
		envelope.Data = v
	} else {
		envelope.Error = v
	}
	return envelope, nil
}
