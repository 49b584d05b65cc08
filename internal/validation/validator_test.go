package validation_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/narratorapp/narrator-server/internal/errors"
	"github.com/narratorapp/narrator-server/internal/validation"
)

type TestRequest struct {
	VoiceID string `json:"voice_id" validate:"required"`
	Text    string `json:"text" validate:"required,max=1024"`
	Rate    int    `json:"rate" validate:"gte=-50,lte=100"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	req := TestRequest{
		VoiceID: "voice-en-emma",
		Text:    "A short preview line.",
		Rate:    10,
	}

	err := v.Validate(req)
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       TestRequest
		wantField string
	}{
		{
			name: "missing required field",
			req: TestRequest{
				VoiceID: "",
				Text:    "hello",
			},
			wantField: "voice_id",
		},
		{
			name: "text too long",
			req: TestRequest{
				VoiceID: "voice-en-emma",
				Text:    string(make([]byte, 1025)),
			},
			wantField: "text",
		},
		{
			name: "rate out of range",
			req: TestRequest{
				VoiceID: "voice-en-emma",
				Text:    "hello",
				Rate:    500,
			},
			wantField: "rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			fields, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	req := TestRequest{
		VoiceID: "",
		Text:    "hello",
	}

	err := v.Validate(req)
	require.Error(t, err)

	// Field errors are keyed by the JSON tag name, not the Go field name.
	var domainErr *domainerrors.Error
	require.True(t, errors.As(err, &domainErr))
	fields, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Contains(t, fields, "voice_id")
	assert.NotContains(t, fields, "VoiceID")
}
