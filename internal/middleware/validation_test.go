package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Code string `json:"code" validate:"required"`
	Mode string `json:"mode" validate:"omitempty,oneof=unified sized"`
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"code":"SALE10","mode":"sized"}`, false},
		{"missing required field", `{"mode":"sized"}`, true},
		{"bad enum value", `{"code":"SALE10","mode":"weird"}`, true},
		{"malformed json", `{"code":`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tt.body))
			var target sampleRequest
			err := DecodeAndValidate(req, &target)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFormatValidationErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"mode":"weird"}`))
	var target sampleRequest
	err := DecodeAndValidate(req, &target)
	require.Error(t, err)

	formatted := FormatValidationErrors(err)
	require.Len(t, formatted, 2)
	assert.Equal(t, "Code", formatted[0].Field)
	assert.Equal(t, "This field is required", formatted[0].Message)
	assert.Equal(t, "Mode", formatted[1].Field)
	assert.Contains(t, formatted[1].Message, "unified sized")
}

func TestFormatValidationErrorsIgnoresOtherErrors(t *testing.T) {
	assert.Empty(t, FormatValidationErrors(errors.New("plain error")))
}
