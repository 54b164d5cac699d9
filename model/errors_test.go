package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindOther},
		{"plain", errors.New("429 in the middle of some text"), KindOther},
		{"tagged", &Error{Kind: KindInvalidInput, Err: errors.New("bad")}, KindInvalidInput},
		{"wrapped tagged", fmt.Errorf("upload: %w", NewError(KindRateLimited, "slow down")), KindRateLimited},
		{"429", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, KindRateLimited},
		{"pointer 429", &genai.APIError{Code: 429}, KindRateLimited},
		{"403", genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}, KindInvalidCredential},
		{"bad key", genai.APIError{Code: 400, Message: "API key not valid. Please pass a valid API key.", Status: "INVALID_ARGUMENT"}, KindInvalidCredential},
		{"mime", genai.APIError{Code: 400, Message: "Unsupported MIME type: application/x-msdownload", Status: "INVALID_ARGUMENT"}, KindInvalidInput},
		{"content error", genai.APIError{Code: 400, Message: "Request contains an invalid argument.", Status: "INVALID_ARGUMENT"}, KindOther},
		{"server", genai.APIError{Code: 500, Status: "INTERNAL"}, KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestKind_Retryable(t *testing.T) {
	assert.True(t, KindRateLimited.Retryable())
	assert.True(t, KindInvalidCredential.Retryable())
	assert.False(t, KindInvalidInput.Retryable())
	assert.False(t, KindOther.Retryable())
}
