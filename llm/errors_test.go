package llm

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		wantType  string
		retryable bool
	}{
		{"auth 401", "API error: 401 unauthorized", "auth", false},
		{"invalid key", "invalid api key provided", "auth", false},
		{"rate limit", "429 rate limit exceeded", "rate_limit", true},
		{"context length", "prompt exceeds context length", "context_length", false},
		{"server error", "500 internal server error", "server", true},
		{"timeout", "request timeout after 30s", "timeout", true},
		{"content filter", "blocked by content filter", "content_filter", false},
		{"unknown", "something odd happened", "provider", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClassifyError("openai", errors.New(tt.message))

			var gotType string
			switch err.(type) {
			case *AuthError:
				gotType = "auth"
			case *RateLimitError:
				gotType = "rate_limit"
			case *ContextLengthError:
				gotType = "context_length"
			case *ServerError:
				gotType = "server"
			case *TimeoutError:
				gotType = "timeout"
			case *ContentFilterError:
				gotType = "content_filter"
			case *ProviderError:
				gotType = "provider"
			}
			if gotType != tt.wantType {
				t.Errorf("type = %s, want %s", gotType, tt.wantType)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestClassifyErrorNil(t *testing.T) {
	if ClassifyError("openai", nil) != nil {
		t.Error("nil error should classify to nil")
	}
}

func TestClassifyErrorUnwraps(t *testing.T) {
	cause := errors.New("429 rate limit")
	err := ClassifyError("anthropic", cause)
	if !errors.Is(err, cause) {
		t.Error("classified error should unwrap to its cause")
	}
}

func TestIsRetryableNil(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}
}

func TestIsRetryableUnknownDefaultsTrue(t *testing.T) {
	if !IsRetryable(errors.New("mystery")) {
		t.Error("unknown errors default to retryable")
	}
}
