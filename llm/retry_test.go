package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:        maxRetries,
		BaseDelay:         0.001,
		MaxDelay:          0.01,
		BackoffMultiplier: 2.0,
	}
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), fastPolicy(2), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || result != "ok" {
		t.Fatalf("result = %q, err = %v", result, err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryRecoversFromTransient(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), fastPolicy(2), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &ServerError{ProviderError: ProviderError{
				ClientError: ClientError{Message: "503"}, Retryable: true,
			}}
		}
		return "recovered", nil
	})
	if err != nil || result != "recovered" {
		t.Fatalf("result = %q, err = %v", result, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(5), func(ctx context.Context) (string, error) {
		calls++
		return "", &AuthError{ProviderError: ProviderError{
			ClientError: ClientError{Message: "401"},
		}}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on auth failure)", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(2), func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("still failing")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestRetryHonorsRetryAfterCap(t *testing.T) {
	retryAfter := 120.0 // beyond MaxDelay
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context) (string, error) {
		calls++
		return "", &RateLimitError{ProviderError: ProviderError{
			ClientError: ClientError{Message: "429"},
			Retryable:   true,
			RetryAfter:  &retryAfter,
		}}
	})
	if err == nil {
		t.Fatal("expected immediate failure when Retry-After exceeds MaxDelay")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := fastPolicy(2)
	policy.BaseDelay = 10 // force the wait path
	_, err := Retry(ctx, policy, func(ctx context.Context) (string, error) {
		return "", errors.New("transient")
	})

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("error = %v, want TimeoutError from cancellation", err)
	}
}

func TestDelayBackoff(t *testing.T) {
	p := RetryPolicy{BaseDelay: 1, MaxDelay: 60, BackoffMultiplier: 2}
	if p.Delay(0) != time.Second {
		t.Errorf("delay(0) = %v, want 1s", p.Delay(0))
	}
	if p.Delay(1) != 2*time.Second {
		t.Errorf("delay(1) = %v, want 2s", p.Delay(1))
	}
	if p.Delay(10) != 60*time.Second {
		t.Errorf("delay(10) = %v, want capped at 60s", p.Delay(10))
	}
}

func TestDelayJitterRange(t *testing.T) {
	p := RetryPolicy{BaseDelay: 1, MaxDelay: 60, BackoffMultiplier: 2, Jitter: true}
	for i := 0; i < 50; i++ {
		d := p.Delay(0)
		if d < 500*time.Millisecond || d >= 1500*time.Millisecond {
			t.Fatalf("jittered delay %v outside [0.5s, 1.5s)", d)
		}
	}
}
