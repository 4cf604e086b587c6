package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.home.luguber.info/inful/docweave/internal/config"
)

// TestDefaultPolicy verifies the baseline default values.
func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != config.RetryBackoffExponential {
		t.Fatalf("expected exponential default mode got %s", p.Mode)
	}
	if p.MaxRetries != 3 {
		t.Fatalf("expected max retries 3 got %d", p.MaxRetries)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}

// TestNewPolicyOverrides checks override precedence and clamping when initial > max.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 5)
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Mode != config.RetryBackoffFixed {
		t.Fatalf("expected fixed mode got %s", p.Mode)
	}
	if p.MaxRetries != 5 {
		t.Fatalf("expected maxRetries 5 got %d", p.MaxRetries)
	}
}

// TestDelayModes ensures fixed, linear, exponential behave and respect cap.
func TestDelayModes(t *testing.T) {
	cases := []struct {
		mode    config.RetryBackoffMode
		attempt int
		want    time.Duration
	}{
		{config.RetryBackoffFixed, 3, 100 * time.Millisecond},
		{config.RetryBackoffLinear, 2, 200 * time.Millisecond},
		{config.RetryBackoffLinear, 4, 250 * time.Millisecond},
		{config.RetryBackoffExponential, 1, 100 * time.Millisecond},
		{config.RetryBackoffExponential, 2, 200 * time.Millisecond},
		{config.RetryBackoffExponential, 3, 250 * time.Millisecond},
		{config.RetryBackoffExponential, 80, 250 * time.Millisecond},
	}
	for _, c := range cases {
		p := NewPolicy(c.mode, 100*time.Millisecond, 250*time.Millisecond, 5)
		if got := p.Delay(c.attempt); got != c.want {
			t.Fatalf("%s attempt %d expected %v got %v", c.mode, c.attempt, c.want, got)
		}
	}
	if d := DefaultPolicy().Delay(0); d != 0 {
		t.Fatalf("attempt 0 expected 0 got %v", d)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 3)
	calls := 0
	retries := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, nil, func(int, error) { retries++ })
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 || retries != 2 {
		t.Fatalf("expected 3 calls and 2 retries, got %d/%d", calls, retries)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 5)
	permanent := errors.New("404")
	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return permanent
	}, func(err error) bool { return !errors.Is(err, permanent) }, nil)
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("expected single call with permanent error, got %d calls err=%v", calls, err)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2)
	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return errors.New("still down")
	}, nil, nil)
	if err == nil || calls != 3 {
		t.Fatalf("expected 3 attempts and error, got %d err=%v", calls, err)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour, 5)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := p.Do(ctx, func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("down")
	}, nil, nil)
	if err == nil || calls != 1 {
		t.Fatalf("expected cancellation after first attempt, got %d calls err=%v", calls, err)
	}
}
