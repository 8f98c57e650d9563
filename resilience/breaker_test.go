package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_StartsClosed(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test"})
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_AllowsWhenClosed(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test"})

	var called bool
	err := b.Do(func() error {
		called = true
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if !called {
		t.Error("function was not called")
	}
}

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 3, CoolDown: time.Minute})
	testErr := errors.New("store failure")

	for i := 0; i < 3; i++ {
		_ = b.Do(func() error { return testErr })
	}

	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	err := b.Do(func() error {
		t.Error("function should not have been called")
		return nil
	})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 2})
	fail := errors.New("fail")

	_ = b.Do(func() error { return fail })
	_ = b.Do(func() error { return nil })
	_ = b.Do(func() error { return fail })

	if b.State() != BreakerClosed {
		t.Errorf("expected closed after interleaved success, got %s", b.State())
	}
	if b.Failures() != 1 {
		t.Errorf("expected 1 failure, got %d", b.Failures())
	}
}

func TestBreaker_ZeroCoolDownStaysOpen(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 1})
	b.now = func() time.Time { return time.Now().Add(time.Hour) }

	_ = b.Do(func() error { return errors.New("fail") })

	// Even far in the future the breaker stays open without a cool-down.
	if b.State() != BreakerOpen {
		t.Errorf("expected permanently open, got %s", b.State())
	}
}

func TestBreaker_HalfOpenAfterCoolDown(t *testing.T) {
	base := time.Now()
	current := base
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 1, CoolDown: 30 * time.Second})
	b.now = func() time.Time { return current }

	_ = b.Do(func() error { return errors.New("fail") })
	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	current = base.Add(31 * time.Second)
	if b.State() != BreakerHalfOpen {
		t.Fatalf("expected half-open after cool-down, got %s", b.State())
	}

	// A successful probe closes the circuit.
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed after probe success, got %s", b.State())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	base := time.Now()
	current := base
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 1, CoolDown: time.Second})
	b.now = func() time.Time { return current }

	_ = b.Do(func() error { return errors.New("fail") })
	current = base.Add(2 * time.Second)

	_ = b.Do(func() error { return errors.New("still failing") })
	if b.State() != BreakerOpen {
		t.Errorf("expected reopened after failed probe, got %s", b.State())
	}
}

func TestBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	b := NewBreaker(BreakerConfig{
		Name:        "test",
		MaxFailures: 1,
		OnStateChange: func(name string, from, to BreakerState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = b.Do(func() error { return errors.New("fail") })
	b.Reset()

	if len(transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %v", transitions)
	}
	if transitions[0] != "closed->open" || transitions[1] != "open->closed" {
		t.Errorf("unexpected transitions: %v", transitions)
	}
}
