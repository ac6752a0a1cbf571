package recorder

import (
	"testing"
	"time"
)

func TestCompletion_ResolvesExactlyOnce(t *testing.T) {
	c := newCompletion()
	c.resolve("/tmp/first.wav")
	c.resolve("/tmp/second.wav") // must be a no-op

	if got := c.await(time.Second, "/tmp/fallback.wav"); got != "/tmp/first.wav" {
		t.Errorf("expected first resolution to win, got %s", got)
	}
}

func TestCompletion_SafetyTimerResolvesWithFallback(t *testing.T) {
	c := newCompletion()

	start := time.Now()
	got := c.await(50*time.Millisecond, "/tmp/partial.wav")
	elapsed := time.Since(start)

	if got != "/tmp/partial.wav" {
		t.Errorf("expected fallback path, got %s", got)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("await took too long: %v", elapsed)
	}

	// A late resolve after the timer fired changes nothing.
	c.resolve("/tmp/late.wav")
	if got = c.await(time.Second, "/tmp/other.wav"); got != "/tmp/partial.wav" {
		t.Errorf("expected fallback to stick, got %s", got)
	}
}

func TestCompletion_AwaitAfterResolveReturnsImmediately(t *testing.T) {
	c := newCompletion()
	c.resolve("/tmp/done.wav")

	start := time.Now()
	got := c.await(time.Second, "/tmp/fallback.wav")
	if got != "/tmp/done.wav" {
		t.Errorf("expected resolved path, got %s", got)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("await should not have waited on a resolved completion")
	}
}

func TestCompletion_Resolved(t *testing.T) {
	c := newCompletion()
	if c.resolved() {
		t.Error("fresh completion must not be resolved")
	}
	c.resolve("/tmp/x.wav")
	if !c.resolved() {
		t.Error("expected resolved after resolve")
	}
}
