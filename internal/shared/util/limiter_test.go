package util

import (
	"context"
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	// 10 tokens per second, burst of 2
	l := NewLimiter(10, 2)

	if !l.Allow(1) {
		t.Error("expected first token to be allowed")
	}
	if !l.Allow(1) {
		t.Error("expected second token to be allowed (burst)")
	}
	if l.Allow(1) {
		t.Error("expected third token to be rejected (burst exhausted)")
	}

	time.Sleep(150 * time.Millisecond)
	if !l.Allow(1) {
		t.Error("expected token to be refilled after wait")
	}
}

func TestLimiter_Wait(t *testing.T) {
	l := NewLimiter(100, 1)
	l.Allow(1) // consume burst

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Wait(ctx, 1)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Error("Wait returned too early")
	}
}

func TestNewJobLimiterDisabled(t *testing.T) {
	l := NewJobLimiter(0)
	if l != nil {
		t.Fatal("expected nil limiter for zero rate")
	}
	for i := 0; i < 100; i++ {
		if !l.Allow(1) {
			t.Fatal("nil limiter must always allow")
		}
	}
	if err := l.Wait(context.Background(), 1); err != nil {
		t.Fatalf("nil limiter Wait failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx, 1); err == nil {
		t.Fatal("expected cancelled context error")
	}
}

func TestNewJobLimiterBurstOfOne(t *testing.T) {
	l := NewJobLimiter(1)
	if !l.Allow(1) {
		t.Fatal("expected first job start to be allowed")
	}
	if l.Allow(1) {
		t.Fatal("expected second immediate job start to be throttled")
	}
}
