package ratelimit

import (
	"testing"
	"time"
)

func TestFixedWindow(t *testing.T) {
	l := New(NewMemoryStore(), 3, time.Minute)
	base := time.Unix(1_700_000_000, 0).Truncate(time.Minute)
	l.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("k") {
		t.Fatal("fourth request in the window should be rejected")
	}

	// Other keys are independent.
	if !l.Allow("other") {
		t.Fatal("separate key should have its own counter")
	}

	// A new window resets the counter.
	l.now = func() time.Time { return base.Add(time.Minute) }
	if !l.Allow("k") {
		t.Fatal("new window should admit requests again")
	}
}

func TestDisabledLimit(t *testing.T) {
	l := New(NewMemoryStore(), 0, time.Minute)
	for i := 0; i < 100; i++ {
		if !l.Allow("k") {
			t.Fatal("non-positive limit must disable limiting")
		}
	}
}
