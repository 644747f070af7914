package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2026, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)

	updated := clock.Advance(90 * time.Minute)
	if !updated.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", updated)
	}

	clock.Set(start.Add(2 * time.Hour))
	if got := clock.NowFunc()(); !got.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("expected %v, got %v", start.Add(2*time.Hour), got)
	}
}

func TestClockAt(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	clock := NewClock(time.Date(2026, time.March, 1, 8, 0, 0, 0, madrid))

	got := clock.At("2026-03-02", "9:30 AM")
	want := time.Date(2026, time.March, 2, 9, 30, 0, 0, madrid)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for a malformed date")
		}
	}()
	clock.At("not a date", "09:00")
}
