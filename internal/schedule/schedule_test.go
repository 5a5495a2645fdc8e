package schedule

import (
	"testing"
	"time"
)

func TestNextRunAtStartHour(t *testing.T) {
	current := time.Date(2025, 11, 3, 21, 0, 0, 0, time.UTC)
	s, err := New(23, func() time.Time { return current })
	if err != nil {
		t.Fatal(err)
	}

	want := time.Date(2025, 11, 3, 23, 0, 0, 0, time.UTC)
	if got := s.NextRun(); !got.Equal(want) {
		t.Errorf("NextRun() = %v, want %v", got, want)
	}

	current = time.Date(2025, 11, 3, 23, 30, 0, 0, time.UTC)
	want = time.Date(2025, 11, 4, 23, 0, 0, 0, time.UTC)
	if got := s.NextRun(); !got.Equal(want) {
		t.Errorf("NextRun() after start hour = %v, want %v", got, want)
	}
}

func TestShouldRunFiresOncePerNight(t *testing.T) {
	current := time.Date(2025, 11, 3, 21, 0, 0, 0, time.UTC)
	s, err := New(23, func() time.Time { return current })
	if err != nil {
		t.Fatal(err)
	}

	if s.ShouldRun() {
		t.Error("should not run before the start hour")
	}

	current = time.Date(2025, 11, 3, 23, 5, 0, 0, time.UTC)
	if !s.ShouldRun() {
		t.Error("should run after the start hour passes")
	}

	s.MarkRunning()
	if s.ShouldRun() {
		t.Error("should not overlap an active run")
	}

	s.MarkComplete()
	if s.ShouldRun() {
		t.Error("should not fire twice in the same night")
	}

	current = time.Date(2025, 11, 4, 23, 5, 0, 0, time.UTC)
	if !s.ShouldRun() {
		t.Error("should fire again the next night")
	}
}

func TestNewRejectsBadStartHour(t *testing.T) {
	if _, err := New(24, nil); err == nil {
		t.Error("expected error for hour 24")
	}
	if _, err := New(-1, nil); err == nil {
		t.Error("expected error for negative hour")
	}
}

func TestParseCron(t *testing.T) {
	spec, err := ParseCron("0 3 * * *")
	if err != nil {
		t.Fatal(err)
	}

	from := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	want := time.Date(2025, 11, 4, 3, 0, 0, 0, time.UTC)
	if got := spec.Next(from); !got.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", from, got, want)
	}

	if _, err := ParseCron("not a cron line"); err == nil {
		t.Error("expected parse error")
	}
}
