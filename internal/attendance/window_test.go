package attendance

import (
	"testing"
	"time"
)

func TestEvaluate_ElapsedIsFlooredAndWindowInclusive(t *testing.T) {
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		now      time.Time
		elapsed  int
		open     bool
		pastLate bool
	}{
		{"before start", start.Add(-30 * time.Second), -1, false, false},
		{"at start", start, 0, true, false},
		{"59s counts as 0", start.Add(59 * time.Second), 0, true, false},
		{"at late-after", start.Add(5 * time.Minute), 5, true, false},
		{"just past late-after", start.Add(6 * time.Minute), 6, true, true},
		{"window edge 10:59", start.Add(10*time.Minute + 59*time.Second), 10, true, true},
		{"after window", start.Add(11 * time.Minute), 11, false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := Evaluate(start, tc.now, 10, 5)
			if w.ElapsedMins != tc.elapsed {
				t.Errorf("elapsed = %d, want %d", w.ElapsedMins, tc.elapsed)
			}
			if w.Open != tc.open {
				t.Errorf("open = %v, want %v", w.Open, tc.open)
			}
			if w.PastLateAfter != tc.pastLate {
				t.Errorf("pastLateAfter = %v, want %v", w.PastLateAfter, tc.pastLate)
			}
		})
	}
}

func TestLecture_StartAt_UsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("JST", 9*60*60)
	l := Lecture{LectureDate: "2026-10-19", StartTime: "09:00"}

	got, err := l.StartAt(loc)
	if err != nil {
		t.Fatalf("StartAt: %v", err)
	}
	want := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("StartAt = %v, want %v", got.UTC(), want)
	}
}

func TestLecture_StartAt_RejectsMalformedTime(t *testing.T) {
	l := Lecture{LectureID: 3, LectureDate: "2026-10-19", StartTime: "9am"}
	if _, err := l.StartAt(time.UTC); err == nil {
		t.Fatal("expected error for malformed start time")
	}
}
