package attendance

import (
	"errors"
	"testing"

	"ROLLCALL-backend/internal/platform/apierr"
)

var allStatuses = []Status{StatusPresent, StatusLate, StatusAbsent}

func TestClassify_WindowClosed_RejectsEveryClaim(t *testing.T) {
	const windowMins, lateAfter = 10, 5
	for _, elapsed := range []int{-60, -1, 11, 120} {
		for _, st := range allStatuses {
			open := elapsed >= 0 && elapsed <= windowMins
			_, err := Classify(st, elapsed, lateAfter, open)
			if !errors.Is(err, apierr.ErrWindowClosed) {
				t.Errorf("elapsed=%d status=%s: expected window closed, got %v", elapsed, st, err)
			}
		}
	}
}

func TestClassify_PresentAfterLateAfter_BecomesLate(t *testing.T) {
	for elapsed := 6; elapsed <= 10; elapsed++ {
		got, err := Classify(StatusPresent, elapsed, 5, true)
		if err != nil {
			t.Fatalf("elapsed=%d: unexpected error %v", elapsed, err)
		}
		if got != StatusLate {
			t.Errorf("elapsed=%d: got %s, want L", elapsed, got)
		}
	}
}

func TestClassify_PresentWithinGrace_StaysPresent(t *testing.T) {
	for elapsed := 0; elapsed <= 5; elapsed++ {
		got, err := Classify(StatusPresent, elapsed, 5, true)
		if err != nil {
			t.Fatalf("elapsed=%d: unexpected error %v", elapsed, err)
		}
		if got != StatusPresent {
			t.Errorf("elapsed=%d: got %s, want P", elapsed, got)
		}
	}
}

func TestClassify_LateAndAbsent_PassThrough(t *testing.T) {
	for elapsed := 0; elapsed <= 10; elapsed++ {
		for _, st := range []Status{StatusLate, StatusAbsent} {
			got, err := Classify(st, elapsed, 5, true)
			if err != nil {
				t.Fatalf("elapsed=%d status=%s: unexpected error %v", elapsed, st, err)
			}
			if got != st {
				t.Errorf("elapsed=%d: got %s, want %s", elapsed, got, st)
			}
		}
	}
}

func TestClassify_UnknownStatus_IsValidationError(t *testing.T) {
	_, err := Classify(Status("X"), 1, 5, true)
	if !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

// late_after_mins > window_mins: 窓の判定が先なので Present が Late に変わることはない
func TestClassify_LateAfterBeyondWindow_WindowCheckFirst(t *testing.T) {
	const windowMins, lateAfter = 5, 15
	got, err := Classify(StatusPresent, 5, lateAfter, 5 <= windowMins)
	if err != nil || got != StatusPresent {
		t.Errorf("elapsed=5: got %s, %v; want P", got, err)
	}
	_, err = Classify(StatusPresent, 6, lateAfter, 6 <= windowMins)
	if !errors.Is(err, apierr.ErrWindowClosed) {
		t.Errorf("elapsed=6: expected window closed, got %v", err)
	}
}

func TestParseStatus_AcceptsLettersAndWords(t *testing.T) {
	for in, want := range map[string]Status{"P": StatusPresent, "late": StatusLate, "Absent": StatusAbsent} {
		got, ok := ParseStatus(in)
		if !ok || got != want {
			t.Errorf("ParseStatus(%q) = %s, %v", in, got, ok)
		}
	}
	if _, ok := ParseStatus("E"); ok {
		t.Error("ParseStatus(E) should fail")
	}
}
