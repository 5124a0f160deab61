package schedule

import (
	"testing"
	"time"

	"github.com/ordinaut/ordinaut/internal/domain"
)

func TestNextAfter_RRuleBusinessMornings(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Chisinau")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// Created Sunday 2025-08-10 at 12:00 local.
	ref := time.Date(2025, 8, 10, 12, 0, 0, 0, loc)
	expr := "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR;BYHOUR=8;BYMINUTE=30"

	want := []time.Time{
		time.Date(2025, 8, 11, 8, 30, 0, 0, loc),
		time.Date(2025, 8, 12, 8, 30, 0, 0, loc),
		time.Date(2025, 8, 13, 8, 30, 0, 0, loc),
		time.Date(2025, 8, 14, 8, 30, 0, 0, loc),
		time.Date(2025, 8, 15, 8, 30, 0, 0, loc),
	}

	cursor := ref
	for i, w := range want {
		next, err := NextAfter(domain.ScheduleRRule, expr, "Europe/Chisinau", cursor)
		if err != nil {
			t.Fatalf("occurrence %d: NextAfter: %v", i, err)
		}
		if !next.Equal(w) {
			t.Fatalf("occurrence %d = %v, want %v", i, next, w)
		}
		cursor = next
	}
}

// nextAfter treats its ref argument as the rule's DTSTART (see nextRRule's
// doc comment), so COUNT is evaluated relative to whichever instant it was
// last called with, not accumulated across calls. COUNT=1 means "one
// occurrence starting at ref" — which is ref itself, so there is no future
// occurrence strictly after it.
func TestNextAfter_RRuleCountOfOneHasNoFutureOccurrence(t *testing.T) {
	ref := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	next, err := NextAfter(domain.ScheduleRRule, "FREQ=DAILY;COUNT=1", "UTC", ref)
	if err != nil {
		t.Fatalf("NextAfter: %v", err)
	}
	if !next.IsZero() {
		t.Fatalf("expected no future occurrence, got %v", next)
	}
}

func TestNextAfter_RRuleCountOfTwoYieldsOneFutureOccurrence(t *testing.T) {
	ref := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	next, err := NextAfter(domain.ScheduleRRule, "FREQ=DAILY;COUNT=2", "UTC", ref)
	if err != nil {
		t.Fatalf("NextAfter: %v", err)
	}
	want := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextAfter_RRuleUntilInPast(t *testing.T) {
	ref := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	expr := "FREQ=DAILY;UNTIL=20241231T000000Z"

	next, err := NextAfter(domain.ScheduleRRule, expr, "UTC", ref)
	if err != nil {
		t.Fatalf("NextAfter: %v", err)
	}
	if !next.IsZero() {
		t.Fatalf("expected no future occurrence, got %v", next)
	}
}

func TestNextAfter_RRuleCountAndUntilMutuallyExclusive(t *testing.T) {
	_, err := NextAfter(domain.ScheduleRRule, "FREQ=DAILY;COUNT=3;UNTIL=20251231T000000Z", "UTC", time.Now())
	if err != ErrInvalidExpression {
		t.Fatalf("expected ErrInvalidExpression, got %v", err)
	}
}

func TestNextAfter_RRuleMonthlyOrdinalBounds(t *testing.T) {
	_, err := NextAfter(domain.ScheduleRRule, "FREQ=MONTHLY;BYDAY=6MO", "UTC", time.Now())
	if err != ErrInvalidExpression {
		t.Fatalf("expected ErrInvalidExpression for out-of-range monthly ordinal, got %v", err)
	}
}

func TestNextAfter_RRuleLastFridayOfMonth(t *testing.T) {
	loc := time.UTC
	ref := time.Date(2025, 1, 1, 0, 0, 0, 0, loc)
	next, err := NextAfter(domain.ScheduleRRule, "FREQ=MONTHLY;BYDAY=-1FR;BYHOUR=9;BYMINUTE=0", "UTC", ref)
	if err != nil {
		t.Fatalf("NextAfter: %v", err)
	}
	if next.Weekday() != time.Friday {
		t.Fatalf("expected a Friday, got %v", next.Weekday())
	}
	if next.Month() != time.January {
		t.Fatalf("expected January, got %v", next.Month())
	}
	// Last Friday of January 2025 is the 31st.
	if next.Day() != 31 {
		t.Fatalf("expected the 31st, got %d", next.Day())
	}
}

func TestNextAfter_RRuleMonthDaySkipsShortMonths(t *testing.T) {
	loc := time.UTC
	ref := time.Date(2025, 1, 1, 0, 0, 0, 0, loc)
	next, err := NextAfter(domain.ScheduleRRule, "FREQ=MONTHLY;BYMONTHDAY=31;BYHOUR=0;BYMINUTE=0", "UTC", ref)
	if err != nil {
		t.Fatalf("NextAfter: %v", err)
	}
	// January has 31 days, so the first occurrence is Jan 31, skipping
	// February/April/June entirely afterward.
	if next.Month() != time.January || next.Day() != 31 {
		t.Fatalf("expected 2025-01-31, got %v", next)
	}

	after := next
	for i := 0; i < 3; i++ {
		n, err := NextAfter(domain.ScheduleRRule, "FREQ=MONTHLY;BYMONTHDAY=31;BYHOUR=0;BYMINUTE=0", "UTC", after)
		if err != nil {
			t.Fatalf("NextAfter: %v", err)
		}
		if n.Day() != 31 {
			t.Fatalf("expected day 31, got %v", n)
		}
		after = n
	}
}

func TestNextAfter_RRuleInvalidFreq(t *testing.T) {
	_, err := NextAfter(domain.ScheduleRRule, "FREQ=FORTNIGHTLY", "UTC", time.Now())
	if err != ErrInvalidExpression {
		t.Fatalf("expected ErrInvalidExpression, got %v", err)
	}
}
