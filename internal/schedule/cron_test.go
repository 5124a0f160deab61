package schedule

import (
	"testing"
	"time"

	"github.com/ordinaut/ordinaut/internal/domain"
)

func TestNextAfter_CronDSTSpringForward(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Chisinau")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 2025-03-30 is the Chisinau spring-forward day; 02:30 local does not
	// exist. The cron "30 2 * * *" must fire on the 29th and the 31st,
	// never on the 30th.
	ref := time.Date(2025, 3, 29, 0, 0, 0, 0, loc)

	first, err := NextAfter(domain.ScheduleCron, "30 2 * * *", "Europe/Chisinau", ref)
	if err != nil {
		t.Fatalf("NextAfter: %v", err)
	}
	want := time.Date(2025, 3, 29, 2, 30, 0, 0, loc)
	if !first.Equal(want) {
		t.Fatalf("first firing = %v, want %v", first, want)
	}

	second, err := NextAfter(domain.ScheduleCron, "30 2 * * *", "Europe/Chisinau", first)
	if err != nil {
		t.Fatalf("NextAfter: %v", err)
	}
	if second.Day() == 30 {
		t.Fatalf("cron fired on the non-existent day: %v", second)
	}
	wantSecond := time.Date(2025, 3, 31, 2, 30, 0, 0, loc)
	if !second.Equal(wantSecond) {
		t.Fatalf("second firing = %v, want %v", second, wantSecond)
	}
}

func TestNextAfter_CronInvalidExpression(t *testing.T) {
	_, err := NextAfter(domain.ScheduleCron, "not a cron expr", "UTC", time.Now())
	if err != ErrInvalidExpression {
		t.Fatalf("expected ErrInvalidExpression, got %v", err)
	}
}

func TestNextAfter_CronInvalidZone(t *testing.T) {
	_, err := NextAfter(domain.ScheduleCron, "* * * * *", "Not/AZone", time.Now())
	if err != ErrInvalidZone {
		t.Fatalf("expected ErrInvalidZone, got %v", err)
	}
}

func TestNextAfter_CronDayOfMonthOrDayOfWeek(t *testing.T) {
	loc, _ := time.LoadLocation("UTC")
	// Both DOM and DOW restricted: matches when either matches.
	ref := time.Date(2025, 1, 1, 0, 0, 0, 0, loc) // a Wednesday
	next, err := NextAfter(domain.ScheduleCron, "0 0 15 * MON", "UTC", ref)
	if err != nil {
		t.Fatalf("NextAfter: %v", err)
	}
	if next.Day() != 6 && next.Day() != 15 {
		t.Fatalf("expected the 15th or a Monday, got %v", next)
	}
}
