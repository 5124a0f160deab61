package schedule

import (
	"testing"
	"time"

	"github.com/ordinaut/ordinaut/internal/domain"
)

func TestNextAfter_Once(t *testing.T) {
	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("future instant fires once", func(t *testing.T) {
		next, err := NextAfter(domain.ScheduleOnce, "2025-06-02T10:00:00Z", "UTC", ref)
		if err != nil {
			t.Fatalf("NextAfter: %v", err)
		}
		want := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
		if !next.Equal(want) {
			t.Fatalf("next = %v, want %v", next, want)
		}
	})

	t.Run("past instant returns none", func(t *testing.T) {
		next, err := NextAfter(domain.ScheduleOnce, "2025-05-01T10:00:00Z", "UTC", ref)
		if err != nil {
			t.Fatalf("NextAfter: %v", err)
		}
		if !next.IsZero() {
			t.Fatalf("expected none, got %v", next)
		}
	})

	t.Run("malformed instant is invalid", func(t *testing.T) {
		_, err := NextAfter(domain.ScheduleOnce, "not-a-timestamp", "UTC", ref)
		if err != ErrInvalidExpression {
			t.Fatalf("expected ErrInvalidExpression, got %v", err)
		}
	})
}

func TestNextAfter_Event(t *testing.T) {
	next, err := NextAfter(domain.ScheduleEvent, "orders.created", "UTC", time.Now())
	if err != nil {
		t.Fatalf("NextAfter: %v", err)
	}
	if !next.IsZero() {
		t.Fatalf("event-kind tasks must never be armed with a timer, got %v", next)
	}
}

func TestNextAfter_UnknownKind(t *testing.T) {
	_, err := NextAfter(domain.ScheduleKind("bogus"), "x", "UTC", time.Now())
	if err != ErrInvalidExpression {
		t.Fatalf("expected ErrInvalidExpression, got %v", err)
	}
}
