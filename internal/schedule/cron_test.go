package schedule

import (
	"testing"
	"time"
)

func TestCron_NextDue(t *testing.T) {
	c := New(nil)
	last := time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)
	now := last.Add(10 * time.Minute)

	tests := []struct {
		expr string
		want time.Time
	}{
		{expr: "@hourly", want: time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC)},
		{expr: "@daily", want: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{expr: "*/15 * * * *", want: time.Date(2024, 3, 10, 12, 45, 0, 0, time.UTC)},
		{expr: "@every 5m", want: last.Add(5 * time.Minute)},
	}
	for _, tt := range tests {
		got, err := c.NextDue(tt.expr, last, now)
		if err != nil {
			t.Fatalf("NextDue(%q): %v", tt.expr, err)
		}
		if !got.Equal(tt.want) {
			t.Fatalf("NextDue(%q) = %s, want %s", tt.expr, got, tt.want)
		}
	}
}

func TestCron_NeverFiredIsDueNow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := New(nil).NextDue("@daily", time.Time{}, now)
	if err != nil {
		t.Fatalf("NextDue: %v", err)
	}
	if !got.Equal(now) {
		t.Fatalf("NextDue = %s, want %s", got, now)
	}
}

func TestCron_InvalidExpression(t *testing.T) {
	if _, err := New(nil).NextDue("every tuesday", time.Now(), time.Now()); err == nil {
		t.Fatalf("expected error for invalid expression")
	}
	if err := Validate("0 6 * * 1-5"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := Validate("61 * * * *"); err == nil {
		t.Fatalf("Validate(61 * * * *) expected error")
	}
}
