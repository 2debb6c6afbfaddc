package markethours

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func TestIsRegularHours(t *testing.T) {
	p := NewPolicy()

	// All in America/New_York (-05:00 in March before DST, -04:00 after).
	tests := []struct {
		name string
		ts   string
		want bool
	}{
		{"before open", "2024-03-05T09:29:00-05:00", false},
		{"exactly open", "2024-03-05T09:30:00-05:00", true},
		{"mid session", "2024-03-05T12:00:00-05:00", true},
		{"exactly close", "2024-03-05T16:00:00-05:00", true},
		{"after close", "2024-03-05T16:01:00-05:00", false},
		{"pre market", "2024-03-05T07:00:00-05:00", false},
		{"after hours", "2024-03-05T19:30:00-05:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.IsRegularHours(mustTime(t, tt.ts)); got != tt.want {
				t.Errorf("IsRegularHours(%s) = %v, want %v", tt.ts, got, tt.want)
			}
		})
	}
}

func TestIsRegularHoursConvertsTimezone(t *testing.T) {
	p := NewPolicy()

	// 17:00 UTC on a March standard-time day is noon in New York.
	ts := mustTime(t, "2024-03-05T17:00:00Z")
	if !p.IsRegularHours(ts) {
		t.Error("noon exchange time should be regular hours regardless of input zone")
	}
}

func TestIsTradingDay(t *testing.T) {
	p := NewPolicy()

	tuesday := mustTime(t, "2024-03-05T12:00:00-05:00")
	if !p.IsTradingDay(tuesday) {
		t.Error("a regular Tuesday should be a trading day")
	}

	saturday := mustTime(t, "2024-03-09T12:00:00-05:00")
	if p.IsTradingDay(saturday) {
		t.Error("Saturday should not be a trading day")
	}
}

func TestSessionOpen(t *testing.T) {
	p := NewPolicy()

	tests := []struct {
		name string
		now  string
		want string
	}{
		{
			name: "mid session returns same day open",
			now:  "2024-03-05T11:00:00-05:00",
			want: "2024-03-05T09:30:00-05:00",
		},
		{
			name: "before open walks back one session",
			now:  "2024-03-05T08:00:00-05:00",
			want: "2024-03-04T09:30:00-05:00",
		},
		{
			name: "saturday walks back to friday",
			now:  "2024-03-09T12:00:00-05:00",
			want: "2024-03-08T09:30:00-05:00",
		},
		{
			name: "sunday walks back to friday",
			now:  "2024-03-10T12:00:00-04:00",
			want: "2024-03-08T09:30:00-05:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.SessionOpen(mustTime(t, tt.now))
			want := mustTime(t, tt.want)
			if !got.Equal(want) {
				t.Errorf("SessionOpen(%s) = %v, want %v", tt.now, got, want)
			}
		})
	}
}
