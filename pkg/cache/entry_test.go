package cache

import (
	"testing"
	"time"
)

func TestEntry_ExpiredAtBoundary(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := &Entry{Expires: now.Add(10 * time.Second)}

	if entry.expiredAt(now.Add(9 * time.Second)) {
		t.Error("entry should be live before its expiry")
	}
	if !entry.expiredAt(now.Add(10 * time.Second)) {
		t.Error("entry should be expired exactly at its expiry")
	}
}

func TestEntry_TTLAt(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		expires time.Time
		want    time.Duration
	}{
		{
			name:    "one hour remaining",
			expires: now.Add(time.Hour),
			want:    time.Hour,
		},
		{
			name:    "5 minutes remaining",
			expires: now.Add(5 * time.Minute),
			want:    5 * time.Minute,
		},
		{
			name:    "at expiry",
			expires: now,
			want:    0,
		},
		{
			name:    "already expired",
			expires: now.Add(-time.Hour),
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{
				Expires: tt.expires,
			}
			if got := entry.ttlAt(now); got != tt.want {
				t.Errorf("ttlAt() = %v, want %v", got, tt.want)
			}
		})
	}
}
