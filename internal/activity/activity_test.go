package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		a    Activity
		want bool
	}{
		{
			name: "within window and in progress",
			a: Activity{
				Status:   "IN_PROGRESS",
				StartsAt: now.Add(-time.Hour),
				EndsAt:   now.Add(time.Hour),
			},
			want: true,
		},
		{
			name: "not started",
			a: Activity{
				Status:   "IN_PROGRESS",
				StartsAt: now.Add(time.Hour),
				EndsAt:   now.Add(2 * time.Hour),
			},
			want: false,
		},
		{
			name: "already ended",
			a: Activity{
				Status:   "IN_PROGRESS",
				StartsAt: now.Add(-2 * time.Hour),
				EndsAt:   now.Add(-time.Hour),
			},
			want: false,
		},
		{
			name: "scheduled, not started yet even if window has begun",
			a: Activity{
				Status:   "SCHEDULED",
				StartsAt: now.Add(-time.Hour),
				EndsAt:   now.Add(time.Hour),
			},
			want: false,
		},
		{
			name: "open-ended window with no EndsAt",
			a: Activity{
				Status:   "IN_PROGRESS",
				StartsAt: now.Add(-time.Hour),
			},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.InWindow(now))
		})
	}
}
