package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStringCoversEveryOutcome(t *testing.T) {
	cases := map[Kind]string{
		KindConfirmed:     "CONFIRMED",
		KindBlocked:       "BLOCKED",
		KindChallenged:    "CHALLENGED",
		KindQueued:        "QUEUED",
		KindOutOfWindow:   "OUT_OF_WINDOW",
		KindLimitExceeded: "LIMIT_EXCEEDED",
		KindSoldOut:       "SOLD_OUT",
		KindSystemBusy:    "SYSTEM_BUSY",
	}

	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}

func TestKindStringUnknownDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = Kind(999).String()
	})
}
