package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pcristin/flashsale/internal/pipeline"
)

func TestStatusForResult(t *testing.T) {
	cases := []struct {
		kind pipeline.Kind
		want int
	}{
		{pipeline.KindConfirmed, http.StatusOK},
		{pipeline.KindBlocked, http.StatusForbidden},
		{pipeline.KindChallenged, http.StatusLocked},
		{pipeline.KindQueued, http.StatusAccepted},
		{pipeline.KindOutOfWindow, http.StatusBadRequest},
		{pipeline.KindLimitExceeded, http.StatusUnprocessableEntity},
		{pipeline.KindSoldOut, http.StatusGone},
		{pipeline.KindSystemBusy, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, statusForResult(tc.kind), "kind=%s", tc.kind)
	}
}

func TestStatusForResultUnknownDefaultsToInternalError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusForResult(pipeline.Kind(999)))
}
