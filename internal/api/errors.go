package api

import (
	"net/http"

	"github.com/pcristin/flashsale/internal/pipeline"
)

// statusForResult maps a pipeline.Kind to its HTTP status per SPEC_FULL.md §6.
func statusForResult(k pipeline.Kind) int {
	switch k {
	case pipeline.KindConfirmed:
		return http.StatusOK
	case pipeline.KindBlocked:
		return http.StatusForbidden
	case pipeline.KindChallenged:
		return http.StatusLocked
	case pipeline.KindQueued:
		return http.StatusAccepted
	case pipeline.KindOutOfWindow:
		return http.StatusBadRequest
	case pipeline.KindLimitExceeded:
		return http.StatusUnprocessableEntity
	case pipeline.KindSoldOut:
		return http.StatusGone
	case pipeline.KindSystemBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
