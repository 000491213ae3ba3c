package utils

import (
	"github.com/google/uuid"
)

// GenerateRequestID returns a fresh trace id for one HTTP request.
func GenerateRequestID() string {
	return uuid.NewString()
}
