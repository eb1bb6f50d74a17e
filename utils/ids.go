package utils

import "github.com/google/uuid"

// NewRequestID returns an id for correlating one HTTP request in logs.
func NewRequestID() string {
	return uuid.NewString()
}
