package main

import (
	"fmt"

	"github.com/himanishpuri/KaraokeScore/pkg/karaoke"
)

// Contour limits for POST /api/score/contours
const (
	// MaxContourSamples is the largest contour accepted (~33 minutes at 100 Hz)
	MaxContourSamples = 200000

	// ContourWarningThreshold triggers logging for large requests
	ContourWarningThreshold = 50000
)

// ValidateContours checks the size of a contour request before scoring it.
func ValidateContours(r *karaoke.ContourRequest) error {
	if len(r.User) == 0 {
		return fmt.Errorf("user contour cannot be empty")
	}
	if len(r.Reference) == 0 {
		return fmt.Errorf("reference contour cannot be empty")
	}
	if n := max(len(r.User), len(r.Reference)); n > MaxContourSamples {
		return fmt.Errorf("too many samples: %d (maximum: %d)", n, MaxContourSamples)
	}
	if r.Tolerance != nil && !(*r.Tolerance >= 0) {
		return fmt.Errorf("tolerance must be zero or a positive number of cents")
	}
	return nil
}

// ListSessionsResponse is the response for GET /api/sessions
type ListSessionsResponse struct {
	Sessions []karaoke.Session `json:"sessions"`
	Count    int               `json:"count"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// DeleteSessionResponse is the response for DELETE /api/sessions/{id}
type DeleteSessionResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
