package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/misintel/misintel/internal/check"
	"github.com/misintel/misintel/internal/model"
)

// errorBody is the shape of every non-200 advanced-check response.
type errorBody struct {
	Error      string   `json:"error,omitempty"`
	IsFake     bool     `json:"isFake"`
	Confidence int      `json:"confidence"`
	Summary    string   `json:"summary"`
	Reasons    []string `json:"reasons"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeJSON(w, http.StatusTooManyRequests, errorBody{
		Summary: "Analysis failed",
		Reasons: []string{
			"Request failed with status 429",
			"Please check your input and try again",
		},
	})
}

// writeCheckError maps a Check error to its status and body.
func writeCheckError(w http.ResponseWriter, err error) {
	var ie *model.InputError
	switch {
	case errors.As(err, &ie):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "Missing input",
			Summary: ie.Summary,
			Reasons: []string{ie.Reason},
		})
	case errors.Is(err, check.ErrNotConfigured):
		zap.L().Error("server: missing configuration", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "Server configuration error",
			Summary: "API key not configured",
			Reasons: []string{"Google API key missing from environment variables"},
		})
	default:
		writeServerError(w, err)
	}
}

func writeServerError(w http.ResponseWriter, err error) {
	zap.L().Error("server: request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Error:   "Server error",
		Summary: "Internal server error occurred",
		Reasons: []string{err.Error(), "Please try again later"},
	})
}
