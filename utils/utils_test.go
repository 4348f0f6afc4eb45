package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/nijaru/yt-chat/errors"
)

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedKind string
	}{
		{"invalid input", errors.InvalidInput("op", nil, "Question is required"), http.StatusBadRequest, "invalid_input"},
		{"rate limited", errors.RateLimited("op", 30*time.Second, "slow down"), http.StatusTooManyRequests, "rate_limited"},
		{"transcript unavailable", errors.TranscriptUnavailable("op", nil, "none"), http.StatusUnprocessableEntity, "transcript_unavailable"},
		{"no active session", errors.NoActiveSession("op", nil, "none"), http.StatusNotFound, "no_active_session"},
		{"model error", errors.ModelError("op", pkgerrors.New("api key sk-secret rejected"), "failed"), http.StatusBadGateway, "model_error"},
		{"storage error", errors.StorageError("op", pkgerrors.New("database is locked"), "failed"), http.StatusServiceUnavailable, "storage_error"},
		{"plain error", pkgerrors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	seen := make(map[string]string)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondWithError(rr, tt.err)

			if rr.Code != tt.expectedCode {
				t.Errorf("expected status %d, got %d", tt.expectedCode, rr.Code)
			}

			var body errorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Kind != tt.expectedKind {
				t.Errorf("expected kind %s, got %s", tt.expectedKind, body.Kind)
			}
			if strings.Contains(body.Error, "sk-secret") || strings.Contains(body.Error, "locked") {
				t.Errorf("response leaked the cause: %q", body.Error)
			}
			if other, dup := seen[body.Error]; dup {
				t.Errorf("message %q shared with %s", body.Error, other)
			}
			seen[body.Error] = tt.name
		})
	}
}

func TestRespondWithErrorSetsRetryAfter(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondWithError(rr, pkgerrors.Wrap(errors.RateLimited("op", 1500*time.Millisecond, "slow down"), "answer"))

	if got := rr.Header().Get("Retry-After"); got != "2" {
		t.Errorf("expected Retry-After 2, got %q", got)
	}
}

func TestRespondWithJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondWithJSON(rr, http.StatusOK, map[string]string{"answer": "42"})

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}
	expected := `{"answer":"42"}`
	if strings.TrimSpace(rr.Body.String()) != expected {
		t.Errorf("expected %s, got %s", expected, rr.Body.String())
	}
}

func TestRespondWithJSONEncodeFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondWithJSON(rr, http.StatusOK, map[string]interface{}{"bad": make(chan int)})

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rr.Code)
	}
}
