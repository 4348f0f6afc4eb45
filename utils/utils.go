package utils

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-chat/errors"
)

// userMessages are the only error texts a client ever sees. Causes stay in
// the logs.
var userMessages = map[errors.Kind]string{
	errors.KindInvalidInput:          "",
	errors.KindRateLimited:           "Too many requests. Please wait a moment and try again.",
	errors.KindTranscriptUnavailable: "No transcript is available for this video. Try another video or one with captions enabled.",
	errors.KindNoActiveSession:       "No active video. Send a YouTube link first.",
	errors.KindModelError:            "The AI service is temporarily unavailable. Please try again.",
	errors.KindStorageError:          "Session storage is temporarily unavailable. Please try again later.",
	errors.KindNotFound:              "Not found.",
	errors.KindInternal:              "Internal server error",
}

type errorResponse struct {
	Error      string `json:"error"`
	Kind       string `json:"kind"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// UserMessage returns the client-facing text for err. Only InvalidInput
// errors pass their own message through, since those are written for the
// caller.
func UserMessage(err error) string {
	kind := errors.KindOf(err)
	if kind == errors.KindInvalidInput {
		if appErr, ok := errors.As(err); ok {
			return appErr.Message
		}
	}
	if msg, ok := userMessages[kind]; ok && msg != "" {
		return msg
	}
	return userMessages[errors.KindInternal]
}

func RespondWithError(w http.ResponseWriter, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Internal("utils.RespondWithError", err, "Internal server error")
	}

	fields := logrus.Fields{
		"status_code": appErr.Code,
		"kind":        appErr.Kind,
		"op":          appErr.Op,
		"error":       err.Error(),
	}
	if appErr.Code >= http.StatusInternalServerError {
		logrus.WithFields(fields).Error("Request failed")
	} else {
		logrus.WithFields(fields).Info("Request rejected")
	}

	resp := errorResponse{
		Error: UserMessage(err),
		Kind:  string(appErr.Kind),
	}
	if appErr.Kind == errors.KindRateLimited && appErr.RetryAfter > 0 {
		seconds := int(math.Ceil(appErr.RetryAfter.Seconds()))
		resp.RetryAfter = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Code)
	json.NewEncoder(w).Encode(resp)
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("Failed to encode JSON response")
		RespondWithError(w, errors.Internal("utils.RespondWithJSON", err, "Failed to encode response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(append(data, '\n'))
}
