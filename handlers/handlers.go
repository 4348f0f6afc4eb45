package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-chat/errors"
	"github.com/nijaru/yt-chat/middleware"
	"github.com/nijaru/yt-chat/models"
	"github.com/nijaru/yt-chat/utils"
	"github.com/nijaru/yt-chat/validation"
)

const maxBodyBytes = 64 * 1024

type Assistant interface {
	ProcessVideo(ctx context.Context, userID, videoID string) (string, error)
	AnswerQuestion(ctx context.Context, userID, question string) (string, error)
	ClearSession(ctx context.Context, userID string) error
	Summary(ctx context.Context, userID string) (*models.SessionRecord, error)
	Translate(ctx context.Context, userID, language string) (string, error)
}

type Handler struct {
	assistant Assistant
}

func NewHandler(assistant Assistant) *Handler {
	return &Handler{assistant: assistant}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /api/videos", h.ProcessVideo)
	mux.HandleFunc("POST /api/questions", h.AnswerQuestion)
	mux.HandleFunc("POST /api/translations", h.Translate)
	mux.HandleFunc("GET /api/sessions/{userID}/summary", h.Summary)
	mux.HandleFunc("DELETE /api/sessions/{userID}", h.ClearSession)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ProcessVideo handles POST /api/videos
func (h *Handler) ProcessVideo(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.ProcessVideo"
	logger := middleware.GetLogger(r.Context())

	var req models.ProcessVideoRequest
	if err := readJSON(w, r, &req); err != nil {
		utils.RespondWithError(w, err)
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		utils.RespondWithError(w, errors.InvalidInput(op, nil, "user_id is required"))
		return
	}

	videoID, err := validation.ExtractVideoID(req.URL)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"video_id": videoID,
	}).Info("Processing video")

	summary, err := h.assistant.ProcessVideo(r.Context(), userID, videoID)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.ProcessVideoResponse{
		VideoID: videoID,
		Summary: summary,
	})
}

// AnswerQuestion handles POST /api/questions
func (h *Handler) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.AnswerQuestion"

	var req models.QuestionRequest
	if err := readJSON(w, r, &req); err != nil {
		utils.RespondWithError(w, err)
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		utils.RespondWithError(w, errors.InvalidInput(op, nil, "user_id is required"))
		return
	}

	answer, err := h.assistant.AnswerQuestion(r.Context(), userID, req.Question)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.QuestionResponse{Answer: answer})
}

// Translate handles POST /api/translations
func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.Translate"

	var req models.TranslateRequest
	if err := readJSON(w, r, &req); err != nil {
		utils.RespondWithError(w, err)
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		utils.RespondWithError(w, errors.InvalidInput(op, nil, "user_id is required"))
		return
	}

	translated, err := h.assistant.Translate(r.Context(), userID, req.Language)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.TranslateResponse{
		Language: strings.TrimSpace(req.Language),
		Summary:  translated,
	})
}

// Summary handles GET /api/sessions/{userID}/summary
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	record, err := h.assistant.Summary(r.Context(), r.PathValue("userID"))
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, models.NewSessionResponse(record))
}

// ClearSession handles DELETE /api/sessions/{userID}
func (h *Handler) ClearSession(w http.ResponseWriter, r *http.Request) {
	if err := h.assistant.ClearSession(r.Context(), r.PathValue("userID")); err != nil {
		utils.RespondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	const op = "handlers.readJSON"

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.InvalidInput(op, err, "Invalid JSON request body")
	}
	return nil
}
