package models

import "time"

type ProcessVideoRequest struct {
	UserID string `json:"user_id"`
	URL    string `json:"url"`
}

type ProcessVideoResponse struct {
	VideoID string `json:"video_id"`
	Summary string `json:"summary"`
}

type QuestionRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
}

type QuestionResponse struct {
	Answer string `json:"answer"`
}

type TranslateRequest struct {
	UserID   string `json:"user_id"`
	Language string `json:"language"`
}

type TranslateResponse struct {
	Language string `json:"language"`
	Summary  string `json:"summary"`
}

// SessionResponse is the public view of a SessionRecord; chunks stay server side.
type SessionResponse struct {
	VideoID   string    `json:"video_id"`
	Language  string    `json:"language,omitempty"`
	Summary   string    `json:"summary"`
	Chunks    int       `json:"chunks"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewSessionResponse(r *SessionRecord) *SessionResponse {
	return &SessionResponse{
		VideoID:   r.VideoID,
		Language:  r.Language,
		Summary:   r.Summary,
		Chunks:    len(r.Chunks),
		ExpiresAt: r.ExpiresAt,
	}
}
