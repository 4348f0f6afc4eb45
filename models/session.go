package models

import (
	"strings"
	"time"
)

// TranscriptChunk is a bounded slice of transcript text. Offsets are rune
// offsets into the concatenated transcript.
type TranscriptChunk struct {
	Index       int    `json:"index" msgpack:"i"`
	Text        string `json:"text" msgpack:"t"`
	StartOffset int    `json:"start_offset" msgpack:"s"`
	EndOffset   int    `json:"end_offset" msgpack:"e"`
}

// SessionRecord is the per-user state for the most recently processed video.
type SessionRecord struct {
	UserID    string            `json:"user_id" msgpack:"user_id"`
	VideoID   string            `json:"video_id" msgpack:"video_id"`
	Language  string            `json:"language,omitempty" msgpack:"language"`
	Summary   string            `json:"summary" msgpack:"summary"`
	Chunks    []TranscriptChunk `json:"chunks" msgpack:"chunks"`
	CreatedAt time.Time         `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" msgpack:"updated_at"`
	ExpiresAt time.Time         `json:"expires_at" msgpack:"expires_at"`
}

// NewSessionRecord stamps a record created at now that expires after ttl.
func NewSessionRecord(userID, videoID string, now time.Time, ttl time.Duration) *SessionRecord {
	return &SessionRecord{
		UserID:    userID,
		VideoID:   videoID,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func (r *SessionRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Clone returns a copy that shares no slices with r.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Chunks != nil {
		c.Chunks = make([]TranscriptChunk, len(r.Chunks))
		copy(c.Chunks, r.Chunks)
	}
	return &c
}

// Segment is one timed caption line.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

type Transcript struct {
	VideoID  string    `json:"video_id"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Text joins the segment texts with single spaces.
func (t *Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
