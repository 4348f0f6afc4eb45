package assistant

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-chat/chunking"
	"github.com/nijaru/yt-chat/errors"
	"github.com/nijaru/yt-chat/models"
	"github.com/nijaru/yt-chat/relevance"
	"github.com/nijaru/yt-chat/validation"
)

// MinTranscriptChars is the shortest transcript worth summarizing.
const MinTranscriptChars = 20

type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, videoID string) (*models.Transcript, error)
}

type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type SessionStore interface {
	Get(ctx context.Context, userID string) (*models.SessionRecord, error)
	Put(ctx context.Context, record *models.SessionRecord) error
	Clear(ctx context.Context, userID string) error
}

type RateLimiter interface {
	CheckAndRecord(userID string, now time.Time, window time.Duration, maxRequests int) (bool, int)
	RetryAfter(userID string, now time.Time, window time.Duration) time.Duration
}

type Config struct {
	MaxChunkChars   int
	OverlapChars    int
	TopK            int
	SessionTTL      time.Duration
	RateWindow      time.Duration
	RateMaxRequests int
	// SinglePassChars is the longest transcript summarized with one model
	// call. Zero always folds over chunks.
	SinglePassChars int
}

type Service struct {
	limiter RateLimiter
	store   SessionStore
	fetcher TranscriptFetcher
	model   TextGenerator
	config  Config
	now     func() time.Time
	logger  *logrus.Entry
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	limiter RateLimiter,
	store SessionStore,
	fetcher TranscriptFetcher,
	model TextGenerator,
	cfg Config,
	opts ...Option,
) *Service {
	s := &Service{
		limiter: limiter,
		store:   store,
		fetcher: fetcher,
		model:   model,
		config:  cfg,
		now:     time.Now,
		logger:  logrus.WithField("component", "assistant"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessVideo fetches, chunks and summarizes the video and makes it the
// user's active session. Nothing is stored unless the summary succeeds.
func (s *Service) ProcessVideo(ctx context.Context, userID, videoID string) (string, error) {
	const op = "Assistant.ProcessVideo"
	logger := s.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"video_id": videoID,
	})

	if userID == "" {
		return "", errors.InvalidInput(op, nil, "User ID is required")
	}
	if videoID == "" {
		return "", errors.InvalidInput(op, nil, "Video ID is required")
	}
	if err := s.checkRate(op, userID); err != nil {
		logger.Info("Rate limited")
		return "", err
	}

	transcript, err := s.fetchTranscript(ctx, videoID)
	if err != nil {
		logger.WithError(err).Warn("Transcript unavailable")
		return "", err
	}

	text := transcript.Text()
	chunks, err := chunking.Chunk(text, s.config.MaxChunkChars, s.config.OverlapChars)
	if err != nil {
		return "", err
	}

	start := s.now()
	summary, err := s.summarize(ctx, text, chunks)
	if err != nil {
		logger.WithError(err).Error("Summary generation failed")
		return "", err
	}

	now := s.now()
	record := models.NewSessionRecord(userID, videoID, now, s.config.SessionTTL)
	record.Language = transcript.Language
	record.Summary = summary
	record.Chunks = chunks

	if err := s.store.Put(ctx, record); err != nil {
		logger.WithError(err).Error("Failed to store session")
		return "", err
	}

	logger.WithFields(logrus.Fields{
		"chunks":   len(chunks),
		"chars":    utf8.RuneCountInString(text),
		"language": transcript.Language,
		"duration": now.Sub(start).String(),
	}).Info("Video processed")

	return summary, nil
}

// AnswerQuestion answers from the user's active session only.
func (s *Service) AnswerQuestion(ctx context.Context, userID, question string) (string, error) {
	const op = "Assistant.AnswerQuestion"
	logger := s.logger.WithField("user_id", userID)

	if userID == "" {
		return "", errors.InvalidInput(op, nil, "User ID is required")
	}
	if err := s.checkRate(op, userID); err != nil {
		logger.Info("Rate limited")
		return "", err
	}

	record, err := s.activeSession(ctx, op, userID)
	if err != nil {
		return "", err
	}

	question, err = validation.ValidateQuestion(question)
	if err != nil {
		return "", err
	}

	selected, err := relevance.SelectContext(question, record.Chunks, s.config.TopK)
	if err != nil {
		return "", errors.Internal(op, err, "Failed to select context")
	}

	answer, err := s.generate(ctx, buildQAPrompt(selected, question))
	if err != nil {
		logger.WithError(err).Error("Answer generation failed")
		return "", errors.ModelError(op, err, "Failed to answer question")
	}

	logger.WithFields(logrus.Fields{
		"video_id":      record.VideoID,
		"context_index": chunkIndexes(selected),
	}).Info("Question answered")

	return answer, nil
}

// ClearSession drops the user's active session. Clearing twice is fine.
func (s *Service) ClearSession(ctx context.Context, userID string) error {
	const op = "Assistant.ClearSession"

	if userID == "" {
		return errors.InvalidInput(op, nil, "User ID is required")
	}
	if err := s.store.Clear(ctx, userID); err != nil {
		return err
	}
	s.logger.WithField("user_id", userID).Info("Session cleared")
	return nil
}

// Summary returns the user's active session without calling the model.
func (s *Service) Summary(ctx context.Context, userID string) (*models.SessionRecord, error) {
	const op = "Assistant.Summary"

	if userID == "" {
		return nil, errors.InvalidInput(op, nil, "User ID is required")
	}
	return s.activeSession(ctx, op, userID)
}

// Translate renders the stored summary in another language. The session
// itself is left untouched.
func (s *Service) Translate(ctx context.Context, userID, language string) (string, error) {
	const op = "Assistant.Translate"

	if userID == "" {
		return "", errors.InvalidInput(op, nil, "User ID is required")
	}
	if err := s.checkRate(op, userID); err != nil {
		return "", err
	}

	record, err := s.activeSession(ctx, op, userID)
	if err != nil {
		return "", err
	}

	language, err = validation.ValidateLanguage(language)
	if err != nil {
		return "", err
	}

	translated, err := s.generate(ctx, buildTranslatePrompt(language, record.Summary))
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":  userID,
			"language": language,
		}).Error("Translation failed")
		return "", errors.ModelError(op, err, "Failed to translate summary")
	}
	return translated, nil
}

func (s *Service) checkRate(op, userID string) error {
	now := s.now()
	admitted, _ := s.limiter.CheckAndRecord(userID, now, s.config.RateWindow, s.config.RateMaxRequests)
	if admitted {
		return nil
	}
	wait := s.limiter.RetryAfter(userID, now, s.config.RateWindow)
	return errors.RateLimited(op, wait, "Too many requests, please wait before trying again")
}

func (s *Service) fetchTranscript(ctx context.Context, videoID string) (*models.Transcript, error) {
	const op = "Assistant.fetchTranscript"

	if err := ctx.Err(); err != nil {
		return nil, errors.TranscriptUnavailable(op, err, "Transcript fetch cancelled")
	}

	transcript, err := s.fetcher.FetchTranscript(ctx, videoID)
	if err != nil {
		if errors.IsTranscriptUnavailable(err) {
			return nil, err
		}
		return nil, errors.TranscriptUnavailable(op, err, "Failed to fetch transcript")
	}
	if transcript == nil || utf8.RuneCountInString(strings.TrimSpace(transcript.Text())) < MinTranscriptChars {
		return nil, errors.TranscriptUnavailable(op, nil, "Transcript is empty or too short")
	}
	return transcript, nil
}

func (s *Service) activeSession(ctx context.Context, op, userID string) (*models.SessionRecord, error) {
	record, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NoActiveSession(op, err, "No active video session, process a video first")
		}
		if errors.IsStorageError(err) {
			return nil, err
		}
		return nil, errors.StorageError(op, err, "Failed to load session")
	}
	return record, nil
}

// generate makes one model call. A cancelled context fails before the
// call is attempted and an empty completion counts as a failure.
func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := s.model.GenerateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", pkgerrors.New("model returned an empty response")
	}
	return text, nil
}

func chunkIndexes(chunks []models.TranscriptChunk) []int {
	idx := make([]int, len(chunks))
	for i, c := range chunks {
		idx[i] = c.Index
	}
	return idx
}
