package transcription

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-chat/errors"
	"github.com/nijaru/yt-chat/models"
)

type Fetcher interface {
	FetchTranscript(ctx context.Context, videoID string) (*models.Transcript, error)
}

type Archive interface {
	GetTranscript(ctx context.Context, videoID string) (*models.Transcript, error)
	SaveTranscript(ctx context.Context, transcript *models.Transcript) error
}

// ArchivedFetcher serves transcripts from the archive when present and
// archives freshly fetched ones. Archive failures are logged and never fail
// the fetch.
type ArchivedFetcher struct {
	next    Fetcher
	archive Archive
	logger  *logrus.Entry
}

func NewArchivedFetcher(next Fetcher, archive Archive) *ArchivedFetcher {
	return &ArchivedFetcher{
		next:    next,
		archive: archive,
		logger:  logrus.WithField("component", "transcript_archive"),
	}
}

func (f *ArchivedFetcher) FetchTranscript(ctx context.Context, videoID string) (*models.Transcript, error) {
	logger := f.logger.WithField("video_id", videoID)

	transcript, err := f.archive.GetTranscript(ctx, videoID)
	if err == nil && len(transcript.Segments) > 0 {
		logger.Debug("Transcript served from archive")
		return transcript, nil
	}
	if err != nil && !errors.IsNotFound(err) {
		logger.WithError(err).Warn("Transcript archive lookup failed")
	}

	transcript, err = f.next.FetchTranscript(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if err := f.archive.SaveTranscript(ctx, transcript); err != nil {
		logger.WithError(err).Warn("Failed to archive transcript")
	}
	return transcript, nil
}
