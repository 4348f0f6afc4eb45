// Package storage archives fetched transcripts in an S3-compatible bucket
// (DigitalOcean Spaces, MinIO, AWS S3).
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	pkgerrors "github.com/pkg/errors"

	"github.com/nijaru/yt-chat/errors"
	"github.com/nijaru/yt-chat/models"
)

type SpacesConfig struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Bucket    string
	Prefix    string
}

type SpacesClient struct {
	client *s3.Client
	bucket string
	prefix string
	now    func() time.Time
}

type archivedTranscript struct {
	VideoID    string           `json:"video_id"`
	Language   string           `json:"language"`
	Segments   []models.Segment `json:"segments"`
	ArchivedAt time.Time        `json:"archived_at"`
}

func NewSpacesClient(ctx context.Context, cfg SpacesConfig) (*SpacesClient, error) {
	const op = "storage.NewSpacesClient"

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, errors.Internal(op, err, "unable to load SDK config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "transcripts"
	}

	return &SpacesClient{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
		now:    time.Now,
	}, nil
}

func (s *SpacesClient) key(videoID string) string {
	return fmt.Sprintf("%s/%s.json", s.prefix, videoID)
}

func (s *SpacesClient) SaveTranscript(ctx context.Context, transcript *models.Transcript) error {
	const op = "SpacesClient.SaveTranscript"

	data, err := json.Marshal(archivedTranscript{
		VideoID:    transcript.VideoID,
		Language:   transcript.Language,
		Segments:   transcript.Segments,
		ArchivedAt: s.now().UTC(),
	})
	if err != nil {
		return errors.StorageError(op, pkgerrors.Wrap(err, "marshal transcript"), "Failed to archive transcript")
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(transcript.VideoID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.StorageError(op, err, "Failed to archive transcript")
	}
	return nil
}

// GetTranscript returns a NotFound error when the video was never archived.
func (s *SpacesClient) GetTranscript(ctx context.Context, videoID string) (*models.Transcript, error) {
	const op = "SpacesClient.GetTranscript"

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(videoID)),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if pkgerrors.As(err, &noKey) {
			return nil, errors.NotFound(op, err, "Transcript not archived")
		}
		return nil, errors.StorageError(op, err, "Failed to read archived transcript")
	}
	defer result.Body.Close()

	var data archivedTranscript
	if err := json.NewDecoder(result.Body).Decode(&data); err != nil {
		return nil, errors.StorageError(op, pkgerrors.Wrap(err, "decode transcript"), "Failed to read archived transcript")
	}

	return &models.Transcript{
		VideoID:  data.VideoID,
		Language: data.Language,
		Segments: data.Segments,
	}, nil
}
