// Package transcription fetches YouTube captions by running a small Python
// helper built on youtube-transcript-api.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-chat/errors"
	"github.com/nijaru/yt-chat/models"
)

const scriptName = "fetch_transcript.py"

type Config struct {
	PythonPath  string // interpreter or launcher, e.g. "uv" or "python3"
	PythonArgs  []string
	ScriptsPath string
	Languages   []string
	Timeout     time.Duration
	Environment []string
}

// scriptResult is the JSON document the helper prints on stdout.
type scriptResult struct {
	VideoID  string           `json:"video_id"`
	Language string           `json:"language"`
	Segments []models.Segment `json:"segments"`
	Error    string           `json:"error,omitempty"`
}

// ScriptFetcher runs the helper once per request; it never retries.
type ScriptFetcher struct {
	config            Config
	ExecuteScriptFunc func(ctx context.Context, name string, args []string, env []string) ([]byte, error)
	logger            *logrus.Entry
}

func NewScriptFetcher(cfg Config) (*ScriptFetcher, error) {
	const op = "transcription.NewScriptFetcher"

	scriptPath := filepath.Join(cfg.ScriptsPath, scriptName)
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, errors.Internal(op, err, fmt.Sprintf("transcript script not found: %s", scriptPath))
	}

	return &ScriptFetcher{
		config:            cfg,
		ExecuteScriptFunc: executeScript,
		logger:            logrus.WithField("component", "transcription"),
	}, nil
}

func (f *ScriptFetcher) FetchTranscript(ctx context.Context, videoID string) (*models.Transcript, error) {
	const op = "ScriptFetcher.FetchTranscript"
	logger := f.logger.WithField("video_id", videoID)

	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := f.ExecuteScriptFunc(ctx, f.config.PythonPath, f.buildArgs(videoID), f.config.Environment)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		logger.WithError(err).Warn("Transcript script failed")
		return nil, errors.TranscriptUnavailable(op, err, "Could not fetch the transcript")
	}

	var result scriptResult
	if err := json.Unmarshal(output, &result); err != nil {
		logger.WithError(err).WithField("output", truncate(string(output), 200)).Error("Invalid script output")
		return nil, errors.TranscriptUnavailable(op, err, "Could not read the transcript")
	}
	if result.Error != "" {
		logger.WithField("reason", result.Error).Info("No transcript available")
		return nil, errors.TranscriptUnavailable(op, fmt.Errorf("%s", result.Error), "This video has no usable captions")
	}
	if len(result.Segments) == 0 {
		return nil, errors.TranscriptUnavailable(op, nil, "This video has no usable captions")
	}

	logger.WithFields(logrus.Fields{
		"language": result.Language,
		"segments": len(result.Segments),
		"duration": time.Since(start),
	}).Info("Transcript fetched")

	return &models.Transcript{
		VideoID:  videoID,
		Language: result.Language,
		Segments: result.Segments,
	}, nil
}

func (f *ScriptFetcher) buildArgs(videoID string) []string {
	args := append([]string{}, f.config.PythonArgs...)
	args = append(args, filepath.Join(f.config.ScriptsPath, scriptName), "--video-id", videoID)
	if len(f.config.Languages) > 0 {
		args = append(args, "--languages", strings.Join(f.config.Languages, ","))
	}
	return args
}

func executeScript(ctx context.Context, name string, args []string, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%v (stderr: %s)", err, truncate(stderr.String(), 500))
	}
	return stdout.Bytes(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
