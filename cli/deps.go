package cli

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nijaru/yt-chat/assistant"
	"github.com/nijaru/yt-chat/config"
	"github.com/nijaru/yt-chat/llm"
	"github.com/nijaru/yt-chat/ratelimit"
	"github.com/nijaru/yt-chat/repository"
	redisrepo "github.com/nijaru/yt-chat/repository/redis"
	"github.com/nijaru/yt-chat/repository/sqlite"
	"github.com/nijaru/yt-chat/session"
	"github.com/nijaru/yt-chat/storage"
	"github.com/nijaru/yt-chat/transcription"
)

// components holds what every command shares. The fetcher and model are
// created on first use so storage-only commands need no API keys.
type components struct {
	cfg     *config.Config
	repo    repository.SessionRepository
	store   *session.Store
	limiter *ratelimit.Limiter
	service *assistant.Service
}

func newComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &components{
		cfg:   cfg,
		repo:  repo,
		store: session.NewStore(repo,
			session.WithCacheTTL(cfg.Session.CacheTTL),
			session.WithCacheCleanupInterval(cfg.Session.CacheCleanupInterval),
		),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			Window:      cfg.RateLimit.Window,
			MaxRequests: cfg.RateLimit.MaxRequests,
		}),
	}, nil
}

func openRepository(ctx context.Context, cfg *config.Config) (repository.SessionRepository, error) {
	switch cfg.Database.Driver {
	case "redis":
		repo, err := redisrepo.Connect(ctx, redisrepo.Config{
			URL:       cfg.Redis.URL,
			Namespace: cfg.Redis.Namespace,
		})
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		dbCfg := sqlite.DefaultDBConfig()
		dbCfg.BusyTimeout = cfg.Database.BusyTimeout
		db, err := sqlite.Open(ctx, cfg.Database.Path, dbCfg)
		if err != nil {
			return nil, err
		}
		return sqlite.NewRepository(db), nil
	}
}

// Service returns the assistant, building the transcript fetcher and the
// model on the first call.
func (c *components) Service(ctx context.Context) (*assistant.Service, error) {
	if c.service != nil {
		return c.service, nil
	}

	fetcher, err := newFetcher(ctx, c.cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init transcript fetcher")
	}

	model, err := llm.NewModel(ctx, llm.Config{
		Provider:          c.cfg.LLM.Provider,
		Model:             c.cfg.LLM.Model,
		APIKey:            c.cfg.LLM.APIKey,
		BaseURL:           c.cfg.LLM.BaseURL,
		Temperature:       c.cfg.LLM.Temperature,
		MaxTokens:         c.cfg.LLM.MaxTokens,
		RequestsPerSecond: c.cfg.LLM.RequestsPerSecond,
		Burst:             c.cfg.LLM.Burst,
		Timeout:           c.cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init model")
	}

	c.service = assistant.NewService(c.limiter, c.store, fetcher, model, assistant.Config{
		MaxChunkChars:   c.cfg.Chunking.MaxChunkChars,
		OverlapChars:    c.cfg.Chunking.OverlapChars,
		TopK:            c.cfg.Chunking.TopK,
		SessionTTL:      c.cfg.Session.TTL,
		RateWindow:      c.cfg.RateLimit.Window,
		RateMaxRequests: c.cfg.RateLimit.MaxRequests,
		SinglePassChars: c.cfg.Chunking.SinglePassChars,
	})
	return c.service, nil
}

func newFetcher(ctx context.Context, cfg *config.Config) (assistant.TranscriptFetcher, error) {
	fetcher, err := transcription.NewScriptFetcher(transcription.Config{
		PythonPath:  cfg.Transcript.PythonPath,
		PythonArgs:  cfg.Transcript.PythonArgs,
		ScriptsPath: cfg.Transcript.ScriptsPath,
		Languages:   cfg.Transcript.Languages,
		Timeout:     cfg.Transcript.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if !cfg.Spaces.Enabled {
		return fetcher, nil
	}

	archive, err := storage.NewSpacesClient(ctx, storage.SpacesConfig{
		AccessKey: cfg.Spaces.AccessKey,
		SecretKey: cfg.Spaces.SecretKey,
		Region:    cfg.Spaces.Region,
		Endpoint:  cfg.Spaces.Endpoint,
		Bucket:    cfg.Spaces.Bucket,
		Prefix:    cfg.Spaces.Prefix,
	})
	if err != nil {
		return nil, err
	}
	return transcription.NewArchivedFetcher(fetcher, archive), nil
}

func (c *components) Close() error {
	return c.repo.Close()
}
