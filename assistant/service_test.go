package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/nijaru/yt-chat/errors"
	"github.com/nijaru/yt-chat/models"
	"github.com/nijaru/yt-chat/ratelimit"
)

type fakeFetcher struct {
	mu          sync.Mutex
	transcripts map[string]*models.Transcript
	err         error
	before      func()
	calls       int
}

func (f *fakeFetcher) FetchTranscript(ctx context.Context, videoID string) (*models.Transcript, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.before != nil {
		f.before()
	}
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.transcripts[videoID]
	if !ok {
		return nil, errors.TranscriptUnavailable("fakeFetcher", nil, "no captions")
	}
	return t, nil
}

type fakeModel struct {
	mu      sync.Mutex
	prompts []string
	err     error
}

func (m *fakeModel) GenerateText(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)

	if m.err != nil {
		return "", m.err
	}
	switch {
	case strings.Contains(prompt, "Create a structured YouTube summary"):
		return "FINAL SUMMARY", nil
	case strings.Contains(prompt, "You are summarizing part"):
		return "note", nil
	case strings.Contains(prompt, "Combine the following partial notes"):
		return "combined", nil
	case strings.Contains(prompt, "Translate the content below"):
		return "RESUMEN", nil
	default:
		return "ANSWER", nil
	}
}

func (m *fakeModel) count(marker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.prompts {
		if strings.Contains(p, marker) {
			n++
		}
	}
	return n
}

func (m *fakeModel) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

type fakeStore struct {
	mu       sync.Mutex
	records  map[string]*models.SessionRecord
	putErr   error
	getErr   error
	putCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*models.SessionRecord)}
}

func (s *fakeStore) Get(ctx context.Context, userID string) (*models.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	r, ok := s.records[userID]
	if !ok {
		return nil, errors.NotFound("fakeStore.Get", nil, "Session not found")
	}
	return r.Clone(), nil
}

func (s *fakeStore) Put(ctx context.Context, record *models.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	if s.putErr != nil {
		return errors.StorageError("fakeStore.Put", s.putErr, "Failed to save session")
	}
	s.records[record.UserID] = record.Clone()
	return nil
}

func (s *fakeStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func transcript(videoID, text string) *models.Transcript {
	return &models.Transcript{
		VideoID:  videoID,
		Language: "en",
		Segments: []models.Segment{{Text: text}},
	}
}

type fixture struct {
	service *Service
	fetcher *fakeFetcher
	model   *fakeModel
	store   *fakeStore
	clock   *testClock
}

func newFixture(cfg Config) *fixture {
	clock := &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	f := &fixture{
		fetcher: &fakeFetcher{transcripts: map[string]*models.Transcript{
			"alphaVideo1": transcript("alphaVideo1", "Alpha channel sells premium widgets. The pricing tier is fixed for teams."),
			"bravoVideo1": transcript("bravoVideo1", "Bravo channel explains how zebras migrate across the savanna each year."),
		}},
		model: &fakeModel{},
		store: newFakeStore(),
		clock: clock,
	}
	limiter := ratelimit.NewLimiter(ratelimit.Config{Window: cfg.RateWindow, MaxRequests: cfg.RateMaxRequests})
	f.service = NewService(limiter, f.store, f.fetcher, f.model, cfg, WithClock(clock.Now))
	return f
}

func defaultConfig() Config {
	return Config{
		MaxChunkChars:   200,
		OverlapChars:    20,
		TopK:            1,
		SessionTTL:      time.Hour,
		RateWindow:      time.Minute,
		RateMaxRequests: 100,
		SinglePassChars: 12000,
	}
}

func TestProcessThenAnswer(t *testing.T) {
	f := newFixture(defaultConfig())
	ctx := context.Background()

	summary, err := f.service.ProcessVideo(ctx, "user-1", "alphaVideo1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "FINAL SUMMARY" {
		t.Errorf("expected FINAL SUMMARY, got %q", summary)
	}

	record, err := f.store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("expected stored session, got %v", err)
	}
	if record.VideoID != "alphaVideo1" || record.Language != "en" || record.Summary != summary {
		t.Errorf("unexpected record: %+v", record)
	}
	if len(record.Chunks) == 0 {
		t.Error("expected chunks on the record")
	}
	if !record.ExpiresAt.Equal(f.clock.Now().Add(time.Hour)) {
		t.Errorf("expected expiry one hour out, got %v", record.ExpiresAt)
	}

	answer, err := f.service.AnswerQuestion(ctx, "user-1", "What is the pricing model?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "ANSWER" {
		t.Errorf("expected ANSWER, got %q", answer)
	}

	prompt := f.model.last()
	if !strings.Contains(prompt, "pricing tier is fixed") {
		t.Errorf("expected the user's chunk in the prompt, got %q", prompt)
	}
	if !strings.Contains(prompt, NotCoveredAnswer) {
		t.Errorf("expected the grounding instruction in the prompt, got %q", prompt)
	}
}

func TestAnswersUseOnlyTheUsersOwnSession(t *testing.T) {
	f := newFixture(defaultConfig())
	ctx := context.Background()

	if _, err := f.service.ProcessVideo(ctx, "alice", "alphaVideo1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.service.ProcessVideo(ctx, "bob", "bravoVideo1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.service.AnswerQuestion(ctx, "bob", "What is the pricing model?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := f.model.last()
	if !strings.Contains(prompt, "zebras") {
		t.Errorf("expected bob's transcript in the prompt, got %q", prompt)
	}
	if strings.Contains(prompt, "widgets") {
		t.Errorf("prompt leaked another user's transcript: %q", prompt)
	}
}

func TestRateLimited(t *testing.T) {
	cfg := defaultConfig()
	cfg.RateMaxRequests = 1
	f := newFixture(cfg)
	ctx := context.Background()

	if _, err := f.service.ProcessVideo(ctx, "user-1", "alphaVideo1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.clock.Advance(10 * time.Second)
	_, err := f.service.AnswerQuestion(ctx, "user-1", "What is the pricing model?")
	if !errors.IsRateLimited(err) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	appErr, _ := errors.As(err)
	if appErr.RetryAfter != 50*time.Second {
		t.Errorf("expected retry after 50s, got %v", appErr.RetryAfter)
	}

	// Other users keep their own window.
	if _, err := f.service.ProcessVideo(ctx, "user-2", "bravoVideo1"); err != nil {
		t.Errorf("expected user-2 to be admitted, got %v", err)
	}

	f.clock.Advance(time.Minute)
	if _, err := f.service.AnswerQuestion(ctx, "user-1", "What is the pricing model?"); err != nil {
		t.Errorf("expected admission after the window, got %v", err)
	}
}

func TestRateLimitedBeforeFetch(t *testing.T) {
	cfg := defaultConfig()
	cfg.RateMaxRequests = 1
	f := newFixture(cfg)
	ctx := context.Background()

	f.service.ProcessVideo(ctx, "user-1", "alphaVideo1")
	_, err := f.service.ProcessVideo(ctx, "user-1", "bravoVideo1")
	if !errors.IsRateLimited(err) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if f.fetcher.calls != 1 {
		t.Errorf("expected 1 fetch, got %d", f.fetcher.calls)
	}
}

func TestTranscriptUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		videoID string
		setup   func(f *fixture)
	}{
		{
			name:    "no captions",
			videoID: "missingVid1",
		},
		{
			name:    "fetch failure",
			videoID: "alphaVideo1",
			setup: func(f *fixture) {
				f.fetcher.err = pkgerrors.New("network unreachable")
			},
		},
		{
			name:    "too short",
			videoID: "shortVideo1",
			setup: func(f *fixture) {
				f.fetcher.transcripts["shortVideo1"] = transcript("shortVideo1", "Hi there.")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(defaultConfig())
			if tt.setup != nil {
				tt.setup(f)
			}

			_, err := f.service.ProcessVideo(context.Background(), "user-1", tt.videoID)
			if !errors.IsTranscriptUnavailable(err) {
				t.Fatalf("expected transcript unavailable, got %v", err)
			}
			if f.store.putCalls != 0 {
				t.Errorf("expected no put, got %d", f.store.putCalls)
			}
			if len(f.model.prompts) != 0 {
				t.Errorf("expected no model calls, got %d", len(f.model.prompts))
			}
		})
	}
}

func TestModelErrorKeepsPreviousSession(t *testing.T) {
	f := newFixture(defaultConfig())
	ctx := context.Background()

	if _, err := f.service.ProcessVideo(ctx, "user-1", "alphaVideo1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.model.err = pkgerrors.New("quota exceeded")
	_, err := f.service.ProcessVideo(ctx, "user-1", "bravoVideo1")
	if !errors.IsModelError(err) {
		t.Fatalf("expected model error, got %v", err)
	}

	record, err := f.store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.VideoID != "alphaVideo1" {
		t.Errorf("expected previous session to survive, got %s", record.VideoID)
	}
	if f.store.putCalls != 1 {
		t.Errorf("expected 1 put, got %d", f.store.putCalls)
	}
}

func TestStorageErrorOnPut(t *testing.T) {
	f := newFixture(defaultConfig())
	f.store.putErr = pkgerrors.New("disk full")

	_, err := f.service.ProcessVideo(context.Background(), "user-1", "alphaVideo1")
	if !errors.IsStorageError(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestNoActiveSession(t *testing.T) {
	f := newFixture(defaultConfig())
	ctx := context.Background()

	_, err := f.service.AnswerQuestion(ctx, "user-1", "What is the pricing model?")
	if !errors.IsNoActiveSession(err) {
		t.Errorf("expected no active session, got %v", err)
	}

	_, err = f.service.Summary(ctx, "user-1")
	if !errors.IsNoActiveSession(err) {
		t.Errorf("expected no active session, got %v", err)
	}

	_, err = f.service.Translate(ctx, "user-1", "Spanish")
	if !errors.IsNoActiveSession(err) {
		t.Errorf("expected no active session, got %v", err)
	}
}

func TestStoreFailureIsStorageError(t *testing.T) {
	f := newFixture(defaultConfig())
	f.store.getErr = pkgerrors.New("connection refused")

	_, err := f.service.AnswerQuestion(context.Background(), "user-1", "What is the pricing model?")
	if !errors.IsStorageError(err) {
		t.Errorf("expected storage error, got %v", err)
	}
}

func TestEmptyQuestion(t *testing.T) {
	f := newFixture(defaultConfig())
	ctx := context.Background()

	if _, err := f.service.ProcessVideo(ctx, "user-1", "alphaVideo1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := len(f.model.prompts)

	_, err := f.service.AnswerQuestion(ctx, "user-1", "   ")
	if !errors.IsInvalidInput(err) {
		t.Errorf("expected invalid input, got %v", err)
	}
	if len(f.model.prompts) != calls {
		t.Error("expected no model call for an empty question")
	}
}

func TestHierarchicalSummary(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxChunkChars = 60
	cfg.OverlapChars = 10
	cfg.SinglePassChars = 12
	f := newFixture(cfg)

	var sentences []string
	for i := 0; i < 12; i++ {
		sentences = append(sentences, fmt.Sprintf("Sentence number %d talks about topic %d.", i, i))
	}
	f.fetcher.transcripts["longVideo01"] = transcript("longVideo01", strings.Join(sentences, " "))

	summary, err := f.service.ProcessVideo(context.Background(), "user-1", "longVideo01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "FINAL SUMMARY" {
		t.Errorf("expected FINAL SUMMARY, got %q", summary)
	}

	record, _ := f.store.Get(context.Background(), "user-1")
	if got := f.model.count("You are summarizing part"); got != len(record.Chunks) {
		t.Errorf("expected one call per chunk (%d), got %d", len(record.Chunks), got)
	}
	if got := f.model.count("Combine the following partial notes"); got == 0 {
		t.Error("expected intermediate merge passes")
	}
	if got := f.model.count("Create a structured YouTube summary"); got != 1 {
		t.Errorf("expected exactly one final merge, got %d", got)
	}
}

func TestSinglePassSummary(t *testing.T) {
	f := newFixture(defaultConfig())

	if _, err := f.service.ProcessVideo(context.Background(), "user-1", "alphaVideo1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.model.prompts) != 1 {
		t.Errorf("expected a single model call, got %d", len(f.model.prompts))
	}
}

func TestCancellation(t *testing.T) {
	t.Run("before fetch", func(t *testing.T) {
		f := newFixture(defaultConfig())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.service.ProcessVideo(ctx, "user-1", "alphaVideo1")
		if !errors.IsTranscriptUnavailable(err) {
			t.Errorf("expected transcript unavailable, got %v", err)
		}
	})

	t.Run("before summary", func(t *testing.T) {
		f := newFixture(defaultConfig())
		ctx, cancel := context.WithCancel(context.Background())
		f.fetcher.before = cancel

		_, err := f.service.ProcessVideo(ctx, "user-1", "alphaVideo1")
		if !errors.IsModelError(err) {
			t.Errorf("expected model error, got %v", err)
		}
		if f.store.putCalls != 0 {
			t.Errorf("expected no put, got %d", f.store.putCalls)
		}
	})
}

func TestClearSessionIsIdempotent(t *testing.T) {
	f := newFixture(defaultConfig())
	ctx := context.Background()

	f.service.ProcessVideo(ctx, "user-1", "alphaVideo1")

	for i := 0; i < 2; i++ {
		if err := f.service.ClearSession(ctx, "user-1"); err != nil {
			t.Fatalf("clear %d: unexpected error: %v", i+1, err)
		}
	}
	if _, err := f.service.AnswerQuestion(ctx, "user-1", "pricing?"); !errors.IsNoActiveSession(err) {
		t.Errorf("expected no active session, got %v", err)
	}
}

func TestSummaryIsNotRateLimited(t *testing.T) {
	cfg := defaultConfig()
	cfg.RateMaxRequests = 1
	f := newFixture(cfg)
	ctx := context.Background()

	f.service.ProcessVideo(ctx, "user-1", "alphaVideo1")
	for i := 0; i < 3; i++ {
		record, err := f.service.Summary(ctx, "user-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if record.Summary != "FINAL SUMMARY" {
			t.Errorf("expected FINAL SUMMARY, got %q", record.Summary)
		}
	}
}

func TestTranslateLeavesSessionUnchanged(t *testing.T) {
	f := newFixture(defaultConfig())
	ctx := context.Background()

	f.service.ProcessVideo(ctx, "user-1", "alphaVideo1")

	translated, err := f.service.Translate(ctx, "user-1", " Spanish ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if translated != "RESUMEN" {
		t.Errorf("expected RESUMEN, got %q", translated)
	}
	if !strings.Contains(f.model.last(), "into Spanish.") {
		t.Errorf("expected trimmed language in prompt, got %q", f.model.last())
	}

	record, _ := f.store.Get(ctx, "user-1")
	if record.Summary != "FINAL SUMMARY" {
		t.Errorf("expected stored summary unchanged, got %q", record.Summary)
	}

	if _, err := f.service.Translate(ctx, "user-1", "1"); !errors.IsInvalidInput(err) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestMissingUserID(t *testing.T) {
	f := newFixture(defaultConfig())
	ctx := context.Background()

	if _, err := f.service.ProcessVideo(ctx, "", "alphaVideo1"); !errors.IsInvalidInput(err) {
		t.Errorf("expected invalid input, got %v", err)
	}
	if _, err := f.service.AnswerQuestion(ctx, "", "why?"); !errors.IsInvalidInput(err) {
		t.Errorf("expected invalid input, got %v", err)
	}
	if err := f.service.ClearSession(ctx, ""); !errors.IsInvalidInput(err) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestConcurrentUsers(t *testing.T) {
	f := newFixture(defaultConfig())
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i)
			if _, err := f.service.ProcessVideo(ctx, user, "alphaVideo1"); err != nil {
				errs <- err
				return
			}
			if _, err := f.service.AnswerQuestion(ctx, user, "pricing?"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBatchPartials(t *testing.T) {
	tests := []struct {
		name     string
		partials []string
		limit    int
		expected []int
	}{
		{"all fit", []string{"aa", "bb", "cc"}, 10, []int{3}},
		{"pairs", []string{"aaaa", "bbbb", "cccc", "dddd"}, 8, []int{2, 2}},
		{"oversized alone", []string{"aaaaaaaaaaaa", "bb"}, 5, []int{1, 1}},
		{"no limit", []string{"a", "b"}, 0, []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := batchPartials(tt.partials, tt.limit)
			if len(batches) != len(tt.expected) {
				t.Fatalf("expected %d batches, got %d", len(tt.expected), len(batches))
			}
			for i, b := range batches {
				if len(b) != tt.expected[i] {
					t.Errorf("batch %d: expected %d partials, got %d", i, tt.expected[i], len(b))
				}
			}
		})
	}
}
