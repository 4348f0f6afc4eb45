package sqlite

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/nijaru/yt-chat/errors"
	"github.com/nijaru/yt-chat/models"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), DefaultDBConfig())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	repo := NewRepository(db)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testRecord(userID string, created time.Time, ttl time.Duration) *models.SessionRecord {
	r := models.NewSessionRecord(userID, "dQw4w9WgXcQ", created, ttl)
	r.Language = "en"
	r.Summary = "A song about commitment."
	r.Chunks = []models.TranscriptChunk{
		{Index: 0, Text: "Never gonna give you up. ", StartOffset: 0, EndOffset: 25},
		{Index: 1, Text: "you up. Never gonna let you down.", StartOffset: 17, EndOffset: 50},
	}
	return r
}

func TestSaveAndFind(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC)
	record := testRecord("user-1", created, 24*time.Hour)

	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	got, err := repo.Find(ctx, "user-1")
	if err != nil {
		t.Fatalf("Failed to find session: %v", err)
	}

	if got.VideoID != record.VideoID || got.Summary != record.Summary || got.Language != record.Language {
		t.Errorf("expected %+v, got %+v", record, got)
	}
	if !reflect.DeepEqual(got.Chunks, record.Chunks) {
		t.Errorf("expected chunks %+v, got %+v", record.Chunks, got.Chunks)
	}
	if !got.CreatedAt.Equal(record.CreatedAt) || !got.ExpiresAt.Equal(record.ExpiresAt) {
		t.Errorf("expected timestamps %v/%v, got %v/%v",
			record.CreatedAt, record.ExpiresAt, got.CreatedAt, got.ExpiresAt)
	}
}

func TestSaveOverwrites(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	first := testRecord("user-1", now, time.Hour)
	second := testRecord("user-1", now.Add(time.Minute), time.Hour)
	second.VideoID = "9bZkp7q19f0"
	second.Chunks = second.Chunks[:1]

	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Failed to save first session: %v", err)
	}
	if err := repo.Save(ctx, second); err != nil {
		t.Fatalf("Failed to save second session: %v", err)
	}

	got, err := repo.Find(ctx, "user-1")
	if err != nil {
		t.Fatalf("Failed to find session: %v", err)
	}
	if got.VideoID != "9bZkp7q19f0" || len(got.Chunks) != 1 {
		t.Errorf("expected the second record, got %+v", got)
	}
}

func TestFindMissing(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Find(context.Background(), "nobody")
	if !errors.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.Save(ctx, testRecord("user-1", time.Now(), time.Hour)); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := repo.Delete(ctx, "user-1"); err != nil {
			t.Fatalf("Delete #%d failed: %v", i+1, err)
		}
	}
	if _, err := repo.Find(ctx, "user-1"); !errors.IsNotFound(err) {
		t.Errorf("expected NotFound after delete, got %v", err)
	}
}

func TestListAndDeleteExpired(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	records := []*models.SessionRecord{
		testRecord("expired-a", base, time.Hour),
		testRecord("expired-b", base, 2*time.Hour),
		testRecord("fresh", base, 48*time.Hour),
	}
	for _, r := range records {
		if err := repo.Save(ctx, r); err != nil {
			t.Fatalf("Failed to save %s: %v", r.UserID, err)
		}
	}

	now := base.Add(2 * time.Hour)
	ids, err := repo.ListExpired(ctx, now)
	if err != nil {
		t.Fatalf("Failed to list expired: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"expired-a", "expired-b"}) {
		t.Errorf("expected [expired-a expired-b], got %v", ids)
	}

	// expired-b is refreshed between the listing and the delete.
	if err := repo.Save(ctx, testRecord("expired-b", now, time.Hour)); err != nil {
		t.Fatalf("Failed to refresh session: %v", err)
	}

	tests := []struct {
		userID  string
		deleted bool
	}{
		{"expired-a", true},
		{"expired-b", false},
		{"fresh", false},
		{"missing", false},
	}
	for _, tt := range tests {
		deleted, err := repo.DeleteIfExpired(ctx, tt.userID, now)
		if err != nil {
			t.Fatalf("DeleteIfExpired(%s) failed: %v", tt.userID, err)
		}
		if deleted != tt.deleted {
			t.Errorf("%s: expected deleted=%v, got %v", tt.userID, tt.deleted, deleted)
		}
	}

	if _, err := repo.Find(ctx, "expired-b"); err != nil {
		t.Errorf("expected refreshed session to survive, got %v", err)
	}
}
