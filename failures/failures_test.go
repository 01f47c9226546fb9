package failures

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func TestErrorIsByKind(t *testing.T) {
	err := Newf(KindInvalidInput, "format %s does not match kind %s", "webp", "video")
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("Expected error to match ErrInvalidInput")
	}
	if errors.Is(err, ErrInputTooLarge) {
		t.Error("Error should not match a different kind")
	}

	wrapped := fmt.Errorf("submit: %w", err)
	if !errors.Is(wrapped, ErrInvalidInput) {
		t.Error("Wrapped error should still match its kind")
	}
	if KindOf(wrapped) != KindInvalidInput {
		t.Errorf("Expected kind invalid_input, got %s", KindOf(wrapped))
	}
	if DetailOf(wrapped) != "format webp does not match kind video" {
		t.Errorf("Unexpected detail %q", DetailOf(wrapped))
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("ffmpeg exited with status 1")
	err := Wrap(KindBackendError, cause)
	if !errors.Is(err, cause) {
		t.Error("Wrapped error should unwrap to its cause")
	}
	if err.Error() != "backend_error: ffmpeg exited with status 1" {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("Plain errors have no kind")
	}
}

func TestKindDescriptions(t *testing.T) {
	kinds := []Kind{
		KindEngineNotReady, KindEngineLoadFailed, KindInvalidInput, KindInputTooLarge,
		KindJobNotFound, KindBackendError, KindTimeout, KindCancelled, KindNotReady,
	}
	for _, k := range kinds {
		if k.Describe() == "Unknown error." {
			t.Errorf("Kind %s has no description", k)
		}
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "failures.db"))
	if err != nil {
		t.Fatalf("Failed to initialize failure store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFailureStore(t *testing.T) {
	store := openTestStore(t)

	rec := FailureRecord{
		JobID:     "job-123",
		Kind:      KindBackendError,
		Detail:    "invalid data found when processing input",
		Filename:  "clip.mp4",
		Format:    "webm",
		InputSize: 1024,
	}
	if err := store.StoreFailure(rec); err != nil {
		t.Fatalf("Failed to store failure: %v", err)
	}

	record, err := store.GetFailure("job-123")
	if err != nil {
		t.Fatalf("Failed to get failure: %v", err)
	}
	if record == nil {
		t.Fatal("Expected failure record, got nil")
	}
	if record.Kind != KindBackendError {
		t.Errorf("Expected kind %s, got %s", KindBackendError, record.Kind)
	}
	if record.Detail != rec.Detail {
		t.Errorf("Expected detail %s, got %s", rec.Detail, record.Detail)
	}
	if time.Since(record.Timestamp) > time.Minute {
		t.Error("Timestamp should be recent")
	}

	missing, err := store.GetFailure("non-existent")
	if err != nil {
		t.Fatalf("Failed to get non-existent failure: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for non-existent failure")
	}

	if err := store.DeleteFailure("job-123"); err != nil {
		t.Fatalf("Failed to delete failure: %v", err)
	}
	deleted, err := store.GetFailure("job-123")
	if err != nil {
		t.Fatalf("Failed to check deleted failure: %v", err)
	}
	if deleted != nil {
		t.Error("Expected nil after deletion")
	}

	if err := store.StoreFailure(FailureRecord{}); err == nil {
		t.Error("Expected error for record without job id")
	}
}

func TestFailureListAndCleanup(t *testing.T) {
	store := openTestStore(t)

	now := time.Now()
	ids := []string{"old", "mid", "new"}
	for i, id := range ids {
		rec := FailureRecord{
			JobID:     id,
			Kind:      KindTimeout,
			Timestamp: now.Add(time.Duration(i-2) * 48 * time.Hour),
		}
		if err := store.StoreFailure(rec); err != nil {
			t.Fatalf("Failed to store failure %s: %v", id, err)
		}
	}

	list, err := store.ListFailures()
	if err != nil {
		t.Fatalf("Failed to list failures: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 failures, got %d", len(list))
	}
	for i, id := range ids {
		if list[i].JobID != id {
			t.Errorf("Expected %s at position %d, got %s", id, i, list[i].JobID)
		}
	}

	removed, err := store.CleanupOldRecords(24 * time.Hour)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 records removed, got %d", removed)
	}
	list, _ = store.ListFailures()
	if len(list) != 1 || list[0].JobID != "new" {
		t.Errorf("Expected only the newest record to remain, got %+v", list)
	}

	if err := store.CheckHealth(); err != nil {
		t.Errorf("Health check failed: %v", err)
	}
}
