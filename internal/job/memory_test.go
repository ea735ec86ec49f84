package job

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	job := NewWithID("job-1")
	job.Filename = "speech.mp3"
	if err := repo.Save(ctx, job); err != nil {
		t.Fatalf("Save: %v", err)
	}

	found, err := repo.FindByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if found.Filename != "speech.mp3" {
		t.Errorf("Filename = %q", found.Filename)
	}

	// The repository must hand out clones.
	found.Filename = "mutated.mp3"
	again, err := repo.FindByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if again.Filename != "speech.mp3" {
		t.Error("repository leaked a mutable reference")
	}
}

func TestMemoryRepository_FindMissing(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.FindByID(context.Background(), "nope")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("error = %v, want ErrJobNotFound", err)
	}
}

func TestMemoryRepository_List(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := repo.Save(ctx, NewWithID(id)); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	jobs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 3 {
		t.Errorf("len = %d, want 3", len(jobs))
	}
}

func TestMemoryRepository_Delete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Save(ctx, NewWithID("job-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Delete(ctx, "job-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.FindByID(ctx, "job-1"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("error = %v, want ErrJobNotFound", err)
	}
	if err := repo.Delete(ctx, "job-1"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("second delete error = %v, want ErrJobNotFound", err)
	}
}

func TestMemoryRepository_FindByFingerprint(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	older := NewWithID("job-old")
	older.Fingerprint = "abc123"
	older.CreatedAt = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	newer := NewWithID("job-new")
	newer.Fingerprint = "abc123"
	newer.CreatedAt = time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC)
	other := NewWithID("job-other")
	other.Fingerprint = "def456"

	for _, j := range []*Job{older, newer, other} {
		if err := repo.Save(ctx, j); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	found, err := repo.FindByFingerprint(ctx, "abc123")
	if err != nil {
		t.Fatalf("FindByFingerprint: %v", err)
	}
	if found.ID != "job-new" {
		t.Errorf("ID = %q, want the most recent match job-new", found.ID)
	}

	if _, err := repo.FindByFingerprint(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("error = %v, want ErrJobNotFound", err)
	}
}
