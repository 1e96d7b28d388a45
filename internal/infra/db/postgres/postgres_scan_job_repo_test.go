//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"medscan-registration/internal/domain"
	"medscan-registration/internal/domain/model"
)

func TestScanJobRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewScanJobRepo(testPool)

	t.Run("should save and update a scan job", func(t *testing.T) {
		cleanup(t)

		job := &model.ScanJob{
			ID:        uuid.NewString(),
			UserID:    "user-1",
			Status:    model.ScanJobStatusPending,
			CreatedAt: time.Now(),
		}
		if err := repo.Save(ctx, job); err != nil {
			t.Fatalf("failed to save new job: %v", err)
		}

		var status string
		if err := testPool.QueryRow(ctx, "SELECT status FROM scan_jobs WHERE id = $1", job.ID).Scan(&status); err != nil {
			t.Fatalf("failed to query saved job: %v", err)
		}
		if status != string(model.ScanJobStatusPending) {
			t.Errorf("expected status 'pending', got '%s'", status)
		}

		now := time.Now()
		job.Status = model.ScanJobStatusDone
		job.WonBy = model.ChannelPush
		job.ResolvedAt = &now
		if err := repo.Save(ctx, job); err != nil {
			t.Fatalf("failed to update job: %v", err)
		}

		got, err := repo.FindByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("failed to find updated job: %v", err)
		}
		if got.Status != model.ScanJobStatusDone || got.WonBy != model.ChannelPush {
			t.Errorf("update not persisted: %+v", got)
		}
		if got.ResolvedAt == nil {
			t.Error("expected a resolved timestamp")
		}
	})

	t.Run("should return ErrNotFound for an unknown id", func(t *testing.T) {
		cleanup(t)

		if _, err := repo.FindByID(ctx, uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should list a user's jobs newest first", func(t *testing.T) {
		cleanup(t)

		var ids []string
		for i := 0; i < 3; i++ {
			job := &model.ScanJob{
				ID:        uuid.NewString(),
				UserID:    "user-1",
				Status:    model.ScanJobStatusPending,
				CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
			}
			if err := repo.Save(ctx, job); err != nil {
				t.Fatalf("failed to save job %d: %v", i, err)
			}
			ids = append(ids, job.ID)
		}
		other := &model.ScanJob{ID: uuid.NewString(), UserID: "user-2", Status: model.ScanJobStatusPending, CreatedAt: time.Now()}
		if err := repo.Save(ctx, other); err != nil {
			t.Fatalf("failed to save other user's job: %v", err)
		}

		jobs, err := repo.ListByUser(ctx, "user-1", 2)
		if err != nil {
			t.Fatalf("failed to list jobs: %v", err)
		}
		if len(jobs) != 2 {
			t.Fatalf("expected 2 jobs, got %d", len(jobs))
		}
		if jobs[0].ID != ids[2] || jobs[1].ID != ids[1] {
			t.Errorf("unexpected ordering: got %s, %s", jobs[0].ID, jobs[1].ID)
		}
	})
}
