package repository

import (
	"context"

	"medscan-registration/internal/domain/model"
)

// ScanJobRepository journals submitted extraction jobs and their terminal
// outcomes. Writes are best-effort; the pipeline never fails an analysis
// because the journal is unavailable.
type ScanJobRepository interface {
	Save(ctx context.Context, job *model.ScanJob) error
	FindByID(ctx context.Context, id string) (*model.ScanJob, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.ScanJob, error)
}
