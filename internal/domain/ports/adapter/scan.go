package adapter

import (
	"context"

	"medscan-registration/internal/domain/model"
)

// ScanServiceAdapter is the boundary to the extraction backend: submit a
// captured document image, then check the resulting job's status.
type ScanServiceAdapter interface {
	// SubmitScanJob uploads the image and returns the backend's job id.
	SubmitScanJob(ctx context.Context, image []byte, filename string) (string, error)
	// GetJobStatus returns one status observation for the job.
	GetJobStatus(ctx context.Context, jobID string) (*model.JobStatusReport, error)
}
