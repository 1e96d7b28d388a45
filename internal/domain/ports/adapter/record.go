package adapter

import (
	"context"

	"medscan-registration/internal/domain/model"
)

// RecordServiceAdapter is the boundary to the persistence backend that
// turns a completed form into a durable medication record.
type RecordServiceAdapter interface {
	// CreatePersistedRecord submits the payload and returns the new
	// record's id. The returned error carries the server-reported message
	// when there is one.
	CreatePersistedRecord(ctx context.Context, payload *model.RecordPayload) (string, error)
}
