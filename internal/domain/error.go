package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Pipeline lifecycle errors
	ErrWrongStage      = errors.New("operation not allowed in current pipeline stage")
	ErrEmptyExtraction = errors.New("no medications found in the scanned document")
	ErrAnalysisTimeout = errors.New("scan processing delayed, retry later")
	ErrJobFailed       = errors.New("scan job failed")

	// Form validation errors
	ErrNoMedications = errors.New("at least one medication is required")
	ErrMissingName   = errors.New("medication name is required")
	ErrSlotLimit     = errors.New("intake time slot limit reached")
	ErrSlotMinimum   = errors.New("at least one intake time slot is required")

	// Infra errors
	ErrReadDatabaseRow = errors.New("failed to read database row")
)
