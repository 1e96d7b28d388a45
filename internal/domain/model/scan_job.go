package model

import "time"

type ScanJobStatus string

const (
	ScanJobStatusPending ScanJobStatus = "pending"
	ScanJobStatusDone    ScanJobStatus = "done"
	ScanJobStatusFailed  ScanJobStatus = "failed"
)

// Terminal reports whether no further progress on the job is expected.
func (s ScanJobStatus) Terminal() bool {
	return s == ScanJobStatusDone || s == ScanJobStatusFailed
}

// ReportChannel identifies which of the two completion channels delivered
// a job report first.
type ReportChannel string

const (
	ChannelPoll ReportChannel = "poll"
	ChannelPush ReportChannel = "push"
)

// ScanJob is the journal record of one extraction job: who submitted it,
// how it ended, and which channel won the race.
type ScanJob struct {
	ID         string
	UserID     string
	Status     ScanJobStatus
	WonBy      ReportChannel
	Attempts   int
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}

// JobStatusReport is one status observation for a job, regardless of
// whether it came from polling or from the push channel.
type JobStatusReport struct {
	JobID  string        `json:"job_id"`
	Status ScanJobStatus `json:"status"`
	Result *ScanResult   `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// ScanResult is the raw extraction payload as the backend produced it.
type ScanResult struct {
	Medications   []DetectedMedication `json:"medications"`
	PharmacyName  string               `json:"pharmacy_name,omitempty"`
	HospitalName  string               `json:"hospital_name,omitempty"`
	PaymentAmount *int                 `json:"payment_amount,omitempty"`
}

// DetectedMedication is one line item found in the scanned document.
// Produced fresh per job result, never mutated.
type DetectedMedication struct {
	Name           string  `json:"name"`
	Ingredient     string  `json:"ingredient,omitempty"`
	Dosage         float64 `json:"dosage,omitempty"`
	DailyFrequency int     `json:"daily_frequency,omitempty"`
	DurationDays   int     `json:"duration_days,omitempty"`
	ImageURL       string  `json:"image_url,omitempty"`
}
