package adapter

import "medscan-registration/internal/domain/model"

// PushChannel is the process-wide source of out-of-band job-completion
// events. Many pipeline instances share one channel; each subscriber
// receives every event and filters by its own active job id. Subscribers
// never mutate the shared registry.
type PushChannel interface {
	// Subscribe attaches a new read-only subscription.
	Subscribe() PushSubscription
	// Latest returns the most recent event recorded for a job, covering
	// the case where the push arrived before the subscriber attached.
	Latest(jobID string) (model.JobStatusReport, bool)
}

type PushSubscription interface {
	// Events delivers job reports until Close. Slow consumers may miss
	// events; the polling loop is the safety net.
	Events() <-chan model.JobStatusReport
	Close()
}
