package push

import (
	"sync"

	"github.com/rs/zerolog"

	"medscan-registration/internal/domain/model"
	"medscan-registration/internal/domain/ports/adapter"
)

// Ensure the registry implements the port interface.
var _ adapter.PushChannel = (*Registry)(nil)

// Registry is the process-wide sink for out-of-band job-completion events.
// The webhook handler publishes into it; every live pipeline instance holds
// a read-only subscription and filters by its own job id. Events are kept
// per job id so a subscriber that attaches after delivery still sees the
// outcome; entries are never proactively evicted.
type Registry struct {
	mu     sync.RWMutex
	subs   map[int64]chan model.JobStatusReport
	nextID int64
	latest map[string]model.JobStatusReport
	log    *zerolog.Logger
}

func NewRegistry(log *zerolog.Logger) *Registry {
	return &Registry{
		subs:   make(map[int64]chan model.JobStatusReport),
		latest: make(map[string]model.JobStatusReport),
		log:    log,
	}
}

// Publish records the event and fans it out. Delivery is non-blocking: a
// subscriber that cannot keep up misses the event and falls back to its
// polling loop.
func (r *Registry) Publish(ev model.JobStatusReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest[ev.JobID] = ev
	// Sends stay under the lock so a concurrent Close can never pull the
	// channel out from under us; they are non-blocking so this is cheap.
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			r.log.Debug().Str("job_id", ev.JobID).Msg("push subscriber lagging, event dropped")
		}
	}
}

// Latest returns the most recent event recorded for a job.
func (r *Registry) Latest(jobID string) (model.JobStatusReport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ev, ok := r.latest[jobID]
	return ev, ok
}

// Subscribe attaches a new subscription receiving all future events.
func (r *Registry) Subscribe() adapter.PushSubscription {
	ch := make(chan model.JobStatusReport, 4)
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	r.mu.Unlock()
	return &subscription{registry: r, id: id, ch: ch}
}

type subscription struct {
	registry *Registry
	id       int64
	ch       chan model.JobStatusReport
	once     sync.Once
}

func (s *subscription) Events() <-chan model.JobStatusReport { return s.ch }

func (s *subscription) Close() {
	s.once.Do(func() {
		s.registry.mu.Lock()
		delete(s.registry.subs, s.id)
		s.registry.mu.Unlock()
		close(s.ch)
	})
}
