package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper is the minimal interface the scheduler needs from a maintenance
// job. The web pipeline registry implements it to evict idle pipelines.
type Sweeper interface {
	// Sweep runs one maintenance pass and returns how many entries it
	// removed.
	Sweep(ctx context.Context) (int, error)
}

// Scheduler periodically runs a Sweeper.
type Scheduler struct {
	interval time.Duration
	sweeper  Sweeper
	log      *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler constructs a scheduler that runs sweeper.Sweep every
// interval. If interval <= 0 it defaults to 1 minute.
func NewScheduler(interval time.Duration, sweeper Sweeper, log *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		interval: interval,
		sweeper:  sweeper,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start begins the scheduler loop in a background goroutine. Calling Start
// more than once has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	if s.ctx != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancel = cancel

	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			n, err := s.sweeper.Sweep(s.ctx)
			if err != nil {
				s.log.Error().Err(err).Msg("sweep failed")
				continue
			}
			if n > 0 {
				s.log.Debug().Int("evicted", n).Msg("sweep finished")
			}
		}
	}
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}
