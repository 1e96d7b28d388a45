package web

import (
	"context"
	"sync"
	"time"

	"medscan-registration/internal/infra/metrics"
	"medscan-registration/internal/usecase"
)

// PipelineFactory builds a fresh pipeline for a user on first use.
type PipelineFactory func(userID string) usecase.RegistrationUseCase

// Pipelines holds the live per-user pipeline instances. They all share one
// push registry; each filters events by its own active job id.
type Pipelines struct {
	mu      sync.Mutex
	byUser  map[string]usecase.RegistrationUseCase
	factory PipelineFactory
	maxIdle time.Duration
}

func NewPipelines(factory PipelineFactory, maxIdle time.Duration) *Pipelines {
	if maxIdle <= 0 {
		maxIdle = 30 * time.Minute
	}
	return &Pipelines{
		byUser:  make(map[string]usecase.RegistrationUseCase),
		factory: factory,
		maxIdle: maxIdle,
	}
}

// ForUser returns the user's pipeline, creating it when absent.
func (p *Pipelines) ForUser(userID string) usecase.RegistrationUseCase {
	p.mu.Lock()
	defer p.mu.Unlock()
	uc, ok := p.byUser[userID]
	if !ok {
		uc = p.factory(userID)
		p.byUser[userID] = uc
		metrics.SetActivePipelines(len(p.byUser))
	}
	return uc
}

// Drop removes a user's pipeline, invalidating any in-flight job.
func (p *Pipelines) Drop(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if uc, ok := p.byUser[userID]; ok {
		uc.Reset()
		delete(p.byUser, userID)
		metrics.SetActivePipelines(len(p.byUser))
	}
}

// Sweep evicts pipelines idle longer than maxIdle. Eviction resets the
// pipeline first so late job reports for it become no-ops. Implements
// scheduler.Sweeper.
func (p *Pipelines) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-p.maxIdle)
	p.mu.Lock()
	defer p.mu.Unlock()
	evicted := 0
	for userID, uc := range p.byUser {
		if uc.LastActive().Before(cutoff) {
			uc.Reset()
			delete(p.byUser, userID)
			evicted++
		}
	}
	if evicted > 0 {
		metrics.SetActivePipelines(len(p.byUser))
	}
	return evicted, nil
}
