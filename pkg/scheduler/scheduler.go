// Package scheduler runs H6's background cron jobs over robfig/cron/v3,
// grounded on the teacher's pkg/scheduler/scheduler.go shape (a cron.Cron
// plus logger, Start/Stop). The teacher's single "@every 1m" no-op is
// replaced with the catalog-refresh job the domain actually needs.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/barberq/scheduling-core/pkg/logger"
)

// CatalogRefresher is implemented by internal/repository's
// CachingRepository. Kept narrow here so this package doesn't need the
// full repository dependency.
type CatalogRefresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler owns the process's background cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	catalog CatalogRefresher
	logger  *logger.Logger
}

// New creates a scheduler that periodically refreshes the catalog
// cache. catalog may be nil (deployments without a cache still run the
// cron loop, they just have nothing to refresh).
func New(catalog CatalogRefresher, logger *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		catalog: catalog,
		logger:  logger,
	}
}

// refreshIntervalSpec keeps the cache well inside its TTL window so a
// lagging NATS consumer never leaves a stale snapshot in place for the
// whole TTL.
const refreshIntervalSpec = "@every 1m"

// Start registers and starts the cron jobs.
func (s *Scheduler) Start() {
	s.logger.Info("starting background scheduler")

	if s.catalog != nil {
		if _, err := s.cron.AddFunc(refreshIntervalSpec, s.refreshCatalog); err != nil {
			s.logger.Error("failed to register catalog refresh job", "error", err)
		}
	}

	s.cron.Start()
}

func (s *Scheduler) refreshCatalog() {
	if err := s.catalog.Refresh(context.Background()); err != nil {
		s.logger.Warn("scheduled catalog refresh failed", "error", err)
		return
	}
	s.logger.Debug("catalog cache refreshed")
}

// Stop stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping background scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
}
