package server

import (
	"context"
	"fmt"

	"github.com/openmined/remoteassets/internal/actions"
	"github.com/openmined/remoteassets/internal/remoteassets"
	"github.com/openmined/remoteassets/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
)

type Services struct {
	Repository *repository.Repository
	Remote     *remoteassets.Service
	Job        *remoteassets.Job
	Actions    *actions.Manager
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Schedule starts the job's cron schedule with the server
	Schedule bool
}

func (s *Services) Start(ctx context.Context) error {
	if s.Job != nil && s.Schedule {
		if err := s.Job.Start(); err != nil {
			return fmt.Errorf("start sync job: %w", err)
		}
	}
	return nil
}

func (s *Services) Shutdown(ctx context.Context) error {
	if s.Job != nil && s.Schedule {
		if err := s.Job.Stop(ctx); err != nil {
			return fmt.Errorf("stop sync job: %w", err)
		}
	}

	if s.Actions != nil {
		if err := s.Actions.Close(ctx); err != nil {
			return fmt.Errorf("stop action manager: %w", err)
		}
	}
	return nil
}
