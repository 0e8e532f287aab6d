// Package remoteassets replicates DAM binaries from a remote author server on first
// access. Asset nodes are synced in bulk and flagged as remote; their renditions are
// pulled with a content package when a remote asset is resolved.
package remoteassets

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/remoteassets/internal/actions"
	"github.com/openmined/remoteassets/internal/packmgr"
	"github.com/openmined/remoteassets/internal/repository"
)

type Service struct {
	cfg        *Config
	repo       *repository.Repository
	client     *packmgr.Client
	state      *SyncState
	actions    *actions.Manager
	renditions *Renditions
	metrics    *Metrics
	now        func() time.Time
}

type Option func(*Service)

// WithActionManager defers batched rendition syncs to m. Without one they run inline.
func WithActionManager(m *actions.Manager) Option {
	return func(s *Service) {
		s.actions = m
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock replaces time.Now for failure stamps and quiet periods
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithClient(c *packmgr.Client) Option {
	return func(s *Service) {
		s.client = c
	}
}

// WithSyncState shares the in flight set between services
func WithSyncState(state *SyncState) Option {
	return func(s *Service) {
		s.state = state
	}
}

// NewService validates cfg and registers its service user with the repository.
// A configuration error leaves the feature disabled.
func NewService(cfg *Config, repo *repository.Repository, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:   cfg,
		repo:  repo,
		state: NewSyncState(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = cfg.NewClient()
	}
	s.renditions = NewRenditions(cfg.LazyRenditions, NewPlaceholders())

	repo.AddSystemUsers(cfg.ServiceUser)

	slog.Info("remote assets enabled", "config", cfg)
	return s, nil
}

func (s *Service) Config() *Config {
	return s.cfg
}

func (s *Service) SyncState() *SyncState {
	return s.state
}

func (s *Service) Renditions() *Renditions {
	return s.renditions
}

func (s *Service) Repository() *repository.Repository {
	return s.repo
}

// ServiceSession opens a privileged session tagged with the event user data.
// The caller closes it.
func (s *Service) ServiceSession() (*repository.Session, error) {
	session, err := s.repo.ServiceLogin(s.cfg.ServiceUser)
	if err != nil {
		return nil, fmt.Errorf("remote assets service session: %w", err)
	}
	session.SetUserData(s.cfg.EventUserData)
	return session, nil
}
