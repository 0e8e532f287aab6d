// Package actions runs repository work in the background, each action with its own
// service session.
package actions

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openmined/remoteassets/internal/repository"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

var ErrClosed = errors.New("action manager closed")

// Action is a unit of deferred work. The session is committed by the action itself and
// closed by the manager.
type Action func(ctx context.Context, session *repository.Session) error

type Manager struct {
	repo        *repository.Repository
	serviceUser string
	userData    string

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu        sync.Mutex
	submitted sync.WaitGroup
	closed    bool

	pending atomic.Int64
	failed  atomic.Int64
}

// NewManager runs at most workers actions at a time as serviceUser. Every session is
// tagged with userData.
func NewManager(repo *repository.Repository, serviceUser, userData string, workers int) *Manager {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())
	group := new(errgroup.Group)
	group.SetLimit(workers)

	return &Manager{
		repo:        repo,
		serviceUser: serviceUser,
		userData:    userData,
		ctx:         ctx,
		cancel:      cancel,
		group:       group,
	}
}

// Defer queues action without blocking the caller.
func (m *Manager) Defer(name string, action Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	m.pending.Add(1)
	m.submitted.Add(1)
	go func() {
		defer m.submitted.Done()
		m.group.Go(func() error {
			defer m.pending.Add(-1)
			m.run(name, action)
			return nil
		})
	}()
	return nil
}

func (m *Manager) run(name string, action Action) {
	start := time.Now()

	session, err := m.repo.ServiceLogin(m.serviceUser)
	if err != nil {
		m.failed.Add(1)
		slog.Error("action login", "action", name, "user", m.serviceUser, "error", err)
		return
	}
	defer session.Close()
	session.SetUserData(m.userData)

	if err := action(m.ctx, session); err != nil {
		m.failed.Add(1)
		slog.Error("action failed", "action", name, "error", err, "elapsed", time.Since(start))
		return
	}
	slog.Debug("action done", "action", name, "elapsed", time.Since(start))
}

// Pending is the number of queued or running actions
func (m *Manager) Pending() int {
	return int(m.pending.Load())
}

// Failed is the number of actions that returned an error
func (m *Manager) Failed() int {
	return int(m.failed.Load())
}

// Wait blocks until every action deferred so far has finished.
func (m *Manager) Wait() {
	m.submitted.Wait()
	m.group.Wait()
}

// Close stops accepting actions and waits for the queued ones. When ctx expires first,
// running actions are cancelled.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
}
