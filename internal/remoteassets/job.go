package remoteassets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/openmined/remoteassets/internal/utils"
	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "0 0,4,8,12,16,20 * * *"

var ErrJobRunning = errors.New("remote assets sync already running")

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// JobResult counts the nodes a run brought in
type JobResult struct {
	Tags   int `json:"tags"`
	Assets int `json:"assets"`
}

type JobStatus struct {
	Running    bool       `json:"running"`
	Schedule   string     `json:"schedule,omitempty"`
	NextRun    *time.Time `json:"nextRun,omitempty"`
	LastStart  *time.Time `json:"lastStart,omitempty"`
	LastEnd    *time.Time `json:"lastEnd,omitempty"`
	LastResult *JobResult `json:"lastResult,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
	InFlight   []string   `json:"inFlight"`
}

// Job bulk syncs the tag and DAM trees. Runs never overlap, neither within the process
// nor across processes sharing the lock file.
type Job struct {
	svc      *Service
	schedule string
	cron     *cron.Cron
	entry    cron.EntryID
	lock     *flock.Flock

	runMu sync.Mutex

	mu     sync.Mutex
	status JobStatus
}

// NewJob returns a job for the cron schedule. An empty schedule uses DefaultSchedule.
func NewJob(svc *Service, schedule, lockPath string) (*Job, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cronParser.Parse(schedule); err != nil {
		return nil, &ConfigError{Field: "scheduler.expression", Reason: err.Error()}
	}
	if err := utils.EnsureParent(lockPath); err != nil {
		return nil, fmt.Errorf("sync lock: %w", err)
	}

	return &Job{
		svc:      svc,
		schedule: schedule,
		lock:     flock.New(lockPath),
		status:   JobStatus{Schedule: schedule},
	}, nil
}

// Start runs the job on its schedule until Stop.
func (j *Job) Start() error {
	j.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	entry, err := j.cron.AddFunc(j.schedule, func() {
		if _, err := j.SyncAll(context.Background()); err != nil && !errors.Is(err, ErrJobRunning) {
			slog.Error("remote assets scheduled sync", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule remote assets sync: %w", err)
	}
	j.entry = entry
	j.cron.Start()
	slog.Info("remote assets sync scheduled", "schedule", j.schedule)
	return nil
}

// Stop waits for a running sync to end or ctx to be done.
func (j *Job) Stop(ctx context.Context) error {
	if j.cron == nil {
		return nil
	}
	select {
	case <-j.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SyncAll syncs tags, then assets.
func (j *Job) SyncAll(ctx context.Context) (*JobResult, error) {
	result := &JobResult{}
	err := j.run(ctx, func(ctx context.Context) error {
		session, err := j.svc.ServiceSession()
		if err != nil {
			return err
		}
		defer session.Close()

		var errs []error
		if result.Tags, err = j.svc.SyncTags(ctx, session); err != nil {
			errs = append(errs, err)
		}
		if result.Assets, err = j.svc.SyncAssets(ctx, session); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}, result)
	return result, err
}

func (j *Job) SyncTags(ctx context.Context) (int, error) {
	result := &JobResult{}
	err := j.run(ctx, func(ctx context.Context) error {
		session, err := j.svc.ServiceSession()
		if err != nil {
			return err
		}
		defer session.Close()
		result.Tags, err = j.svc.SyncTags(ctx, session)
		return err
	}, result)
	return result.Tags, err
}

func (j *Job) SyncAssets(ctx context.Context) (int, error) {
	result := &JobResult{}
	err := j.run(ctx, func(ctx context.Context) error {
		session, err := j.svc.ServiceSession()
		if err != nil {
			return err
		}
		defer session.Close()
		result.Assets, err = j.svc.SyncAssets(ctx, session)
		return err
	}, result)
	return result.Assets, err
}

func (j *Job) run(ctx context.Context, fn func(context.Context) error, result *JobResult) error {
	if !j.runMu.TryLock() {
		return ErrJobRunning
	}
	defer j.runMu.Unlock()

	locked, err := j.lock.TryLock()
	if err != nil {
		return fmt.Errorf("sync lock: %w", err)
	}
	if !locked {
		return ErrJobRunning
	}
	defer func() {
		if err := j.lock.Unlock(); err != nil {
			slog.Warn("sync lock release", "error", err)
		}
	}()

	start := time.Now()
	j.mu.Lock()
	j.status.Running = true
	j.status.LastStart = &start
	j.mu.Unlock()

	slog.Info("remote assets sync started")
	err = fn(ctx)
	end := time.Now()

	j.mu.Lock()
	j.status.Running = false
	j.status.LastEnd = &end
	j.status.LastResult = result
	j.status.LastError = ""
	if err != nil {
		j.status.LastError = err.Error()
	}
	j.mu.Unlock()

	slog.Info("remote assets sync finished", "tags", result.Tags, "assets", result.Assets, "took", end.Sub(start), "error", err)
	return err
}

func (j *Job) Status() JobStatus {
	j.mu.Lock()
	status := j.status
	j.mu.Unlock()

	if j.cron != nil {
		if next := j.cron.Entry(j.entry).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}
	status.InFlight = j.svc.state.Paths()
	return status
}
