// Package cron wraps the robfig/cron scheduler with a named-job registry that
// guarantees at most one concurrent run per job name. Jobs are plain
// functions; there is no persistence and no cross-process coordination — a
// tick that overlaps a still-running job is skipped and logged.
package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	robfig "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

// Job describes a registered job.
type Job struct {
	Name     string
	Schedule string // cron expression, e.g. "0 */6 * * *"
	Run      JobFunc
	// RunOnStart triggers one run shortly after Start in development, so a
	// restart loop exercises the job without waiting for the schedule.
	RunOnStart bool
}

// JobStatus is the registry's view of one job, exposed over the CLI.
type JobStatus struct {
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	Running    bool       `json:"running"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	RunCount   int64      `json:"run_count"`
	SkipCount  int64      `json:"skip_count"`
}

// Registry schedules named jobs and prevents overlapping runs per name.
type Registry struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	running  map[string]bool
	statuses map[string]*JobStatus
	cron     *robfig.Cron
	logger   zerolog.Logger

	// dev startup-delay run
	devMode       bool
	startupDelay  time.Duration
	startupCancel context.CancelFunc
}

// NewRegistry creates an empty job registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		jobs:     make(map[string]*Job),
		running:  make(map[string]bool),
		statuses: make(map[string]*JobStatus),
		cron:     robfig.New(),
		logger:   logger,
	}
}

// EnableDevStartupRun arranges for jobs flagged RunOnStart to fire once,
// delay after Start is called. Development convenience only.
func (r *Registry) EnableDevStartupRun(delay time.Duration) {
	r.devMode = true
	r.startupDelay = delay
}

// Register adds a job to the registry. Registering the same name twice is an
// error; job names are the mutual-exclusion key.
func (r *Registry) Register(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s has no run function", job.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Name]; exists {
		return fmt.Errorf("job %s is already registered", job.Name)
	}

	j := job
	if _, err := r.cron.AddFunc(job.Schedule, func() { r.execute(&j) }); err != nil {
		return fmt.Errorf("register job %s: %w", job.Name, err)
	}

	r.jobs[job.Name] = &j
	r.statuses[job.Name] = &JobStatus{Name: job.Name, Schedule: job.Schedule}
	return nil
}

// Start begins dispatching scheduled jobs.
func (r *Registry) Start() {
	r.cron.Start()

	if r.devMode {
		ctx, cancel := context.WithCancel(context.Background())
		r.startupCancel = cancel
		go func() {
			select {
			case <-time.After(r.startupDelay):
			case <-ctx.Done():
				return
			}
			r.mu.Lock()
			var startup []*Job
			for _, j := range r.jobs {
				if j.RunOnStart {
					startup = append(startup, j)
				}
			}
			r.mu.Unlock()
			for _, j := range startup {
				r.execute(j)
			}
		}()
	}
}

// Stop stops the scheduler and waits for in-flight jobs to finish.
func (r *Registry) Stop() {
	if r.startupCancel != nil {
		r.startupCancel()
	}
	<-r.cron.Stop().Done()
}

// RunNow executes a job by name immediately, subject to the same
// no-overlap guard as scheduled runs.
func (r *Registry) RunNow(name string) error {
	r.mu.Lock()
	job, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s is not registered", name)
	}
	r.execute(job)
	return nil
}

// Statuses returns a snapshot of all registered jobs sorted by name.
func (r *Registry) Statuses() []JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]JobStatus, 0, len(r.statuses))
	for _, s := range r.statuses {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// execute runs a job unless a previous run of the same name is still in
// flight, in which case the tick is skipped.
func (r *Registry) execute(job *Job) {
	r.mu.Lock()
	if r.running[job.Name] {
		r.statuses[job.Name].SkipCount++
		r.mu.Unlock()
		r.logger.Warn().Str("job", job.Name).Msg("previous run still in flight, skipping")
		return
	}
	r.running[job.Name] = true
	r.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("job", job.Name).Interface("panic", rec).Msg("job panicked")
		}
		r.mu.Lock()
		delete(r.running, job.Name)
		r.mu.Unlock()
	}()

	start := time.Now()
	r.logger.Info().Str("job", job.Name).Msg("job started")

	err := job.Run(context.Background())

	r.mu.Lock()
	st := r.statuses[job.Name]
	now := time.Now()
	st.LastRunAt = &now
	st.RunCount++
	if err != nil {
		st.LastError = err.Error()
	} else {
		st.LastError = ""
	}
	r.mu.Unlock()

	evt := r.logger.Info()
	if err != nil {
		evt = r.logger.Error().Err(err)
	}
	evt.Str("job", job.Name).Dur("duration", time.Since(start)).Msg("job finished")
}
