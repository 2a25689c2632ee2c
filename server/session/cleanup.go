package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultCleanupInterval is the default interval between sweep runs.
const DefaultCleanupInterval = 1 * time.Hour

// CleanupConfig holds configuration for the periodic sweep job.
type CleanupConfig struct {
	MaxAge   time.Duration // idle threshold before a session is removed (default: 24h)
	Interval time.Duration // interval between sweep runs (default: 1h)
}

// CleanupJob periodically removes idle sessions from a store.
type CleanupJob struct {
	store  *Store
	config CleanupConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// NewCleanupJob creates a sweep job for the given store.
func NewCleanupJob(store *Store, config CleanupConfig) *CleanupJob {
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultMaxAge
	}
	if config.Interval <= 0 {
		config.Interval = DefaultCleanupInterval
	}
	return &CleanupJob{
		store:  store,
		config: config,
	}
}

// Start begins the periodic sweep in a goroutine. It is a no-op when the job
// is already running.
func (j *CleanupJob) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return
	}
	j.running = true
	j.stopChan = make(chan struct{})

	go j.run(ctx)

	slog.Info("session cleanup job started",
		"max_age", j.config.MaxAge,
		"interval", j.config.Interval)
}

// Stop stops the sweep job.
func (j *CleanupJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}
	close(j.stopChan)
	j.running = false

	slog.Info("session cleanup job stopped")
}

// RunOnce executes a single sweep immediately. Useful for the admin
// endpoint and tests.
func (j *CleanupJob) RunOnce() int {
	return j.store.Sweep(j.config.MaxAge)
}

// IsRunning returns whether the job is currently running.
func (j *CleanupJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *CleanupJob) run(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopChan:
			return
		case <-ticker.C:
			if removed := j.store.Sweep(j.config.MaxAge); removed > 0 {
				slog.Info("session sweep completed",
					"removed", removed,
					"remaining", j.store.Count())
			}
		}
	}
}
