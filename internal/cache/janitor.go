package cache

import (
	"time"

	"fintrack/internal/log"
)

// Pruner is implemented by caches that can drop idle state.
type Pruner interface {
	PruneIdle() int
}

// Janitor periodically prunes registered caches. Entries are never torn
// down synchronously when their last subscriber leaves; the janitor sweeps
// them up on an interval instead.
type Janitor struct {
	pruners     []Pruner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	logger      *log.Logger
}

// NewJanitor creates a new janitor
func NewJanitor(logger *log.Logger) *Janitor {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentCache)
	}
	return &Janitor{
		pruners:     make([]Pruner, 0),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
		logger:      logger,
	}
}

// Register adds a cache to the janitor. Not safe to call after Start.
func (j *Janitor) Register(p Pruner) {
	j.pruners = append(j.pruners, p)
}

// Start begins periodic pruning of all registered caches.
func (j *Janitor) Start(interval time.Duration) {
	go j.run(interval)
}

func (j *Janitor) run(interval time.Duration) {
	defer close(j.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			total := 0
			for _, p := range j.pruners {
				total += p.PruneIdle()
			}
			if total > 0 {
				j.logger.Debug("pruned idle cache entries", log.FieldKeyCount, total)
			}
		case <-j.stopCleanup:
			return
		}
	}
}

// Stop gracefully stops the pruning goroutine.
func (j *Janitor) Stop() {
	close(j.stopCleanup)
	<-j.cleanupDone
}
