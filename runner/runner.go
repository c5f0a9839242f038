// Package runner schedules code synchronization for a set
// of storage objects. It owns the base path, serializes
// pulls per destination, and re-pulls each storage on its
// own cadence. Storage objects never schedule themselves.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/byte4ever/gitsync/storage"
)

// Config holds the settings for a Runner.
type Config struct {
	// BasePath is the directory storages pull into. Empty
	// keeps each storage's own default.
	BasePath string
}

// Runner keeps a set of storages in sync with their
// remotes.
type Runner struct {
	basePath string

	mu       sync.Mutex
	storages []storage.RunnerStorage
	locks    map[string]*sync.Mutex
}

// New returns a Runner with no storages registered.
func New(cfg Config) *Runner {
	return &Runner{
		basePath: cfg.BasePath,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Add registers a storage, applying the runner's base path.
// Storages equal to an already registered one are skipped.
// Returns whether the storage was added.
func (r *Runner) Add(st storage.RunnerStorage) bool {
	if r.basePath != "" {
		st.SetBasePath(r.basePath)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.storages {
		if existing.Equal(st) {
			slog.Debug(
				"storage already registered",
				"destination", st.Destination(),
			)

			return false
		}
	}

	r.storages = append(r.storages, st)

	return true
}

// SyncOnce pulls every registered storage once. All
// storages are attempted; the first error is returned with
// the failure count.
func (r *Runner) SyncOnce(ctx context.Context) error {
	const errCtx = "syncing storages"

	var errs []error

	for _, st := range r.snapshot() {
		if err := r.pull(ctx, st); err != nil {
			errs = append(errs, fmt.Errorf(
				"%s: %w", st.Destination(), err,
			))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf(
			"%s: %d errors, first: %w",
			errCtx, len(errs), errs[0],
		)
	}

	return nil
}

// Run performs an initial sync of every storage, then
// re-pulls each storage with a pull interval on its own
// ticker until ctx is cancelled. Storages without an
// interval are synced exactly once. Failures after the
// initial sync are logged, not returned: cadence is this
// runner's policy, retries happen on the next tick.
func (r *Runner) Run(ctx context.Context) error {
	const errCtx = "running sync loop"

	if err := r.SyncOnce(ctx); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	var wg sync.WaitGroup

	for _, st := range r.snapshot() {
		interval := st.PullInterval()
		if interval == nil || *interval <= 0 {
			continue
		}

		wg.Add(1)

		go func(
			st storage.RunnerStorage,
			every time.Duration,
		) {
			defer wg.Done()

			ticker := time.NewTicker(every)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return

				case <-ticker.C:
					if err := r.pull(
						ctx, st,
					); err != nil {
						slog.Error(
							"sync failed",
							"destination",
							st.Destination(),
							"error", err,
						)
					}
				}
			}
		}(st, *interval)
	}

	wg.Wait()

	return nil
}

// pull runs one sync attempt, serialized per destination.
// Concurrent git invocations against the same working copy
// would race and may corrupt it.
func (r *Runner) pull(
	ctx context.Context,
	st storage.RunnerStorage,
) error {
	lock := r.destinationLock(st.Destination())

	lock.Lock()
	defer lock.Unlock()

	return st.PullCode(ctx)
}

func (r *Runner) destinationLock(
	dest string,
) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[dest]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[dest] = lock
	}

	return lock
}

func (r *Runner) snapshot() []storage.RunnerStorage {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(
		[]storage.RunnerStorage, len(r.storages),
	)
	copy(out, r.storages)

	return out
}
