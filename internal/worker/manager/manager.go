// Package manager keeps track of the workers a daemon runs and bounds how
// many of them execute at once.
package manager

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/onee-only/capstat/internal/worker"
	"github.com/onee-only/capstat/pkg/stat"
)

var ErrNotFound = errors.New("worker not found")

type Manager struct {
	workers map[uuid.UUID]*worker.Worker
	lock    sync.RWMutex

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	log logrus.FieldLogger
}

func New(maxWorkers int, log logrus.FieldLogger) *Manager {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Manager{
		workers: make(map[uuid.UUID]*worker.Worker),
		sem:     semaphore.NewWeighted(int64(maxWorkers)),
		log:     log,
	}
}

func (m *Manager) RegisterWorker(w *worker.Worker) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.workers[w.ID()] = w
}

// Run registers w and executes it once a slot is free. ctx is the context
// returned alongside w by worker.NewWorker.
func (m *Manager) Run(ctx context.Context, w *worker.Worker) {
	m.RegisterWorker(w)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		log := m.log.WithField("worker", w.ID().String())

		if err := m.sem.Acquire(ctx, 1); err != nil {
			w.Cancel()
			log.WithError(context.Cause(ctx)).Info("manager: worker canceled while queued")
			return
		}
		defer m.sem.Release(1)

		if err := w.Exec(ctx); err != nil {
			log.WithError(err).Warn("manager: worker stopped with error")
			return
		}
		log.Info("manager: worker finished")
	}()
}

// All returns the stats of every known worker, oldest first.
func (m *Manager) All() (stats []stat.Worker) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	stats = make([]stat.Worker, 0, len(m.workers))
	for _, w := range m.workers {
		stats = append(stats, w.ExportStats())
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].CreatedAt.Before(stats[j].CreatedAt)
	})
	return
}

func (m *Manager) FetchStat(id uuid.UUID) (stat.Worker, error) {
	m.lock.RLock()
	w, ok := m.workers[id]
	m.lock.RUnlock()

	if !ok {
		return stat.Worker{}, ErrNotFound
	}

	return w.ExportStats(), nil
}

func (m *Manager) Cancel(id uuid.UUID) (stat.Worker, error) {
	m.lock.RLock()
	w, ok := m.workers[id]
	m.lock.RUnlock()

	if !ok {
		return stat.Worker{}, ErrNotFound
	}

	w.Cancel()
	return w.ExportStats(), nil
}

// Wait blocks until every started worker has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}
