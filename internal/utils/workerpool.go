// Package utils holds small generic infrastructure shared across
// packages that isn't domain-specific enough to belong anywhere else.
// WorkerPool is adapted from the teacher's internal/worker.go: the same
// tomb.v2-driven fixed-size pool draining a task channel, moved to its
// own package (internal/net/server.go in the teacher repo already
// imports it as fenrir/internal/utils.WorkerPool) and completed with the
// AddTask method that import expects but the original never defined.
package utils

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const defaultTaskChanSize = 100

// WorkerFunction processes one task. Returning a non-nil error is fatal
// to that worker goroutine (and, via tomb, to the whole pool).
type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool runs up to n goroutines pulling tasks off a shared channel.
type WorkerPool struct {
	n     int
	tasks chan any
}

// NewWorkerPool builds a pool of size workers with a default-sized task
// queue.
func NewWorkerPool(size int) WorkerPool {
	return WorkerPool{
		tasks: make(chan any, defaultTaskChanSize),
		n:     size,
	}
}

// AddTask enqueues task for a worker to pick up. Blocks if the queue is
// full -- callers that must not block (the matching hot path) don't use
// this pool; it backs the ingress gateway's connection handling only.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Setup maintains a full pool of workers until t starts dying.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	log.Info().Int("activeWorkers", pool.n).Msg("adding workers")
	activeWorkers := 0
	for {
		select {
		case <-t.Dying():
			return
		default:
			if activeWorkers < pool.n {
				t.Go(func() error {
					err := pool.worker(t, work)
					activeWorkers--
					return err
				})
				activeWorkers++
			}
		}
	}
}

// worker waits on a single task, actions it, then returns -- Setup
// immediately replaces it, keeping the pool at a steady size.
func (pool *WorkerPool) worker(t *tomb.Tomb, work WorkerFunction) error {
	select {
	case <-t.Dying():
		return nil
	case task := <-pool.tasks:
		if err := work(t, task); err != nil {
			log.Error().Err(err).Msg("worker exiting")
			return err
		}
	}
	return nil
}
