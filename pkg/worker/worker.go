package worker

import (
	"errors"
	"sync"

	"github.com/nearwave/geocampaign/pkg/logger"
)

// ErrPoolStopped is returned by Start once every worker has drained out.
var ErrPoolStopped = errors.New("worker pool stopped")

type WorkerHandler = func(workerIndex int, job interface{})

// WorkerManager fans jobs out to a fixed pool of goroutines. Jobs already
// sitting in the buffer when Exit is called are abandoned; callers that need
// at-least-once behaviour must keep the job recoverable elsewhere (the
// dispatch queue does this with pending redis-stream entries).
type WorkerManager struct {
	jobs    chan interface{}
	workers int
	quit    chan struct{}
	handle  WorkerHandler
	wg      sync.WaitGroup
	once    sync.Once
}

func NewWorkerManager(bufferSize, workers int, jobs chan interface{}) *WorkerManager {
	if jobs == nil {
		jobs = make(chan interface{}, bufferSize)
	}
	return &WorkerManager{
		jobs:    jobs,
		workers: workers,
		quit:    make(chan struct{}),
	}
}

// Pending reports how many jobs are buffered but not yet picked up.
func (w *WorkerManager) Pending() int64 {
	return int64(len(w.jobs))
}

// SetWorker must be called before Start.
func (w *WorkerManager) SetWorker(handler WorkerHandler) {
	w.handle = handler
}

// Enqueue blocks while the buffer is full, which backpressures the queue
// consumers feeding the pool.
func (w *WorkerManager) Enqueue(job interface{}) {
	w.jobs <- job
}

// Start runs the pool and blocks until Exit stops every worker.
func (w *WorkerManager) Start() error {
	w.wg.Add(w.workers)
	for i := 0; i < w.workers; i++ {
		go w.run(i)
	}
	w.wg.Wait()
	return ErrPoolStopped
}

func (w *WorkerManager) run(index int) {
	defer w.wg.Done()
	for {
		select {
		case <-w.quit:
			return
		case job := <-w.jobs:
			w.handle(index, job)
		}
	}
}

// Exit stops every worker after its current job. Safe to call more than once.
func (w *WorkerManager) Exit() {
	w.once.Do(func() {
		logger.Info("worker pool shutting down", "pending", w.Pending())
		close(w.quit)
	})
}
