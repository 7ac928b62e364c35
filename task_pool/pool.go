package task_pool

import (
	"context"
	"fmt"
	"github.com/cespare/xxhash/v2"
	"github.com/pickme-go/log/v2"
	"github.com/pickme-go/metrics/v2"
	"sync"
	"time"
)

type ExecutionOrder int

const (
	// OrderByKey runs all tasks of one key on the same worker, in submission order.
	OrderByKey ExecutionOrder = iota
	// OrderPreserved runs every task on a single worker.
	OrderPreserved
)

func (eo ExecutionOrder) String() string {
	if eo == OrderPreserved {
		return `OrderPreserved`
	}

	return `OrderByKey`
}

type Task func(ctx context.Context)

type task struct {
	ctx context.Context
	fn  Task
}

type PoolConfig struct {
	NumOfWorkers     int
	WorkerBufferSize int
	Order            ExecutionOrder
}

type Pool struct {
	id      string
	size    uint64
	workers []*worker
	logger  log.Logger
	order   ExecutionOrder
	stopped chan struct{}
	wg      *sync.WaitGroup
	once    sync.Once
}

func NewPool(id string, logger log.Logger, metricsReporter metrics.Reporter, config *PoolConfig) *Pool {

	p := &Pool{
		id:      id,
		size:    uint64(config.NumOfWorkers),
		order:   config.Order,
		logger:  logger.NewLog(log.Prefixed(fmt.Sprintf(`task-pool-%s`, id))),
		workers: make([]*worker, config.NumOfWorkers),
		stopped: make(chan struct{}),
		wg:      new(sync.WaitGroup),
	}

	bufferUsage := metricsReporter.Observer(metrics.MetricConf{
		Path:   `k_join_task_pool_worker_buffer`,
		Labels: []string{`pool_id`, `worker`},
	})

	for i := range p.workers {
		p.workers[i] = &worker{
			id:          i,
			tasks:       make(chan task, config.WorkerBufferSize),
			pool:        p,
			bufferUsage: bufferUsage,
		}
	}

	p.wg.Add(len(p.workers))
	for _, w := range p.workers {
		go w.start()
	}

	p.logger.Info(fmt.Sprintf(`pool started with %d workers (%s)`, config.NumOfWorkers, config.Order))

	return p
}

// Run queues fn on the worker owning key. It blocks while that worker's buffer is
// full and returns false when ctx is done first or the pool is stopped.
func (p *Pool) Run(ctx context.Context, key []byte, fn Task) bool {
	w := p.worker(key)

	select {
	case <-p.stopped:
		return false
	default:
	}

	select {
	case w.tasks <- task{ctx: ctx, fn: fn}:
		return true
	case <-ctx.Done():
		return false
	case <-p.stopped:
		return false
	}
}

// Stop waits for all queued tasks to finish. Run must not be called concurrently
// with or after Stop.
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.stopped)
		for _, w := range p.workers {
			close(w.tasks)
		}
		p.wg.Wait()
		p.logger.Info(`pool stopped`)
	})
}

func (p *Pool) worker(key []byte) *worker {
	if p.order == OrderPreserved || p.size == 1 {
		return p.workers[0]
	}

	return p.workers[xxhash.Sum64(key)%p.size]
}

// WorkerOf returns the index of the worker which owns key.
func (p *Pool) WorkerOf(key []byte) int {
	return p.worker(key).id
}

type worker struct {
	id          int
	tasks       chan task
	pool        *Pool
	bufferUsage metrics.Observer
}

func (w *worker) start() {
	defer w.pool.wg.Done()

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		lbs := map[string]string{`pool_id`: w.pool.id, `worker`: fmt.Sprint(w.id)}
		for {
			select {
			case <-ticker.C:
				w.bufferUsage.Observe((float64(len(w.tasks))/float64(cap(w.tasks)))*100, lbs)
			case <-done:
				return
			}
		}
	}()

	for t := range w.tasks {
		t.fn(t.ctx)
	}
}
