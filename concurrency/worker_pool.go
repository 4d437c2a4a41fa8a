package concurrency

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrPoolNotStarted is returned by Submit before Start.
	ErrPoolNotStarted = errors.New("worker pool not started")
	// ErrPoolClosed is returned by Submit after Shutdown, and is the result
	// of any job still queued when the pool shut down.
	ErrPoolClosed = errors.New("worker pool is shut down")
)

// Job represents a unit of work to be executed by the worker pool.
// Implementations must be safe for concurrent execution.
type Job interface {
	// Execute performs the job's work and returns a result or error.
	Execute(ctx context.Context) (interface{}, error)
	// ID returns an identifier for the job, used in logs and results.
	ID() string
}

// JobResult contains the outcome of a job execution.
type JobResult struct {
	JobID     string
	Result    interface{}
	Error     error
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Handle is the completion token returned by Submit.
type Handle struct {
	jobID  string
	done   chan struct{}
	result JobResult
}

func newHandle(jobID string) *Handle {
	return &Handle{jobID: jobID, done: make(chan struct{})}
}

func (h *Handle) complete(result JobResult) {
	h.result = result
	close(h.done)
}

// JobID returns the ID of the submitted job.
func (h *Handle) JobID() string {
	return h.jobID
}

// Done is closed when the job has finished (or was dropped at shutdown).
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the job result and whether the job has finished.
func (h *Handle) Result() (JobResult, bool) {
	select {
	case <-h.done:
		return h.result, true
	default:
		return JobResult{}, false
	}
}

// Wait blocks until the job finishes or ctx is done. The returned error is
// the job's own error, or ctx.Err() if the wait was abandoned.
func (h *Handle) Wait(ctx context.Context) (JobResult, error) {
	select {
	case <-h.done:
		return h.result, h.result.Error
	case <-ctx.Done():
		return JobResult{JobID: h.jobID}, ctx.Err()
	}
}

// WorkerStatus represents the state of a worker.
type WorkerStatus int

const (
	// WorkerIdle indicates the worker is waiting for jobs.
	WorkerIdle WorkerStatus = iota
	// WorkerBusy indicates the worker is processing a job.
	WorkerBusy
	// WorkerStopped indicates the worker has exited.
	WorkerStopped
)

func (s WorkerStatus) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerBusy:
		return "busy"
	case WorkerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Worker represents a single worker goroutine.
type Worker struct {
	id            int
	status        atomic.Int32 // Stores WorkerStatus
	lastActive    atomic.Int64 // Unix nanos
	jobsProcessed atomic.Uint64
}

func newWorker(id int) *Worker {
	w := &Worker{id: id}
	w.status.Store(int32(WorkerIdle))
	w.touch()
	return w
}

// ID returns the worker's identifier.
func (w *Worker) ID() int {
	return w.id
}

// Status returns the current status of the worker.
func (w *Worker) Status() WorkerStatus {
	return WorkerStatus(w.status.Load())
}

func (w *Worker) setStatus(status WorkerStatus) {
	w.status.Store(int32(status))
}

// LastActive returns when the worker last started or finished a job.
func (w *Worker) LastActive() time.Time {
	return time.Unix(0, w.lastActive.Load())
}

func (w *Worker) touch() {
	w.lastActive.Store(time.Now().UnixNano())
}

// JobsProcessed returns the total number of jobs processed by this worker.
func (w *Worker) JobsProcessed() uint64 {
	return w.jobsProcessed.Load()
}

// Metrics tracks statistics for the worker pool.
type Metrics struct {
	JobsSubmitted  atomic.Uint64
	JobsCompleted  atomic.Uint64
	JobsFailed     atomic.Uint64
	JobsDropped    atomic.Uint64
	TotalLatency   atomic.Int64 // Nanoseconds
	MinLatency     atomic.Int64 // Nanoseconds
	MaxLatency     atomic.Int64 // Nanoseconds
	ActiveWorkers  atomic.Int32
	LiveWorkers    atomic.Int32
	WorkersSpawned atomic.Uint64
	WorkersRetired atomic.Uint64
}

// AverageLatency returns the average job execution time.
func (m *Metrics) AverageLatency() time.Duration {
	finished := m.JobsCompleted.Load() + m.JobsFailed.Load()
	if finished == 0 {
		return 0
	}
	return time.Duration(m.TotalLatency.Load() / int64(finished))
}

// recordLatency updates latency metrics.
func (m *Metrics) recordLatency(duration time.Duration) {
	nanos := duration.Nanoseconds()
	m.TotalLatency.Add(nanos)

	for {
		current := m.MinLatency.Load()
		if current != 0 && nanos >= current {
			break
		}
		if m.MinLatency.CompareAndSwap(current, nanos) {
			break
		}
	}

	for {
		current := m.MaxLatency.Load()
		if nanos <= current {
			break
		}
		if m.MaxLatency.CompareAndSwap(current, nanos) {
			break
		}
	}
}

// String returns a formatted string representation of the metrics.
func (m *Metrics) String() string {
	return fmt.Sprintf(
		"Jobs: %d submitted, %d completed, %d failed, %d dropped | "+
			"Latency: avg=%v, min=%v, max=%v | "+
			"Workers: %d live, %d active",
		m.JobsSubmitted.Load(),
		m.JobsCompleted.Load(),
		m.JobsFailed.Load(),
		m.JobsDropped.Load(),
		m.AverageLatency(),
		time.Duration(m.MinLatency.Load()),
		time.Duration(m.MaxLatency.Load()),
		m.LiveWorkers.Load(),
		m.ActiveWorkers.Load(),
	)
}

// WorkerPoolConfig contains configuration options for the worker pool.
type WorkerPoolConfig struct {
	// Name labels the pool in logs and dashboards.
	Name string
	// MinWorkers are started by Start and never retire (default: 4).
	MinWorkers int
	// MaxWorkers is the maximum number of concurrent workers (default: 16).
	MaxWorkers int
	// KeepAlive is how long a worker above MinWorkers may idle before exiting (default: 1 second).
	KeepAlive time.Duration
	// JobTimeout bounds a single job's context. Zero means no timeout.
	JobTimeout time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with default values.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Name:       "pool",
		MinWorkers: 4,
		MaxWorkers: 16,
		KeepAlive:  time.Second,
	}
}

type queuedJob struct {
	job    Job
	handle *Handle
}

// WorkerPool runs jobs on an elastic set of goroutines. MinWorkers are
// always running; more are spawned up to MaxWorkers while queued jobs
// outnumber idle workers. The pending queue is unbounded, so Submit never blocks.
type WorkerPool struct {
	config WorkerPoolConfig
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics *Metrics
	started atomic.Bool

	// wake carries at most MaxWorkers pending wake-ups. A dropped wake-up is
	// harmless: a full buffer means enough workers will look at the queue.
	wake chan struct{}

	mu      sync.Mutex
	queue   *list.List
	workers map[int]*Worker
	idle    int
	nextID  int
	closed  bool
}

// NewWorkerPool creates a new worker pool with the given configuration.
func NewWorkerPool(config WorkerPoolConfig) *WorkerPool {
	def := DefaultWorkerPoolConfig()
	if config.Name == "" {
		config.Name = def.Name
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = def.MaxWorkers
	}
	if config.MaxWorkers > 1000 {
		config.MaxWorkers = 1000
	}
	if config.MinWorkers < 0 {
		config.MinWorkers = 0
	}
	if config.MinWorkers > config.MaxWorkers {
		config.MinWorkers = config.MaxWorkers
	}
	if config.KeepAlive <= 0 {
		config.KeepAlive = def.KeepAlive
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		metrics: &Metrics{},
		wake:    make(chan struct{}, config.MaxWorkers),
		queue:   list.New(),
		workers: make(map[int]*Worker),
	}
}

// Name returns the configured pool name.
func (wp *WorkerPool) Name() string {
	return wp.config.Name
}

// Config returns the effective configuration after defaults were applied.
func (wp *WorkerPool) Config() WorkerPoolConfig {
	return wp.config
}

// Start launches the core workers.
func (wp *WorkerPool) Start() error {
	if !wp.started.CompareAndSwap(false, true) {
		return fmt.Errorf("worker pool %s already started", wp.config.Name)
	}

	wp.mu.Lock()
	defer wp.mu.Unlock()
	for i := 0; i < wp.config.MinWorkers; i++ {
		wp.spawnLocked()
	}
	return nil
}

// Submit queues a job and returns its completion handle. It never blocks.
func (wp *WorkerPool) Submit(job Job) (*Handle, error) {
	if !wp.started.Load() {
		return nil, ErrPoolNotStarted
	}

	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return nil, ErrPoolClosed
	}
	h := newHandle(job.ID())
	wp.queue.PushBack(queuedJob{job: job, handle: h})
	wp.metrics.JobsSubmitted.Add(1)
	if wp.queue.Len() > wp.idle && len(wp.workers) < wp.config.MaxWorkers {
		wp.spawnLocked()
	}
	wp.mu.Unlock()

	select {
	case wp.wake <- struct{}{}:
	default:
	}
	return h, nil
}

// QueueDepth returns the number of jobs waiting for a worker.
func (wp *WorkerPool) QueueDepth() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.queue.Len()
}

// Metrics returns the live pool metrics.
func (wp *WorkerPool) Metrics() *Metrics {
	return wp.metrics
}

// Workers returns the workers that are currently alive.
func (wp *WorkerPool) Workers() []*Worker {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	workers := make([]*Worker, 0, len(wp.workers))
	for _, w := range wp.workers {
		workers = append(workers, w)
	}
	return workers
}

// Shutdown stops accepting jobs, stops all workers and fails every job that
// never started with ErrPoolClosed. Running jobs see their context cancelled.
func (wp *WorkerPool) Shutdown(ctx context.Context) error {
	if !wp.started.Load() {
		return ErrPoolNotStarted
	}

	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return nil
	}
	wp.closed = true
	pending := wp.queue
	wp.queue = list.New()
	wp.mu.Unlock()

	wp.cancel()
	for e := pending.Front(); e != nil; e = e.Next() {
		qj := e.Value.(queuedJob)
		wp.metrics.JobsDropped.Add(1)
		qj.handle.complete(JobResult{JobID: qj.handle.jobID, Error: ErrPoolClosed})
	}

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown of %s cancelled: %w", wp.config.Name, ctx.Err())
	}
}

func (wp *WorkerPool) spawnLocked() {
	w := newWorker(wp.nextID)
	wp.nextID++
	wp.workers[w.id] = w
	wp.idle++
	wp.metrics.LiveWorkers.Add(1)
	wp.metrics.WorkersSpawned.Add(1)

	wp.wg.Add(1)
	go wp.workerLoop(w)
}

// next pops the oldest job. On an empty queue it reports whether the worker
// should retire instead of waiting: only workers above MinWorkers retire.
func (wp *WorkerPool) next(w *Worker, idleExpired bool) (queuedJob, bool, bool) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if front := wp.queue.Front(); front != nil && !wp.closed {
		wp.queue.Remove(front)
		wp.idle--
		return front.Value.(queuedJob), true, false
	}
	if wp.closed || (idleExpired && len(wp.workers) > wp.config.MinWorkers) {
		wp.retireLocked(w)
		return queuedJob{}, false, true
	}
	return queuedJob{}, false, false
}

func (wp *WorkerPool) retireLocked(w *Worker) {
	delete(wp.workers, w.id)
	wp.idle--
	w.setStatus(WorkerStopped)
	wp.metrics.LiveWorkers.Add(-1)
	wp.metrics.WorkersRetired.Add(1)
}

// workerLoop is the main loop for a worker goroutine.
func (wp *WorkerPool) workerLoop(w *Worker) {
	defer wp.wg.Done()

	timer := time.NewTimer(wp.config.KeepAlive)
	defer timer.Stop()

	idleExpired := false
	for {
		qj, ok, retire := wp.next(w, idleExpired)
		if retire {
			return
		}
		if ok {
			qj.handle.complete(wp.executeJob(w, qj.job))
			wp.mu.Lock()
			wp.idle++
			wp.mu.Unlock()
			idleExpired = false
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wp.config.KeepAlive)

		select {
		case <-wp.wake:
			idleExpired = false
		case <-timer.C:
			idleExpired = true
		case <-wp.ctx.Done():
			idleExpired = true
		}
	}
}

// executeJob runs a job and returns the result.
func (wp *WorkerPool) executeJob(w *Worker, job Job) JobResult {
	w.setStatus(WorkerBusy)
	w.touch()
	wp.metrics.ActiveWorkers.Add(1)
	defer func() {
		wp.metrics.ActiveWorkers.Add(-1)
		w.setStatus(WorkerIdle)
		w.touch()
	}()

	jobCtx, cancel := wp.ctx, context.CancelFunc(func() {})
	if wp.config.JobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(wp.ctx, wp.config.JobTimeout)
	}
	defer cancel()

	startTime := time.Now()
	res, err := job.Execute(jobCtx)
	endTime := time.Now()
	duration := endTime.Sub(startTime)

	if err != nil {
		wp.metrics.JobsFailed.Add(1)
	} else {
		wp.metrics.JobsCompleted.Add(1)
		w.jobsProcessed.Add(1)
	}
	wp.metrics.recordLatency(duration)

	return JobResult{
		JobID:     job.ID(),
		Result:    res,
		Error:     err,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  duration,
	}
}
