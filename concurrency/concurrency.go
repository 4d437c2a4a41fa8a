// Package concurrency provides the elastic worker pool that runs ball
// production and retrieval jobs.
//
// # WorkerPool
//
// A pool starts MinWorkers goroutines and grows up to MaxWorkers while queued
// jobs outnumber idle workers. Workers above MinWorkers exit after idling for
// KeepAlive. The queue is unbounded and FIFO, so Submit never blocks:
//
//	pool := NewWorkerPool(DefaultWorkerPoolConfig())
//	pool.Start()
//	h, _ := pool.Submit(job)
//	result, err := h.Wait(ctx)
//	pool.Shutdown(ctx)
//
// Each Submit returns a Handle that completes exactly once, either with the
// job's result or with ErrPoolClosed when the pool shut down first.
package concurrency
