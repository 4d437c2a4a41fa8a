package supply

import (
	"context"
	"errors"
	"fmt"

	"github.com/ByteMirror/survivalpong/concurrency"
	"github.com/ByteMirror/survivalpong/config"
)

// Manager runs production and retrieval on two independent worker pools so a
// backlog of one never starves the other.
type Manager struct {
	production *concurrency.WorkerPool
	retrieval  *concurrency.WorkerPool
}

// NewManager builds both pools. Call Start before submitting.
func NewManager(production, retrieval config.WorkerConfig) *Manager {
	return &Manager{
		production: concurrency.NewWorkerPool(poolConfig("production", production)),
		retrieval:  concurrency.NewWorkerPool(poolConfig("retrieval", retrieval)),
	}
}

func poolConfig(name string, w config.WorkerConfig) concurrency.WorkerPoolConfig {
	return concurrency.WorkerPoolConfig{
		Name:       name,
		MinWorkers: w.MinWorkers,
		MaxWorkers: w.MaxWorkers,
		KeepAlive:  w.KeepAlive(),
	}
}

// Start launches the core workers of both pools.
func (m *Manager) Start() error {
	if err := m.production.Start(); err != nil {
		return fmt.Errorf("failed to start production workers: %w", err)
	}
	if err := m.retrieval.Start(); err != nil {
		return fmt.Errorf("failed to start retrieval workers: %w", err)
	}
	return nil
}

// Shutdown stops both pools. Queued tasks complete with concurrency.ErrPoolClosed.
func (m *Manager) Shutdown(ctx context.Context) error {
	return errors.Join(m.production.Shutdown(ctx), m.retrieval.Shutdown(ctx))
}

// SubmitProduction queues a production task. It never blocks.
func (m *Manager) SubmitProduction(t *ProductionTask) (*concurrency.Handle, error) {
	return m.production.Submit(t)
}

// SubmitRetrieval queues a retrieval task. Wait on the handle for the ball.
func (m *Manager) SubmitRetrieval(t *RetrievalTask) (*concurrency.Handle, error) {
	return m.retrieval.Submit(t)
}

// Production exposes the production pool for metrics.
func (m *Manager) Production() *concurrency.WorkerPool {
	return m.production
}

// Retrieval exposes the retrieval pool for metrics.
func (m *Manager) Retrieval() *concurrency.WorkerPool {
	return m.retrieval
}
