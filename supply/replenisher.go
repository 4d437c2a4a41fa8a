package supply

import (
	"github.com/ByteMirror/survivalpong/ball"
	"github.com/ByteMirror/survivalpong/log"
	"github.com/ByteMirror/survivalpong/pool"
)

const (
	DefaultMinimumStock = 10
	DefaultBatchSize    = 5
)

// Replenisher keeps every pool above a minimum stock.
type Replenisher struct {
	registry *pool.Registry
	manager  *Manager

	MinimumStock int
	BatchSize    int
}

func NewReplenisher(r *pool.Registry, m *Manager, minimumStock, batchSize int) *Replenisher {
	if minimumStock <= 0 {
		minimumStock = DefaultMinimumStock
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Replenisher{
		registry:     r,
		manager:      m,
		MinimumStock: minimumStock,
		BatchSize:    batchSize,
	}
}

// EnsureSupply submits BatchSize production tasks for every variant whose
// stock is below MinimumStock. The returned batch covers only this call.
func (r *Replenisher) EnsureSupply() *Batch {
	counts := r.registry.AvailableCounts()
	batch := newBatch()

	for _, v := range ball.Variants() {
		if counts[v] >= r.MinimumStock {
			continue
		}
		for i := 0; i < r.BatchSize; i++ {
			h, err := r.manager.SubmitProduction(NewProductionTask(r.registry, v))
			if err != nil {
				log.WarningLog.Printf("could not submit %s production: %v", v, err)
				batch.fail(v, err)
				continue
			}
			batch.Add(v, h)
		}
	}

	if batch.Triggered() {
		log.InfoLog.Printf("replenishing pools: %s", batch)
	}
	return batch
}
