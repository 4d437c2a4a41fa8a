package monitor

import (
	"time"

	"github.com/ByteMirror/survivalpong/ball"
	"github.com/ByteMirror/survivalpong/concurrency"
	"github.com/ByteMirror/survivalpong/game"
	"github.com/ByteMirror/survivalpong/pool"
	"github.com/ByteMirror/survivalpong/supply"
)

// WorkerStats summarises one worker pool.
type WorkerStats struct {
	Name       string
	Live       int32
	Active     int32
	Queued     int
	Completed  uint64
	Failed     uint64
	AvgLatency time.Duration
}

// Stats is everything the dashboard shows at one instant.
type Stats struct {
	Stock        map[ball.Variant]int
	Produced     map[ball.Variant]int64
	MinimumStock int
	Workers      []WorkerStats
	// Game is nil when no match is running.
	Game *game.Frame
}

// Source produces Stats on demand. It is called from the dashboard goroutine.
type Source interface {
	Stats() Stats
}

// SupplySource reads live stats from the supply subsystem and, optionally, a game.
type SupplySource struct {
	Registry     *pool.Registry
	Manager      *supply.Manager
	MinimumStock int
	Game         *game.Game
}

func (s SupplySource) Stats() Stats {
	st := Stats{
		Stock:        s.Registry.AvailableCounts(),
		Produced:     make(map[ball.Variant]int64),
		MinimumStock: s.MinimumStock,
	}
	for _, v := range ball.Variants() {
		st.Produced[v] = s.Registry.Produced(v)
	}
	if s.Manager != nil {
		st.Workers = []WorkerStats{
			workerStats(s.Manager.Production()),
			workerStats(s.Manager.Retrieval()),
		}
	}
	if s.Game != nil {
		f := s.Game.Snapshot()
		st.Game = &f
	}
	return st
}

func workerStats(p *concurrency.WorkerPool) WorkerStats {
	m := p.Metrics()
	return WorkerStats{
		Name:       p.Name(),
		Live:       m.LiveWorkers.Load(),
		Active:     m.ActiveWorkers.Load(),
		Queued:     p.QueueDepth(),
		Completed:  m.JobsCompleted.Load(),
		Failed:     m.JobsFailed.Load(),
		AvgLatency: m.AverageLatency(),
	}
}
