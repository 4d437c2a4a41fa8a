package main

import (
	"context"
	"testing"
	"time"

	"github.com/ByteMirror/survivalpong/ball"
	"github.com/ByteMirror/survivalpong/config"
	"github.com/ByteMirror/survivalpong/game"
	"github.com/ByteMirror/survivalpong/monitor"
	"github.com/ByteMirror/survivalpong/pool"
	"github.com/ByteMirror/survivalpong/supply"
)

var benchBounds = &ball.Bounds{Width: 960, Height: 540}

// BenchmarkProduceConsume measures a produce/consume round trip on one pool
func BenchmarkProduceConsume(b *testing.B) {
	r := pool.NewRegistry(benchBounds)
	v := ball.Variant{Difficulty: ball.Easy, Size: ball.Medium}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := r.Produce(v); err != nil {
			b.Fatal(err)
		}
		if _, err := r.Consume(v); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkParallelReturn measures contention when many goroutines recycle balls
func BenchmarkParallelReturn(b *testing.B) {
	r := pool.NewRegistry(benchBounds)
	v := ball.Variant{Difficulty: ball.Hard, Size: ball.Small}
	for i := 0; i < 64; i++ {
		_ = r.Produce(v)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			bl, err := r.Consume(v)
			if err != nil {
				continue
			}
			r.ReturnUnits(bl)
		}
	})
}

// BenchmarkRequestUnit measures retrieval through the retrieval workers
func BenchmarkRequestUnit(b *testing.B) {
	cfg := config.DefaultConfig()
	r := pool.NewRegistry(benchBounds)
	m := supply.NewManager(cfg.Production, cfg.Retrieval)
	if err := m.Start(); err != nil {
		b.Fatal(err)
	}
	defer m.Shutdown(context.Background())

	o := supply.NewEasyOrchestrator(r, m)
	v := ball.Variant{Difficulty: ball.Easy, Size: ball.Small}
	if err := r.Produce(v); err != nil {
		b.Fatal(err)
	}

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bl, err := o.RequestUnit(ctx, ball.Small)
		if err != nil {
			b.Fatal(err)
		}
		r.ReturnUnits(bl)
	}
}

// BenchmarkGameTick measures one simulation step with a full field
func BenchmarkGameTick(b *testing.B) {
	cfg := config.DefaultConfig()
	s, err := startSupply(cfg)
	if err != nil {
		b.Fatal(err)
	}
	defer s.shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g := game.New(game.SettingsFromConfig(cfg), s.registry, s.manager)
	if err := g.Start(ctx); err != nil {
		b.Fatal(err)
	}
	defer g.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Tick()
	}
}

// BenchmarkDashboardRows measures building the monitor table
func BenchmarkDashboardRows(b *testing.B) {
	r := pool.NewRegistry(benchBounds)
	src := monitor.SupplySource{Registry: r, MinimumStock: 10}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = monitor.Rows(src.Stats())
	}
}
