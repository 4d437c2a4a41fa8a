package game

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ByteMirror/survivalpong/ball"
	"github.com/ByteMirror/survivalpong/config"
	"github.com/ByteMirror/survivalpong/log"
	"github.com/ByteMirror/survivalpong/pool"
	"github.com/ByteMirror/survivalpong/supply"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Initialize("test")
	defer log.Close(true)
	os.Exit(m.Run())
}

func testSettings() Settings {
	return Settings{
		Bounds:               ball.Bounds{Width: 200, Height: 100},
		PaddleSpeed:          8,
		PaddleWidthFraction:  50,
		PaddleHeightFraction: 4,
		LevelDurationSecs:    15,
		EasyLevels:           5,
		MinimumStock:         10,
		BatchSize:            5,
		PollInterval:         10 * time.Millisecond,
		WaitTimeout:          2 * time.Second,
	}
}

type testGame struct {
	*Game
	manager *supply.Manager
	clock   *FakeClock
}

func newTestGame(t *testing.T, settings Settings, opts ...pool.Option) *testGame {
	t.Helper()
	registry := pool.NewRegistry(&settings.Bounds, opts...)
	workers := config.WorkerConfig{MinWorkers: 2, MaxWorkers: 4, KeepAliveMs: 100}
	manager := supply.NewManager(workers, workers)
	require.NoError(t, manager.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	clock := NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	g := New(settings, registry, manager, WithClock(clock))
	return &testGame{Game: g, manager: manager, clock: clock}
}

func (tg *testGame) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tg.Start(ctx))
}

// waitForProduction blocks until no production task is queued or running.
func (tg *testGame) waitForProduction(t *testing.T) {
	t.Helper()
	p := tg.manager.Production()
	require.Eventually(t, func() bool {
		return p.QueueDepth() == 0 && p.Metrics().ActiveWorkers.Load() == 0
	}, 5*time.Second, 5*time.Millisecond)
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	s := SettingsFromConfig(cfg)

	assert.Equal(t, ball.Bounds{Width: 960, Height: 540}, s.Bounds)
	assert.Equal(t, 15, s.LevelDurationSecs)
	assert.Equal(t, 5, s.EasyLevels)
	assert.Equal(t, 10, s.MinimumStock)
	assert.Equal(t, 5, s.BatchSize)
	assert.Equal(t, time.Second, s.PollInterval)
}

func TestStartSpawnsOneEasyBall(t *testing.T) {
	g := newTestGame(t, testSettings())
	g.start(t)

	balls := g.Balls()
	require.Len(t, balls, 1)
	b := balls[0]
	assert.Equal(t, ball.Easy, b.Variant().Difficulty)

	x, y := b.Position()
	assert.Equal(t, 100, x)
	assert.Equal(t, 50, y)
	vx, vy := b.Velocity()
	assert.Contains(t, []int{-1, 1}, vx)
	assert.Contains(t, []int{-1, 1}, vy)

	counts := g.Registry().AvailableCounts()
	for _, v := range ball.Variants() {
		want := 5
		if v == b.Variant() {
			want = 4
		}
		assert.Equal(t, want, counts[v], v.String())
	}
	assert.Equal(t, 1, g.Level())
	assert.False(t, g.HardMode())
	assert.False(t, g.IsOver())
}

func TestStartFailsWhenStockNeverArrives(t *testing.T) {
	failing := func(ball.Variant, *ball.Bounds) (*ball.Ball, error) {
		return nil, errors.New("no factory")
	}
	var opts []pool.Option
	for _, size := range ball.Sizes {
		opts = append(opts, pool.WithConstructor(ball.Variant{Difficulty: ball.Easy, Size: size}, failing))
	}
	settings := testSettings()
	settings.WaitTimeout = 50 * time.Millisecond
	g := newTestGame(t, settings, opts...)

	err := g.Start(context.Background())

	assert.ErrorIs(t, err, supply.ErrWaitTimeout)
	assert.True(t, g.IsOver())
}

func TestMissedBallReturnsToPool(t *testing.T) {
	g := newTestGame(t, testSettings())
	g.start(t)

	b := g.Balls()[0]
	v := b.Variant()
	side := b.SideLength()
	before := g.Registry().AvailableCounts()[v]

	b.Launch(0, 40, -(side + 1), 0)
	b.Move()
	require.True(t, b.Missed())

	assert.Equal(t, 1, g.ReturnMissed())
	assert.Empty(t, g.Balls())
	assert.Equal(t, before+1, g.Registry().AvailableCounts()[v])
	assert.True(t, g.IsOver())
}

func TestReturnMissedKeepsLiveBalls(t *testing.T) {
	g := newTestGame(t, testSettings())
	g.start(t)

	assert.Equal(t, 0, g.ReturnMissed())
	assert.Len(t, g.Balls(), 1)
}

func TestLevelAdvancesOnClock(t *testing.T) {
	g := newTestGame(t, testSettings())
	g.start(t)

	for i := 0; i < 14; i++ {
		g.clock.Advance(time.Second)
		g.Tick()
	}
	assert.Equal(t, 1, g.Level())
	assert.Len(t, g.Balls(), 1)

	g.clock.Advance(time.Second)
	g.Tick()

	assert.Equal(t, 2, g.Level())
	assert.Equal(t, Result{Level: 2, Seconds: 15}, g.Result())
	assert.Equal(t, 0, g.Pending())
	balls := g.Balls()
	require.Len(t, balls, 2)
	vx, vy := balls[1].Velocity()
	assert.Contains(t, []int{-2, 2}, vx)
	assert.Contains(t, []int{-2, 2}, vy)
}

func TestNextLevelSwitchesToHardMode(t *testing.T) {
	g := newTestGame(t, testSettings())
	g.start(t)

	for i := 0; i < 4; i++ {
		g.NextLevel()
	}
	assert.Equal(t, 5, g.Level())
	assert.False(t, g.HardMode())
	assert.Equal(t, 4, g.Pending())

	g.NextLevel()
	assert.Equal(t, 6, g.Level())
	assert.True(t, g.HardMode())
	assert.Equal(t, 6, g.Pending())

	require.Eventually(t, func() bool {
		g.spawnPending()
		return g.Pending() == 0
	}, 5*time.Second, 5*time.Millisecond)

	hard := 0
	for _, b := range g.Balls() {
		if b.Variant().Difficulty == ball.Hard {
			hard++
			vx, _ := b.Velocity()
			assert.Contains(t, []int{-6, 6}, vx)
		}
	}
	assert.Equal(t, 6, hard)
	assert.Len(t, g.Balls(), 7)
}

func TestTickDoesNotWaitForStock(t *testing.T) {
	var failing atomic.Bool
	flaky := func(v ball.Variant, b *ball.Bounds) (*ball.Ball, error) {
		if failing.Load() {
			return nil, errors.New("out of material")
		}
		return ball.New(v, b)
	}
	var opts []pool.Option
	for _, size := range ball.Sizes {
		opts = append(opts, pool.WithConstructor(ball.Variant{Difficulty: ball.Easy, Size: size}, flaky))
	}
	g := newTestGame(t, testSettings(), opts...)
	g.start(t)

	failing.Store(true)
	for _, size := range ball.Sizes {
		v := ball.Variant{Difficulty: ball.Easy, Size: size}
		for !g.Registry().IsEmpty(v) {
			_, err := g.Registry().Consume(v)
			require.NoError(t, err)
		}
	}

	g.NextLevel()
	start := time.Now()
	g.Tick()

	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 1, g.Pending())
	assert.False(t, g.IsOver())
}

func TestConservationAndExclusivity(t *testing.T) {
	g := newTestGame(t, testSettings())
	g.start(t)

	for i := 0; i < 300; i++ {
		if i%50 == 0 {
			g.NextLevel()
		}
		g.Tick()

		seen := make(map[string]bool)
		for _, b := range g.Balls() {
			require.False(t, seen[b.ID()], "ball %s is in the active set twice", b.ID())
			seen[b.ID()] = true
			require.False(t, b.Missed(), "missed ball left in the active set")
		}
	}

	g.waitForProduction(t)
	counts := g.Registry().AvailableCounts()
	active := make(map[ball.Variant]int)
	for _, b := range g.Balls() {
		active[b.Variant()]++
	}
	for _, v := range ball.Variants() {
		assert.Equal(t, g.Registry().Produced(v), int64(counts[v]+active[v]), v.String())
	}
}

func TestCloseReturnsActiveBalls(t *testing.T) {
	g := newTestGame(t, testSettings())
	g.start(t)
	v := g.Balls()[0].Variant()

	g.Close()

	assert.Empty(t, g.Balls())
	assert.Equal(t, 5, g.Registry().AvailableCounts()[v])
}

func TestRestartReturnsPreviousBalls(t *testing.T) {
	g := newTestGame(t, testSettings())
	g.start(t)
	g.NextLevel()
	g.waitForProduction(t)

	g.start(t)

	assert.Equal(t, 1, g.Level())
	assert.False(t, g.HardMode())
	assert.Len(t, g.Balls(), 1)
	assert.Equal(t, 0, g.Pending())
}

func TestSnapshotIsACopy(t *testing.T) {
	g := newTestGame(t, testSettings())
	g.start(t)

	f := g.Snapshot()
	require.Len(t, f.Balls, 1)
	f.Balls[0].X = -1000

	x, _ := g.Balls()[0].Position()
	assert.NotEqual(t, -1000, x)
	assert.Equal(t, 0, f.Paddles[0].X)
	assert.Equal(t, 196, f.Paddles[1].X)
}

func TestSnapshotWhileTicking(t *testing.T) {
	g := newTestGame(t, testSettings())
	g.start(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			g.Tick()
		}
	}()

	for {
		select {
		case <-done:
			f := g.Snapshot()
			assert.Equal(t, f.Pending, g.Pending())
			return
		default:
		}
		f := g.Snapshot()
		for _, b := range f.Balls {
			assert.Equal(t, ball.Easy, b.Variant.Difficulty)
		}
		_ = g.IsOver()
	}
}

func TestSteer(t *testing.T) {
	g := newTestGame(t, testSettings())

	g.Steer(0, -1)
	assert.Equal(t, -8, g.paddles[0].VY)
	g.Steer(1, 1)
	assert.Equal(t, 8, g.paddles[1].VY)
	g.Steer(5, 1) // ignored
}

func TestFakeClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())
}
