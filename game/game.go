package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ByteMirror/survivalpong/ball"
	"github.com/ByteMirror/survivalpong/config"
	"github.com/ByteMirror/survivalpong/log"
	"github.com/ByteMirror/survivalpong/pool"
	"github.com/ByteMirror/survivalpong/supply"
)

// Settings are the match parameters the game needs from the config.
type Settings struct {
	Bounds               ball.Bounds
	PaddleSpeed          int
	PaddleWidthFraction  int
	PaddleHeightFraction int
	LevelDurationSecs    int
	EasyLevels           int
	MinimumStock         int
	BatchSize            int
	PollInterval         time.Duration
	WaitTimeout          time.Duration
}

// SettingsFromConfig copies the match parameters out of cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Bounds:               ball.Bounds{Width: cfg.Width, Height: cfg.Height},
		PaddleSpeed:          cfg.PaddleSpeed,
		PaddleWidthFraction:  cfg.PaddleWidthFraction,
		PaddleHeightFraction: cfg.PaddleHeightFraction,
		LevelDurationSecs:    cfg.LevelDurationSecs,
		EasyLevels:           cfg.EasyLevels,
		MinimumStock:         cfg.MinimumStock,
		BatchSize:            cfg.BatchSize,
		PollInterval:         cfg.PollInterval(),
		WaitTimeout:          cfg.WaitTimeout(),
	}
}

// Option configures a Game.
type Option func(*Game)

// WithClock replaces the wall clock used for the survival timer.
func WithClock(c Clock) Option {
	return func(g *Game) {
		g.clock = c
	}
}

// Result is what a finished match is scored on.
type Result struct {
	Level   int
	Seconds int
}

// Frame is a consistent copy of the game state for renderers.
type Frame struct {
	Level    int
	Elapsed  int
	HardMode bool
	Pending  int
	Balls    []ball.Snapshot
	Paddles  [2]ball.PaddleSnapshot
}

// Game coordinates one survival match. It owns the active set of balls and
// moves balls between it and the pool registry. Tick, Balls and the level
// logic run on the loop goroutine; Snapshot and the other readers are safe
// from any goroutine.
type Game struct {
	settings    Settings
	bounds      *ball.Bounds
	clock       Clock
	registry    *pool.Registry
	replenisher *supply.Replenisher
	easy        *supply.Orchestrator
	hard        *supply.Orchestrator

	spawnLog *log.Every

	mu       sync.RWMutex
	paddles  [2]*ball.Paddle
	balls    []*ball.Ball
	level    int
	hardMode bool
	started  time.Time
	elapsed  int
	pending  int
}

// New wires a game to a registry and a started supply manager. The registry
// must have been created with the same bounds as settings.Bounds.
func New(settings Settings, registry *pool.Registry, manager *supply.Manager, opts ...Option) *Game {
	orchestratorOpts := []supply.Option{
		supply.WithPollInterval(settings.PollInterval),
		supply.WithWaitTimeout(settings.WaitTimeout),
	}
	bounds := registry.Bounds()
	g := &Game{
		settings:    settings,
		bounds:      bounds,
		clock:       RealClock{},
		registry:    registry,
		replenisher: supply.NewReplenisher(registry, manager, settings.MinimumStock, settings.BatchSize),
		easy:        supply.NewEasyOrchestrator(registry, manager, orchestratorOpts...),
		hard:        supply.NewHardOrchestrator(registry, manager, orchestratorOpts...),
		spawnLog:    log.NewEvery(2 * time.Second),
		level:       1,
	}
	g.paddles[0] = ball.NewPaddle(*bounds, settings.PaddleWidthFraction, settings.PaddleHeightFraction, settings.PaddleSpeed, true)
	g.paddles[1] = ball.NewPaddle(*bounds, settings.PaddleWidthFraction, settings.PaddleHeightFraction, settings.PaddleSpeed, false)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start resets the match, stocks every pool and waits for the first ball.
// Only the production issued by this call is awaited.
func (g *Game) Start(ctx context.Context) error {
	g.reset()

	batch := g.replenisher.EnsureSupply()
	if batch.Triggered() {
		if err := batch.Await(ctx); err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.WarningLog.Printf("initial production incomplete: %v", err)
		}
	}

	orch := g.orchestrator()
	orch.SetLevel(1)
	for i := 0; i < orch.UnitsPerSpawn(); i++ {
		b, err := orch.RequestRandomSizeUnit(ctx)
		if err != nil {
			return fmt.Errorf("failed to spawn first ball: %w", err)
		}
		g.mu.Lock()
		g.balls = append(g.balls, b)
		g.mu.Unlock()
	}

	g.mu.Lock()
	g.started = g.clock.Now()
	g.mu.Unlock()
	log.InfoLog.Printf("match started with %d ball(s)", orch.UnitsPerSpawn())
	return nil
}

// Close ends the match and returns every active ball to its pool.
func (g *Game) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.registry.ReturnUnits(g.balls...)
	g.balls = nil
	g.pending = 0
}

func (g *Game) reset() {
	g.Close()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.paddles[0].Reset(*g.bounds, true)
	g.paddles[1].Reset(*g.bounds, false)
	g.level = 1
	g.hardMode = false
	g.elapsed = 0
	g.started = g.clock.Now()
}

// Tick advances the match by one step. It never waits for stock: balls owed
// by a level advance are spawned on the first tick their pool has one.
func (g *Game) Tick() {
	g.updateElapsed()

	g.mu.Lock()
	for _, p := range g.paddles {
		p.Move(*g.bounds)
	}
	for _, b := range g.balls {
		b.Move(g.paddles[0], g.paddles[1])
	}
	g.mu.Unlock()

	g.ReturnMissed()
	g.spawnPending()
}

func (g *Game) updateElapsed() {
	g.mu.Lock()
	secs := int(g.clock.Now().Sub(g.started) / time.Second)
	changed := secs != g.elapsed
	g.elapsed = secs
	g.mu.Unlock()

	if changed && secs != 0 && g.settings.LevelDurationSecs > 0 && secs%g.settings.LevelDurationSecs == 0 {
		g.NextLevel()
	}
}

// NextLevel raises the level, switches to hard mode after the easy levels,
// tops up the pools without waiting and owes the field new balls.
func (g *Game) NextLevel() {
	g.mu.Lock()
	g.level++
	if g.level > g.settings.EasyLevels && !g.hardMode {
		g.hardMode = true
		log.InfoLog.Printf("hard mode from level %d", g.level)
	}
	orch := g.orchestratorLocked()
	orch.SetLevel(g.level)
	g.pending += orch.UnitsPerSpawn()
	level := g.level
	g.mu.Unlock()

	g.replenisher.EnsureSupply()
	log.InfoLog.Printf("level %d", level)
}

// ReturnMissed moves every missed ball from the active set back to its pool
// and reports how many there were.
func (g *Game) ReturnMissed() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	var missed []*ball.Ball
	kept := g.balls[:0]
	for _, b := range g.balls {
		if b.Missed() {
			missed = append(missed, b)
			continue
		}
		kept = append(kept, b)
	}
	clear(g.balls[len(kept):])
	g.balls = kept

	// Still under g.mu so no reader sees a ball in neither place.
	g.registry.ReturnUnits(missed...)
	return len(missed)
}

func (g *Game) spawnPending() {
	g.mu.Lock()
	defer g.mu.Unlock()

	orch := g.orchestratorLocked()
	for g.pending > 0 {
		b, err := orch.TryRequestRandomSizeUnit()
		if err != nil {
			if !errors.Is(err, pool.ErrEmpty) {
				log.ErrorLog.Printf("spawn failed: %v", err)
			} else if g.spawnLog.ShouldLog() {
				log.InfoLog.Printf("%d spawn(s) waiting for stock", g.pending)
			}
			return
		}
		g.balls = append(g.balls, b)
		g.pending--
	}
}

// Steer sets the direction of paddle i (0 left, 1 right).
func (g *Game) Steer(i, direction int) {
	if i < 0 || i >= len(g.paddles) {
		return
	}
	g.mu.Lock()
	g.paddles[i].Steer(direction)
	g.mu.Unlock()
}

// IsOver reports whether the field is empty with no spawn owed.
func (g *Game) IsOver() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.balls) == 0 && g.pending == 0
}

func (g *Game) Result() Result {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Result{Level: g.level, Seconds: g.elapsed}
}

func (g *Game) Level() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.level
}

func (g *Game) HardMode() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hardMode
}

// Pending is the number of balls owed to the field.
func (g *Game) Pending() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pending
}

// Balls returns a copy of the active set. The balls themselves are moved by
// Tick, so only the loop goroutine may use them; other goroutines read
// Snapshot.
func (g *Game) Balls() []*ball.Ball {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*ball.Ball(nil), g.balls...)
}

func (g *Game) Paddle(i int) ball.PaddleSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.paddles[i].Snapshot()
}

func (g *Game) Bounds() ball.Bounds {
	return *g.bounds
}

func (g *Game) Registry() *pool.Registry {
	return g.registry
}

func (g *Game) Snapshot() Frame {
	g.mu.RLock()
	defer g.mu.RUnlock()

	f := Frame{
		Level:    g.level,
		Elapsed:  g.elapsed,
		HardMode: g.hardMode,
		Pending:  g.pending,
		Balls:    make([]ball.Snapshot, 0, len(g.balls)),
	}
	for _, b := range g.balls {
		f.Balls = append(f.Balls, b.Snapshot())
	}
	for i, p := range g.paddles {
		f.Paddles[i] = p.Snapshot()
	}
	return f
}

func (g *Game) orchestrator() *supply.Orchestrator {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.orchestratorLocked()
}

func (g *Game) orchestratorLocked() *supply.Orchestrator {
	if g.hardMode {
		return g.hard
	}
	return g.easy
}
