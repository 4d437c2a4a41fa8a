package supply

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/ByteMirror/survivalpong/ball"
	"github.com/ByteMirror/survivalpong/concurrency"
	"github.com/ByteMirror/survivalpong/log"
	"github.com/ByteMirror/survivalpong/pool"
)

// ErrWaitTimeout is returned when stock did not arrive within the wait timeout.
var ErrWaitTimeout = errors.New("timed out waiting for ball stock")

const (
	DefaultPollInterval = time.Second
	DefaultWaitTimeout  = 30 * time.Second
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPollInterval sets how often a waiting request rechecks its pool even
// without a notification.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithWaitTimeout bounds the availability wait. 0 waits until ctx is done.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.waitTimeout = d
		}
	}
}

// Orchestrator hands balls of one difficulty to the simulation. Easy and hard
// orchestrators differ in the variants they draw from and in how many balls
// the game spawns per level.
type Orchestrator struct {
	difficulty    ball.Difficulty
	unitsPerSpawn int

	registry *pool.Registry
	manager  *Manager

	pollInterval time.Duration
	waitTimeout  time.Duration

	level atomic.Int64

	waitLog *log.Every
}

// NewEasyOrchestrator serves easy balls, one per spawn.
func NewEasyOrchestrator(r *pool.Registry, m *Manager, opts ...Option) *Orchestrator {
	return newOrchestrator(ball.Easy, 1, r, m, opts...)
}

// NewHardOrchestrator serves hard balls, two per spawn.
func NewHardOrchestrator(r *pool.Registry, m *Manager, opts ...Option) *Orchestrator {
	return newOrchestrator(ball.Hard, 2, r, m, opts...)
}

func newOrchestrator(d ball.Difficulty, perSpawn int, r *pool.Registry, m *Manager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		difficulty:    d,
		unitsPerSpawn: perSpawn,
		registry:      r,
		manager:       m,
		pollInterval:  DefaultPollInterval,
		waitTimeout:   DefaultWaitTimeout,
		waitLog:       log.NewEvery(5 * time.Second),
	}
	o.level.Store(1)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Difficulty() ball.Difficulty {
	return o.difficulty
}

// UnitsPerSpawn is how many balls the game requests per level advance.
func (o *Orchestrator) UnitsPerSpawn() int {
	return o.unitsPerSpawn
}

// SetLevel sets the speed of balls handed out from now on.
func (o *Orchestrator) SetLevel(level int) {
	o.level.Store(int64(level))
}

func (o *Orchestrator) Level() int {
	return int(o.level.Load())
}

// RequestRandomSizeUnit picks a size uniformly and calls RequestUnit.
func (o *Orchestrator) RequestRandomSizeUnit(ctx context.Context) (*ball.Ball, error) {
	return o.RequestUnit(ctx, randomSize())
}

// RequestUnit waits until the pool for size has stock, retrieves a ball
// through the retrieval workers and launches it from the centre of the field.
// Losing a race for the last ball sends the request back to waiting.
func (o *Orchestrator) RequestUnit(ctx context.Context, size ball.Size) (*ball.Ball, error) {
	v := ball.Variant{Difficulty: o.difficulty, Size: size}
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %v", pool.ErrUnknownVariant, v)
	}

	if o.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, o.waitTimeout, ErrWaitTimeout)
		defer cancel()
	}

	for {
		if err := o.awaitStock(ctx, v); err != nil {
			log.WarningLog.Printf("gave up waiting for %s: %v", v, err)
			return nil, err
		}

		b, err := o.retrieve(ctx, v)
		switch {
		case err == nil:
			o.launch(b)
			return b, nil
		case errors.Is(err, pool.ErrEmpty):
			log.DebugLog.Printf("lost race for %s, waiting again", v)
		default:
			log.ErrorLog.Printf("retrieval of %s failed: %v", v, err)
			return nil, err
		}
	}
}

// TryRequestRandomSizeUnit is TryRequestUnit with a uniformly chosen size.
func (o *Orchestrator) TryRequestRandomSizeUnit() (*ball.Ball, error) {
	return o.TryRequestUnit(randomSize())
}

// TryRequestUnit takes a ball only if one is ready right now. It returns
// pool.ErrEmpty otherwise and never blocks, so the simulation loop can call
// it every tick.
func (o *Orchestrator) TryRequestUnit(size ball.Size) (*ball.Ball, error) {
	v := ball.Variant{Difficulty: o.difficulty, Size: size}
	b, err := o.registry.Consume(v)
	if err != nil {
		return nil, err
	}
	o.launch(b)
	return b, nil
}

func (o *Orchestrator) awaitStock(ctx context.Context, v ball.Variant) error {
	if !o.registry.IsEmpty(v) {
		return nil
	}

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for o.registry.IsEmpty(v) {
		if o.waitLog.ShouldLog() {
			log.InfoLog.Printf("waiting for %s stock", v)
		}
		select {
		case <-o.registry.Ready(v):
		case <-ticker.C:
		case <-ctx.Done():
			return waitErr(ctx)
		}
	}
	return nil
}

func (o *Orchestrator) retrieve(ctx context.Context, v ball.Variant) (*ball.Ball, error) {
	h, err := o.manager.SubmitRetrieval(NewRetrievalTask(o.registry, v))
	if err != nil {
		return nil, err
	}

	res, err := h.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// The task may still take a ball after we stop waiting. Put it back.
			go o.reclaim(h)
			return nil, waitErr(ctx)
		}
		return nil, err
	}

	b, ok := res.Result.(*ball.Ball)
	if !ok || b == nil {
		return nil, fmt.Errorf("retrieval of %s returned %T", v, res.Result)
	}
	return b, nil
}

func (o *Orchestrator) reclaim(h *concurrency.Handle) {
	<-h.Done()
	res, _ := h.Result()
	if res.Error != nil {
		return
	}
	if b, ok := res.Result.(*ball.Ball); ok && b != nil {
		o.registry.ReturnUnits(b)
		log.InfoLog.Printf("returned abandoned %s ball to its pool", b.Variant())
	}
}

// launch centres the ball and gives it (±level, ±level), signs chosen
// independently.
func (o *Orchestrator) launch(b *ball.Ball) {
	level := o.Level()
	x, y := o.registry.Bounds().Center()
	b.Launch(x, y, randomSign()*level, randomSign()*level)
}

func waitErr(ctx context.Context) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrWaitTimeout) {
		return ErrWaitTimeout
	}
	return ctx.Err()
}

func randomSize() ball.Size {
	return ball.Sizes[rand.IntN(len(ball.Sizes))]
}

func randomSign() int {
	if rand.IntN(2) == 0 {
		return -1
	}
	return 1
}
