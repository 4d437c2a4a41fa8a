package ball

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Bounds is the playing field shared by every ball and paddle.
type Bounds struct {
	Width  int
	Height int
}

// Center returns the spawn point for new balls.
func (b Bounds) Center() (int, int) {
	return b.Width / 2, b.Height / 2
}

// Constructor builds a ball of one variant. The pool registry keeps a table of
// these, one per variant.
type Constructor func(v Variant, bounds *Bounds) (*Ball, error)

var errInvalidBounds = errors.New("bounds must be non-nil with positive width and height")

// Ball is a pooled unit. Its variant never changes; only kinematics are reset
// when it is reused. A Ball is not safe for concurrent mutation: the simulation
// loop is its only writer while it is in play.
type Ball struct {
	id      string
	variant Variant
	bounds  *Bounds

	x, y   int
	vx, vy int
	missed bool
}

// New is the default Constructor.
func New(v Variant, bounds *Bounds) (*Ball, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("invalid variant %v", v)
	}
	if bounds == nil || bounds.Width <= 0 || bounds.Height <= 0 {
		return nil, errInvalidBounds
	}
	return &Ball{
		id:      uuid.NewString(),
		variant: v,
		bounds:  bounds,
	}, nil
}

func (b *Ball) ID() string { return b.id }
func (b *Ball) Variant() Variant { return b.variant }
func (b *Ball) SideLength() int { return b.variant.SideLength() }
func (b *Ball) Position() (int, int) { return b.x, b.y }
func (b *Ball) Velocity() (int, int) { return b.vx, b.vy }

// Missed reports whether the last Move carried the ball past a side wall.
func (b *Ball) Missed() bool { return b.missed }

// Launch places the ball and gives it a velocity, clearing any previous miss.
func (b *Ball) Launch(x, y, vx, vy int) {
	b.x, b.y = x, y
	b.vx, b.vy = vx, vy
	b.missed = false
}

// SetPosition moves the ball without touching its velocity.
func (b *Ball) SetPosition(x, y int) {
	b.x, b.y = x, y
}

// Move advances the ball one step: miss detection on the horizontal axis,
// roof and floor bounces on the vertical axis, then paddle hits.
func (b *Ball) Move(paddles ...*Paddle) {
	nextX := b.x + b.vx
	nextY := b.y + b.vy

	if nextX != b.x {
		b.missed = b.detectMiss(nextX)
	}
	if nextY != b.y {
		b.detectBounce(nextY)
	}
	for _, p := range paddles {
		if p != nil && b.detectPaddleHit(p, nextX, nextY) {
			break
		}
	}
}

func (b *Ball) detectMiss(nextX int) bool {
	if nextX < -b.SideLength() || nextX > b.bounds.Width {
		return true
	}
	b.x = nextX
	return false
}

func (b *Ball) detectBounce(nextY int) {
	side := b.SideLength()
	floor := b.bounds.Height

	switch {
	case nextY < 0:
		b.y = 0
		b.vy = -b.vy
		b.vx += b.jitter()
	case nextY+side > floor:
		b.y = floor - side
		b.vy = -b.vy
		b.vx += b.jitter()
	default:
		b.y = nextY
	}
}

// detectPaddleHit reflects the ball off p. Paddles at the left edge push the
// ball right, all others push it left.
func (b *Ball) detectPaddleHit(p *Paddle, nextX, nextY int) bool {
	side := b.SideLength()
	half := side / 2
	withinY := p.Y-half <= nextY && nextY-half < p.Y+p.Height
	if !withinY {
		return false
	}

	leftPaddle := p.X+p.Width <= b.bounds.Width/2
	switch {
	case leftPaddle && nextX <= p.X+p.Width:
		b.x = p.X + p.Width
	case !leftPaddle && nextX+side > p.X:
		b.x = p.X - side
	default:
		return false
	}
	b.vx = -b.vx
	b.vy += b.jitter()
	return true
}

// jitter yields either -factor or 0.
func (b *Ball) jitter() int {
	return (rand.IntN(2) - 1) * b.variant.RandomnessFactor()
}

// Snapshot is a read-only copy of a ball for renderers.
type Snapshot struct {
	ID         string
	Variant    Variant
	X, Y       int
	VX, VY     int
	SideLength int
}

func (b *Ball) Snapshot() Snapshot {
	return Snapshot{
		ID:         b.id,
		Variant:    b.variant,
		X:          b.x,
		Y:          b.y,
		VX:         b.vx,
		VY:         b.vy,
		SideLength: b.SideLength(),
	}
}
