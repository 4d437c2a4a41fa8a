package game

import (
	"context"
	"time"

	"github.com/ByteMirror/survivalpong/log"
)

// Controller is an input source. It runs on the loop goroutine before each tick.
type Controller interface {
	Control(g *Game)
}

// ControllerFunc adapts a function to Controller.
type ControllerFunc func(g *Game)

func (f ControllerFunc) Control(g *Game) { f(g) }

// Renderer consumes a frame after each tick.
type Renderer interface {
	Render(f Frame)
}

// Run ticks the game every period until it is over or ctx is done. The game
// must already be started.
func Run(ctx context.Context, g *Game, period time.Duration, renderer Renderer, controllers ...Controller) (Result, error) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return g.Result(), ctx.Err()
		case <-ticker.C:
		}

		if g.IsOver() {
			res := g.Result()
			log.InfoLog.Printf("game over at level %d after %d seconds", res.Level, res.Seconds)
			return res, nil
		}

		for _, c := range controllers {
			c.Control(g)
		}
		g.Tick()
		if renderer != nil {
			renderer.Render(g.Snapshot())
		}
	}
}

// Autopilot steers one paddle towards the ball closest to its wall.
type Autopilot struct {
	// Paddle is 0 for the left paddle and 1 for the right one.
	Paddle int
	// Deadzone is how far off-centre the ball may be before the paddle moves.
	Deadzone int
}

func (a Autopilot) Control(g *Game) {
	f := g.Snapshot()
	p := f.Paddles[a.Paddle]
	wallX := p.X + p.Width/2

	target, found, best := 0, false, 0
	for _, b := range f.Balls {
		dist := b.X + b.SideLength/2 - wallX
		if dist < 0 {
			dist = -dist
		}
		if !found || dist < best {
			target, found, best = b.Y+b.SideLength/2, true, dist
		}
	}
	if !found {
		g.Steer(a.Paddle, 0)
		return
	}

	centre := p.Y + p.Height/2
	switch {
	case target < centre-a.Deadzone:
		g.Steer(a.Paddle, -1)
	case target > centre+a.Deadzone:
		g.Steer(a.Paddle, 1)
	default:
		g.Steer(a.Paddle, 0)
	}
}

// LogRenderer writes a throttled status line instead of drawing.
type LogRenderer struct {
	every *log.Every
}

func NewLogRenderer(interval time.Duration) *LogRenderer {
	return &LogRenderer{every: log.NewEvery(interval)}
}

func (r *LogRenderer) Render(f Frame) {
	if !r.every.ShouldLog() {
		return
	}
	log.InfoLog.Printf("level %d, %ds survived, %d ball(s) in play, %d pending, hard=%v",
		f.Level, f.Elapsed, len(f.Balls), f.Pending, f.HardMode)
}
