package ball

// Paddle is a player-controlled bar. Input collaborators set its velocity; the
// simulation loop moves it.
type Paddle struct {
	X, Y          int
	Width, Height int
	VY            int
	Speed         int
}

// NewPaddle sizes a paddle from the bounds. left selects the left or right wall.
func NewPaddle(bounds Bounds, widthFraction, heightFraction, speed int, left bool) *Paddle {
	p := &Paddle{
		Width:  bounds.Width / widthFraction,
		Height: bounds.Height / heightFraction,
		Speed:  speed,
	}
	p.Reset(bounds, left)
	return p
}

// Reset returns the paddle to its starting spot and stops it.
func (p *Paddle) Reset(bounds Bounds, left bool) {
	p.X = 0
	if !left {
		p.X = bounds.Width - p.Width
	}
	p.Y = bounds.Height/2 - p.Height/2
	p.VY = 0
}

// Steer sets the vertical direction: -1 up, 0 stop, 1 down.
func (p *Paddle) Steer(direction int) {
	switch {
	case direction < 0:
		p.VY = -p.Speed
	case direction > 0:
		p.VY = p.Speed
	default:
		p.VY = 0
	}
}

// Move applies VY, clamped between the roof and the floor.
func (p *Paddle) Move(bounds Bounds) {
	nextY := p.Y + p.VY
	if nextY == p.Y {
		return
	}
	switch {
	case nextY < 0:
		p.Y = 0
	case nextY > bounds.Height-p.Height:
		p.Y = bounds.Height - p.Height
	default:
		p.Y = nextY
	}
}

// PaddleSnapshot is a read-only copy of a paddle.
type PaddleSnapshot struct {
	X, Y, Width, Height int
}

func (p *Paddle) Snapshot() PaddleSnapshot {
	return PaddleSnapshot{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
}
