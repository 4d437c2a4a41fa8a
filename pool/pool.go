package pool

import (
	"container/list"
	"sync"

	"github.com/ByteMirror/survivalpong/ball"
)

// closedCh is handed out by Ready when a pool already has stock.
var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Pool holds ready, inactive balls of a single variant in FIFO order.
// All methods are safe for concurrent use.
type Pool struct {
	variant  ball.Variant
	capacity int

	mu    sync.Mutex
	items *list.List
	// ready is closed and cleared on the next Put; nil while nobody is waiting.
	ready chan struct{}
}

// New creates an empty pool. capacity <= 0 means unbounded.
func New(v ball.Variant, capacity int) *Pool {
	return &Pool{
		variant:  v,
		capacity: capacity,
		items:    list.New(),
	}
}

// Variant returns the only variant this pool accepts.
func (p *Pool) Variant() ball.Variant {
	return p.variant
}

// Offer enqueues a newly built ball, refusing it when the pool is at capacity.
func (p *Pool) Offer(b *ball.Ball) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.capacity > 0 && p.items.Len() >= p.capacity {
		return ErrPoolFull
	}
	p.pushLocked(b)
	return nil
}

// Put enqueues a ball unconditionally. Balls coming back from play always
// have a home, even above capacity.
func (p *Pool) Put(b *ball.Ball) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushLocked(b)
}

func (p *Pool) pushLocked(b *ball.Ball) {
	p.items.PushBack(b)
	if p.ready != nil {
		close(p.ready)
		p.ready = nil
	}
}

// TryTake removes the oldest ball, if any. It never blocks.
func (p *Pool) TryTake() (*ball.Ball, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	front := p.items.Front()
	if front == nil {
		return nil, false
	}
	p.items.Remove(front)
	return front.Value.(*ball.Ball), true
}

// Len returns the number of balls currently in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.items.Len()
}

// Ready returns a channel that is closed once the pool holds at least one
// ball. A closed channel does not reserve anything: another consumer may still
// take the ball first.
func (p *Pool) Ready() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.items.Len() > 0 {
		return closedCh
	}
	if p.ready == nil {
		p.ready = make(chan struct{})
	}
	return p.ready
}
