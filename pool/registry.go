package pool

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ByteMirror/survivalpong/ball"
)

var (
	// ErrEmpty is returned by Consume when a pool has no stock. It is an
	// expected outcome, not a failure.
	ErrEmpty = errors.New("ball pool is empty")
	// ErrPoolFull is returned when production would exceed a pool's capacity.
	ErrPoolFull = errors.New("ball pool is full")
	// ErrUnknownVariant is returned for a variant the registry has no pool for.
	ErrUnknownVariant = errors.New("unknown ball variant")
)

// ConstructionError reports that a ball could not be produced. The pool is
// left unchanged.
type ConstructionError struct {
	Variant ball.Variant
	Err     error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("failed to construct %s ball: %v", e.Variant, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// Option configures a Registry.
type Option func(*Registry)

// WithConstructor replaces the constructor used for one variant.
func WithConstructor(v ball.Variant, c ball.Constructor) Option {
	return func(r *Registry) {
		r.constructors[v] = c
	}
}

// WithCapacity bounds every pool. capacity <= 0 means unbounded.
func WithCapacity(capacity int) Option {
	return func(r *Registry) {
		r.capacity = capacity
	}
}

// Registry owns one Pool per variant. The key set is fixed by NewRegistry
// and never changes, so lookups need no locking; each Pool synchronises itself.
type Registry struct {
	bounds       *ball.Bounds
	capacity     int
	pools        map[ball.Variant]*Pool
	constructors map[ball.Variant]ball.Constructor
	produced     map[ball.Variant]*atomic.Int64
}

// NewRegistry creates an empty pool for each of the six variants.
func NewRegistry(bounds *ball.Bounds, opts ...Option) *Registry {
	r := &Registry{
		bounds:       bounds,
		pools:        make(map[ball.Variant]*Pool),
		constructors: make(map[ball.Variant]ball.Constructor),
		produced:     make(map[ball.Variant]*atomic.Int64),
	}
	for _, v := range ball.Variants() {
		r.constructors[v] = ball.New
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, v := range ball.Variants() {
		r.pools[v] = New(v, r.capacity)
		r.produced[v] = &atomic.Int64{}
	}
	return r
}

func (r *Registry) pool(v ball.Variant) (*Pool, error) {
	p, ok := r.pools[v]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownVariant, v)
	}
	return p, nil
}

// Produce builds one ball of v and adds it to v's pool.
func (r *Registry) Produce(v ball.Variant) error {
	p, err := r.pool(v)
	if err != nil {
		return err
	}

	b, err := r.constructors[v](v, r.bounds)
	if err != nil {
		return &ConstructionError{Variant: v, Err: err}
	}
	if b == nil || b.Variant() != v {
		return &ConstructionError{Variant: v, Err: fmt.Errorf("constructor returned a ball of the wrong variant")}
	}
	if err := p.Offer(b); err != nil {
		return &ConstructionError{Variant: v, Err: err}
	}

	r.produced[v].Add(1)
	return nil
}

// Consume removes one ball of v without blocking. It returns ErrEmpty when
// none is available.
func (r *Registry) Consume(v ball.Variant) (*ball.Ball, error) {
	p, err := r.pool(v)
	if err != nil {
		return nil, err
	}
	b, ok := p.TryTake()
	if !ok {
		return nil, ErrEmpty
	}
	return b, nil
}

// ReturnUnits puts each ball back into the pool of its own variant. Mixed
// batches are fine; nil entries are skipped.
func (r *Registry) ReturnUnits(balls ...*ball.Ball) {
	for _, b := range balls {
		if b == nil {
			continue
		}
		// Every ball was built through this registry, so its pool exists.
		r.pools[b.Variant()].Put(b)
	}
}

// IsEmpty reports whether v's pool has no stock.
func (r *Registry) IsEmpty(v ball.Variant) bool {
	p, err := r.pool(v)
	if err != nil {
		return true
	}
	return p.Len() == 0
}

// Ready returns a channel closed once v's pool has stock. Unknown variants
// get a channel that never closes.
func (r *Registry) Ready(v ball.Variant) <-chan struct{} {
	p, err := r.pool(v)
	if err != nil {
		return make(chan struct{})
	}
	return p.Ready()
}

// AvailableCounts snapshots the size of every pool. Each count is exact at the
// moment it is read; the map as a whole is not atomic under concurrent production.
func (r *Registry) AvailableCounts() map[ball.Variant]int {
	counts := make(map[ball.Variant]int, len(r.pools))
	for v, p := range r.pools {
		counts[v] = p.Len()
	}
	return counts
}

// Produced returns how many balls of v have ever been produced.
func (r *Registry) Produced(v ball.Variant) int64 {
	c, ok := r.produced[v]
	if !ok {
		return 0
	}
	return c.Load()
}

// Bounds returns the bounds every ball from this registry shares.
func (r *Registry) Bounds() *ball.Bounds {
	return r.bounds
}
