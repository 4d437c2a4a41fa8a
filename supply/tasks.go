package supply

import (
	"context"
	"fmt"

	"github.com/ByteMirror/survivalpong/ball"
	"github.com/ByteMirror/survivalpong/log"
	"github.com/ByteMirror/survivalpong/pool"
	"github.com/google/uuid"
)

// ProductionTask builds one ball of a variant and adds it to its pool.
type ProductionTask struct {
	id       string
	registry *pool.Registry
	variant  ball.Variant
}

func NewProductionTask(r *pool.Registry, v ball.Variant) *ProductionTask {
	return &ProductionTask{
		id:       fmt.Sprintf("produce-%s-%s", v, uuid.NewString()),
		registry: r,
		variant:  v,
	}
}

func (t *ProductionTask) ID() string {
	return t.id
}

func (t *ProductionTask) Variant() ball.Variant {
	return t.variant
}

// Execute produces the ball. A failure is logged and reported as the job
// error; the pool is left unchanged.
func (t *ProductionTask) Execute(ctx context.Context) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.registry.Produce(t.variant); err != nil {
		log.ErrorLog.Printf("production task %s failed: %v", t.id, err)
		return nil, err
	}
	return t.variant, nil
}

// RetrievalTask takes one ball from a pool. It returns pool.ErrEmpty when
// another consumer got there first.
type RetrievalTask struct {
	id       string
	registry *pool.Registry
	variant  ball.Variant
}

func NewRetrievalTask(r *pool.Registry, v ball.Variant) *RetrievalTask {
	return &RetrievalTask{
		id:       fmt.Sprintf("retrieve-%s-%s", v, uuid.NewString()),
		registry: r,
		variant:  v,
	}
}

func (t *RetrievalTask) ID() string {
	return t.id
}

func (t *RetrievalTask) Variant() ball.Variant {
	return t.variant
}

// Execute consumes exactly once. The result is a *ball.Ball.
func (t *RetrievalTask) Execute(ctx context.Context) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := t.registry.Consume(t.variant)
	if err != nil {
		return nil, err
	}
	return b, nil
}
