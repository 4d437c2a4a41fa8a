package supply

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ByteMirror/survivalpong/ball"
	"github.com/ByteMirror/survivalpong/concurrency"
)

// Batch holds the production handles issued by one EnsureSupply call. It is
// owned by the caller and discarded after Await; it is not safe for
// concurrent use.
type Batch struct {
	handles []*concurrency.Handle
	issued  map[ball.Variant]int
	// submitErrs records tasks that never reached a worker.
	submitErrs []error
}

func newBatch() *Batch {
	return &Batch{issued: make(map[ball.Variant]int)}
}

// Add records a submitted production task for v.
func (b *Batch) Add(v ball.Variant, h *concurrency.Handle) {
	b.handles = append(b.handles, h)
	b.issued[v]++
}

func (b *Batch) fail(v ball.Variant, err error) {
	b.submitErrs = append(b.submitErrs, fmt.Errorf("submit %s production: %w", v, err))
}

// Len is the number of submitted tasks.
func (b *Batch) Len() int {
	return len(b.handles)
}

// Issued is the number of tasks submitted for v.
func (b *Batch) Issued(v ball.Variant) int {
	return b.issued[v]
}

// Triggered reports whether replenishment was attempted for any variant.
func (b *Batch) Triggered() bool {
	return len(b.handles) > 0 || len(b.submitErrs) > 0
}

// Await blocks until every task in the batch has finished or ctx is done.
// Task failures are joined into the returned error; the pools have already
// absorbed whatever was produced.
func (b *Batch) Await(ctx context.Context) error {
	errs := append([]error(nil), b.submitErrs...)
	for _, h := range b.handles {
		if _, err := h.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("awaiting production batch: %w", ctxErr)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Batch) String() string {
	if len(b.issued) == 0 {
		return "nothing issued"
	}
	parts := make([]string, 0, len(b.issued))
	for _, v := range ball.Variants() {
		if n := b.issued[v]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", v, n))
		}
	}
	return strings.Join(parts, " ")
}
