package pool

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ByteMirror/survivalpong/ball"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testBounds = &ball.Bounds{Width: 800, Height: 400}
	easySmall  = ball.Variant{Difficulty: ball.Easy, Size: ball.Small}
	hardBig    = ball.Variant{Difficulty: ball.Hard, Size: ball.Big}
)

func TestNewRegistryHasSixEmptyPools(t *testing.T) {
	r := NewRegistry(testBounds)

	counts := r.AvailableCounts()
	require.Len(t, counts, 6)
	for _, v := range ball.Variants() {
		assert.Equal(t, 0, counts[v], v.String())
		assert.True(t, r.IsEmpty(v))
	}
}

func TestProduceAndConsume(t *testing.T) {
	r := NewRegistry(testBounds)

	require.NoError(t, r.Produce(easySmall))
	require.NoError(t, r.Produce(easySmall))

	assert.Equal(t, 2, r.AvailableCounts()[easySmall])
	assert.Equal(t, int64(2), r.Produced(easySmall))
	assert.True(t, r.IsEmpty(hardBig))

	b, err := r.Consume(easySmall)
	require.NoError(t, err)
	assert.Equal(t, easySmall, b.Variant())
	assert.Equal(t, 1, r.AvailableCounts()[easySmall])
}

func TestConsumeEmptyPool(t *testing.T) {
	r := NewRegistry(testBounds)

	b, err := r.Consume(hardBig)
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestConsumeIsFIFO(t *testing.T) {
	r := NewRegistry(testBounds)
	require.NoError(t, r.Produce(easySmall))
	require.NoError(t, r.Produce(easySmall))

	first, err := r.Consume(easySmall)
	require.NoError(t, err)
	second, err := r.Consume(easySmall)
	require.NoError(t, err)

	r.ReturnUnits(second, first)
	again, err := r.Consume(easySmall)
	require.NoError(t, err)
	assert.Equal(t, second.ID(), again.ID())
}

func TestProduceConstructionFailureLeavesPoolUnchanged(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry(testBounds, WithConstructor(hardBig, func(ball.Variant, *ball.Bounds) (*ball.Ball, error) {
		return nil, boom
	}))

	err := r.Produce(hardBig)

	var cerr *ConstructionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, hardBig, cerr.Variant)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.AvailableCounts()[hardBig])
	assert.Equal(t, int64(0), r.Produced(hardBig))

	// other variants are unaffected
	require.NoError(t, r.Produce(easySmall))
}

func TestProduceRejectsWrongVariant(t *testing.T) {
	r := NewRegistry(testBounds, WithConstructor(hardBig, func(_ ball.Variant, b *ball.Bounds) (*ball.Ball, error) {
		return ball.New(easySmall, b)
	}))

	var cerr *ConstructionError
	assert.ErrorAs(t, r.Produce(hardBig), &cerr)
	assert.True(t, r.IsEmpty(hardBig))
	assert.True(t, r.IsEmpty(easySmall))
}

func TestProduceRespectsCapacity(t *testing.T) {
	r := NewRegistry(testBounds, WithCapacity(2))

	require.NoError(t, r.Produce(easySmall))
	require.NoError(t, r.Produce(easySmall))
	err := r.Produce(easySmall)

	assert.ErrorIs(t, err, ErrPoolFull)
	assert.Equal(t, 2, r.AvailableCounts()[easySmall])

	// returns are always accepted
	b, err := ball.New(easySmall, testBounds)
	require.NoError(t, err)
	r.ReturnUnits(b)
	assert.Equal(t, 3, r.AvailableCounts()[easySmall])
}

func TestUnknownVariant(t *testing.T) {
	r := NewRegistry(testBounds)
	bogus := ball.Variant{Difficulty: ball.Difficulty(5), Size: ball.Small}

	assert.ErrorIs(t, r.Produce(bogus), ErrUnknownVariant)
	_, err := r.Consume(bogus)
	assert.ErrorIs(t, err, ErrUnknownVariant)
	assert.True(t, r.IsEmpty(bogus))
	assert.Equal(t, int64(0), r.Produced(bogus))
}

func TestReturnUnitsRoutesMixedBatch(t *testing.T) {
	r := NewRegistry(testBounds)
	for _, v := range ball.Variants() {
		require.NoError(t, r.Produce(v))
	}

	var taken []*ball.Ball
	for _, v := range ball.Variants() {
		b, err := r.Consume(v)
		require.NoError(t, err)
		taken = append(taken, b)
	}
	for _, v := range ball.Variants() {
		require.True(t, r.IsEmpty(v))
	}

	r.ReturnUnits(append(taken, nil)...)

	for _, v := range ball.Variants() {
		assert.Equal(t, 1, r.AvailableCounts()[v], v.String())
		b, err := r.Consume(v)
		require.NoError(t, err)
		assert.Equal(t, v, b.Variant())
	}
}

func TestReadyClosesOnProduce(t *testing.T) {
	r := NewRegistry(testBounds)
	ready := r.Ready(easySmall)

	select {
	case <-ready:
		t.Fatal("ready closed on an empty pool")
	default:
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = r.Produce(easySmall)
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("ready was not closed after production")
	}

	select {
	case <-r.Ready(easySmall):
	default:
		t.Fatal("ready should be closed while stock exists")
	}
}

func TestReadyClosesOnReturn(t *testing.T) {
	r := NewRegistry(testBounds)
	require.NoError(t, r.Produce(hardBig))
	b, err := r.Consume(hardBig)
	require.NoError(t, err)

	ready := r.Ready(hardBig)
	r.ReturnUnits(b)

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("ready was not closed after a return")
	}
}

func TestConcurrentProduceConsume(t *testing.T) {
	r := NewRegistry(testBounds)
	const producers, perProducer = 8, 50

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				assert.NoError(t, r.Produce(easySmall))
			}
		}()
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	consumed := 0
	done := make(chan struct{})
	var cwg sync.WaitGroup
	for i := 0; i < 4; i++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				b, err := r.Consume(easySmall)
				if errors.Is(err, ErrEmpty) {
					continue
				}
				mu.Lock()
				assert.False(t, seen[b.ID()], "ball handed out twice")
				seen[b.ID()] = true
				consumed++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	close(done)
	cwg.Wait()

	total := consumed + r.AvailableCounts()[easySmall]
	assert.Equal(t, producers*perProducer, total)
	assert.Equal(t, int64(producers*perProducer), r.Produced(easySmall))
}
