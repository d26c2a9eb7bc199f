package matching

import (
	"math/rand"
	"testing"

	"repello/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// opKind enumerates the randomized operations the property walk performs.
type opKind int

const (
	opAddLimit opKind = iota
	opMarket
	opCancel
)

// TestProperty_RandomWalkInvariants drives a random sequence of
// add-limit/market/cancel operations against a single book and checks
// no-crossed-book, level-sum consistency, and index closure after every
// step, and volume conservation once the walk ends. Price ordering within
// a single walk is checked by the multi-level sweep test and trade
// sequence numbering by TestTradeSequenceIsContiguousAndIncreasing
// instead, since both are properties of one operation's output, not of
// the aggregate state.
func TestProperty_RandomWalkInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ob := NewOrderBook("PROP")

	var nextID uint64 = 1
	resting := make(map[uint64]*models.Order)
	cancelledRemaining := int64(0)
	tradedMakerVolume := int64(0)
	takerFilledVolume := int64(0)
	addedVolume := int64(0)

	const steps = 2000
	for i := 0; i < steps; i++ {
		switch opKind(rng.Intn(3)) {
		case opAddLimit:
			id := nextID
			nextID++
			agent := uint64(rng.Intn(10) + 1)
			side := models.Buy
			if rng.Intn(2) == 0 {
				side = models.Sell
			}
			price := int64(90 + rng.Intn(20))
			volume := int64(1 + rng.Intn(25))

			order := models.NewOrder(id, agent, side, price, volume)
			addedVolume += volume

			trades := ob.ProcessLimitOrder(order)
			takerFilledVolume += order.Filled
			for _, tr := range trades {
				tradedMakerVolume += tr.Volume
				if maker, ok := resting[tr.MakerOrderID]; ok && maker.Remaining() == 0 {
					delete(resting, tr.MakerOrderID)
				}
			}
			if order.Remaining() > 0 {
				resting[order.ID] = order
			}

		case opMarket:
			agent := uint64(rng.Intn(10) + 1)
			side := models.Buy
			if rng.Intn(2) == 0 {
				side = models.Sell
			}
			volume := int64(1 + rng.Intn(15))

			trades := ob.ProcessMarketOrder(agent, side, volume)
			for _, tr := range trades {
				tradedMakerVolume += tr.Volume
				if maker, ok := resting[tr.MakerOrderID]; ok && maker.Remaining() == 0 {
					delete(resting, tr.MakerOrderID)
				}
			}

		case opCancel:
			if len(resting) == 0 {
				continue
			}
			var id uint64
			for k := range resting {
				id = k
				break
			}
			order := resting[id]
			if ob.CancelOrder(order.ID, order.AgentID) {
				cancelledRemaining += order.Remaining()
				delete(resting, id)
			}
		}

		assertNoCrossedBook(t, ob)
		assertLevelSumConsistency(t, ob)
		assertIndexClosure(t, ob, resting)
	}

	// Conservation: everything added is accounted for as still resting,
	// traded away as a maker, filled on entry as a limit taker, or
	// cancelled away.
	var stillResting int64
	for _, o := range resting {
		stillResting += o.Remaining()
	}
	assert.Equal(t, addedVolume, stillResting+tradedMakerVolume+takerFilledVolume+cancelledRemaining)

	// Cancelling an already-cancelled/absent id is idempotent.
	first := ob.CancelOrder(999999, 1)
	second := ob.CancelOrder(999999, 1)
	assert.False(t, first)
	assert.False(t, second)
}

func assertNoCrossedBook(t *testing.T, ob *OrderBook) {
	t.Helper()
	bid, bidOK := ob.BestBid()
	ask, askOK := ob.BestAsk()
	if bidOK && askOK {
		require.Less(t, bid, ask, "book must never be crossed at rest")
	}
}

func assertLevelSumConsistency(t *testing.T, ob *OrderBook) {
	t.Helper()
	for _, side := range []models.Side{models.Buy, models.Sell} {
		tree := ob.ladder(side)
		it := tree.Iterator()
		it.Begin()
		for it.Next() {
			level := it.Value().(*PriceLevel)
			var sum int64
			for i := 0; i < level.size(); i++ {
				v, ok := level.orders.Get(i)
				require.True(t, ok)
				sum += v.(*models.Order).Remaining()
			}
			require.Equal(t, sum, level.TotalVolume)
			require.Greater(t, level.TotalVolume, int64(0), "empty levels must be removed, not retained")
		}
	}
}

func assertIndexClosure(t *testing.T, ob *OrderBook, resting map[uint64]*models.Order) {
	t.Helper()
	for id := range resting {
		_, ok := ob.index[id]
		require.True(t, ok, "resting order %d missing from index", id)
	}
	for id := range ob.index {
		_, ok := resting[id]
		require.True(t, ok, "index entry %d has no tracked resting order", id)
	}
}

// BenchmarkMarketSweep measures the throughput of sweeping a pre-filled
// book of tens of thousands of resting orders with a single market order.
func BenchmarkMarketSweep(b *testing.B) {
	const restingOrders = 50000

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		ob := NewOrderBook("BENCH")
		for j := 0; j < restingOrders; j++ {
			ob.AddLimitOrder(models.NewOrder(uint64(j+1), 1, models.Sell, int64(1000+j), 1))
		}
		b.StartTimer()

		ob.ProcessMarketOrder(2, models.Buy, 25000)
	}
}

// BenchmarkAddLimitOrder measures insertion throughput into a pre-filled,
// non-crossing book.
func BenchmarkAddLimitOrder(b *testing.B) {
	ob := NewOrderBook("BENCH")
	for i := 0; i < 1000; i++ {
		ob.AddLimitOrder(models.NewOrder(uint64(i+1), 1, models.Sell, int64(1000+i), 1))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ob.AddLimitOrder(models.NewOrder(uint64(2000+i), 1, models.Sell, int64(5000+i), 1))
	}
}
