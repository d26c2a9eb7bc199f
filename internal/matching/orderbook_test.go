package matching

import (
	"testing"

	"repello/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddLimitOrder_SimpleInsert(t *testing.T) {
	ob := NewOrderBook("BTCUSD")
	order := models.NewOrder(1, 1, models.Buy, 100, 50)

	ob.AddLimitOrder(order)

	bid, ok := ob.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(100), bid)

	depth := ob.Depth(models.Buy, 0)
	require.Len(t, depth, 1)
	assert.Equal(t, int64(50), depth[0].TotalVolume)

	got, ok := ob.Order(1)
	require.True(t, ok)
	assert.Equal(t, models.Resting, got.Status)
}

func TestProcessMarketOrder_FullFillRemovesLevel(t *testing.T) {
	ob := NewOrderBook("BTCUSD")
	ob.AddLimitOrder(models.NewOrder(1, 1, models.Sell, 100, 50))

	trades := ob.ProcessMarketOrder(2, models.Buy, 50)

	require.Len(t, trades, 1)
	assert.Equal(t, uint64(1), trades[0].MakerOrderID)
	assert.Equal(t, int64(100), trades[0].Price)
	assert.Equal(t, int64(50), trades[0].Volume)

	_, ok := ob.BestAsk()
	assert.False(t, ok)
	_, exists := ob.Order(1)
	assert.False(t, exists)
}

func TestProcessLimitOrder_MarketableWithResidual(t *testing.T) {
	ob := NewOrderBook("BTCUSD")
	ob.AddLimitOrder(models.NewOrder(1, 1, models.Sell, 100, 30))

	buy := models.NewOrder(2, 2, models.Buy, 101, 50)
	trades := ob.ProcessLimitOrder(buy)

	require.Len(t, trades, 1)
	assert.Equal(t, int64(100), trades[0].Price)
	assert.Equal(t, int64(30), trades[0].Volume)

	_, ok := ob.BestAsk()
	assert.False(t, ok)

	depth := ob.Depth(models.Buy, 0)
	require.Len(t, depth, 1)
	assert.Equal(t, int64(101), depth[0].Price)
	assert.Equal(t, int64(20), depth[0].TotalVolume)

	resting, ok := ob.Order(2)
	require.True(t, ok)
	assert.Equal(t, models.PartiallyFilled, resting.Status)
}

func TestProcessMarketOrder_MultiLevelSweep(t *testing.T) {
	ob := NewOrderBook("BTCUSD")
	ob.AddLimitOrder(models.NewOrder(1, 1, models.Sell, 100, 20))
	ob.AddLimitOrder(models.NewOrder(2, 1, models.Sell, 101, 30))
	ob.AddLimitOrder(models.NewOrder(3, 1, models.Sell, 102, 40))

	trades := ob.ProcessMarketOrder(2, models.Buy, 100)

	require.Len(t, trades, 3)
	assert.Equal(t, int64(100), trades[0].Price)
	assert.Equal(t, int64(20), trades[0].Volume)
	assert.Equal(t, int64(101), trades[1].Price)
	assert.Equal(t, int64(30), trades[1].Volume)
	assert.Equal(t, int64(102), trades[2].Price)
	assert.Equal(t, int64(40), trades[2].Volume)

	_, ok := ob.BestAsk()
	assert.False(t, ok)
}

func TestCancelOrder_WrongOwner(t *testing.T) {
	ob := NewOrderBook("BTCUSD")
	ob.AddLimitOrder(models.NewOrder(1, 1, models.Buy, 100, 50))

	ok := ob.CancelOrder(1, 2)
	assert.False(t, ok)

	depth := ob.Depth(models.Buy, 0)
	require.Len(t, depth, 1)
	assert.Equal(t, int64(50), depth[0].TotalVolume)
}

func TestCancelOrder_PartialFillThenCancel(t *testing.T) {
	ob := NewOrderBook("BTCUSD")
	ob.AddLimitOrder(models.NewOrder(1, 1, models.Sell, 100, 100))

	trades := ob.ProcessMarketOrder(2, models.Buy, 40)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(40), trades[0].Volume)

	depth := ob.Depth(models.Sell, 0)
	require.Len(t, depth, 1)
	assert.Equal(t, int64(60), depth[0].TotalVolume)

	ok := ob.CancelOrder(1, 1)
	assert.True(t, ok)

	_, exists := ob.BestAsk()
	assert.False(t, exists)
	_, exists = ob.Order(1)
	assert.False(t, exists)
}

func TestCancelOrder_Idempotent(t *testing.T) {
	ob := NewOrderBook("BTCUSD")
	ob.AddLimitOrder(models.NewOrder(1, 1, models.Buy, 100, 50))

	first := ob.CancelOrder(1, 1)
	second := ob.CancelOrder(1, 1)

	assert.True(t, first)
	assert.False(t, second)
}

func TestProcessMarketOrder_ZeroVolumeIsNoop(t *testing.T) {
	ob := NewOrderBook("BTCUSD")
	ob.AddLimitOrder(models.NewOrder(1, 1, models.Sell, 100, 50))

	trades := ob.ProcessMarketOrder(2, models.Buy, 0)
	assert.Empty(t, trades)

	depth := ob.Depth(models.Sell, 0)
	require.Len(t, depth, 1)
	assert.Equal(t, int64(50), depth[0].TotalVolume)
}

func TestProcessMarketOrder_InsufficientLiquidityPartialFill(t *testing.T) {
	ob := NewOrderBook("BTCUSD")
	ob.AddLimitOrder(models.NewOrder(1, 1, models.Sell, 100, 5))

	trades := ob.ProcessMarketOrder(2, models.Buy, 10)

	require.Len(t, trades, 1)
	assert.Equal(t, int64(5), trades[0].Volume)
	_, ok := ob.BestAsk()
	assert.False(t, ok)
}

func TestProcessLimitOrder_NoCrossIsEquivalentToAdd(t *testing.T) {
	ob := NewOrderBook("BTCUSD")
	ob.AddLimitOrder(models.NewOrder(1, 1, models.Sell, 100, 30))

	buy := models.NewOrder(2, 2, models.Buy, 99, 10)
	trades := ob.ProcessLimitOrder(buy)

	assert.Empty(t, trades)
	bid, ok := ob.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(99), bid)
}

func TestTradeSequenceIsContiguousAndIncreasing(t *testing.T) {
	ob := NewOrderBook("BTCUSD")
	ob.AddLimitOrder(models.NewOrder(1, 1, models.Sell, 100, 10))
	ob.AddLimitOrder(models.NewOrder(2, 1, models.Sell, 101, 10))

	trades := ob.ProcessMarketOrder(2, models.Buy, 20)

	require.Len(t, trades, 2)
	assert.Equal(t, uint64(1), trades[0].Seq)
	assert.Equal(t, uint64(2), trades[1].Seq)
}

func TestMarketOrderNeverRests(t *testing.T) {
	ob := NewOrderBook("BTCUSD")
	trades := ob.ProcessMarketOrder(1, models.Buy, 10)

	assert.Empty(t, trades)
	_, ok := ob.BestBid()
	assert.False(t, ok)
}

func TestDuplicateOrderIDPanics(t *testing.T) {
	ob := NewOrderBook("BTCUSD")
	ob.AddLimitOrder(models.NewOrder(1, 1, models.Buy, 100, 50))

	assert.Panics(t, func() {
		ob.AddLimitOrder(models.NewOrder(1, 1, models.Buy, 101, 10))
	})
}
