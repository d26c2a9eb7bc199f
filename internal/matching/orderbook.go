package matching

import (
	"fmt"
	"math"

	"repello/internal/models"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
	"github.com/google/uuid"
)

// ephemeralIDFloor is the base of the ids handed to the synthetic aggressor
// order built for ProcessMarketOrder: a market order carries no
// caller-supplied id, but every Trade it produces still needs a
// taker_order_id to attribute the fill to. Ephemeral ids count up from
// ephemeralIDFloor+1 so they cannot collide with
// a caller-assigned id unless a caller deliberately uses the upper half of
// the uint64 space for its own order ids, which this repo documents as
// reserved.
const ephemeralIDFloor = math.MaxUint64 / 2

// locator resolves an order id to the ladder and price it rests on; the
// in-level position is not cached here (see PriceLevel.find) because
// removing an earlier order in the same level would shift every later
// order's position, and keeping that in sync on every fill is not worth
// the bookkeeping. A linear scan within one level is cheap enough: levels
// stay short in practice, and it avoids a second structure to keep
// consistent with the queue.
type locator struct {
	side  models.Side
	price int64
}

// PriceLevelView is a read-only observer snapshot of one price level.
type PriceLevelView struct {
	Price       int64 `json:"price"`
	TotalVolume int64 `json:"volume"`
}

// OrderBook is a single-threaded, price-time priority limit order book for
// one symbol. It is not safe for concurrent mutation; callers needing
// multi-symbol parallelism shard by symbol (see Market) and own one book
// per shard exclusively.
type OrderBook struct {
	ID     string
	Symbol string

	bids *redblacktree.Tree // price(int64) -> *PriceLevel, best = Left()
	asks *redblacktree.Tree // price(int64) -> *PriceLevel, best = Left()

	index map[uint64]locator

	nextSeq       uint64
	nextEphemeral uint64
}

// NewOrderBook creates an empty OrderBook for a symbol.
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		ID:     uuid.NewString(),
		Symbol: symbol,
		// Bids are sorted in descending order (highest price first).
		bids: redblacktree.NewWith(func(a, b interface{}) int {
			return utils.Int64Comparator(b, a)
		}),
		// Asks are sorted in ascending order (lowest price first).
		asks:  redblacktree.NewWith(utils.Int64Comparator),
		index: make(map[uint64]locator),
	}
}

func (ob *OrderBook) ladder(side models.Side) *redblacktree.Tree {
	if side == models.Buy {
		return ob.bids
	}
	return ob.asks
}

func (ob *OrderBook) opposite(side models.Side) *redblacktree.Tree {
	return ob.ladder(side.Opposite())
}

func (ob *OrderBook) levelAt(tree *redblacktree.Tree, price int64, create bool) *PriceLevel {
	v, found := tree.Get(price)
	if found {
		return v.(*PriceLevel)
	}
	if !create {
		return nil
	}
	level := newPriceLevel(price)
	tree.Put(price, level)
	return level
}

func bestLevel(tree *redblacktree.Tree) (*PriceLevel, bool) {
	if tree.Empty() {
		return nil, false
	}
	node := tree.Left()
	if node == nil {
		return nil, false
	}
	return node.Value.(*PriceLevel), true
}

// AddLimitOrder inserts a non-marketable limit order at its price. The
// caller is responsible for ensuring the order does not cross the book;
// the safe entry that checks marketability is ProcessLimitOrder. Inserting
// a duplicate id, a filled order, or a zero/negative-volume order is an
// invariant violation and panics; these are programmer bugs, never data
// conditions.
func (ob *OrderBook) AddLimitOrder(order *models.Order) {
	if _, exists := ob.index[order.ID]; exists {
		panic(fmt.Sprintf("matching: duplicate order id %d on AddLimitOrder", order.ID))
	}
	if order.Volume <= 0 {
		panic(fmt.Sprintf("matching: order %d has non-positive volume %d", order.ID, order.Volume))
	}
	if order.Filled < 0 || order.Filled >= order.Volume {
		panic(fmt.Sprintf("matching: order %d has filled %d of volume %d on insertion", order.ID, order.Filled, order.Volume))
	}

	level := ob.levelAt(ob.ladder(order.Side), order.Price, true)
	level.append(order)
	if order.Filled == 0 {
		order.Status = models.Resting
	} else {
		order.Status = models.PartiallyFilled
	}
	ob.index[order.ID] = locator{side: order.Side, price: order.Price}
}

// ProcessLimitOrder handles a limit order that may be marketable: it first
// matches against the opposite book while the best opposite price is
// satisfiable and the order has remaining volume, then rests any unfilled
// remainder via AddLimitOrder. If the order is fully filled by the walk,
// no resting insertion occurs. If it never crosses, this call is
// equivalent to AddLimitOrder.
func (ob *OrderBook) ProcessLimitOrder(order *models.Order) []models.Trade {
	if _, exists := ob.index[order.ID]; exists {
		panic(fmt.Sprintf("matching: duplicate order id %d on ProcessLimitOrder", order.ID))
	}

	opp := ob.opposite(order.Side)
	trades := ob.walk(order, opp, func() bool {
		level, ok := bestLevel(opp)
		if !ok {
			return false
		}
		if order.Side == models.Buy {
			return level.Price <= order.Price
		}
		return level.Price >= order.Price
	})

	if order.Remaining() > 0 {
		ob.AddLimitOrder(order)
	}
	return trades
}

// ProcessMarketOrder consumes liquidity from the opposite book up to
// volume shares, ignoring price. It never rests: any unfilled remainder
// after the opposite book is exhausted is discarded. A volume of zero is
// a no-op that returns an empty, nil trade sequence.
func (ob *OrderBook) ProcessMarketOrder(takerAgentID uint64, side models.Side, volume int64) []models.Trade {
	if volume <= 0 {
		return nil
	}

	ob.nextEphemeral++
	aggressor := &models.Order{
		ID:      ephemeralIDFloor + ob.nextEphemeral,
		AgentID: takerAgentID,
		Side:    side,
		Volume:  volume,
	}

	opp := ob.opposite(side)
	return ob.walk(aggressor, opp, func() bool { return true })
}

// walk is the matching loop shared by ProcessLimitOrder and
// ProcessMarketOrder. crossingOK is re-evaluated before each price level
// is selected; for a market order it is always true, for a limit order it
// re-checks the price-crossing predicate against the next best level.
func (ob *OrderBook) walk(aggressor *models.Order, opp *redblacktree.Tree, crossingOK func() bool) []models.Trade {
	var trades []models.Trade

	for aggressor.Remaining() > 0 && !opp.Empty() && crossingOK() {
		level, ok := bestLevel(opp)
		if !ok {
			break
		}

		for aggressor.Remaining() > 0 {
			maker, ok := level.head()
			if !ok {
				break
			}

			tradeVolume := min64(maker.Remaining(), aggressor.Remaining())

			ob.nextSeq++
			trades = append(trades, models.Trade{
				Seq:          ob.nextSeq,
				TakerOrderID: aggressor.ID,
				MakerOrderID: maker.ID,
				Price:        level.Price,
				Volume:       tradeVolume,
			})

			maker.Filled += tradeVolume
			aggressor.Filled += tradeVolume
			level.TotalVolume -= tradeVolume

			if maker.Remaining() == 0 {
				maker.Status = models.Filled
				level.popHead()
				delete(ob.index, maker.ID)
			} else {
				maker.Status = models.PartiallyFilled
				break
			}
		}

		if level.empty() {
			opp.Remove(level.Price)
		}
	}

	if aggressor.Filled > 0 && aggressor.Remaining() > 0 {
		aggressor.Status = models.PartiallyFilled
	} else if aggressor.Remaining() == 0 && aggressor.Filled > 0 {
		aggressor.Status = models.Filled
	}

	return trades
}

// CancelOrder removes a resting order. It returns true iff an order with
// that id exists and its recorded agent_id matches the caller; otherwise
// it returns false and the book is left unchanged. A locator that cannot
// be resolved back to a resting order in its ladder is an invariant
// violation (index/ladder desync), not a benign miss, and panics.
func (ob *OrderBook) CancelOrder(orderID, agentID uint64) bool {
	loc, exists := ob.index[orderID]
	if !exists {
		return false
	}

	tree := ob.ladder(loc.side)
	level := ob.levelAt(tree, loc.price, false)
	if level == nil {
		panic(fmt.Sprintf("matching: locator desync: level %d missing for order %d", loc.price, orderID))
	}

	order, position, found := level.find(orderID)
	if !found {
		panic(fmt.Sprintf("matching: locator desync: order %d not in its indexed level", orderID))
	}

	if order.AgentID != agentID {
		return false
	}

	level.removeAt(position, order)
	delete(ob.index, orderID)
	order.Status = models.Cancelled

	if level.empty() {
		tree.Remove(loc.price)
	}
	return true
}

// Order looks up a resting order by id without mutating the book.
func (ob *OrderBook) Order(orderID uint64) (*models.Order, bool) {
	loc, exists := ob.index[orderID]
	if !exists {
		return nil, false
	}
	level := ob.levelAt(ob.ladder(loc.side), loc.price, false)
	if level == nil {
		panic(fmt.Sprintf("matching: locator desync: level %d missing for order %d", loc.price, orderID))
	}
	order, _, found := level.find(orderID)
	if !found {
		panic(fmt.Sprintf("matching: locator desync: order %d not in its indexed level", orderID))
	}
	return order, true
}

// BestBid returns the best (highest) resting bid price.
func (ob *OrderBook) BestBid() (int64, bool) {
	level, ok := bestLevel(ob.bids)
	if !ok {
		return 0, false
	}
	return level.Price, true
}

// BestAsk returns the best (lowest) resting ask price.
func (ob *OrderBook) BestAsk() (int64, bool) {
	level, ok := bestLevel(ob.asks)
	if !ok {
		return 0, false
	}
	return level.Price, true
}

// RestingCount returns the number of distinct orders currently resting on
// the book, across both sides.
func (ob *OrderBook) RestingCount() int {
	return len(ob.index)
}

// Depth returns a read-only (price, total_volume) snapshot of a side's
// ladder, best price first, for up to limit levels (limit <= 0 means no
// limit).
func (ob *OrderBook) Depth(side models.Side, limit int) []PriceLevelView {
	it := ob.ladder(side).Iterator()
	it.Begin()

	var views []PriceLevelView
	for it.Next() {
		if limit > 0 && len(views) >= limit {
			break
		}
		level := it.Value().(*PriceLevel)
		views = append(views, PriceLevelView{Price: level.Price, TotalVolume: level.TotalVolume})
	}
	return views
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
