package matching

import (
	"sync"

	"repello/internal/models"
)

// Market routes order operations to a per-symbol OrderBook, sharding by
// symbol so each book is owned exclusively by its own shard; no atomicity
// is promised across books. Market itself only does routing and
// bookkeeping for id-based lookups (Order, Cancel) that don't carry a
// symbol; the actual matching lives entirely in OrderBook.
type Market struct {
	mu    sync.RWMutex
	books map[string]*OrderBook

	// owners lets Cancel/Order be called with just an id, without the
	// caller needing to track which symbol it placed an order on.
	// Populated by SubmitLimit; a filled or cancelled order's entry is
	// left in place, but Order reports only orders still resting, so such
	// an id resolves to its symbol and then to "not found".
	owners map[uint64]string
}

// NewMarket creates an empty Market.
func NewMarket() *Market {
	return &Market{
		books:  make(map[string]*OrderBook),
		owners: make(map[uint64]string),
	}
}

// Book returns the OrderBook for a symbol, creating it on first use.
func (m *Market) Book(symbol string) *OrderBook {
	m.mu.RLock()
	book, ok := m.books[symbol]
	m.mu.RUnlock()
	if ok {
		return book
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok = m.books[symbol]
	if !ok {
		book = NewOrderBook(symbol)
		m.books[symbol] = book
	}
	return book
}

// SubmitLimit processes a (possibly marketable) limit order on a symbol's
// book and records its ownership for id-only lookups.
func (m *Market) SubmitLimit(symbol string, order *models.Order) []models.Trade {
	m.mu.Lock()
	m.owners[order.ID] = symbol
	m.mu.Unlock()

	return m.Book(symbol).ProcessLimitOrder(order)
}

// SubmitMarket processes a market order on a symbol's book. Market orders
// never rest and are never individually addressable, so no ownership is
// recorded.
func (m *Market) SubmitMarket(symbol string, agentID uint64, side models.Side, volume int64) []models.Trade {
	return m.Book(symbol).ProcessMarketOrder(agentID, side, volume)
}

// Cancel resolves an order id to its symbol and cancels it there.
func (m *Market) Cancel(orderID, agentID uint64) bool {
	m.mu.RLock()
	symbol, ok := m.owners[orderID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return m.Book(symbol).CancelOrder(orderID, agentID)
}

// SymbolFor resolves an order id to the symbol it was submitted on.
func (m *Market) SymbolFor(orderID uint64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	symbol, ok := m.owners[orderID]
	return symbol, ok
}

// Order resolves an order id to its resting order, if it has one.
func (m *Market) Order(orderID uint64) (*models.Order, bool) {
	m.mu.RLock()
	symbol, ok := m.owners[orderID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return m.Book(symbol).Order(orderID)
}

// Depth returns the best-first (price, total_volume) snapshot for a
// symbol's side.
func (m *Market) Depth(symbol string, side models.Side, limit int) []PriceLevelView {
	return m.Book(symbol).Depth(side, limit)
}

// RestingCount returns the number of orders currently resting on a
// symbol's book.
func (m *Market) RestingCount(symbol string) int { return m.Book(symbol).RestingCount() }

// BestBid and BestAsk expose top-of-book for a symbol.
func (m *Market) BestBid(symbol string) (int64, bool) { return m.Book(symbol).BestBid() }
func (m *Market) BestAsk(symbol string) (int64, bool) { return m.Book(symbol).BestAsk() }

// Symbols returns the set of symbols with a book, for iteration by
// observers (e.g. the websocket feed broadcasting every active market).
func (m *Market) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	symbols := make([]string, 0, len(m.books))
	for symbol := range m.books {
		symbols = append(symbols, symbol)
	}
	return symbols
}
