package matching

import (
	"repello/internal/models"

	"github.com/emirpasic/gods/lists/doublylinkedlist"
)

// PriceLevel is the FIFO queue of resting orders at one price, on one side
// of one OrderBook. It is ignorant of price-versus-price comparisons; only
// the ladder (the red-black tree keyed by price) knows how levels order
// against each other.
//
// Orders are held in a doublylinkedlist so that the common case, the
// matching walk draining the head of the queue as makers fill, is O(1)
// per order, with no reslice on every partial drain; an in-level cancel
// stays O(k) for its position k.
type PriceLevel struct {
	Price       int64
	TotalVolume int64
	orders      *doublylinkedlist.List
}

func newPriceLevel(price int64) *PriceLevel {
	return &PriceLevel{
		Price:  price,
		orders: doublylinkedlist.New(),
	}
}

// append adds an order to the tail of the FIFO.
func (l *PriceLevel) append(o *models.Order) {
	l.orders.Append(o)
	l.TotalVolume += o.Remaining()
}

// head returns the oldest resting order at this level, without removing it.
func (l *PriceLevel) head() (*models.Order, bool) {
	v, ok := l.orders.Get(0)
	if !ok {
		return nil, false
	}
	return v.(*models.Order), true
}

// popHead removes the oldest resting order; callers must have already
// accounted for its remaining volume against TotalVolume.
func (l *PriceLevel) popHead() {
	l.orders.Remove(0)
}

// find locates a resting order by id within this level, returning its
// in-level position for removeAt.
func (l *PriceLevel) find(id uint64) (*models.Order, int, bool) {
	for i := 0; i < l.orders.Size(); i++ {
		v, ok := l.orders.Get(i)
		if !ok {
			break
		}
		o := v.(*models.Order)
		if o.ID == id {
			return o, i, true
		}
	}
	return nil, -1, false
}

// removeAt removes the order at the given in-level position (as returned
// by find) and adjusts TotalVolume by its remaining quantity.
func (l *PriceLevel) removeAt(position int, order *models.Order) {
	l.orders.Remove(position)
	l.TotalVolume -= order.Remaining()
}

// empty reports whether the level has no resting orders left; an empty
// level is destroyed by the caller (removed from its ladder), never
// retained.
func (l *PriceLevel) empty() bool {
	return l.orders.Empty()
}

// size returns the number of discrete resting orders at this level.
func (l *PriceLevel) size() int {
	return l.orders.Size()
}
