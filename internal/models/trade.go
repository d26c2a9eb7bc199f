package models

import "fmt"

// Trade is emitted by a match-producing OrderBook operation. Trades are
// handed back to the caller by value and are independent of book lifetime.
// Seq is assigned by the originating OrderBook and increases monotonically
// across the lifetime of that book; trades produced within a single
// operation are contiguous in emission order.
type Trade struct {
	Seq          uint64 `json:"seq"`
	TakerOrderID uint64 `json:"taker_order_id"`
	MakerOrderID uint64 `json:"maker_order_id"`
	Price        int64  `json:"price"`
	Volume       int64  `json:"volume"`
}

// String returns the string representation of a Trade for logging.
func (t Trade) String() string {
	return fmt.Sprintf("Trade[Seq: %d, Taker: %d, Maker: %d, Price: %d, Volume: %d]",
		t.Seq, t.TakerOrderID, t.MakerOrderID, t.Price, t.Volume)
}
