package models

import "fmt"

// Side represents the side of an order (Buy or Sell).
type Side int

const (
	Buy Side = iota
	Sell
)

// String returns the string representation of a Side.
func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON converts a Side to its string representation for JSON encoding.
func (s Side) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON converts a string to a Side for JSON decoding.
func (s *Side) UnmarshalJSON(data []byte) error {
	str := string(data)
	// Remove quotes from the string
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	switch str {
	case "BUY":
		*s = Buy
	case "SELL":
		*s = Sell
	default:
		return fmt.Errorf("unknown side: %s", str)
	}
	return nil
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderStatus represents the lifecycle state of an order:
// NEW -> RESTING -> (PARTIALLY_FILLED ->)* (FILLED | CANCELLED).
// Transitions happen exclusively inside OrderBook operations.
type OrderStatus int

const (
	New OrderStatus = iota
	Resting
	PartiallyFilled
	Filled
	Cancelled
)

// String returns the string representation of an OrderStatus.
func (os OrderStatus) String() string {
	switch os {
	case New:
		return "NEW"
	case Resting:
		return "RESTING"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON converts an OrderStatus to its string representation for JSON encoding.
func (os OrderStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + os.String() + `"`), nil
}

// Order is a single order known to an OrderBook. Price is in ticks and
// Volume/Filled in lots; all arithmetic is exact integer arithmetic, never
// floating point.
type Order struct {
	ID      uint64      `json:"id"`
	AgentID uint64      `json:"agent_id"`
	Side    Side        `json:"side"`
	Price   int64       `json:"price,omitempty"`
	Volume  int64       `json:"volume"`
	Filled  int64       `json:"filled"`
	Status  OrderStatus `json:"status"`
}

// NewOrder creates a new, unfilled Order ready for OrderBook.AddLimitOrder
// or OrderBook.ProcessLimitOrder.
func NewOrder(id, agentID uint64, side Side, price, volume int64) *Order {
	return &Order{
		ID:      id,
		AgentID: agentID,
		Side:    side,
		Price:   price,
		Volume:  volume,
		Filled:  0,
		Status:  New,
	}
}

// Remaining returns the unfilled quantity of the order.
func (o *Order) Remaining() int64 {
	return o.Volume - o.Filled
}

// Validate checks caller-supplied fields before an order reaches the book.
// The book returns no validation errors: AddLimitOrder panics on a
// duplicate id or a non-positive volume and does not check the price at
// all; bypassing Validate is a caller error (see
// spec's distinction between the safe ProcessLimitOrder entry and a direct,
// unchecked AddLimitOrder call).
func (o *Order) Validate() error {
	if o.Volume <= 0 {
		return fmt.Errorf("invalid volume: must be positive, got %d", o.Volume)
	}
	if o.Filled != 0 {
		return fmt.Errorf("invalid filled: new orders must have filled == 0")
	}
	if o.Price <= 0 {
		return fmt.Errorf("invalid price: must be positive, got %d", o.Price)
	}
	return nil
}

// String returns the string representation of an Order for logging.
func (o *Order) String() string {
	return fmt.Sprintf("Order[ID: %d, AgentID: %d, Side: %s, Price: %d, Volume: %d/%d, Status: %s]",
		o.ID, o.AgentID, o.Side, o.Price, o.Filled, o.Volume, o.Status)
}
