package metrics

import (
	"encoding/json"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const (
	MaxLatencyMicros = 100000 // Track up to 100ms with 1us precision
)

// Metrics holds thread-safe counters for the matching server, broken out
// per symbol where the quantity is book-shaped (resting order count) and
// aggregated globally where it isn't (latency, throughput).
type Metrics struct {
	StartTime       time.Time
	OrdersReceived  atomic.Int64
	OrdersMatched   atomic.Int64
	OrdersCancelled atomic.Int64
	TradesExecuted  atomic.Int64
	TotalLatency    atomic.Int64 // in microseconds

	bookMu    sync.Mutex
	perSymbol map[string]*atomic.Int64 // symbol -> resting order count

	// Histogram for accurate percentiles (Lock-free)
	// Index i stores count of requests taking i microseconds.
	// Last index stores all requests >= MaxLatencyMicros
	LatencyHistogram [MaxLatencyMicros + 1]atomic.Int64
}

// NewMetrics creates a new Metrics struct.
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime: time.Now(),
		perSymbol: make(map[string]*atomic.Int64),
	}
}

// IncOrdersReceived increments the total orders counter.
func (m *Metrics) IncOrdersReceived() {
	m.OrdersReceived.Add(1)
}

// IncOrdersMatched increments the total orders matched counter.
func (m *Metrics) IncOrdersMatched(count int64) {
	m.OrdersMatched.Add(count)
}

// IncOrdersCancelled increments the total orders cancelled counter.
func (m *Metrics) IncOrdersCancelled() {
	m.OrdersCancelled.Add(1)
}

// IncOrdersInBook records a new resting order on a symbol's book.
func (m *Metrics) IncOrdersInBook(symbol string) {
	m.counterFor(symbol).Add(1)
}

// DecOrdersInBook records a resting order leaving a symbol's book, whether
// by fill or cancellation.
func (m *Metrics) DecOrdersInBook(symbol string) {
	m.counterFor(symbol).Add(-1)
}

func (m *Metrics) counterFor(symbol string) *atomic.Int64 {
	m.bookMu.Lock()
	defer m.bookMu.Unlock()
	c, ok := m.perSymbol[symbol]
	if !ok {
		c = &atomic.Int64{}
		m.perSymbol[symbol] = c
	}
	return c
}

// OrdersInBook returns the total resting order count across every symbol.
func (m *Metrics) OrdersInBook() int64 {
	m.bookMu.Lock()
	defer m.bookMu.Unlock()
	var total int64
	for _, c := range m.perSymbol {
		total += c.Load()
	}
	return total
}

// OrdersInBookBySymbol returns a point-in-time snapshot of resting order
// counts keyed by symbol.
func (m *Metrics) OrdersInBookBySymbol() map[string]int64 {
	m.bookMu.Lock()
	defer m.bookMu.Unlock()
	snapshot := make(map[string]int64, len(m.perSymbol))
	for symbol, c := range m.perSymbol {
		snapshot[symbol] = c.Load()
	}
	return snapshot
}

// IncTradesExecuted increments the total trades counter.
func (m *Metrics) IncTradesExecuted(count int64) {
	m.TradesExecuted.Add(count)
}

// AddLatency adds to the total latency and updates the histogram.
func (m *Metrics) AddLatency(microseconds int64) {
	m.TotalLatency.Add(microseconds)

	idx := microseconds
	if idx > MaxLatencyMicros {
		idx = MaxLatencyMicros
	}
	m.LatencyHistogram[idx].Add(1)
}

// calculatePercentile returns the latency value (in ms) below which the given percentile falls.
func (m *Metrics) calculatePercentile(p float64, totalCount int64) float64 {
	if totalCount == 0 {
		return 0
	}
	targetCount := int64(math.Ceil(float64(totalCount) * p))
	var currentCount int64 = 0

	for i := 0; i <= MaxLatencyMicros; i++ {
		count := m.LatencyHistogram[i].Load()
		currentCount += count
		if currentCount >= targetCount {
			return float64(i) / 1000.0 // micros to millis
		}
	}
	return float64(MaxLatencyMicros) / 1000.0
}

// MarshalJSON implements the json.Marshaler interface for Metrics.
func (m *Metrics) MarshalJSON() ([]byte, error) {
	totalOrders := m.OrdersReceived.Load()

	avgLatency := float64(0)
	if totalOrders > 0 {
		avgLatency = float64(m.TotalLatency.Load()) / float64(totalOrders) / 1000.0 // to ms
	}

	uptimeSeconds := time.Since(m.StartTime).Seconds()
	throughput := float64(0)
	if uptimeSeconds > 0 {
		throughput = float64(totalOrders) / uptimeSeconds
	}

	p50 := m.calculatePercentile(0.50, totalOrders)
	p99 := m.calculatePercentile(0.99, totalOrders)
	p999 := m.calculatePercentile(0.999, totalOrders)

	return json.Marshal(map[string]interface{}{
		"orders_received":           totalOrders,
		"orders_matched":            m.OrdersMatched.Load(),
		"orders_cancelled":          m.OrdersCancelled.Load(),
		"orders_in_book":            m.OrdersInBook(),
		"orders_in_book_by_symbol":  m.OrdersInBookBySymbol(),
		"trades_executed":           m.TradesExecuted.Load(),
		"latency_avg_ms":            avgLatency,
		"latency_p50_ms":            p50,
		"latency_p99_ms":            p99,
		"latency_p999_ms":           p999,
		"throughput_orders_per_sec": throughput,
	})
}
