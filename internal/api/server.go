package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"repello/internal/matching"
	"repello/internal/metrics"
	"repello/internal/models"
	"repello/internal/stream"
)

// CreateOrderRequest is the body of POST /api/v1/orders. Type distinguishes
// a limit order (price required) from a market order (price omitted and
// ignored).
type CreateOrderRequest struct {
	Symbol string      `json:"symbol"`
	Side   models.Side `json:"side"`
	Type   string      `json:"type"` // "LIMIT" or "MARKET"
	Price  int64       `json:"price,omitempty"`
	Volume int64       `json:"volume"`
	Agent  uint64      `json:"agent_id"`

	// ID is the caller-assigned order id for LIMIT orders, used later in a
	// cancel or lookup. When it is zero the server assigns one from its own
	// counter and returns it as order_id. Market orders ignore it; they are
	// never individually addressable.
	ID uint64 `json:"id,omitempty"`
}

type TradeResponse struct {
	Seq          uint64 `json:"seq"`
	TakerOrderID uint64 `json:"taker_order_id"`
	MakerOrderID uint64 `json:"maker_order_id"`
	Price        int64  `json:"price"`
	Volume       int64  `json:"volume"`
}

type CreateOrderResponse struct {
	OrderID         uint64          `json:"order_id"`
	Status          string          `json:"status,omitempty"`
	FilledVolume    int64           `json:"filled_volume"`
	RemainingVolume int64           `json:"remaining_volume"`
	Trades          []TradeResponse `json:"trades,omitempty"`
}

type CancelOrderResponse struct {
	OrderID   uint64 `json:"order_id"`
	Cancelled bool   `json:"cancelled"`
}

type GetOrderResponse struct {
	OrderID uint64      `json:"order_id"`
	AgentID uint64      `json:"agent_id"`
	Side    models.Side `json:"side"`
	Price   int64       `json:"price"`
	Volume  int64       `json:"volume"`
	Filled  int64       `json:"filled"`
	Status  string      `json:"status"`
}

type HealthResponse struct {
	Status          string `json:"status"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	OrdersProcessed int64  `json:"orders_processed"`
}

// Server is the HTTP front for a Market: order entry, cancellation, book
// depth, health, and metrics, plus the websocket trade/depth feed.
type Server struct {
	listenAddr string
	market     *matching.Market
	metrics    *metrics.Metrics
	collector  *metrics.Collector
	hub        *stream.Hub
	startTime  time.Time

	nextOrderID atomic.Uint64
}

// NewServer creates a Server bound to a Market and its ambient metrics.
func NewServer(listenAddr string, market *matching.Market, m *metrics.Metrics, collector *metrics.Collector, hub *stream.Hub) *Server {
	return &Server{
		listenAddr: listenAddr,
		market:     market,
		metrics:    m,
		collector:  collector,
		hub:        hub,
		startTime:  time.Now(),
	}
}

// Mux builds the server's routes so callers can mount it under their own
// http.Server (e.g. with a different listen address for /metrics).
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/orders", s.handleCreateOrder)
	mux.HandleFunc("DELETE /api/v1/orders/{id}", s.handleCancelOrder)
	mux.HandleFunc("GET /api/v1/orders/{id}", s.handleGetOrder)
	mux.HandleFunc("GET /api/v1/orderbook/{symbol}", s.handleGetOrderBook)
	mux.HandleFunc("GET /health", s.handleHealthCheck)
	mux.HandleFunc("GET /metrics", s.handleGetMetrics)
	mux.HandleFunc("GET /ws", s.handleStream)
	return mux
}

// Run starts the HTTP server, blocking until it exits.
func (s *Server) Run() error {
	return http.ListenAndServe(s.listenAddr, s.Mux())
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	s.metrics.IncOrdersReceived()
	if s.collector != nil {
		s.collector.OrdersReceived.Inc()
	}

	restingBefore := s.market.RestingCount(req.Symbol)

	var trades []models.Trade
	var orderID uint64
	var filled, remaining int64
	var status string

	switch req.Type {
	case "MARKET":
		trades = s.market.SubmitMarket(req.Symbol, req.Agent, req.Side, req.Volume)
		for _, tr := range trades {
			filled += tr.Volume
		}

	case "LIMIT":
		if req.Price <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit orders require a positive price"})
			return
		}
		orderID = req.ID
		if orderID == 0 {
			orderID = s.nextOrderID.Add(1)
		}
		order := models.NewOrder(orderID, req.Agent, req.Side, req.Price, req.Volume)
		if err := order.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		trades = s.market.SubmitLimit(req.Symbol, order)
		filled = order.Filled
		remaining = order.Remaining()
		status = order.Status.String()

	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type must be LIMIT or MARKET"})
		return
	}

	if len(trades) > 0 {
		s.metrics.IncOrdersMatched(int64(len(trades)))
		s.metrics.IncTradesExecuted(int64(len(trades)))
		if s.collector != nil {
			s.collector.OrdersMatched.Add(float64(len(trades)))
			s.collector.TradesExecuted.Add(float64(len(trades)))
		}
		if s.hub != nil {
			for _, tr := range trades {
				s.hub.PublishTrade(req.Symbol, tr)
			}
		}
	}
	if s.hub != nil {
		bid, bidOK := s.market.BestBid(req.Symbol)
		ask, askOK := s.market.BestAsk(req.Symbol)
		s.hub.PublishDepth(req.Symbol, bid, bidOK, ask, askOK)
	}

	s.applyRestingDelta(req.Symbol, restingBefore, s.market.RestingCount(req.Symbol))

	s.metrics.AddLatency(time.Since(started).Microseconds())
	if s.collector != nil {
		s.collector.OrderLatencyUs.Observe(float64(time.Since(started).Microseconds()))
	}

	resp := CreateOrderResponse{
		OrderID:         orderID,
		Status:          status,
		FilledVolume:    filled,
		RemainingVolume: remaining,
	}
	resp.Trades = make([]TradeResponse, len(trades))
	for i, tr := range trades {
		resp.Trades[i] = TradeResponse{
			Seq:          tr.Seq,
			TakerOrderID: tr.TakerOrderID,
			MakerOrderID: tr.MakerOrderID,
			Price:        tr.Price,
			Volume:       tr.Volume,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, agent, err := parseIDAndAgent(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	symbol, _ := s.market.SymbolFor(id)
	ok := s.market.Cancel(id, agent)
	if ok {
		s.metrics.IncOrdersCancelled()
		s.metrics.DecOrdersInBook(symbol)
		if s.collector != nil {
			s.collector.OrdersCancelled.Inc()
			s.collector.OrdersInBook.Dec()
		}
	}
	writeJSON(w, http.StatusOK, CancelOrderResponse{OrderID: id, Cancelled: ok})
}

// applyRestingDelta reconciles the change in a symbol's resting-order
// count against both metrics surfaces. A single request can move the
// count by more than one (a limit order resting while it also drains one
// or more opposite makers to zero), so the delta is applied as a batch
// rather than assumed to be +/-1.
func (s *Server) applyRestingDelta(symbol string, before, after int) {
	delta := after - before
	switch {
	case delta > 0:
		for i := 0; i < delta; i++ {
			s.metrics.IncOrdersInBook(symbol)
			if s.collector != nil {
				s.collector.OrdersInBook.Inc()
			}
		}
	case delta < 0:
		for i := 0; i < -delta; i++ {
			s.metrics.DecOrdersInBook(symbol)
			if s.collector != nil {
				s.collector.OrdersInBook.Dec()
			}
		}
	}
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	order, ok := s.market.Order(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}

	writeJSON(w, http.StatusOK, GetOrderResponse{
		OrderID: order.ID,
		AgentID: order.AgentID,
		Side:    order.Side,
		Price:   order.Price,
		Volume:  order.Volume,
		Filled:  order.Filled,
		Status:  order.Status.String(),
	})
}

func (s *Server) handleGetOrderBook(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	limit := 0
	if depthParam := r.URL.Query().Get("depth"); depthParam != "" {
		if v, err := strconv.Atoi(depthParam); err == nil {
			limit = v
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"bids":   s.market.Depth(symbol, models.Buy, limit),
		"asks":   s.market.Depth(symbol, models.Sell, limit),
	})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "healthy",
		UptimeSeconds:   int64(time.Since(s.startTime).Seconds()),
		OrdersProcessed: s.metrics.OrdersReceived.Load(),
	})
}

func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "stream not enabled"})
		return
	}
	if err := stream.ServeWS(s.hub, w, r); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
}

func parseIDAndAgent(r *http.Request) (id uint64, agent uint64, err error) {
	id, err = strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, 0, errors.New("invalid order id")
	}
	agentParam := r.URL.Query().Get("agent_id")
	if agentParam == "" {
		return 0, 0, errors.New("agent_id query parameter is required")
	}
	agent, err = strconv.ParseUint(agentParam, 10, 64)
	if err != nil {
		return 0, 0, errors.New("invalid agent_id")
	}
	return id, agent, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
