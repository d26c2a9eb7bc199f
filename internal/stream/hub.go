// Package stream broadcasts trades and top-of-book updates over
// websocket, scaled down from a full multi-channel exchange feed to the
// two event kinds this engine produces: a trade print and a depth
// snapshot, both keyed by symbol.
package stream

import (
	"encoding/json"
	"sync"
	"time"

	"repello/internal/models"
)

// Hub maintains the set of connected clients and their symbol
// subscriptions, and fans out trade/depth events published by the
// matching engine to whoever is subscribed to that symbol.
type Hub struct {
	clients map[*Client]bool

	// subscriptions maps a symbol to the set of clients subscribed to it.
	subscriptions map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	subscribe  chan *subscriptionRequest

	publishTrade chan tradeEvent
	publishDepth chan depthEvent

	mu sync.RWMutex
}

type subscriptionRequest struct {
	client *Client
	symbol string
	sub    bool
}

type tradeEvent struct {
	Symbol string
	Trade  models.Trade
}

type depthEvent struct {
	Symbol string
	Bid    int64
	BidOK  bool
	Ask    int64
	AskOK  bool
}

// outboundMessage is the JSON envelope sent to subscribed clients.
type outboundMessage struct {
	Type   string      `json:"type"`
	Symbol string      `json:"symbol"`
	Data   interface{} `json:"data"`
	TS     int64       `json:"ts"`
}

// NewHub creates an unstarted Hub. Call Run in its own goroutine before
// accepting connections.
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan *subscriptionRequest, 256),
		publishTrade:  make(chan tradeEvent, 1024),
		publishDepth:  make(chan depthEvent, 1024),
	}
}

// Run is the hub's single-goroutine event loop; every mutation of
// clients/subscriptions happens here so none of it needs a lock.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				for symbol, set := range h.subscriptions {
					delete(set, c)
					if len(set) == 0 {
						delete(h.subscriptions, symbol)
					}
				}
				close(c.send)
			}

		case req := <-h.subscribe:
			set, ok := h.subscriptions[req.symbol]
			if !ok {
				set = make(map[*Client]bool)
				h.subscriptions[req.symbol] = set
			}
			if req.sub {
				set[req.client] = true
			} else {
				delete(set, req.client)
			}

		case ev := <-h.publishTrade:
			h.fanOut(ev.Symbol, outboundMessage{
				Type:   "trade",
				Symbol: ev.Symbol,
				Data:   ev.Trade,
				TS:     time.Now().UnixMilli(),
			})

		case ev := <-h.publishDepth:
			h.fanOut(ev.Symbol, outboundMessage{
				Type:   "depth",
				Symbol: ev.Symbol,
				Data: map[string]interface{}{
					"best_bid":    ev.Bid,
					"best_bid_ok": ev.BidOK,
					"best_ask":    ev.Ask,
					"best_ask_ok": ev.AskOK,
				},
				TS: time.Now().UnixMilli(),
			})
		}
	}
}

func (h *Hub) fanOut(symbol string, msg outboundMessage) {
	set, ok := h.subscriptions[symbol]
	if !ok {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for c := range set {
		select {
		case c.send <- payload:
		default:
			// client is too slow to drain; drop rather than block the hub.
		}
	}
}

// PublishTrade queues a trade print for broadcast to a symbol's
// subscribers. Safe to call from the matching goroutine; never blocks
// longer than the channel buffer allows.
func (h *Hub) PublishTrade(symbol string, trade models.Trade) {
	select {
	case h.publishTrade <- tradeEvent{Symbol: symbol, Trade: trade}:
	default:
	}
}

// PublishDepth queues a top-of-book update for broadcast.
func (h *Hub) PublishDepth(symbol string, bid int64, bidOK bool, ask int64, askOK bool) {
	select {
	case h.publishDepth <- depthEvent{Symbol: symbol, Bid: bid, BidOK: bidOK, Ask: ask, AskOK: askOK}:
	default:
	}
}

func (h *Hub) registerClient(c *Client)   { h.register <- c }
func (h *Hub) unregisterClient(c *Client) { h.unregister <- c }
func (h *Hub) setSubscription(c *Client, symbol string, sub bool) {
	h.subscribe <- &subscriptionRequest{client: c, symbol: symbol, sub: sub}
}
