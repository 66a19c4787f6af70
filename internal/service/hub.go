package service

import (
	"time"

	"github.com/marovole/HearthBulter/internal/metrics"
	v1 "github.com/marovole/HearthBulter/pkg/api/v1"
	"github.com/marovole/HearthBulter/pkg/constraints"
	"github.com/marovole/HearthBulter/pkg/logger"
)

// Client is one connected diff stream consumer. Endpoints filters which
// records it receives ("*" for all); MinSeverity drops events below the
// requested level.
type Client struct {
	Send        chan v1.DiffEvent
	Endpoints   map[string]bool
	MinSeverity string
}

func (c *Client) Wants(ev v1.DiffEvent) bool {
	if len(c.Endpoints) > 0 && !c.Endpoints["*"] && !c.Endpoints[ev.APIEndpoint] {
		return false
	}
	return severityRank(ev.Severity) >= severityRank(c.MinSeverity)
}

func severityRank(s string) int {
	switch s {
	case constraints.SeverityError:
		return 2
	case constraints.SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Hub fans recorded diffs out to stream clients. A client that cannot
// keep up is disconnected rather than allowed to block the rest.
type Hub struct {
	clients    map[*Client]bool
	Broadcast  chan v1.DiffEvent
	Register   chan *Client
	Unregister chan *Client

	obs       metrics.HubObserver
	heartbeat time.Duration
}

func NewHub(obs metrics.HubObserver, heartbeat time.Duration, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan v1.DiffEvent, bufferSize),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		obs:        obs,
		heartbeat:  heartbeat,
	}
}

// Heartbeat events keep intermediaries from closing idle streams; they
// carry ID 0, which never collides with a record id.
func heartbeatEvent() v1.DiffEvent {
	return v1.DiffEvent{ID: 0}
}

func IsHeartbeat(ev v1.DiffEvent) bool {
	return ev.ID == 0
}

func (h *Hub) Run() {
	var tick <-chan time.Time
	if h.heartbeat > 0 {
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			h.obs.IncOnline()
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.obs.DecOnline()
			}
		case <-tick:
			for client := range h.clients {
				select {
				case client.Send <- heartbeatEvent():
				default:
				}
			}
		case ev := <-h.Broadcast:
			for client := range h.clients {
				if !client.Wants(ev) {
					continue
				}
				select {
				case client.Send <- ev:
					h.obs.RecordPush()
				default:
					logger.Warn("stream client too slow, disconnecting")
					close(client.Send)
					delete(h.clients, client)
					h.obs.DecOnline()
				}
			}
		}
	}
}
