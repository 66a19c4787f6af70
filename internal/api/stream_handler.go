package api

import (
	"io"
	"strconv"
	"strings"

	"github.com/marovole/HearthBulter/internal/service"
	v1 "github.com/marovole/HearthBulter/pkg/api/v1"
	"github.com/marovole/HearthBulter/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StreamProvider replays events a reconnecting client missed.
type StreamProvider interface {
	GetCompensation(lastID int64) ([]v1.DiffEvent, bool)
}

type StreamHandler struct {
	provider StreamProvider
	hub      *service.Hub
}

func NewStreamHandler(provider StreamProvider, hub *service.Hub) *StreamHandler {
	return &StreamHandler{
		provider: provider,
		hub:      hub,
	}
}

// WatchDiffs is the operator dashboard feed: an SSE stream of diff
// records, optionally filtered by endpoint and minimum severity, with
// catch-up from last_id against the replay ring.
func (h *StreamHandler) WatchDiffs(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")

	operator := service.GetOperator(c.Request.Context())
	endpoints := make(map[string]bool)
	for _, p := range strings.Split(c.Query("endpoint"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			endpoints[p] = true
		}
	}
	if len(endpoints) == 0 {
		endpoints["*"] = true
	}

	logger.Info("diff stream client connected",
		zap.String("operator", operator),
		zap.String("ip", c.ClientIP()),
	)

	var lastID int64
	resuming := false
	if s := c.Query("last_id"); s != "" {
		lastID, _ = strconv.ParseInt(s, 10, 64)
		resuming = true
	}

	client := &service.Client{
		Send:        make(chan v1.DiffEvent, 128),
		Endpoints:   endpoints,
		MinSeverity: c.Query("min_severity"),
	}

	h.hub.Register <- client
	defer func() {
		h.hub.Unregister <- client
	}()

	// First-time subscribers have no gap to close; replaying (or resetting)
	// for them would only force a needless refetch.
	maxSentID := lastID
	if resuming {
		events, ok := h.provider.GetCompensation(lastID)
		if ok {
			for _, ev := range events {
				if !client.Wants(ev) {
					continue
				}
				c.SSEvent("diff", ev)
				maxSentID = ev.ID
			}
		} else {
			// lastID fell out of the ring; the client must refetch via /v1/diffs.
			c.SSEvent("reset", "last_id_too_old")
		}
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-client.Send:
			if !ok {
				return false
			}
			if service.IsHeartbeat(ev) {
				c.SSEvent("ping", "pong")
				return true
			}
			// filter events already replayed
			if ev.ID <= maxSentID {
				return true
			}
			c.SSEvent("diff", ev)
			maxSentID = ev.ID
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
