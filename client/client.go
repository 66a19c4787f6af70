package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	v1 "github.com/marovole/HearthBulter/pkg/api/v1"
	"github.com/marovole/HearthBulter/pkg/constraints"
	"github.com/marovole/HearthBulter/pkg/logger"

	"go.uber.org/zap"
)

// DiffFunc receives live diff events from the stream.
type DiffFunc func(ev v1.DiffEvent)

// ResetFunc fires when the server signals that the client's last seen id
// fell out of the replay window and a full refetch via ListDiffs is due.
type ResetFunc func()

// HearthClient is the operator-side client for the dual-write control
// plane: flag management plus a resilient SSE subscription to the diff
// feed with reconnect, backoff and heartbeat supervision.
type HearthClient struct {
	addr       string
	token      string
	httpClient *http.Client

	mu     sync.Mutex
	lastID int64

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHearthClient(addr, token string) *HearthClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &HearthClient{
		addr:       addr,
		token:      token,
		httpClient: &http.Client{Timeout: 0},
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *HearthClient) Login(username, password string) error {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, _ := http.NewRequestWithContext(c.ctx, "POST", c.addr+"/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return err
	}
	c.token = res.AccessToken
	return nil
}

// GetFlags reads the current dual-write switches.
func (c *HearthClient) GetFlags(ctx context.Context) (v1.Flags, error) {
	var res struct {
		Flags v1.Flags `json:"flags"`
	}
	if err := c.doJSON(ctx, "GET", "/v1/dualwrite/config", nil, &res); err != nil {
		return v1.Flags{}, err
	}
	return res.Flags, nil
}

// SetFlags replaces the whole config value.
func (c *HearthClient) SetFlags(ctx context.Context, value map[string]any) error {
	return c.doJSON(ctx, "PUT", "/v1/dualwrite/config", map[string]any{"value": value}, nil)
}

// Toggle patches the dual-write switch and/or the authoritative backend
// ("legacy" or "supabase"), leaving other config keys alone.
func (c *HearthClient) Toggle(ctx context.Context, dualWrite *bool, primary string) (v1.Flags, error) {
	body := make(map[string]any)
	if dualWrite != nil {
		body["dual_write"] = *dualWrite
	}
	if primary != "" {
		body["primary"] = primary
	}

	var res struct {
		Flags v1.Flags `json:"flags"`
	}
	if err := c.doJSON(ctx, "PATCH", "/v1/dualwrite/toggle", body, &res); err != nil {
		return v1.Flags{}, err
	}
	return res.Flags, nil
}

// Stats returns severity counts per endpoint over the trailing window.
func (c *HearthClient) Stats(ctx context.Context, hours int) (map[string]map[string]int64, error) {
	var res struct {
		Buckets []struct {
			APIEndpoint string `json:"api_endpoint"`
			Severity    string `json:"severity"`
			Count       int64  `json:"count"`
		} `json:"buckets"`
	}
	path := fmt.Sprintf("/v1/diffs/stats?hours=%d", hours)
	if err := c.doJSON(ctx, "GET", path, nil, &res); err != nil {
		return nil, err
	}

	out := make(map[string]map[string]int64)
	for _, b := range res.Buckets {
		if out[b.APIEndpoint] == nil {
			out[b.APIEndpoint] = make(map[string]int64)
		}
		out[b.APIEndpoint][b.Severity] = b.Count
	}
	return out, nil
}

// ListDiffs fetches recorded diffs, optionally filtered by severity.
func (c *HearthClient) ListDiffs(ctx context.Context, severity string, limit int) ([]v1.DiffEvent, error) {
	path := fmt.Sprintf("/v1/diffs?limit=%d", limit)
	if severity != "" {
		path += "&severity=" + severity
	}
	var res struct {
		Data []v1.DiffEvent `json:"data"`
	}
	if err := c.doJSON(ctx, "GET", path, nil, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// WatchDiffs subscribes to the live diff feed until Close. minSeverity
// may be empty for everything; onReset may be nil.
func (c *HearthClient) WatchDiffs(minSeverity string, onDiff DiffFunc, onReset ResetFunc) {
	go c.runWatchLoop(minSeverity, onDiff, onReset)
}

func (c *HearthClient) Close() {
	c.cancel()
}

func (c *HearthClient) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.addr+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s failed with status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HearthClient) runWatchLoop(minSeverity string, onDiff DiffFunc, onReset ResetFunc) {
	backoff := time.Second
	maxBackoff := 30 * time.Second
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			c.mu.Lock()
			url := c.addr + "/v1/diffs/stream"
			// Only resume with last_id once events were seen; a fresh
			// subscription has nothing to replay.
			if c.lastID > 0 {
				url += fmt.Sprintf("?last_id=%d", c.lastID)
			}
			c.mu.Unlock()
			if minSeverity != "" {
				if strings.Contains(url, "?") {
					url += "&min_severity=" + minSeverity
				} else {
					url += "?min_severity=" + minSeverity
				}
			}

			// Use sub-context for request cancellation
			reqCtx, reqCancel := context.WithCancel(c.ctx)
			req, _ := http.NewRequestWithContext(reqCtx, "GET", url, nil)
			req.Header.Set("Authorization", "Bearer "+c.token)
			resp, err := c.httpClient.Do(req)
			if err != nil {
				reqCancel()
				jitter := time.Duration(rand.Int63n(int64(backoff / 2)))
				logger.Warn("diff stream disconnected", zap.Error(err))
				time.Sleep(backoff + jitter)
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}

			// Watchdog for heartbeats
			var lastActivity int64 = time.Now().Unix()
			go func() {
				ticker := time.NewTicker(5 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-reqCtx.Done():
						return
					case <-ticker.C:
						if time.Now().Unix()-atomic.LoadInt64(&lastActivity) > 25 {
							logger.Warn("diff stream heartbeat timeout, reconnecting")
							reqCancel()
							return
						}
					}
				}
			}()

			backoff = time.Second
			scanner := bufio.NewScanner(resp.Body)

			var eventType string
			var dataBuffer bytes.Buffer

			for scanner.Scan() {
				atomic.StoreInt64(&lastActivity, time.Now().Unix())
				line := scanner.Text()
				if line == "" {
					// Process the accumulated message
					if eventType == "reset" {
						logger.Warn("replay window exceeded, full refetch required")
						if onReset != nil {
							onReset()
						}
					} else if eventType == "ping" {
						// heartbeat only refreshes the watchdog
					} else if dataBuffer.Len() > 0 {
						var ev v1.DiffEvent
						if err := json.Unmarshal(dataBuffer.Bytes(), &ev); err == nil {
							c.handleEvent(ev, onDiff)
						} else {
							logger.Error("failed to unmarshal diff event", zap.Error(err))
						}
					}

					// Reset buffers for next message
					eventType = ""
					dataBuffer.Reset()
					continue
				}

				if strings.HasPrefix(line, "event: ") {
					eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				} else if strings.HasPrefix(line, "data:") {
					if dataBuffer.Len() > 0 {
						dataBuffer.WriteString("\n")
					}
					dataBuffer.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
				}
			}
			reqCancel()
			resp.Body.Close()
		}
	}
}

func (c *HearthClient) handleEvent(ev v1.DiffEvent, onDiff DiffFunc) {
	c.mu.Lock()
	if ev.ID <= c.lastID {
		c.mu.Unlock()
		logger.Warn("stale diff event received", zap.Int64("id", ev.ID), zap.Int64("last_id", c.lastID))
		return
	}
	c.lastID = ev.ID
	c.mu.Unlock()

	if ev.Severity == constraints.SeverityError {
		logger.Warn("error-severity diff observed",
			zap.String("endpoint", ev.APIEndpoint),
			zap.Int64("id", ev.ID))
	}
	if onDiff != nil {
		onDiff(ev)
	}
}
