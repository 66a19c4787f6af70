package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marovole/HearthBulter/internal/dto/resp"
	"github.com/marovole/HearthBulter/internal/model"
	"github.com/marovole/HearthBulter/internal/service"
	"github.com/marovole/HearthBulter/pkg/constraints"
	"github.com/marovole/HearthBulter/pkg/logger"

	"github.com/gin-gonic/gin"
)

func init() {
	logger.InitLogger("test")
}

type stubConfigRepo struct {
	mu   sync.Mutex
	rows map[string]model.DualWriteConfig
}

func newStubConfigRepo() *stubConfigRepo {
	return &stubConfigRepo{rows: make(map[string]model.DualWriteConfig)}
}

func (s *stubConfigRepo) GetByKey(ctx context.Context, key string) (*model.DualWriteConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[key]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *stubConfigRepo) Upsert(ctx context.Context, row *model.DualWriteConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.Key] = *row
	return nil
}

func (s *stubConfigRepo) PingContext(ctx context.Context) error { return nil }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	flags := service.NewFlagService(newStubConfigRepo(), nil, service.NewFlagCache(10*time.Second))
	h := NewDualWriteHandler(flags, nil)

	r := gin.New()
	r.GET("/v1/dualwrite/config", h.GetConfig)
	r.PUT("/v1/dualwrite/config", h.SetConfig)
	r.PATCH("/v1/dualwrite/toggle", h.Toggle)
	r.GET("/health", h.HealthCheck)
	return r
}

func TestGetConfig_NotSeeded(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/dualwrite/config", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 before seeding, got %d", w.Code)
	}
}

func TestSetThenGetConfig(t *testing.T) {
	r := newTestRouter(t)

	body := `{"value":{"enableDualWrite":true,"enableSupabasePrimary":false}}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/v1/dualwrite/config", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("set config failed with %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/v1/dualwrite/config", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get config failed with %d", w.Code)
	}

	var got resp.ConfigResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if got.Key != constraints.DualWriteConfigKey {
		t.Errorf("unexpected key %q", got.Key)
	}
	if !got.Flags.EnableDualWrite || got.Flags.EnableSupabasePrimary {
		t.Errorf("flags not round-tripped: %+v", got.Flags)
	}
}

func TestToggle_SwitchesPrimary(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PATCH", "/v1/dualwrite/toggle",
		strings.NewReader(`{"dual_write":true,"primary":"supabase"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle failed with %d: %s", w.Code, w.Body.String())
	}

	var got resp.ConfigResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !got.Flags.EnableDualWrite || !got.Flags.EnableSupabasePrimary {
		t.Errorf("toggle not applied: %+v", got.Flags)
	}
}

func TestToggle_EmptyPatchRejected(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PATCH", "/v1/dualwrite/toggle", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty patch, got %d", w.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected healthy, got %d", w.Code)
	}
}
