package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marovole/HearthBulter/internal/service"

	"github.com/gin-gonic/gin"
)

func TestHttpMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HttpMiddleware())
	r.GET("/test", func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestTraceMiddleware_PropagatesToRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware())

	var got string
	r.GET("/test", func(c *gin.Context) {
		got = service.TraceIDFromContext(c.Request.Context())
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Trace-ID", "trace-abc")
	r.ServeHTTP(w, req)

	if got != "trace-abc" {
		t.Errorf("expected trace id on request context, got %q", got)
	}
	if hdr := w.Header().Get("X-Trace-ID"); hdr != "trace-abc" {
		t.Errorf("expected echoed trace header, got %q", hdr)
	}
}
