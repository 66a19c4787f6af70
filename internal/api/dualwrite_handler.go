package api

import (
	"errors"
	"net/http"

	"github.com/marovole/HearthBulter/internal/dto/req"
	"github.com/marovole/HearthBulter/internal/dto/resp"
	"github.com/marovole/HearthBulter/internal/service"
	v1 "github.com/marovole/HearthBulter/pkg/api/v1"
	"github.com/marovole/HearthBulter/pkg/constraints"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// DualWriteHandler is the operator surface for the migration toggles.
type DualWriteHandler struct {
	flags *service.FlagService
	rdb   *redis.Client
}

func NewDualWriteHandler(flags *service.FlagService, rdb *redis.Client) *DualWriteHandler {
	return &DualWriteHandler{flags: flags, rdb: rdb}
}

func (h *DualWriteHandler) GetConfig(c *gin.Context) {
	cfg, err := h.flags.Get(c.Request.Context(), constraints.DualWriteConfigKey)
	if err != nil {
		if errors.Is(err, service.ErrConfigNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "config not seeded"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, configResponse(cfg))
}

func (h *DualWriteHandler) SetConfig(c *gin.Context) {
	var body req.SetConfigRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	operator := service.GetOperator(c.Request.Context())
	cfg, err := h.flags.Set(c.Request.Context(), constraints.DualWriteConfigKey, body.Value, operator)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, configResponse(cfg))
}

// Toggle patches just the migration switches, leaving any other keys in
// the config value untouched.
func (h *DualWriteHandler) Toggle(c *gin.Context) {
	var body req.ToggleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	patch := make(map[string]any)
	if body.DualWrite != nil {
		patch[constraints.FlagEnableDualWrite] = *body.DualWrite
	}
	switch body.Primary {
	case constraints.BackendLegacy:
		patch[constraints.FlagEnableSupabasePrimary] = false
	case constraints.BackendSupabase:
		patch[constraints.FlagEnableSupabasePrimary] = true
	}
	if len(patch) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to toggle"})
		return
	}

	operator := service.GetOperator(c.Request.Context())
	cfg, err := h.flags.Toggle(c.Request.Context(), constraints.DualWriteConfigKey, patch, operator)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, configResponse(cfg))
}

func (h *DualWriteHandler) HealthCheck(c *gin.Context) {
	if err := h.flags.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	if h.rdb != nil {
		if err := h.rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "redis unhealthy"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func configResponse(cfg v1.FlagConfig) resp.ConfigResponse {
	return resp.ConfigResponse{
		Key:       cfg.Key,
		Value:     cfg.Value,
		Flags:     v1.FlagsFromValue(cfg.Value),
		UpdatedAt: cfg.UpdatedAt,
	}
}
