package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/marovole/HearthBulter/internal/dto/req"
	"github.com/marovole/HearthBulter/internal/dto/resp"
	"github.com/marovole/HearthBulter/internal/model"
	"github.com/marovole/HearthBulter/internal/repository"
	"github.com/marovole/HearthBulter/internal/service"
	v1 "github.com/marovole/HearthBulter/pkg/api/v1"
	"github.com/marovole/HearthBulter/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DiffHandler exposes the recorded comparison outcomes to operators.
type DiffHandler struct {
	recorder *service.DiffRecorder
}

func NewDiffHandler(recorder *service.DiffRecorder) *DiffHandler {
	return &DiffHandler{recorder: recorder}
}

func (h *DiffHandler) ListDiffs(c *gin.Context) {
	var body req.ListDiffsRequest
	if err := c.ShouldBindQuery(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q := repository.DiffQuery{
		Endpoint: body.Endpoint,
		Severity: body.Severity,
		Limit:    body.Limit,
	}
	var err error
	if q.Since, err = parseTime(body.Since); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since timestamp"})
		return
	}
	if q.Until, err = parseTime(body.Until); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid until timestamp"})
		return
	}

	records, err := h.recorder.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]resp.DiffItem, 0, len(records))
	for _, rec := range records {
		items = append(items, diffItem(rec))
	}
	c.JSON(http.StatusOK, resp.ListDiffsResponse{Data: items})
}

func (h *DiffHandler) Stats(c *gin.Context) {
	var body req.StatsRequest
	if err := c.ShouldBindQuery(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Hours == 0 {
		body.Hours = 24
	}

	counts, err := h.recorder.Stats(c.Request.Context(), time.Duration(body.Hours)*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	buckets := make([]resp.StatsBucket, 0, len(counts))
	for _, sc := range counts {
		buckets = append(buckets, resp.StatsBucket{
			APIEndpoint: sc.APIEndpoint,
			Severity:    sc.Severity,
			Count:       sc.Count,
		})
	}
	c.JSON(http.StatusOK, resp.StatsResponse{WindowHours: body.Hours, Buckets: buckets})
}

func (h *DiffHandler) Cleanup(c *gin.Context) {
	var body req.CleanupRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	operator := service.GetOperator(c.Request.Context())
	deleted, err := h.recorder.Cleanup(c.Request.Context(), body.RetentionDays, body.Severities...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logger.Info("manual diff cleanup",
		zap.String("operator", operator),
		zap.Int64("deleted", deleted),
		zap.Strings("severities", body.Severities))
	c.JSON(http.StatusOK, resp.CleanupResponse{Deleted: deleted})
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func diffItem(rec model.DiffRecord) resp.DiffItem {
	var ops []v1.DiffOp
	if rec.Diff != "" {
		if err := json.Unmarshal([]byte(rec.Diff), &ops); err != nil {
			logger.Warn("stored diff payload unreadable", zap.Int64("id", rec.ID), zap.Error(err))
		}
	}
	return resp.DiffItem{
		ID:                    rec.ID,
		APIEndpoint:           rec.APIEndpoint,
		Operation:             rec.Operation,
		Severity:              rec.Severity,
		Diff:                  ops,
		PrimaryResultStatus:   rec.PrimaryResultStatus,
		SecondaryResultStatus: rec.SecondaryResultStatus,
		NeedsReview:           rec.NeedsReview,
		TraceID:               rec.TraceID,
		CreatedAt:             rec.CreatedAt,
	}
}
