package service

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/marovole/HearthBulter/internal/model"
	"github.com/marovole/HearthBulter/internal/repository"
	v1 "github.com/marovole/HearthBulter/pkg/api/v1"
	"github.com/marovole/HearthBulter/pkg/constraints"
	"github.com/marovole/HearthBulter/pkg/logger"

	"go.uber.org/zap"
)

var (
	ErrConfigNotFound    = errors.New("config not found")
	ErrConfigUnavailable = errors.New("config store unavailable")
	ErrMysqlUnhealthy    = errors.New("mysql unhealthy")
	ErrEtcdUnhealthy     = errors.New("etcd unhealthy")
)

// FlagService is the dual-write flag store: cached reads against the
// config table, write-through sets with immediate in-process invalidation,
// and an etcd watch that spreads writes to the other instances ahead of
// their cache TTL. The notifier is optional; without it the TTL is the
// only propagation path.
type FlagService struct {
	repo   repository.ConfigInterface
	notify *repository.ConfigNotifyRepository
	cache  *FlagCache
}

func NewFlagService(repo repository.ConfigInterface, notify *repository.ConfigNotifyRepository, cache *FlagCache) *FlagService {
	return &FlagService{
		repo:   repo,
		notify: notify,
		cache:  cache,
	}
}

// Get serves from cache within the TTL, otherwise reads the row. When the
// store is unreachable and no cached value within the staleness bound
// exists, the caller gets ErrConfigUnavailable rather than a block.
func (s *FlagService) Get(ctx context.Context, key string) (v1.FlagConfig, error) {
	if cfg, ok := s.cache.Get(key); ok {
		return cfg, nil
	}

	row, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		logger.Warn("config read failed", zap.String("key", key), zap.Error(err))
		return v1.FlagConfig{}, ErrConfigUnavailable
	}
	if row == nil {
		return v1.FlagConfig{}, ErrConfigNotFound
	}

	cfg, err := decodeRow(row)
	if err != nil {
		logger.Error("config row corrupt", zap.String("key", key), zap.Error(err))
		return v1.FlagConfig{}, ErrConfigUnavailable
	}
	s.cache.Put(cfg)
	return cfg, nil
}

// Set fully replaces the value for the key and stamps UpdatedAt. The
// upsert serializes concurrent writers at the database, last commit wins.
func (s *FlagService) Set(ctx context.Context, key string, value map[string]any, operator string) (v1.FlagConfig, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return v1.FlagConfig{}, err
	}

	now := time.Now().UTC()
	row := &model.DualWriteConfig{
		Key:       key,
		Value:     string(raw),
		UpdatedBy: operator,
		UpdatedAt: now,
	}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return v1.FlagConfig{}, err
	}

	cfg := v1.FlagConfig{Key: key, Value: value, UpdatedAt: now}
	s.cache.Put(cfg)

	if s.notify != nil {
		go s.publish(cfg)
	}

	logger.Info("dual-write config updated",
		zap.String("key", key),
		zap.String("operator", operator),
		zap.Any("value", value))
	return cfg, nil
}

// Toggle merges the patch into the current value and calls Set. This is
// read-modify-write, so concurrent togglers can lose updates; automated
// toggling must serialize its own sequence.
func (s *FlagService) Toggle(ctx context.Context, key string, patch map[string]any, operator string) (v1.FlagConfig, error) {
	current := make(map[string]any)
	cfg, err := s.Get(ctx, key)
	switch {
	case err == nil:
		maps.Copy(current, cfg.Value)
	case errors.Is(err, ErrConfigNotFound):
		// first toggle seeds the row
	default:
		return v1.FlagConfig{}, err
	}

	maps.Copy(current, patch)
	return s.Set(ctx, key, current, operator)
}

// Snapshot is the orchestrator's view of the dual-write toggles. Any
// failure degrades to the zero flags, i.e. single-write against legacy.
func (s *FlagService) Snapshot(ctx context.Context) v1.Flags {
	cfg, err := s.Get(ctx, constraints.DualWriteConfigKey)
	if err != nil {
		if !errors.Is(err, ErrConfigNotFound) {
			logger.Warn("flags unavailable, falling back to single-write", zap.Error(err))
		}
		return v1.Flags{}
	}
	return v1.FlagsFromValue(cfg.Value)
}

// Seed writes the default row on first deploy.
func (s *FlagService) Seed(ctx context.Context) error {
	row, err := s.repo.GetByKey(ctx, constraints.DualWriteConfigKey)
	if err != nil {
		return err
	}
	if row != nil {
		return nil
	}
	_, err = s.Set(ctx, constraints.DualWriteConfigKey, v1.Flags{}.Value(), "system")
	return err
}

func (s *FlagService) publish(cfg v1.FlagConfig) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		logger.Error("config publish marshal failed", zap.String("key", cfg.Key), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.notify.Publish(ctx, cfg.Key, string(payload)); err != nil {
		logger.Warn("config publish failed", zap.String("key", cfg.Key), zap.Error(err))
	}
}

// Run watches the notifier prefix and applies remote writes to the local
// cache so other instances converge before their TTL expires.
func (s *FlagService) Run(ctx context.Context) {
	if s.notify == nil {
		return
	}
	watchChan := s.notify.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case wresp, ok := <-watchChan:
			if !ok {
				return
			}
			if wresp.Canceled {
				logger.Warn("config watch canceled", zap.Error(wresp.Err()))
				return
			}
			for _, ev := range wresp.Events {
				var cfg v1.FlagConfig
				if err := json.Unmarshal(ev.Kv.Value, &cfg); err != nil {
					// Fall back to a plain invalidation so the next read refetches.
					key := strings.TrimPrefix(string(ev.Kv.Key), repository.NotifyKey(""))
					logger.Warn("config event unmarshal failed, invalidating", zap.String("key", key))
					s.cache.Invalidate(key)
					continue
				}
				s.cache.Put(cfg)
				logger.Debug("config refreshed from peer", zap.String("key", cfg.Key))
			}
		}
	}
}

func (s *FlagService) Health(ctx context.Context) error {
	if s.repo.PingContext(ctx) != nil {
		return ErrMysqlUnhealthy
	}
	if s.notify != nil && s.notify.Health(ctx) != nil {
		return ErrEtcdUnhealthy
	}
	return nil
}

func decodeRow(row *model.DualWriteConfig) (v1.FlagConfig, error) {
	value := make(map[string]any)
	if row.Value != "" {
		if err := json.Unmarshal([]byte(row.Value), &value); err != nil {
			return v1.FlagConfig{}, err
		}
	}
	return v1.FlagConfig{Key: row.Key, Value: value, UpdatedAt: row.UpdatedAt}, nil
}
