package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xela07ax/sitesboard/internal/domain"
	"github.com/xela07ax/sitesboard/internal/infra"
	"github.com/xela07ax/sitesboard/internal/metrics"
)

// InvalidateAll — payload сигнала сброса всего кэша сводок.
const InvalidateAll = "*"

// Cache кэширует снимки сводных таблиц в Redis.
// Одновременные промахи по одному ключу схлопываются в один запрос к источнику.
type Cache struct {
	next    SummarySource
	rdb     redis.Cmdable
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewCache(next SummarySource, rdb redis.Cmdable, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *Cache {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Cache{
		next:    next,
		rdb:     rdb,
		ttl:     ttl,
		metrics: m,
		logger:  logger.Named("cache"),
	}
}

func (c *Cache) FetchSummary(ctx context.Context, q domain.Query) (*domain.SummaryTable, error) {
	key := infra.SummaryKey(q.Period, q.Date, q.Segment)

	var cached domain.SummaryTable
	if c.get(ctx, key, &cached) {
		return &cached, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Общий запрос не должен падать из-за отмены у первого из ожидающих
		fctx := context.WithoutCancel(ctx)
		table, err := c.next.FetchSummary(fctx, q)
		if err != nil {
			return nil, err
		}
		c.set(fctx, key, table)
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.SummaryTable), nil
}

func (c *Cache) LastDate(ctx context.Context, q domain.Query) (string, error) {
	key := infra.LastDateKey(q.Period, q.Date)

	var cached string
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		fctx := context.WithoutCancel(ctx)
		date, err := c.next.LastDate(fctx, q)
		if err != nil {
			return "", err
		}
		c.set(fctx, key, date)
		return date, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// get читает значение из кэша. Ошибка Redis не фатальна: считаем промахом.
func (c *Cache) get(ctx context.Context, key string, dst any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		c.metrics.CacheResults.WithLabelValues("miss").Inc()
		return false
	case err != nil:
		c.metrics.CacheResults.WithLabelValues("error").Inc()
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		c.metrics.CacheResults.WithLabelValues("error").Inc()
		c.logger.Warn("cache entry corrupted", zap.String("key", key), zap.Error(err))
		return false
	}
	c.metrics.CacheResults.WithLabelValues("hit").Inc()
	return true
}

func (c *Cache) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate сбрасывает кэш по сигналу движка аналитики.
// payload: "*" сбрасывает все сводки, "period:date" только затронутый период.
func (c *Cache) Invalidate(ctx context.Context, payload string) error {
	patterns, err := invalidationPatterns(payload)
	if err != nil {
		return err
	}

	var keys []string
	for _, p := range patterns {
		iter := c.rdb.Scan(ctx, 0, p, 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("cache: scan %q: %w", p, err)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: delete keys: %w", err)
	}
	c.logger.Info("summary cache invalidated", zap.String("payload", payload), zap.Int("keys", len(keys)))
	return nil
}

// invalidationPatterns переводит payload сигнала в шаблоны ключей для SCAN.
// Дата последнего периода зависит от всех пересчитанных дат, поэтому для периода
// сбрасываются все его lastdate ключи.
func invalidationPatterns(payload string) ([]string, error) {
	payload = strings.TrimSpace(payload)
	if payload == InvalidateAll {
		return []string{
			infra.RedisKeySummaryPrefix + "*",
			infra.RedisKeyLastDatePrefix + "*",
		}, nil
	}

	period, date, ok := strings.Cut(payload, ":")
	if !ok || period == "" || date == "" {
		return nil, fmt.Errorf("cache: invalid invalidation payload %q", payload)
	}
	return []string{
		infra.RedisKeySummaryPrefix + period + ":" + date + ":*",
		infra.RedisKeyLastDatePrefix + period + ":*",
	}, nil
}

// ListenInvalidations подписывается на сигналы пересчета архивов.
// После переподключения кэш сбрасывается целиком: сигналы за время простоя потеряны.
func (c *Cache) ListenInvalidations(ctx context.Context, rdb *redis.Client) {
	infra.ListenResilient(ctx, rdb, c.logger, infra.RedisChanArchiveInvalidate,
		func() error {
			return c.Invalidate(ctx, InvalidateAll)
		},
		func(payload string) {
			if err := c.Invalidate(ctx, payload); err != nil {
				c.logger.Error("invalidation failed", zap.String("payload", payload), zap.Error(err))
			}
		},
	)
}
