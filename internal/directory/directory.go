package directory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/sitesboard/internal/domain"
	"github.com/xela07ax/sitesboard/internal/infra"
)

// SiteRepository — источник справочника сайтов (имена, группы, основные URL).
type SiteRepository interface {
	ListSites(ctx context.Context) ([]domain.SiteInfo, error)
}

// Directory — in-memory кэш справочника сайтов.
// Горячий путь (Lookup/MainURL) работает только с памятью; в Postgres ходит Refresh.
type Directory struct {
	mu     sync.RWMutex
	sites  map[int64]domain.SiteInfo
	loaded atomic.Bool

	repo   SiteRepository
	rdb    *redis.Client
	logger *zap.Logger
}

func New(repo SiteRepository, rdb *redis.Client, logger *zap.Logger) *Directory {
	return &Directory{
		sites:  make(map[int64]domain.SiteInfo),
		repo:   repo,
		rdb:    rdb,
		logger: logger.Named("directory"),
	}
}

// Refresh перечитывает весь справочник и атомарно подменяет кэш.
func (d *Directory) Refresh(ctx context.Context) error {
	list, err := d.repo.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("directory: refresh failed: %w", err)
	}

	next := make(map[int64]domain.SiteInfo, len(list))
	for _, s := range list {
		next[s.ID] = s
	}

	d.mu.Lock()
	d.sites = next
	d.mu.Unlock()
	d.loaded.Store(true)

	d.logger.Info("site directory refreshed", zap.Int("count", len(next)))
	return nil
}

// Lookup возвращает справочные данные сайта.
func (d *Directory) Lookup(id int64) (domain.SiteInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sites[id]
	return s, ok
}

// MainURL возвращает основной адрес сайта, если он задан.
func (d *Directory) MainURL(id int64) (string, bool) {
	s, ok := d.Lookup(id)
	if !ok || s.MainURL == "" {
		return "", false
	}
	return s.MainURL, true
}

// Ready сообщает, что справочник загружен хотя бы один раз.
func (d *Directory) Ready() bool {
	return d.loaded.Load()
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sites)
}

// StartListener перечитывает справочник по сигналу из Redis (изменение сайтов в админке).
// Блокирует до отмены ctx.
func (d *Directory) StartListener(ctx context.Context) {
	refresh := func() error { return d.Refresh(ctx) }
	infra.ListenResilient(ctx, d.rdb, d.logger, infra.RedisChanSitesRefresh, refresh, func(string) {
		if err := refresh(); err != nil {
			d.logger.Error("refresh on signal failed", zap.Error(err))
		}
	})
}
