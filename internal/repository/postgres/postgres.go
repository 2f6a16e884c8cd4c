// Package postgres читает архивы движка аналитики и справочник сайтов из PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xela07ax/sitesboard/internal/infra"
)

// Schema — таблицы, в которые движок аналитики пишет справочник сайтов и дневные архивы.
const Schema = `
CREATE TABLE IF NOT EXISTS sites (
	idsite BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	group_name TEXT NOT NULL DEFAULT '',
	main_url TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS site_daily_metrics (
	idsite BIGINT NOT NULL REFERENCES sites(idsite) ON DELETE CASCADE,
	day DATE NOT NULL,
	segment TEXT NOT NULL DEFAULT '',
	nb_visits BIGINT NOT NULL DEFAULT 0,
	nb_pageviews BIGINT NOT NULL DEFAULT 0,
	revenue NUMERIC(20, 4) NOT NULL DEFAULT 0,
	PRIMARY KEY (idsite, day, segment)
);

CREATE INDEX IF NOT EXISTS site_daily_metrics_day_idx ON site_daily_metrics (segment, day);
`

// NewPool открывает пул соединений и проверяет доступность базы.
func NewPool(ctx context.Context, cfg infra.DatabaseConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// Migrate создает таблицы, если их еще нет.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: apply schema: %w", err)
	}
	return nil
}
