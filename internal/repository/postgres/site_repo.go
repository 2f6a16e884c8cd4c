package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xela07ax/sitesboard/internal/domain"
)

// SiteRepo читает справочник сайтов: имена, группы и основные URL.
type SiteRepo struct {
	pool *pgxpool.Pool
}

func NewSiteRepo(pool *pgxpool.Pool) *SiteRepo {
	return &SiteRepo{pool: pool}
}

func (r *SiteRepo) ListSites(ctx context.Context) ([]domain.SiteInfo, error) {
	rows, err := r.pool.Query(ctx, `SELECT idsite, name, group_name, main_url FROM sites ORDER BY idsite`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sites: %w", err)
	}

	sites, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SiteInfo, error) {
		var s domain.SiteInfo
		err := row.Scan(&s.ID, &s.Name, &s.Group, &s.MainURL)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan sites: %w", err)
	}
	return sites, nil
}

// UpsertSite добавляет сайт или обновляет его справочные данные.
func (r *SiteRepo) UpsertSite(ctx context.Context, s domain.SiteInfo) error {
	query := `
	INSERT INTO sites (idsite, name, group_name, main_url) VALUES ($1, $2, $3, $4)
	ON CONFLICT (idsite) DO UPDATE
	SET name = EXCLUDED.name, group_name = EXCLUDED.group_name, main_url = EXCLUDED.main_url`

	if _, err := r.pool.Exec(ctx, query, s.ID, s.Name, s.Group, s.MainURL); err != nil {
		return fmt.Errorf("postgres: upsert site %d: %w", s.ID, err)
	}
	return nil
}
