package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xela07ax/sitesboard/internal/domain"
)

// SummaryRepo собирает сводную таблицу по сайтам из дневных архивов.
type SummaryRepo struct {
	pool *pgxpool.Pool
}

func NewSummaryRepo(pool *pgxpool.Pool) *SummaryRepo {
	return &SummaryRepo{pool: pool}
}

// FetchSummary возвращает строку на каждый сайт справочника, включая сайты без визитов.
// Метрики прошлого сопоставимого периода считаются тем же запросом.
// Имена не подставляются: метка сайта — его id.
func (r *SummaryRepo) FetchSummary(ctx context.Context, q domain.Query) (*domain.SummaryTable, error) {
	start, end, err := q.Bounds()
	if err != nil {
		return nil, fmt.Errorf("postgres: summary bounds: %w", err)
	}
	pstart, pend := domain.PreviousBounds(q.Period, start, end)

	// $1..$2 — текущий период, $3..$4 — прошлый
	query := `
	SELECT s.idsite,
		COALESCE(SUM(m.nb_visits) FILTER (WHERE m.day BETWEEN $1 AND $2), 0)::bigint,
		COALESCE(SUM(m.nb_pageviews) FILTER (WHERE m.day BETWEEN $1 AND $2), 0)::bigint,
		COALESCE(SUM(m.revenue) FILTER (WHERE m.day BETWEEN $1 AND $2), 0)::text,
		COALESCE(SUM(m.nb_visits) FILTER (WHERE m.day BETWEEN $3 AND $4), 0)::bigint,
		COALESCE(SUM(m.nb_pageviews) FILTER (WHERE m.day BETWEEN $3 AND $4), 0)::bigint,
		COALESCE(SUM(m.revenue) FILTER (WHERE m.day BETWEEN $3 AND $4), 0)::text
	FROM sites s
	LEFT JOIN site_daily_metrics m
		ON m.idsite = s.idsite AND m.segment = $5 AND m.day BETWEEN $3 AND $2
	GROUP BY s.idsite
	ORDER BY 2 DESC, s.idsite`

	rows, err := r.pool.Query(ctx, query, start, end, pstart, pend, q.Segment)
	if err != nil {
		return nil, fmt.Errorf("postgres: query summary: %w", err)
	}
	defer rows.Close()

	table := &domain.SummaryTable{}
	for rows.Next() {
		var (
			s                domain.Site
			revenue, pastRev string
		)
		if err := rows.Scan(&s.ID, &s.Visits, &s.Pageviews, &revenue,
			&s.PastVisits, &s.PastPageviews, &pastRev); err != nil {
			return nil, fmt.Errorf("postgres: scan summary: %w", err)
		}
		if s.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, fmt.Errorf("postgres: site %d revenue: %w", s.ID, err)
		}
		if s.PastRevenue, err = decimal.NewFromString(pastRev); err != nil {
			return nil, fmt.Errorf("postgres: site %d past revenue: %w", s.ID, err)
		}
		s.Label = strconv.FormatInt(s.ID, 10)
		s.RecomputeEvolution()

		table.TotalVisits += s.Visits
		table.TotalPageviews += s.Pageviews
		table.TotalRevenue = table.TotalRevenue.Add(s.Revenue)
		table.Sites = append(table.Sites, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read summary: %w", err)
	}

	return table, nil
}

// LastDate ищет последний день с визитами до начала периода запроса.
// Для диапазона дат прошлый период не определен.
func (r *SummaryRepo) LastDate(ctx context.Context, q domain.Query) (string, error) {
	if q.Period == domain.PeriodRange {
		return "", nil
	}
	start, _, err := q.Bounds()
	if err != nil {
		return "", fmt.Errorf("postgres: last date bounds: %w", err)
	}

	var last time.Time
	err = r.pool.QueryRow(ctx, `
		SELECT day FROM site_daily_metrics
		WHERE segment = $1 AND day < $2 AND nb_visits > 0
		ORDER BY day DESC
		LIMIT 1`, q.Segment, start).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("postgres: last date: %w", err)
	}
	return last.Format(domain.DateLayout), nil
}

// RecordDay записывает дневной архив сайта. Используется загрузчиком архивов и тестами.
func (r *SummaryRepo) RecordDay(ctx context.Context, idsite int64, day time.Time, segment string, m domain.Metrics) error {
	query := `
	INSERT INTO site_daily_metrics (idsite, day, segment, nb_visits, nb_pageviews, revenue)
	VALUES ($1, $2, $3, $4, $5, $6::numeric)
	ON CONFLICT (idsite, day, segment) DO UPDATE
	SET nb_visits = EXCLUDED.nb_visits, nb_pageviews = EXCLUDED.nb_pageviews, revenue = EXCLUDED.revenue`

	_, err := r.pool.Exec(ctx, query, idsite, day, segment, m.Visits, m.Pageviews, m.Revenue.String())
	if err != nil {
		return fmt.Errorf("postgres: record day for site %d: %w", idsite, err)
	}
	return nil
}
