package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xela07ax/sitesboard/internal/dashboard"
	"github.com/xela07ax/sitesboard/internal/domain"
	"github.com/xela07ax/sitesboard/internal/infra"
	"github.com/xela07ax/sitesboard/internal/metrics"
	"github.com/xela07ax/sitesboard/internal/source"
)

// ErrInvalidQuery — параметры запроса отчета не прошли проверку.
var ErrInvalidQuery = errors.New("service: invalid dashboard query")

// ReportQuery — параметры запроса отчета "Все сайты".
// Limit == 0 означает лимит по умолчанию, Limit < 0 — без ограничения.
type ReportQuery struct {
	Period  string
	Date    string
	Segment string
	Pattern string
	Offset  int
	Limit   int
}

type DashboardService struct {
	source  source.SummarySource
	builder *dashboard.Builder
	cfg     infra.DashboardConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewDashboardService(
	src source.SummarySource,
	builder *dashboard.Builder,
	cfg infra.DashboardConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *DashboardService {
	if m == nil {
		m = metrics.New(nil)
	}
	return &DashboardService{
		source:  src,
		builder: builder,
		cfg:     cfg,
		metrics: m,
		logger:  logger.Named("dashboard-service"),
		now:     time.Now,
	}
}

// GetAllWithGroups строит отчет по всем сайтам с группами.
// Текущая сводка и сводка прошлого периода запрашиваются параллельно.
// Отказ источника на текущей сводке — ошибка; на прошлой — только предупреждение.
func (s *DashboardService) GetAllWithGroups(ctx context.Context, rq ReportQuery) (*domain.Report, error) {
	q, req, err := s.normalize(rq)
	if err != nil {
		return nil, err
	}

	var (
		table      *domain.SummaryTable
		lastDate   string
		lastVisits *int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		table, err = s.source.FetchSummary(gctx, q)
		return err
	})
	g.Go(func() error {
		lastDate, lastVisits = s.previousSummary(gctx, q)
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("summary fetch failed",
			zap.String("trace_id", infra.TraceID(ctx)),
			zap.String("period", q.Period),
			zap.String("date", q.Date),
			zap.Error(err))
		return nil, fmt.Errorf("fetch summary: %w", err)
	}
	if table == nil {
		return nil, dashboard.ErrMissingTable
	}

	// Снимок может быть общим (кэш), поэтому метаданные пишем в копию
	snapshot := *table
	if snapshot.LastPeriodVisits == nil {
		snapshot.LastPeriodVisits = lastVisits
	}
	if snapshot.LastDate == "" {
		snapshot.LastDate = lastDate
	}

	start := time.Now()
	report, err := s.builder.Build(&snapshot, req)
	if err != nil {
		return nil, err
	}
	s.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	s.metrics.SitesAfterSearch.Observe(float64(report.NumSites))

	s.logger.Debug("report built",
		zap.String("trace_id", infra.TraceID(ctx)),
		zap.String("period", q.Period),
		zap.String("date", q.Date),
		zap.String("pattern", req.Pattern),
		zap.Int("num_sites", report.NumSites),
		zap.Int("rows", len(report.Sites)))

	return report, nil
}

// previousSummary находит последний прошлый период с данными и его визиты.
// Любая ошибка деградирует до пустых значений.
func (s *DashboardService) previousSummary(ctx context.Context, q domain.Query) (string, *int64) {
	date, err := s.source.LastDate(ctx, q)
	if err != nil {
		s.logger.Warn("last date unavailable", zap.String("trace_id", infra.TraceID(ctx)), zap.Error(err))
		return "", nil
	}
	if date == "" {
		return "", nil
	}

	prev, err := s.source.FetchSummary(ctx, domain.Query{Period: q.Period, Date: date, Segment: q.Segment})
	if err != nil || prev == nil {
		s.logger.Warn("previous summary unavailable",
			zap.String("trace_id", infra.TraceID(ctx)),
			zap.String("date", date),
			zap.Error(err))
		return date, nil
	}
	visits := prev.TotalVisits
	return date, &visits
}

func (s *DashboardService) normalize(rq ReportQuery) (domain.Query, dashboard.Request, error) {
	if rq.Period == "" {
		rq.Period = domain.PeriodDay
	}
	q, err := domain.Query{Period: rq.Period, Date: rq.Date, Segment: rq.Segment}.Resolve(s.now())
	if err != nil {
		return q, dashboard.Request{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if rq.Offset < 0 {
		return q, dashboard.Request{}, fmt.Errorf("%w: negative offset %d", ErrInvalidQuery, rq.Offset)
	}

	limit := rq.Limit
	switch {
	case limit == 0:
		limit = s.cfg.DefaultLimit
	case limit > 0 && s.cfg.MaxLimit > 0 && limit > s.cfg.MaxLimit:
		limit = s.cfg.MaxLimit
	}

	return q, dashboard.Request{
		Period:  q.Period,
		Pattern: rq.Pattern,
		Offset:  rq.Offset,
		Limit:   limit,
	}, nil
}
