package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/xela07ax/sitesboard/internal/dashboard"
	"github.com/xela07ax/sitesboard/internal/domain"
	"github.com/xela07ax/sitesboard/internal/format"
	"github.com/xela07ax/sitesboard/internal/infra"
	"github.com/xela07ax/sitesboard/internal/metrics"
	"github.com/xela07ax/sitesboard/internal/source"
)

// stubSource отдает таблицы по дате запроса.
type stubSource struct {
	mu       sync.Mutex
	tables   map[string]*domain.SummaryTable
	lastDate string
	fetchErr map[string]error
	lastErr  error
	queries  []domain.Query
}

func (s *stubSource) FetchSummary(ctx context.Context, q domain.Query) (*domain.SummaryTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if err := s.fetchErr[q.Date]; err != nil {
		return nil, err
	}
	return s.tables[q.Date], nil
}

func (s *stubSource) LastDate(ctx context.Context, q domain.Query) (string, error) {
	return s.lastDate, s.lastErr
}

type staticDirectory map[int64]domain.SiteInfo

func (d staticDirectory) Lookup(id int64) (domain.SiteInfo, bool) {
	info, ok := d[id]
	return info, ok
}

func (d staticDirectory) MainURL(id int64) (string, bool) {
	info, ok := d[id]
	return info.MainURL, ok && info.MainURL != ""
}

func currentTable() *domain.SummaryTable {
	return &domain.SummaryTable{
		Sites: []domain.Site{
			{ID: 1, Label: "1", Metrics: domain.Metrics{Visits: 10, Revenue: decimal.NewFromInt(100)}},
			{ID: 2, Label: "2", Metrics: domain.Metrics{Visits: 20, Revenue: decimal.NewFromInt(200)}},
			{ID: 3, Label: "3", Metrics: domain.Metrics{Visits: 5}},
		},
		TotalVisits:  35,
		TotalRevenue: decimal.NewFromInt(300),
	}
}

func newTestService(t *testing.T, src source.SummarySource, m *metrics.Metrics) *DashboardService {
	t.Helper()
	money, err := format.NewMoney("en", "USD")
	if err != nil {
		t.Fatalf("NewMoney: %v", err)
	}
	dir := staticDirectory{
		1: {ID: 1, Name: "Alpha", Group: "EU", MainURL: "https://alpha.example"},
		2: {ID: 2, Name: "Beta", Group: "EU"},
		3: {ID: 3, Name: "Gamma"},
	}
	svc := NewDashboardService(src,
		dashboard.NewBuilder(dir, money, dashboard.Options{}),
		infra.DashboardConfig{DefaultLimit: 25, MaxLimit: 2},
		m, zaptest.NewLogger(t))
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestGetAllWithGroups_FillsPreviousSummary(t *testing.T) {
	src := &stubSource{
		tables: map[string]*domain.SummaryTable{
			"2026-10-19": currentTable(),
			"2026-10-17": {TotalVisits: 42},
		},
		lastDate: "2026-10-17",
	}
	reg := prometheus.NewRegistry()
	svc := newTestService(t, src, metrics.New(reg))

	report, err := svc.GetAllWithGroups(context.Background(), ReportQuery{Date: "today", Limit: -1})
	if err != nil {
		t.Fatalf("GetAllWithGroups: %v", err)
	}

	if report.NumSites != 4 {
		t.Errorf("NumSites = %d, want 4", report.NumSites)
	}
	if len(report.Sites) != 4 {
		t.Errorf("rows = %d, want 4 (EU, Alpha, Beta, Gamma)", len(report.Sites))
	}
	if report.Totals.LastVisits != 42 {
		t.Errorf("LastVisits = %d, want 42", report.Totals.LastVisits)
	}
	if report.LastDate != "Saturday, October 17, 2026" {
		t.Errorf("LastDate = %q", report.LastDate)
	}
	if !strings.Contains(report.Totals.Revenue, "300.00") {
		t.Errorf("Revenue = %q", report.Totals.Revenue)
	}

	// Кэшированный снимок не должен получить метаданные
	if src.tables["2026-10-19"].LastPeriodVisits != nil {
		t.Error("source table was mutated")
	}
	if n := testutil.CollectAndCount(svc.metrics.PipelineDuration); n != 1 {
		t.Errorf("pipeline histogram series = %d, want 1", n)
	}
}

func TestGetAllWithGroups_PreviousSummaryFailureDegrades(t *testing.T) {
	src := &stubSource{
		tables:  map[string]*domain.SummaryTable{"2026-10-19": currentTable()},
		lastErr: errors.New("archive offline"),
	}
	svc := newTestService(t, src, nil)

	report, err := svc.GetAllWithGroups(context.Background(), ReportQuery{})
	if err != nil {
		t.Fatalf("GetAllWithGroups: %v", err)
	}
	if report.Totals.LastVisits != 0 || report.LastDate != "" {
		t.Errorf("totals = %+v lastDate = %q, want zero values", report.Totals, report.LastDate)
	}
}

func TestGetAllWithGroups_SourceFailure(t *testing.T) {
	src := &stubSource{
		fetchErr: map[string]error{"2026-10-19": source.ErrSourceUnavailable},
	}
	svc := newTestService(t, src, nil)

	_, err := svc.GetAllWithGroups(context.Background(), ReportQuery{Period: "day", Date: "2026-10-19"})
	if !errors.Is(err, source.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestGetAllWithGroups_MissingTable(t *testing.T) {
	svc := newTestService(t, &stubSource{}, nil)

	_, err := svc.GetAllWithGroups(context.Background(), ReportQuery{})
	if !errors.Is(err, dashboard.ErrMissingTable) {
		t.Fatalf("err = %v, want ErrMissingTable", err)
	}
}

func TestGetAllWithGroups_InvalidQuery(t *testing.T) {
	svc := newTestService(t, &stubSource{}, nil)

	for _, rq := range []ReportQuery{
		{Period: "hour"},
		{Period: "day", Date: "not-a-date"},
		{Period: "range", Date: "2026-10-01"},
		{Offset: -1},
	} {
		if _, err := svc.GetAllWithGroups(context.Background(), rq); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("%+v: err = %v, want ErrInvalidQuery", rq, err)
		}
	}
}

func TestGetAllWithGroups_LimitClampedAndSearch(t *testing.T) {
	src := &stubSource{tables: map[string]*domain.SummaryTable{"2026-10-19": currentTable()}}
	svc := newTestService(t, src, nil)

	report, err := svc.GetAllWithGroups(context.Background(), ReportQuery{Pattern: "ALP", Limit: 10})
	if err != nil {
		t.Fatalf("GetAllWithGroups: %v", err)
	}
	// EU + Alpha после поиска, max_limit = 2
	if report.NumSites != 2 {
		t.Errorf("NumSites = %d, want 2", report.NumSites)
	}
	if len(report.Sites) != 2 {
		t.Fatalf("rows = %d, want 2", len(report.Sites))
	}
	if report.Sites[1].MainURL != "https://alpha.example" {
		t.Errorf("main_url = %q", report.Sites[1].MainURL)
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.queries) == 0 || src.queries[0].Date != "2026-10-19" {
		t.Errorf("queries = %+v, want resolved date", src.queries)
	}
}
