package poller

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/xela07ax/sitesboard/internal/dashboard"
	"github.com/xela07ax/sitesboard/internal/domain"
	"github.com/xela07ax/sitesboard/internal/format"
)

type groupedDirectory map[int64]domain.SiteInfo

func (d groupedDirectory) Lookup(id int64) (domain.SiteInfo, bool) {
	info, ok := d[id]
	return info, ok
}

func (d groupedDirectory) MainURL(id int64) (string, bool) {
	info, ok := d[id]
	return info.MainURL, ok && info.MainURL != ""
}

// builderFetcher строит отчет тем же конвейером, что и сервер.
type builderFetcher struct {
	b     *dashboard.Builder
	table *domain.SummaryTable
}

func (f *builderFetcher) FetchReport(ctx context.Context, p Params) (*domain.Report, error) {
	return f.b.Build(f.table, dashboard.Request{Period: p.Period, Pattern: p.Pattern, Offset: p.Offset, Limit: p.Limit})
}

func newBuilderFetcher(t *testing.T) *builderFetcher {
	t.Helper()
	money, err := format.NewMoney("en", "USD")
	if err != nil {
		t.Fatalf("NewMoney: %v", err)
	}
	dir := groupedDirectory{
		1: {ID: 1, Name: "Alpha", Group: "EU"},
		2: {ID: 2, Name: "Beta", Group: "EU"},
		3: {ID: 3, Name: "Gamma"},
	}
	return &builderFetcher{
		b: dashboard.NewBuilder(dir, money, dashboard.Options{}),
		table: &domain.SummaryTable{
			Sites: []domain.Site{
				{ID: 1, Metrics: domain.Metrics{Visits: 10, Revenue: decimal.NewFromInt(100)}},
				{ID: 2, Metrics: domain.Metrics{Visits: 20}},
				{ID: 3, Metrics: domain.Metrics{Visits: 5}},
			},
		},
	}
}

func TestPaging_GroupedRowsReachLastPage(t *testing.T) {
	m := New(newBuilderFetcher(t), Config{Period: "day", Date: "2026-10-18", PageSize: 3}, zaptest.NewLogger(t))
	t.Cleanup(m.Stop)
	ctx := context.Background()

	if err := m.FetchAllSites(ctx, 0); err != nil {
		t.Fatalf("FetchAllSites: %v", err)
	}
	// EU, Alpha, Beta, Gamma: четыре строки на две страницы
	if got := m.NumberOfPages(); got != 2 {
		t.Fatalf("NumberOfPages = %d, want 2", got)
	}
	if end := m.PagingOffsetEnd(); end != 3 {
		t.Errorf("PagingOffsetEnd = %d, want 3", end)
	}

	if err := m.NextPage(ctx); err != nil {
		t.Fatalf("NextPage: %v", err)
	}
	s := m.State()
	if len(s.Sites) != 1 || s.Sites[0].Label != "Gamma" {
		t.Errorf("second page = %+v, want Gamma", s.Sites)
	}
	if start, end := m.PagingOffsetStart(), m.PagingOffsetEnd(); start != 3 || end != 4 {
		t.Errorf("paging = %d..%d, want 3..4", start, end)
	}
}
