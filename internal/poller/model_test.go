package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/xela07ax/sitesboard/internal/domain"
)

// scriptedFetcher отвечает отчетом с NumSites = numSites и запоминает параметры.
type scriptedFetcher struct {
	mu       sync.Mutex
	params   []Params
	numSites int
	err      error
	block    chan struct{} // если задан, первый вызов ждет отмены контекста
	calls    atomic.Int32
}

func (f *scriptedFetcher) FetchReport(ctx context.Context, p Params) (*domain.Report, error) {
	n := f.calls.Add(1)
	f.mu.Lock()
	f.params = append(f.params, p)
	err := f.err
	f.mu.Unlock()

	if f.block != nil && n == 1 {
		close(f.block)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	id := int64(1)
	return &domain.Report{
		NumSites: f.numSites,
		Totals:   domain.Totals{Visits: 100, Pageviews: 200, Revenue: "$ 5.00", LastVisits: 80},
		Sites: []domain.Row{
			{Kind: domain.RowGroup, IsGroup: true, Label: "EU", VisitsEvolution: -12.9},
			{Kind: domain.RowSite, IDSite: &id, Label: "Alpha", Group: "EU", VisitsEvolution: 33.7, RevenueEvolution: 100},
		},
		LastDate: "Saturday, October 17, 2026",
	}, nil
}

func (f *scriptedFetcher) lastParams() Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params[len(f.params)-1]
}

func newTestModel(t *testing.T, f Fetcher) *Model {
	t.Helper()
	m := New(f, Config{Period: "day", Date: "today"}, zaptest.NewLogger(t))
	t.Cleanup(m.Stop)
	return m
}

func TestFetchAllSites_UpdatesState(t *testing.T) {
	f := &scriptedFetcher{numSites: 60}
	m := newTestModel(t, f)

	if err := m.FetchAllSites(context.Background(), 0); err != nil {
		t.Fatalf("FetchAllSites: %v", err)
	}

	s := m.State()
	if s.IsLoading || s.ErrorLoadingSites {
		t.Errorf("flags = loading %v error %v", s.IsLoading, s.ErrorLoadingSites)
	}
	if len(s.Sites) != 2 || s.Sites[1].IDSite != 1 || !s.Sites[0].IsGroup {
		t.Fatalf("sites = %+v", s.Sites)
	}
	// Evolution отбрасывает дробную часть, как parseInt
	if s.Sites[0].VisitsEvolution != -12 || s.Sites[1].VisitsEvolution != 33 || s.Sites[1].RevenueEvolution != 100 {
		t.Errorf("evolution = %d/%d/%d", s.Sites[0].VisitsEvolution, s.Sites[1].VisitsEvolution, s.Sites[1].RevenueEvolution)
	}
	if s.TotalVisits != 100 || s.LastVisits != 80 || s.LastVisitsDate != "Saturday, October 17, 2026" {
		t.Errorf("totals = %+v", s)
	}

	p := f.lastParams()
	if p.Limit != DefaultPageSize || p.Offset != 0 || p.Period != "day" || p.Date != "today" {
		t.Errorf("params = %+v", p)
	}
}

func TestPaging(t *testing.T) {
	f := &scriptedFetcher{numSites: 60}
	m := newTestModel(t, f)
	ctx := context.Background()

	if err := m.FetchAllSites(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if got := m.NumberOfPages(); got != 3 {
		t.Errorf("NumberOfPages = %d, want 3", got)
	}

	if err := m.NextPage(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.NextPage(ctx); err != nil {
		t.Fatal(err)
	}
	if p := f.lastParams(); p.Offset != 50 {
		t.Errorf("offset = %d, want 50", p.Offset)
	}
	if start, end := m.PagingOffsetStart(), m.PagingOffsetEnd(); start != 50 || end != 60 {
		t.Errorf("paging = %d..%d, want 50..60", start, end)
	}

	if err := m.PreviousPage(ctx); err != nil {
		t.Fatal(err)
	}
	if p := f.lastParams(); p.Offset != 25 {
		t.Errorf("offset after previous = %d, want 25", p.Offset)
	}
}

func TestPreviousPageStopsAtFirst(t *testing.T) {
	f := &scriptedFetcher{numSites: 10}
	m := newTestModel(t, f)

	if err := m.PreviousPage(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := m.State().CurrentPage; got != 0 {
		t.Errorf("CurrentPage = %d, want 0", got)
	}
}

func TestSearchSiteResetsPage(t *testing.T) {
	f := &scriptedFetcher{numSites: 100}
	m := newTestModel(t, f)
	ctx := context.Background()

	_ = m.NextPage(ctx)
	_ = m.NextPage(ctx)
	if err := m.SearchSite(ctx, "alp"); err != nil {
		t.Fatal(err)
	}

	s := m.State()
	if s.CurrentPage != 0 || s.SearchTerm != "alp" {
		t.Errorf("state = page %d term %q", s.CurrentPage, s.SearchTerm)
	}
	if p := f.lastParams(); p.Pattern != "alp" || p.Offset != 0 {
		t.Errorf("params = %+v", p)
	}
}

func TestFetchError(t *testing.T) {
	f := &scriptedFetcher{numSites: 10}
	m := newTestModel(t, f)
	ctx := context.Background()

	if err := m.FetchAllSites(ctx, 0); err != nil {
		t.Fatal(err)
	}

	f.mu.Lock()
	f.err = errors.New("502")
	f.mu.Unlock()

	if err := m.FetchAllSites(ctx, 0); err == nil {
		t.Fatal("expected error")
	}
	s := m.State()
	if !s.ErrorLoadingSites || s.IsLoading || len(s.Sites) != 0 {
		t.Errorf("state = %+v", s)
	}
}

func TestFetchAllSites_CancelsInFlight(t *testing.T) {
	f := &scriptedFetcher{numSites: 10, block: make(chan struct{})}
	m := newTestModel(t, f)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- m.FetchAllSites(ctx, 0) }()

	<-f.block // первый запрос в полете
	if err := m.SearchSite(ctx, "beta"); err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if err := <-first; !IsCanceled(err) {
		t.Errorf("first fetch err = %v, want canceled", err)
	}
	s := m.State()
	if s.ErrorLoadingSites || len(s.Sites) != 2 {
		t.Errorf("superseded fetch must not touch state: %+v", s)
	}
}

func TestFetchAllSites_RefreshReschedules(t *testing.T) {
	f := &scriptedFetcher{numSites: 10}
	m := newTestModel(t, f)

	var changes atomic.Int32
	m.OnChange = func(State) { changes.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.FetchAllSites(ctx, 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := f.calls.Load(); got < 3 {
		t.Fatalf("calls = %d, want at least 3 with auto-refresh", got)
	}

	m.Stop()
	time.Sleep(30 * time.Millisecond)
	stopped := f.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := f.calls.Load(); got != stopped {
		t.Errorf("calls grew after Stop: %d -> %d", stopped, got)
	}
	if changes.Load() < 3 {
		t.Errorf("OnChange calls = %d, want at least 3", changes.Load())
	}
}

func TestFetchAllSites_RefreshAfterFailure(t *testing.T) {
	f := &scriptedFetcher{err: errors.New("down")}
	m := newTestModel(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = m.FetchAllSites(ctx, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for f.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := f.calls.Load(); got < 2 {
		t.Errorf("calls = %d, want timer re-armed after failure", got)
	}
}
