package source

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/xela07ax/sitesboard/internal/domain"
)

// fakeSource отдает заранее заданные ответы и считает вызовы.
type fakeSource struct {
	mu       sync.Mutex
	errs     []error // ошибки по очереди, затем успех
	table    *domain.SummaryTable
	lastDate string
	calls    atomic.Int32
	release  chan struct{} // если задан, вызов ждет закрытия
}

func (f *fakeSource) next() error {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeSource) FetchSummary(ctx context.Context, q domain.Query) (*domain.SummaryTable, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	return f.table, nil
}

func (f *fakeSource) LastDate(ctx context.Context, q domain.Query) (string, error) {
	if err := f.next(); err != nil {
		return "", err
	}
	return f.lastDate, nil
}

func sampleTable() *domain.SummaryTable {
	return &domain.SummaryTable{
		Sites: []domain.Site{
			{ID: 1, Label: "1", Metrics: domain.Metrics{Visits: 10, Pageviews: 20, Revenue: decimal.RequireFromString("1.50")}},
			{ID: 2, Label: "2", Metrics: domain.Metrics{Visits: 5, Pageviews: 7}},
		},
		TotalVisits:    15,
		TotalPageviews: 27,
		TotalRevenue:   decimal.RequireFromString("1.50"),
	}
}
