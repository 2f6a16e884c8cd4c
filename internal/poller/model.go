// Package poller — клиентская модель дашборда "Все сайты": страница, поиск
// и самоперезапускающийся автообновление поверх API отчета.
package poller

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/sitesboard/internal/domain"
	"github.com/xela07ax/sitesboard/internal/infra"
)

const DefaultPageSize = 25

// Params — параметры одного запроса отчета.
type Params struct {
	Period  string
	Date    string
	Segment string
	Pattern string
	Limit   int
	Offset  int
}

// Fetcher получает отчет с сервера дашборда.
type Fetcher interface {
	FetchReport(ctx context.Context, p Params) (*domain.Report, error)
}

// Config — параметры модели. SearchTerm — начальная поисковая строка.
type Config struct {
	Period     string
	Date       string
	Segment    string
	PageSize   int
	SearchTerm string
}

// SiteView — строка отчета в том виде, в каком ее показывает клиент.
// Evolution приведен к целым, чтобы сортировка шла по числам.
type SiteView struct {
	IDSite             int64
	IsGroup            bool
	Label              string
	Group              string
	MainURL            string
	Visits             int64
	Pageviews          int64
	Revenue            string
	VisitsEvolution    int
	PageviewsEvolution int
	RevenueEvolution   int
}

// State — снимок модели.
type State struct {
	Sites             []SiteView
	IsLoading         bool
	ErrorLoadingSites bool
	PageSize          int
	CurrentPage       int
	SearchTerm        string
	NumSites          int
	TotalVisits       int64
	TotalPageviews    int64
	TotalRevenue      string
	LastVisits        int64
	LastVisitsDate    string
}

// Model хранит состояние дашборда. В каждый момент выполняется не больше одного
// запроса: новый запрос отменяет текущий. Таймер автообновления взводится только
// после завершения запроса.
type Model struct {
	fetcher Fetcher
	cfg     Config
	logger  *zap.Logger

	// OnChange вызывается после каждого завершенного (не отмененного) запроса.
	OnChange func(State)

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	seq    uint64
	gen    uint64 // поколение автообновления, Stop его сбрасывает
	timer  *time.Timer
}

func New(f Fetcher, cfg Config, logger *zap.Logger) *Model {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Model{
		fetcher: f,
		cfg:     cfg,
		logger:  logger.Named("poller"),
		state:   State{PageSize: cfg.PageSize, SearchTerm: cfg.SearchTerm},
	}
}

// State возвращает копию текущего состояния.
func (m *Model) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	s.Sites = append([]SiteView(nil), m.state.Sites...)
	return s
}

// FetchAllSites загружает текущую страницу. Незавершенный запрос отменяется.
// При refresh > 0 после завершения (успешного или нет) взводится повторная загрузка.
func (m *Model) FetchAllSites(ctx context.Context, refresh time.Duration) error {
	return m.fetch(ctx, refresh, nil)
}

// fetch выполняет загрузку. timerGen задан, если вызов пришел от таймера:
// после Stop такие вызовы игнорируются.
func (m *Model) fetch(ctx context.Context, refresh time.Duration, timerGen *uint64) error {
	m.mu.Lock()
	if timerGen != nil && *timerGen != m.gen {
		m.mu.Unlock()
		return context.Canceled
	}
	gen := m.gen
	if m.cancel != nil {
		m.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	fctx, _ = infra.WithTraceID(fctx, "")
	m.cancel = cancel
	m.seq++
	seq := m.seq
	m.state.IsLoading = true
	m.state.ErrorLoadingSites = false
	params := m.paramsLocked()
	m.mu.Unlock()

	report, err := m.fetcher.FetchReport(fctx, params)
	cancel()

	m.mu.Lock()
	latest := seq == m.seq
	if latest {
		m.cancel = nil
		m.state.IsLoading = false
		if err != nil {
			m.onErrorLocked()
		} else {
			m.updateLocked(report)
		}
	}
	if refresh > 0 && ctx.Err() == nil && gen == m.gen {
		m.scheduleLocked(ctx, refresh)
	}
	snapshot := m.state
	onChange := m.OnChange
	m.mu.Unlock()

	if !latest {
		if err == nil {
			err = context.Canceled
		}
		return err
	}
	if err != nil {
		m.logger.Warn("failed to load sites", zap.Error(err))
	}
	if onChange != nil {
		onChange(snapshot)
	}
	return err
}

// scheduleLocked взводит единственный таймер автообновления.
func (m *Model) scheduleLocked(ctx context.Context, refresh time.Duration) {
	if m.timer != nil {
		m.timer.Stop()
	}
	gen := m.gen
	m.timer = time.AfterFunc(refresh, func() {
		if ctx.Err() != nil {
			return
		}
		_ = m.fetch(ctx, refresh, &gen)
	})
}

// SearchSite задает поисковую строку и возвращает на первую страницу.
func (m *Model) SearchSite(ctx context.Context, term string) error {
	m.mu.Lock()
	m.state.SearchTerm = term
	m.state.CurrentPage = 0
	m.mu.Unlock()
	return m.FetchAllSites(ctx, 0)
}

func (m *Model) NextPage(ctx context.Context) error {
	m.mu.Lock()
	m.state.CurrentPage++
	m.mu.Unlock()
	return m.FetchAllSites(ctx, 0)
}

// PreviousPage переходит на предыдущую страницу; с первой страницы назад не уходит.
func (m *Model) PreviousPage(ctx context.Context) error {
	m.mu.Lock()
	if m.state.CurrentPage > 0 {
		m.state.CurrentPage--
	}
	m.mu.Unlock()
	return m.FetchAllSites(ctx, 0)
}

// Stop отменяет текущий запрос и автообновление.
func (m *Model) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.seq++ // результат отмененного запроса не попадет в состояние
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state.IsLoading = false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// NumberOfPages — число страниц для последнего загруженного отчета.
func (m *Model) NumberOfPages() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(math.Ceil(float64(m.state.NumSites) / float64(m.state.PageSize)))
}

func (m *Model) PagingOffsetStart() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CurrentPage * m.state.PageSize
}

// PagingOffsetEnd — конец текущей страницы, не дальше числа найденных сайтов.
func (m *Model) PagingOffsetEnd() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := m.state.CurrentPage*m.state.PageSize + m.state.PageSize
	return min(end, m.state.NumSites)
}

func (m *Model) paramsLocked() Params {
	return Params{
		Period:  m.cfg.Period,
		Date:    m.cfg.Date,
		Segment: m.cfg.Segment,
		Pattern: m.state.SearchTerm,
		Limit:   m.state.PageSize,
		Offset:  m.state.CurrentPage * m.state.PageSize,
	}
}

func (m *Model) onErrorLocked() {
	m.state.ErrorLoadingSites = true
	m.state.Sites = nil
}

func (m *Model) updateLocked(r *domain.Report) {
	if r == nil {
		m.onErrorLocked()
		return
	}

	sites := make([]SiteView, 0, len(r.Sites))
	for _, row := range r.Sites {
		v := SiteView{
			IsGroup:            row.IsGroup,
			Label:              row.Label,
			Group:              row.Group,
			MainURL:            row.MainURL,
			Visits:             row.Visits,
			Pageviews:          row.Pageviews,
			Revenue:            row.Revenue,
			VisitsEvolution:    int(row.VisitsEvolution),
			PageviewsEvolution: int(row.PageviewsEvolution),
			RevenueEvolution:   int(row.RevenueEvolution),
		}
		if row.IDSite != nil {
			v.IDSite = *row.IDSite
		}
		sites = append(sites, v)
	}

	m.state.Sites = sites
	m.state.NumSites = r.NumSites
	m.state.TotalVisits = r.Totals.Visits
	m.state.TotalPageviews = r.Totals.Pageviews
	m.state.TotalRevenue = r.Totals.Revenue
	m.state.LastVisits = r.Totals.LastVisits
	m.state.LastVisitsDate = r.LastDate
}

// IsCanceled сообщает, что запрос был вытеснен более новым.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
