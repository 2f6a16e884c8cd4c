package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/sitesboard/internal/domain"
	"github.com/xela07ax/sitesboard/internal/infra"
	"github.com/xela07ax/sitesboard/internal/metrics"
)

const breakerName = "summary-source"

// errCallerDone помечает ошибку, вызванную отменой или дедлайном контекста вызывающего.
// Предохранитель не считает такие вызовы отказами источника.
var errCallerDone = errors.New("caller context done")

// Reliable оборачивает источник лимитером, предохранителем и ретраями.
type Reliable struct {
	next    SummarySource
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	cfg     infra.SourceConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewReliable(next SummarySource, cfg infra.SourceConfig, m *metrics.Metrics, logger *zap.Logger) *Reliable {
	if m == nil {
		m = metrics.New(nil)
	}
	r := &Reliable{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		cfg:     cfg,
		metrics: m,
		logger:  logger.Named("source"),
	}

	// Настройка предохранителя
	r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // время, через которое CB попробует "закрыться"
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerDone)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.CBMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			r.logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	m.CircuitBreakerState.WithLabelValues(breakerName).Set(float64(gobreaker.StateClosed))

	return r
}

func (r *Reliable) FetchSummary(ctx context.Context, q domain.Query) (*domain.SummaryTable, error) {
	var table *domain.SummaryTable
	err := r.call(ctx, "summary", func(ctx context.Context) error {
		var err error
		table, err = r.next.FetchSummary(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

func (r *Reliable) LastDate(ctx context.Context, q domain.Query) (string, error) {
	var date string
	err := r.call(ctx, "last_date", func(ctx context.Context) error {
		var err error
		date, err = r.next.LastDate(ctx, q)
		return err
	})
	return date, err
}

func (r *Reliable) call(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		switch {
		case errors.Is(err, errCallerDone):
			status = "canceled"
		case err != nil:
			status = "error"
		}
		r.metrics.SourceFetchDuration.WithLabelValues(name, status).Observe(time.Since(start).Seconds())
	}()

	// 1. Rate Limiter
	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("source: %s: %w: %w", name, errCallerDone, ctx.Err())
		}
		return fmt.Errorf("%w: rate limit: %v", ErrSourceUnavailable, err)
	}

	// 2. Circuit Breaker
	_, err = r.cb.Execute(func() (interface{}, error) {
		rt := retry.New(
			retry.Context(ctx),
			retry.Attempts(max(r.cfg.RetryAttempts, 1)),
			// отмена вызывающим не повторяется, таймаут попытки повторяется
			retry.RetryIf(func(error) bool { return ctx.Err() == nil }),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Источник сам попросил подождать
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				return retry.BackOffDelay(n, err, config)
			}),
		)

		err := rt.Do(func() error {
			if r.cfg.Timeout <= 0 {
				return fn(ctx)
			}
			tCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
			defer cancel()
			return fn(tCtx)
		})
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerDone, ctx.Err())
		}
		return nil, err
	})
	if err != nil {
		if errors.Is(err, errCallerDone) {
			return fmt.Errorf("source: %s: %w", name, err)
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, name, err)
	}
	return nil
}
