// Package source отвечает за получение сводных таблиц из внешнего движка аналитики:
// надежный доступ (лимит, предохранитель, ретраи) и кэш снимков в Redis.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xela07ax/sitesboard/internal/domain"
)

// ErrSourceUnavailable — источник не ответил или отключен предохранителем.
var ErrSourceUnavailable = errors.New("source: summary source unavailable")

// SummarySource — внешний движок, отдающий сводную таблицу по сайтам.
type SummarySource interface {
	// FetchSummary возвращает снимок таблицы за период.
	FetchSummary(ctx context.Context, q domain.Query) (*domain.SummaryTable, error)

	// LastDate возвращает дату последнего предыдущего периода, в котором есть данные.
	// Пустая строка без ошибки означает, что таких периодов нет.
	LastDate(ctx context.Context, q domain.Query) (string, error)
}

// ThrottleError сообщает, что источник просит повторить запрос не раньше RetryAfter.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }
