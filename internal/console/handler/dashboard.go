package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/xela07ax/sitesboard/internal/console/service"
	"github.com/xela07ax/sitesboard/internal/dashboard"
	"github.com/xela07ax/sitesboard/internal/domain"
	"github.com/xela07ax/sitesboard/internal/infra"
	"github.com/xela07ax/sitesboard/internal/metrics"
	"github.com/xela07ax/sitesboard/internal/source"
)

// DashboardService Описываем, что нам нужно от сервиса
type DashboardService interface {
	GetAllWithGroups(ctx context.Context, q service.ReportQuery) (*domain.Report, error)
}

type DashboardHandler struct {
	service DashboardService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewDashboardHandler(s DashboardService, m *metrics.Metrics, logger *zap.Logger) *DashboardHandler {
	if m == nil {
		m = metrics.New(nil)
	}
	return &DashboardHandler{service: s, metrics: m, logger: logger.Named("dashboard-handler")}
}

// GetAllWithGroups GET /api/v1/sites?period=&date=&segment=&pattern=&filter_limit=&filter_offset=
func (h *DashboardHandler) GetAllWithGroups(w http.ResponseWriter, r *http.Request) {
	q, err := parseReportQuery(r)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "bad_request", err)
		return
	}

	report, err := h.service.GetAllWithGroups(r.Context(), q)
	if err != nil {
		code, status := ErrorStatus(err)
		h.fail(w, r, code, status, err)
		return
	}

	h.metrics.ReportRequests.WithLabelValues("http", "ok").Inc()
	writeJSON(w, http.StatusOK, report)
}

func (h *DashboardHandler) fail(w http.ResponseWriter, r *http.Request, code int, status string, err error) {
	h.metrics.ReportRequests.WithLabelValues("http", status).Inc()

	log := h.logger.Warn
	if code >= http.StatusInternalServerError {
		log = h.logger.Error
	}
	log("report request failed",
		zap.String("trace_id", infra.TraceID(r.Context())),
		zap.Int("code", code),
		zap.Error(err))

	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

// ErrorStatus сопоставляет ошибку сервиса HTTP-коду и метке метрики.
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidQuery):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, source.ErrSourceUnavailable), errors.Is(err, dashboard.ErrMissingTable):
		return http.StatusBadGateway, "unavailable"
	default:
		return http.StatusInternalServerError, "error"
	}
}

func parseReportQuery(r *http.Request) (service.ReportQuery, error) {
	v := r.URL.Query()
	q := service.ReportQuery{
		Period:  v.Get("period"),
		Date:    v.Get("date"),
		Segment: v.Get("segment"),
		Pattern: v.Get("pattern"),
	}

	var err error
	if q.Limit, err = intParam(v.Get("filter_limit")); err != nil {
		return q, fmt.Errorf("filter_limit: %w", err)
	}
	if q.Offset, err = intParam(v.Get("filter_offset")); err != nil {
		return q, fmt.Errorf("filter_offset: %w", err)
	}
	if q.Offset < 0 {
		return q, fmt.Errorf("filter_offset must not be negative")
	}
	return q, nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
