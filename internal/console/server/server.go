package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/sitesboard/internal/console/handler"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// Обработчики
	dashHandler *handler.DashboardHandler // /api/v1/sites
	ready       func() bool
}

// NewConsoleServer инициализирует HTTP API дашборда со всеми зависимостями.
// ready сообщает, готовы ли зависимости (например, загружен справочник сайтов).
func NewConsoleServer(logger *zap.Logger, dashH *handler.DashboardHandler, ready func() bool) *ConsoleServer {
	s := &ConsoleServer{
		router:      chi.NewRouter(),
		logger:      logger.Named("console-api"),
		dashHandler: dashH,
		ready:       ready,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Tracing)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// --- 2. Служебные роуты ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if s.ready != nil && !s.ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// --- 3. API дашборда ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sites", s.dashHandler.GetAllWithGroups) // Все сайты с группами
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
