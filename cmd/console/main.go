package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xela07ax/sitesboard/internal/console/grpcapi"
	"github.com/xela07ax/sitesboard/internal/console/handler"
	"github.com/xela07ax/sitesboard/internal/console/server"
	"github.com/xela07ax/sitesboard/internal/console/service"
	"github.com/xela07ax/sitesboard/internal/dashboard"
	"github.com/xela07ax/sitesboard/internal/directory"
	"github.com/xela07ax/sitesboard/internal/format"
	"github.com/xela07ax/sitesboard/internal/infra"
	"github.com/xela07ax/sitesboard/internal/metrics"
	"github.com/xela07ax/sitesboard/internal/repository/postgres"
	"github.com/xela07ax/sitesboard/internal/source"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		// логгера еще нет
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	// Контекст жизни фоновых горутин: SIGINT/SIGTERM останавливает слушателей
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Инфраструктура и ресурсы
	startCtx, cancel := context.WithTimeout(appCtx, 5*time.Second)
	pool, err := postgres.NewPool(startCtx, cfg.Database)
	if err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	if err := postgres.Migrate(startCtx, pool); err != nil {
		logger.Fatal("schema bootstrap failed", zap.Error(err))
	}
	cancel()
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// 3. Справочник сайтов: первичная загрузка + обновление по сигналу
	dir := directory.New(postgres.NewSiteRepo(pool), rdb, logger)
	if err := dir.Refresh(appCtx); err != nil {
		// слушатель повторит загрузку при подписке
		logger.Warn("initial site directory load failed", zap.Error(err))
	}
	go dir.StartListener(appCtx)

	// 4. Источник сводок: Postgres -> Reliability (лимит, CB, ретраи) -> кэш Redis
	var src source.SummarySource = source.NewReliable(postgres.NewSummaryRepo(pool), cfg.Source, m, logger)
	if cfg.Cache.Enabled {
		cache := source.NewCache(src, rdb, cfg.Cache.TTL, m, logger)
		go cache.ListenInvalidations(appCtx, rdb)
		src = cache
	}

	// 5. Ядро дашборда
	money, err := format.NewMoney(cfg.Dashboard.Locale, cfg.Dashboard.Currency)
	if err != nil {
		logger.Fatal("invalid dashboard formatting settings", zap.Error(err))
	}
	builder := dashboard.NewBuilder(dir, money, dashboard.Options{
		RecalculateAfterSearch: cfg.Dashboard.RecalculateAfterSearch,
	})
	dashService := service.NewDashboardService(src, builder, cfg.Dashboard, m, logger)

	// 6. HTTP API
	consoleSrv := server.NewConsoleServer(logger, handler.NewDashboardHandler(dashService, m, logger), dir.Ready)
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      consoleSrv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("console API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http listen failed", zap.Error(err))
		}
	}()

	// Экспортируем метрики для Prometheus
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux, ReadTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listen failed", zap.Error(err))
		}
	}()

	// 7. gRPC
	var grpcSrv *grpc.Server
	if cfg.GRPC.Enabled {
		grpcSrv = grpc.NewServer(grpc.UnaryInterceptor(grpcapi.UnaryTracingInterceptor(logger.Named("grpc"))))
		grpcapi.Register(grpcSrv, grpcapi.NewServer(dashService, m, logger))

		hs := health.NewServer()
		hs.SetServingStatus(grpcapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(grpcSrv, hs)

		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			logger.Fatal("failed to listen gRPC", zap.Error(err))
		}
		go func() {
			logger.Info("gRPC server started", zap.String("addr", cfg.GRPC.Addr))
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Error("gRPC serve failed", zap.Error(err))
			}
		}()
	}

	// 8. Graceful Shutdown
	<-appCtx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}
	logger.Info("console API stopped")
}
