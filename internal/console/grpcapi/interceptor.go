package grpcapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/xela07ax/sitesboard/internal/infra"
)

// traceMetadataKey — в gRPC заголовки в нижнем регистре
const traceMetadataKey = "x-trace-id"

// UnaryTracingInterceptor достает Trace-ID из метаданных вызова и логирует вызов.
func UnaryTracingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		var incoming string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(traceMetadataKey); len(ids) > 0 {
				incoming = ids[0]
			}
		}
		ctx, traceID := infra.WithTraceID(ctx, incoming)
		_ = grpc.SetHeader(ctx, metadata.Pairs(traceMetadataKey, traceID))

		start := time.Now()
		resp, err := handler(ctx, req)

		logger.Info("grpc request",
			zap.String("trace_id", traceID),
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)))
		return resp, err
	}
}

// WithTraceID добавляет Trace-ID в исходящие метаданные клиента.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, traceMetadataKey, traceID)
}
