// Package grpcapi публикует отчет дашборда по gRPC.
// Сообщения — google.protobuf.Struct с теми же ключами, что и в HTTP API.
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xela07ax/sitesboard/internal/console/service"
	"github.com/xela07ax/sitesboard/internal/dashboard"
	"github.com/xela07ax/sitesboard/internal/domain"
	"github.com/xela07ax/sitesboard/internal/metrics"
	"github.com/xela07ax/sitesboard/internal/source"
)

const (
	ServiceName            = "sitesboard.v1.Dashboard"
	GetAllWithGroupsMethod = "/" + ServiceName + "/GetAllWithGroups"
)

// DashboardServer — серверная сторона сервиса sitesboard.v1.Dashboard.
type DashboardServer interface {
	GetAllWithGroups(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc описывает сервис для grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DashboardServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetAllWithGroups",
			Handler:    getAllWithGroupsHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sitesboard/v1/dashboard.proto",
}

func getAllWithGroupsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DashboardServer).GetAllWithGroups(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetAllWithGroupsMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DashboardServer).GetAllWithGroups(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ReportService — то, что нужно gRPC-серверу от сервиса дашборда.
type ReportService interface {
	GetAllWithGroups(ctx context.Context, q service.ReportQuery) (*domain.Report, error)
}

type Server struct {
	service ReportService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewServer(s ReportService, m *metrics.Metrics, logger *zap.Logger) *Server {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Server{service: s, metrics: m, logger: logger.Named("grpc-dashboard")}
}

// Register регистрирует сервис дашборда на gRPC-сервере.
func Register(s grpc.ServiceRegistrar, srv DashboardServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func (s *Server) GetAllWithGroups(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	q, err := DecodeQuery(req)
	if err != nil {
		s.metrics.ReportRequests.WithLabelValues("grpc", "bad_request").Inc()
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	report, err := s.service.GetAllWithGroups(ctx, q)
	if err != nil {
		code, label := errorCode(err)
		s.metrics.ReportRequests.WithLabelValues("grpc", label).Inc()
		if code == codes.Internal {
			return nil, status.Error(code, "internal error")
		}
		return nil, status.Error(code, err.Error())
	}

	out, err := EncodeReport(report)
	if err != nil {
		s.metrics.ReportRequests.WithLabelValues("grpc", "error").Inc()
		s.logger.Error("failed to encode report", zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	s.metrics.ReportRequests.WithLabelValues("grpc", "ok").Inc()
	return out, nil
}

func errorCode(err error) (codes.Code, string) {
	switch {
	case errors.Is(err, service.ErrInvalidQuery):
		return codes.InvalidArgument, "bad_request"
	case errors.Is(err, source.ErrSourceUnavailable), errors.Is(err, dashboard.ErrMissingTable):
		return codes.Unavailable, "unavailable"
	case errors.Is(err, context.Canceled):
		return codes.Canceled, "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded, "canceled"
	default:
		return codes.Internal, "error"
	}
}

// EncodeQuery собирает Struct запроса из параметров отчета.
func EncodeQuery(q service.ReportQuery) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"period":        q.Period,
		"date":          q.Date,
		"segment":       q.Segment,
		"pattern":       q.Pattern,
		"filter_limit":  q.Limit,
		"filter_offset": q.Offset,
	})
}

// DecodeQuery читает параметры отчета из Struct. Отсутствующие поля — значения по умолчанию.
func DecodeQuery(req *structpb.Struct) (service.ReportQuery, error) {
	f := req.GetFields()
	q := service.ReportQuery{
		Period:  f["period"].GetStringValue(),
		Date:    f["date"].GetStringValue(),
		Segment: f["segment"].GetStringValue(),
		Pattern: f["pattern"].GetStringValue(),
	}

	var err error
	if q.Limit, err = intField(f["filter_limit"]); err != nil {
		return q, fmt.Errorf("filter_limit: %w", err)
	}
	if q.Offset, err = intField(f["filter_offset"]); err != nil {
		return q, fmt.Errorf("filter_offset: %w", err)
	}
	if q.Offset < 0 {
		return q, errors.New("filter_offset must not be negative")
	}
	return q, nil
}

func intField(v *structpb.Value) (int, error) {
	switch k := v.GetKind().(type) {
	case nil:
		return 0, nil
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n != float64(int(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case *structpb.Value_StringValue:
		if k.StringValue == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(k.StringValue)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", k.StringValue)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", k)
	}
}

// EncodeReport переводит отчет в Struct через его JSON-представление.
func EncodeReport(r *domain.Report) (*structpb.Struct, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return structpb.NewStruct(m)
}

// DecodeReport восстанавливает отчет из Struct ответа.
func DecodeReport(s *structpb.Struct) (*domain.Report, error) {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal struct: %w", err)
	}
	var r domain.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}

// Client — клиент сервиса sitesboard.v1.Dashboard.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetAllWithGroups(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetAllWithGroupsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
