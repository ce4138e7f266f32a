package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/scansmart/internal/common"
)

// NewGRPCServer registers the scan service together with health and reflection.
func NewGRPCServer(scanner Scanner, logger *slog.Logger) (*grpc.Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	scanSrv, err := NewScanServer(scanner, logger)
	if err != nil {
		return nil, err
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(requestLogger(logger)))
	RegisterScanServiceServer(grpcServer, scanSrv)

	// Register gRPC health service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	// Set the service as serving (empty string means overall server health)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(scanServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(grpcServer)
	return grpcServer, nil
}

// requestLogger tags each call with a request id and logs its outcome.
func requestLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx = common.WithRequestID(ctx, uuid.NewString())
		resp, err := handler(ctx, req)
		common.LoggerWith(ctx, logger).Info("grpc call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
