package server

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// callLogInterceptor logs one line per unary call with its status code,
// duration and trace id when the call is traced.
func callLogInterceptor(logger *log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		line := fmt.Sprintf("%s %s %s", info.FullMethod, status.Code(err), time.Since(start).Round(time.Microsecond))
		if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
			line += " trace=" + sc.TraceID().String()
		}
		logger.Print(line)
		return resp, err
	}
}

// recoverInterceptor turns a handler panic into an Internal status. A script
// or formula bug must not take the server down with it.
func recoverInterceptor(logger *log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Printf("panic in %s: %v\n%s", info.FullMethod, r, debug.Stack())
				resp, err = nil, status.Error(codes.Internal, "an unexpected error occurred")
			}
		}()
		return handler(ctx, req)
	}
}
