package middleware

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitbill/internal/metrics"
)

// LoggingInterceptor logs every RPC and records its latency in m, labelled by procedure and result code.
// Install it outside RequireAuth so rejected calls are counted too.
func LoggingInterceptor(m *metrics.Metrics) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			elapsed := time.Since(start)

			procedure := req.Spec().Procedure
			attrs := []any{
				"procedure", procedure,
				"user_id", GetUserID(ctx),
				"duration_ms", elapsed.Milliseconds(),
			}

			result := "ok"
			switch {
			case err == nil:
				slog.Info("RPC ok", attrs...)
			case connect.CodeOf(err) == connect.CodeInternal || connect.CodeOf(err) == connect.CodeUnknown:
				result = connect.CodeOf(err).String()
				slog.Error("RPC failed", append(attrs, "code", result, "error", err)...)
			default:
				result = connect.CodeOf(err).String()
				slog.Warn("RPC rejected", append(attrs, "code", result, "error", err)...)
			}
			m.RPC(procedure, result, elapsed)

			return resp, err
		}
	}
}
