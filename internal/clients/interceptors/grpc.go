package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/metrics"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/pkg/log"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const mdRequestID = "x-request-id"

// UnaryMetadata — gRPC-вариант WithMetadata: x-request-id (контекст,
// уже заданный в metadata или новый uuid) и user-agent.
func UnaryMetadata(userAgent string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		pairs := make([]string, 0, 4)

		if outgoingRequestID(ctx) == "" {
			rid := requestIDFrom(ctx)
			if rid == "" {
				rid = uuid.NewString()
			}
			pairs = append(pairs, mdRequestID, rid)
		}
		if userAgent != "" {
			pairs = append(pairs, "user-agent", userAgent)
		}

		if len(pairs) > 0 {
			ctx = metadata.AppendToOutgoingContext(ctx, pairs...)
		}

		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// UnaryTimeout ограничивает одну попытку вызова, если дедлайна ещё нет.
func UnaryTimeout(d time.Duration) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if _, ok := ctx.Deadline(); d > 0 && !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// UnaryLogging — одна запись "grpc_client" на попытку и метрика вызова.
// OK пишется на info, остальные коды на warn.
func UnaryLogging(m *metrics.Metrics) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()

		l := log.From(ctx).With(
			slog.String("request_id", outgoingRequestID(ctx)),
			slog.String("method", method),
		)
		if cc != nil {
			l = l.With(slog.String("target", cc.Target()))
		}

		err := invoker(log.Into(ctx, l), method, req, reply, cc, opts...)
		dur := time.Since(start)

		code := status.Code(err)
		m.Call(method, code.String(), dur)

		if code != codes.OK {
			l.Warn("grpc_client", slog.String("code", code.String()), slog.Duration("dur", dur))
			return err
		}

		l.Info("grpc_client", slog.String("code", code.String()), slog.Duration("dur", dur))
		return nil
	}
}

func outgoingRequestID(ctx context.Context) string {
	md, _ := metadata.FromOutgoingContext(ctx)
	if v := md.Get(mdRequestID); len(v) > 0 {
		return v[0]
	}

	return ""
}
