package mediator

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryClientInterceptor — посредник для gRPC: Unauthenticated соответствует 401,
// PermissionDenied — 403. Методы с префиксом AuthMethodPrefix не восстанавливаются.
func (m *Mediator) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		auth := m.cfg.AuthMethodPrefix != "" && strings.HasPrefix(method, m.cfg.AuthMethodPrefix)

		err := invoker(withBearerMD(ctx, m.session.AccessToken()), method, req, reply, cc, opts...)
		if err == nil || auth {
			return err
		}

		switch status.Code(err) {
		case codes.Unauthenticated:
			token, retry, rerr := m.renew(ctx)
			if !retry {
				if rerr != nil {
					return rerr
				}
				return err
			}

			err = invoker(withBearerMD(ctx, token), method, req, reply, cc, opts...)
			if status.Code(err) == codes.PermissionDenied {
				m.forbidden(ctx)
			}
			return err

		case codes.PermissionDenied:
			m.forbidden(ctx)
		}

		return err
	}
}

// withBearerMD заменяет authorization в исходящих метаданных.
func withBearerMD(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}

	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set("authorization", "Bearer "+token)

	return metadata.NewOutgoingContext(ctx, md)
}
