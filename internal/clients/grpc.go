package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/huy0357/Attendance-Management-System-sub000/internal/clients/interceptors"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/config"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/mediator"
	"github.com/huy0357/Attendance-Management-System-sub000/internal/metrics"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ErrNotServing — апстрим ответил, но не в состоянии SERVING.
var ErrNotServing = errors.New("upstream is not serving")

// DialGRPC создаёт ленивый коннект к gRPC-апстриму AMS.
// Порядок: mediator -> metadata -> timeout -> logging. Посредник снаружи,
// поэтому повтор после обновления заново проходит всю цепочку.
func DialGRPC(cfg config.Config, med *mediator.Mediator, m *metrics.Metrics, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	const op = "clients.DialGRPC"

	addr := cfg.API.GRPCAddr
	if addr == "" {
		return nil, fmt.Errorf("%s: api.grpc_addr is empty", op)
	}

	var chain []grpc.UnaryClientInterceptor
	if med != nil {
		chain = append(chain, med.UnaryClientInterceptor())
	}
	chain = append(chain,
		interceptors.UnaryMetadata(cfg.API.UserAgent),
		interceptors.UnaryTimeout(cfg.Timeouts.Request),
		interceptors.UnaryLogging(m),
	)

	all := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(chain...),
	}, opts...)

	conn, err := grpc.NewClient(addr, all...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return conn, nil
}

// Upstream — проверка готовности gRPC-апстрима через стандартный health-сервис.
// Вызов идёт под сессией: bearer и восстановление после Unauthenticated
// обеспечивает посредник в цепочке коннекта.
type Upstream struct {
	hc      healthpb.HealthClient
	service string
}

func NewUpstream(conn grpc.ClientConnInterface, service string) *Upstream {
	return &Upstream{hc: healthpb.NewHealthClient(conn), service: service}
}

// Check возвращает nil, только если апстрим в состоянии SERVING.
func (u *Upstream) Check(ctx context.Context) error {
	const op = "clients.Upstream.Check"

	resp, err := u.hc.Check(ctx, &healthpb.HealthCheckRequest{Service: u.service})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if st := resp.GetStatus(); st != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%s: %w: %s", op, ErrNotServing, st)
	}

	return nil
}
