package health

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var (
	errNoChecker                = errors.New("no health checker configured")
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

type panicError struct{ value any }

func (e *panicError) Error() string { return fmt.Sprintf("health checker panicked: %v", e.value) }

// Pinger is the part of the gateway client the HTTP checker needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPChecker checks the backend's /health endpoint.
type HTTPChecker struct {
	Client Pinger
}

// Probe pings the backend.
func (c HTTPChecker) Probe(ctx context.Context) error {
	return c.Client.Ping(ctx)
}

// GRPCChecker checks a server implementing grpc.health.v1.Health. The
// connection is opened on first use and reused.
type GRPCChecker struct {
	addr    string
	service string
	opts    []grpc.DialOption

	mu   sync.Mutex
	conn *grpc.ClientConn
}

// NewGRPCChecker creates a checker for addr. An empty service asks about
// the server as a whole. Extra dial options are appended after insecure
// transport credentials.
func NewGRPCChecker(addr, service string, opts ...grpc.DialOption) *GRPCChecker {
	return &GRPCChecker{addr: addr, service: service, opts: opts}
}

// Probe asks the server for its serving status.
func (c *GRPCChecker) Probe(ctx context.Context) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	if err := waitForReady(ctx, conn); err != nil {
		return fmt.Errorf("grpc health at %s not ready: %w", c.addr, err)
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: c.service})
	if err != nil {
		return fmt.Errorf("grpc health check: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("grpc health check: status %s", resp.GetStatus())
	}
	return nil
}

// Close releases the connection.
func (c *GRPCChecker) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *GRPCChecker) connection() (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, c.opts...)
	conn, err := grpc.NewClient(c.addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("create grpc client for %s: %w", c.addr, err)
	}
	c.conn = conn
	return conn, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Multi reports healthy only when every checker does.
func Multi(checkers ...Checker) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		for _, c := range checkers {
			if err := c.Probe(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
