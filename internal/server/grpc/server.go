package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/notematic/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// TokenVerifier resolves an access token to a user id.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (string, error)
}

// Pinger reports whether the user store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

const defaultProbeInterval = 15 * time.Second

type GRPCServer struct {
	address       string
	logger        logging.Logger
	verifier      TokenVerifier
	store         Pinger
	health        *health.Server
	probeInterval time.Duration
}

func NewGRPCServer(a string, l logging.Logger, v TokenVerifier, store Pinger) *GRPCServer {
	return &GRPCServer{
		address:       a,
		logger:        l.With("module", "grpc_server"),
		verifier:      v,
		store:         store,
		health:        health.NewServer(),
		probeInterval: defaultProbeInterval,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	s.probe(ctx)
	go s.probeLoop(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

// probe sets the overall serving status from the store's reachability.
func (s *GRPCServer) probe(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			s.logger.Warn(ctx, "store ping failed", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", st)
}

func (s *GRPCServer) probeLoop(ctx context.Context) {
	t := time.NewTicker(s.probeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.probe(ctx)
		}
	}
}
