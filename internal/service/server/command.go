package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/companion-launcher/internal/config"
	"github.com/oshokin/companion-launcher/internal/logger"
)

// Options controls the launcher daemon.
type Options struct {
	// Config is the validated launcher configuration.
	Config *config.Config
	// Checker runs the update checks.
	Checker Checker
	// ListenAddress overrides the configured health address.
	ListenAddress string
	// CheckInterval overrides the configured check interval.
	CheckInterval time.Duration
}

// ErrNoListenAddress indicates missing listen configuration.
var ErrNoListenAddress = errors.New("no listen address configured")

// Run serves gRPC health for every app and checks for updates on a schedule
// until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "launcher-serve")

	listenAddress := opts.Config.HealthAddress
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	if listenAddress == "" {
		return ErrNoListenAddress
	}

	interval := opts.Config.CheckInterval
	if opts.CheckInterval > 0 {
		interval = opts.CheckInterval
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	healthServer := health.NewServer()
	sched := newScheduler(opts.Checker, healthServer, Services(opts.Config), interval)

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	logger.InfoKV(ctx, "Launcher daemon listening",
		"listen_address", lis.Addr().String(), "check_interval", interval.String())

	done := make(chan struct{})

	go func() {
		defer close(done)

		sched.run(ctx)
		logger.Info(ctx, "Shutting down gRPC server")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// Services lists the health service names: the launcher followed by every
// configured app.
func Services(cfg *config.Config) []string {
	services := make([]string, 0, len(cfg.Apps)+1)
	services = append(services, cfg.Launcher.Name)

	for _, app := range cfg.Apps {
		services = append(services, app.Name)
	}

	return services
}
