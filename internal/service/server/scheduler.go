package server

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/companion-launcher/internal/domain/update"
	"github.com/oshokin/companion-launcher/internal/logger"
	"github.com/oshokin/companion-launcher/internal/version"
)

// Checker is the part of the update orchestrator the daemon drives.
type Checker interface {
	CurrentVersion(ctx context.Context, app string) string
	Update(ctx context.Context, app, current string) update.Result
	Halted(app string) (string, bool)
}

// scheduler runs one update pass per tick and mirrors each app's state into
// the health server.
type scheduler struct {
	checker  Checker
	health   *health.Server
	apps     []string
	interval time.Duration
	// launcher is the first entry of apps; its version is the build version.
	launcher string
}

func newScheduler(checker Checker, healthServer *health.Server, apps []string, interval time.Duration) *scheduler {
	s := &scheduler{
		checker:  checker,
		health:   healthServer,
		apps:     apps,
		interval: interval,
	}

	if len(apps) > 0 {
		s.launcher = apps[0]
	}

	for _, app := range apps {
		healthServer.SetServingStatus(app, healthpb.HealthCheckResponse_SERVICE_UNKNOWN)
	}

	return s
}

// run checks immediately and then on every tick until ctx is done.
func (s *scheduler) run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, stopping checks")
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

func (s *scheduler) checkAll(ctx context.Context) {
	for _, app := range s.apps {
		if ctx.Err() != nil {
			return
		}

		s.health.SetServingStatus(app, s.check(logger.WithKV(ctx, "app", app), app))
	}
}

// check runs one update attempt for app and returns its health status.
func (s *scheduler) check(ctx context.Context, app string) healthpb.HealthCheckResponse_ServingStatus {
	if reason, halted := s.checker.Halted(app); halted {
		logger.WarnKV(ctx, "Updates halted, manual repair required", "reason", reason)

		return healthpb.HealthCheckResponse_NOT_SERVING
	}

	current := version.Short()
	if app != s.launcher {
		current = s.checker.CurrentVersion(ctx, app)
	}

	if current == "" {
		logger.Debug(ctx, "Version unknown, skipping check")

		return healthpb.HealthCheckResponse_SERVICE_UNKNOWN
	}

	result := s.checker.Update(ctx, app, current)
	if result.Err != nil && !update.Recoverable(result.Err) {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}

	if result.Err != nil {
		logger.WarnKV(ctx, "Update check failed, retrying on next tick", "error", result.Err)
	}

	return healthpb.HealthCheckResponse_SERVING
}
