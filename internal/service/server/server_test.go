package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/companion-launcher/internal/config"
	"github.com/oshokin/companion-launcher/internal/domain/update"
	"github.com/oshokin/companion-launcher/internal/service/common"
)

// fakeChecker answers from fixed maps and records update attempts.
type fakeChecker struct {
	mu       sync.Mutex
	versions map[string]string
	results  map[string]update.Result
	halted   map[string]string
	updates  []string
}

func (c *fakeChecker) CurrentVersion(_ context.Context, app string) string {
	return c.versions[app]
}

func (c *fakeChecker) Update(_ context.Context, app, current string) update.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.updates = append(c.updates, app+"@"+current)

	return c.results[app]
}

func (c *fakeChecker) Halted(app string) (string, bool) {
	reason, ok := c.halted[app]

	return reason, ok
}

func (c *fakeChecker) Updates() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.updates...)
}

func status(t *testing.T, hs *health.Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()

	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)

	return resp.GetStatus()
}

func TestScheduler_CheckAll(t *testing.T) {
	t.Parallel()

	checker := &fakeChecker{
		versions: map[string]string{"Foo": "1.0.0", "Bar": "2.0.0", "Qux": "3.0.0"},
		results: map[string]update.Result{
			"Bar": {Status: update.StatusFailed, Err: update.ErrNetwork},
			"Qux": {Status: update.StatusFailed, Err: update.ErrCorruptState},
		},
		halted: map[string]string{"Baz": "target missing after failed swap"},
	}

	hs := health.NewServer()
	sched := newScheduler(checker, hs, []string{"launcher", "Foo", "Bar", "Baz", "Qux", "Nope"}, time.Hour)

	require.Equal(t, healthpb.HealthCheckResponse_SERVICE_UNKNOWN, status(t, hs, "Foo"))

	sched.checkAll(context.Background())

	require.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, hs, "launcher"))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, hs, "Foo"))
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, hs, "Bar"))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, hs, "Baz"))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, hs, "Qux"))
	require.Equal(t, healthpb.HealthCheckResponse_SERVICE_UNKNOWN, status(t, hs, "Nope"))

	updates := checker.Updates()
	require.Len(t, updates, 4)
	require.Equal(t, []string{"Foo@1.0.0", "Bar@2.0.0", "Qux@3.0.0"}, updates[1:])
	require.NotContains(t, updates, "Baz@")
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	checker := &fakeChecker{versions: map[string]string{"Foo": "1.0.0"}}
	sched := newScheduler(checker, health.NewServer(), []string{"launcher", "Foo"}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sched.run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(checker.Updates()) >= 6
	}, 5*time.Second, 5*time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRun_ServesHealth(t *testing.T) {
	t.Parallel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	address := lis.Addr().String()
	require.NoError(t, lis.Close())

	cfg := &config.Config{
		Launcher:      config.LauncherConfig{Name: "launcher"},
		Apps:          []config.AppConfig{{Name: "Foo"}},
		HealthAddress: address,
		CheckInterval: time.Hour,
	}
	checker := &fakeChecker{
		versions: map[string]string{"Foo": "1.0.0"},
		halted:   map[string]string{},
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	go func() {
		errCh <- Run(ctx, &Options{Config: cfg, Checker: checker})
	}()

	client, err := common.Dial(ctx, address, common.WithCallTimeout(time.Second))
	require.NoError(t, err)

	defer func() {
		_ = client.Close()
	}()

	require.Eventually(t, func() bool {
		got, checkErr := client.Check(ctx, "Foo")

		return checkErr == nil && got == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
}

func TestRun_RequiresAddress(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{Config: &config.Config{}})
	require.ErrorIs(t, err, ErrNoListenAddress)
}

func TestServices(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Launcher: config.LauncherConfig{Name: "launcher"},
		Apps:     []config.AppConfig{{Name: "Foo"}, {Name: "Bar"}},
	}

	require.Equal(t, []string{"launcher", "Foo", "Bar"}, Services(cfg))
}
