package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/oshokin/companion-launcher/internal/config"
	"github.com/oshokin/companion-launcher/internal/domain/update"
	"github.com/oshokin/companion-launcher/internal/logger"
	"github.com/oshokin/companion-launcher/internal/service/process"
	"github.com/oshokin/companion-launcher/internal/version"
)

// Updater is what the launcher needs from the update orchestrator.
type Updater interface {
	Identity(app string) update.AppIdentity
	CurrentVersion(ctx context.Context, app string) string
	Install(ctx context.Context, app string) (string, error)
	Update(ctx context.Context, app, current string) update.Result
	EnsureReplacer(ctx context.Context) error
}

// Action is what a job ended up doing.
type Action string

// Job actions.
const (
	ActionLaunched Action = "launched"
	ActionUpdated  Action = "updated"
	ActionFailed   Action = "failed"
)

// Outcome is the typed result of one job.
type Outcome struct {
	// App is the application name, empty when the request matched nothing.
	App string
	// Request is the name or label the job was started with.
	Request string
	// Action is what the job did.
	Action Action
	// Message is a human-readable summary.
	Message string
	// Update is the update attempt made by the job, if any.
	Update update.Result
	// Err is set when the job failed.
	Err error
	// FinishedAt is when the job ended.
	FinishedAt time.Time
}

// ErrUnknownApp is returned for a name or label that matches no configured app.
var ErrUnknownApp = errors.New("unknown app")

// Launcher installs, updates and starts configured applications.
type Launcher struct {
	cfg     *config.Config
	paths   config.Paths
	updater Updater
	start   func(path string, opts process.StartOptions) (int, error)
}

// New creates a Launcher.
func New(cfg *config.Config, updater Updater) *Launcher {
	return &Launcher{
		cfg:     cfg,
		paths:   cfg.Paths(),
		updater: updater,
		start:   process.StartDetached,
	}
}

// Startup prepares the replacer and updates the launcher itself. When a newer
// launcher is published the process exits inside this call.
func (l *Launcher) Startup(ctx context.Context) update.Result {
	ctx = logger.WithName(ctx, "startup")

	if err := l.updater.EnsureReplacer(ctx); err != nil {
		logger.WarnKV(ctx, "Replacer is unavailable, updates will be deferred", "error", err)
	}

	return l.updater.Update(ctx, l.cfg.Launcher.Name, version.Short())
}

// RunJob installs the app when missing, updates it when a newer release
// exists and starts it otherwise.
func (l *Launcher) RunJob(ctx context.Context, request string) Outcome {
	outcome := l.runJob(ctx, request)
	outcome.Request = request
	outcome.FinishedAt = time.Now()

	return outcome
}

func (l *Launcher) runJob(ctx context.Context, request string) Outcome {
	app, ok := l.cfg.App(request)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownApp, request)

		return Outcome{Action: ActionFailed, Message: "[Error] Unknown app: " + request, Err: err}
	}

	ctx = logger.WithKV(ctx, "app", app.Name)
	id := l.updater.Identity(app.Name)

	var current string

	if _, err := os.Stat(id.TargetPath); errors.Is(err, os.ErrNotExist) {
		logger.Info(ctx, "Not installed yet, downloading")

		tag, installErr := l.updater.Install(ctx, app.Name)
		if installErr != nil {
			return Outcome{
				App:     app.Name,
				Action:  ActionFailed,
				Message: fmt.Sprintf("[Install] Failed to install %s: %v", app.Name, installErr),
				Err:     installErr,
			}
		}

		current = tag
	}

	if current == "" {
		current = l.updater.CurrentVersion(ctx, app.Name)
	}

	var result update.Result

	if current == "" {
		logger.Info(ctx, "Could not determine version, skipping update")
	} else {
		result = l.updater.Update(ctx, app.Name, current)

		switch {
		case result.Updated() && result.Err == nil:
			return Outcome{
				App:     app.Name,
				Action:  ActionUpdated,
				Message: fmt.Sprintf("[Update] %s %s → %s replaced and launched", app.Name, result.From, result.To),
				Update:  result,
			}
		case result.Updated():
			return Outcome{
				App:     app.Name,
				Action:  ActionFailed,
				Message: fmt.Sprintf("[Update] %s updated to %s but failed to start: %v", app.Name, result.To, result.Err),
				Update:  result,
				Err:     result.Err,
			}
		case !update.Recoverable(result.Err):
			return Outcome{
				App:     app.Name,
				Action:  ActionFailed,
				Message: fmt.Sprintf("[Update] %s needs manual repair: %v", app.Name, result.Err),
				Update:  result,
				Err:     result.Err,
			}
		}
	}

	return l.launch(ctx, app.Name, id.TargetPath, result)
}

// launch starts the installed binary from the application directory.
func (l *Launcher) launch(ctx context.Context, app, target string, result update.Result) Outcome {
	if running, err := process.Running(target); err == nil && running {
		logger.Info(ctx, "Another instance is already running")
	}

	pid, err := l.start(target, process.StartOptions{Dir: l.paths.AppDir})
	if err != nil {
		return Outcome{
			App:     app,
			Action:  ActionFailed,
			Message: fmt.Sprintf("[Launch] Failed to run %s: %v", app, err),
			Update:  result,
			Err:     err,
		}
	}

	logger.InfoKV(ctx, "Started", "pid", pid)

	return Outcome{
		App:     app,
		Action:  ActionLaunched,
		Message: fmt.Sprintf("[Launch] %s started", app),
		Update:  result,
	}
}
