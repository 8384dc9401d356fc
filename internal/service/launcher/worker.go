package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"

	"github.com/oshokin/companion-launcher/internal/config"
	"github.com/oshokin/companion-launcher/internal/logger"
)

// ErrBusy is returned when a job is submitted while another one runs.
var ErrBusy = errors.New("another job is running")

const (
	// jobLogTimeFormat is the timestamp layout of job log entries.
	jobLogTimeFormat = "2006-01-02 15:04:05"
	// jobLogMaxAge is how long rotated job logs are kept.
	jobLogMaxAge = 30 * 24 * time.Hour
	// jobLogRotationTime starts a new job log file every day.
	jobLogRotationTime = 24 * time.Hour
)

// Worker runs one job at a time and delivers outcomes on a channel. The busy
// flag is global, not per app, and clears only after the outcome was sent.
type Worker struct {
	launcher *Launcher
	busy     atomic.Bool
	outcomes chan Outcome

	logsMu sync.Mutex
	logs   map[string]*rotatelogs.RotateLogs
}

// NewWorker creates a Worker for launcher.
func NewWorker(launcher *Launcher) *Worker {
	return &Worker{
		launcher: launcher,
		outcomes: make(chan Outcome, 1),
		logs:     make(map[string]*rotatelogs.RotateLogs),
	}
}

// Outcomes returns the channel of finished jobs. It has a single consumer.
func (w *Worker) Outcomes() <-chan Outcome {
	return w.outcomes
}

// Busy reports whether a job is running or its outcome is undelivered.
func (w *Worker) Busy() bool {
	return w.busy.Load()
}

// Submit starts a job for the app named or labelled request.
func (w *Worker) Submit(ctx context.Context, request string) error {
	if !w.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}

	go func() {
		jobCtx := logger.WithKV(ctx, "job", request)

		outcome := w.launcher.RunJob(jobCtx, request)
		w.writeJobLog(jobCtx, outcome)

		select {
		case w.outcomes <- outcome:
		case <-ctx.Done():
			logger.WarnKV(jobCtx, "Outcome dropped, nobody is listening", "message", outcome.Message)
		}

		w.busy.Store(false)
	}()

	return nil
}

// writeJobLog appends the outcome to the rotating log of the request.
func (w *Worker) writeJobLog(ctx context.Context, outcome Outcome) {
	entry := fmt.Sprintf("[%s] %s\n%s\n\n",
		outcome.FinishedAt.Format(jobLogTimeFormat), outcome.Request, outcome.Message)

	writer, err := w.jobLog(outcome.Request)
	if err == nil {
		_, err = writer.Write([]byte(entry))
	}

	if err != nil {
		logger.WarnKV(ctx, "Failed to write job log", "request", outcome.Request, "error", err)
	}
}

// jobLog returns the rotating writer for request, creating it on first use.
func (w *Worker) jobLog(request string) (*rotatelogs.RotateLogs, error) {
	name := jobLogName(request)

	w.logsMu.Lock()
	defer w.logsMu.Unlock()

	if writer, ok := w.logs[name]; ok {
		return writer, nil
	}

	dir := w.launcher.paths.LogsDir
	if err := os.MkdirAll(dir, config.DefaultDirPermissions); err != nil {
		return nil, err
	}

	writer, err := rotatelogs.New(
		filepath.Join(dir, name+"-%Y-%m-%d.log"),
		rotatelogs.WithMaxAge(jobLogMaxAge),
		rotatelogs.WithRotationTime(jobLogRotationTime),
	)
	if err != nil {
		return nil, fmt.Errorf("open job log %s: %w", name, err)
	}

	w.logs[name] = writer

	return writer, nil
}

// Close releases the job log writers.
func (w *Worker) Close() error {
	w.logsMu.Lock()
	defer w.logsMu.Unlock()

	var errs []error

	for name, writer := range w.logs {
		errs = append(errs, writer.Close())
		delete(w.logs, name)
	}

	return errors.Join(errs...)
}

// jobLogName turns a name or label into a file name stem.
func jobLogName(request string) string {
	safe := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(request), " ", "_"))

	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '%':
			return '_'
		default:
			return r
		}
	}, safe)
}

// Wait blocks until the next outcome or until ctx is done.
func (w *Worker) Wait(ctx context.Context) (Outcome, error) {
	select {
	case outcome := <-w.outcomes:
		return outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
