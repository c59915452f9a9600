// Package launcher starts the desktop's Bluetooth manager application.
//
// The widget has no pairing or settings UI of its own; its settings action
// hands over to whichever manager is installed. The first candidate found on
// PATH is started detached from the widget's process group and reaped in the
// background.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

var (
	// ErrNoManager is returned when no candidate manager is installed.
	ErrNoManager = errors.New("launcher: no bluetooth manager found")
	// ErrLaunchFailed is returned when managers are installed but none started.
	ErrLaunchFailed = errors.New("launcher: bluetooth manager failed to start")
)

// Candidate is one external manager to try.
type Candidate struct {
	Name   string
	Binary string
	Args   []string
}

// DefaultCandidates returns the managers tried by New, in order.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{Name: "blueman", Binary: "blueman-manager"},
		{Name: "gnome-control-center", Binary: "gnome-control-center", Args: []string{"bluetooth"}},
	}
}

// Logger defines the logging interface for the launcher.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Launcher starts the first available manager.
type Launcher struct {
	candidates []Candidate
	logger     Logger

	// lookPath and start are replaced in tests.
	lookPath func(file string) (string, error)
	start    func(path string, args []string) (wait func() error, err error)
}

// New creates a Launcher over DefaultCandidates.
func New() *Launcher {
	return NewWithCandidates(DefaultCandidates())
}

// NewWithCandidates creates a Launcher over an explicit candidate list.
func NewWithCandidates(candidates []Candidate) *Launcher {
	return &Launcher{
		candidates: candidates,
		logger:     noopLogger{},
		lookPath:   exec.LookPath,
		start:      startDetached,
	}
}

// SetLogger sets the logger for the launcher.
func (l *Launcher) SetLogger(logger Logger) {
	l.logger = logger
}

// Launch starts the first installed candidate and returns its name. It does
// not wait for the manager to exit.
func (l *Launcher) Launch(ctx context.Context) (string, error) {
	var lastErr error
	for _, c := range l.candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		path, err := l.lookPath(c.Binary)
		if err != nil {
			continue
		}

		wait, err := l.start(path, c.Args)
		if err != nil {
			l.logger.Warn("starting bluetooth manager failed", "name", c.Name, "error", err)
			lastErr = err
			continue
		}

		l.logger.Info("bluetooth manager started", "name", c.Name, "binary", path)
		go func(name string) {
			if err := wait(); err != nil {
				l.logger.Warn("bluetooth manager exited", "name", name, "error", err)
			}
		}(c.Name)
		return c.Name, nil
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: %w", ErrLaunchFailed, lastErr)
	}
	return "", ErrNoManager
}

// startDetached starts path in its own process group so closing the widget
// does not take the manager down with it.
func startDetached(path string, args []string) (func() error, error) {
	cmd := exec.Command(path, args...) //nolint:gosec,noctx // Binary comes from the fixed candidate list; the manager outlives the request
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", path, err)
	}
	return cmd.Wait, nil
}
