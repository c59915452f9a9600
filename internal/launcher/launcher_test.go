package launcher

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
)

type fakeSystem struct {
	mu        sync.Mutex
	installed map[string]bool
	failStart map[string]bool
	started   []string
	args      [][]string
	waited    chan struct{}
}

func newFakeSystem(installed ...string) *fakeSystem {
	f := &fakeSystem{
		installed: make(map[string]bool),
		failStart: make(map[string]bool),
		waited:    make(chan struct{}, 4),
	}
	for _, b := range installed {
		f.installed[b] = true
	}
	return f
}

func (f *fakeSystem) lookPath(file string) (string, error) {
	if f.installed[file] {
		return "/usr/bin/" + file, nil
	}
	return "", exec.ErrNotFound
}

func (f *fakeSystem) start(path string, args []string) (func() error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStart[path] {
		return nil, errors.New("exec format error")
	}
	f.started = append(f.started, path)
	f.args = append(f.args, args)
	return func() error {
		f.waited <- struct{}{}
		return nil
	}, nil
}

func newTestLauncher(f *fakeSystem) *Launcher {
	l := New()
	l.lookPath = f.lookPath
	l.start = f.start
	return l
}

func TestLaunch(t *testing.T) {
	tests := []struct {
		name      string
		installed []string
		wantName  string
		wantPath  string
		wantArgs  []string
	}{
		{"blueman preferred", []string{"blueman-manager", "gnome-control-center"}, "blueman", "/usr/bin/blueman-manager", nil},
		{"gnome fallback", []string{"gnome-control-center"}, "gnome-control-center", "/usr/bin/gnome-control-center", []string{"bluetooth"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeSystem(tt.installed...)
			l := newTestLauncher(f)

			name, err := l.Launch(context.Background())
			if err != nil {
				t.Fatalf("Launch: %v", err)
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if len(f.started) != 1 || f.started[0] != tt.wantPath {
				t.Fatalf("started = %v, want [%s]", f.started, tt.wantPath)
			}
			if len(f.args[0]) != len(tt.wantArgs) {
				t.Errorf("args = %v, want %v", f.args[0], tt.wantArgs)
			}
			<-f.waited
		})
	}
}

func TestLaunch_NoManager(t *testing.T) {
	l := newTestLauncher(newFakeSystem())

	_, err := l.Launch(context.Background())
	if !errors.Is(err, ErrNoManager) {
		t.Errorf("err = %v, want ErrNoManager", err)
	}
}

func TestLaunch_StartFailureFallsThrough(t *testing.T) {
	f := newFakeSystem("blueman-manager", "gnome-control-center")
	f.failStart["/usr/bin/blueman-manager"] = true
	l := newTestLauncher(f)

	name, err := l.Launch(context.Background())
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if name != "gnome-control-center" {
		t.Errorf("name = %q, want gnome-control-center", name)
	}
	<-f.waited
}

func TestLaunch_AllStartsFail(t *testing.T) {
	f := newFakeSystem("blueman-manager")
	f.failStart["/usr/bin/blueman-manager"] = true
	l := newTestLauncher(f)

	_, err := l.Launch(context.Background())
	if !errors.Is(err, ErrLaunchFailed) {
		t.Errorf("err = %v, want ErrLaunchFailed", err)
	}
	if errors.Is(err, ErrNoManager) {
		t.Errorf("err = %v, installed manager reported as missing", err)
	}
}

func TestLaunch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestLauncher(newFakeSystem("blueman-manager")).Launch(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
