package settings

import (
	"sync/atomic"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Store holds the current settings for one settings file.
//
// All methods are safe for concurrent use.
type Store struct {
	path    string
	current atomic.Pointer[Settings]
	logger  Logger
}

// NewStore creates a Store for path holding Defaults until Load is called.
func NewStore(path string) *Store {
	s := &Store{path: path, logger: noopLogger{}}
	d := Defaults()
	s.current.Store(&d)
	return s
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the settings file and makes it current.
//
// A missing or corrupt file is never an error: the defaults become current
// and are written back. A failed write-back is logged and ignored.
func (s *Store) Load() Settings {
	loaded, err := Read(s.path)
	if err != nil {
		s.logger.Debug("settings unavailable, using defaults", "path", s.path, "error", err)
		loaded = Defaults()
		if saveErr := Save(s.path, loaded); saveErr != nil {
			s.logger.Warn("writing default settings failed", "path", s.path, "error", saveErr)
		}
	}

	s.current.Store(&loaded)
	return loaded
}

// Reload re-reads the settings file. Unlike Load, an unreadable file keeps
// the current settings and is not overwritten.
func (s *Store) Reload() Settings {
	loaded, err := Read(s.path)
	if err != nil {
		s.logger.Warn("settings reload failed, keeping current", "path", s.path, "error", err)
		return s.Current()
	}
	s.current.Store(&loaded)
	return loaded
}

// Update saves next to disk and makes it current.
func (s *Store) Update(next Settings) error {
	if err := Save(s.path, next); err != nil {
		return err
	}
	s.current.Store(&next)
	return nil
}

// Current returns a copy of the current settings.
func (s *Store) Current() Settings {
	return *s.current.Load()
}

// FunctionalityEnabled reports whether commands reach the real adapter.
// When false the coordinator runs in simulation mode.
func (s *Store) FunctionalityEnabled() bool {
	return s.current.Load().FunctionalityEnabled
}
