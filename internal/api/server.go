package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/bluewidget/bluewidget/internal/audit"
	"github.com/bluewidget/bluewidget/internal/coordinator"
	"github.com/bluewidget/bluewidget/internal/device"
	"github.com/bluewidget/bluewidget/internal/infrastructure/config"
	"github.com/bluewidget/bluewidget/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// WebSocket event channels.
const (
	EventDevicesUpdated   = "devices.updated"
	EventCommandCompleted = "command.completed"
)

// Controller is the coordinator surface used by the handlers.
type Controller interface {
	Refresh()
	TogglePower(on bool) error
	Command(kind device.CommandKind, id string) error
	CurrentPowerState(ctx context.Context) bool
}

// Launcher opens the external Bluetooth manager.
type Launcher interface {
	Launch(ctx context.Context) (string, error)
}

// HealthChecker is implemented by infrastructure clients reported by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Logger     *logging.Logger
	Controller Controller

	// Foreground is optional. When set, the server subscribes to it for the
	// device list and command reports.
	Foreground *coordinator.Foreground

	Launcher Launcher         // optional
	Audit    audit.Repository // optional
	Panel    http.Handler     // optional, mounted at "/"
	Checks   map[string]HealthChecker
	Version  string

	// Reported by /metrics when set.
	Backend BackendStatus
	MQTT    MQTTStatus
	DB      DBStats
}

// Server is the HTTP API server.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	controller Controller
	launcher   Launcher
	auditRepo  audit.Repository
	panel      http.Handler
	checks     map[string]HealthChecker
	version    string
	backend    BackendStatus
	mqtt       MQTTStatus
	db         DBStats
	startTime  time.Time
	limiter    *ipLimiter
	server     *http.Server
	hub        *Hub
	cancel     context.CancelFunc

	mu       sync.RWMutex
	devices  []device.Record
	seq      uint64
	received bool
}

// New creates a new API server. The server is not listening until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		controller: deps.Controller,
		launcher:   deps.Launcher,
		auditRepo:  deps.Audit,
		panel:      deps.Panel,
		checks:     deps.Checks,
		version:    deps.Version,
		backend:    deps.Backend,
		mqtt:       deps.MQTT,
		db:         deps.DB,
		startTime:  time.Now(),
		hub:        NewHub(deps.WS, deps.Logger),
		devices:    []device.Record{},
	}
	s.hub.onSubscribe = s.sendCurrentDevices
	if rl := deps.Security.RateLimit; rl.Enabled {
		s.limiter = newIPLimiter(rl.RequestsPerMinute, rl.Burst)
	}

	if fg := deps.Foreground; fg != nil {
		fg.SubscribeDevices(func(records []device.Record) {
			s.SetDevices(fg.LastSeq(), records)
		})
		fg.SubscribeReports(s.PublishReport)
	}

	return s, nil
}

// SetDevices replaces the served device list and notifies WebSocket clients.
func (s *Server) SetDevices(seq uint64, records []device.Record) {
	if records == nil {
		records = []device.Record{}
	}
	s.mu.Lock()
	s.devices = slices.Clone(records)
	s.seq = seq
	s.received = true
	s.mu.Unlock()

	s.hub.Broadcast(EventDevicesUpdated, devicesResponse{Seq: seq, Devices: records})
}

// PublishReport forwards a command report to WebSocket clients.
func (s *Server) PublishReport(r coordinator.CommandReport) {
	s.hub.Broadcast(EventCommandCompleted, r)
}

// snapshot returns the last delivered list.
func (s *Server) snapshot() (uint64, []device.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq, slices.Clone(s.devices), s.received
}

// Start begins listening for HTTP connections in the background.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	if s.limiter != nil {
		go s.limiter.cleanupLoop(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
