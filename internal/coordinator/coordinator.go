package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bluewidget/bluewidget/internal/device"
)

// Default option values.
const (
	defaultCallTimeout      = 3 * time.Second
	defaultCommandQueueSize = 32
	defaultReportQueueSize  = 32

	// auditTimeout bounds a single audit write.
	auditTimeout = 2 * time.Second
)

// Options configures a Coordinator. Zero values select defaults.
type Options struct {
	// CallTimeout bounds a single gateway call.
	CallTimeout time.Duration

	// LockWait bounds the wait for the gateway gate. Defaults to twice
	// CallTimeout so a caller can outlast one in-flight call.
	LockWait time.Duration

	CommandQueueSize int
	ReportQueueSize  int

	// RefreshAfterCommand requests a refresh after each successful real command.
	RefreshAfterCommand bool

	// Policy orders enumeration results. Nil selects device.DefaultPolicy.
	Policy *device.Policy

	Metrics Metrics
	Audit   AuditSink
}

func (o Options) withDefaults() Options {
	if o.CallTimeout <= 0 {
		o.CallTimeout = defaultCallTimeout
	}
	if o.LockWait <= 0 {
		o.LockWait = 2 * o.CallTimeout
	}
	if o.CommandQueueSize <= 0 {
		o.CommandQueueSize = defaultCommandQueueSize
	}
	if o.ReportQueueSize <= 0 {
		o.ReportQueueSize = defaultReportQueueSize
	}
	if o.Policy == nil {
		p := device.DefaultPolicy()
		o.Policy = &p
	}
	if o.Metrics == nil {
		o.Metrics = noopMetrics{}
	}
	return o
}

// request is one queued mutating command.
type request struct {
	op       Op
	deviceID string
}

// Coordinator is the single owner of a Gateway.
//
// Refresh, TogglePower, and Command never block on the gateway. The only
// synchronous gateway access is CurrentPowerState.
type Coordinator struct {
	gw       Gateway
	settings SettingsSource
	opts     Options
	logger   Logger

	// gate admits one gateway call at a time.
	gate chan struct{}

	mailbox     *Mailbox
	reports     chan CommandReport
	reportReady chan struct{}
	commands    chan request

	mu         sync.Mutex
	refreshing bool
	pending    bool
	seq        uint64
	started    bool
	closed     bool

	// ctx is cancelled by Close. It bounds gate waits, never gateway calls.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Coordinator around gw. Start must be called before queued
// commands are executed; Refresh works immediately.
func New(gw Gateway, settings SettingsSource, opts Options) *Coordinator {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:         ctx,
		cancel:      cancel,
		gw:          gw,
		settings:    settings,
		opts:        opts,
		logger:      noopLogger{},
		gate:        make(chan struct{}, 1),
		mailbox:     NewMailbox(),
		reports:     make(chan CommandReport, opts.ReportQueueSize),
		reportReady: make(chan struct{}, 1),
		commands:    make(chan request, opts.CommandQueueSize),
	}
}

// SetLogger sets the logger for the coordinator.
func (c *Coordinator) SetLogger(logger Logger) {
	c.logger = logger
}

// Mailbox returns the snapshot mailbox consumed by the Foreground.
func (c *Coordinator) Mailbox() *Mailbox {
	return c.mailbox
}

// Start launches the command worker. It returns immediately.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true

	c.wg.Add(1)
	go c.commandLoop(ctx)
}

// Close stops accepting work and waits for running gateway calls to finish.
// In-flight calls are never cancelled. Queued commands that have not started
// are dropped.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()

	if n := len(c.commands); n > 0 {
		c.logger.Warn("dropping queued commands on close", "count", n)
	}
	return nil
}

// =============================================================================
// Refresh
// =============================================================================

// Refresh requests one enumeration. While an enumeration is running, any
// number of further requests collapse into a single follow-up enumeration.
func (c *Coordinator) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.refreshing {
		c.pending = true
		return
	}
	c.refreshing = true
	c.wg.Add(1)
	go c.enumerateLoop()
}

// enumerateLoop runs enumerations until no request is pending.
func (c *Coordinator) enumerateLoop() {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		c.seq++
		seq := c.seq
		c.mu.Unlock()

		c.enumerate(seq)

		c.mu.Lock()
		if !c.pending || c.closed {
			c.refreshing = false
			c.pending = false
			c.mu.Unlock()
			return
		}
		c.pending = false
		c.mu.Unlock()
	}
}

// enumerate performs one gateway enumeration and posts the ordered result.
func (c *Coordinator) enumerate(seq uint64) {
	start := time.Now()

	var devices []device.Record
	err := c.withGateway(c.ctx, OpList, func(ctx context.Context) error {
		devices = c.gw.ListDevices(ctx)
		return nil
	})
	if err != nil {
		// Keep the last delivered list rather than blanking it.
		c.logger.Warn("enumeration skipped", "seq", seq, "error", err)
		return
	}

	snap := Snapshot{
		Seq:     seq,
		Devices: c.opts.Policy.Sort(devices),
		TakenAt: time.Now(),
	}
	elapsed := time.Since(start)
	c.opts.Metrics.RecordEnumeration(seq, len(snap.Devices), elapsed)

	if !c.mailbox.Post(snap) {
		c.logger.Debug("stale enumeration discarded", "seq", seq)
		return
	}
	c.logger.Debug("enumeration complete", "seq", seq, "devices", len(snap.Devices), "duration_ms", elapsed.Milliseconds())
}

// =============================================================================
// Commands
// =============================================================================

// TogglePower queues an adapter power change.
func (c *Coordinator) TogglePower(on bool) error {
	op := OpPowerOff
	if on {
		op = OpPowerOn
	}
	return c.submit(request{op: op})
}

// Command queues a per-device command.
func (c *Coordinator) Command(kind device.CommandKind, id string) error {
	switch kind {
	case device.CommandConnect, device.CommandDisconnect, device.CommandPair:
	default:
		return fmt.Errorf("%w: %q", device.ErrUnknownCommand, kind)
	}
	return c.submit(request{op: Op(kind), deviceID: id})
}

// submit enqueues a request without blocking.
func (c *Coordinator) submit(req request) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case c.commands <- req:
		return nil
	default:
		c.logger.Warn("command queue full, dropping command", "op", req.op, "device_id", req.deviceID)
		c.audit(CommandResult{Op: req.op, DeviceID: req.deviceID, Outcome: OutcomeDropped, Err: ErrQueueFull, At: time.Now()})
		return ErrQueueFull
	}
}

// commandLoop executes queued commands one at a time, in submission order.
func (c *Coordinator) commandLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ctx.Done():
			return
		case req := <-c.commands:
			c.execute(req)
		}
	}
}

// execute runs one command, or simulates it when functionality is disabled.
func (c *Coordinator) execute(req request) {
	start := time.Now()

	if !c.settings.FunctionalityEnabled() {
		c.logger.Info("simulation mode: command accepted without adapter call",
			"op", req.op,
			"device_id", req.deviceID,
		)
		c.finish(req, OutcomeSimulated, nil, start)
		return
	}

	err := c.withGateway(c.ctx, req.op, func(ctx context.Context) error {
		return c.dispatch(ctx, req)
	})
	if err != nil {
		cerr := &CommandError{Op: req.op, DeviceID: req.deviceID, Err: err}
		c.logger.Warn("command failed", "op", req.op, "device_id", req.deviceID, "error", err)
		c.finish(req, OutcomeFailed, cerr, start)
		return
	}

	c.logger.Info("command completed", "op", req.op, "device_id", req.deviceID)
	c.finish(req, OutcomeOK, nil, start)

	if c.opts.RefreshAfterCommand {
		c.Refresh()
	}
}

// dispatch maps an operation onto the gateway. The caller holds the gate.
func (c *Coordinator) dispatch(ctx context.Context, req request) error {
	switch req.op {
	case OpPowerOn:
		return c.gw.SetPowered(ctx, true)
	case OpPowerOff:
		return c.gw.SetPowered(ctx, false)
	case OpConnect:
		return c.gw.Connect(ctx, req.deviceID)
	case OpDisconnect:
		return c.gw.Disconnect(ctx, req.deviceID)
	case OpPair:
		return c.gw.Pair(ctx, req.deviceID)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOp, req.op)
	}
}

// finish records metrics and audit, and reports non-failures to the foreground.
func (c *Coordinator) finish(req request, outcome Outcome, err error, start time.Time) {
	elapsed := time.Since(start)
	c.opts.Metrics.RecordCommand(req.op, outcome, elapsed)
	c.audit(CommandResult{
		Op:       req.op,
		DeviceID: req.deviceID,
		Outcome:  outcome,
		Err:      err,
		Duration: elapsed,
		At:       start,
	})

	if outcome == OutcomeFailed {
		return
	}
	c.report(CommandReport{
		Op:        req.op,
		DeviceID:  req.deviceID,
		Simulated: outcome == OutcomeSimulated,
		At:        time.Now(),
	})
}

// report queues a command report without blocking.
func (c *Coordinator) report(r CommandReport) {
	select {
	case c.reports <- r:
	default:
		c.logger.Warn("report queue full, dropping report", "op", r.Op, "device_id", r.DeviceID)
		return
	}
	select {
	case c.reportReady <- struct{}{}:
	default:
	}
}

func (c *Coordinator) audit(result CommandResult) {
	if c.opts.Audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := c.opts.Audit.RecordCommand(ctx, result); err != nil {
		c.logger.Warn("audit write failed", "op", result.Op, "error", err)
	}
}

// =============================================================================
// Synchronous queries
// =============================================================================

// CurrentPowerState queries the adapter power state through the gate.
// It blocks for at most LockWait plus CallTimeout and reports false on any
// failure. ctx only bounds the wait for the gate.
func (c *Coordinator) CurrentPowerState(ctx context.Context) bool {
	var powered bool
	err := c.withGateway(ctx, OpIsPowered, func(ctx context.Context) error {
		powered = c.gw.IsPowered(ctx)
		return nil
	})
	if err != nil {
		c.logger.Warn("power state query failed", "error", err)
		return false
	}
	return powered
}

// =============================================================================
// Gate
// =============================================================================

// withGateway is the only path to the Gateway. It holds the gate for exactly
// one call, bounds the call with CallTimeout, and converts a panic into an error.
// The call itself runs on a fresh context so it is never cancelled midway.
func (c *Coordinator) withGateway(ctx context.Context, op Op, fn func(ctx context.Context) error) (err error) {
	wait := time.NewTimer(c.opts.LockWait)
	defer wait.Stop()

	select {
	case c.gate <- struct{}{}:
	case <-wait.C:
		c.opts.Metrics.RecordGatewayCall(op, false, c.opts.LockWait)
		return fmt.Errorf("%w: waited %v for %s", ErrGatewayBusy, c.opts.LockWait, op)
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrGatewayBusy, op, ctx.Err())
	}
	defer func() { <-c.gate }()

	callCtx, cancel := context.WithTimeout(context.Background(), c.opts.CallTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("gateway call panicked", "op", op, "panic", r)
			err = fmt.Errorf("%w: %s: %v", ErrGatewayPanic, op, r)
		}
		c.opts.Metrics.RecordGatewayCall(op, err == nil, time.Since(start))
	}()

	return fn(callCtx)
}
