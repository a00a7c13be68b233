package startup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/catalog"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/config"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/logging"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/monitoring"
)

// CatalogPrefetcher assembles the app catalog once per run.
type CatalogPrefetcher interface {
	Prefetch(ctx context.Context) catalog.Result
}

// Hooks are the collaborator callbacks the orchestrator drives. All of them
// are optional.
type Hooks struct {
	// Restart restarts the daemon process on retry. Nil when the daemon is
	// not locally managed (wifi transport has no process to restart).
	Restart func(ctx context.Context) error
	// Reload is the last-resort recovery used only when Restart is nil:
	// tear down and rebuild the daemon-facing components wholesale.
	Reload func(ctx context.Context) error
	// OnReady fires exactly once, the first time Ready is reached.
	OnReady func()
	// OnTransition fires after every phase change with the new snapshot.
	OnTransition func(Status)
}

// Status is the externally visible startup snapshot.
type Status struct {
	RunID          string    `json:"run_id"`
	Phase          string    `json:"phase"`
	Progress       int       `json:"progress"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	Scan           ScanState `json:"scan"`
	Error          *Failure  `json:"error,omitempty"`
}

// Options wires an orchestrator together.
type Options struct {
	Config    config.StartupConfig
	Transport string
	Poller    *HealthPoller
	Detector  *Detector
	Gate      *Gate
	Catalog   CatalogPrefetcher
	Hooks     Hooks
	Log       *logging.Logger
	Metrics   *monitoring.Metrics
}

// Orchestrator sequences the startup phases: scan, daemon connect, movement
// detection, stream sync, catalog load, ready. Exactly one phase is active
// at a time and transitions are forward-only; the only way back is an
// explicit retry from the error state.
//
// One goroutine drives the phases of a run; a second counts elapsed seconds
// and enforces the wait budgets. Both are keyed to a run generation so
// anything outliving its run is a no-op.
type Orchestrator struct {
	cfg       config.StartupConfig
	transport string
	poller    *HealthPoller
	detector  *Detector
	gate      *Gate
	catalog   CatalogPrefetcher
	hooks     Hooks
	log       *logging.Logger
	metrics   *monitoring.Metrics

	// tickEvery is the elapsed-counter cadence. One second: timeouts track
	// wall time per phase, decoupled from poll jitter.
	tickEvery time.Duration

	mu         sync.Mutex
	baseCtx    context.Context
	cancel     context.CancelFunc
	generation uint64
	runID      string
	phase      Phase
	progress   int
	elapsed    int
	failure    *Failure
	scan       *ScanTracker
	scanDone   chan struct{}
	scanClosed bool
	readyFired bool
	started    bool
	closed     bool
}

// New creates an orchestrator. Call Start to begin the first run.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		cfg:       opts.Config,
		transport: opts.Transport,
		poller:    opts.Poller,
		detector:  opts.Detector,
		gate:      opts.Gate,
		catalog:   opts.Catalog,
		hooks:     opts.Hooks,
		log:       opts.Log.Named("startup"),
		metrics:   opts.Metrics,
		tickEvery: time.Second,
		phase:     PhaseScanning,
	}
	o.scan = NewScanTracker(o.onScanComplete)
	return o
}

// Start begins the first run. Subsequent calls are no-ops.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.started || o.closed {
		o.mu.Unlock()
		return
	}
	o.started = true
	o.baseCtx = ctx
	o.mu.Unlock()

	o.begin()
}

// begin starts a fresh run in the Scanning phase, cancelling whatever run
// came before it.
func (o *Orchestrator) begin() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	if o.cancel != nil {
		o.cancel()
	}
	runCtx, cancel := context.WithCancel(o.baseCtx)
	o.cancel = cancel
	o.generation++
	gen := o.generation
	o.runID = uuid.NewString()
	o.failure = nil
	o.scanDone = make(chan struct{})
	o.scanClosed = false
	o.scan.Reset()
	o.detector.Reset()
	o.setPhaseLocked(PhaseScanning)
	st := o.statusLocked()
	o.mu.Unlock()

	o.log.Info("startup sequence begins",
		zap.String("run_id", st.RunID),
		zap.String("transport", o.transport),
	)

	go o.tickElapsed(runCtx, gen)
	go o.run(runCtx, gen)
	o.notify(st)
}

// run drives one run through its phases. Every helper returns false when the
// run was cancelled or failed; the chain simply unwinds.
func (o *Orchestrator) run(ctx context.Context, gen uint64) {
	if !o.awaitScan(ctx) {
		return
	}
	if !o.connect(ctx, gen) {
		return
	}
	if !o.detectMovement(ctx, gen) {
		return
	}
	if !o.syncStream(ctx, gen) {
		return
	}
	if !o.loadApps(ctx, gen) {
		return
	}
	o.finish(gen)
}

// awaitScan blocks until the UI reports every hardware part scanned. The
// scan is visual and signal-driven; it has no poller and no timeout.
func (o *Orchestrator) awaitScan(ctx context.Context) bool {
	o.mu.Lock()
	done := o.scanDone
	o.mu.Unlock()

	select {
	case <-ctx.Done():
		return false
	case <-done:
		return ctx.Err() == nil
	}
}

// connect polls the daemon until it reports a control mode. The elapsed
// ticker enforces the daemon budget; this loop only polls.
func (o *Orchestrator) connect(ctx context.Context, gen uint64) bool {
	if !o.enterPhase(gen, PhaseConnecting) {
		return false
	}
	tick := time.NewTicker(o.cfg.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-tick.C:
			r, polled := o.poller.Poll(ctx)
			if polled && r.Ready {
				o.log.Info("daemon ready", zap.String("control_mode", r.ControlMode))
				return true
			}
		}
	}
}

// detectMovement polls telemetry until the robot shows life: values moving
// beyond the tolerance, or enough consecutive valid reads from a still
// robot.
func (o *Orchestrator) detectMovement(ctx context.Context, gen uint64) bool {
	if !o.enterPhase(gen, PhaseDetectingMovement) {
		return false
	}
	o.detector.Reset()

	tick := time.NewTicker(o.cfg.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-tick.C:
			r, polled := o.poller.Poll(ctx)
			if !polled {
				continue
			}
			sample, ok := SampleFrom(r.State)
			if !ok {
				o.detector.Invalid()
				continue
			}
			if o.detector.Observe(sample) {
				o.log.Info("movement detected")
				return true
			}
		}
	}
}

// syncStream waits for the push stream to stabilize. Timeout here is a
// soft-fail: the run proceeds without the derived joints.
func (o *Orchestrator) syncStream(ctx context.Context, gen uint64) bool {
	if !o.enterPhase(gen, PhaseSyncingStream) {
		return false
	}
	res := o.gate.Wait(ctx, o.cfg.SyncTimeout)
	if ctx.Err() != nil {
		return false
	}
	if res == GateTimedOut {
		o.log.Warn("proceeding without a stable stream")
	}
	return true
}

// loadApps prefetches the catalog and holds the phase for the minimum
// display delay. Partial fetches degrade the catalog, never the run.
func (o *Orchestrator) loadApps(ctx context.Context, gen uint64) bool {
	if !o.enterPhase(gen, PhaseLoadingApps) {
		return false
	}
	delay := time.After(o.cfg.LoadingDelay)

	result := o.catalog.Prefetch(ctx)
	if result.Partial() {
		o.log.Warn("catalog prefetch degraded",
			zap.Int("entries", result.Entries),
			zap.Strings("failed_sources", result.FailedSources),
		)
	}

	select {
	case <-ctx.Done():
		return false
	case <-delay:
	}
	return ctx.Err() == nil
}

// finish flips the run to Ready and fires OnReady once, ever.
func (o *Orchestrator) finish(gen uint64) {
	o.mu.Lock()
	if gen != o.generation || o.closed || o.phase == PhaseError {
		o.mu.Unlock()
		return
	}
	o.setPhaseLocked(PhaseReady)
	first := !o.readyFired
	o.readyFired = true
	st := o.statusLocked()
	o.mu.Unlock()

	o.log.Info("startup complete", zap.String("run_id", st.RunID))
	if first && o.hooks.OnReady != nil {
		o.hooks.OnReady()
	}
	o.notify(st)
}

// tickElapsed counts seconds since phase entry and enforces the Connecting
// and DetectingMovement budgets. Timeout is cooperative: checked on each
// tick, never preemptive. A poll success can race a budget tick, so the
// failure only applies if the run is still in the phase being timed out.
func (o *Orchestrator) tickElapsed(ctx context.Context, gen uint64) {
	tick := time.NewTicker(o.tickEvery)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			o.mu.Lock()
			if gen != o.generation || o.closed || o.phase == PhaseError || o.phase == PhaseReady {
				o.mu.Unlock()
				return
			}
			o.elapsed++
			phase, elapsed := o.phase, o.elapsed
			o.mu.Unlock()

			switch phase {
			case PhaseConnecting:
				if elapsed > budgetSeconds(o.cfg.DaemonTimeout) &&
					o.failFrom(gen, phase, TimeoutFailure(StageDaemon, o.transport)) {
					return
				}
			case PhaseDetectingMovement:
				if elapsed > budgetSeconds(o.cfg.MovementTimeout) &&
					o.failFrom(gen, phase, TimeoutFailure(StageMovement, o.transport)) {
					return
				}
			}
		}
	}
}

func budgetSeconds(d time.Duration) int {
	return int(d / time.Second)
}

// enterPhase transitions the run into p. It reports false when the run is
// stale, failed, or closed, which stops the phase chain.
func (o *Orchestrator) enterPhase(gen uint64, p Phase) bool {
	o.mu.Lock()
	if gen != o.generation || o.closed || o.phase == PhaseError {
		o.mu.Unlock()
		return false
	}
	prev := o.phase
	o.metrics.ObservePhaseDuration(prev.String(), time.Duration(o.elapsed)*time.Second)
	o.setPhaseLocked(p)
	st := o.statusLocked()
	o.mu.Unlock()

	o.log.Info("phase transition",
		zap.String("from", prev.String()),
		zap.String("to", p.String()),
	)
	o.notify(st)
	return true
}

// fail moves the run to the terminal error state and cancels its pollers.
// Stale and duplicate failures are no-ops.
func (o *Orchestrator) fail(gen uint64, f *Failure) {
	o.failWhere(gen, nil, f)
}

// failFrom fails only if the run is still in the given phase. It reports
// whether the failure applied.
func (o *Orchestrator) failFrom(gen uint64, from Phase, f *Failure) bool {
	return o.failWhere(gen, &from, f)
}

func (o *Orchestrator) failWhere(gen uint64, from *Phase, f *Failure) bool {
	o.mu.Lock()
	if gen != o.generation || o.closed || o.phase == PhaseError {
		o.mu.Unlock()
		return false
	}
	if from != nil && o.phase != *from {
		o.mu.Unlock()
		return false
	}
	o.failure = f
	o.setPhaseLocked(PhaseError)
	if o.cancel != nil {
		o.cancel()
	}
	st := o.statusLocked()
	o.mu.Unlock()

	o.log.Error("startup failed",
		zap.String("kind", string(f.Kind)),
		zap.String("stage", string(f.Phase)),
		zap.String("message", f.Message),
	)
	o.notify(st)
	return true
}

// setPhaseLocked applies a phase change. Error keeps the previous progress
// so the bar does not jump under the error screen.
func (o *Orchestrator) setPhaseLocked(p Phase) {
	o.phase = p
	o.elapsed = 0
	if pr, ok := phaseProgress[p]; ok {
		o.progress = pr
	}
	o.metrics.RecordPhase(p.String(), int(p))
}

// onScanComplete is the tracker's completion callback. A stale callback
// from a previous run sees a reset tracker and does nothing.
func (o *Orchestrator) onScanComplete() {
	o.mu.Lock()
	ch := o.scanDone
	if o.closed || ch == nil || o.scanClosed || !o.scan.Complete() {
		o.mu.Unlock()
		return
	}
	o.scanClosed = true
	o.mu.Unlock()
	close(ch)
}

// PartScanned records one hardware scan signal from the UI.
func (o *Orchestrator) PartScanned(partID string, ordinal, total int) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	o.scan.PartScanned(partID, ordinal, total)
}

// ReportHardwareFault records an externally detected hardware fault. It
// blocks the Ready transition and shows the blocking error screen; only a
// retry clears it.
func (o *Orchestrator) ReportHardwareFault(message string) {
	o.metrics.IncHardwareFaults()
	o.mu.Lock()
	gen := o.generation
	o.mu.Unlock()
	o.fail(gen, HardwareFailure(message))
}

// Retry recovers from the error state: cancel everything in flight, restart
// the daemon through the hook, then re-enter Scanning with fresh counters.
// Without a restart hook it falls back to the full reload action.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.phase != PhaseError {
		o.mu.Unlock()
		return ErrNotInError
	}
	cancel := o.cancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.metrics.IncRetries()

	switch {
	case o.hooks.Restart != nil:
		o.log.Info("retry: restarting daemon")
		if err := o.hooks.Restart(ctx); err != nil {
			return fmt.Errorf("daemon restart: %w", err)
		}
	case o.hooks.Reload != nil:
		// No restart hook. Last resort: rebuild the daemon-facing stack.
		o.log.Warn("retry: no restart hook, falling back to full reload")
		o.metrics.IncReloadFallbacks()
		if err := o.hooks.Reload(ctx); err != nil {
			return fmt.Errorf("full reload: %w", err)
		}
	}

	o.begin()
	return nil
}

// Status returns the current snapshot.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

// CurrentError returns the active failure, nil when none.
func (o *Orchestrator) CurrentError() *Failure {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failure
}

func (o *Orchestrator) statusLocked() Status {
	return Status{
		RunID:          o.runID,
		Phase:          o.phase.String(),
		Progress:       o.progress,
		ElapsedSeconds: o.elapsed,
		Scan:           o.scan.State(),
		Error:          o.failure,
	}
}

func (o *Orchestrator) notify(st Status) {
	if o.hooks.OnTransition != nil {
		o.hooks.OnTransition(st)
	}
}

// Close tears down the active run. Idempotent; the orchestrator cannot be
// restarted afterwards.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	cancel := o.cancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
