// Package app wires the scraping pipeline together and runs the polling
// loop: dump the device UI, extract and validate, enrich, deduplicate, and
// push to Nightscout.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrcode/nightscout-bridge/internal/automation"
	"github.com/mrcode/nightscout-bridge/internal/dedup"
	"github.com/mrcode/nightscout-bridge/internal/extract"
	"github.com/mrcode/nightscout-bridge/internal/graph"
	"github.com/mrcode/nightscout-bridge/internal/models"
	"github.com/mrcode/nightscout-bridge/internal/notifications"
	"github.com/mrcode/nightscout-bridge/internal/screen"
	"github.com/mrcode/nightscout-bridge/internal/stats"
	"github.com/mrcode/nightscout-bridge/internal/store"
)

// treeAttempts is how often one cycle retries the hierarchy dump before
// giving up; transient dump failures during animations are common.
const treeAttempts = 3

// safetyAlertStreak is the number of consecutive safety rejections that
// triggers an operator alert.
const safetyAlertStreak = 3

// UIDriver is the device automation surface the service drives.
type UIDriver interface {
	RootNode(ctx context.Context) (*screen.Node, error)
	Click(ctx context.Context, n *screen.Node) error
	Back(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// Remote is the Nightscout surface the service pushes to.
type Remote interface {
	UploadEntry(r *models.GlucoseReading) error
	UploadDeviceStatus(r *models.GlucoseReading) error
	UploadTreatment(t *models.Treatment) error
	LatestTreatment(eventType string) (*models.Treatment, error)
}

// Service runs the scraping loop.
type Service struct {
	settings *models.Settings
	log      *zap.Logger

	driver UIDriver
	remote Remote
	ocr    automation.OCREngine
	store  *store.Store
	notify *notifications.Manager

	mainExtractor   *extract.MainScreenExtractor
	dialogExtractor *extract.DetailDialogExtractor
	menuExtractor   *extract.AgeMenuExtractor
	interpolator    *graph.Interpolator

	bolusDedup *dedup.BolusDeduplicator
	carbDedup  *dedup.CarbDeduplicator
	reconciler *dedup.AgeReconciler

	mu                    sync.Mutex
	ticker                *time.Ticker
	stopChan              chan struct{}
	isRunning             bool
	consecutiveRejections int
	lastAgeCheck          time.Time
	lastGraphScan         time.Time

	// Injectable for tests.
	settle func(time.Duration)
	now    func() time.Time
}

// NewService wires a service from its collaborators.
func NewService(settings *models.Settings, log *zap.Logger, driver UIDriver, remote Remote, ocr automation.OCREngine, st *store.Store) *Service {
	return &Service{
		settings: settings,
		log:      log,
		driver:   driver,
		remote:   remote,
		ocr:      ocr,
		store:    st,
		notify:   notifications.NewManager(settings),

		mainExtractor:   extract.NewMainScreenExtractor(log, settings.DeviceName),
		dialogExtractor: extract.NewDetailDialogExtractor(log),
		menuExtractor:   extract.NewAgeMenuExtractor(log),
		interpolator:    graph.NewInterpolator(log),

		bolusDedup: dedup.NewBolusDeduplicator(),
		carbDedup:  dedup.NewCarbDeduplicator(),
		reconciler: dedup.NewAgeReconciler(time.Duration(settings.AgeToleranceHours * float64(time.Hour))),

		stopChan: make(chan struct{}),
		settle:   time.Sleep,
		now:      time.Now,
	}
}

// Start runs the polling loop until Stop. Blocks; callers run it in a
// goroutine.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	interval := time.Duration(s.settings.PollIntervalSeconds) * time.Second
	s.ticker = time.NewTicker(interval)
	s.mu.Unlock()

	s.runCycle(ctx)

	for {
		select {
		case <-s.ticker.C:
			s.runCycle(ctx)
		case <-s.stopChan:
			s.ticker.Stop()
			return
		case <-ctx.Done():
			s.ticker.Stop()
			return
		}
	}
}

// Stop terminates the polling loop.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	s.isRunning = false
	close(s.stopChan)
}

// runCycle is one full pass: main screen, optional dialog enrichment,
// persistence and upload, plus the lower-cadence age and graph scans.
func (s *Service) runCycle(ctx context.Context) {
	root, err := s.acquireTree(ctx)
	if err != nil {
		s.log.Error("ui hierarchy unavailable", zap.Error(err))
		s.checkStaleness()
		return
	}

	now := s.now()
	reading, err := s.mainExtractor.Extract(root, now)
	if err != nil {
		s.handleRejection(err)
		s.checkStaleness()
		return
	}

	s.mu.Lock()
	s.consecutiveRejections = 0
	s.mu.Unlock()
	s.notify.ClearSafetyState()
	s.notify.ClearStaleState()

	s.enrichFromDialog(ctx, root, reading)

	s.bolusDedup.Filter(reading, now)
	bolus := reading.Bolus

	if err := s.store.Add(reading); err != nil {
		s.log.Error("persisting reading", zap.Error(err))
	}
	s.log.Info("reading accepted",
		zap.Int("value", reading.Value),
		zap.String("unit", string(reading.Unit)),
		zap.String("trend", string(reading.Trend)))

	s.syncPending()

	if bolus != nil {
		t := models.NewBolusTreatment(bolus.Amount, bolus.Time(now), s.settings.DeviceName)
		if err := s.remote.UploadTreatment(t); err != nil {
			s.log.Error("uploading bolus treatment", zap.Error(err))
		} else {
			s.log.Info("bolus treatment uploaded",
				zap.Float64("units", bolus.Amount), zap.Int("ageMinutes", bolus.AgeMinutes))
		}
	}

	if s.ageCheckDue(now) {
		s.runAgeCheck(ctx, now)
	}
	if s.graphScanDue(now) {
		s.runGraphScan(ctx, now)
	}

	s.logSummary()
}

// acquireTree dumps the hierarchy, retrying transient failures.
func (s *Service) acquireTree(ctx context.Context) (*screen.Node, error) {
	var lastErr error
	for attempt := 1; attempt <= treeAttempts; attempt++ {
		root, err := s.driver.RootNode(ctx)
		if err == nil {
			return root, nil
		}
		lastErr = err
		s.log.Debug("hierarchy dump failed", zap.Int("attempt", attempt), zap.Error(err))
		s.settle(s.settleDelay())
	}
	return nil, fmt.Errorf("after %d attempts: %w", treeAttempts, lastErr)
}

// handleRejection classifies an extraction failure. Identity mismatches are
// routine (the app was on another screen); content rejections count toward
// the safety alert streak.
func (s *Service) handleRejection(err error) {
	if errors.Is(err, extract.ErrUnexpectedScreen) {
		s.log.Debug("not on main screen this cycle", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.consecutiveRejections++
	streak := s.consecutiveRejections
	s.mu.Unlock()

	s.log.Warn("reading rejected", zap.Error(err), zap.Int("streak", streak))

	if streak >= safetyAlertStreak {
		if nerr := s.notify.SafetyRejection(streak); nerr != nil {
			s.log.Error("sending safety alert", zap.Error(nerr))
		}
	}
}

// checkStaleness raises the stale alert when the newest accepted reading is
// too old.
func (s *Service) checkStaleness() {
	latest := s.store.Latest()
	if latest == nil {
		return
	}
	age := s.now().Sub(latest.CapturedAt)
	if err := s.notify.StaleData(age); err != nil {
		s.log.Error("sending stale alert", zap.Error(err))
	}
}

// enrichFromDialog opens the info dialog, extracts auxiliary fields onto the
// reading, and closes the dialog again. Every failure here degrades to a
// bare reading, never to a lost cycle.
func (s *Service) enrichFromDialog(ctx context.Context, root *screen.Node, reading *models.GlucoseReading) {
	info := screen.FindElement(root, screen.InfoButton)
	if info == nil {
		return
	}
	if err := s.driver.Click(ctx, info); err != nil {
		s.log.Warn("opening info dialog", zap.Error(err))
		return
	}
	s.settle(s.settleDelay())

	dialogRoot, err := s.driver.RootNode(ctx)
	if err != nil {
		s.log.Warn("dumping info dialog", zap.Error(err))
		s.closeSurface(ctx, nil)
		return
	}

	fields := s.dialogExtractor.Extract(dialogRoot)
	if !fields.Empty() {
		fields.Apply(reading)
	}

	s.closeSurface(ctx, dialogRoot)
}

// closeSurface dismisses the top surface: its close control when one exists,
// the hardware back key otherwise.
func (s *Service) closeSurface(ctx context.Context, root *screen.Node) {
	if root != nil {
		if btn := screen.FindElement(root, screen.CloseButton); btn != nil {
			if err := s.driver.Click(ctx, btn); err == nil {
				s.settle(s.settleDelay())
				return
			}
		}
	}
	if err := s.driver.Back(ctx); err != nil {
		s.log.Warn("back navigation failed", zap.Error(err))
	}
	s.settle(s.settleDelay())
}

func (s *Service) ageCheckDue(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	interval := time.Duration(s.settings.AgeCheckIntervalMin) * time.Minute
	return interval > 0 && now.Sub(s.lastAgeCheck) >= interval
}

func (s *Service) graphScanDue(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	interval := time.Duration(s.settings.GraphScanIntervalMin) * time.Minute
	return interval > 0 && now.Sub(s.lastGraphScan) >= interval
}

// runAgeCheck opens the navigation menu, reads the sensor/reservoir ages and
// reconciles them against Nightscout's change records.
func (s *Service) runAgeCheck(ctx context.Context, now time.Time) {
	s.mu.Lock()
	s.lastAgeCheck = now
	s.mu.Unlock()

	root, err := s.driver.RootNode(ctx)
	if err != nil {
		s.log.Warn("age check: dumping screen", zap.Error(err))
		return
	}
	menuBtn := screen.FindElement(root, screen.MenuButton)
	if menuBtn == nil {
		s.log.Debug("age check: no menu button on screen")
		return
	}
	if err := s.driver.Click(ctx, menuBtn); err != nil {
		s.log.Warn("age check: opening menu", zap.Error(err))
		return
	}
	s.settle(s.settleDelay())

	menuRoot, err := s.driver.RootNode(ctx)
	if err != nil {
		s.log.Warn("age check: dumping menu", zap.Error(err))
		s.closeSurface(ctx, nil)
		return
	}
	info := s.menuExtractor.Extract(menuRoot, now)
	s.closeSurface(ctx, menuRoot)

	if info.Sensor != nil && !info.Sensor.StartedAt.IsZero() {
		s.reconcileAge(models.EventSensorChange, info.Sensor.StartedAt, func(at time.Time) *models.Treatment {
			return models.NewSensorChangeTreatment(at, s.settings.DeviceName, info.Sensor.Name)
		})
	}
	if info.Insulin != nil {
		s.reconcileAge(models.EventInsulinChange, info.Insulin.FilledAt, func(at time.Time) *models.Treatment {
			return models.NewInsulinChangeTreatment(at, s.settings.DeviceName)
		})
	}
}

// reconcileAge compares a locally derived change time against the remote's
// latest record of the same event type, uploading when missing or drifted.
func (s *Service) reconcileAge(eventType string, local time.Time, build func(time.Time) *models.Treatment) {
	latest, err := s.remote.LatestTreatment(eventType)
	if err != nil {
		s.log.Warn("fetching latest treatment", zap.String("eventType", eventType), zap.Error(err))
		return
	}

	var remote *time.Time
	if latest != nil {
		t := latest.Time()
		remote = &t
	}

	decision := s.reconciler.Reconcile(local, remote)
	s.log.Info("age reconciled",
		zap.String("eventType", eventType),
		zap.String("action", string(decision.Action)),
		zap.Float64("diffHours", decision.DiffHours))

	if !decision.NeedsUpload() {
		return
	}
	if err := s.remote.UploadTreatment(build(local)); err != nil {
		s.log.Error("uploading change treatment", zap.String("eventType", eventType), zap.Error(err))
	}
}

// runGraphScan rotates into the landscape graph, OCRs it and derives carb
// treatments from marker positions.
func (s *Service) runGraphScan(ctx context.Context, now time.Time) {
	s.mu.Lock()
	s.lastGraphScan = now
	s.mu.Unlock()

	root, err := s.driver.RootNode(ctx)
	if err != nil {
		s.log.Warn("graph scan: dumping screen", zap.Error(err))
		return
	}
	rotate := screen.FindElement(root, screen.RotateButton)
	if rotate == nil {
		s.log.Debug("graph scan: no rotate control on screen")
		return
	}
	if err := s.driver.Click(ctx, rotate); err != nil {
		s.log.Warn("graph scan: rotating", zap.Error(err))
		return
	}
	s.settle(s.settleDelay())
	defer func() {
		if err := s.driver.Back(ctx); err != nil {
			s.log.Warn("graph scan: leaving landscape", zap.Error(err))
		}
		s.settle(s.settleDelay())
	}()

	png, err := s.driver.Screenshot(ctx)
	if err != nil {
		s.log.Warn("graph scan: screenshot", zap.Error(err))
		return
	}
	blocks, err := s.ocr.Recognize(ctx, png)
	if err != nil {
		s.log.Warn("graph scan: ocr", zap.Error(err))
		return
	}

	pass := s.interpolator.Analyze(blocks, now)
	s.writeOverlay(blocks, pass)

	for _, tr := range pass.Treatments {
		if !tr.HasCarbs() {
			continue
		}
		if !s.carbDedup.Accept(*tr.Carbs, tr.Time) {
			s.log.Debug("carb marker already uploaded",
				zap.Float64("grams", *tr.Carbs), zap.Time("at", tr.Time))
			continue
		}
		t := models.NewCarbTreatment(*tr.Carbs, tr.Time, s.settings.DeviceName)
		if err := s.remote.UploadTreatment(t); err != nil {
			s.log.Error("uploading carb treatment", zap.Error(err))
		} else {
			s.log.Info("carb treatment uploaded",
				zap.Float64("grams", *tr.Carbs), zap.Time("at", tr.Time))
		}
	}
}

// writeOverlay renders the diagnostic overlay when configured.
func (s *Service) writeOverlay(blocks []graph.TextBlock, pass *graph.Pass) {
	dir := s.settings.DebugOverlayDir
	if dir == "" {
		return
	}
	png, err := graph.RenderOverlay(overlayWidth, overlayHeight, blocks, pass)
	if err != nil {
		s.log.Warn("rendering overlay", zap.Error(err))
		return
	}
	name := fmt.Sprintf("graph-%s.png", s.now().Format("20060102-150405"))
	if err := os.WriteFile(filepath.Join(dir, name), png, 0o644); err != nil {
		s.log.Warn("writing overlay", zap.Error(err))
	}
}

// Overlay canvas size, matching a common landscape capture.
const (
	overlayWidth  = 1920
	overlayHeight = 1080
)

// syncPending uploads everything not yet synced, oldest first, stopping at
// the first failure so ordering is preserved on retry.
func (s *Service) syncPending() {
	for _, r := range s.store.Pending() {
		if err := s.remote.UploadEntry(r); err != nil {
			s.log.Warn("uploading entry, will retry next cycle",
				zap.Time("capturedAt", r.CapturedAt), zap.Error(err))
			return
		}
		if err := s.remote.UploadDeviceStatus(r); err != nil {
			s.log.Warn("uploading device status", zap.Error(err))
		}
		if err := s.store.MarkSynced(r.CapturedAt); err != nil {
			s.log.Error("marking reading synced", zap.Error(err))
		}
	}
}

// logSummary emits time-in-range statistics over the last day.
func (s *Service) logSummary() {
	recent := s.store.Recent(24 * time.Hour)
	summary := stats.Summarize(recent, s.settings.TargetLowMgdl, s.settings.TargetHighMgdl)
	if summary.Count == 0 {
		return
	}
	fields := []zap.Field{
		zap.Int("readings", summary.Count),
		zap.Float64("meanMgdl", summary.MeanMgdl),
		zap.Float64("inRangePct", summary.TimeInRangePct),
		zap.Float64("lowPct", summary.LowPct),
		zap.Float64("highPct", summary.HighPct),
	}
	if delta, ok := stats.Delta(recent); ok {
		fields = append(fields, zap.Int("deltaMgdl", delta))
	}
	s.log.Info("24h summary", fields...)
}

func (s *Service) settleDelay() time.Duration {
	return time.Duration(s.settings.SettleDelayMs) * time.Millisecond
}
