package motion

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"spicam-server/internal/clock"
	"spicam-server/internal/services/notification"
)

// FrameSource hands out frames owned by the caller.
type FrameSource interface {
	GetFrame() (gocv.Mat, bool)
}

// RecordingProbe reports whether a recording currently owns the camera.
type RecordingProbe interface {
	Active() bool
}

type Phase int

const (
	PhaseDisarmed Phase = iota
	PhaseWarmup
	PhaseSteady
)

func (p Phase) String() string {
	switch p {
	case PhaseDisarmed:
		return "disarmed"
	case PhaseWarmup:
		return "warmup"
	case PhaseSteady:
		return "steady"
	}
	return "unknown"
}

type Options struct {
	Warmup             time.Duration
	QuietFramesToRearm int
	SampleInterval     time.Duration
	WarmupInterval     time.Duration
	IdleInterval       time.Duration
	PanicRestartDelay  time.Duration
	// SnapshotDir receives a motion_<unix>.jpg still on each notified episode.
	// Empty disables snapshots.
	SnapshotDir string
}

func DefaultOptions() Options {
	return Options{
		Warmup:             3 * time.Second,
		QuietFramesToRearm: 10,
		SampleInterval:     200 * time.Millisecond,
		WarmupInterval:     100 * time.Millisecond,
		IdleInterval:       500 * time.Millisecond,
		PanicRestartDelay:  2 * time.Second,
	}
}

// Result describes one processed tick.
type Result struct {
	Phase    Phase
	Analysis Analysis
	Notified bool
}

type Metrics struct {
	LastDeltaMean    *float64 `json:"last_delta_mean"`
	LastDeltaMax     *float64 `json:"last_delta_max"`
	LastContourArea  *float64 `json:"last_contour_area"`
	LastContourCount *int     `json:"last_contour_count"`
	LastFrameTs      *float64 `json:"last_frame_ts"`
	MotionEnabled    bool     `json:"motion_enabled"`
	BackgroundSet    bool     `json:"background_frame_set"`
	Events           int64    `json:"events"`
}

type Status struct {
	MotionEnabled bool     `json:"motion_enabled"`
	Armed         bool     `json:"armed"`
	LastMotion    *float64 `json:"last_motion"`
}

type Debug struct {
	MotionEnabled        bool     `json:"motion_enabled"`
	LastMotion           *float64 `json:"last_motion"`
	LastNotificationTime *float64 `json:"last_notification_time"`
	MotionEventActive    bool     `json:"motion_event_active"`
	QuietFrameCount      int      `json:"quiet_frame_count"`
	BackgroundFrameSet   bool     `json:"background_frame_set"`
	Phase                string   `json:"phase"`
}

// Detector is the armed/disarmed motion state machine. It raises one
// notification per motion episode, subject to the cooldown.
type Detector struct {
	opts      Options
	source    FrameSource
	recording RecordingProbe
	notifier  notification.Notifier
	store     SettingsStore
	clock     clock.Clock
	logger    zerolog.Logger

	mu               sync.Mutex
	settings         Settings
	enabled          bool
	enabledSince     time.Time
	background       gocv.Mat
	hasBackground    bool
	eventActive      bool
	quiet            int
	lastMotion       time.Time
	lastNotification time.Time
	recordingSeen    bool
	events           int64
	lastAnalysis     *Analysis
	lastFrameTs      time.Time
}

func NewDetector(opts Options, settings Settings, source FrameSource, recording RecordingProbe, notifier notification.Notifier, store SettingsStore, clk clock.Clock, logger zerolog.Logger) *Detector {
	if opts.QuietFramesToRearm <= 0 {
		opts.QuietFramesToRearm = 10
	}
	return &Detector{
		opts:      opts,
		settings:  settings.Clamp(),
		source:    source,
		recording: recording,
		notifier:  notifier,
		store:     store,
		clock:     clk,
		logger:    logger,
	}
}

// Arm enables detection, discards the background and restarts warmup.
func (d *Detector) Arm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = true
	d.enabledSince = d.clock.Now()
	d.dropBackgroundLocked()
	d.eventActive = false
	d.quiet = 0
	d.logger.Info().Msg("Motion detection armed")
}

func (d *Detector) Disarm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = false
	d.enabledSince = time.Time{}
	d.eventActive = false
	d.quiet = 0
	d.logger.Info().Msg("Motion detection disarmed")
}

func (d *Detector) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

func (d *Detector) Settings() Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings
}

// UpdateSettings clamps and applies u, then persists the result. The new
// settings take effect even if persisting fails.
func (d *Detector) UpdateSettings(u SettingsUpdate) (Settings, error) {
	d.mu.Lock()
	s := u.Apply(d.settings)
	d.settings = s
	d.mu.Unlock()

	d.logger.Info().
		Int("threshold", s.Threshold).
		Int("min_area", s.MinArea).
		Int("cooldown", s.CooldownSec).
		Msg("Motion settings updated")

	if d.store == nil {
		return s, nil
	}
	if err := d.store.Save(s); err != nil {
		return s, fmt.Errorf("failed to persist motion settings: %w", err)
	}
	return s, nil
}

// Process runs one detection tick on frame. The caller keeps ownership of
// frame.
func (d *Detector) Process(frame gocv.Mat) Result {
	if frame.Empty() {
		return Result{Phase: d.phase()}
	}
	current := Prepare(frame)

	d.mu.Lock()
	if !d.enabled {
		d.mu.Unlock()
		current.Close()
		return Result{Phase: PhaseDisarmed}
	}

	now := d.clock.Now()
	if !d.hasBackground || now.Sub(d.enabledSince) < d.opts.Warmup {
		d.replaceBackgroundLocked(current)
		d.mu.Unlock()
		return Result{Phase: PhaseWarmup}
	}

	settings := d.settings
	a := Compare(d.background, current, settings.Threshold, settings.MinArea)
	d.lastAnalysis = &a
	d.lastFrameTs = now

	notify := false
	if a.Motion {
		d.lastMotion = now
		d.quiet = 0
		if !d.eventActive {
			d.events++
			cooldown := time.Duration(settings.CooldownSec) * time.Second
			if d.lastNotification.IsZero() || now.Sub(d.lastNotification) >= cooldown {
				d.lastNotification = now
				notify = true
			}
			d.eventActive = true
		}
	} else {
		d.quiet++
		if d.quiet >= d.opts.QuietFramesToRearm {
			d.eventActive = false
		}
	}
	d.replaceBackgroundLocked(current)
	d.mu.Unlock()

	if notify {
		d.logger.Info().
			Float64("max_area", a.MaxArea).
			Int("contours", a.ContourCount).
			Msg("Motion detected")
		d.notifier.Notify(notification.Notification{
			Kind:    notification.KindMotion,
			Message: "Motion detected - notification sent",
			Title:   "Motion Detected",
			Body:    "sPiCam detected motion. Tap to start recording.",
			Data:    map[string]any{"type": "motion_detected"},
		})
		d.writeSnapshot(frame, now)
	}
	return Result{Phase: PhaseSteady, Analysis: a, Notified: notify}
}

// Test sends a test notification and counts it against the cooldown.
func (d *Detector) Test() bool {
	d.mu.Lock()
	d.lastNotification = d.clock.Now()
	d.mu.Unlock()

	return d.notifier.Notify(notification.Notification{
		Kind:    notification.KindMotion,
		Message: "Motion test - notification sent",
		Title:   "Motion Test",
		Body:    "sPiCam test notification. This confirms push delivery.",
		Data:    map[string]any{"type": "motion_test"},
	})
}

func (d *Detector) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{MotionEnabled: d.enabled, Armed: d.enabled, LastMotion: unixSeconds(d.lastMotion)}
}

func (d *Detector) Debug() Debug {
	phase := d.phase()
	d.mu.Lock()
	defer d.mu.Unlock()
	return Debug{
		MotionEnabled:        d.enabled,
		LastMotion:           unixSeconds(d.lastMotion),
		LastNotificationTime: unixSeconds(d.lastNotification),
		MotionEventActive:    d.eventActive,
		QuietFrameCount:      d.quiet,
		BackgroundFrameSet:   d.hasBackground,
		Phase:                phase.String(),
	}
}

func (d *Detector) Metrics() Metrics {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := Metrics{
		MotionEnabled: d.enabled,
		BackgroundSet: d.hasBackground,
		Events:        d.events,
		LastFrameTs:   unixSeconds(d.lastFrameTs),
	}
	if a := d.lastAnalysis; a != nil {
		mean, max, area, count := round2(a.DeltaMean), a.DeltaMax, a.MaxArea, a.ContourCount
		m.LastDeltaMean = &mean
		m.LastDeltaMax = &max
		m.LastContourArea = &area
		m.LastContourCount = &count
	}
	return m
}

// Run samples frames until ctx is cancelled. A panicking tick is logged and
// the loop resumes after PanicRestartDelay.
func (d *Detector) Run(ctx context.Context) {
	d.logger.Info().
		Dur("warmup", d.opts.Warmup).
		Int("quiet_frames", d.opts.QuietFramesToRearm).
		Msg("Motion detection loop started")
	for {
		wait := d.safeStep()
		if err := clock.SleepContext(ctx, d.clock, wait); err != nil {
			d.logger.Info().Msg("Motion detection loop stopped")
			return
		}
	}
}

func (d *Detector) safeStep() (wait time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Msg("Motion tick panicked, restarting")
			wait = d.opts.PanicRestartDelay
		}
	}()
	return d.step()
}

// step performs one loop iteration and returns how long to sleep after it.
func (d *Detector) step() time.Duration {
	if !d.Enabled() {
		return d.opts.IdleInterval
	}
	if d.recording != nil && d.recording.Active() {
		d.mu.Lock()
		d.recordingSeen = true
		d.mu.Unlock()
		return d.opts.IdleInterval
	}
	d.resumeAfterRecording()

	frame, ok := d.source.GetFrame()
	if !ok {
		return d.opts.IdleInterval
	}
	defer frame.Close()

	switch d.Process(frame).Phase {
	case PhaseWarmup:
		return d.opts.WarmupInterval
	case PhaseDisarmed:
		return d.opts.IdleInterval
	}
	return d.opts.SampleInterval
}

// resumeAfterRecording restarts warmup once a recording hands the camera
// back, so exposure settling is not reported as motion.
func (d *Detector) resumeAfterRecording() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.recordingSeen {
		return
	}
	d.recordingSeen = false
	if d.enabled {
		d.enabledSince = d.clock.Now()
		d.dropBackgroundLocked()
		d.eventActive = false
		d.quiet = 0
	}
}

func (d *Detector) phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case !d.enabled:
		return PhaseDisarmed
	case !d.hasBackground || d.clock.Now().Sub(d.enabledSince) < d.opts.Warmup:
		return PhaseWarmup
	}
	return PhaseSteady
}

// Close releases the background frame.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropBackgroundLocked()
}

func (d *Detector) replaceBackgroundLocked(m gocv.Mat) {
	if d.hasBackground {
		d.background.Close()
	}
	d.background = m
	d.hasBackground = true
}

func (d *Detector) dropBackgroundLocked() {
	if d.hasBackground {
		d.background.Close()
	}
	d.background = gocv.Mat{}
	d.hasBackground = false
}

func (d *Detector) writeSnapshot(frame gocv.Mat, now time.Time) {
	if d.opts.SnapshotDir == "" {
		return
	}
	if err := os.MkdirAll(d.opts.SnapshotDir, 0o755); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to create snapshot directory")
		return
	}
	path := filepath.Join(d.opts.SnapshotDir, fmt.Sprintf("motion_%d.jpg", now.Unix()))
	if !gocv.IMWrite(path, frame) {
		d.logger.Warn().Str("path", path).Msg("Failed to write motion snapshot")
	}
}

func unixSeconds(t time.Time) *float64 {
	if t.IsZero() {
		return nil
	}
	v := float64(t.UnixNano()) / float64(time.Second)
	return &v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
