package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"spicam-server/internal/clock"
	"spicam-server/internal/config"
	"spicam-server/internal/logging"
	"spicam-server/internal/services/button"
	"spicam-server/internal/services/camera"
	"spicam-server/internal/services/media"
	"spicam-server/internal/services/messaging"
	"spicam-server/internal/services/motion"
	"spicam-server/internal/services/notification"
	"spicam-server/internal/services/settings"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config     *config.Config
	Arbiter    *camera.Arbiter
	Detector   *motion.Detector
	Media      *media.Service
	Dispatcher *notification.Dispatcher
	Tokens     *notification.TokenStore
	Messaging  *messaging.Service
	Button     *button.Poller

	clock  clock.Clock
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServiceContainer creates a new service container
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	return newServiceContainer(cfg, clock.Real{})
}

func newServiceContainer(cfg *config.Config, clk clock.Clock) (*ServiceContainer, error) {
	if err := os.MkdirAll(cfg.MediaDir, 0o755); err != nil {
		return nil, err
	}

	// Event bus is optional; a missing broker only disables bus delivery.
	var bus *messaging.Service
	if cfg.NatsEnabled {
		svc, err := messaging.NewService(cfg)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NatsURL).Msg("NATS not available, continuing without event bus")
		} else {
			bus = svc
		}
	}

	tokens, err := notification.LoadTokenStore(cfg.PushTokensFile)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.PushTokensFile).Msg("Push token file unreadable, starting with no tokens")
	}

	var sinks []notification.Sink
	if cfg.PushEnabled {
		sinks = append(sinks, notification.NewExpoSink(
			cfg.ExpoPushURL,
			tokens,
			cfg.PushTimeout,
			cfg.PushRatePerSecond,
			clk,
			logging.NewServiceLogger(cfg, "expo"),
		))
	}
	if bus != nil {
		sinks = append(sinks, notification.NewNATSSink(bus, cfg.NotificationsSubject, cfg.DeviceID))
	}
	dispatcher := notification.NewDispatcher(notification.DispatcherOptions{
		QueueSize:       cfg.NotificationQueue,
		Workers:         cfg.NotificationWorkers,
		DeliveryTimeout: cfg.PushTimeout,
	}, notification.NewFeed(cfg.NotificationFeedSize), clk, logging.NewServiceLogger(cfg, "notifications"), sinks...)

	camOpts := camera.OptionsFromConfig(cfg)
	camLogger := logging.NewServiceLogger(cfg, "camera")
	arbiter := camera.NewArbiter(
		camOpts,
		camera.NewV4L2Device(cfg.CameraIndex, cfg.CameraEnabled, camOpts, camLogger),
		clk,
		camera.NewFFmpegTranscoder(cfg.FFmpegPath),
		camLogger,
	)

	var publisher media.ReadyPublisher
	if bus != nil {
		publisher = bus
	}
	mediaSvc := media.NewService(media.OptionsFromConfig(cfg), arbiter, dispatcher, publisher, clk, logging.NewServiceLogger(cfg, "media"))

	motionOpts := motion.DefaultOptions()
	motionOpts.Warmup = cfg.MotionWarmup
	motionOpts.QuietFramesToRearm = cfg.QuietFramesToRearm
	motionOpts.PanicRestartDelay = cfg.PanicRestartDelay
	motionOpts.SnapshotDir = cfg.MediaDir
	initial := motion.Settings{
		Threshold:   cfg.MotionThreshold,
		MinArea:     cfg.MotionMinArea,
		CooldownSec: cfg.NotificationCooldown,
	}
	detector := motion.NewDetector(
		motionOpts,
		initial,
		arbiter,
		arbiter.Recording(),
		dispatcher,
		settings.NewEnvStore(settingsPath(cfg)),
		clk,
		logging.NewServiceLogger(cfg, "motion"),
	)

	sc := &ServiceContainer{
		Config:     cfg,
		Arbiter:    arbiter,
		Detector:   detector,
		Media:      mediaSvc,
		Dispatcher: dispatcher,
		Tokens:     tokens,
		Messaging:  bus,
		clock:      clk,
	}

	if cfg.ButtonEnabled {
		pin, err := button.OpenPin(cfg.ButtonPin)
		if err != nil {
			log.Warn().Err(err).Str("pin", cfg.ButtonPin).Msg("Shutter button disabled")
		} else {
			sc.Button = button.NewPoller(pin, &buttonActions{media: mediaSvc}, cfg.ButtonPollInterval, clk, logging.NewServiceLogger(cfg, "button"))
		}
	}

	return sc, nil
}

func settingsPath(cfg *config.Config) string {
	if cfg.EnvFile == "" {
		return config.DefaultEnvFile
	}
	return filepath.Clean(cfg.EnvFile)
}

// Start launches the background loops: notification workers, the delayed
// motion loop, the shutter button and a one-off retention sweep.
func (sc *ServiceContainer) Start(ctx context.Context) {
	ctx, sc.cancel = context.WithCancel(ctx)

	sc.Dispatcher.Start(ctx)

	sc.goLoop(func() {
		if err := clock.SleepContext(ctx, sc.clock, sc.Config.MotionStartDelay); err != nil {
			return
		}
		if sc.Config.MotionArmOnStart {
			sc.Detector.Arm()
		}
		sc.Detector.Run(ctx)
	})

	if sc.Button != nil {
		sc.goLoop(func() { sc.Button.Run(ctx) })
	}

	sc.goLoop(func() {
		if err := clock.SleepContext(ctx, sc.clock, sc.Config.CleanupDelay); err != nil {
			return
		}
		removed, err := sc.Media.CleanupOld()
		if err != nil {
			log.Warn().Err(err).Msg("Media cleanup failed")
			return
		}
		log.Info().Int("removed", removed).Int("retention_days", sc.Config.MediaRetentionDays).Msg("Media cleanup complete")
	})

	log.Info().
		Bool("camera", sc.Arbiter.Available()).
		Bool("nats", sc.Messaging.IsConnected()).
		Bool("button", sc.Button != nil).
		Dur("motion_start_delay", sc.Config.MotionStartDelay).
		Msg("Services started")
}

func (sc *ServiceContainer) goLoop(fn func()) {
	sc.wg.Add(1)
	go func() {
		defer sc.wg.Done()
		fn()
	}()
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	if sc.cancel != nil {
		sc.cancel()
	}

	done := make(chan struct{})
	go func() {
		sc.wg.Wait()
		sc.Media.Wait()
		close(done)
	}()
	var errs []error
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, errors.New("background tasks did not stop before the shutdown deadline"))
	}

	sc.Arbiter.Shutdown()
	sc.Detector.Close()
	sc.Dispatcher.Stop()

	if err := sc.Messaging.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// buttonActions maps shutter presses onto the media service.
type buttonActions struct {
	media *media.Service
}

func (b *buttonActions) Photo() {
	if _, err := b.media.CapturePhoto(media.SourceButton); err != nil {
		log.Error().Err(err).Msg("Button photo failed")
	}
}

func (b *buttonActions) Record(seconds int) {
	if _, err := b.media.StartRecording(seconds, media.SourceButton); err != nil {
		log.Warn().Err(err).Int("duration", seconds).Msg("Button recording rejected")
	}
}
