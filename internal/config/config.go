package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const DefaultEnvFile = ".env"

type Config struct {
	// Application
	Version     string
	Environment string
	DeviceID    string
	Port        int
	LogLevel    string
	EnvFile     string // also receives persisted motion settings

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// NATS (event bus for notifications and media hand-off)
	// Default: nats://localhost:4222, nats://nats:4222 inside Docker
	NatsEnabled          bool
	NatsURL              string
	NatsConnectTimeout   time.Duration
	NatsReconnectWait    time.Duration
	NatsMaxReconnects    int
	NatsDrainTimeout     time.Duration
	NotificationsSubject string
	MediaSubject         string

	// gRPC health endpoint for the supervisor
	GRPCHealthEnabled bool
	GRPCPort          int

	// Camera device
	CameraEnabled bool
	CameraIndex   int
	StreamWidth   int
	StreamHeight  int
	RecordWidth   int
	RecordHeight  int
	RecordFPS     float64
	JPEGQuality   int

	// Arbitration
	SettleDelay   time.Duration // pause between close and reopen
	OpenAttempts  int
	OpenRetryBase time.Duration
	OpenRetryMax  time.Duration

	// Live stream
	StreamDebounce        time.Duration
	StreamWarmup          time.Duration
	StreamStale           time.Duration
	StreamFrameInterval   time.Duration
	PlaceholderInterval   time.Duration
	RecordingPollInterval time.Duration
	LatestFrameInterval   time.Duration
	FreshFrameMaxAge      time.Duration

	// Motion detection
	MotionThreshold      int
	MotionMinArea        int
	NotificationCooldown int // seconds
	QuietFramesToRearm   int
	MotionWarmup         time.Duration
	MotionStartDelay     time.Duration
	MotionArmOnStart     bool

	// Media
	MediaDir           string
	MediaRetentionDays int
	CleanupDelay       time.Duration
	FFmpegPath         string

	// Recording
	DefaultRecordDuration int // seconds
	MinRecordDuration     int
	MaxRecordDuration     int
	RecordPreRoll         time.Duration

	// Notifications
	PushEnabled          bool
	ExpoPushURL          string
	PushTokensFile       string
	PushTimeout          time.Duration
	PushRatePerSecond    float64
	NotificationQueue    int
	NotificationWorkers  int
	NotificationFeedSize int

	// Shutter button
	ButtonEnabled      bool
	ButtonPin          string
	ButtonPollInterval time.Duration

	// Swagger Configuration
	SwaggerHost string

	// Graceful Shutdown
	ShutdownTimeout time.Duration

	// Delay before restarting a crashed goroutine
	PanicRestartDelay time.Duration
}

// Load reads envFile (when present) into the process environment and builds
// the configuration from it.
func Load(envFile string) *Config {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Debug().Err(err).Str("file", envFile).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Str("file", envFile).Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		DeviceID:    getEnv("DEVICE_ID", "spicam-1"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		EnvFile:     envFile,

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// NATS
		NatsEnabled:          getEnvBool("NATS_ENABLED", false),
		NatsURL:              getNatsURL(),
		NatsConnectTimeout:   getEnvDuration("NATS_CONNECT_TIMEOUT", 5*time.Second),
		NatsReconnectWait:    getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:    getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		NatsDrainTimeout:     getEnvDuration("NATS_DRAIN_TIMEOUT", 5*time.Second),
		NotificationsSubject: getEnv("NOTIFICATIONS_SUBJECT", "spicam.notifications"),
		MediaSubject:         getEnv("MEDIA_SUBJECT", "spicam.media.ready"),

		// gRPC health
		GRPCHealthEnabled: getEnvBool("GRPC_HEALTH_ENABLED", false),
		GRPCPort:          getEnvInt("GRPC_PORT", 50051),

		// Camera device
		CameraEnabled: getEnvBool("CAMERA_ENABLED", true),
		CameraIndex:   getEnvInt("CAMERA_INDEX", 0),
		StreamWidth:   getEnvInt("STREAM_WIDTH", 640),
		StreamHeight:  getEnvInt("STREAM_HEIGHT", 480),
		RecordWidth:   getEnvInt("RECORD_WIDTH", 1920),
		RecordHeight:  getEnvInt("RECORD_HEIGHT", 1080),
		RecordFPS:     getEnvFloat("RECORD_FPS", 30),
		JPEGQuality:   getEnvInt("JPEG_QUALITY", 80),

		// Arbitration
		SettleDelay:   getEnvDuration("CAMERA_SETTLE_DELAY", 500*time.Millisecond),
		OpenAttempts:  getEnvInt("CAMERA_OPEN_ATTEMPTS", 3),
		OpenRetryBase: getEnvDuration("CAMERA_OPEN_RETRY_BASE", 500*time.Millisecond),
		OpenRetryMax:  getEnvDuration("CAMERA_OPEN_RETRY_MAX", 4*time.Second),

		// Live stream
		StreamDebounce:        getEnvDuration("STREAM_DEBOUNCE", 2*time.Second),
		StreamWarmup:          getEnvDuration("STREAM_WARMUP", 5*time.Second),
		StreamStale:           getEnvDuration("STREAM_STALE", 3*time.Second),
		StreamFrameInterval:   getEnvDuration("STREAM_FRAME_INTERVAL", 33*time.Millisecond),
		PlaceholderInterval:   getEnvDuration("PLACEHOLDER_INTERVAL", 100*time.Millisecond),
		RecordingPollInterval: getEnvDuration("RECORDING_POLL_INTERVAL", 500*time.Millisecond),
		LatestFrameInterval:   getEnvDuration("LATEST_FRAME_INTERVAL", 200*time.Millisecond),
		FreshFrameMaxAge:      getEnvDuration("FRESH_FRAME_MAX_AGE", time.Second),

		// Motion detection
		MotionThreshold:      getEnvInt("MOTION_THRESHOLD", 25),
		MotionMinArea:        getEnvInt("MOTION_MIN_AREA", 500),
		NotificationCooldown: getEnvInt("NOTIFICATION_COOLDOWN", 60),
		QuietFramesToRearm:   getEnvInt("QUIET_FRAMES_TO_REARM", 10),
		MotionWarmup:         getEnvDuration("MOTION_WARMUP", 3*time.Second),
		MotionStartDelay:     getEnvDuration("MOTION_START_DELAY", 5*time.Second),
		MotionArmOnStart:     getEnvBool("MOTION_ARM_ON_START", true),

		// Media
		MediaDir:           getEnv("MEDIA_DIR", "./media"),
		MediaRetentionDays: getEnvInt("MEDIA_RETENTION_DAYS", 7),
		CleanupDelay:       getEnvDuration("CLEANUP_DELAY", 10*time.Second),
		FFmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),

		// Recording
		DefaultRecordDuration: getEnvInt("DEFAULT_RECORD_DURATION", 30),
		MinRecordDuration:     getEnvInt("MIN_RECORD_DURATION", 5),
		MaxRecordDuration:     getEnvInt("MAX_RECORD_DURATION", 120),
		RecordPreRoll:         getEnvDuration("RECORD_PRE_ROLL", time.Second),

		// Notifications
		PushEnabled:          getEnvBool("PUSH_ENABLED", true),
		ExpoPushURL:          getEnv("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send"),
		PushTokensFile:       getEnv("PUSH_TOKENS_FILE", "./push_tokens.json"),
		PushTimeout:          getEnvDuration("PUSH_TIMEOUT", 10*time.Second),
		PushRatePerSecond:    getEnvFloat("PUSH_RATE_PER_SECOND", 1),
		NotificationQueue:    getEnvInt("NOTIFICATION_QUEUE_SIZE", 64),
		NotificationWorkers:  getEnvInt("NOTIFICATION_WORKERS", 2),
		NotificationFeedSize: getEnvInt("NOTIFICATION_FEED_SIZE", 50),

		// Shutter button
		ButtonEnabled:      getEnvBool("BUTTON_ENABLED", false),
		ButtonPin:          getEnv("BUTTON_PIN", "GPIO17"),
		ButtonPollInterval: getEnvDuration("BUTTON_POLL_INTERVAL", 10*time.Millisecond),

		// Swagger
		SwaggerHost: getEnv("SWAGGER_HOST", "localhost:8000"),

		// Graceful Shutdown
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		PanicRestartDelay: getEnvDuration("PANIC_RESTART_DELAY", 2*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func isRunningInDocker() bool {
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}
	if isRunningInDocker() {
		return "nats://nats:4222"
	}
	return "nats://localhost:4222"
}
