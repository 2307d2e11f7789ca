// Package settings persists motion settings into the service's env file so
// they survive restarts and are picked up by config.Load.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"spicam-server/internal/services/motion"
)

const (
	KeyThreshold = "MOTION_THRESHOLD"
	KeyMinArea   = "MOTION_MIN_AREA"
	KeyCooldown  = "NOTIFICATION_COOLDOWN"
)

// EnvStore reads and writes motion settings in a dotenv file, leaving every
// other key untouched.
type EnvStore struct {
	Path string
	mu   sync.Mutex
}

func NewEnvStore(path string) *EnvStore {
	return &EnvStore{Path: path}
}

// Load returns the persisted settings, defaulting any missing or malformed key.
func (s *EnvStore) Load() (motion.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := motion.DefaultSettings()
	env, err := s.read()
	if err != nil {
		return out, err
	}
	out.Threshold = intOr(env[KeyThreshold], out.Threshold)
	out.MinArea = intOr(env[KeyMinArea], out.MinArea)
	out.CooldownSec = intOr(env[KeyCooldown], out.CooldownSec)
	return out.Clamp(), nil
}

func (s *EnvStore) Save(v motion.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.read()
	if err != nil {
		return err
	}
	env[KeyThreshold] = strconv.Itoa(v.Threshold)
	env[KeyMinArea] = strconv.Itoa(v.MinArea)
	env[KeyCooldown] = strconv.Itoa(v.CooldownSec)

	if err := godotenv.Write(env, s.Path); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.Path, err)
	}
	log.Debug().Str("path", s.Path).Msg("Motion settings persisted")
	return nil
}

func (s *EnvStore) read() (map[string]string, error) {
	env, err := godotenv.Read(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}
	return env, nil
}

func intOr(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
