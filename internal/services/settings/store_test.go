package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spicam-server/internal/services/motion"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	s := NewEnvStore(filepath.Join(t.TempDir(), ".env"))

	got, err := s.Load()

	require.NoError(t, err)
	assert.Equal(t, motion.DefaultSettings(), got)
}

func TestSaveKeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=9000\nMOTION_THRESHOLD=10\n"), 0o644))
	s := NewEnvStore(path)

	require.NoError(t, s.Save(motion.Settings{Threshold: 30, MinArea: 250, CooldownSec: 120}))

	env, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", env["PORT"])
	assert.Equal(t, "30", env[KeyThreshold])
	assert.Equal(t, "250", env[KeyMinArea])
	assert.Equal(t, "120", env[KeyCooldown])

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, motion.Settings{Threshold: 30, MinArea: 250, CooldownSec: 120}, got)
}

func TestLoadClampsAndIgnoresGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MOTION_THRESHOLD=500\nMOTION_MIN_AREA=lots\n"), 0o644))

	got, err := NewEnvStore(path).Load()

	require.NoError(t, err)
	assert.Equal(t, 50, got.Threshold)
	assert.Equal(t, motion.DefaultMinArea, got.MinArea)
	assert.Equal(t, motion.DefaultCooldown, got.CooldownSec)
}

func TestSaveCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	require.NoError(t, NewEnvStore(path).Save(motion.DefaultSettings()))

	assert.FileExists(t, path)
}
