package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spicam-server/internal/clock"
	"spicam-server/internal/config"
	"spicam-server/internal/services/camera"
	"spicam-server/internal/services/media"
	"spicam-server/internal/services/motion"
	"spicam-server/internal/services/notification"
	"spicam-server/internal/services/settings"
)

type noCamera struct{}

func (noCamera) Available() bool { return false }

func (noCamera) Open(camera.Mode) (camera.Session, error) { return nil, camera.ErrUnavailable }

type testEnv struct {
	server   *Server
	dir      string
	detector *motion.Detector
	feed     *notification.Feed
	tokens   *notification.TokenStore
	arbiter  *camera.Arbiter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	clk := clock.NewManual(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	logger := zerolog.Nop()

	cfg := &config.Config{
		Version:     "test",
		Environment: "test",
		DeviceID:    "spicam-test",
		Port:        0,
	}

	arbiter := camera.NewArbiter(camera.Options{
		JPEGQuality:         80,
		Debounce:            2 * time.Second,
		PlaceholderInterval: 100 * time.Millisecond,
		RecordingPoll:       500 * time.Millisecond,
		FreshFrameMaxAge:    time.Second,
	}, noCamera{}, clk, nil, logger)

	tokens, err := notification.LoadTokenStore(filepath.Join(dir, "push_tokens.json"))
	require.NoError(t, err)
	feed := notification.NewFeed(notification.DefaultFeedSize)
	dispatcher := notification.NewDispatcher(notification.DispatcherOptions{QueueSize: 16, Workers: 1}, feed, clk, logger)

	store := settings.NewEnvStore(filepath.Join(dir, ".env"))
	opts := motion.DefaultOptions()
	opts.SnapshotDir = dir
	detector := motion.NewDetector(opts, motion.DefaultSettings(), arbiter, arbiter.Recording(), dispatcher, store, clk, logger)

	mediaSvc := media.NewService(media.Options{Dir: dir, MinDuration: 5, MaxDuration: 120, DefaultDuration: 30}, arbiter, dispatcher, nil, clk, logger)

	s := NewServer(cfg, Deps{
		Arbiter:    arbiter,
		Detector:   detector,
		Media:      mediaSvc,
		Dispatcher: dispatcher,
		Tokens:     tokens,
	})
	require.NoError(t, s.Setup())

	return &testEnv{server: s, dir: dir, detector: detector, feed: feed, tokens: tokens, arbiter: arbiter}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndDeviceInfo(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["picamera"])
	assert.Equal(t, false, body["motion_enabled"])
	assert.Nil(t, body["last_motion"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "spicam-test", decode(t, w)["device_id"])
}

func TestArmDisarmStatus(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/arm", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["motion_enabled"])
	assert.True(t, env.detector.Enabled())

	w = env.do(t, http.MethodGet, "/status", "")
	body := decode(t, w)
	assert.Equal(t, true, body["motion_enabled"])
	assert.Equal(t, true, body["armed"])

	w = env.do(t, http.MethodPost, "/disarm", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["motion_enabled"])
	assert.False(t, env.detector.Enabled())
}

func TestMotionSettingsClampAndPersist(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/motion/settings", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 25, body["threshold"])
	assert.EqualValues(t, 500, body["min_area"])
	assert.EqualValues(t, 60, body["cooldown"])

	w = env.do(t, http.MethodPost, "/motion/settings", `{"threshold": 1000, "cooldown": 1}`)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.EqualValues(t, 50, body["threshold"])
	assert.EqualValues(t, 500, body["min_area"])
	assert.EqualValues(t, 5, body["cooldown"])
	assert.Equal(t, true, body["persisted"])

	data, err := os.ReadFile(filepath.Join(env.dir, ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "MOTION_THRESHOLD=50")
}

func TestMotionSettingsRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/motion/settings", `{"threshold": "high"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, 25, env.detector.Settings().Threshold)
}

func TestMotionDebugAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/motion/debug", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["stream_active"])
	assert.Nil(t, body["latest_stream_frame_age_sec"])
	assert.EqualValues(t, 0, body["push_tokens"])
	assert.Equal(t, "disarmed", body["phase"])

	w = env.do(t, http.MethodGet, "/motion/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Nil(t, body["last_delta_mean"])
	assert.EqualValues(t, 0, body["events"])
}

func TestMotionTestNotifies(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/notifications/register", `{"token":"ExponentPushToken[a]"}`).Code)

	w := env.do(t, http.MethodPost, "/motion/test", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "sent", body["status"])
	assert.Equal(t, true, body["triggered"])
	assert.EqualValues(t, 1, body["tokens"])

	w = env.do(t, http.MethodGet, "/notifications", "")
	var feed []notification.FeedEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &feed))
	require.NotEmpty(t, feed)
	assert.Equal(t, notification.KindMotion, feed[0].Kind)
}

func TestTokenRegistration(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/notifications/register", `{"token":"ExponentPushToken[x]"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "registered", decode(t, w)["status"])
	assert.Equal(t, []string{"ExponentPushToken[x]"}, env.tokens.List())

	w = env.do(t, http.MethodPost, "/notifications/register", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/notifications/unregister", `{"token":"ExponentPushToken[x]"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "unregistered", decode(t, w)["status"])
	assert.Zero(t, env.tokens.Count())

	w = env.do(t, http.MethodPost, "/notifications/unregister", `{"token":"never-seen"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPhotoWithoutCameraSavesPlaceholder(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/photo", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	name, _ := body["filename"].(string)
	assert.True(t, strings.HasPrefix(name, "photo_"), name)
	assert.FileExists(t, filepath.Join(env.dir, name))
}

func TestRecordStartWithoutCamera(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/record/start", `{"duration": 10}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do(t, http.MethodPost, "/record/start", `{"duration": "long"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/record/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["is_recording"])
}

func TestRecordStartWhileRecording(t *testing.T) {
	env := newTestEnv(t)
	require.True(t, env.arbiter.Recording().TryBegin(30*time.Second, time.Now()))

	w := env.do(t, http.MethodPost, "/record/start", "")

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMediaLibrary(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "motion_100.jpg"), []byte("jpg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "recording_20240601_120000.mp4"), []byte("mp4"), 0o644))

	w := env.do(t, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	var items []media.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Len(t, items, 2)

	w = env.do(t, http.MethodGet, "/recordings", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "recording_20240601_120000.mp4", items[0].Filename)

	w = env.do(t, http.MethodGet, "/media/motion_100.jpg", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpg", w.Body.String())

	w = env.do(t, http.MethodGet, "/media/missing.jpg", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not found", decode(t, w)["error"])

	w = env.do(t, http.MethodGet, "/media/..%2F.env", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSystemStats(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/system/stats", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	cam, ok := body["camera"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, cam["available"])
	assert.Equal(t, "none", cam["owner"])
}

func TestStopStream(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/stream/stop", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stopped", decode(t, w)["status"])
}

// cancellingRecorder cancels the request once enough body writes landed.
type cancellingRecorder struct {
	*httptest.ResponseRecorder
	mu     sync.Mutex
	writes int
	limit  int
	cancel context.CancelFunc
}

func (r *cancellingRecorder) count() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if r.writes >= r.limit {
		r.cancel()
	}
}

func (r *cancellingRecorder) Write(p []byte) (int, error) {
	r.count()
	return r.ResponseRecorder.Write(p)
}

func (r *cancellingRecorder) WriteString(s string) (int, error) {
	r.count()
	return r.ResponseRecorder.WriteString(s)
}

func TestStreamServesPlaceholderWithoutCamera(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &cancellingRecorder{ResponseRecorder: httptest.NewRecorder(), limit: 15, cancel: cancel}
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)

	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", rec.Header().Get("Content-Type"))
	body := rec.Body.Bytes()
	assert.GreaterOrEqual(t, bytes.Count(body, []byte("--frame\r\n")), 2)
	assert.Contains(t, string(body), "Content-Type: image/jpeg")
	assert.False(t, env.arbiter.StreamActive())
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodOptions, "/arm", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestListenBindsBeforeServing(t *testing.T) {
	env := newTestEnv(t)

	addr, err := env.server.Listen()
	require.NoError(t, err)
	local := fmt.Sprintf("127.0.0.1:%d", addr.(*net.TCPAddr).Port)

	// Bound but not serving yet: the connection is accepted by the kernel.
	conn, err := net.Dial("tcp", local)
	require.NoError(t, err)
	conn.Close()

	served := make(chan error, 1)
	go func() { served <- env.server.Start() }()

	resp, err := http.Get("http://" + local + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, env.server.Stop(ctx))
	assert.NoError(t, <-served)
}
