// main_test.go
//go:build unit
// +build unit

package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-button-wars/config"
	"go-button-wars/hal"
	"go-button-wars/logger"
	"go-button-wars/models"
	"go-button-wars/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.SetOutput(io.Discard)
}

// newTestApp boots a sim device on a fake clock with bots and remote sinks off.
func newTestApp(t *testing.T) (*app, *clockwork.FakeClock) {
	t.Helper()
	cfg := config.Default()
	cfg.SimBots = false
	clock := clockwork.NewFakeClock()
	a, err := newApp(context.Background(), cfg, clock)
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a, clock
}

func get(h http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	h.ServeHTTP(w, req)
	return w
}

// Test: boot leaves the game in Waiting with the watchdog armed and fed once started
func TestNewApp_Boot(t *testing.T) {
	a, _ := newTestApp(t)

	require.NotNil(t, a.board.Sim)
	g, err := a.store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Waiting, g.State)
	assert.False(t, a.failSafe.Armed())
	assert.False(t, a.board.Sim.Watchdog.Expired())
	assert.Nil(t, a.nats)
	assert.Nil(t, a.metrics)
}

// Test: an unknown backend fails the boot
func TestNewApp_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.HALBackend = "arduino"
	_, err := newApp(context.Background(), cfg, clockwork.NewFakeClock())
	assert.ErrorIs(t, err, hal.ErrUnknownBackend)
}

// Test: the router exposes health, status, events and the sim buttons
func TestRouter(t *testing.T) {
	a, _ := newTestApp(t)
	h := a.handler()

	w := get(h, "GET", "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(h, "GET", "/status")
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "Waiting", status["state"])

	w = get(h, "POST", "/sim/buttons/p1/press")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, hal.Low, a.board.Sim.ButtonP1.Level())

	w = get(h, "GET", "/events?type=state")
	assert.Equal(t, http.StatusOK, w.Code)
}

// Test: calibration is skipped while bots play
func TestCalibrate_SkippedWithBots(t *testing.T) {
	a, _ := newTestApp(t)
	a.cfg.CalibrateDebounce = true
	a.cfg.SimBots = true

	require.NoError(t, a.calibrate(context.Background()))
	assert.Equal(t, a.cfg.Debounce, a.buttons[0].Debounce())
	assert.Empty(t, a.recorder.OfType(telemetry.EventCalibration))
}

// Test: holding both buttons arms the fail-safe and the starved watchdog ends run
func TestRun_LongPressResets(t *testing.T) {
	a, clock := newTestApp(t)
	a.cfg.ListenAddr = "127.0.0.1:0"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	a.board.Sim.ButtonP1.Press()
	a.board.Sim.ButtonP2.Press()

	deadline := time.Now().Add(5 * time.Second)
	for !a.failSafe.Armed() && time.Now().Before(deadline) {
		clock.Advance(50 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}
	require.True(t, a.failSafe.Armed())
	assert.Equal(t, "both buttons held", a.failSafe.Reason())

	for i := 0; i < 200; i++ {
		select {
		case err := <-done:
			assert.ErrorIs(t, err, hal.ErrWatchdogReset)
			return
		default:
		}
		clock.Advance(50 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}
	t.Fatal("run did not stop after the watchdog starved")
}

// Test: with the default bots the device leaves Waiting and plays a match
func TestRun_BotsStartAMatch(t *testing.T) {
	cfg := config.Default()
	cfg.ListenAddr = "127.0.0.1:0"
	require.True(t, cfg.SimBots)
	clock := clockwork.NewFakeClock()
	a, err := newApp(context.Background(), cfg, clock)
	require.NoError(t, err)
	t.Cleanup(a.close)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	for i := 0; i < 3000 && len(a.recorder.OfType(telemetry.EventRound)) == 0; i++ {
		clock.Advance(10 * time.Millisecond)
		time.Sleep(2 * time.Millisecond)
	}
	assert.NotEmpty(t, a.recorder.OfType(telemetry.EventMatchStarted), "bots never started a match")
	assert.NotEmpty(t, a.recorder.OfType(telemetry.EventRound), "bots never finished a round")
	assert.False(t, a.failSafe.Armed())
}
