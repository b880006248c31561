// file: engine/engine_test.go
//go:build unit
// +build unit

package engine

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go-button-wars/game"
	"go-button-wars/models"
	"go-button-wars/telemetry"
	"go-button-wars/watchdog"
)

// --------------- test doubles -----------------

// scriptedTimer wins the rounds listed in wins with the given response
// times and never finishes the others.
type scriptedTimer struct {
	role models.ButtonRole

	mu          sync.Mutex
	wins        map[int]time.Duration
	rounds      int
	startPress  []bool
	startCalls  int
	measureArgs []time.Time
}

func (s *scriptedTimer) Role() models.ButtonRole { return s.role }

func (s *scriptedTimer) WaitForFullPress(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	n := s.startCalls
	s.startCalls++
	press := n < len(s.startPress) && s.startPress[n]
	s.mu.Unlock()
	if press {
		return time.Now(), nil
	}
	<-ctx.Done()
	return time.Time{}, ctx.Err()
}

func (s *scriptedTimer) MeasureSince(ctx context.Context, target time.Time) (time.Time, error) {
	s.mu.Lock()
	n := s.rounds
	s.rounds++
	s.measureArgs = append(s.measureArgs, target)
	d, ok := s.wins[n]
	s.mu.Unlock()
	if ok {
		return target.Add(d), nil
	}
	<-ctx.Done()
	return time.Time{}, ctx.Err()
}

type MockSignals struct {
	mock.Mock
}

func (m *MockSignals) ReadyCue(ctx context.Context, round int) error {
	return m.Called(ctx, round).Error(0)
}
func (m *MockSignals) Go() { m.Called() }
func (m *MockSignals) Winner(ctx context.Context, role models.ButtonRole) error {
	return m.Called(ctx, role).Error(0)
}
func (m *MockSignals) Idle(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockSignals) AllOff()                        { m.Called() }

// newMockSignals answers every call; Idle reports on idleStarts and then
// plays until cancelled like the real display.
func newMockSignals(idleStarts chan<- struct{}) *MockSignals {
	s := new(MockSignals)
	s.On("ReadyCue", mock.Anything, mock.Anything).Return(nil)
	s.On("Go").Return()
	s.On("Winner", mock.Anything, mock.Anything).Return(nil)
	s.On("Idle", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		select {
		case idleStarts <- struct{}{}:
		default:
		}
		<-args.Get(0).(context.Context).Done()
	})
	s.On("AllOff").Return()
	return s
}

var testSettings = Settings{
	TotalRounds:     5,
	RandomDelayMin:  2000 * time.Millisecond,
	RandomDelayMax:  5000 * time.Millisecond,
	InterRoundDelay: 2 * time.Second,
	StartTimeout:    10 * time.Second,
}

type harness struct {
	engine  *Engine
	p1, p2  *scriptedTimer
	signals *MockSignals
	store   *game.Store
	rec     *telemetry.Recorder
	clock   *clockwork.FakeClock
	fs      *watchdog.FailSafe

	idleStarts chan struct{}

	sleepMu sync.Mutex
	sleeps  []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		p1:         &scriptedTimer{role: models.Player1},
		p2:         &scriptedTimer{role: models.Player2},
		idleStarts: make(chan struct{}, 16),
		rec:        telemetry.NewRecorder(0),
		clock:      clockwork.NewFakeClock(),
	}
	h.signals = newMockSignals(h.idleStarts)
	h.fs = watchdog.NewFailSafe(h.clock, h.rec)
	h.store = game.NewStore(h.clock, h.fs, h.rec)
	require.NoError(t, h.store.Initialize(context.Background()))

	e, err := New(Deps{
		P1: h.p1, P2: h.p2,
		Signals: h.signals,
		Store:   h.store,
		Sink:    h.rec,
		Clock:   h.clock,
		Rand:    rand.New(rand.NewSource(42)),
	}, testSettings)
	require.NoError(t, err)
	e.sleepFunc = func(ctx context.Context, d time.Duration) error {
		h.sleepMu.Lock()
		h.sleeps = append(h.sleeps, d)
		h.sleepMu.Unlock()
		return ctx.Err()
	}
	h.engine = e
	return h
}

func (h *harness) state(t *testing.T) models.GameState {
	t.Helper()
	st, err := h.store.StateOrReset(context.Background())
	require.NoError(t, err)
	return st
}

// --------------- tests -----------------

// Test: settings are validated up front
func TestNew_InvalidSettings(t *testing.T) {
	s := testSettings
	s.TotalRounds = 0
	_, err := New(Deps{}, s)
	assert.Error(t, err)

	s = testSettings
	s.RandomDelayMin = 6 * time.Second
	assert.Error(t, s.Validate())

	_, err = New(Deps{}, testSettings)
	assert.Error(t, err, "missing deps")
}

// Test: N=5, P1 wins rounds 0, 1 and 3; the match ends after round 3 and round 4 is never played
func TestPlayMatch_EndsAtThreshold(t *testing.T) {
	h := newHarness(t)
	h.p1.wins = map[int]time.Duration{0: 120 * time.Millisecond, 1: 200 * time.Millisecond, 3: 160 * time.Millisecond}
	h.p2.wins = map[int]time.Duration{2: 90 * time.Millisecond}

	ctx := context.Background()
	require.NoError(t, h.store.Transition(ctx, models.Playing))
	require.NoError(t, h.engine.PlayMatch(ctx))

	assert.Equal(t, models.ComputingResults, h.state(t))
	h.signals.AssertNumberOfCalls(t, "ReadyCue", 4)
	h.signals.AssertNumberOfCalls(t, "Go", 4)

	st := h.engine.Status()
	assert.Equal(t, map[string]int{"Player1": 3, "Player2": 1}, st.Scores)
	require.Len(t, st.Rounds, 5)
	assert.Equal(t, models.Player1, *st.Rounds[3].Winner)
	assert.Equal(t, int64(160), st.Rounds[3].ResponseTimeMs)
	assert.Equal(t, models.Player2, *st.Rounds[2].Winner)
	assert.False(t, st.Rounds[4].Played())
	assert.NotEmpty(t, st.MatchID)

	// random delay for each played round, inter-round delay after rounds 0, 1 and 2 only
	require.Len(t, h.sleeps, 7)
	for i, d := range h.sleeps {
		if i%2 == 1 {
			assert.Equal(t, testSettings.InterRoundDelay, d)
			continue
		}
		assert.GreaterOrEqual(t, d, testSettings.RandomDelayMin)
		assert.LessOrEqual(t, d, testSettings.RandomDelayMax)
	}

	rounds := h.rec.OfType(telemetry.EventRound)
	require.Len(t, rounds, 4)
	assert.Equal(t, st.MatchID, rounds[0].MatchID)
	assert.Len(t, h.rec.OfType(telemetry.EventMatchStarted), 1)
}

// Test: result stats cover only the rounds the match winner won
func TestComputeResults_WinnerRoundsOnly(t *testing.T) {
	h := newHarness(t)
	h.p1.wins = map[int]time.Duration{0: 120 * time.Millisecond, 1: 200 * time.Millisecond, 3: 160 * time.Millisecond}
	h.p2.wins = map[int]time.Duration{2: 90 * time.Millisecond}

	ctx := context.Background()
	require.NoError(t, h.engine.PlayMatch(ctx))

	stats, ok := h.engine.ComputeResults(ctx)
	require.True(t, ok)
	assert.Equal(t, models.Player1, stats.Winner)
	assert.Equal(t, 3, stats.Wins)
	assert.Equal(t, int64(120), stats.MinMs)
	assert.Equal(t, int64(200), stats.MaxMs)
	assert.InDelta(t, 160.0, stats.AverageMs, 0.001)

	require.Len(t, h.rec.OfType(telemetry.EventMatchResult), 1)
	assert.NotNil(t, h.engine.Status().LastMatch)
	h.signals.AssertCalled(t, "Winner", mock.Anything, models.Player1)
}

// Test: no rounds played means no result
func TestComputeResults_NoWinner(t *testing.T) {
	h := newHarness(t)
	_, ok := h.engine.ComputeResults(context.Background())
	assert.False(t, ok)
	assert.Empty(t, h.rec.OfType(telemetry.EventMatchResult))
}

// Test: a release reported before go scores zero, never negative
func TestPlayRound_ClampsToZero(t *testing.T) {
	h := newHarness(t)
	h.p2.wins = map[int]time.Duration{0: -5 * time.Millisecond}

	winner, ms, err := h.engine.PlayRound(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, models.Player2, winner)
	assert.Zero(t, ms)
}

// Test: both timers are measured against the same go instant
func TestPlayRound_SharedTarget(t *testing.T) {
	h := newHarness(t)
	h.p1.wins = map[int]time.Duration{0: 300 * time.Millisecond}

	_, ms, err := h.engine.PlayRound(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(300), ms)
	require.Len(t, h.p1.measureArgs, 1)
	require.Len(t, h.p2.measureArgs, 1)
	assert.Equal(t, h.p1.measureArgs[0], h.p2.measureArgs[0])
}

// Test: entering Waiting zeroes the scoreboard and clears the record
func TestEnterWaiting_ResetsMatch(t *testing.T) {
	h := newHarness(t)
	h.p1.wins = map[int]time.Duration{0: 100 * time.Millisecond, 1: 100 * time.Millisecond, 2: 100 * time.Millisecond}
	ctx := context.Background()
	require.NoError(t, h.engine.PlayMatch(ctx))
	require.Equal(t, 3, h.engine.Status().Scores["Player1"])

	h.p2.startPress = []bool{true}
	require.NoError(t, h.engine.EnterWaiting(ctx))

	st := h.engine.Status()
	assert.Equal(t, map[string]int{"Player1": 0, "Player2": 0}, st.Scores)
	for _, r := range st.Rounds {
		assert.False(t, r.Played())
		assert.Zero(t, r.ResponseTimeMs)
	}
}

// Test: the start wait re-arms after the timeout while the idle display keeps playing
func TestEnterWaiting_TimeoutRearms(t *testing.T) {
	h := newHarness(t)
	h.p1.startPress = []bool{false, true}
	h.p2.startPress = []bool{false, false}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.engine.EnterWaiting(ctx) }()

	select {
	case <-h.idleStarts:
	case <-ctx.Done():
		t.Fatal("idle display never started")
	}
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(testSettings.StartTimeout)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("EnterWaiting did not return after the second start wait")
	}
	h.signals.AssertNumberOfCalls(t, "Idle", 1)
	assert.Equal(t, 2, h.p1.startCalls)
}

// Test: the dispatch loop drives Waiting → Playing → ComputingResults → Finished → Waiting
func TestRun_FullCycle(t *testing.T) {
	h := newHarness(t)
	h.p1.startPress = []bool{true}
	h.p1.wins = map[int]time.Duration{0: 100 * time.Millisecond, 1: 110 * time.Millisecond, 2: 120 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(h.rec.OfType(telemetry.EventMatchResult)) == 1 &&
			len(h.rec.OfType(telemetry.EventState)) == 4
	}, time.Second, 5*time.Millisecond)

	// back in Waiting, blocked on the next start press
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	var path []string
	for _, ev := range h.rec.OfType(telemetry.EventState) {
		path = append(path, ev.Data["to"].(string))
	}
	assert.Equal(t, []string{"Playing", "ComputingResults", "Finished", "Waiting"}, path)
}

// Test: a lost game singleton stops the loop through the fail-safe
func TestRun_LostSingletonArmsFailSafe(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Clear(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	assert.Eventually(t, h.fs.Armed, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, game.ErrNotInitialized)
}
