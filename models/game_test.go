// file: models/game_test.go

//go:build unit
// +build unit

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test: ceil(N/2) thresholds
func TestWinThreshold(t *testing.T) {
	assert.Equal(t, 3, WinThreshold(5))
	assert.Equal(t, 2, WinThreshold(3))
	assert.Equal(t, 2, WinThreshold(4))
	assert.Equal(t, 1, WinThreshold(1))
}

// Test: a new score board has both keys at zero, and Reset restores that
func TestScoreBoard_ResetKeepsBothKeys(t *testing.T) {
	sb := NewScoreBoard()
	assert.Equal(t, ScoreBoard{Player1: 0, Player2: 0}, sb)

	assert.Equal(t, 1, sb.Increment(Player1))
	assert.Equal(t, 2, sb.Increment(Player1))
	sb.Increment(Player2)
	assert.Equal(t, 3, sb.Total())

	leader, ok := sb.Leader()
	assert.True(t, ok)
	assert.Equal(t, Player1, leader)

	sb.Reset()
	assert.Equal(t, ScoreBoard{Player1: 0, Player2: 0}, sb)
	_, ok = sb.Leader()
	assert.False(t, ok)
}

// Test: rounds are written once and in order, and Clear returns them to (None, 0)
func TestRoundRecord_RecordInOrder(t *testing.T) {
	rr := NewRoundRecord(5)
	require.NoError(t, rr.Record(0, Player1, 210))

	assert.Error(t, rr.Record(0, Player2, 300), "rewriting a round must fail")
	assert.Error(t, rr.Record(2, Player2, 300), "skipping a round must fail")
	assert.Error(t, rr.Record(5, Player2, 300), "out of range must fail")

	require.NoError(t, rr.Record(1, Player2, 250))
	assert.Equal(t, Player2, *rr.At(1).Winner)
	assert.EqualValues(t, 250, rr.At(1).ResponseTimeMs)

	rr.Clear()
	for _, r := range rr.Results() {
		assert.Nil(t, r.Winner)
		assert.Zero(t, r.ResponseTimeMs)
	}
}

// Test: stats only consider rounds the winner won
func TestComputeMatchStats(t *testing.T) {
	rr := NewRoundRecord(5)
	require.NoError(t, rr.Record(0, Player1, 300))
	require.NoError(t, rr.Record(1, Player2, 100))
	require.NoError(t, rr.Record(2, Player1, 200))
	require.NoError(t, rr.Record(3, Player1, 400))

	stats, ok := ComputeMatchStats(Player1, rr)
	require.True(t, ok)
	assert.Equal(t, 3, stats.Wins)
	assert.EqualValues(t, 200, stats.MinMs)
	assert.EqualValues(t, 400, stats.MaxMs)
	assert.InDelta(t, 300.0, stats.AverageMs, 0.001)

	_, ok = ComputeMatchStats(Player2, NewRoundRecord(3))
	assert.False(t, ok)
}

func TestParseButtonRole(t *testing.T) {
	r, err := ParseButtonRole("p2")
	require.NoError(t, err)
	assert.Equal(t, Player2, r)
	assert.Equal(t, Player1, r.Opponent())
	assert.Equal(t, LedPlayer2, LedFor(r))

	_, err = ParseButtonRole("3")
	assert.Error(t, err)
}
