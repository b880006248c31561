// Package models defines data structures used across the application.
// File: models/game.go
package models

import (
	"fmt"
	"math"
	"time"
)

// ----------------------- roles -----------------------

// ButtonRole identifies which player owns a button, a score and an LED.
type ButtonRole int

const (
	Player1 ButtonRole = iota
	Player2
)

// Roles lists both players in a stable order.
var Roles = [2]ButtonRole{Player1, Player2}

func (r ButtonRole) String() string {
	switch r {
	case Player1:
		return "Player1"
	case Player2:
		return "Player2"
	default:
		return fmt.Sprintf("ButtonRole(%d)", int(r))
	}
}

// Opponent returns the other player.
func (r ButtonRole) Opponent() ButtonRole {
	if r == Player1 {
		return Player2
	}
	return Player1
}

// ParseButtonRole accepts "1"/"2", "p1"/"p2" and the String() forms.
func ParseButtonRole(s string) (ButtonRole, error) {
	switch s {
	case "1", "p1", "player1", "Player1":
		return Player1, nil
	case "2", "p2", "player2", "Player2":
		return Player2, nil
	default:
		return 0, fmt.Errorf("unknown player %q", s)
	}
}

// LedRole identifies one of the three LEDs on the board.
type LedRole int

const (
	LedOnboard LedRole = iota
	LedPlayer1
	LedPlayer2
)

func (r LedRole) String() string {
	switch r {
	case LedOnboard:
		return "Onboard"
	case LedPlayer1:
		return "Player1"
	case LedPlayer2:
		return "Player2"
	default:
		return fmt.Sprintf("LedRole(%d)", int(r))
	}
}

// LedFor maps a player to their LED.
func LedFor(role ButtonRole) LedRole {
	if role == Player2 {
		return LedPlayer2
	}
	return LedPlayer1
}

// ----------------------- game state -----------------------

// GameState is the phase of the match the device is in.
type GameState int

const (
	Waiting GameState = iota
	Playing
	ComputingResults
	Finished
)

func (s GameState) String() string {
	switch s {
	case Waiting:
		return "Waiting"
	case Playing:
		return "Playing"
	case ComputingResults:
		return "ComputingResults"
	case Finished:
		return "Finished"
	default:
		return fmt.Sprintf("GameState(%d)", int(s))
	}
}

// ----------------------- rounds -----------------------

// RoundResult is one entry of a RoundRecord. Winner is nil until the round is played.
type RoundResult struct {
	Winner         *ButtonRole `json:"winner"`
	ResponseTimeMs int64       `json:"responseTimeMs"`
}

// Played reports whether the round has been recorded.
func (r RoundResult) Played() bool { return r.Winner != nil }

// RoundRecord is the fixed-size, in-order record of a match.
type RoundRecord struct {
	results []RoundResult
}

// NewRoundRecord returns a cleared record of n rounds.
func NewRoundRecord(n int) *RoundRecord {
	return &RoundRecord{results: make([]RoundResult, n)}
}

// Len is the total number of rounds per match.
func (rr *RoundRecord) Len() int { return len(rr.results) }

// Clear resets every round to (None, 0).
func (rr *RoundRecord) Clear() {
	for i := range rr.results {
		rr.results[i] = RoundResult{}
	}
}

// Record writes round i. Each round is written once, in order.
func (rr *RoundRecord) Record(i int, winner ButtonRole, responseMs int64) error {
	if i < 0 || i >= len(rr.results) {
		return fmt.Errorf("round %d out of range [0,%d)", i, len(rr.results))
	}
	if rr.results[i].Played() {
		return fmt.Errorf("round %d already recorded", i)
	}
	if i > 0 && !rr.results[i-1].Played() {
		return fmt.Errorf("round %d recorded before round %d", i, i-1)
	}
	w := winner
	rr.results[i] = RoundResult{Winner: &w, ResponseTimeMs: responseMs}
	return nil
}

// At returns a copy of round i.
func (rr *RoundRecord) At(i int) RoundResult { return rr.results[i] }

// Results returns a copy of all rounds.
func (rr *RoundRecord) Results() []RoundResult {
	out := make([]RoundResult, len(rr.results))
	copy(out, rr.results)
	return out
}

// ----------------------- score board -----------------------

// ScoreBoard counts round wins per player. Both keys are always present.
type ScoreBoard map[ButtonRole]int

// NewScoreBoard returns a zeroed board.
func NewScoreBoard() ScoreBoard {
	return ScoreBoard{Player1: 0, Player2: 0}
}

// Reset zeroes both players.
func (sb ScoreBoard) Reset() {
	for _, r := range Roles {
		sb[r] = 0
	}
}

// Increment adds a round win and returns the player's new total.
func (sb ScoreBoard) Increment(role ButtonRole) int {
	sb[role]++
	return sb[role]
}

// Total is the number of rounds scored so far.
func (sb ScoreBoard) Total() int { return sb[Player1] + sb[Player2] }

// Leader returns the player with more wins; ok is false on a tie.
func (sb ScoreBoard) Leader() (role ButtonRole, ok bool) {
	switch {
	case sb[Player1] > sb[Player2]:
		return Player1, true
	case sb[Player2] > sb[Player1]:
		return Player2, true
	default:
		return 0, false
	}
}

// WinThreshold is ceil(n/2), the number of round wins that ends a match of n rounds.
func WinThreshold(totalRounds int) int {
	return int(math.Ceil(float64(totalRounds) / 2))
}

// ----------------------- results -----------------------

// MatchStats summarizes the response times of the rounds the match winner won.
type MatchStats struct {
	Winner    ButtonRole    `json:"winner"`
	Wins      int           `json:"wins"`
	MinMs     int64         `json:"minMs"`
	MaxMs     int64         `json:"maxMs"`
	AverageMs float64       `json:"averageMs"`
	Duration  time.Duration `json:"duration"`
}

// ComputeMatchStats reduces the rounds won by winner to min/max/average.
// ok is false if winner won no rounds.
func ComputeMatchStats(winner ButtonRole, record *RoundRecord) (stats MatchStats, ok bool) {
	stats.Winner = winner
	var sum int64
	for _, r := range record.results {
		if r.Winner == nil || *r.Winner != winner {
			continue
		}
		if stats.Wins == 0 || r.ResponseTimeMs < stats.MinMs {
			stats.MinMs = r.ResponseTimeMs
		}
		if r.ResponseTimeMs > stats.MaxMs {
			stats.MaxMs = r.ResponseTimeMs
		}
		sum += r.ResponseTimeMs
		stats.Wins++
	}
	if stats.Wins == 0 {
		return stats, false
	}
	stats.AverageMs = float64(sum) / float64(stats.Wins)
	return stats, true
}
