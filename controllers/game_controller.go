// file: controllers/game_controller.go
package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go-button-wars/engine"
	"go-button-wars/game"
	"go-button-wars/hal"
	"go-button-wars/logger"
	"go-button-wars/models"
	"go-button-wars/telemetry"
)

// statusTimeout bounds how long /status waits on the game lock.
var statusTimeout = 500 * time.Millisecond

// GameSnapshotter is the read side of game.Store.
type GameSnapshotter interface {
	Snapshot(ctx context.Context) (game.Game, error)
}

// MatchStatuser is the read side of the engine.
type MatchStatuser interface {
	Status() engine.Status
}

// Armer reports the fail-safe state.
type Armer interface {
	Armed() bool
	Reason() string
}

// Status returns the game state, the current match and the fail-safe.
func Status(store GameSnapshotter, eng MatchStatuser, fs Armer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), statusTimeout)
		defer cancel()

		g, err := store.Snapshot(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("[Status] Game snapshot unavailable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "game state unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"state":           g.State.String(),
			"stateStart":      g.StateStart,
			"stateDurationMs": g.StateDuration.Milliseconds(),
			"match":           eng.Status(),
			"failSafe":        gin.H{"armed": fs.Armed(), "reason": fs.Reason()},
		})
	}
}

// EventSource is the in-memory event history.
type EventSource interface {
	Events() []telemetry.Event
	OfType(typ string) []telemetry.Event
}

// RecentEvents returns the recorded telemetry, optionally filtered by ?type=.
func RecentEvents(src EventSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		events := src.Events()
		if typ := c.Query("type"); typ != "" {
			events = src.OfType(typ)
		}
		if events == nil {
			events = []telemetry.Event{}
		}
		c.JSON(http.StatusOK, events)
	}
}

// Telemetry upgrades to the websocket event stream.
func Telemetry(hub *telemetry.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	}
}

// --------------- simulated buttons -----------------

func simPin(board *hal.SimBoard, c *gin.Context) (*hal.SimPin, models.ButtonRole, error) {
	role, err := models.ParseButtonRole(c.Param("player"))
	if err != nil {
		return nil, 0, err
	}
	if board == nil {
		return nil, role, errors.New("simulated buttons need the sim backend")
	}
	if role == models.Player2 {
		return board.ButtonP2, role, nil
	}
	return board.ButtonP1, role, nil
}

func simButton(board *hal.SimBoard, level hal.Level) gin.HandlerFunc {
	return func(c *gin.Context) {
		pin, role, err := simPin(board, c)
		if err != nil {
			logger.Warn().Err(err).Str("player", c.Param("player")).Msg("[simButton] Rejected")
			status := http.StatusBadRequest
			if board == nil {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		pin.Set(level)
		logger.Debug().Stringer("role", role).Stringer("level", level).Msg("[simButton] Pin driven")
		c.JSON(http.StatusOK, gin.H{"player": role.String(), "level": level.String()})
	}
}

// SimPress pulls a simulated button low.
func SimPress(board *hal.SimBoard) gin.HandlerFunc { return simButton(board, hal.Low) }

// SimRelease lets a simulated button go high.
func SimRelease(board *hal.SimBoard) gin.HandlerFunc { return simButton(board, hal.High) }
