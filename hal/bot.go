// file: hal/bot.go
package hal

import (
	"context"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"go-button-wars/logger"
)

// Bot is an automated player for the simulated board: it watches its own LED
// and presses its button after a random human-like reaction time.
type Bot struct {
	Name        string
	Led         *SimOutput
	Pin         *SimPin
	Clock       clockwork.Clock
	Rand        *rand.Rand
	MinReaction time.Duration
	MaxReaction time.Duration
	HoldFor     time.Duration
}

// NewBot returns a bot with reaction times between 180 and 450 ms.
func NewBot(name string, led *SimOutput, pin *SimPin, clock clockwork.Clock, seed int64) *Bot {
	return &Bot{
		Name:        name,
		Led:         led,
		Pin:         pin,
		Clock:       clock,
		Rand:        rand.New(rand.NewSource(seed)),
		MinReaction: 180 * time.Millisecond,
		MaxReaction: 450 * time.Millisecond,
		HoldFor:     200 * time.Millisecond,
	}
}

func (b *Bot) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-b.Clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bot) reaction() time.Duration {
	span := int64(b.MaxReaction - b.MinReaction)
	if span <= 0 {
		return b.MinReaction
	}
	return b.MinReaction + time.Duration(b.Rand.Int63n(span))
}

// Run reacts to the LED until ctx ends.
func (b *Bot) Run(ctx context.Context) error {
	logger.Info().Str("bot", b.Name).Msg("[Bot.Run] 🤖 Bot player joined")
	for {
		if err := b.Led.WaitFor(ctx, true); err != nil {
			return err
		}
		r := b.reaction()
		if err := b.sleep(ctx, r); err != nil {
			return err
		}
		b.Pin.Press()
		logger.Debug().Str("bot", b.Name).Dur("reaction", r).Msg("[Bot.Run] Pressed")
		if err := b.sleep(ctx, b.HoldFor); err != nil {
			b.Pin.Release()
			return err
		}
		b.Pin.Release()
		if err := b.Led.WaitFor(ctx, false); err != nil {
			return err
		}
	}
}
