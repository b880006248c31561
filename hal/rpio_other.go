//go:build !linux

// file: hal/rpio_other.go
package hal

import (
	"fmt"

	"github.com/jonboulle/clockwork"
)

func openRpio(opts Options, clock clockwork.Clock) (*Board, error) {
	return nil, fmt.Errorf("%w: rpio needs linux", ErrUnknownBackend)
}
