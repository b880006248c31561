//go:build linux

// file: hal/watchdog_linux.go
package hal

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// WDIOC_SETTIMEOUT from linux/watchdog.h.
const wdiocSetTimeout = 0xc0045706

// DeviceWatchdog drives a Linux watchdog character device such as /dev/watchdog.
type DeviceWatchdog struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

// NewDeviceWatchdog does not open the device; Start does.
func NewDeviceWatchdog(path string) *DeviceWatchdog {
	if path == "" {
		path = "/dev/watchdog"
	}
	return &DeviceWatchdog{path: path}
}

// Start opens the device, which arms it, and sets the timeout.
func (w *DeviceWatchdog) Start(timeout time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f != nil {
		return errors.New("watchdog already started")
	}
	f, err := os.OpenFile(w.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.path, err)
	}
	secs := int(timeout.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	if err := unix.IoctlSetPointerInt(int(f.Fd()), wdiocSetTimeout, secs); err != nil {
		_ = f.Close()
		return fmt.Errorf("set watchdog timeout: %w", err)
	}
	w.f = f
	return nil
}

// Feed writes a keep-alive byte.
func (w *DeviceWatchdog) Feed() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return errors.New("watchdog not started")
	}
	_, err := w.f.Write([]byte{0})
	return err
}

// Close closes the device without the magic 'V', so the countdown keeps running.
func (w *DeviceWatchdog) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
