// Package platform is the OS boundary (spec.md §4.8): raw input capture,
// key injection, and device hot-plug notification. Each platform file
// behind its build tag implements Capture and Injector; everything above
// this package only ever sees KeyCode and DeviceID.
package platform

import (
	"context"
	"time"

	"github.com/keyrx-dev/krx/internal/keycode"
)

// EventKind distinguishes a physical key going down from going up.
type EventKind uint8

const (
	KeyDown EventKind = iota
	KeyUp
)

// InputEvent is one physical key transition from a captured device.
type InputEvent struct {
	DeviceID string
	Code     keycode.Code
	Kind     EventKind
	Time     time.Time
}

// Device describes an enumerated keyboard-capable input device.
type Device struct {
	ID       string
	VendorID uint16
	Product  uint16
	Name     string
	Serial   string
}

// HotplugKind distinguishes attach from detach in a HotplugEvent.
type HotplugKind uint8

const (
	DeviceAttached HotplugKind = iota
	DeviceDetached
)

// HotplugEvent reports a device appearing or disappearing while the
// capture is running.
type HotplugEvent struct {
	Kind   HotplugKind
	Device Device // zero except ID on DeviceDetached
}

// Capture captures raw key transitions from every matching input device
// and, where the platform supports it (Linux evdev), exclusively grabs
// devices so the OS never sees the raw key. Start returns as soon as
// capture is running; events keep arriving on its channels until ctx is
// canceled.
type Capture interface {
	// Start begins capture, streaming InputEvents and HotplugEvents on
	// the returned channels until ctx is canceled.
	Start(ctx context.Context) (<-chan InputEvent, <-chan HotplugEvent, error)

	// InstallBlockTable installs the set of KeyCodes that must never reach
	// the rest of the system unmapped (spec.md §9's block-table union).
	// On platforms without a true block table (macOS, Windows) this
	// configures which keys the capture callback suppresses.
	InstallBlockTable(codes []keycode.Code) error

	// Stop releases every grabbed device and ends capture.
	Stop() error
}

// Injector synthesizes key transitions back into the OS input stream.
type Injector interface {
	Inject(code keycode.Code, kind EventKind) error
	Close() error
}
