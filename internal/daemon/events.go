package daemon

import (
	"time"

	"github.com/keyrx-dev/krx/internal/evaluator"
	"github.com/keyrx-dev/krx/internal/platform"
)

// EventKind discriminates the shape of a published Event (spec.md §6:
// "subscribe_events() -> stream of {KeyEvent, DeviceAttached,
// DeviceDetached, LatencySample, Error}").
type EventKind uint8

const (
	EventKey EventKind = iota
	EventDeviceAttached
	EventDeviceDetached
	EventLatencySample
	EventError
)

// Event is one record on the subscribe_events() stream, carrying a
// monotonic Seq so consumers can detect and handle gaps explicitly
// (spec.md §6) rather than assuming delivery is lossless.
type Event struct {
	Seq  uint64
	Kind EventKind
	Time time.Time

	DeviceID string
	Key      evaluator.OutputEvent
	Device   platform.Device
	Latency  time.Duration
	Err      error
}
