// Package daemon implements the single-threaded event loop that owns
// per-device state, the active compiled profile, and the platform
// capture/injection layer (spec.md §4.9, §5, §6).
package daemon

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keyrx-dev/krx/internal/daemonconfig"
	"github.com/keyrx-dev/krx/internal/devstate"
	"github.com/keyrx-dev/krx/internal/evaluator"
	"github.com/keyrx-dev/krx/internal/keycode"
	"github.com/keyrx-dev/krx/internal/krx"
	"github.com/keyrx-dev/krx/internal/krxerr"
	"github.com/keyrx-dev/krx/internal/mapping"
	"github.com/keyrx-dev/krx/internal/platform"
)

// errDegradedMode is published on the event stream the moment the drop
// rate crosses evaluator.DegradedModeThreshold (spec.md §7).
var errDegradedMode = errors.New("degraded mode: drop rate exceeds threshold")

// activeProfile is the immutable handle the event loop swaps atomically
// on a successful activate() (spec.md §4.9: "swaps the IR handle").
type activeProfile struct {
	name    string
	profile *mapping.Profile
}

// Daemon is the event loop described in spec.md §4.9: it owns a channel
// receiving platform events and timer ticks, an immutable handle to the
// active profile, and the per-device state the evaluator mutates.
type Daemon struct {
	cfg     *daemonconfig.Config
	capture platform.Capture
	inject  platform.Injector

	active atomic.Pointer[activeProfile]
	// activating is 1 while an activate() call is in flight; CAS'd to
	// serialize activation per spec.md §4.9/§5.
	activating atomic.Int32

	mu      sync.Mutex
	devices map[string]*devstate.State

	stats evaluator.Evaluator

	seq         atomic.Uint64
	subsMu      sync.Mutex
	subscribers map[chan Event]struct{}

	droppedEvents  atomic.Uint64
	loggedDegraded atomic.Bool

	logger *log.Logger
}

// New constructs a Daemon wired to the given platform capture and
// injector implementations (platform.NewCapture/platform.NewInjector on
// the running OS). A nil logger means quiet.
func New(cfg *daemonconfig.Config, capture platform.Capture, inject platform.Injector, logger *log.Logger) *Daemon {
	return &Daemon{
		cfg:         cfg,
		capture:     capture,
		inject:      inject,
		devices:     make(map[string]*devstate.State),
		subscribers: make(map[chan Event]struct{}),
		logger:      logger,
	}
}

// ListDevices returns the devices currently tracked by the event loop.
func (d *Daemon) ListDevices() []platform.Device {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]platform.Device, 0, len(d.devices))
	for id := range d.devices {
		out = append(out, platform.Device{ID: id})
	}
	return out
}

// DropRate returns the fraction of input events dropped due to
// evaluator or injection errors (spec.md §7).
func (d *Daemon) DropRate() float64 { return d.stats.DropRate() }

// DegradedMode reports whether the drop rate has crossed
// evaluator.DegradedModeThreshold (spec.md §7).
func (d *Daemon) DegradedMode() bool { return d.stats.DegradedMode() }

// BlockTable returns the block table installed for the currently active
// profile, or nil if no profile has been activated. Exposed for test
// observability of the union-not-Cartesian-product construction in
// buildBlockTable.
func (d *Daemon) BlockTable() []keycode.Code {
	ap := d.active.Load()
	if ap == nil {
		return nil
	}
	return buildBlockTable(ap.profile)
}

// ActiveProfile returns the name of the currently active profile, or
// ("", false) if no profile has ever been activated (spec.md §6:
// "active_profile() -> ProfileName?").
func (d *Daemon) ActiveProfile() (string, bool) {
	p := d.active.Load()
	if p == nil {
		return "", false
	}
	return p.name, true
}

// Subscribe registers a new listener on the event stream (spec.md §6:
// "subscribe_events() -> stream of {...} with monotonic sequence
// numbers; consumers handle gaps explicitly"). The returned channel is
// closed by the returned unsubscribe function. A slow consumer that does not drain its
// channel causes later events to be dropped for it rather than
// blocking the event loop; drops show up as a Seq gap.
func (d *Daemon) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, d.cfg.Channels.EventCapacity)

	d.subsMu.Lock()
	d.subscribers[ch] = struct{}{}
	d.subsMu.Unlock()

	unsub := func() {
		d.subsMu.Lock()
		if _, ok := d.subscribers[ch]; ok {
			delete(d.subscribers, ch)
			close(ch)
		}
		d.subsMu.Unlock()
	}
	return ch, unsub
}

func (d *Daemon) publish(kind EventKind, fill func(*Event)) {
	ev := Event{Seq: d.seq.Add(1), Kind: kind, Time: time.Now()}
	if fill != nil {
		fill(&ev)
	}

	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	for ch := range d.subscribers {
		select {
		case ch <- ev:
		default:
			d.droppedEvents.Add(1)
		}
	}
}

// Activate loads, compiles/decodes, and installs the named profile,
// following spec.md §4.9's activation sequence: load the .krx file,
// construct the block table, apply it on the platform, then swap the
// IR handle. On any failure the previously active profile remains in
// effect. Activation is serialized: a concurrent call is rejected with
// krxerr.ErrActivationInProgress, and the whole sequence is bounded by
// cfg.Activation.TimeoutMs, past which it fails with
// krxerr.ErrActivationTimeout.
func (d *Daemon) Activate(ctx context.Context, name string) error {
	if !d.activating.CompareAndSwap(0, 1) {
		if d.logger != nil {
			d.logger.Printf("activate %q rejected: activation already in progress", name)
		}
		return &krxerr.ActivationError{ProfileName: name, Err: krxerr.ErrActivationInProgress}
	}
	defer d.activating.Store(0)

	timeout := time.Duration(d.cfg.Activation.TimeoutMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.activateLocked(name) }()

	select {
	case err := <-done:
		if err != nil {
			if d.logger != nil {
				d.logger.Printf("activate %q failed: %v", name, err)
			}
			return &krxerr.ActivationError{ProfileName: name, Err: err}
		}
		if d.logger != nil {
			d.logger.Printf("activated profile %q", name)
		}
		return nil
	case <-ctx.Done():
		if d.logger != nil {
			d.logger.Printf("activate %q timed out after %s", name, timeout)
		}
		return &krxerr.ActivationError{ProfileName: name, Err: krxerr.ErrActivationTimeout}
	}
}

func (d *Daemon) activateLocked(name string) error {
	profile, err := d.loadProfile(name)
	if err != nil {
		return err
	}

	block := buildBlockTable(profile)
	if err := d.capture.InstallBlockTable(block); err != nil {
		return err
	}

	// Closing out in-flight state under the old profile before the swap
	// keeps activation atomic from the evaluator's point of view (spec.md
	// §8 property 8, scenario S7): no event is ever processed under a
	// half-activated profile.
	d.mu.Lock()
	for _, st := range d.devices {
		for _, out := range evaluator.CancelDevice(st) {
			if injErr := d.inject.Inject(out.Code, platformEventKind(out.Op)); injErr != nil {
				d.publish(EventError, func(e *Event) { e.Err = injErr })
			}
		}
	}
	d.mu.Unlock()

	d.active.Store(&activeProfile{name: name, profile: profile})

	if err := writeMarker(d.cfg.State.MarkerDir, name, time.Now()); err != nil {
		if d.logger != nil {
			d.logger.Printf("write marker for %q failed: %v", name, err)
		}
		d.publish(EventError, func(e *Event) { e.Err = err })
	}
	return nil
}

// loadProfile resolves name to a compiled profile. An absolute name is
// read as-is; any other name is looked up under <profile_dir>, with
// ".krx" appended when it does not already carry that extension.
func (d *Daemon) loadProfile(name string) (*mapping.Profile, error) {
	path := name
	if !filepath.IsAbs(path) {
		fileName := name
		if filepath.Ext(fileName) != ".krx" {
			fileName += ".krx"
		}
		path = filepath.Join(d.cfg.State.ProfileDir, fileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, krxerr.ErrProfileNotFound
		}
		return nil, err
	}

	profile, err := krx.Decode(data)
	if err != nil {
		return nil, krxerr.ErrCompileFailed
	}
	return profile, nil
}

// deviceState returns the devstate.State for deviceID, creating one on
// first sight of the device.
func (d *Daemon) deviceState(deviceID string) *devstate.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.devices[deviceID]
	if !ok {
		st = devstate.New(deviceID)
		d.devices[deviceID] = st
	}
	return st
}

// Run drives the event loop until ctx is cancelled: it starts platform
// capture, dispatches input events through the evaluator, injects the
// resulting output, and ticks tap-hold timeouts on a fixed interval so
// an armed key resolves even without further input (spec.md §4.7, §4.9).
func (d *Daemon) Run(ctx context.Context) error {
	events, hotplug, err := d.capture.Start(ctx)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return d.capture.Stop()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			d.handleInputEvent(ev)

		case hp, ok := <-hotplug:
			if !ok {
				continue
			}
			d.handleHotplug(hp)

		case now := <-ticker.C:
			d.mu.Lock()
			for _, st := range d.devices {
				evaluator.Tick(st, now)
			}
			d.mu.Unlock()
		}
	}
}

func (d *Daemon) handleInputEvent(ev platform.InputEvent) {
	start := ev.Time
	ap := d.active.Load()
	if ap == nil {
		return
	}

	st := d.deviceState(ev.DeviceID)

	var outs []evaluator.OutputEvent
	switch ev.Kind {
	case platform.KeyDown:
		outs = evaluator.HandlePress(ap.profile, ev.DeviceID, st, ev.Code, ev.Time)
	case platform.KeyUp:
		outs = evaluator.HandleRelease(st, ev.Code, ev.Time)
	}

	for _, out := range outs {
		if err := d.inject.Inject(out.Code, platformEventKind(out.Op)); err != nil {
			d.stats.RecordDrop()
			d.publish(EventError, func(e *Event) { e.Err = err; e.DeviceID = ev.DeviceID })
			if d.stats.DegradedMode() {
				if d.loggedDegraded.CompareAndSwap(false, true) {
					d.publish(EventError, func(e *Event) { e.Err = errDegradedMode; e.DeviceID = ev.DeviceID })
					if d.logger != nil {
						d.logger.Printf("entering degraded mode: drop rate %.3f exceeds threshold", d.stats.DropRate())
					}
				}
			} else {
				d.loggedDegraded.Store(false)
			}
			continue
		}
		d.stats.RecordProcessed()
		if !d.stats.DegradedMode() {
			d.loggedDegraded.Store(false)
		}
		code, op := out.Code, out.Op
		d.publish(EventKey, func(e *Event) {
			e.DeviceID = ev.DeviceID
			e.Key = evaluator.OutputEvent{Code: code, Op: op}
		})
	}

	d.publish(EventLatencySample, func(e *Event) {
		e.DeviceID = ev.DeviceID
		e.Latency = time.Since(start)
	})
}

func platformEventKind(op evaluator.Op) platform.EventKind {
	if op == evaluator.OpRelease {
		return platform.KeyUp
	}
	return platform.KeyDown
}

func (d *Daemon) handleHotplug(hp platform.HotplugEvent) {
	switch hp.Kind {
	case platform.DeviceAttached:
		d.deviceState(hp.Device.ID)
		d.publish(EventDeviceAttached, func(e *Event) { e.Device = hp.Device })

	case platform.DeviceDetached:
		d.mu.Lock()
		st, ok := d.devices[hp.Device.ID]
		delete(d.devices, hp.Device.ID)
		d.mu.Unlock()

		if ok {
			for _, out := range evaluator.CancelDevice(st) {
				if err := d.inject.Inject(out.Code, platformEventKind(out.Op)); err != nil {
					d.publish(EventError, func(e *Event) { e.Err = err })
				}
			}
		}
		d.publish(EventDeviceDetached, func(e *Event) { e.Device = hp.Device })
	}
}
