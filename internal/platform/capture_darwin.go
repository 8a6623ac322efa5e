//go:build darwin

package platform

/*
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation
#include "eventtap_darwin.h"
#include <ApplicationServices/ApplicationServices.h>
*/
import "C"

import (
	"context"
	"log"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/keyrx-dev/krx/internal/keycode"
)

// darwinCapture suppresses and reports every key event via a single
// CGEventTap covering every key in the block table (spec.md §4.8/§4.9's
// Open Question decision: macOS is treated as a non-exclusive,
// "suppress on callback" platform rather than a true grab like Linux).
type darwinCapture struct {
	mu       sync.Mutex
	blockSet map[keycode.Code]bool
	events   chan InputEvent
	hotplug  chan HotplugEvent
	running  bool
	logger   *log.Logger
}

var (
	activeCaptureMu sync.Mutex
	activeCapture   *darwinCapture
)

// NewCapture constructs the Darwin Capture implementation. A nil logger
// means quiet.
func NewCapture(logger *log.Logger) Capture {
	return &darwinCapture{logger: logger}
}

func (c *darwinCapture) InstallBlockTable(codes []keycode.Code) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockSet = make(map[keycode.Code]bool, len(codes))
	for _, code := range codes {
		c.blockSet[code] = true
	}
	return nil
}

func (c *darwinCapture) Start(ctx context.Context) (<-chan InputEvent, <-chan HotplugEvent, error) {
	c.events = make(chan InputEvent, 256)
	c.hotplug = make(chan HotplugEvent, 16)

	activeCaptureMu.Lock()
	activeCapture = c
	activeCaptureMu.Unlock()

	c.hotplug <- HotplugEvent{Kind: DeviceAttached, Device: Device{ID: "darwin-hid", Name: "macOS keyboard session"}}

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if rc := C.startEventTap(nil); rc != 0 {
			if c.logger != nil {
				c.logger.Printf("startEventTap failed (rc=%d); check Accessibility/Input Monitoring permission", int(rc))
			}
			return
		}
	}()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	return c.events, c.hotplug, nil
}

func (c *darwinCapture) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	C.stopEventTap()
	return nil
}

// isBlocked reports whether code is in the installed block table.
func (c *darwinCapture) isBlocked(code keycode.Code) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockSet[code]
}

//export krxEventTapCallback
func krxEventTapCallback(proxy C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, refcon unsafe.Pointer) C.CGEventRef {
	activeCaptureMu.Lock()
	c := activeCapture
	activeCaptureMu.Unlock()
	if c == nil {
		return event
	}

	switch eventType {
	case C.kCGEventKeyDown, C.kCGEventKeyUp:
		keyCode := uint16(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))
		code, ok := keycode.FromDarwin(keyCode)
		if !ok {
			return event
		}
		kind := KeyDown
		if eventType == C.kCGEventKeyUp {
			kind = KeyUp
		}
		select {
		case c.events <- InputEvent{DeviceID: "darwin-hid", Code: code, Kind: kind, Time: time.Now()}:
		default:
		}
		if c.isBlocked(code) {
			return C.CGEventRef(nil)
		}
		return event
	default:
		// kCGEventTapDisabledByTimeout/ByUserInput fall through here too;
		// the daemon's Stop()/Start() cycle re-creates the tap rather than
		// trying to re-enable it in place.
		return event
	}
}
