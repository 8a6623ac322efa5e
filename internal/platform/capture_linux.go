//go:build linux

package platform

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/holoplot/go-evdev"

	"github.com/keyrx-dev/krx/internal/keycode"
)

// evdevDevPathRe extracts the numeric suffix of a /dev/input/eventN path.
var evdevDevPathRe = regexp.MustCompile(`event(\d+)$`)

// listKeyboardPaths returns every /dev/input/eventN path whose device
// looks like a keyboard, sorted by event number.
func listKeyboardPaths() ([]string, error) {
	matches, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, fmt.Errorf("glob /dev/input/event*: %w", err)
	}
	sort.Slice(matches, func(i, j int) bool {
		return evdevEventNum(matches[i]) < evdevEventNum(matches[j])
	})

	var paths []string
	for _, p := range matches {
		dev, err := evdev.Open(p)
		if err != nil {
			continue
		}
		isKbd := isKeyboardDevice(dev)
		dev.Close()
		if isKbd {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func evdevEventNum(path string) int {
	m := evdevDevPathRe.FindStringSubmatch(path)
	if m == nil {
		return -1
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// isKeyboardDevice rejects mice (EV_REL-capable) and requires both KEY_A
// and KEY_Z capability.
func isKeyboardDevice(dev *evdev.InputDevice) bool {
	types := dev.CapableTypes()
	hasRel, hasKey := false, false
	for _, t := range types {
		switch t {
		case evdev.EV_REL:
			hasRel = true
		case evdev.EV_KEY:
			hasKey = true
		}
	}
	if hasRel || !hasKey {
		return false
	}
	codes := dev.CapableEvents(evdev.EV_KEY)
	hasA, hasZ := false, false
	for _, c := range codes {
		switch c {
		case evdev.EvCode(30): // KEY_A
			hasA = true
		case evdev.EvCode(44): // KEY_Z
			hasZ = true
		}
	}
	return hasA && hasZ
}

func deviceID(path string, dev *evdev.InputDevice) string {
	if info, err := dev.InputID(); err == nil {
		return fmt.Sprintf("%04x:%04x:%s", info.Vendor, info.Product, filepath.Base(path))
	}
	return filepath.Base(path)
}

type linuxDevice struct {
	path string
	dev  *evdev.InputDevice
	id   string
}

// linuxCapture grabs every keyboard-capable evdev device exclusively
// (EVIOCGRAB) and streams key transitions from all of them.
type linuxCapture struct {
	mu      sync.Mutex
	devices map[string]*linuxDevice
	closed  bool

	events   chan InputEvent
	hotplug  chan HotplugEvent
	blockSet map[keycode.Code]bool

	logger *log.Logger
}

// NewCapture constructs the Linux Capture implementation. A nil logger
// means quiet: every attach/detach and device-open failure is dropped
// silently instead of logged.
func NewCapture(logger *log.Logger) Capture {
	return &linuxCapture{
		devices: make(map[string]*linuxDevice),
		logger:  logger,
	}
}

func (c *linuxCapture) InstallBlockTable(codes []keycode.Code) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockSet = make(map[keycode.Code]bool, len(codes))
	for _, code := range codes {
		c.blockSet[code] = true
	}
	return nil
}

func (c *linuxCapture) Start(ctx context.Context) (<-chan InputEvent, <-chan HotplugEvent, error) {
	c.events = make(chan InputEvent, 256)
	c.hotplug = make(chan HotplugEvent, 16)

	paths, err := listKeyboardPaths()
	if err != nil {
		return nil, nil, err
	}
	for _, p := range paths {
		if err := c.attach(p); err != nil && c.logger != nil {
			c.logger.Printf("skipping %s: %v", p, err)
		}
	}

	go c.watchHotplug(ctx)

	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	return c.events, c.hotplug, nil
}

func (c *linuxCapture) attach(path string) error {
	dev, err := evdev.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if !isKeyboardDevice(dev) {
		dev.Close()
		return fmt.Errorf("%s is not a keyboard", path)
	}
	if err := dev.Grab(); err != nil {
		dev.Close()
		return fmt.Errorf("grab %s: %w", path, err)
	}

	id := deviceID(path, dev)
	ld := &linuxDevice{path: path, dev: dev, id: id}

	c.mu.Lock()
	c.devices[path] = ld
	c.mu.Unlock()

	name, _ := dev.Name()
	if c.logger != nil {
		c.logger.Printf("attached device %s (%s)", id, name)
	}
	c.hotplug <- HotplugEvent{Kind: DeviceAttached, Device: Device{ID: id, Name: name}}

	go c.readLoop(ld)
	return nil
}

func (c *linuxCapture) readLoop(ld *linuxDevice) {
	defer c.detach(ld)
	for {
		ev, err := ld.dev.ReadOne()
		if err != nil {
			return
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}
		code, ok := keycode.FromLinux(uint16(ev.Code))
		if !ok {
			continue
		}
		switch ev.Value {
		case 1: // down
			c.events <- InputEvent{DeviceID: ld.id, Code: code, Kind: KeyDown, Time: time.Now()}
		case 0: // up
			c.events <- InputEvent{DeviceID: ld.id, Code: code, Kind: KeyUp, Time: time.Now()}
		default: // 2 = autorepeat, filtered here per spec.md §9
		}
	}
}

func (c *linuxCapture) detach(ld *linuxDevice) {
	c.mu.Lock()
	delete(c.devices, ld.path)
	closed := c.closed
	c.mu.Unlock()

	ld.dev.Close()
	if !closed {
		if c.logger != nil {
			c.logger.Printf("detached device %s", ld.id)
		}
		c.hotplug <- HotplugEvent{Kind: DeviceDetached, Device: Device{ID: ld.id}}
	}
}

// watchHotplug polls for newly appearing keyboard devices. evdev exposes
// no native hot-plug notification, so this re-scans the device-path glob
// on a timer instead of subscribing to a kernel event.
func (c *linuxCapture) watchHotplug(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			paths, err := listKeyboardPaths()
			if err != nil {
				continue
			}
			c.mu.Lock()
			known := make(map[string]bool, len(c.devices))
			for p := range c.devices {
				known[p] = true
			}
			c.mu.Unlock()
			for _, p := range paths {
				if !known[p] {
					if err := c.attach(p); err != nil && c.logger != nil {
						c.logger.Printf("skipping %s: %v", p, err)
					}
				}
			}
		}
	}
}

func (c *linuxCapture) Stop() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	devices := make([]*linuxDevice, 0, len(c.devices))
	for _, ld := range c.devices {
		devices = append(devices, ld)
	}
	c.mu.Unlock()

	for _, ld := range devices {
		ld.dev.Ungrab()
		ld.dev.Close()
	}
	return nil
}
