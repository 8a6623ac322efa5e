//go:build linux

package platform

import (
	"fmt"
	"log"
	"sync"

	"github.com/holoplot/go-evdev"

	"github.com/keyrx-dev/krx/internal/keycode"
)

// linuxInjector synthesizes key events through a virtual uinput device,
// the standard Linux mechanism for injecting input that other processes
// (and the evdev-grabbing capture side of this same daemon) will observe
// as if a real keyboard produced it.
type linuxInjector struct {
	mu     sync.Mutex
	dev    *evdev.InputDevice
	logger *log.Logger
}

// NewInjector creates a virtual "krx virtual keyboard" uinput device
// capable of emitting every key in the catalog that has a Linux
// projection. A nil logger means quiet.
func NewInjector(logger *log.Logger) (Injector, error) {
	caps := make([]evdev.EvCode, 0, 256)
	for _, code := range keycode.All() {
		if lin, ok := keycode.ToLinux(code); ok {
			caps = append(caps, evdev.EvCode(lin))
		}
	}

	dev, err := evdev.CreateDevice(
		"krx virtual keyboard",
		evdev.InputID{BusType: 0x03, Vendor: 0x4b52, Product: 0x5258, Version: 1},
		map[evdev.EvType][]evdev.EvCode{
			evdev.EV_KEY: caps,
		},
	)
	if err != nil {
		if logger != nil {
			logger.Printf("create uinput device failed: %v", err)
		}
		return nil, fmt.Errorf("create uinput device: %w", err)
	}
	if logger != nil {
		logger.Printf("created uinput device with %d mapped keys", len(caps))
	}
	return &linuxInjector{dev: dev, logger: logger}, nil
}

func (i *linuxInjector) Inject(code keycode.Code, kind EventKind) error {
	lin, ok := keycode.ToLinux(code)
	if !ok {
		return fmt.Errorf("%v has no Linux projection", code)
	}
	value := int32(0)
	if kind == KeyDown {
		value = 1
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.dev.WriteOne(&evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.EvCode(lin), Value: value}); err != nil {
		if i.logger != nil {
			i.logger.Printf("inject %v failed: %v", code, err)
		}
		return fmt.Errorf("inject %v: %w", code, err)
	}
	return i.dev.WriteOne(&evdev.InputEvent{Type: evdev.EV_SYN, Code: evdev.EvCode(0), Value: 0})
}

func (i *linuxInjector) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.dev.Close()
}
