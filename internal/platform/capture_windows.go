//go:build windows

package platform

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/keyrx-dev/krx/internal/keycode"
)

const (
	whKeyboardLL  = 13
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	llkhfInjected = 0x10
	llkhfExtended = 0x01
	extendedFlag  = 0xE000
)

// injectedMarker tags events krx itself injects, so the hook never
// re-processes its own synthetic key-ups as fresh presses.
const injectedMarker = uintptr(0x4b525831) // "KRX1"

type kbdllhookstruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetModuleHandle     = kernel32.NewProc("GetModuleHandleW")
)

// windowsCapture installs a WH_KEYBOARD_LL hook, generalizing the
// single-hotkey callback shape the corpus's Windows samples use to every
// key (spec.md §4.8's block table: a hook return of 1 suppresses the key
// from reaching every other process).
type windowsCapture struct {
	mu       sync.Mutex
	blockSet map[keycode.Code]bool
	hookID   uintptr
	hookProc uintptr
	events   chan InputEvent
	hotplug  chan HotplugEvent
	running  bool
	logger   *log.Logger
}

// NewCapture constructs the Windows Capture implementation. A nil logger
// means quiet.
func NewCapture(logger *log.Logger) Capture {
	return &windowsCapture{logger: logger}
}

func (c *windowsCapture) InstallBlockTable(codes []keycode.Code) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockSet = make(map[keycode.Code]bool, len(codes))
	for _, code := range codes {
		c.blockSet[code] = true
	}
	return nil
}

func (c *windowsCapture) Start(ctx context.Context) (<-chan InputEvent, <-chan HotplugEvent, error) {
	c.events = make(chan InputEvent, 256)
	c.hotplug = make(chan HotplugEvent, 16)

	c.hookProc = windows.NewCallback(c.hookCallback)
	hMod, _, _ := procGetModuleHandle.Call(0)

	hookID, _, callErr := procSetWindowsHookEx.Call(
		uintptr(whKeyboardLL),
		c.hookProc,
		hMod,
		0,
	)
	if hookID == 0 {
		if c.logger != nil {
			c.logger.Printf("SetWindowsHookExW failed: %v", callErr)
		}
		return nil, nil, fmt.Errorf("SetWindowsHookExW: %w", callErr)
	}
	c.hookID = hookID
	c.running = true

	if c.logger != nil {
		c.logger.Printf("installed WH_KEYBOARD_LL hook")
	}
	c.hotplug <- HotplugEvent{Kind: DeviceAttached, Device: Device{ID: "windows-hid", Name: "Windows keyboard session"}}

	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	return c.events, c.hotplug, nil
}

func (c *windowsCapture) hookCallback(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 && (wParam == wmKeyDown || wParam == wmSysKeyDown || wParam == wmKeyUp || wParam == wmSysKeyUp) {
		hookStruct := (*kbdllhookstruct)(unsafe.Pointer(lParam))

		if hookStruct.DwExtraInfo != injectedMarker && hookStruct.Flags&llkhfInjected == 0 {
			scanCode := hookStruct.ScanCode
			if hookStruct.Flags&llkhfExtended != 0 {
				scanCode |= extendedFlag
			}
			code, ok := keycode.FromWindowsScanCode(scanCode)
			if ok {
				kind := KeyDown
				if wParam == wmKeyUp || wParam == wmSysKeyUp {
					kind = KeyUp
				}
				select {
				case c.events <- InputEvent{DeviceID: "windows-hid", Code: code, Kind: kind, Time: time.Now()}:
				default:
				}
				if c.isBlocked(code) {
					return 1
				}
			}
		}
	}

	ret, _, _ := procCallNextHookEx.Call(c.hookID, uintptr(nCode), wParam, lParam)
	return ret
}

func (c *windowsCapture) isBlocked(code keycode.Code) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockSet[code]
}

func (c *windowsCapture) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	hookID := c.hookID
	c.mu.Unlock()

	procUnhookWindowsHookEx.Call(hookID)
	return nil
}
