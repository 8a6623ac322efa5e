//go:build windows

package platform

import (
	"fmt"
	"log"
	"unsafe"

	"github.com/keyrx-dev/krx/internal/keycode"
)

const (
	inputKeyboard = 1
	keyEventFUp   = 0x0002
	keyEventFScan = 0x0008
	keyEventFExtK = 0x0001
)

// keybdInput mirrors the Win32 KEYBDINPUT structure embedded in INPUT.
type keybdInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

// input mirrors the Win32 INPUT structure for type==INPUT_KEYBOARD. The
// padding matches the union's size on amd64 so SendInput reads the right
// number of bytes regardless of which union member we populate.
type input struct {
	inputType uint32
	_         uint32 // alignment padding before the union on amd64
	ki        keybdInput
	_         uint64 // pad union to the size of the largest member (MOUSEINPUT)
}

var procSendInput = user32.NewProc("SendInput")

// windowsInjector synthesizes key events with SendInput, tagging each
// with injectedMarker so the capture hook never re-delivers krx's own
// output back through the evaluator.
type windowsInjector struct {
	logger *log.Logger
}

// NewInjector constructs the Windows Injector implementation. A nil
// logger means quiet.
func NewInjector(logger *log.Logger) (Injector, error) {
	return windowsInjector{logger: logger}, nil
}

func (w windowsInjector) Inject(code keycode.Code, kind EventKind) error {
	scanCode, ok := keycode.ToWindowsScanCode(code)
	if !ok {
		return fmt.Errorf("%v has no Windows projection", code)
	}

	flags := uint32(keyEventFScan)
	if kind == KeyUp {
		flags |= keyEventFUp
	}
	extended := scanCode&0xE000 != 0
	if extended {
		flags |= keyEventFExtK
	}

	in := input{
		inputType: inputKeyboard,
		ki: keybdInput{
			wScan:       uint16(scanCode & 0xFF),
			dwFlags:     flags,
			dwExtraInfo: injectedMarker,
		},
	}

	ret, _, callErr := procSendInput.Call(
		uintptr(1),
		uintptr(unsafe.Pointer(&in)),
		unsafe.Sizeof(in),
	)
	if ret == 0 {
		if w.logger != nil {
			w.logger.Printf("inject %v failed: SendInput: %v", code, callErr)
		}
		return fmt.Errorf("inject %v: SendInput: %w", code, callErr)
	}
	return nil
}

func (windowsInjector) Close() error { return nil }
