//go:build darwin

package platform

/*
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation
#include <ApplicationServices/ApplicationServices.h>
*/
import "C"

import (
	"fmt"
	"log"

	"github.com/keyrx-dev/krx/internal/keycode"
)

// darwinInjector posts synthetic CGEvents into the session event stream,
// the injection half of the CGEventTap technique used for capture.
type darwinInjector struct {
	logger *log.Logger
}

// NewInjector constructs the Darwin Injector implementation. A nil logger
// means quiet.
func NewInjector(logger *log.Logger) (Injector, error) {
	return darwinInjector{logger: logger}, nil
}

func (d darwinInjector) Inject(code keycode.Code, kind EventKind) error {
	keyCode, ok := keycode.ToDarwin(code)
	if !ok {
		return fmt.Errorf("%v has no macOS projection", code)
	}

	keyDown := C.boolean_t(0)
	if kind == KeyDown {
		keyDown = 1
	}

	ev := C.CGEventCreateKeyboardEvent(nil, C.CGKeyCode(keyCode), keyDown)
	if ev == 0 {
		if d.logger != nil {
			d.logger.Printf("inject %v failed: CGEventCreateKeyboardEvent returned null", code)
		}
		return fmt.Errorf("inject %v: CGEventCreateKeyboardEvent failed", code)
	}
	defer C.CFRelease(C.CFTypeRef(ev))

	C.CGEventPost(C.kCGSessionEventTap, ev)
	return nil
}

func (darwinInjector) Close() error { return nil }
