package keycode

// darwinCode holds macOS CGKeyCode virtual key-code values for the full
// catalog.
var darwinCode = map[Code]uint16{
	A: 0x00, S: 0x01, D: 0x02, F: 0x03, H: 0x04, G: 0x05, Z: 0x06, X: 0x07,
	C: 0x08, V: 0x09, B: 0x0B, Q: 0x0C, W: 0x0D, E: 0x0E, R: 0x0F, Y: 0x10,
	T: 0x11,
	Digit1: 0x12, Digit2: 0x13, Digit3: 0x14, Digit4: 0x15, Digit6: 0x16,
	Digit5: 0x17, Equal: 0x18, Digit9: 0x19, Digit7: 0x1A, Minus: 0x1B,
	Digit8: 0x1C, Digit0: 0x1D,
	RightBracket: 0x1E, O: 0x1F, U: 0x20, LeftBracket: 0x21, I: 0x22, P: 0x23,
	Enter: 0x24, L: 0x25, J: 0x26, Apostrophe: 0x27, K: 0x28, Semicolon: 0x29,
	Backslash: 0x2A, Comma: 0x2B, Slash: 0x2C, N: 0x2D, M: 0x2E, Period: 0x2F,
	Tab: 0x30, Space: 0x31, Grave: 0x32, Backspace: 0x33, Escape: 0x35,

	LeftGui: 0x37, LeftShift: 0x38, CapsLock: 0x39, LeftAlt: 0x3A,
	LeftCtrl: 0x3B, RightShift: 0x3C, RightAlt: 0x3D, RightCtrl: 0x3E,

	F17: 0x40, NumpadDecimal: 0x41, NumpadMultiply: 0x43, NumpadAdd: 0x45,
	VolumeUp: 0x48, VolumeDown: 0x49, Mute: 0x4A,
	NumpadDivide: 0x4B, NumpadEnter: 0x4C, NumpadSubtract: 0x4E,
	F18: 0x4F, F19: 0x50, NumpadEquals: 0x51,
	Numpad0: 0x52, Numpad1: 0x53, Numpad2: 0x54, Numpad3: 0x55, Numpad4: 0x56,
	Numpad5: 0x57, Numpad6: 0x58, F20: 0x5A, Numpad7: 0x59, Numpad8: 0x5B,
	Numpad9: 0x5C,
	IntlYen: 0x5D, IntlBackslash: 0x5E, KpJpComma: 0x5F,

	F5: 0x60, F6: 0x61, F7: 0x62, F3: 0x63, F8: 0x64, F9: 0x65,
	F11: 0x67, F13: 0x69, F16: 0x6A, F14: 0x6B, F10: 0x6D, F12: 0x6F,
	F15: 0x71, Home: 0x73, PageUp: 0x74, Delete: 0x75, F4: 0x76, End: 0x77,
	F2: 0x78, PageDown: 0x79, F1: 0x7A,
	Left: 0x7B, Right: 0x7C, Down: 0x7D, Up: 0x7E,

	Application: 0x6E, // context-menu key; keycode not present on all Macs
}

var darwinCodeReverse map[uint16]Code

func init() {
	darwinCodeReverse = make(map[uint16]Code, len(darwinCode))
	for c, code := range darwinCode {
		darwinCodeReverse[code] = c
	}
}

// ToDarwin projects c onto its macOS CGKeyCode.
func ToDarwin(c Code) (uint16, bool) {
	code, ok := darwinCode[c]
	return code, ok
}

// FromDarwin resolves a macOS CGKeyCode back to a Code.
func FromDarwin(keyCode uint16) (Code, bool) {
	c, ok := darwinCodeReverse[keyCode]
	return c, ok
}
