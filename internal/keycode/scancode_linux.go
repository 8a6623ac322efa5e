package keycode

// linuxCode is the evdev EV_KEY code space (linux/input-event-codes.h).
// Values below are total for the catalog entries that exist on a standard
// PC-style keyboard; entries with no Linux equivalent are simply absent
// from the map and ToLinux reports !ok for them.
var linuxCode = map[Code]uint16{
	Escape: 1,
	Digit1: 2, Digit2: 3, Digit3: 4, Digit4: 5, Digit5: 6,
	Digit6: 7, Digit7: 8, Digit8: 9, Digit9: 10, Digit0: 11,
	Minus: 12, Equal: 13, Backspace: 14, Tab: 15,
	Q: 16, W: 17, E: 18, R: 19, T: 20, Y: 21, U: 22, I: 23, O: 24, P: 25,
	LeftBracket: 26, RightBracket: 27, Enter: 28, LeftCtrl: 29,
	A: 30, S: 31, D: 32, F: 33, G: 34, H: 35, J: 36, K: 37, L: 38,
	Semicolon: 39, Apostrophe: 40, Grave: 41, LeftShift: 42, Backslash: 43,
	Z: 44, X: 45, C: 46, V: 47, B: 48, N: 49, M: 50,
	Comma: 51, Period: 52, Slash: 53, RightShift: 54,
	NumpadMultiply: 55, LeftAlt: 56, Space: 57, CapsLock: 58,
	F1: 59, F2: 60, F3: 61, F4: 62, F5: 63, F6: 64, F7: 65, F8: 66, F9: 67, F10: 68,
	NumLock: 69, ScrollLock: 70,
	Numpad7: 71, Numpad8: 72, Numpad9: 73, NumpadSubtract: 74,
	Numpad4: 75, Numpad5: 76, Numpad6: 77, NumpadAdd: 78,
	Numpad1: 79, Numpad2: 80, Numpad3: 81, Numpad0: 82, NumpadDecimal: 83,
	IntlBackslash: 86, F11: 87, F12: 88,
	IntlRo: 89, Katakana: 90, Hiragana: 91, Convert: 92,
	KatakanaHiragana: 93, NonConvert: 94, KpJpComma: 95,
	NumpadEnter: 96, RightCtrl: 97, NumpadDivide: 98, PrintScreen: 99,
	RightAlt: 100, Home: 102, Up: 103, PageUp: 104, Left: 105, Right: 106,
	End: 107, Down: 108, PageDown: 109, Insert: 110, Delete: 111,
	Mute: 113, VolumeDown: 114, VolumeUp: 115, Power: 116,
	NumpadEquals: 117, Pause: 119,
	Hangeul: 122, Hanja: 123, IntlYen: 124,
	LeftGui: 125, RightGui: 126, Application: 127,
	Sleep: 142,
	MediaNext: 163, MediaPlayPause: 164, MediaPrevious: 165, MediaStop: 166,
	F13: 183, F14: 184, F15: 185, F16: 186, F17: 187, F18: 188,
	F19: 189, F20: 190, F21: 191, F22: 192, F23: 193, F24: 194,
}

var linuxCodeReverse map[uint16]Code

func init() {
	linuxCodeReverse = make(map[uint16]Code, len(linuxCode))
	for c, code := range linuxCode {
		linuxCodeReverse[code] = c
	}
}

// ToLinux projects c onto its Linux evdev EV_KEY code.
func ToLinux(c Code) (uint16, bool) {
	code, ok := linuxCode[c]
	return code, ok
}

// FromLinux resolves a Linux evdev EV_KEY code back to a Code.
func FromLinux(evCode uint16) (Code, bool) {
	c, ok := linuxCodeReverse[evCode]
	return c, ok
}
