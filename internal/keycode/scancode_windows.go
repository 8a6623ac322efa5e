package keycode

// windowsExtended marks the high-nibble extended-key flag used by the
// Windows-style platform path (spec.md §4.1): scan codes for keys that live
// on the extended keyboard (the original XT keyboard didn't have them) are
// OR'd with 0xE000 so a single uint32 carries both the scan code and the
// "this came from the E0-prefixed byte sequence" bit.
const windowsExtended = 0xE000

// windowsCode holds PS/2 scan-code-set-1 values. Values are the
// low byte; set extended=true for keys whose hardware sequence is prefixed
// by 0xE0 (arrows, the right-hand modifier pair, the numpad enter/divide,
// Insert/Delete/Home/End/PageUp/PageDown, and the GUI/menu keys).
type windowsEntry struct {
	code     uint16
	extended bool
}

var windowsCode = map[Code]windowsEntry{
	Escape: {0x01, false},
	Digit1: {0x02, false}, Digit2: {0x03, false}, Digit3: {0x04, false},
	Digit4: {0x05, false}, Digit5: {0x06, false}, Digit6: {0x07, false},
	Digit7: {0x08, false}, Digit8: {0x09, false}, Digit9: {0x0A, false},
	Digit0: {0x0B, false},
	Minus:  {0x0C, false}, Equal: {0x0D, false}, Backspace: {0x0E, false},
	Tab: {0x0F, false},
	Q:  {0x10, false}, W: {0x11, false}, E: {0x12, false}, R: {0x13, false},
	T:  {0x14, false}, Y: {0x15, false}, U: {0x16, false}, I: {0x17, false},
	O: {0x18, false}, P: {0x19, false},
	LeftBracket: {0x1A, false}, RightBracket: {0x1B, false}, Enter: {0x1C, false},
	LeftCtrl: {0x1D, false},
	A:        {0x1E, false}, S: {0x1F, false}, D: {0x20, false}, F: {0x21, false},
	G:        {0x22, false}, H: {0x23, false}, J: {0x24, false}, K: {0x25, false},
	L:        {0x26, false},
	Semicolon: {0x27, false}, Apostrophe: {0x28, false}, Grave: {0x29, false},
	LeftShift: {0x2A, false}, Backslash: {0x2B, false},
	Z: {0x2C, false}, X: {0x2D, false}, C: {0x2E, false}, V: {0x2F, false},
	B: {0x30, false}, N: {0x31, false}, M: {0x32, false},
	Comma: {0x33, false}, Period: {0x34, false}, Slash: {0x35, false},
	RightShift:     {0x36, false},
	NumpadMultiply: {0x37, false},
	LeftAlt:        {0x38, false},
	Space:          {0x39, false},
	CapsLock:       {0x3A, false},
	F1:  {0x3B, false}, F2: {0x3C, false}, F3: {0x3D, false}, F4: {0x3E, false},
	F5:  {0x3F, false}, F6: {0x40, false}, F7: {0x41, false}, F8: {0x42, false},
	F9:  {0x43, false}, F10: {0x44, false},
	NumLock:        {0x45, false},
	ScrollLock:     {0x46, false},
	Numpad7:        {0x47, false},
	Numpad8:        {0x48, false},
	Numpad9:        {0x49, false},
	NumpadSubtract: {0x4A, false},
	Numpad4:        {0x4B, false},
	Numpad5:        {0x4C, false},
	Numpad6:        {0x4D, false},
	NumpadAdd:      {0x4E, false},
	Numpad1:        {0x4F, false},
	Numpad2:        {0x50, false},
	Numpad3:        {0x51, false},
	Numpad0:        {0x52, false},
	NumpadDecimal:  {0x53, false},
	IntlBackslash:  {0x56, false},
	F11: {0x57, false}, F12: {0x58, false},
	F13: {0x64, false}, F14: {0x65, false}, F15: {0x66, false}, F16: {0x67, false},
	F17: {0x68, false}, F18: {0x69, false}, F19: {0x6A, false}, F20: {0x6B, false},
	F21: {0x6C, false}, F22: {0x6D, false}, F23: {0x6E, false}, F24: {0x76, false},

	// Extended (E0-prefixed) keys.
	NumpadEnter: {0x1C, true},
	RightCtrl:   {0x1D, true},
	NumpadDivide: {0x35, true},
	PrintScreen: {0x37, true},
	RightAlt:    {0x38, true},
	Home:        {0x47, true},
	Up:          {0x48, true},
	PageUp:      {0x49, true},
	Left:        {0x4B, true},
	Right:       {0x4D, true},
	End:         {0x4F, true},
	Down:        {0x50, true},
	PageDown:    {0x51, true},
	Insert:      {0x52, true},
	Delete:      {0x53, true},
	LeftGui:     {0x5B, true},
	RightGui:    {0x5C, true},
	Application: {0x5D, true},
	Power:       {0x5E, true},
	Sleep:       {0x5F, true},
	MediaNext:        {0x19, true},
	MediaPrevious:    {0x10, true},
	MediaStop:        {0x24, true},
	MediaPlayPause:   {0x22, true},
	Mute:             {0x20, true},
	VolumeDown:       {0x2E, true},
	VolumeUp:         {0x30, true},
	Pause:            {0x45, false},
}

// ToWindowsScanCode projects c onto its combined 32-bit PS/2 scan code, with
// the 0xE000 extended-key flag set for keys on the extended keyboard, as
// described in spec.md §4.1.
func ToWindowsScanCode(c Code) (uint32, bool) {
	e, ok := windowsCode[c]
	if !ok {
		return 0, false
	}
	code := uint32(e.code)
	if e.extended {
		code |= windowsExtended
	}
	return code, true
}

var windowsCodeReverse map[uint32]Code

func init() {
	windowsCodeReverse = make(map[uint32]Code, len(windowsCode))
	for c, e := range windowsCode {
		code := uint32(e.code)
		if e.extended {
			code |= windowsExtended
		}
		windowsCodeReverse[code] = c
	}
}

// FromWindowsScanCode resolves a combined 32-bit scan code (with the
// extended flag already applied, if any) back to a Code.
func FromWindowsScanCode(scanCode uint32) (Code, bool) {
	c, ok := windowsCodeReverse[scanCode]
	return c, ok
}
