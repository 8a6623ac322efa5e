package mapping

import "github.com/keyrx-dev/krx/internal/keycode"

// Kind discriminates the shape of a Mapping (spec.md §3 "Mapping").
type Kind uint8

const (
	// KindSimple produces an output key.
	KindSimple Kind = iota
	// KindModifiedOutput produces an output key with standard modifiers held.
	KindModifiedOutput
	// KindModifier holds a CustomModifier while the input is pressed.
	KindModifier
	// KindLock toggles a CustomLock on tap.
	KindLock
	// KindTapHold emits a tap output on a quick tap, a CustomModifier on hold.
	KindTapHold
)

// ModifierFlags is the bitset of standard modifiers to hold for the
// duration of a ModifiedOutput's emitted key, in the canonical order
// returned by keycode.StandardModifierSet.
type ModifierFlags uint8

const (
	FlagLeftShift ModifierFlags = 1 << iota
	FlagRightShift
	FlagLeftCtrl
	FlagRightCtrl
	FlagLeftAlt
	FlagRightAlt
	FlagLeftGui
	FlagRightGui
)

// flagOrder pairs each flag bit with the KeyCode it represents, in
// canonical emission order (matches keycode.StandardModifierSet).
var flagOrder = []struct {
	flag ModifierFlags
	code keycode.Code
}{
	{FlagLeftShift, keycode.LeftShift},
	{FlagRightShift, keycode.RightShift},
	{FlagLeftCtrl, keycode.LeftCtrl},
	{FlagRightCtrl, keycode.RightCtrl},
	{FlagLeftAlt, keycode.LeftAlt},
	{FlagRightAlt, keycode.RightAlt},
	{FlagLeftGui, keycode.LeftGui},
	{FlagRightGui, keycode.RightGui},
}

// Keys returns the KeyCodes represented by the set flags, in canonical
// press order.
func (f ModifierFlags) Keys() []keycode.Code {
	out := make([]keycode.Code, 0, len(flagOrder))
	for _, fo := range flagOrder {
		if f&fo.flag != 0 {
			out = append(out, fo.code)
		}
	}
	return out
}

// Rule is a single mapping rule: an input key and one of the shapes in Kind.
type Rule struct {
	Input keycode.Code
	Kind  Kind

	// KindSimple, KindModifiedOutput, KindTapHold (tap branch).
	Output keycode.Code
	// KindModifiedOutput only.
	Mods ModifierFlags
	// KindModifier, KindTapHold (hold branch).
	Modifier ModifierID
	// KindLock.
	Lock LockID
	// KindTapHold.
	TapThresholdMs uint32
}

// ConditionGroup is a `when_start/when_end` block: an ordered set of rules
// gated by a Condition and scoped to devices matching a glob pattern.
type ConditionGroup struct {
	DevicePattern Glob
	Condition     Condition
	Rules         []Rule
}

// Profile is the full compiled program: base rules plus the ordered list of
// conditional groups (spec.md §3 "Profile").
type Profile struct {
	Base   []Rule
	Groups []ConditionGroup
}

// FindBase returns the base rule for an input key, if any.
func (p *Profile) FindBase(input keycode.Code) (Rule, bool) {
	for _, r := range p.Base {
		if r.Input == input {
			return r, true
		}
	}
	return Rule{}, false
}
