// Package devstate holds the per-device runtime state machine: custom
// modifier/lock bitsets, the press-tracking table, and the tap-hold
// processor (spec.md §3 "DeviceState", §4.5, §4.7).
package devstate

import (
	"fmt"

	"github.com/keyrx-dev/krx/internal/keycode"
	"github.com/keyrx-dev/krx/internal/mapping"
)

// PressRecord remembers enough about a resolved press to undo it precisely
// on release, independent of the Kind's own release semantics (spec.md
// §4.5, §4.6).
type PressRecord struct {
	Kind     mapping.Kind
	Outputs  []keycode.Code     // KindSimple, KindModifiedOutput: emission order
	Modifier mapping.ModifierID // KindModifier
}

// State is the runtime state for a single hardware device. It is created on
// device attach and destroyed on detach; it is never shared between
// devices (spec.md §3 "Lifecycles").
type State struct {
	DeviceID string

	modifiers mapping.Bitset256
	locks     mapping.Bitset256

	// pressed records, per input key currently down, what was actually
	// done for it, so release can retract precisely what was emitted
	// even if the layer/modifier context has since changed (spec.md §4.5).
	pressed map[keycode.Code]PressRecord

	tapHold *Processor
}

// New creates a fresh per-device state with no active modifiers, locks, or
// in-flight presses.
func New(deviceID string) *State {
	return &State{
		DeviceID: deviceID,
		pressed:  make(map[keycode.Code]PressRecord),
		tapHold:  newProcessor(),
	}
}

func checkRange(id uint8) error {
	if id > mapping.MaxCustomID {
		return fmt.Errorf("identifier %d exceeds the reserved range 0..0x%02X", id, mapping.MaxCustomID)
	}
	return nil
}

// SetModifier activates custom modifier id.
func (s *State) SetModifier(id mapping.ModifierID) error {
	if err := checkRange(uint8(id)); err != nil {
		return err
	}
	s.modifiers.Set(uint8(id))
	return nil
}

// ClearModifier deactivates custom modifier id.
func (s *State) ClearModifier(id mapping.ModifierID) error {
	if err := checkRange(uint8(id)); err != nil {
		return err
	}
	s.modifiers.Clear(uint8(id))
	return nil
}

// IsModifierActive reports whether custom modifier id is active.
func (s *State) IsModifierActive(id mapping.ModifierID) bool {
	return s.modifiers.Test(uint8(id))
}

// ToggleLock flips custom lock id and returns its new state.
func (s *State) ToggleLock(id mapping.LockID) (bool, error) {
	if err := checkRange(uint8(id)); err != nil {
		return false, err
	}
	return s.locks.Toggle(uint8(id)), nil
}

// IsLockActive reports whether custom lock id is active.
func (s *State) IsLockActive(id mapping.LockID) bool {
	return s.locks.Test(uint8(id))
}

// ModifierBits returns the current modifier bitset, for condition
// evaluation.
func (s *State) ModifierBits() mapping.Bitset256 { return s.modifiers }

// LockBits returns the current lock bitset, for condition evaluation.
func (s *State) LockBits() mapping.Bitset256 { return s.locks }

// RecordPress remembers what was actually done for an input's press, so a
// later release can retract it regardless of any layer/modifier change in
// between.
func (s *State) RecordPress(input keycode.Code, rec PressRecord) {
	cp := make([]keycode.Code, len(rec.Outputs))
	copy(cp, rec.Outputs)
	rec.Outputs = cp
	s.pressed[input] = rec
}

// GetReleaseKey returns the press record for input, if any.
func (s *State) GetReleaseKey(input keycode.Code) (PressRecord, bool) {
	rec, ok := s.pressed[input]
	return rec, ok
}

// ClearPress removes the press-tracking entry for input.
func (s *State) ClearPress(input keycode.Code) {
	delete(s.pressed, input)
}

// InFlightInputs returns every input key with an open press-tracking
// entry, for forced-release bookkeeping on profile swap or device detach.
func (s *State) InFlightInputs() []keycode.Code {
	out := make([]keycode.Code, 0, len(s.pressed))
	for k := range s.pressed {
		out = append(out, k)
	}
	return out
}

// TapHold returns the device's tap-hold processor.
func (s *State) TapHold() *Processor {
	return s.tapHold
}
