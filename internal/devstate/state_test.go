package devstate

import (
	"testing"

	"github.com/keyrx-dev/krx/internal/keycode"
	"github.com/keyrx-dev/krx/internal/mapping"
)

func TestModifierAndLockBounds(t *testing.T) {
	s := New("kbd0")
	if err := s.SetModifier(mapping.ModifierID(0xFF)); err == nil {
		t.Fatal("0xFF exceeds the reserved range and must be rejected")
	}
	if err := s.SetModifier(mapping.ModifierID(5)); err != nil {
		t.Fatalf("SetModifier(5): %v", err)
	}
	if !s.IsModifierActive(mapping.ModifierID(5)) {
		t.Fatal("MD_05 must be active")
	}
	if err := s.ClearModifier(mapping.ModifierID(5)); err != nil {
		t.Fatalf("ClearModifier(5): %v", err)
	}
	if s.IsModifierActive(mapping.ModifierID(5)) {
		t.Fatal("MD_05 must be cleared")
	}
}

func TestLockToggle(t *testing.T) {
	s := New("kbd0")
	on, err := s.ToggleLock(mapping.LockID(2))
	if err != nil || !on {
		t.Fatalf("first toggle: on=%v err=%v", on, err)
	}
	off, err := s.ToggleLock(mapping.LockID(2))
	if err != nil || off {
		t.Fatalf("second toggle: on=%v err=%v", off, err)
	}
}

func TestPressTrackingRoundTrip(t *testing.T) {
	s := New("kbd0")
	s.RecordPress(keycode.A, PressRecord{Kind: mapping.KindSimple, Outputs: []keycode.Code{keycode.B}})
	rec, ok := s.GetReleaseKey(keycode.A)
	if !ok || len(rec.Outputs) != 1 || rec.Outputs[0] != keycode.B {
		t.Fatalf("GetReleaseKey = %+v, ok=%v", rec, ok)
	}
	s.ClearPress(keycode.A)
	if _, ok := s.GetReleaseKey(keycode.A); ok {
		t.Fatal("expected no entry after ClearPress")
	}
}

func TestInFlightInputs(t *testing.T) {
	s := New("kbd0")
	s.RecordPress(keycode.A, PressRecord{Kind: mapping.KindSimple, Outputs: []keycode.Code{keycode.A}})
	s.RecordPress(keycode.B, PressRecord{Kind: mapping.KindSimple, Outputs: []keycode.Code{keycode.B}})
	in := s.InFlightInputs()
	if len(in) != 2 {
		t.Fatalf("expected 2 in-flight inputs, got %d", len(in))
	}
}
