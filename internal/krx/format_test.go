package krx

import (
	"errors"
	"testing"

	"github.com/keyrx-dev/krx/internal/keycode"
	"github.com/keyrx-dev/krx/internal/krxerr"
	"github.com/keyrx-dev/krx/internal/mapping"
)

func sampleProfile(t *testing.T) *mapping.Profile {
	t.Helper()
	kbdGlob, err := mapping.CompileGlob("kbd*")
	if err != nil {
		t.Fatalf("CompileGlob: %v", err)
	}
	return &mapping.Profile{
		Base: []mapping.Rule{
			{Input: keycode.A, Kind: mapping.KindSimple, Output: keycode.B},
			{Input: keycode.CapsLock, Kind: mapping.KindLock, Lock: mapping.LockID(0)},
			{Input: keycode.Z, Kind: mapping.KindModifiedOutput, Output: keycode.Z, Mods: mapping.FlagLeftCtrl},
		},
		Groups: []mapping.ConditionGroup{
			{
				DevicePattern: kbdGlob,
				Condition:     mapping.ModifierActive(mapping.ModifierID(0)),
				Rules: []mapping.Rule{
					{Input: keycode.W, Kind: mapping.KindSimple, Output: keycode.Digit1},
				},
			},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := sampleProfile(t)
	data, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(got.Base) != len(p.Base) {
		t.Fatalf("base rule count = %d, want %d", len(got.Base), len(p.Base))
	}
	for _, want := range p.Base {
		found := false
		for _, r := range got.Base {
			if r.Input == want.Input {
				found = true
				if r.Kind != want.Kind || r.Output != want.Output || r.Mods != want.Mods || r.Lock != want.Lock {
					t.Errorf("decoded rule for %v = %+v, want %+v", want.Input, r, want)
				}
			}
		}
		if !found {
			t.Errorf("missing decoded base rule for input %v", want.Input)
		}
	}

	if len(got.Groups) != 1 {
		t.Fatalf("group count = %d, want 1", len(got.Groups))
	}
	g := got.Groups[0]
	if !g.DevicePattern.Match("kbd-laptop") || g.DevicePattern.Match("mouse-0") {
		t.Errorf("decoded device pattern mismatch: %v", g.DevicePattern)
	}

	var mods, locks mapping.Bitset256
	if g.Condition.Eval(mods, locks) {
		t.Error("condition should be false with MD_00 inactive")
	}
	mods.Set(0)
	if !g.Condition.Eval(mods, locks) {
		t.Error("condition should be true with MD_00 active")
	}

	if len(g.Rules) != 1 || g.Rules[0].Output != keycode.Digit1 {
		t.Fatalf("decoded group rules = %+v", g.Rules)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	p := sampleProfile(t)
	data, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	corrupt := append([]byte(nil), data...)
	corrupt[0] = 'X'
	if _, err := Decode(corrupt); !errors.Is(err, krxerr.ErrIncompatibleFormat) {
		t.Fatalf("Decode with bad magic = %v, want ErrIncompatibleFormat", err)
	}
}

func TestDecodeRejectsChecksumMismatch(t *testing.T) {
	p := sampleProfile(t)
	data, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	corrupt := append([]byte(nil), data...)
	corrupt[len(corrupt)-1] ^= 0xFF
	if _, err := Decode(corrupt); !errors.Is(err, krxerr.ErrChecksumMismatch) {
		t.Fatalf("Decode with flipped payload byte = %v, want ErrChecksumMismatch", err)
	}
}

func TestEncodeEmptyProfile(t *testing.T) {
	data, err := Encode(&mapping.Profile{})
	if err != nil {
		t.Fatalf("Encode(empty): %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode(empty): %v", err)
	}
	if len(got.Base) != 0 || len(got.Groups) != 0 {
		t.Fatalf("expected an empty profile, got %+v", got)
	}
}
