package keycode

import "testing"

func TestStandardModifierSetOrderAndMembership(t *testing.T) {
	mods := StandardModifierSet()
	if len(mods) != 8 {
		t.Fatalf("expected 8 standard modifiers, got %d", len(mods))
	}
	want := []Code{LeftShift, RightShift, LeftCtrl, RightCtrl, LeftAlt, RightAlt, LeftGui, RightGui}
	for i, c := range want {
		if mods[i] != c {
			t.Errorf("position %d: expected %s, got %s", i, c, mods[i])
		}
	}
	if IsStandardModifier(A) {
		t.Error("A must not be a standard modifier")
	}
	if !IsStandardModifier(LeftShift) {
		t.Error("LeftShift must be a standard modifier")
	}
}

func TestLookupRoundTrip(t *testing.T) {
	for _, c := range All() {
		name := c.String()
		got, ok := Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%q) failed for code %d", name, c)
		}
		if got != c {
			t.Errorf("Lookup(%q) = %d, want %d", name, got, c)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := Lookup("NOT_A_KEY"); ok {
		t.Error("expected Lookup of unknown identifier to fail")
	}
}

func TestLinuxProjectionTotalOnSupportedKeys(t *testing.T) {
	for _, c := range All() {
		code, ok := ToLinux(c)
		if !ok {
			continue
		}
		back, ok := FromLinux(code)
		if !ok || back != c {
			t.Errorf("Linux round trip failed for %s: code=%d back=%s ok=%v", c, code, back, ok)
		}
	}
}

func TestWindowsProjectionExtendedFlag(t *testing.T) {
	code, ok := ToWindowsScanCode(Up)
	if !ok {
		t.Fatal("Up must have a Windows projection")
	}
	if code&windowsExtended == 0 {
		t.Error("Up is an extended key and must carry the 0xE000 flag")
	}
	back, ok := FromWindowsScanCode(code)
	if !ok || back != Up {
		t.Errorf("round trip failed: back=%s ok=%v", back, ok)
	}

	code, ok = ToWindowsScanCode(A)
	if !ok {
		t.Fatal("A must have a Windows projection")
	}
	if code&windowsExtended != 0 {
		t.Error("A is not an extended key and must not carry the 0xE000 flag")
	}
}

func TestDarwinProjectionRoundTrip(t *testing.T) {
	for _, c := range All() {
		code, ok := ToDarwin(c)
		if !ok {
			continue
		}
		back, ok := FromDarwin(code)
		if !ok || back != c {
			t.Errorf("Darwin round trip failed for %s: code=%d back=%s ok=%v", c, code, back, ok)
		}
	}
}
