package mapping

import "testing"

func TestParseModifierID(t *testing.T) {
	id, err := ParseModifierID("MD_00")
	if err != nil || id != 0 {
		t.Fatalf("MD_00: id=%d err=%v", id, err)
	}
	id, err = ParseModifierID("MD_FE")
	if err != nil || id != 0xFE {
		t.Fatalf("MD_FE: id=%d err=%v", id, err)
	}
	if _, err := ParseModifierID("MD_FF"); err == nil {
		t.Error("MD_FF exceeds the reserved range and must be rejected")
	}
	if _, err := ParseModifierID("LK_00"); err == nil {
		t.Error("wrong prefix must be rejected")
	}
	if id.String() != "MD_FE" {
		t.Errorf("String() = %s", id.String())
	}
}

func TestParseLockID(t *testing.T) {
	id, err := ParseLockID("LK_1A")
	if err != nil || id != 0x1A {
		t.Fatalf("LK_1A: id=%d err=%v", id, err)
	}
	if id.String() != "LK_1A" {
		t.Errorf("String() = %s", id.String())
	}
}

func TestBitset256(t *testing.T) {
	var b Bitset256
	if b.Test(10) {
		t.Fatal("fresh bitset must be empty")
	}
	b.Set(10)
	if !b.Test(10) {
		t.Fatal("bit 10 must be set")
	}
	if b.Test(11) {
		t.Fatal("bit 11 must not be set")
	}
	b.Set(254)
	if !b.Test(254) {
		t.Fatal("bit 254 must be set")
	}
	b.Clear(10)
	if b.Test(10) {
		t.Fatal("bit 10 must be cleared")
	}
	if !b.Toggle(20) {
		t.Fatal("toggle on unset bit must activate it")
	}
	if b.Toggle(20) {
		t.Fatal("toggle on set bit must deactivate it")
	}
}

func TestConditionEvalAndAtoms(t *testing.T) {
	c := And(ModifierActive(1), Not(LockActive(2)))
	var mods, locks Bitset256
	mods.Set(1)

	if !c.Eval(mods, locks) {
		t.Error("expected condition true: MD_01 active, LK_02 inactive")
	}
	locks.Set(2)
	if c.Eval(mods, locks) {
		t.Error("expected condition false once LK_02 becomes active")
	}

	atoms := c.Atoms()
	if len(atoms) != 2 {
		t.Fatalf("expected 2 distinct atoms, got %d", len(atoms))
	}
}

func TestConditionOr(t *testing.T) {
	c := Or(ModifierActive(1), ModifierActive(2))
	var mods, locks Bitset256
	if c.Eval(mods, locks) {
		t.Fatal("expected false with nothing active")
	}
	mods.Set(2)
	if !c.Eval(mods, locks) {
		t.Fatal("expected true once MD_02 is active")
	}
}

func TestGlobMatching(t *testing.T) {
	cases := []struct {
		pattern string
		match   string
		want    bool
	}{
		{"*", "anything", true},
		{"kbd*", "kbd-laptop", true},
		{"kbd*", "other", false},
		{"*-internal", "kbd-internal", true},
		{"*-internal", "kbd-external", false},
		{"*usb*", "device-usb-0", true},
		{"*usb*", "device-ps2-0", false},
		{"exact-name", "exact-name", true},
		{"exact-name", "exact-name-2", false},
	}
	for _, c := range cases {
		g, err := CompileGlob(c.pattern)
		if err != nil {
			t.Fatalf("CompileGlob(%q): %v", c.pattern, err)
		}
		if got := g.Match(c.match); got != c.want {
			t.Errorf("CompileGlob(%q).Match(%q) = %v, want %v", c.pattern, c.match, got, c.want)
		}
	}
}

func TestGlobRejectsUnboundedWildcards(t *testing.T) {
	if _, err := CompileGlob("a*b*c"); err == nil {
		t.Error("expected error for more than one interior wildcard")
	}
	if _, err := CompileGlob(""); err == nil {
		t.Error("expected error for empty pattern")
	}
}

func TestModifierFlagsKeysOrder(t *testing.T) {
	f := FlagLeftCtrl | FlagLeftShift
	keys := f.Keys()
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	// Canonical order is Shift before Ctrl.
	if keys[0].String() != "LeftShift" || keys[1].String() != "LeftCtrl" {
		t.Errorf("unexpected order: %v", keys)
	}
}
