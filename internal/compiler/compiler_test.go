package compiler

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keyrx-dev/krx/internal/keycode"
	"github.com/keyrx-dev/krx/internal/krxerr"
	"github.com/keyrx-dev/krx/internal/mapping"
)

func TestCompileSimpleRemap(t *testing.T) {
	p, err := Compile(`map(A, B);`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(p.Base) != 1 || p.Base[0].Input != keycode.A || p.Base[0].Output != keycode.B {
		t.Fatalf("Base = %+v", p.Base)
	}
}

func TestCompileModifiedOutput(t *testing.T) {
	p, err := Compile(`map(A, with_mods(Z, ctrl=true, shift=false));`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	r := p.Base[0]
	if r.Kind != mapping.KindModifiedOutput || r.Output != keycode.Z {
		t.Fatalf("rule = %+v", r)
	}
	if r.Mods&mapping.FlagLeftCtrl == 0 || r.Mods&mapping.FlagLeftShift != 0 {
		t.Fatalf("Mods = %v", r.Mods)
	}
}

func TestCompileModifierAndLockRules(t *testing.T) {
	p, err := Compile(`
		map(LeftAlt, MD_00);
		map(CapsLock, LK_00);
	`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if p.Base[0].Kind != mapping.KindModifier || p.Base[0].Modifier != mapping.ModifierID(0) {
		t.Fatalf("modifier rule = %+v", p.Base[0])
	}
	if p.Base[1].Kind != mapping.KindLock || p.Base[1].Lock != mapping.LockID(0) {
		t.Fatalf("lock rule = %+v", p.Base[1])
	}
}

func TestCompileTapHold(t *testing.T) {
	p, err := Compile(`tap_hold(B, Enter, MD_00, 200);`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	r := p.Base[0]
	if r.Kind != mapping.KindTapHold || r.Output != keycode.Enter || r.Modifier != mapping.ModifierID(0) || r.TapThresholdMs != 200 {
		t.Fatalf("tap_hold rule = %+v", r)
	}
}

func TestCompileConditionalGroup(t *testing.T) {
	p, err := Compile(`
		tap_hold(B, Enter, MD_00, 200);
		when_start(MD_00);
			map(W, Digit1);
		when_end();
	`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(p.Groups) != 1 {
		t.Fatalf("Groups = %+v", p.Groups)
	}
	g := p.Groups[0]
	if g.DevicePattern.Kind != mapping.GlobAll {
		t.Fatalf("DevicePattern = %+v", g.DevicePattern)
	}
	var mods, locks mapping.Bitset256
	mods.Set(0)
	if !g.Condition.Eval(mods, locks) {
		t.Fatal("condition must be true with MD_00 active")
	}
	if len(g.Rules) != 1 || g.Rules[0].Output != keycode.Digit1 {
		t.Fatalf("Rules = %+v", g.Rules)
	}
}

func TestCompileConditionalExpr(t *testing.T) {
	p, err := Compile(`
		when_start(MD_00 AND NOT LK_01);
			map(W, Digit1);
		when_end();
	`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	cond := p.Groups[0].Condition
	var mods, locks mapping.Bitset256
	mods.Set(0)
	if !cond.Eval(mods, locks) {
		t.Fatal("MD_00 set and LK_01 clear must satisfy the condition")
	}
	locks.Set(1)
	if cond.Eval(mods, locks) {
		t.Fatal("LK_01 set must fail the condition")
	}
}

func TestCompileDeviceScope(t *testing.T) {
	p, err := Compile(`
		device_start("kbd*");
			map(A, B);
			when_start(MD_00);
				map(W, Digit1);
			when_end();
		device_end();
	`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(p.Groups) != 2 {
		t.Fatalf("Groups = %+v", p.Groups)
	}
	for _, g := range p.Groups {
		if !g.DevicePattern.Match("kbd-laptop") || g.DevicePattern.Match("mouse-0") {
			t.Errorf("device pattern not scoped correctly: %+v", g.DevicePattern)
		}
	}
}

func TestCompileRejectsNestedDeviceStart(t *testing.T) {
	_, err := Compile(`
		device_start("kbd*");
			device_start("*");
			device_end();
		device_end();
	`)
	if err == nil {
		t.Fatal("nested device_start must be rejected")
	}
}

func TestCompileRejectsNestedWhenStart(t *testing.T) {
	_, err := Compile(`
		when_start(MD_00);
			when_start(MD_01);
			when_end();
		when_end();
	`)
	if err == nil {
		t.Fatal("nested when_start must be rejected")
	}
}

func TestCompileRejectsUnterminatedDeviceBlock(t *testing.T) {
	_, err := Compile(`device_start("kbd*"); map(A, B);`)
	if err == nil {
		t.Fatal("unterminated device_start must be rejected")
	}
}

func TestCompileRejectsDuplicateBaseInput(t *testing.T) {
	_, err := Compile(`
		map(A, B);
		map(A, C);
	`)
	if err == nil {
		t.Fatal("duplicate input key in the same unconditional group must be rejected")
	}
}

func TestCompileRejectsUnknownKey(t *testing.T) {
	_, err := Compile(`map(NotAKey, B);`)
	var compErr *krxerr.CompileError
	if !errors.As(err, &compErr) {
		t.Fatalf("err = %v, want a *krxerr.CompileError", err)
	}
}

func TestCompileRejectsBadModifierRange(t *testing.T) {
	_, err := Compile(`map(A, MD_FF);`)
	if err == nil {
		t.Fatal("MD_FF exceeds the reserved range and map() has no output key named MD_FF")
	}
}

func TestCompileRejectsOversizeScript(t *testing.T) {
	huge := make([]byte, MaxScriptBytes+1)
	for i := range huge {
		huge[i] = ' '
	}
	_, err := Compile(string(huge))
	var compErr *krxerr.CompileError
	if !errors.As(err, &compErr) {
		t.Fatalf("err = %v, want a *krxerr.CompileError", err)
	}
}

func TestCompileFileReadsAndLogs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.krxs")
	if err := os.WriteFile(path, []byte(`map(A, B);`), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	p, err := CompileFile(path, logger)
	if err != nil {
		t.Fatalf("CompileFile: %v", err)
	}
	if len(p.Base) != 1 || p.Base[0].Input != keycode.A {
		t.Fatalf("Base = %+v", p.Base)
	}
	if !strings.Contains(buf.String(), "1 base rules") {
		t.Fatalf("expected log output to summarize the compiled profile, got %q", buf.String())
	}
}

func TestCompileFileRejectsOversizeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "huge.krxs")
	huge := make([]byte, MaxProfileFileBytes+1)
	for i := range huge {
		huge[i] = ' '
	}
	if err := os.WriteFile(path, huge, 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	_, err := CompileFile(path, logger)
	if !errors.Is(err, krxerr.ErrFileTooLarge) {
		t.Fatalf("err = %v, want krxerr.ErrFileTooLarge", err)
	}
	if !strings.Contains(buf.String(), "exceeds") {
		t.Fatalf("expected log output to mention the size limit, got %q", buf.String())
	}
}
