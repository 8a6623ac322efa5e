package daemon

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/keyrx-dev/krx/internal/daemonconfig"
	"github.com/keyrx-dev/krx/internal/keycode"
	"github.com/keyrx-dev/krx/internal/krx"
	"github.com/keyrx-dev/krx/internal/krxerr"
	"github.com/keyrx-dev/krx/internal/mapping"
	"github.com/keyrx-dev/krx/internal/platform"
)

// fakeCapture is a Capture that never emits events on its own; tests
// drive the daemon's block-table installs directly and never call Run.
type fakeCapture struct {
	installed  [][]keycode.Code
	installErr error
}

func (f *fakeCapture) Start(ctx context.Context) (<-chan platform.InputEvent, <-chan platform.HotplugEvent, error) {
	return make(chan platform.InputEvent), make(chan platform.HotplugEvent), nil
}

func (f *fakeCapture) InstallBlockTable(codes []keycode.Code) error {
	f.installed = append(f.installed, codes)
	return f.installErr
}

func (f *fakeCapture) Stop() error { return nil }

type fakeInjector struct {
	injected []keycode.Code
}

func (f *fakeInjector) Inject(code keycode.Code, kind platform.EventKind) error {
	f.injected = append(f.injected, code)
	return nil
}

func (f *fakeInjector) Close() error { return nil }

// failingInjector fails every Inject call, used to drive the daemon's
// drop-rate/degraded-mode bookkeeping in tests.
type failingInjector struct{}

func (failingInjector) Inject(code keycode.Code, kind platform.EventKind) error {
	return errInjectFailed
}

func (failingInjector) Close() error { return nil }

var errInjectFailed = fmt.Errorf("injection failed")

func testConfig(t *testing.T) *daemonconfig.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := daemonconfig.Default()
	cfg.State.MarkerDir = filepath.Join(dir, "state")
	cfg.State.ProfileDir = filepath.Join(dir, "profiles")
	cfg.Activation.TimeoutMs = 2000
	return cfg
}

func writeTestProfile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	profile := &mapping.Profile{
		Base: []mapping.Rule{
			{Input: keycode.CapsLock, Kind: mapping.KindSimple, Output: keycode.Escape},
		},
	}
	data, err := krx.Encode(profile)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".krx"), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestActivateLoadsAndSwapsProfile(t *testing.T) {
	cfg := testConfig(t)
	writeTestProfile(t, cfg.State.ProfileDir, "office")

	fc := &fakeCapture{}
	inj := &fakeInjector{}
	d := New(cfg, fc, inj, nil)

	if err := d.Activate(context.Background(), "office"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	name, ok := d.ActiveProfile()
	if !ok || name != "office" {
		t.Fatalf("ActiveProfile() = %q, %v; want office, true", name, ok)
	}
	if len(fc.installed) != 1 {
		t.Fatalf("expected one InstallBlockTable call, got %d", len(fc.installed))
	}
}

func TestActivateUnknownProfile(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg, &fakeCapture{}, &fakeInjector{}, nil)

	err := d.Activate(context.Background(), "does-not-exist")
	if err == nil {
		t.Fatal("expected an error for a missing profile")
	}
	var aerr *krxerr.ActivationError
	if !asActivationError(err, &aerr) {
		t.Fatalf("expected *krxerr.ActivationError, got %T", err)
	}
	if aerr.Err != krxerr.ErrProfileNotFound {
		t.Fatalf("expected ErrProfileNotFound, got %v", aerr.Err)
	}
}

func TestActivateSerialization(t *testing.T) {
	cfg := testConfig(t)
	writeTestProfile(t, cfg.State.ProfileDir, "office")
	d := New(cfg, &fakeCapture{}, &fakeInjector{}, nil)

	d.activating.Store(1)
	defer d.activating.Store(0)

	err := d.Activate(context.Background(), "office")
	var aerr *krxerr.ActivationError
	if !asActivationError(err, &aerr) || aerr.Err != krxerr.ErrActivationInProgress {
		t.Fatalf("expected ErrActivationInProgress, got %v", err)
	}
}

func TestMarkerWrittenOnActivate(t *testing.T) {
	cfg := testConfig(t)
	writeTestProfile(t, cfg.State.ProfileDir, "office")
	d := New(cfg, &fakeCapture{}, &fakeInjector{}, nil)

	if err := d.Activate(context.Background(), "office"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	m, ok, err := readMarker(cfg.State.MarkerDir)
	if err != nil {
		t.Fatalf("readMarker: %v", err)
	}
	if !ok {
		t.Fatal("expected a marker file to exist after activation")
	}
	if m.Name != "office" {
		t.Errorf("marker name = %q, want office", m.Name)
	}
	if time.Since(m.ActivatedAt) > time.Minute {
		t.Errorf("marker ActivatedAt looks stale: %v", m.ActivatedAt)
	}
}

func TestBlockTableIsUnionAcrossGroups(t *testing.T) {
	profile := &mapping.Profile{
		Base: []mapping.Rule{{Input: keycode.A, Kind: mapping.KindSimple, Output: keycode.B}},
		Groups: []mapping.ConditionGroup{
			{Rules: []mapping.Rule{
				{Input: keycode.A, Kind: mapping.KindSimple, Output: keycode.C},
				{Input: keycode.D, Kind: mapping.KindSimple, Output: keycode.E},
			}},
			{Rules: []mapping.Rule{
				{Input: keycode.D, Kind: mapping.KindSimple, Output: keycode.F},
			}},
		},
	}

	codes := buildBlockTable(profile)
	if len(codes) != 2 {
		t.Fatalf("expected 2 unique block-table entries (A dedup'd, D dedup'd), got %d: %v", len(codes), codes)
	}

	seen := map[keycode.Code]bool{}
	for _, c := range codes {
		seen[c] = true
	}
	if !seen[keycode.A] || !seen[keycode.D] {
		t.Fatalf("expected A and D in block table, got %v", codes)
	}
}

func TestHotplugDetachClearsDeviceState(t *testing.T) {
	cfg := testConfig(t)
	writeTestProfile(t, cfg.State.ProfileDir, "office")
	inj := &fakeInjector{}
	d := New(cfg, &fakeCapture{}, inj, nil)
	if err := d.Activate(context.Background(), "office"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	d.handleHotplug(platform.HotplugEvent{Kind: platform.DeviceAttached, Device: platform.Device{ID: "dev0"}})
	d.handleInputEvent(platform.InputEvent{DeviceID: "dev0", Code: keycode.CapsLock, Kind: platform.KeyDown, Time: time.Now()})

	d.mu.Lock()
	if _, ok := d.devices["dev0"]; !ok {
		d.mu.Unlock()
		t.Fatal("expected dev0 to be tracked after attach")
	}
	d.mu.Unlock()

	d.handleHotplug(platform.HotplugEvent{Kind: platform.DeviceDetached, Device: platform.Device{ID: "dev0"}})

	d.mu.Lock()
	_, stillTracked := d.devices["dev0"]
	d.mu.Unlock()
	if stillTracked {
		t.Fatal("expected dev0 to be forgotten after detach")
	}
}

func TestSubscribeReceivesHotplugEvents(t *testing.T) {
	cfg := testConfig(t)
	writeTestProfile(t, cfg.State.ProfileDir, "office")
	d := New(cfg, &fakeCapture{}, &fakeInjector{}, nil)

	ch, unsub := d.Subscribe()
	defer unsub()

	d.handleHotplug(platform.HotplugEvent{Kind: platform.DeviceAttached, Device: platform.Device{ID: "dev0"}})

	select {
	case ev := <-ch:
		if ev.Kind != EventDeviceAttached {
			t.Fatalf("expected EventDeviceAttached, got %v", ev.Kind)
		}
		if ev.Seq == 0 {
			t.Error("expected a nonzero sequence number")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribed event")
	}
}

func TestBlockTableExposesActiveProfile(t *testing.T) {
	cfg := testConfig(t)
	writeTestProfile(t, cfg.State.ProfileDir, "office")
	d := New(cfg, &fakeCapture{}, &fakeInjector{}, nil)

	if bt := d.BlockTable(); bt != nil {
		t.Fatalf("expected nil block table before activation, got %v", bt)
	}

	if err := d.Activate(context.Background(), "office"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	bt := d.BlockTable()
	if len(bt) != 1 || bt[0] != keycode.CapsLock {
		t.Fatalf("expected block table [CapsLock], got %v", bt)
	}
}

func TestDropRateAndDegradedModeOnInjectionFailure(t *testing.T) {
	cfg := testConfig(t)
	writeTestProfile(t, cfg.State.ProfileDir, "office")
	d := New(cfg, &fakeCapture{}, failingInjector{}, nil)
	if err := d.Activate(context.Background(), "office"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	d.handleHotplug(platform.HotplugEvent{Kind: platform.DeviceAttached, Device: platform.Device{ID: "dev0"}})

	for i := 0; i < 3; i++ {
		d.handleInputEvent(platform.InputEvent{DeviceID: "dev0", Code: keycode.CapsLock, Kind: platform.KeyDown, Time: time.Now()})
		d.handleInputEvent(platform.InputEvent{DeviceID: "dev0", Code: keycode.CapsLock, Kind: platform.KeyUp, Time: time.Now()})
	}

	if d.DropRate() != 1 {
		t.Fatalf("expected drop rate 1 with every injection failing, got %v", d.DropRate())
	}
	if !d.DegradedMode() {
		t.Fatal("expected DegradedMode true once every event is dropped")
	}
}

func TestActivateLogsOutcome(t *testing.T) {
	cfg := testConfig(t)
	writeTestProfile(t, cfg.State.ProfileDir, "office")

	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	d := New(cfg, &fakeCapture{}, &fakeInjector{}, logger)

	if err := d.Activate(context.Background(), "office"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !strings.Contains(buf.String(), `activated profile "office"`) {
		t.Fatalf("expected log output to mention the activated profile, got %q", buf.String())
	}

	buf.Reset()
	if err := d.Activate(context.Background(), "does-not-exist"); err == nil {
		t.Fatal("expected an error for a missing profile")
	}
	if !strings.Contains(buf.String(), `activate "does-not-exist" failed`) {
		t.Fatalf("expected log output to mention the failed activation, got %q", buf.String())
	}
}

// asActivationError avoids importing errors.As's reflection surface in
// every test: both Activate call sites return either nil or exactly
// *krxerr.ActivationError.
func asActivationError(err error, target **krxerr.ActivationError) bool {
	ae, ok := err.(*krxerr.ActivationError)
	if ok {
		*target = ae
	}
	return ok
}
