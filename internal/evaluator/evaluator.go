// Package evaluator implements the per-event resolution algorithm
// (spec.md §4.5, §4.6): given a compiled Profile, a device's DeviceState,
// and a raw press or release, it produces the sequence of output key
// operations the platform layer should inject.
package evaluator

import (
	"time"

	"github.com/keyrx-dev/krx/internal/devstate"
	"github.com/keyrx-dev/krx/internal/keycode"
	"github.com/keyrx-dev/krx/internal/mapping"
)

// Op discriminates an injected output operation.
type Op uint8

const (
	OpPress Op = iota
	OpRelease
)

// OutputEvent is a single key operation to inject, in emission order.
type OutputEvent struct {
	Code keycode.Code
	Op   Op
}

// resolve finds the rule that applies to input on deviceID given the
// device's current modifier/lock state: the first matching conditional
// group (in declaration order) whose device pattern and condition both
// hold, else the base rule, else passthrough.
func resolve(profile *mapping.Profile, deviceID string, state *devstate.State, input keycode.Code) mapping.Rule {
	for _, g := range profile.Groups {
		if !g.DevicePattern.Match(deviceID) {
			continue
		}
		if !g.Condition.Eval(state.ModifierBits(), state.LockBits()) {
			continue
		}
		for _, r := range g.Rules {
			if r.Input == input {
				return r
			}
		}
	}
	if r, ok := profile.FindBase(input); ok {
		return r
	}
	return mapping.Rule{Input: input, Kind: mapping.KindSimple, Output: input}
}

func applyHoldActivations(state *devstate.State, acts []devstate.HoldActivation) {
	for _, a := range acts {
		state.SetModifier(a.Modifier)
	}
}

// HandlePress resolves a raw key-down on deviceID and returns the output
// operations to inject. now is the event's monotonic timestamp, used for
// tap-hold arming and permissive-hold decisions.
func HandlePress(profile *mapping.Profile, deviceID string, state *devstate.State, input keycode.Code, now time.Time) []OutputEvent {
	th := state.TapHold()

	applyHoldActivations(state, th.CheckTimeouts(now))

	if th.IsArmed(input) {
		// A press for a key already tracked as an armed tap-hold source,
		// without an intervening release: the platform layer guarantees
		// one press per physical key-down, so this can only be a stray
		// duplicate. Ignore it rather than re-arm.
		return nil
	}

	applyHoldActivations(state, th.OnKeyPress(input, now))

	rule := resolve(profile, deviceID, state, input)

	switch rule.Kind {
	case mapping.KindSimple:
		state.RecordPress(input, devstate.PressRecord{Kind: rule.Kind, Outputs: []keycode.Code{rule.Output}})
		return []OutputEvent{{Code: rule.Output, Op: OpPress}}

	case mapping.KindModifiedOutput:
		mods := rule.Mods.Keys()
		outs := make([]keycode.Code, 0, len(mods)+1)
		events := make([]OutputEvent, 0, len(mods)+1)
		for _, m := range mods {
			outs = append(outs, m)
			events = append(events, OutputEvent{Code: m, Op: OpPress})
		}
		outs = append(outs, rule.Output)
		events = append(events, OutputEvent{Code: rule.Output, Op: OpPress})
		state.RecordPress(input, devstate.PressRecord{Kind: rule.Kind, Outputs: outs})
		return events

	case mapping.KindModifier:
		state.SetModifier(rule.Modifier)
		state.RecordPress(input, devstate.PressRecord{Kind: rule.Kind, Modifier: rule.Modifier})
		return nil

	case mapping.KindLock:
		state.ToggleLock(rule.Lock)
		state.RecordPress(input, devstate.PressRecord{Kind: rule.Kind})
		return nil

	case mapping.KindTapHold:
		threshold := time.Duration(rule.TapThresholdMs) * time.Millisecond
		th.Arm(input, rule.Output, rule.Modifier, threshold, now)
		return nil
	}
	return nil
}

// Tick resolves any tap-hold timers that have crossed their threshold
// without an intervening press, activating their hold modifier. Called
// from the daemon's timer tick independent of key events, since a lone
// armed key with no further input would otherwise never resolve.
func Tick(state *devstate.State, now time.Time) {
	applyHoldActivations(state, state.TapHold().CheckTimeouts(now))
}

// HandleRelease resolves a raw key-up on the device that owns state and
// returns the output operations to inject.
func HandleRelease(state *devstate.State, input keycode.Code, now time.Time) []OutputEvent {
	th := state.TapHold()
	if th.IsArmed(input) {
		outcome, _ := th.Release(input, now)
		if outcome.WasHold {
			state.ClearModifier(outcome.Modifier)
			return nil
		}
		return []OutputEvent{
			{Code: outcome.TapOutput, Op: OpPress},
			{Code: outcome.TapOutput, Op: OpRelease},
		}
	}

	rec, ok := state.GetReleaseKey(input)
	if !ok {
		return nil
	}
	state.ClearPress(input)

	switch rec.Kind {
	case mapping.KindModifier:
		state.ClearModifier(rec.Modifier)
		return nil
	case mapping.KindLock:
		return nil
	default:
		events := make([]OutputEvent, 0, len(rec.Outputs))
		for i := len(rec.Outputs) - 1; i >= 0; i-- {
			events = append(events, OutputEvent{Code: rec.Outputs[i], Op: OpRelease})
		}
		return events
	}
}

// CancelDevice forces every in-flight press and armed tap-hold on state to
// resolve immediately, without waiting for a release event. Used on device
// detach and on profile replacement, where the old profile's bookkeeping
// must be closed out synchronously before the swap (spec.md §4.7, §9).
func CancelDevice(state *devstate.State) []OutputEvent {
	var events []OutputEvent

	for _, input := range state.InFlightInputs() {
		rec, ok := state.GetReleaseKey(input)
		if !ok {
			continue
		}
		state.ClearPress(input)
		switch rec.Kind {
		case mapping.KindModifier:
			state.ClearModifier(rec.Modifier)
		case mapping.KindLock:
			// no-op
		default:
			for i := len(rec.Outputs) - 1; i >= 0; i-- {
				events = append(events, OutputEvent{Code: rec.Outputs[i], Op: OpRelease})
			}
		}
	}

	for _, out := range state.TapHold().CancelAll() {
		if out.WasHold {
			state.ClearModifier(out.Modifier)
		}
	}

	return events
}
