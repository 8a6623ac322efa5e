package devstate

import (
	"time"

	"github.com/keyrx-dev/krx/internal/keycode"
	"github.com/keyrx-dev/krx/internal/mapping"
)

// Decision is the outcome of an armed tap-hold key once resolved.
type Decision uint8

const (
	DecisionNone Decision = iota
	DecisionTap
	DecisionHold
)

type armedEntry struct {
	tapOutput    keycode.Code
	holdModifier mapping.ModifierID
	threshold    time.Duration
	pressAt      time.Time
	decided      bool
	decision     Decision
}

// HoldActivation reports that an armed key has just been decided Hold,
// whose custom modifier the caller must set immediately (spec.md §4.7:
// "on Hold decision, the associated custom modifier is set immediately").
type HoldActivation struct {
	Input    keycode.Code
	Modifier mapping.ModifierID
}

// ReleaseOutcome is returned when an armed key's release (or cancellation)
// finalizes its decision.
type ReleaseOutcome struct {
	WasHold   bool
	Modifier  mapping.ModifierID // valid when WasHold
	TapInput  keycode.Code
	TapOutput keycode.Code // valid when !WasHold && !Canceled
	Canceled  bool         // true when forced by Cancel with no decision yet
}

// Processor implements the per-device tap-hold state machine: each armed
// key moves Idle -> Armed -> Decided(Tap|Hold) -> Idle independently, so
// nested tap-holds on distinct keys are tracked concurrently (spec.md §4.7).
// Decisions are a pure function of press/release timestamps, intervening
// presses, and the configured threshold.
type Processor struct {
	armed map[keycode.Code]*armedEntry
}

func newProcessor() *Processor {
	return &Processor{armed: make(map[keycode.Code]*armedEntry)}
}

// IsArmed reports whether input is currently tracked by the processor
// (armed or already decided but not yet released).
func (p *Processor) IsArmed(input keycode.Code) bool {
	_, ok := p.armed[input]
	return ok
}

// Arm begins tracking a tap-hold key on its initial press.
func (p *Processor) Arm(input keycode.Code, tapOutput keycode.Code, holdModifier mapping.ModifierID, threshold time.Duration, now time.Time) {
	p.armed[input] = &armedEntry{
		tapOutput:    tapOutput,
		holdModifier: holdModifier,
		threshold:    threshold,
		pressAt:      now,
	}
}

// OnKeyPress notifies the processor that some key was pressed. Every
// other still-undecided armed entry is immediately decided Hold —
// permissive hold, per spec.md §4.7: "Hold ... if any other key is
// pressed between press and the threshold elapsing".
func (p *Processor) OnKeyPress(pressedInput keycode.Code, now time.Time) []HoldActivation {
	var out []HoldActivation
	for input, e := range p.armed {
		if input == pressedInput || e.decided {
			continue
		}
		e.decided = true
		e.decision = DecisionHold
		out = append(out, HoldActivation{Input: input, Modifier: e.holdModifier})
	}
	return out
}

// CheckTimeouts decides Hold for any undecided armed entry whose threshold
// has elapsed as of now, without requiring an intervening key press. The
// daemon event loop calls this on its own timer tick (spec.md §5).
func (p *Processor) CheckTimeouts(now time.Time) []HoldActivation {
	var out []HoldActivation
	for input, e := range p.armed {
		if e.decided {
			continue
		}
		if now.Sub(e.pressAt) >= e.threshold {
			e.decided = true
			e.decision = DecisionHold
			out = append(out, HoldActivation{Input: input, Modifier: e.holdModifier})
		}
	}
	return out
}

// Release finalizes input's tap-hold decision on key release. If the key
// was already decided Hold, the caller must clear its modifier. Otherwise
// the decision is made now from elapsed time: Tap if under threshold,
// Hold if at or past it.
func (p *Processor) Release(input keycode.Code, now time.Time) (ReleaseOutcome, bool) {
	e, ok := p.armed[input]
	if !ok {
		return ReleaseOutcome{}, false
	}
	delete(p.armed, input)

	if e.decided && e.decision == DecisionHold {
		return ReleaseOutcome{WasHold: true, Modifier: e.holdModifier}, true
	}
	if now.Sub(e.pressAt) >= e.threshold {
		return ReleaseOutcome{WasHold: true, Modifier: e.holdModifier}, true
	}
	return ReleaseOutcome{WasHold: false, TapInput: input, TapOutput: e.tapOutput}, true
}

// Cancel forces an armed key to resolve outside the normal release path —
// device detach or profile replace (spec.md §4.7: "cancellation is
// synchronous"). A Hold already decided still needs its modifier cleared;
// an undecided key emits nothing (no Tap on forced cancellation).
func (p *Processor) Cancel(input keycode.Code) (ReleaseOutcome, bool) {
	e, ok := p.armed[input]
	if !ok {
		return ReleaseOutcome{}, false
	}
	delete(p.armed, input)
	if e.decided && e.decision == DecisionHold {
		return ReleaseOutcome{WasHold: true, Modifier: e.holdModifier}, true
	}
	return ReleaseOutcome{Canceled: true}, true
}

// CancelAll cancels every still-armed key, for device detach.
func (p *Processor) CancelAll() []ReleaseOutcome {
	out := make([]ReleaseOutcome, 0, len(p.armed))
	for input := range p.armed {
		if r, ok := p.Cancel(input); ok {
			out = append(out, r)
		}
	}
	return out
}
