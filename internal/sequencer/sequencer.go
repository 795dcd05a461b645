// Package sequencer implements the trigger state machine: the only
// component that drives the FOCUS_OUT and TRIGGER_OUT lines. It is a
// pure function of settings, runtime state, and the current time,
// executed once per tick.
package sequencer

import (
	"time"

	"github.com/Foalyy/silver/internal/clock"
	"github.com/Foalyy/silver/internal/settings"
)

// RemoteHoldTimeout bounds the effect of a lost *_RELEASE: a remote hold
// latch not refreshed within this window is cleared unconditionally.
const RemoteHoldTimeout = 3000 * time.Millisecond

// RemoteHoldKeepalive is the maximum spacing between outgoing *_HOLD
// re-emissions while this unit itself is driving a hold.
const RemoteHoldKeepalive = 500 * time.Millisecond

// LEDState reflects the trigger status LED pattern alongside the two
// output lines: blinking while waiting for a delayed shot, solid off
// while actively triggering, solid on otherwise. Pixel-level LED driving
// is external; this is just the state the driver consumes.
type LEDState int

const (
	LEDIdle LEDState = iota
	LEDWaiting
	LEDTriggering
)

// State is the runtime (volatile) record from the data model, threaded
// explicitly rather than kept in package-level variables.
type State struct {
	TFocus   uint64
	TTrigger uint64
	// SkipDelay applies to the in-progress trigger cycle started by
	// TTrigger; set together with TTrigger, consumed once per cycle.
	SkipDelay bool

	LocalFocusHold   bool
	LocalTriggerHold bool

	RemoteFocusHold      bool
	RemoteFocusFromUSB   bool
	TRemoteFocusHold     uint64
	RemoteTriggerHold    bool
	RemoteTriggerFromUSB bool
	TRemoteTriggerHold   uint64

	TFocusHoldKeepalive   uint64
	TTriggerHoldKeepalive uint64

	// PassthroughHold mirrors an asserted external input line in
	// Passthrough mode; distinct from LocalTriggerHold because it is
	// driven by the GPIO input, not the trigger button.
	PassthroughHold bool
}

// Outputs is what the sequencer computes each tick.
type Outputs struct {
	FocusOut   bool
	TriggerOut bool
	LED        LEDState
}

// ReleaseNeeded is returned by Tick when a remote hold timed out and the
// caller must best-effort emit a *_RELEASE outward (only when the
// expired latch had originated from USB, per the spec's safety rule).
type ReleaseNeeded struct {
	Focus   bool
	Trigger bool
}

// KeepaliveNeeded reports which *_HOLD commands Tick wants re-emitted
// this tick, throttled to RemoteHoldKeepalive.
type KeepaliveNeeded struct {
	Focus   bool
	Trigger bool
}

// Sequencer holds no settings or state itself: Tick takes the settings
// by value and the State by pointer, so the coordinator and UI can
// observe/mutate State directly
// between ticks (e.g. on a button edge) while the sequencer remains a
// pure function of its inputs.
type Sequencer struct{}

func New() *Sequencer { return &Sequencer{} }

// PressTrigger handles a non-hold trigger press: starts a cycle if idle,
// cancels if one is running. Idempotent by construction (cancel-or-start
// is the intended UI contract, not a bug).
func PressTrigger(s *State, now uint64, skipDelay bool) {
	if s.TTrigger != 0 {
		s.TTrigger = 0
		return
	}
	s.TTrigger = now
	s.SkipDelay = skipDelay
	s.TFocus = 0
}

// PressFocusOnly starts a focus-only cycle (the remote FOCUS command),
// analogous to PressTrigger but without interval repetition.
func PressFocusOnly(s *State, now uint64) {
	s.TFocus = now
}

// SetLocalTriggerHold applies a local hold button edge. now seeds the
// keepalive clock so the first periodic re-send lands one full
// RemoteHoldKeepalive after the hold starts: the initial *_HOLD itself
// is emitted separately, by the caller, at the moment of the edge.
func SetLocalTriggerHold(s *State, now uint64, held bool) {
	s.LocalTriggerHold = held
	if held {
		s.TTriggerHoldKeepalive = now
	} else {
		s.TTrigger = 0
		s.TTriggerHoldKeepalive = 0
	}
}

// SetLocalFocusHold applies a local focus (OK) hold button edge.
func SetLocalFocusHold(s *State, now uint64, held bool) {
	s.LocalFocusHold = held
	if held {
		s.TFocusHoldKeepalive = now
	} else {
		s.TFocusHoldKeepalive = 0
	}
}

// SetRemoteTriggerHold applies a remote TRIGGER_HOLD/TRIGGER_RELEASE.
func SetRemoteTriggerHold(s *State, now uint64, held, fromUSB bool) {
	s.RemoteTriggerHold = held
	if held {
		s.RemoteTriggerFromUSB = fromUSB
		s.TRemoteTriggerHold = now
	} else {
		s.TTrigger = 0
	}
}

// SetRemoteFocusHold applies a remote FOCUS_HOLD/FOCUS_RELEASE.
func SetRemoteFocusHold(s *State, now uint64, held, fromUSB bool) {
	s.RemoteFocusHold = held
	if held {
		s.RemoteFocusFromUSB = fromUSB
		s.TRemoteFocusHold = now
	}
}

// SetPassthrough applies an external-input edge in Passthrough mode. now
// seeds the keepalive clock the same way SetLocalTriggerHold does.
func SetPassthrough(s *State, now uint64, held bool) {
	s.PassthroughHold = held
	if held {
		s.TTriggerHoldKeepalive = now
	} else {
		s.TTriggerHoldKeepalive = 0
	}
}

// Tick advances the state machine one tick and computes the output
// lines. now is the current monotonic millisecond time.
func (*Sequencer) Tick(cfg settings.Settings, s *State, now uint64) (Outputs, ReleaseNeeded, KeepaliveNeeded) {
	var release ReleaseNeeded

	// Remote-hold timeout: clear unconditionally and, if it originated
	// from USB, ask the caller to best-effort forward a release onward.
	if s.RemoteTriggerHold && clock.Elapsed(now, s.TRemoteTriggerHold, RemoteHoldTimeout) {
		s.RemoteTriggerHold = false
		s.TTrigger = 0
		if s.RemoteTriggerFromUSB {
			release.Trigger = true
		}
	}
	if s.RemoteFocusHold && clock.Elapsed(now, s.TRemoteFocusHold, RemoteHoldTimeout) {
		s.RemoteFocusHold = false
		if s.RemoteFocusFromUSB {
			release.Focus = true
		}
	}

	focus, trigger, waiting := computeCycle(cfg, s, now)

	holdActive := s.LocalTriggerHold || s.RemoteTriggerHold || s.PassthroughHold
	focusHoldActive := s.LocalFocusHold || s.RemoteFocusHold

	out := Outputs{}
	switch {
	case holdActive:
		out.TriggerOut = true
		out.FocusOut = true
		out.LED = LEDTriggering
	case focusHoldActive:
		out.FocusOut = true
		out.LED = LEDTriggering
	case trigger:
		out.TriggerOut = true
		out.FocusOut = true
		out.LED = LEDTriggering
	case focus:
		out.FocusOut = true
		out.LED = LEDTriggering
	case waiting:
		out.LED = LEDWaiting
	default:
		out.LED = LEDIdle
	}

	// The keepalive clocks are seeded by SetLocalTriggerHold/SetPassthrough/
	// SetLocalFocusHold at the moment the hold starts, so the first
	// periodic re-send here lands a full RemoteHoldKeepalive later; the
	// initial *_HOLD itself is the caller's direct emission of that same
	// edge, not something Tick needs to reconstruct.
	var keepalive KeepaliveNeeded
	if s.LocalTriggerHold || s.PassthroughHold {
		if clock.Elapsed(now, s.TTriggerHoldKeepalive, RemoteHoldKeepalive) {
			keepalive.Trigger = true
			s.TTriggerHoldKeepalive = now
		}
	} else {
		s.TTriggerHoldKeepalive = 0
	}
	if s.LocalFocusHold {
		if clock.Elapsed(now, s.TFocusHoldKeepalive, RemoteHoldKeepalive) {
			keepalive.Focus = true
			s.TFocusHoldKeepalive = now
		}
	} else {
		s.TFocusHoldKeepalive = 0
	}

	return out, release, keepalive
}

// computeCycle implements §4.3.3's cycle timing math for a running
// trigger cycle, plus the simpler focus-only cycle.
func computeCycle(cfg settings.Settings, s *State, now uint64) (focus, trigger, waiting bool) {
	if s.TFocus != 0 {
		F := uint64(cfg.FocusDurationMS)
		if now-s.TFocus < F {
			focus = true
		} else {
			s.TFocus = 0
		}
	}

	if s.TTrigger == 0 {
		return focus, false, false
	}

	F := uint64(cfg.FocusDurationMS)
	T := uint64(cfg.TriggerDurationMS)
	I := uint64(cfg.IntervalDelayMS)
	if minI := F + T; I < minI {
		I = minI
	}
	N := uint64(cfg.IntervalNShots)
	D := uint64(cfg.DelayMS)
	if s.SkipDelay {
		D = 0
	}

	t0 := s.TTrigger + D
	tEnd := t0 + (N-1)*I + F + T

	if now < t0 {
		return false, false, true
	}
	if now >= tEnd {
		s.TTrigger = 0
		return false, false, false
	}
	delta := (now - t0) % I
	switch {
	case delta < F:
		return true, false, false
	case delta < F+T:
		return false, true, false
	default:
		return false, false, true
	}
}
