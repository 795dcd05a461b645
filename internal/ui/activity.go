package ui

import "time"

// ActivityTracker records the tick time of the last button/input edge,
// for an external (out-of-scope) renderer to decide when to dim or turn
// off the display. The firmware's actual dim/off delays were disabled
// in the original (OLED_DIM_DELAY/OLED_TURNOFF_DELAY both set to 0) but
// the bookkeeping itself is carried here.
type ActivityTracker struct {
	lastMS uint64
}

// Touch records activity at now.
func (a *ActivityTracker) Touch(now uint64) {
	a.lastMS = now
}

// Idle returns how long it's been since the last Touch, given the
// current tick time. A never-touched tracker reports the full elapsed
// wall time since now==0.
func (a *ActivityTracker) Idle(now uint64) time.Duration {
	if now <= a.lastMS {
		return 0
	}
	return time.Duration(now-a.lastMS) * time.Millisecond
}

// ShutdownTimeout is how long the power button must be held before a
// clean shutdown is requested, matching TURNOFF_DELAY.
const ShutdownTimeout = 1000 * time.Millisecond

// PowerButtonTracker detects the power button's long-press-to-shutdown
// gesture, mirroring silver.cpp's btnPw handling: a press shorter than
// ShutdownTimeout is ignored, one held past it latches a one-shot
// shutdown request.
type PowerButtonTracker struct {
	pressedSinceMS uint64
	requested      bool
}

// Update feeds the current button level and tick time. Call this once
// per tick regardless of whether the button changed state.
func (p *PowerButtonTracker) Update(pressed bool, now uint64) {
	if !pressed {
		p.pressedSinceMS = 0
		p.requested = false
		return
	}
	if p.pressedSinceMS == 0 {
		p.pressedSinceMS = now
		return
	}
	if !p.requested && now-p.pressedSinceMS >= uint64(ShutdownTimeout.Milliseconds()) {
		p.requested = true
	}
}

// ShutdownRequested reports whether the hold has crossed ShutdownTimeout
// since the last release. It stays true until the button is released,
// so the caller should act on the edge (compare against a "handled"
// flag of its own) rather than polling it every tick.
func (p *PowerButtonTracker) ShutdownRequested() bool {
	return p.requested
}
