package sequencer

import (
	"testing"

	"github.com/Foalyy/silver/internal/settings"
)

func baseSettings() settings.Settings {
	s := settings.Default()
	return s
}

// TestBasicLocalTrigger is concrete scenario 1: D=0, N=1, F=0, T=100ms.
func TestBasicLocalTrigger(t *testing.T) {
	cfg := baseSettings()
	cfg.DelayMS = 0
	cfg.IntervalNShots = 1
	cfg.FocusDurationMS = 0
	cfg.TriggerDurationMS = 100

	seq := New()
	var st State
	PressTrigger(&st, 1000, false)

	cases := []struct {
		now                uint64
		focus, trigger bool
	}{
		{1000, true, true},
		{1050, true, true},
		{1099, true, true},
		{1100, false, false},
		{1200, false, false},
	}
	for _, c := range cases {
		out, _, _ := seq.Tick(cfg, &st, c.now)
		if out.FocusOut != c.focus || out.TriggerOut != c.trigger {
			t.Errorf("t=%d: got focus=%v trigger=%v, want focus=%v trigger=%v", c.now, out.FocusOut, out.TriggerOut, c.focus, c.trigger)
		}
		if out.TriggerOut && !out.FocusOut {
			t.Errorf("t=%d: TRIGGER_OUT without FOCUS_OUT", c.now)
		}
	}
}

// TestBurst is concrete scenario 2.
func TestBurst(t *testing.T) {
	cfg := baseSettings()
	cfg.DelayMS = 500
	cfg.IntervalNShots = 3
	cfg.IntervalDelayMS = 200 // clamped to F+T = 200
	cfg.FocusDurationMS = 100
	cfg.TriggerDurationMS = 100

	seq := New()
	var st State
	// t=0 is the clock's "unset" sentinel, so the press happens at t=1 and
	// the expected edges are measured from it.
	start := uint64(1)
	PressTrigger(&st, start, false)

	var risingEdges []uint64
	prevTrigger := false
	for now := uint64(0); now <= start+1100; now++ {
		out, _, _ := seq.Tick(cfg, &st, now)
		if out.TriggerOut && !prevTrigger {
			risingEdges = append(risingEdges, now)
		}
		prevTrigger = out.TriggerOut
	}
	want := []uint64{start + 600, start + 800, start + 1000}
	if len(risingEdges) != len(want) {
		t.Fatalf("got %d rising edges %v, want %v", len(risingEdges), risingEdges, want)
	}
	for i, w := range want {
		if risingEdges[i] != w {
			t.Errorf("edge %d: got %d, want %d", i, risingEdges[i], w)
		}
	}
}

// TestRemoteHoldTimeout is concrete scenario 3.
func TestRemoteHoldTimeout(t *testing.T) {
	cfg := baseSettings()
	seq := New()
	var st State
	// t=0 is the clock's "unset" sentinel, so the hold starts at t=1.
	SetRemoteTriggerHold(&st, 1, true, false)
	timeout := uint64(RemoteHoldTimeout.Milliseconds())

	out, _, _ := seq.Tick(cfg, &st, 100)
	if !out.TriggerOut {
		t.Fatal("expected TRIGGER_OUT high while remote hold active")
	}

	out, _, _ = seq.Tick(cfg, &st, timeout)
	if !out.TriggerOut {
		t.Fatal("expected TRIGGER_OUT still high just before timeout")
	}

	out, _, _ = seq.Tick(cfg, &st, timeout+1)
	if out.TriggerOut {
		t.Fatal("expected TRIGGER_OUT low at the timeout boundary")
	}

	out, _, _ = seq.Tick(cfg, &st, timeout+500)
	if out.TriggerOut {
		t.Fatal("expected TRIGGER_OUT to stay low after timeout")
	}
}

func TestRemoteHoldTimeoutEmitsReleaseOnlyForUSBOrigin(t *testing.T) {
	cfg := baseSettings()
	seq := New()
	timeout := uint64(RemoteHoldTimeout.Milliseconds())

	var stUSB State
	SetRemoteTriggerHold(&stUSB, 1, true, true)
	_, release, _ := seq.Tick(cfg, &stUSB, 1+timeout)
	if !release.Trigger {
		t.Fatal("expected a release request for a USB-origin hold that timed out")
	}

	var stRadio State
	SetRemoteTriggerHold(&stRadio, 1, true, false)
	_, release, _ = seq.Tick(cfg, &stRadio, 1+timeout)
	if release.Trigger {
		t.Fatal("did not expect a release request for a radio-origin hold")
	}
}

// TestPassthrough is concrete scenario 6.
func TestPassthrough(t *testing.T) {
	cfg := baseSettings()
	seq := New()
	var st State

	// t=0 is the clock's "unset" sentinel; start the assertion at t=1 so
	// the keepalive clock it seeds is distinguishable from "never set".
	SetPassthrough(&st, 1, true)
	out, _, keepalive := seq.Tick(cfg, &st, 1)
	if !out.TriggerOut || !out.FocusOut {
		t.Fatal("expected trigger+focus high immediately on passthrough assert")
	}
	if keepalive.Trigger {
		t.Fatal("the initial HOLD is the caller's own emission of the edge, not a Tick keepalive")
	}

	_, _, keepalive = seq.Tick(cfg, &st, 500)
	if keepalive.Trigger {
		t.Fatal("keepalive fired before the 500ms cadence")
	}
	_, _, keepalive = seq.Tick(cfg, &st, 501)
	if !keepalive.Trigger {
		t.Fatal("expected a keepalive at the 500ms cadence")
	}

	SetPassthrough(&st, 701, false)
	out, _, _ = seq.Tick(cfg, &st, 701)
	if out.TriggerOut {
		t.Fatal("expected trigger low after passthrough release")
	}
}

func TestTriggerHoldIdempotence(t *testing.T) {
	cfg := baseSettings()
	seq := New()

	var a State
	SetRemoteTriggerHold(&a, 0, true, false)
	SetRemoteTriggerHold(&a, 10, true, false)
	SetRemoteTriggerHold(&a, 20, false, false)

	var b State
	SetRemoteTriggerHold(&b, 0, true, false)
	SetRemoteTriggerHold(&b, 20, false, false)

	outA, _, _ := seq.Tick(cfg, &a, 30)
	outB, _, _ := seq.Tick(cfg, &b, 30)
	if outA != outB {
		t.Fatalf("double-hold then release = %+v, want equal to single-hold then release %+v", outA, outB)
	}
}

func TestNonHoldTriggerPressCancels(t *testing.T) {
	cfg := baseSettings()
	cfg.DelayMS = 0
	cfg.FocusDurationMS = 100
	cfg.TriggerDurationMS = 1000
	seq := New()
	var st State

	// t=0 is the clock's "unset" sentinel, so the press happens at t=1.
	PressTrigger(&st, 1, false)
	// 49ms into the cycle is still inside the 100ms focus phase.
	out, _, _ := seq.Tick(cfg, &st, 50)
	if !out.FocusOut {
		t.Fatal("expected cycle running")
	}
	// Second press cancels.
	PressTrigger(&st, 60, false)
	out, _, _ = seq.Tick(cfg, &st, 61)
	if out.TriggerOut || out.FocusOut {
		t.Fatal("expected outputs low immediately after cancel")
	}
}

func TestIntervalDelayClampedToMinimum(t *testing.T) {
	cfg := baseSettings()
	cfg.DelayMS = 0
	cfg.IntervalNShots = 2
	cfg.IntervalDelayMS = 50 // less than F+T
	cfg.FocusDurationMS = 100
	cfg.TriggerDurationMS = 100
	seq := New()
	var st State
	// t=0 is the clock's "unset" sentinel, so the press happens at t=1.
	start := uint64(1)
	PressTrigger(&st, start, false)

	// With clamping to 200ms, the first shot spans [0, 200) after the
	// press and the second [200, 400): its focus phase runs until 300 and
	// its trigger phase starts at 200+100=300.
	out, _, _ := seq.Tick(cfg, &st, start+250)
	if out.TriggerOut {
		t.Fatal("expected no overlap: second shot's trigger phase must not start before 300ms")
	}
	out, _, _ = seq.Tick(cfg, &st, start+300)
	if !out.TriggerOut {
		t.Fatal("expected second shot's trigger phase at the clamped spacing")
	}
}

func TestMaxDurationNoOverflow(t *testing.T) {
	cfg := baseSettings()
	cfg.DelayMS = 0
	cfg.IntervalNShots = 1
	cfg.FocusDurationMS = settings.MaxDurationMS
	cfg.TriggerDurationMS = 0
	seq := New()
	var st State
	// t=0 is the clock's "unset" sentinel, so the press happens at t=1.
	start := uint64(1)
	PressTrigger(&st, start, false)

	out, _, _ := seq.Tick(cfg, &st, start+uint64(settings.MaxDurationMS-1))
	if !out.FocusOut {
		t.Fatal("expected focus still high just before the max-duration boundary")
	}
	out, _, _ = seq.Tick(cfg, &st, start+uint64(settings.MaxDurationMS))
	if out.FocusOut {
		t.Fatal("expected cycle to terminate normally at the max duration boundary")
	}
}

func TestKeepaliveSpacingNeverExceedsBound(t *testing.T) {
	cfg := baseSettings()
	seq := New()
	var st State
	SetLocalTriggerHold(&st, 1, true)

	var last uint64 = 1
	fired := 0
	for now := uint64(1); now <= 1+5*uint64(RemoteHoldKeepalive.Milliseconds()); now += 10 {
		_, _, keepalive := seq.Tick(cfg, &st, now)
		if keepalive.Trigger {
			if now-last > uint64(RemoteHoldKeepalive.Milliseconds())+10 {
				t.Fatalf("keepalive spacing %dms exceeds bound", now-last)
			}
			last = now
			fired++
		}
	}
	if fired < 4 {
		t.Fatalf("expected repeated keepalives over %v, got %d", 5*RemoteHoldKeepalive, fired)
	}
}
