package coordinator

import (
	"testing"

	"github.com/Foalyy/silver/internal/command"
	"github.com/Foalyy/silver/internal/radio"
	"github.com/Foalyy/silver/internal/sequencer"
	"github.com/Foalyy/silver/internal/settings"
	"github.com/Foalyy/silver/internal/usbtransport"
)

func newTestTransport(t *testing.T) (*radio.Transport, *radio.SimModem) {
	t.Helper()
	local, peer := radio.NewSimPair()
	tr, err := radio.New(local, 1, radio.DefaultParams())
	if err != nil {
		t.Fatalf("radio.New: %v", err)
	}
	return tr, peer
}

// TestUSBEditWithSyncOffDoesNotReachRadio is concrete scenario 4: a USB
// host edits a radio-gated field with its sync bit off. The coordinator
// must apply the edit unconditionally (USB is authoritative) but must
// not forward it to radio, since the sync bit it carried was false.
func TestUSBEditWithSyncOffDoesNotReachRadio(t *testing.T) {
	tr, peer := newTestTransport(t)
	usb := usbtransport.NewDevice()
	usb.Connect()

	cfg := settings.Default()
	cfg.DelaySync = true // was on; the incoming edit turns it off
	var st sequencer.State
	c := New(tr, NewUSBAdapter(usb), sequencer.New())

	usb.PostInbound(command.Command{
		Opcode:  command.MenuDelay,
		Payload: command.EncodeDelay(command.DelayPayload{DelayMS: 2500, DelaySync: false}),
	})
	c.Tick(&cfg, &st, 10)

	if cfg.DelayMS != 2500 {
		t.Fatalf("got DelayMS=%d, want 2500 (USB edits apply unconditionally)", cfg.DelayMS)
	}
	if cfg.DelaySync {
		t.Fatal("expected the sync bit to follow the incoming USB payload (false)")
	}
	if _, ok, _ := peer.TryReceive(); ok {
		t.Fatal("did not expect the edit to reach radio: its sync bit was false")
	}
}

// TestUSBEditWithSyncOnReachesRadio complements scenario 4: the same
// edit, but with the trailing sync byte set, must be forwarded to radio.
func TestUSBEditWithSyncOnReachesRadio(t *testing.T) {
	tr, peer := newTestTransport(t)
	usb := usbtransport.NewDevice()
	usb.Connect()

	cfg := settings.Default()
	var st sequencer.State
	c := New(tr, NewUSBAdapter(usb), sequencer.New())

	usb.PostInbound(command.Command{
		Opcode:  command.MenuDelay,
		Payload: command.EncodeDelay(command.DelayPayload{DelayMS: 1500, DelaySync: true}),
	})
	c.Tick(&cfg, &st, 10)

	data, ok, _ := peer.TryReceive()
	if !ok {
		t.Fatal("expected the edit to reach radio: its sync bit was true")
	}
	if data[0] != radio.Preamble || data[2] != byte(command.MenuDelay) {
		t.Fatalf("unexpected frame %v", data)
	}
}

// TestRadioEditForwardsToConnectedUSB is concrete scenario 5: a radio
// peer sends a settings edit while USB is connected. The sync bit was
// already set (radio-origin edits are gated on the existing bit, not a
// bit the radio payload carries), so the coordinator applies it and
// forwards the long, sync-suffixed form to USB — but not back to radio.
func TestRadioEditForwardsToConnectedUSB(t *testing.T) {
	tr, peer := newTestTransport(t)
	usb := usbtransport.NewDevice()
	usb.Connect()

	cfg := settings.Default()
	cfg.IntervalSync = true
	cfg.SyncChannel = 1 // matches the frame's channel tag below
	var st sequencer.State
	c := New(tr, NewUSBAdapter(usb), sequencer.New())

	frame := append([]byte{radio.Preamble, 1, byte(command.MenuInterval)},
		command.EncodeIntervalShort(command.IntervalPayload{NShots: 5, IntervalDelayMS: 3000})...)
	if err := peer.Send(frame); err != nil {
		t.Fatalf("peer.Send: %v", err)
	}

	c.Tick(&cfg, &st, 10)

	if cfg.IntervalNShots != 5 || cfg.IntervalDelayMS != 3000 {
		t.Fatalf("got NShots=%d IntervalDelayMS=%d, want 5/3000", cfg.IntervalNShots, cfg.IntervalDelayMS)
	}

	cmd, ok := usb.TakeOutbound()
	if !ok {
		t.Fatal("expected the radio-origin edit to be forwarded to connected USB")
	}
	if cmd.Opcode != command.MenuInterval {
		t.Fatalf("got opcode %v, want MENU_INTERVAL", cmd.Opcode)
	}
	p, err := command.DecodeInterval(cmd.Payload)
	if err != nil {
		t.Fatalf("DecodeInterval: %v", err)
	}
	if !p.HasSync || !p.IntervalSync {
		t.Fatal("expected the long form toward USB with the current sync bit set")
	}

	if _, ok, _ := peer.TryReceive(); ok {
		t.Fatal("radio-origin edit must not be echoed back to radio")
	}
}

// TestRadioEditGatedOnExistingSyncBit: a radio-origin edit is dropped
// entirely when the matching sync bit is currently off, even though USB
// is connected and would otherwise receive the forward.
func TestRadioEditGatedOnExistingSyncBit(t *testing.T) {
	tr, peer := newTestTransport(t)
	usb := usbtransport.NewDevice()
	usb.Connect()

	cfg := settings.Default()
	cfg.IntervalSync = false
	cfg.SyncChannel = 1 // matches the frame's channel tag below
	var st sequencer.State
	c := New(tr, NewUSBAdapter(usb), sequencer.New())

	frame := append([]byte{radio.Preamble, 1, byte(command.MenuInterval)},
		command.EncodeIntervalShort(command.IntervalPayload{NShots: 9, IntervalDelayMS: 4000})...)
	peer.Send(frame)

	c.Tick(&cfg, &st, 10)

	if cfg.IntervalNShots == 9 {
		t.Fatal("radio-origin edit should have been dropped: sync bit was off")
	}
	if _, ok := usb.TakeOutbound(); ok {
		t.Fatal("a dropped edit must not be forwarded to USB")
	}
}

// TestLocalActionForwardsOverRadioWhenTriggerSyncOn covers the action
// (not settings) emission rule: a local button press forwards to radio
// iff trigger_sync is set, and always reaches a connected USB host.
func TestLocalActionForwardsOverRadioWhenTriggerSyncOn(t *testing.T) {
	tr, peer := newTestTransport(t)
	usb := usbtransport.NewDevice()
	usb.Connect()

	cfg := settings.Default()
	cfg.TriggerSync = true
	var st sequencer.State
	c := New(tr, NewUSBAdapter(usb), sequencer.New())

	c.LocalAction(&cfg, &st, 10, command.Trigger)

	if st.TTrigger == 0 {
		t.Fatal("expected the local press to start a trigger cycle")
	}
	if _, ok, _ := peer.TryReceive(); !ok {
		t.Fatal("expected the action to reach radio when trigger_sync is on")
	}
	if _, ok := usb.TakeOutbound(); !ok {
		t.Fatal("expected the action to reach connected USB")
	}
}

// TestLocalPassthroughEmitsHoldAndRelease covers the external-input
// Passthrough path: it drives PassthroughHold (not LocalTriggerHold)
// but still emits the same TRIGGER_HOLD/TRIGGER_RELEASE pair a held
// trigger button would, gated by trigger_sync like any other action.
func TestLocalPassthroughEmitsHoldAndRelease(t *testing.T) {
	tr, peer := newTestTransport(t)
	usb := usbtransport.NewDevice()
	usb.Connect()

	cfg := settings.Default()
	cfg.TriggerSync = true
	var st sequencer.State
	c := New(tr, NewUSBAdapter(usb), sequencer.New())

	c.LocalPassthrough(&cfg, &st, 10, true)
	if !st.PassthroughHold {
		t.Fatal("expected the asserted input to set PassthroughHold")
	}
	if st.LocalTriggerHold {
		t.Fatal("passthrough must not set LocalTriggerHold")
	}
	if data, ok, _ := peer.TryReceive(); !ok || data[2] != byte(command.TriggerHold) {
		t.Fatal("expected a TRIGGER_HOLD frame on radio when trigger_sync is on")
	}
	if cmd, ok := usb.TakeOutbound(); !ok || cmd.Opcode != command.TriggerHold {
		t.Fatal("expected a TRIGGER_HOLD command forwarded to USB")
	}

	c.LocalPassthrough(&cfg, &st, 701, false)
	if st.PassthroughHold {
		t.Fatal("expected the de-asserted input to clear PassthroughHold")
	}
	if data, ok, _ := peer.TryReceive(); !ok || data[2] != byte(command.TriggerRelease) {
		t.Fatal("expected a TRIGGER_RELEASE frame on release")
	}
}

// TestTickAppliesConfiguredChannelToRadio covers the sync_channel wiring:
// Tick must push cfg.SyncChannel into the radio's channel filter every
// call, so a peer transmitting on the configured channel is received
// even though the transport was constructed with a different channel.
func TestTickAppliesConfiguredChannelToRadio(t *testing.T) {
	tr, peer := newTestTransport(t) // constructed with channel 1
	usb := usbtransport.NewDevice()

	cfg := settings.Default()
	cfg.SyncChannel = 5
	cfg.DelaySync = true
	var st sequencer.State
	c := New(tr, NewUSBAdapter(usb), sequencer.New())

	frame := append([]byte{radio.Preamble, 5, byte(command.MenuDelay)},
		command.EncodeDelayShort(command.DelayPayload{DelayMS: 1234})...)
	if err := peer.Send(frame); err != nil {
		t.Fatalf("peer.Send: %v", err)
	}

	c.Tick(&cfg, &st, 10)

	// 1234ms travels as 12 units of 100ms, so it arrives as 1200.
	if cfg.DelayMS != 1200 {
		t.Fatalf("got DelayMS=%d, want 1200: the channel-5 frame should have been received once Tick applied SyncChannel", cfg.DelayMS)
	}
}
