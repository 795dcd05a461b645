// Package coordinator implements the sync coordinator: it fans commands
// in from the three sources (local UI, radio, USB), applies them to
// settings and the sequencer, and rebroadcasts with loop-avoidance and
// per-parameter sync gating.
package coordinator

import (
	"github.com/Foalyy/silver/internal/command"
	"github.com/Foalyy/silver/internal/radio"
	"github.com/Foalyy/silver/internal/sequencer"
	"github.com/Foalyy/silver/internal/settings"
	"github.com/Foalyy/silver/internal/usbtransport"
)

// Source identifies where an incoming command came from, driving the
// loop-avoidance rule: never echo a command back to its own source.
type Source int

const (
	SourceLocal Source = iota
	SourceRadio
	SourceUSB
)

// Radio is the subset of *radio.Transport the coordinator needs.
type Radio interface {
	TryRecv() (radio.Frame, bool)
	Send(opcode command.Opcode, payload []byte) error
	SetChannel(channel byte)
}

// USB is the subset of *usbtransport.Device the coordinator needs.
type USB interface {
	TryRecvCommand() (command.Command, bool)
	SetOutbound(cmd command.Command)
	Connected() bool
}

// usbDeviceAdapter lets *usbtransport.Device satisfy USB without that
// package depending on coordinator: transports never reference the
// coordinator, only the reverse, per the "keep this acyclic" design
// note.
type usbDeviceAdapter struct {
	*usbtransport.Device
}

func (a usbDeviceAdapter) TryRecvCommand() (command.Command, bool) {
	return a.TakeInbound()
}

// NewUSBAdapter wraps a *usbtransport.Device as a coordinator USB sink.
func NewUSBAdapter(d *usbtransport.Device) USB { return usbDeviceAdapter{d} }

// Coordinator holds no settings or sequencer state itself: Tick takes
// them by pointer each call so the "Unit" value the caller owns remains
// the single source of truth, per the design note against package-level
// globals.
type Coordinator struct {
	radio Radio
	usb   USB
	seq   *sequencer.Sequencer
}

func New(r Radio, u USB, seq *sequencer.Sequencer) *Coordinator {
	return &Coordinator{radio: r, usb: u, seq: seq}
}

// Tick processes at most one radio frame and one USB command, in that
// order, applying each to cfg and st, then runs the sequencer tick and
// forwards its remote-hold-timeout releases and hold keepalives. The
// caller is expected to have already applied local UI edits to cfg/st
// before calling Tick, so that a button press and a remote release
// arriving within the same tick are both visible before outputs are
// computed, per §5's ordering guarantee.
func (c *Coordinator) Tick(cfg *settings.Settings, st *sequencer.State, now uint64) sequencer.Outputs {
	// sync_channel is USB-only (never sync-gated) and can change at any
	// time via the menu or a USB edit, so the radio's channel filter is
	// kept in lockstep here rather than only at boot.
	c.radio.SetChannel(byte(cfg.SyncChannel))

	if f, ok := c.radio.TryRecv(); ok {
		c.apply(cfg, st, now, f.Opcode, f.Payload, SourceRadio)
	}
	if cmd, ok := c.usb.TryRecvCommand(); ok {
		c.apply(cfg, st, now, cmd.Opcode, cmd.Payload, SourceUSB)
	}

	out, release, keepalive := c.seq.Tick(*cfg, st, now)

	// Remote-hold-timeout releases are a radio-only best-effort courtesy
	// to the peer that asserted the hold over USB in the first place; they
	// are never themselves forwarded on to USB.
	if release.Focus && cfg.TriggerSync {
		c.radio.Send(command.FocusRelease, nil)
	}
	if release.Trigger && cfg.TriggerSync {
		c.radio.Send(command.TriggerRelease, nil)
	}
	if keepalive.Focus {
		c.radio.Send(command.FocusHold, nil)
	}
	if keepalive.Trigger {
		c.radio.Send(command.TriggerHold, nil)
	}

	return out
}

// LocalEdit emits a settings-group change the UI has already applied to
// cfg, per the emission rule: to radio iff the matching sync bit is set,
// to USB always (when connected).
func (c *Coordinator) LocalEdit(cfg *settings.Settings, opcode command.Opcode) {
	sync := syncBitFor(cfg, opcode)
	c.reemitPayload(cfg, opcode, encodeCurrentPayload(cfg, opcode), sync, SourceLocal)
}

// LocalTriggerEdit applies the menu's own focus/trigger hold latches
// (the MENU_TRIGGER checkboxes, distinct from the dedicated trigger
// button's action-opcode path) and forwards per the same rule as any
// other local settings edit.
func (c *Coordinator) LocalTriggerEdit(cfg *settings.Settings, st *sequencer.State, now uint64, focusHold, triggerHold bool) {
	sequencer.SetLocalFocusHold(st, now, focusHold)
	sequencer.SetLocalTriggerHold(st, now, triggerHold)
	payload := command.EncodeTrigger(command.TriggerPayload{FocusHold: focusHold, TriggerHold: triggerHold, TriggerSync: cfg.TriggerSync})
	c.reemitPayload(cfg, command.MenuTrigger, payload, cfg.TriggerSync, SourceLocal)
}

// LocalPassthrough applies an external-input edge in Passthrough mode.
// It drives PassthroughHold directly rather than LocalTriggerHold, but
// emits the same CMD_TRIGGER_HOLD/CMD_TRIGGER_RELEASE pair a physical
// trigger-hold button would, gated by the same TriggerSync bit.
func (c *Coordinator) LocalPassthrough(cfg *settings.Settings, st *sequencer.State, now uint64, held bool) {
	sequencer.SetPassthrough(st, now, held)
	opcode := command.TriggerRelease
	if held {
		opcode = command.TriggerHold
	}
	c.emitAction(cfg, opcode, SourceLocal)
}

// LocalAction delivers a local UI action event (button edge) to the
// sequencer and forwards it per the action emission rule. Hold/release
// opcodes are routed to the Local* latches, not the Remote* ones: those
// are reserved for holds reported by a peer over radio or USB.
func (c *Coordinator) LocalAction(cfg *settings.Settings, st *sequencer.State, now uint64, opcode command.Opcode) {
	switch opcode {
	case command.FocusHold:
		sequencer.SetLocalFocusHold(st, now, true)
	case command.FocusRelease:
		sequencer.SetLocalFocusHold(st, now, false)
	case command.TriggerHold:
		sequencer.SetLocalTriggerHold(st, now, true)
	case command.TriggerRelease:
		sequencer.SetLocalTriggerHold(st, now, false)
	default:
		applyAction(st, now, opcode, false)
	}
	c.emitAction(cfg, opcode, SourceLocal)
}

func (c *Coordinator) emitAction(cfg *settings.Settings, opcode command.Opcode, from Source) {
	if from != SourceRadio && cfg.TriggerSync {
		c.radio.Send(opcode, nil)
	}
	if from != SourceUSB && c.usb.Connected() {
		c.usb.SetOutbound(command.Command{Opcode: opcode})
	}
}

// apply is the settings/action-command handling of §4.4.2/§4.4.3.
func (c *Coordinator) apply(cfg *settings.Settings, st *sequencer.State, now uint64, opcode command.Opcode, payload []byte, from Source) {
	switch {
	case opcode.IsSettings():
		c.applySettings(cfg, st, now, opcode, payload, from)
	case opcode.IsAction():
		if from == SourceRadio && !cfg.TriggerSync {
			return
		}
		fromUSB := from == SourceUSB
		applyAction(st, now, opcode, fromUSB)
		if from == SourceUSB && cfg.TriggerSync {
			c.radio.Send(opcode, nil)
		}
	}
}

// applyAction mutates the sequencer state for an action opcode.
// fromUSB records which transport owns a newly-set remote hold latch,
// for the timeout path's best-effort release.
func applyAction(st *sequencer.State, now uint64, opcode command.Opcode, fromUSB bool) {
	switch opcode {
	case command.Focus:
		sequencer.PressFocusOnly(st, now)
	case command.FocusHold:
		sequencer.SetRemoteFocusHold(st, now, true, fromUSB)
	case command.FocusRelease:
		sequencer.SetRemoteFocusHold(st, now, false, fromUSB)
	case command.Trigger:
		sequencer.PressTrigger(st, now, false)
	case command.TriggerNoDelay:
		sequencer.PressTrigger(st, now, true)
	case command.TriggerHold:
		sequencer.SetRemoteTriggerHold(st, now, true, fromUSB)
	case command.TriggerRelease:
		sequencer.SetRemoteTriggerHold(st, now, false, fromUSB)
	}
}

func (c *Coordinator) applySettings(cfg *settings.Settings, st *sequencer.State, now uint64, opcode command.Opcode, payload []byte, from Source) {
	switch opcode {
	case command.MenuTrigger:
		p, err := command.DecodeTrigger(payload)
		if err != nil {
			return
		}
		if from == SourceRadio && !cfg.TriggerSync {
			return
		}
		// MENU_TRIGGER's two booleans are the UI's own hold latches
		// (held via the submenu, not the physical buttons); they live
		// on sequencer.State, not in persisted Settings.
		sequencer.SetLocalFocusHold(st, now, p.FocusHold)
		sequencer.SetLocalTriggerHold(st, now, p.TriggerHold)
		if from == SourceUSB && p.HasSync {
			cfg.TriggerSync = p.TriggerSync
		}
		c.reemitPayload(cfg, opcode, command.EncodeTrigger(command.TriggerPayload{
			FocusHold: p.FocusHold, TriggerHold: p.TriggerHold, TriggerSync: cfg.TriggerSync,
		}), cfg.TriggerSync, from)

	case command.MenuDelay:
		p, err := command.DecodeDelay(payload)
		if err != nil {
			return
		}
		if from == SourceRadio && !cfg.DelaySync {
			return
		}
		cfg.DelayMS = p.DelayMS
		if from == SourceUSB && p.HasSync {
			cfg.DelaySync = p.DelaySync
		}
		cfg.Clamp()
		c.reemitPayload(cfg, opcode, command.EncodeDelay(command.DelayPayload{DelayMS: cfg.DelayMS, DelaySync: cfg.DelaySync}), cfg.DelaySync, from)

	case command.MenuInterval:
		p, err := command.DecodeInterval(payload)
		if err != nil {
			return
		}
		if from == SourceRadio && !cfg.IntervalSync {
			return
		}
		cfg.IntervalNShots = p.NShots
		cfg.IntervalDelayMS = p.IntervalDelayMS
		if from == SourceUSB && p.HasSync {
			cfg.IntervalSync = p.IntervalSync
		}
		cfg.Clamp()
		c.reemitPayload(cfg, opcode, command.EncodeInterval(command.IntervalPayload{NShots: cfg.IntervalNShots, IntervalDelayMS: cfg.IntervalDelayMS, IntervalSync: cfg.IntervalSync}), cfg.IntervalSync, from)

	case command.MenuTimings:
		p, err := command.DecodeTimings(payload)
		if err != nil {
			return
		}
		if from == SourceRadio && !cfg.SettingsSync {
			return
		}
		cfg.FocusDurationMS = p.FocusDurationMS
		cfg.TriggerDurationMS = p.TriggerDurationMS
		if from == SourceUSB && p.HasSync {
			cfg.SettingsSync = p.SettingsSync
		}
		cfg.Clamp()
		c.reemitPayload(cfg, opcode, command.EncodeTimings(command.TimingsPayload{FocusDurationMS: cfg.FocusDurationMS, TriggerDurationMS: cfg.TriggerDurationMS, SettingsSync: cfg.SettingsSync}), cfg.SettingsSync, from)

	case command.MenuInput:
		p, err := command.DecodeInput(payload)
		if err != nil {
			return
		}
		if from == SourceRadio && !cfg.InputSync {
			return
		}
		cfg.InputMode = p.Mode
		if from == SourceUSB && p.HasSync {
			cfg.InputSync = p.InputSync
		}
		cfg.Clamp()
		c.reemitPayload(cfg, opcode, command.EncodeInput(command.InputPayload{Mode: cfg.InputMode, InputSync: cfg.InputSync}), cfg.InputSync, from)

	case command.MenuSettings:
		// USB-only: the radio channel itself is never sync-gated or
		// forwarded.
		if from != SourceUSB {
			return
		}
		p, err := command.DecodeSettingsMenu(payload)
		if err != nil {
			return
		}
		cfg.SyncChannel = p.SyncChannel
		cfg.Clamp()
	}
}

// reemitPayload implements §4.4.2's re-emission rule: forward to radio
// iff the matching sync bit is (now) true and the command didn't come
// from the radio; forward to USB (carrying the long, sync-suffixed
// form) iff USB is connected and the command didn't come from USB.
// Every sync-gated settings payload's long form is exactly its short
// form plus one trailing sync byte, so the short form radio wants is just
// the long form with that byte dropped. MENU_SETTINGS has no sync byte;
// its sync argument is always false, so it never reaches the radio.
func (c *Coordinator) reemitPayload(cfg *settings.Settings, opcode command.Opcode, longPayload []byte, sync bool, from Source) {
	if from != SourceRadio && sync {
		c.radio.Send(opcode, longPayload[:len(longPayload)-1])
	}
	if from != SourceUSB && c.usb.Connected() {
		c.usb.SetOutbound(command.Command{Opcode: opcode, Payload: longPayload})
	}
}

func syncBitFor(cfg *settings.Settings, opcode command.Opcode) bool {
	switch opcode {
	case command.MenuTrigger:
		return cfg.TriggerSync
	case command.MenuDelay:
		return cfg.DelaySync
	case command.MenuInterval:
		return cfg.IntervalSync
	case command.MenuTimings:
		return cfg.SettingsSync
	case command.MenuInput:
		return cfg.InputSync
	default:
		return false
	}
}

func encodeCurrentPayload(cfg *settings.Settings, opcode command.Opcode) []byte {
	switch opcode {
	case command.MenuDelay:
		return command.EncodeDelay(command.DelayPayload{DelayMS: cfg.DelayMS, DelaySync: cfg.DelaySync})
	case command.MenuInterval:
		return command.EncodeInterval(command.IntervalPayload{NShots: cfg.IntervalNShots, IntervalDelayMS: cfg.IntervalDelayMS, IntervalSync: cfg.IntervalSync})
	case command.MenuTimings:
		return command.EncodeTimings(command.TimingsPayload{FocusDurationMS: cfg.FocusDurationMS, TriggerDurationMS: cfg.TriggerDurationMS, SettingsSync: cfg.SettingsSync})
	case command.MenuInput:
		return command.EncodeInput(command.InputPayload{Mode: cfg.InputMode, InputSync: cfg.InputSync})
	case command.MenuSettings:
		return command.EncodeSettingsMenu(command.SettingsPayload{SyncChannel: cfg.SyncChannel})
	default:
		return nil
	}
}
