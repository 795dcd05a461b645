package command

import (
	"fmt"

	"github.com/Foalyy/silver/internal/settings"
)

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// TriggerPayload is the MENU_TRIGGER payload: the two UI hold latches
// plus an optional trailing sync bit.
type TriggerPayload struct {
	FocusHold   bool
	TriggerHold bool
	TriggerSync bool
	// HasSync reports whether the decoded payload carried the trailing
	// sync byte (the short, radio-origin form omits it).
	HasSync bool
}

// EncodeTrigger always emits the 3-byte long form, as required when
// forwarding toward USB.
func EncodeTrigger(p TriggerPayload) []byte {
	return []byte{boolByte(p.FocusHold), boolByte(p.TriggerHold), boolByte(p.TriggerSync)}
}

// DecodeTrigger accepts both the 2-byte short form and the 3-byte long
// form, per the two source revisions this protocol descends from.
func DecodeTrigger(b []byte) (TriggerPayload, error) {
	if len(b) != 2 && len(b) != 3 {
		return TriggerPayload{}, fmt.Errorf("command: MENU_TRIGGER: want 2 or 3 bytes, got %d", len(b))
	}
	p := TriggerPayload{
		FocusHold:   b[0] != 0,
		TriggerHold: b[1] != 0,
	}
	if len(b) == 3 {
		p.TriggerSync = b[2] != 0
		p.HasSync = true
	}
	return p, nil
}

// DelayPayload is the MENU_DELAY payload.
type DelayPayload struct {
	DelayMS   uint32
	DelaySync bool
	HasSync   bool
}

func EncodeDelay(p DelayPayload) []byte {
	d := Encode24(MSToDeciseconds(p.DelayMS))
	return []byte{d[0], d[1], d[2], boolByte(p.DelaySync)}
}

// EncodeDelayShort omits the trailing sync byte.
func EncodeDelayShort(p DelayPayload) []byte {
	d := Encode24(MSToDeciseconds(p.DelayMS))
	return []byte{d[0], d[1], d[2]}
}

func DecodeDelay(b []byte) (DelayPayload, error) {
	if len(b) != 3 && len(b) != 4 {
		return DelayPayload{}, fmt.Errorf("command: MENU_DELAY: want 3 or 4 bytes, got %d", len(b))
	}
	p := DelayPayload{DelayMS: DecisecondsToMS(Decode24(b[:3]))}
	if len(b) == 4 {
		p.DelaySync = b[3] != 0
		p.HasSync = true
	}
	return p, nil
}

// IntervalPayload is the MENU_INTERVAL payload.
type IntervalPayload struct {
	NShots          int
	IntervalDelayMS uint32
	IntervalSync    bool
	HasSync         bool
}

// EncodeInterval truncates NShots to a single byte on the wire, matching
// the original firmware's "payload[0] = nShots & 0xFF" — the UI allows
// editing up to 4 digits (9999) but the wire format only ever carried a
// byte. Values above 255 wrap rather than clamp, mirroring the original.
func EncodeInterval(p IntervalPayload) []byte {
	d := Encode24(MSToDeciseconds(p.IntervalDelayMS))
	return []byte{byte(p.NShots), d[0], d[1], d[2], boolByte(p.IntervalSync)}
}

func EncodeIntervalShort(p IntervalPayload) []byte {
	d := Encode24(MSToDeciseconds(p.IntervalDelayMS))
	return []byte{byte(p.NShots), d[0], d[1], d[2]}
}

func DecodeInterval(b []byte) (IntervalPayload, error) {
	if len(b) != 4 && len(b) != 5 {
		return IntervalPayload{}, fmt.Errorf("command: MENU_INTERVAL: want 4 or 5 bytes, got %d", len(b))
	}
	p := IntervalPayload{
		NShots:          int(b[0]),
		IntervalDelayMS: DecisecondsToMS(Decode24(b[1:4])),
	}
	if len(b) == 5 {
		p.IntervalSync = b[4] != 0
		p.HasSync = true
	}
	return p, nil
}

// TimingsPayload is the MENU_TIMINGS (a.k.a. MENU_ADVANCED) payload.
type TimingsPayload struct {
	FocusDurationMS   uint32
	TriggerDurationMS uint32
	SettingsSync      bool
	HasSync           bool
}

func EncodeTimings(p TimingsPayload) []byte {
	f := Encode24(MSToDeciseconds(p.FocusDurationMS))
	t := Encode24(MSToDeciseconds(p.TriggerDurationMS))
	return []byte{f[0], f[1], f[2], t[0], t[1], t[2], boolByte(p.SettingsSync)}
}

func DecodeTimings(b []byte) (TimingsPayload, error) {
	if len(b) != 6 && len(b) != 7 {
		return TimingsPayload{}, fmt.Errorf("command: MENU_TIMINGS: want 6 or 7 bytes, got %d", len(b))
	}
	p := TimingsPayload{
		FocusDurationMS:   DecisecondsToMS(Decode24(b[0:3])),
		TriggerDurationMS: DecisecondsToMS(Decode24(b[3:6])),
	}
	if len(b) == 7 {
		p.SettingsSync = b[6] != 0
		p.HasSync = true
	}
	return p, nil
}

// InputPayload is the MENU_INPUT payload.
type InputPayload struct {
	Mode      settings.InputMode
	InputSync bool
	HasSync   bool
}

func EncodeInput(p InputPayload) []byte {
	return []byte{byte(p.Mode), boolByte(p.InputSync)}
}

func DecodeInput(b []byte) (InputPayload, error) {
	if len(b) != 1 && len(b) != 2 {
		return InputPayload{}, fmt.Errorf("command: MENU_INPUT: want 1 or 2 bytes, got %d", len(b))
	}
	// The input-mode editing wrap in the UI is modulo 4 even though
	// InputMode has exactly four members; mirror that here rather than
	// rejecting an out-of-range byte.
	p := InputPayload{Mode: settings.InputMode(int(b[0]) % 4)}
	if len(b) == 2 {
		p.InputSync = b[1] != 0
		p.HasSync = true
	}
	return p, nil
}

// SettingsPayload is the MENU_SETTINGS payload. It is USB-only and
// carries no trailing sync byte (the radio channel itself is not
// sync-gated).
type SettingsPayload struct {
	SyncChannel int
}

func EncodeSettingsMenu(p SettingsPayload) []byte {
	return []byte{byte(p.SyncChannel)}
}

func DecodeSettingsMenu(b []byte) (SettingsPayload, error) {
	if len(b) != 1 {
		return SettingsPayload{}, fmt.Errorf("command: MENU_SETTINGS: want 1 byte, got %d", len(b))
	}
	return SettingsPayload{SyncChannel: int(b[0])}, nil
}

// StateSnapshotSize is the exact GET_GUI_STATE response length.
const StateSnapshotSize = 22

// EncodeStateSnapshot builds the 22-byte GET_GUI_STATE response, field
// order as specified: focus_hold, trigger_hold, trigger_sync,
// delay/100(3B), delay_sync, n_shots(1B), interval_delay/100(3B),
// interval_sync, input_mode, input_sync, sync_channel,
// focus_dur/100(3B), trigger_dur/100(3B), settings_sync.
func EncodeStateSnapshot(s settings.Settings, focusHold, triggerHold bool) []byte {
	buf := make([]byte, 0, StateSnapshotSize)
	delay := Encode24(MSToDeciseconds(s.DelayMS))
	interval := Encode24(MSToDeciseconds(s.IntervalDelayMS))
	focusDur := Encode24(MSToDeciseconds(s.FocusDurationMS))
	triggerDur := Encode24(MSToDeciseconds(s.TriggerDurationMS))
	buf = append(buf, boolByte(focusHold), boolByte(triggerHold), boolByte(s.TriggerSync))
	buf = append(buf, delay[:]...)
	buf = append(buf, boolByte(s.DelaySync))
	buf = append(buf, byte(s.IntervalNShots))
	buf = append(buf, interval[:]...)
	buf = append(buf, boolByte(s.IntervalSync))
	buf = append(buf, byte(s.InputMode), boolByte(s.InputSync))
	buf = append(buf, byte(s.SyncChannel))
	buf = append(buf, focusDur[:]...)
	buf = append(buf, triggerDur[:]...)
	buf = append(buf, boolByte(s.SettingsSync))
	return buf
}
