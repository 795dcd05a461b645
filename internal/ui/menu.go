// Package ui implements the button-driven menu model and the ambient
// bookkeeping (activity tracking, shutdown long-press) around it. Pixel
// rendering, fonts, and OLED paging are an external concern; this
// package only turns button edges into settings mutations and command
// emissions.
package ui

import (
	"github.com/Foalyy/silver/internal/command"
	"github.com/Foalyy/silver/internal/coordinator"
	"github.com/Foalyy/silver/internal/sequencer"
	"github.com/Foalyy/silver/internal/settings"
)

// Button identifies one of the unit's physical controls.
type Button int

const (
	Up Button = iota
	Down
	Left
	Right
	OK
	Trigger
	Power
)

// Group is one of the six top-level menu groups, in display order,
// mirroring Context::_menuItemSelected's N_MENU_ITEMS range.
type Group int

const (
	GroupTrigger Group = iota
	GroupDelay
	GroupInterval
	GroupTimings
	GroupInput
	GroupSettings
	numGroups
)

type fieldKind int

const (
	fieldTime fieldKind = iota
	fieldInt
	fieldBool
	fieldEnum
)

type field struct {
	kind   fieldKind
	length int // decimal digits, for fieldInt
	min    int // for fieldInt
	max    int // for fieldEnum, inclusive
}

// groupFields lists, per group, the submenu items Left/Right cycle
// through. GroupTrigger has two boolean checkboxes (focus hold, trigger
// hold); the numeric/settings groups mirror gui.cpp's per-group submenu
// item list.
var groupFields = map[Group][]field{
	GroupTrigger:  {{kind: fieldBool}, {kind: fieldBool}},
	GroupDelay:    {{kind: fieldTime}},
	GroupInterval: {{kind: fieldInt, length: 4, min: 1}, {kind: fieldTime}},
	GroupTimings:  {{kind: fieldTime}, {kind: fieldTime}},
	GroupInput:    {{kind: fieldEnum, max: 3}},
	GroupSettings: {{kind: fieldInt, length: 3, min: 0, max: 254}},
}

// Model is the menu's cursor state: which group, which item within the
// group's submenu, and (while a numeric field is selected) whether the
// value is being edited and which digit the cursor sits on.
type Model struct {
	group   Group
	item    int
	editing bool
	cursor  int
}

func NewModel() *Model { return &Model{} }

func (m *Model) Group() Group { return m.group }
func (m *Model) Item() int    { return m.item }
func (m *Model) Editing() bool { return m.editing }
func (m *Model) Cursor() int   { return m.cursor }

func (m *Model) currentField() field {
	fields := groupFields[m.group]
	if m.item < 0 || m.item >= len(fields) {
		return field{}
	}
	return fields[m.item]
}

func (m *Model) digits() int {
	f := m.currentField()
	switch f.kind {
	case fieldTime:
		return TimeFieldDigits
	case fieldInt:
		return f.length
	default:
		return 1
	}
}

// Handle applies one button press to the menu model, mutating cfg/st as
// appropriate and telling coord to emit whatever command the edit
// produces. now is the current tick's monotonic millisecond clock,
// passed through to the hold-latch setters the Trigger group drives.
func (m *Model) Handle(btn Button, cfg *settings.Settings, st *sequencer.State, coord *coordinator.Coordinator, now uint64) {
	switch btn {
	case Up, Down:
		m.handleUpDown(btn == Up, cfg, st, coord, now)
	case Left, Right:
		m.handleLeftRight(btn == Right)
	case OK:
		m.handleOK(cfg, st, coord, now)
	}
}

func (m *Model) handleUpDown(up bool, cfg *settings.Settings, st *sequencer.State, coord *coordinator.Coordinator, now uint64) {
	if !m.editing {
		// Not editing: Up/Down cycle the selected top-level group, per
		// GUI::setMenu's wraparound.
		if up {
			if m.group == 0 {
				m.group = numGroups - 1
			} else {
				m.group--
			}
		} else {
			m.group = (m.group + 1) % numGroups
		}
		m.item = 0
		m.cursor = 0
		return
	}

	f := m.currentField()
	switch f.kind {
	case fieldTime:
		v := m.getTime(cfg)
		if up {
			v = IncrementTimeField(v, m.cursor)
		} else {
			v = DecrementTimeField(v, m.cursor)
		}
		m.setTime(cfg, coord, v)
	case fieldInt:
		v := m.getInt(cfg)
		if up {
			v = IncrementIntField(v, m.cursor, f.length)
		} else {
			v = DecrementIntField(v, m.cursor, f.length, f.min)
		}
		m.setInt(cfg, coord, v)
	case fieldEnum:
		v := int(cfg.InputMode)
		if up {
			v = (v + 1) % 4
		} else {
			v = (v + 3) % 4
		}
		cfg.InputMode = settings.InputMode(v)
		coord.LocalEdit(cfg, command.MenuInput)
	case fieldBool:
		m.toggleTriggerHold(st, cfg, coord, now)
	}
}

func (m *Model) handleLeftRight(right bool) {
	if m.editing {
		if right {
			m.cursor = MoveCursorRight(m.cursor, m.digits())
		} else {
			m.cursor = MoveCursorLeft(m.cursor, m.digits())
		}
		return
	}
	fields := groupFields[m.group]
	if len(fields) == 0 {
		return
	}
	if right {
		m.item = (m.item + 1) % len(fields)
	} else {
		m.item = (m.item - 1 + len(fields)) % len(fields)
	}
	m.cursor = 0
}

func (m *Model) handleOK(cfg *settings.Settings, st *sequencer.State, coord *coordinator.Coordinator, now uint64) {
	f := m.currentField()
	switch f.kind {
	case fieldBool:
		m.toggleTriggerHold(st, cfg, coord, now)
	case fieldTime, fieldInt, fieldEnum:
		m.editing = !m.editing
		if m.editing {
			m.cursor = 0
		}
	}
}

func (m *Model) toggleTriggerHold(st *sequencer.State, cfg *settings.Settings, coord *coordinator.Coordinator, now uint64) {
	focusHold, triggerHold := st.LocalFocusHold, st.LocalTriggerHold
	if m.item == 0 {
		focusHold = !focusHold
	} else {
		triggerHold = !triggerHold
	}
	coord.LocalTriggerEdit(cfg, st, now, focusHold, triggerHold)
}

func (m *Model) getTime(cfg *settings.Settings) uint32 {
	switch m.group {
	case GroupDelay:
		return cfg.DelayMS
	case GroupInterval:
		return cfg.IntervalDelayMS
	case GroupTimings:
		if m.item == 0 {
			return cfg.FocusDurationMS
		}
		return cfg.TriggerDurationMS
	}
	return 0
}

func (m *Model) setTime(cfg *settings.Settings, coord *coordinator.Coordinator, v uint32) {
	var opcode command.Opcode
	switch m.group {
	case GroupDelay:
		cfg.DelayMS = v
		opcode = command.MenuDelay
	case GroupInterval:
		cfg.IntervalDelayMS = v
		opcode = command.MenuInterval
	case GroupTimings:
		if m.item == 0 {
			cfg.FocusDurationMS = v
		} else {
			cfg.TriggerDurationMS = v
		}
		opcode = command.MenuTimings
	default:
		return
	}
	cfg.Clamp()
	coord.LocalEdit(cfg, opcode)
}

func (m *Model) getInt(cfg *settings.Settings) int {
	switch m.group {
	case GroupInterval:
		return cfg.IntervalNShots
	case GroupSettings:
		return cfg.SyncChannel
	}
	return 0
}

func (m *Model) setInt(cfg *settings.Settings, coord *coordinator.Coordinator, v int) {
	var opcode command.Opcode
	switch m.group {
	case GroupInterval:
		cfg.IntervalNShots = v
		opcode = command.MenuInterval
	case GroupSettings:
		cfg.SyncChannel = v
		opcode = command.MenuSettings
	default:
		return
	}
	cfg.Clamp()
	coord.LocalEdit(cfg, opcode)
}
