// Package errsink implements the unit's three-severity error reporting
// path: info events are recorded and otherwise swallowed, warnings blink
// the trigger LED and let the tick loop continue, and critical errors
// blink the trigger LED forever and never return control to the loop.
package errsink

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

type Severity int

const (
	Info Severity = iota
	Warning
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Event is one recorded error, module-tagged the way Error::Module/Code
// tag an error at the call site.
type Event struct {
	Module   string
	Code     int
	Severity Severity
	TimeMS   uint64
}

// ringSize is the fixed capacity of the event history; the oldest event
// is overwritten once full.
const ringSize = 16

// Sink is the process-wide error funnel. The zero value is not usable;
// call New.
type Sink struct {
	mu sync.Mutex

	events [ringSize]Event
	next   int
	count  int

	onWarning func(Event)
	onCritical func(Event)
}

func New() *Sink {
	return &Sink{}
}

// OnWarning registers the callback run synchronously inside Report for
// Warning-severity events. Only one callback is kept; registering again
// replaces it.
func (s *Sink) OnWarning(f func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWarning = f
}

// OnCritical registers the callback run synchronously inside Report for
// Critical-severity events. A critical handler is expected to never
// return, matching the original firmware's halt-and-blink behavior.
func (s *Sink) OnCritical(f func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCritical = f
}

// Report records the event and, for Warning and Critical, invokes the
// registered handler before returning. A Critical handler that blocks
// forever means Report itself never returns, which is the intended
// effect: the tick loop stops dead rather than limping on past a fault
// it cannot safely continue through.
func (s *Sink) Report(now uint64, module string, code int, sev Severity) {
	ev := Event{Module: module, Code: code, Severity: sev, TimeMS: now}
	s.record(ev)

	s.mu.Lock()
	warn, crit := s.onWarning, s.onCritical
	s.mu.Unlock()

	switch sev {
	case Warning:
		if warn != nil {
			warn(ev)
		}
	case Critical:
		if crit != nil {
			crit(ev)
		}
	}
}

func (s *Sink) record(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[s.next] = ev
	s.next = (s.next + 1) % ringSize
	if s.count < ringSize {
		s.count++
	}
}

// Events returns the recorded history, oldest first.
func (s *Sink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, s.count)
	start := (s.next - s.count + ringSize) % ringSize
	for i := 0; i < s.count; i++ {
		out[i] = s.events[(start+i)%ringSize]
	}
	return out
}

// blinker abstracts the single LED pin errsink drives; satisfied by
// gpio.PinOut (and gpio.PinIO, which embeds it), kept narrow to just
// the Out method so this package doesn't need periph's host init to
// be testable.
type blinker interface {
	Out(level gpio.Level) error
}

// LEDHandlers builds the two handlers the original firmware wires at
// boot: a triple-blink that returns, and a forever-blink that doesn't.
// Both run on the calling goroutine — the tick loop itself — matching
// the original's blocking Core::sleep inside the error handler.
func LEDHandlers(led blinker) (onWarning, onCritical func(Event)) {
	blink := func(on bool) {
		// Best-effort: a failing LED pin must not itself escalate into
		// another error report.
		_ = led.Out(gpio.Level(on))
	}
	onWarning = func(Event) {
		for i := 0; i < 3; i++ {
			blink(false)
			time.Sleep(100 * time.Millisecond)
			blink(true)
			time.Sleep(100 * time.Millisecond)
		}
	}
	onCritical = func(Event) {
		for {
			blink(false)
			time.Sleep(100 * time.Millisecond)
			blink(true)
			time.Sleep(100 * time.Millisecond)
		}
	}
	return onWarning, onCritical
}

// Wrap turns a plain error into a Warning-severity Report call under
// module, returning err unchanged so callers can do:
//
//	if err := radio.Send(...); err != nil {
//	    sink.Wrap(now, "radio", err)
//	}
func (s *Sink) Wrap(now uint64, module string, err error) error {
	if err != nil {
		s.Report(now, module, 0, Warning)
	}
	return err
}

func (s *Sink) String() string {
	events := s.Events()
	return fmt.Sprintf("errsink: %d event(s) recorded", len(events))
}
