// Package usbtransport implements the USB device-side control surface:
// a single-slot inbound latch and a single-slot outbound latch, plus the
// two query opcodes and the connect/disconnect signal. The USB gadget
// descriptor, endpoint plumbing, and bus-reset handling are external
// driver concerns; this package only consumes a request/response byte
// stream shaped like a vendor-request control transfer.
package usbtransport

import (
	"sync"
	"time"

	"github.com/Foalyy/silver/internal/command"
	"github.com/Foalyy/silver/internal/settings"
)

// OutboundWait is how long SetOutbound waits for a full slot to drain
// before overwriting it.
const OutboundWait = 500 * time.Millisecond

// Device is the lock-free-in-spirit (mutex-guarded, in this rewrite)
// single-slot latch pair the coordinator and the USB stack publish into
// and consume from. The real firmware uses a volatile flag written
// after the payload and read with acquire semantics to get the same
// effect without a lock; a mutex gives the identical observable
// behavior on a multi-core host without needing to hand-roll memory
// ordering primitives the Go memory model doesn't expose directly.
type Device struct {
	mu sync.Mutex

	connected bool

	inboundSet bool
	inbound    command.Command

	outboundSet bool
	outbound    command.Command

	// onBootloader is called when a BOOTLOADER request arrives. It is
	// optional; the real reset-into-bootloader path is external driver
	// behavior this package only signals.
	onBootloader func()
}

func NewDevice() *Device {
	return &Device{}
}

// OnBootloader registers the callback invoked for a BOOTLOADER request
// (control byte 0xfe followed by sub-byte 0x00 on the serial channel).
func (d *Device) OnBootloader(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onBootloader = f
}

// Connect marks the USB link up, as does a bus reset in the real stack.
func (d *Device) Connect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = true
}

// Disconnect marks the USB link down and drops anything pending.
func (d *Device) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
	d.inboundSet = false
	d.outboundSet = false
}

func (d *Device) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// PostInbound publishes a command from the host. A second command
// arriving before the loop reads the first overwrites it: the inbound
// latch does not queue, by design (the host drives at human speeds).
func (d *Device) PostInbound(cmd command.Command) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inbound = cmd
	d.inboundSet = true
}

// TakeInbound is called once per tick by the coordinator. It clears the
// latch on read.
func (d *Device) TakeInbound() (command.Command, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inboundSet {
		return command.Command{}, false
	}
	cmd := d.inbound
	d.inboundSet = false
	return cmd, true
}

// SetOutbound is called by the coordinator to forward a command to the
// host. If the slot is already occupied it retries for up to
// OutboundWait before overwriting, per the outbound rate policy; it
// always eventually succeeds (overwrite is silent, info-severity, never
// an error).
func (d *Device) SetOutbound(cmd command.Command) {
	deadline := time.Now().Add(OutboundWait)
	for {
		d.mu.Lock()
		if !d.outboundSet || time.Now().After(deadline) {
			d.outbound = cmd
			d.outboundSet = true
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
}

// TakeOutbound answers a GET_GUI_UPDATE query: returns whatever is
// pending, then empties the slot.
func (d *Device) TakeOutbound() (command.Command, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.outboundSet {
		return command.Command{}, false
	}
	cmd := d.outbound
	d.outboundSet = false
	return cmd, true
}

// GUIState answers a GET_GUI_STATE query.
func (d *Device) GUIState(s settings.Settings, focusHold, triggerHold bool) []byte {
	return command.EncodeStateSnapshot(s, focusHold, triggerHold)
}

// HandleBootloaderRequest runs the registered bootloader callback, if
// any, after the ~10ms watchdog delay the real request schedules.
func (d *Device) HandleBootloaderRequest() {
	d.mu.Lock()
	f := d.onBootloader
	d.mu.Unlock()
	if f == nil {
		return
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		f()
	}()
}
