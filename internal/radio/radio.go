// Package radio implements the LoRa broadcast transport: the three-byte
// preamble/channel/opcode framing wrapped around a Modem that does the
// actual RF work. Modem register layout, SPI/DMA plumbing, and exact
// chip bring-up are external driver concerns this package only consumes
// through the Modem interface.
package radio

import (
	"fmt"
	"time"

	"github.com/Foalyy/silver/internal/command"
)

// Preamble is the constant first byte of every radio frame.
const Preamble = 0x42

// HeaderSize is the number of framing bytes before the payload: preamble,
// channel, opcode.
const HeaderSize = 3

// Params configures the modem. The zero value is not valid; use
// DefaultParams.
type Params struct {
	FrequencyHz    uint32
	SpreadingFactor int
	CodingRate      string
	BandwidthHz     uint32
	TXPowerDBm      int
	ExplicitHeader  bool
	CRC             bool
}

// DefaultParams matches the documented factory radio configuration.
func DefaultParams() Params {
	return Params{
		FrequencyHz:     868_250_000,
		SpreadingFactor: 8,
		CodingRate:      "4/8",
		BandwidthHz:     125_000,
		TXPowerDBm:      14,
		ExplicitHeader:  true,
		CRC:             true,
	}
}

// AirtimeBudget is the worst-case time a single Send at DefaultParams can
// occupy the loop.
const AirtimeBudget = 200 * time.Millisecond

// Modem is the raw radio primitive: configure once, poll for a received
// packet, transmit a packet synchronously. It knows nothing about the
// preamble/channel/opcode framing layered on top by Transport.
type Modem interface {
	Configure(Params) error
	// TryReceive returns the bytes of one received packet if the modem
	// reports a completed reception, else ok == false.
	TryReceive() (data []byte, ok bool, err error)
	// Send transmits data synchronously and re-arms reception.
	Send(data []byte) error
}

// Frame is a decoded, channel-matched radio command.
type Frame struct {
	Opcode  command.Opcode
	Payload []byte
	// RSSI is left for a concrete Modem to populate; nothing in this
	// package currently consumes it (see the design notes on telemetry
	// scope).
	RSSI int
}

// Transport layers the frame format and channel filtering over a Modem.
// If the modem fails to initialize, Transport still answers every call
// without error: the radio becomes a silent no-op, per the requirement
// that a missing modem must not stop the rest of the unit from working.
type Transport struct {
	modem   Modem
	channel byte
	enabled bool
	rxOnly  bool
	live    bool
}

// New configures modem for channel and returns a Transport. A modem
// configuration failure is returned to the caller (to log as a warning)
// but does not prevent New from returning a usable, no-op Transport.
func New(modem Modem, channel byte, params Params) (*Transport, error) {
	t := &Transport{modem: modem, channel: channel, enabled: true}
	if err := modem.Configure(params); err != nil {
		return t, fmt.Errorf("radio: configure: %w", err)
	}
	t.live = true
	return t, nil
}

// SetMode applies the radio_mode setting: Disabled suppresses TX and RX,
// RxOnly suppresses TX, Enabled is full duplex.
func (t *Transport) SetMode(enabled, rxOnly bool) {
	t.enabled = enabled
	t.rxOnly = rxOnly
}

// SetChannel changes the channel filter applied to received frames.
func (t *Transport) SetChannel(channel byte) {
	t.channel = channel
}

// TryRecv polls the modem for a frame matching the configured channel.
// A frame with a wrong preamble or channel is dropped silently, as is
// any frame received while the radio is disabled or the modem never
// came up.
func (t *Transport) TryRecv() (Frame, bool) {
	if !t.live || !t.enabled {
		return Frame{}, false
	}
	data, ok, err := t.modem.TryReceive()
	if err != nil || !ok {
		return Frame{}, false
	}
	if len(data) < HeaderSize {
		return Frame{}, false
	}
	if data[0] != Preamble || data[1] != t.channel {
		return Frame{}, false
	}
	payload := data[HeaderSize:]
	if len(payload) > command.MaxPayload {
		payload = payload[:command.MaxPayload]
	}
	return Frame{Opcode: command.Opcode(data[2]), Payload: payload}, true
}

// Send transmits opcode+payload on the current channel. It is a no-op
// (and returns nil) when the radio is disabled, receive-only, or the
// modem never initialized: the transport filters, so callers (the
// coordinator) do not need to check radio_mode themselves before
// forwarding a command.
func (t *Transport) Send(opcode command.Opcode, payload []byte) error {
	if !t.live || !t.enabled || t.rxOnly {
		return nil
	}
	if len(payload) > command.MaxPayload {
		return fmt.Errorf("radio: send %v: payload too large (%d bytes)", opcode, len(payload))
	}
	frame := make([]byte, 0, HeaderSize+len(payload))
	frame = append(frame, Preamble, t.channel, byte(opcode))
	frame = append(frame, payload...)
	if err := t.modem.Send(frame); err != nil {
		return fmt.Errorf("radio: send %v: %w", opcode, err)
	}
	return nil
}
