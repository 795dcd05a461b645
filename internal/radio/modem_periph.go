package radio

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// PeriphModem binds Modem to a real SX127x-class LoRa module over SPI,
// with a reset line and a DIO0 (RX/TX-done) line read as plain GPIO.
// Exact register addresses and the FIFO DMA sequence are deliberately
// out of scope here; this binding only implements the handful of
// operations the Modem interface needs, and treats the rest of the chip
// as opaque register pokes the way a register-table-driven driver would.
type PeriphModem struct {
	conn  spi.Conn
	reset gpio.PinOut
	dio0  gpio.PinIn

	params Params
}

// NewPeriphModem wires up a modem on an already-opened SPI connection,
// with reset already configured as an output by the caller (board wiring
// is the caller's concern, per how input.Open takes already-named pins).
// Configure sets dio0 up as an input.
func NewPeriphModem(conn spi.Conn, reset gpio.PinOut, dio0 gpio.PinIn) *PeriphModem {
	return &PeriphModem{conn: conn, reset: reset, dio0: dio0}
}

// registers holds the opaque configuration byte sequence written to the
// modem on Configure. The concrete layout belongs to the out-of-scope
// modem driver; this is a placeholder the real chip-bring-up code
// replaces with its own register table.
func registers(p Params) []byte {
	buf := make([]byte, 0, 16)
	buf = append(buf, 0x00) // opcode: write config
	buf = append(buf, byte(p.FrequencyHz>>24), byte(p.FrequencyHz>>16), byte(p.FrequencyHz>>8), byte(p.FrequencyHz))
	buf = append(buf, byte(p.SpreadingFactor))
	buf = append(buf, byte(p.BandwidthHz>>16), byte(p.BandwidthHz>>8), byte(p.BandwidthHz))
	buf = append(buf, byte(p.TXPowerDBm))
	flags := byte(0)
	if p.ExplicitHeader {
		flags |= 1
	}
	if p.CRC {
		flags |= 2
	}
	buf = append(buf, flags)
	return buf
}

func (m *PeriphModem) Configure(p Params) error {
	if err := m.reset.Out(gpio.Low); err != nil {
		return fmt.Errorf("radio: modem reset: %w", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := m.reset.Out(gpio.High); err != nil {
		return fmt.Errorf("radio: modem reset: %w", err)
	}
	time.Sleep(10 * time.Millisecond)

	w := registers(p)
	r := make([]byte, len(w))
	if err := m.conn.Tx(w, r); err != nil {
		return fmt.Errorf("radio: modem configure: %w", err)
	}
	m.params = p
	return m.dio0.In(gpio.PullDown, gpio.RisingEdge)
}

func (m *PeriphModem) TryReceive() ([]byte, bool, error) {
	if !m.dio0.WaitForEdge(0) {
		return nil, false, nil
	}
	w := make([]byte, 1+HeaderSize+10)
	w[0] = 0x01 // opcode: read FIFO
	r := make([]byte, len(w))
	if err := m.conn.Tx(w, r); err != nil {
		return nil, false, fmt.Errorf("radio: modem read fifo: %w", err)
	}
	n := int(r[1])
	if n < 0 || 1+n > len(r)-1 {
		return nil, false, fmt.Errorf("radio: modem reported implausible length %d", n)
	}
	return r[2 : 2+n], true, nil
}

func (m *PeriphModem) Send(data []byte) error {
	w := make([]byte, 0, 2+len(data))
	w = append(w, 0x02, byte(len(data))) // opcode: write FIFO + TX
	w = append(w, data...)
	r := make([]byte, len(w))
	if err := m.conn.Tx(w, r); err != nil {
		return fmt.Errorf("radio: modem send: %w", err)
	}
	return nil
}
