package radio

// SimModem is an in-memory loopback Modem, standing in for two units'
// radios talking to each other in tests: Send on one end enqueues a
// packet that TryReceive on the paired end observes.
type SimModem struct {
	params Params
	out    chan []byte
	in     chan []byte
}

// NewSimPair returns two modems wired to each other, as if two units
// shared the same channel and were in range.
func NewSimPair() (a, b *SimModem) {
	c1 := make(chan []byte, 8)
	c2 := make(chan []byte, 8)
	a = &SimModem{out: c1, in: c2}
	b = &SimModem{out: c2, in: c1}
	return a, b
}

func (m *SimModem) Configure(p Params) error {
	m.params = p
	return nil
}

func (m *SimModem) TryReceive() ([]byte, bool, error) {
	select {
	case data := <-m.in:
		return data, true, nil
	default:
		return nil, false, nil
	}
}

func (m *SimModem) Send(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	select {
	case m.out <- cp:
	default:
	}
	return nil
}
