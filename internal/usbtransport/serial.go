//go:build !tinygo

package usbtransport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/tarm/serial"

	"github.com/Foalyy/silver/internal/command"
)

// Open finds the USB gadget's control channel. It tries dev first, then
// falls back to the usual platform-specific device names, exactly the
// way driver/mjolnir.Open probes for a serial-attached peripheral.
func Open(dev string) (io.ReadWriteCloser, error) {
	const baudRate = 115200

	var devices []string
	if dev != "" {
		devices = append(devices, dev)
	} else {
		switch runtime.GOOS {
		case "windows":
			devices = append(devices, "COM4")
		case "linux":
			devices = append(devices, "/dev/ttyACM0", "/dev/ttyACM1")
		}
	}
	if len(devices) == 0 {
		return nil, errors.New("usbtransport: no device specified")
	}
	var firstErr error
	for _, d := range devices {
		c := &serial.Config{Name: d, Baud: baudRate}
		s, err := serial.OpenPort(c)
		if err == nil {
			return s, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// usbLongPayloadLen is the length of the long (with trailing sync byte)
// wire form the host always uses, per the requirement that USB always
// speaks the long form. Action and query opcodes carry no inbound
// payload.
func usbLongPayloadLen(op command.Opcode) int {
	switch op {
	case command.MenuTrigger:
		return 3
	case command.MenuDelay:
		return 4
	case command.MenuInterval:
		return 5
	case command.MenuTimings:
		return 7
	case command.MenuInput:
		return 2
	case command.MenuSettings:
		return 1
	default:
		return 0
	}
}

// controlByte prefixes the out-of-band control requests (bootloader,
// connect, disconnect), which are handled before they ever reach the
// shared opcode space: on real hardware the
// SETUP packet's bRequest 0x00 is intercepted for CMD_GET_GUI_STATE's
// sibling "start bootloader" request at the USB stack layer, distinct
// from MENU_TRIGGER (opcode 0) in the settings/action command space.
// This server never confuses the two because it only interprets opcode
// byte 0 as bootloader on the dedicated control byte below.
const controlByte = 0xfe

// Serve runs the request/response loop over rw, publishing commands into
// dev's inbound latch and answering queries from dev's outbound latch
// and GUI state snapshot. It blocks until rw returns an error (typically
// because the host disconnected) and then returns that error.
//
// Wire shape per request: [opcode][payload...], with the payload length
// fixed per opcode; a response ([len][payload...]) is only written for
// the two query opcodes. Control requests ([0xfe][sub-byte]) get no
// response; the bootloader one is a fire-and-forget watchdog arm.
func Serve(rw io.ReadWriteCloser, dev *Device, snapshot func() []byte) error {
	defer rw.Close()
	r := bufio.NewReader(rw)
	w := bufio.NewWriter(rw)
	for {
		opByte, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("usbtransport: read request: %w", err)
		}
		if opByte == controlByte {
			sub, err := r.ReadByte()
			if err != nil {
				return fmt.Errorf("usbtransport: read control byte: %w", err)
			}
			switch sub {
			case 0x00: // bootloader
				dev.HandleBootloaderRequest()
			case 0x01: // connect
				dev.Connect()
			case 0x02: // disconnect
				dev.Disconnect()
			}
			continue
		}
		op := command.Opcode(opByte)
		switch op {
		case command.GetGUIState:
			if err := writeFrame(w, snapshot()); err != nil {
				return err
			}
		case command.GetGUIUpdate:
			var resp []byte
			if cmd, ok := dev.TakeOutbound(); ok {
				resp = append([]byte{byte(cmd.Opcode)}, cmd.Payload...)
			}
			if err := writeFrame(w, resp); err != nil {
				return err
			}
		default:
			n := usbLongPayloadLen(op)
			payload := make([]byte, n)
			if n > 0 {
				if _, err := io.ReadFull(r, payload); err != nil {
					return fmt.Errorf("usbtransport: read payload: %w", err)
				}
			}
			dev.PostInbound(command.Command{Opcode: op, Payload: payload})
		}
	}
}

func writeFrame(w *bufio.Writer, payload []byte) error {
	if err := w.WriteByte(byte(len(payload))); err != nil {
		return fmt.Errorf("usbtransport: write response: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("usbtransport: write response: %w", err)
	}
	return w.Flush()
}
