//go:build !tinygo

package ui

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Edge is one button's level change, generalizing input.Event from the
// Waveshare HAT's eight fixed buttons to Silver's controls.
type Edge struct {
	Button  Button
	Pressed bool
}

// pinNames maps each control to its GPIO line name, looked up through
// gpioreg the way input.Open resolves bcm283x pins by name; unlike that
// driver, Silver's pinout is board-specific and supplied by the caller
// rather than hardcoded, since this package targets more than one board
// revision.
type pinNames map[Button]string

// OpenButtons wires up debounced edge-detection goroutines for each
// named pin, one per Button, exactly as input.Open does for the HAT's
// joystick: pull-up input, both-edge interrupts, a short debounce wait
// before the edge is trusted. Edges are delivered on ch.
func OpenButtons(pins pinNames, ch chan<- Edge) error {
	for btn, name := range pins {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return fmt.Errorf("ui: unknown pin %q for button %v", name, btn)
		}
		if err := pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
			return fmt.Errorf("ui: enable input on %q: %w", name, err)
		}
		btn, pin := btn, pin
		go func() {
			pressed := false
			newPressed := false
			const debounce = 10 * time.Millisecond
			for {
				timeout := debounce
				if newPressed == pressed {
					timeout = -1
				}
				if pin.WaitForEdge(timeout) {
					newPressed = pin.Read() == gpio.Low
				} else if newPressed != pressed {
					pressed = newPressed
					ch <- Edge{Button: btn, Pressed: pressed}
				}
			}
		}()
	}
	return nil
}
