// command silver runs the trigger unit's cooperative tick loop: read
// inputs, apply commands, advance the sequencer, drive outputs, sleep.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/Foalyy/silver/internal/clock"
	"github.com/Foalyy/silver/internal/command"
	"github.com/Foalyy/silver/internal/coordinator"
	"github.com/Foalyy/silver/internal/errsink"
	"github.com/Foalyy/silver/internal/radio"
	"github.com/Foalyy/silver/internal/sequencer"
	"github.com/Foalyy/silver/internal/settings"
	"github.com/Foalyy/silver/internal/ui"
	"github.com/Foalyy/silver/internal/usbtransport"
)

var (
	settingsPath = flag.String("settings", "/var/lib/silver/settings.bin", "settings NVM page file")
	usbDevice    = flag.String("usb-device", "", "USB control channel device (auto-detected if empty)")
	spiPort      = flag.String("spi", "", "SPI port for the LoRa modem (auto-detected if empty)")
	pinReset     = flag.String("pin-reset", "GPIO24", "LoRa modem reset pin")
	pinDIO0      = flag.String("pin-dio0", "GPIO25", "LoRa modem DIO0 pin")
	pinFocusOut  = flag.String("pin-focus", "GPIO5", "FOCUS_OUT pin")
	pinTriggerOut = flag.String("pin-trigger", "GPIO6", "TRIGGER_OUT pin")
	pinLEDTrigger = flag.String("pin-led-trigger", "GPIO13", "trigger status LED pin")
	pinUp        = flag.String("pin-up", "GPIO17", "Up button pin")
	pinDown      = flag.String("pin-down", "GPIO27", "Down button pin")
	pinLeft      = flag.String("pin-left", "GPIO22", "Left button pin")
	pinRight     = flag.String("pin-right", "GPIO23", "Right button pin")
	pinOK        = flag.String("pin-ok", "GPIO4", "OK button pin")
	pinTriggerBtn = flag.String("pin-trigger-btn", "GPIO16", "trigger button pin")
	pinPower     = flag.String("pin-power", "GPIO26", "power button pin")
	pinInput     = flag.String("pin-input", "GPIO12", "external input line")
)

const tickPeriod = 10 * time.Millisecond

func main() {
	flag.Parse()
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "silver: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("host init: %w", err)
	}

	store := settings.NewStore(settings.NewFilePage(*settingsPath))
	cfg, err := store.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	sink := errsink.New()
	if ledPin := gpioreg.ByName(*pinLEDTrigger); ledPin != nil {
		if err := ledPin.Out(gpio.High); err != nil {
			log.Printf("silver: trigger LED init: %v", err)
		}
		warn, crit := errsink.LEDHandlers(ledPin)
		sink.OnWarning(warn)
		sink.OnCritical(crit)
	}

	transport, radioErr := openRadio(byte(cfg.SyncChannel))
	if radioErr != nil {
		sink.Report(0, "radio", 0, errsink.Warning)
		log.Printf("silver: radio init: %v (continuing without radio)", radioErr)
	}
	transport.SetMode(cfg.RadioMode != settings.RadioDisabled, cfg.RadioMode == settings.RadioRxOnly)

	usbDev := usbtransport.NewDevice()
	go serveUSB(usbDev, store, sink)

	seq := sequencer.New()
	coord := coordinator.New(transport, coordinator.NewUSBAdapter(usbDev), seq)

	edges := make(chan ui.Edge, 16)
	if err := ui.OpenButtons(buttonPins(), edges); err != nil {
		sink.Report(0, "ui", 0, errsink.Warning)
		log.Printf("silver: button init: %v (continuing with no buttons)", err)
	}

	inputEdges := make(chan bool, 4)
	if err := openInputPin(*pinInput, inputEdges); err != nil {
		sink.Report(0, "ui", 0, errsink.Warning)
		log.Printf("silver: external input init: %v (continuing with no external input)", err)
	}

	focusPin := gpioreg.ByName(*pinFocusOut)
	triggerPin := gpioreg.ByName(*pinTriggerOut)
	ledPin := gpioreg.ByName(*pinLEDTrigger)
	if focusPin != nil {
		focusPin.Out(gpio.Low)
	}
	if triggerPin != nil {
		triggerPin.Out(gpio.Low)
	}

	c := clock.NewSystem()
	menu := ui.NewModel()
	activity := &ui.ActivityTracker{}
	power := &ui.PowerButtonTracker{}
	var st sequencer.State

	var shutdownHandled bool
	var powerHeld bool
	for {
		now := c.Now()

		drainEdges(edges, menu, &cfg, &st, coord, now, activity, &powerHeld)
		drainInputEdges(inputEdges, &cfg, &st, coord, now, activity)
		// Update runs every tick, not just on an edge: the button stays
		// asserted across many ticks with no further edge event, and the
		// long-press threshold must still be observed while held.
		power.Update(powerHeld, now)
		if power.ShutdownRequested() && !shutdownHandled {
			shutdownHandled = true
			if err := store.Save(cfg); err != nil {
				log.Printf("silver: save on shutdown: %v", err)
			}
			return nil
		}

		out := coord.Tick(&cfg, &st, now)

		if focusPin != nil {
			focusPin.Out(gpio.Level(out.FocusOut))
		}
		if triggerPin != nil {
			triggerPin.Out(gpio.Level(out.TriggerOut))
		}
		if ledPin != nil {
			driveStatusLED(ledPin, out.LED, now)
		}

		c.Sleep(tickPeriod)
	}
}

func drainEdges(edges chan ui.Edge, m *ui.Model, cfg *settings.Settings, st *sequencer.State, coord *coordinator.Coordinator, now uint64, activity *ui.ActivityTracker, powerHeld *bool) {
	for {
		select {
		case e := <-edges:
			activity.Touch(now)
			switch e.Button {
			case ui.Power:
				*powerHeld = e.Pressed
			case ui.Trigger:
				if e.Pressed {
					coord.LocalAction(cfg, st, now, command.Trigger)
				}
			default:
				if e.Pressed {
					m.Handle(e.Button, cfg, st, coord, now)
				}
			}
		default:
			return
		}
	}
}

// drainInputEdges applies the external input line per the active
// settings.InputMode: Trigger/TriggerNoDelay start a cycle on assertion
// (only if none is already running), Passthrough mirrors the line into
// PassthroughHold for as long as it's held. Disabled drops edges.
func drainInputEdges(edges chan bool, cfg *settings.Settings, st *sequencer.State, coord *coordinator.Coordinator, now uint64, activity *ui.ActivityTracker) {
	for {
		select {
		case asserted := <-edges:
			activity.Touch(now)
			switch cfg.InputMode {
			case settings.Trigger:
				if asserted && st.TTrigger == 0 {
					coord.LocalAction(cfg, st, now, command.Trigger)
				}
			case settings.TriggerNoDelay:
				if asserted && st.TTrigger == 0 {
					coord.LocalAction(cfg, st, now, command.TriggerNoDelay)
				}
			case settings.Passthrough:
				coord.LocalPassthrough(cfg, st, now, asserted)
			}
		default:
			return
		}
	}
}

// openInputPin wires a debounced edge-detection goroutine for the
// external input line, the same way ui.OpenButtons does for the panel
// buttons; it is kept in main rather than the ui package since it
// drives the sequencer directly instead of a menu Button.
func openInputPin(name string, ch chan<- bool) error {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return fmt.Errorf("unknown pin %q for external input", name)
	}
	if err := pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return fmt.Errorf("enable input on %q: %w", name, err)
	}
	go func() {
		asserted := false
		newAsserted := false
		const debounce = 10 * time.Millisecond
		for {
			timeout := debounce
			if newAsserted == asserted {
				timeout = -1
			}
			if pin.WaitForEdge(timeout) {
				newAsserted = pin.Read() == gpio.Low
			} else if newAsserted != asserted {
				asserted = newAsserted
				ch <- asserted
			}
		}
	}()
	return nil
}

// driveStatusLED applies the waiting/triggering/idle blink pattern; the
// 400ms waiting blink period is computed from now rather than a stored
// phase, since the LED state itself is recomputed fresh every tick.
func driveStatusLED(pin gpio.PinOut, state sequencer.LEDState, now uint64) {
	switch state {
	case sequencer.LEDTriggering:
		pin.Out(gpio.Low)
	case sequencer.LEDWaiting:
		pin.Out(gpio.Level((now/400)%2 == 0))
	default:
		pin.Out(gpio.High)
	}
}

func openRadio(channel byte) (*radio.Transport, error) {
	port, err := spireg.Open(*spiPort)
	if err != nil {
		return &radio.Transport{}, fmt.Errorf("open spi: %w", err)
	}
	conn, err := port.Connect(1_000_000, 0, 8)
	if err != nil {
		return &radio.Transport{}, fmt.Errorf("spi connect: %w", err)
	}
	reset := gpioreg.ByName(*pinReset)
	dio0 := gpioreg.ByName(*pinDIO0)
	if reset == nil || dio0 == nil {
		return &radio.Transport{}, fmt.Errorf("radio pins not found: reset=%v dio0=%v", reset, dio0)
	}
	if err := reset.Out(gpio.High); err != nil {
		return &radio.Transport{}, fmt.Errorf("reset pin: %w", err)
	}
	modem := radio.NewPeriphModem(conn, reset, dio0)
	return radio.New(modem, channel, radio.DefaultParams())
}

func serveUSB(dev *usbtransport.Device, store *settings.Store, sink *errsink.Sink) {
	dev.OnBootloader(func() {
		log.Println("silver: bootloader request received")
	})
	for {
		rw, err := usbtransport.Open(*usbDevice)
		if err != nil {
			time.Sleep(time.Second)
			continue
		}
		dev.Connect()
		snapshot := func() []byte {
			s, _ := store.Load()
			return dev.GUIState(s, false, false)
		}
		if err := usbtransport.Serve(rw, dev, snapshot); err != nil {
			sink.Report(0, "usbtransport", 0, errsink.Info)
		}
		dev.Disconnect()
	}
}

func buttonPins() map[ui.Button]string {
	return map[ui.Button]string{
		ui.Up:      *pinUp,
		ui.Down:    *pinDown,
		ui.Left:    *pinLeft,
		ui.Right:   *pinRight,
		ui.OK:      *pinOK,
		ui.Trigger: *pinTriggerBtn,
		ui.Power:   *pinPower,
	}
}
