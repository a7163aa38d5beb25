package uart

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"go.bug.st/serial"

	"crownstone-home/internal/bus"
)

// Config selects the serial port the reporter writes to.
type Config struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// Reporter publishes switch, override and presence changes as binary
// frames on a serial port. It only writes; inbound bytes are ignored.
type Reporter struct {
	bus    *bus.Bus
	port   serial.Port
	logger *slog.Logger

	writeMu sync.Mutex
	unsub   func()
}

// NewReporter opens the serial port and returns a reporter ready to Start.
func NewReporter(cfg Config, b *bus.Bus, logger *slog.Logger) (*Reporter, error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = 230400
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	return &Reporter{
		bus:    b,
		port:   port,
		logger: logger.With("component", "uart"),
	}, nil
}

// Start subscribes to the event bus and begins reporting.
func (r *Reporter) Start() {
	r.unsub = r.bus.OnAll(r.handleEvent)
	r.logger.Info("uart reporter started")
}

// Stop unsubscribes and closes the port.
func (r *Reporter) Stop() error {
	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
	return r.port.Close()
}

func (r *Reporter) handleEvent(ev bus.Event) {
	switch ev.Type {
	case bus.EventSwitchStateChanged:
		p, ok := ev.Data.(bus.SwitchStatePayload)
		if !ok {
			return
		}
		relay := uint8(0)
		if p.RelayOn {
			relay = 1
		}
		r.write(OpSwitchState, []byte{p.Intensity, relay, p.DimmerLevel})
	case bus.EventBehaviourOverridden:
		p, ok := ev.Data.(bus.OverriddenPayload)
		if !ok {
			return
		}
		active := uint8(0)
		if p.Active {
			active = 1
		}
		r.write(OpOverride, []byte{active})
	case bus.EventPresenceMutation:
		p, ok := ev.Data.(bus.PresencePayload)
		if !ok {
			return
		}
		payload := make([]byte, 9)
		binary.LittleEndian.PutUint64(payload, p.Bitmask)
		payload[8] = presenceKindCode(p.Kind)
		r.write(OpPresence, payload)
	}
}

func presenceKindCode(kind string) uint8 {
	switch kind {
	case bus.PresenceFirstEnterSphere:
		return 1
	case bus.PresenceLastExitSphere:
		return 2
	default:
		return 0
	}
}

func (r *Reporter) write(opcode uint8, payload []byte) {
	frame := encodeFrame(opcode, payload)
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if _, err := r.port.Write(frame); err != nil {
		r.logger.Warn("serial write failed", "opcode", opcode, "error", err)
	}
}
