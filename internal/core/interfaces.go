package core

import (
	"pixel-pump/internal/control"
	"pixel-pump/internal/messaging"
	"pixel-pump/internal/ui"
)

// HardwareIO defines the hardware operations needed by PumpSystem
type HardwareIO interface {
	Initialize() error
	Cleanup()

	// Digital inputs
	ReadDigitalInput(channel string) (bool, error)
	HasInput(channel string) bool

	// Actuators
	ValveLine(name string) (control.Line, error)
	MotorPWM() control.PWMSink
	LEDStrip() ui.Strip
}

// Publisher mirrors pump state and pedal events to an external transport.
// Implementations must not block the control loop.
type Publisher interface {
	PublishState(s messaging.StateUpdate) error
	PublishButtonEvent(event string) error
	Close() error
}
