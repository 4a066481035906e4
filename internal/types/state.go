package types

// StateKind names a device state. The string form is what gets published.
type StateKind string

const (
	StateLift               StateKind = "lift"
	StateDrop               StateKind = "drop"
	StateReverse            StateKind = "reverse"
	StateBrightnessSettings StateKind = "brightness-settings"
	StateLowPowerSettings   StateKind = "low-power-settings"
	StateHighPowerSettings  StateKind = "high-power-settings"
	StateBootloader         StateKind = "bootloader"
	StateScreenSaver        StateKind = "screensaver"
)

// Mode is the persisted operating mode index.
type Mode int

const (
	ModeLift Mode = iota
	ModeDrop
	ModeReverse
)

var modeNames = []string{"lift", "drop", "reverse"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "unknown"
	}
	return modeNames[m]
}

// ParseMode maps a command argument to a Mode.
func ParseMode(s string) (Mode, bool) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), true
		}
	}
	return 0, false
}

// PowerMode selects which duty preset drives the motor.
type PowerMode int

const (
	PowerLow PowerMode = iota
	PowerHigh
	PowerMax
)

func (p PowerMode) String() string {
	switch p {
	case PowerLow:
		return "low"
	case PowerHigh:
		return "high"
	case PowerMax:
		return "max"
	default:
		return "unknown"
	}
}

// ParsePowerMode only accepts the user selectable modes.
func ParsePowerMode(s string) (PowerMode, bool) {
	switch s {
	case "low":
		return PowerLow, true
	case "high":
		return PowerHigh, true
	}
	return 0, false
}
