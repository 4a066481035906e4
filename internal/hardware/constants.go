package hardware

const (
	Consumer = "pixel-pump"

	DefaultGpioChip  = "gpiochip0"
	DefaultSPIDevice = "/dev/spidev0.0"

	// Three SPI bits per WS2812 bit at 800 kHz.
	DefaultSPISpeedHz = 2400000

	PWMSysfsRoot = "/sys/class/pwm"

	// 20 kHz
	DefaultPWMPeriodNs = 50000
)

// Input channel names. The six panel buttons use types.ButtonID names.
const (
	ChannelTriggerSecondary = "trigger_secondary"
	ChannelSecondaryPedal   = "secondary_pedal"
)

// Valve output channel names.
const (
	ValveNC       = "nc"
	ValveNO       = "no"
	ValveThreeWay = "three_way"
)

// DefaultInputMappings is the front panel and pedal wiring of the pump board.
var DefaultInputMappings = map[string]int{
	"lift":                  8,
	"drop":                  9,
	"high":                  10,
	"low":                   11,
	"reverse":               12,
	"trigger":               13,
	ChannelTriggerSecondary: 6,
	ChannelSecondaryPedal:   7,
}

// DefaultOutputMappings wires the three solenoid valves.
var DefaultOutputMappings = map[string]int{
	ValveNO:       2,
	ValveNC:       3,
	ValveThreeWay: 4,
}
