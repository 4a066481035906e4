package types

// ButtonID identifies one of the six front panel buttons.
type ButtonID int

const (
	ButtonLift ButtonID = iota
	ButtonDrop
	ButtonLow
	ButtonHigh
	ButtonReverse
	ButtonTrigger

	ButtonCount = 6
)

var buttonNames = [ButtonCount]string{"lift", "drop", "low", "high", "reverse", "trigger"}

func (b ButtonID) String() string {
	if b < 0 || int(b) >= ButtonCount {
		return "unknown"
	}
	return buttonNames[b]
}

// AllButtons lists buttons in panel order.
var AllButtons = [ButtonCount]ButtonID{ButtonLift, ButtonDrop, ButtonLow, ButtonHigh, ButtonReverse, ButtonTrigger}

type Color struct {
	R, G, B uint8
}

var (
	ColorNone  = Color{0, 0, 0}
	ColorBlue  = Color{90, 183, 232}
	ColorRed   = Color{242, 31, 31}
	ColorGreen = Color{63, 242, 31}
	ColorWhite = Color{255, 255, 255}
)

const (
	BrightnessDimmer   = 0.12
	BrightnessDefault  = 0.19
	BrightnessBrighter = 0.32
)
