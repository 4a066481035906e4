// Package ui holds the front panel visuals: per-button LED targets and the
// shared frame buffer they render into.
package ui

import (
	"math"

	"pixel-pump/internal/types"
)

const (
	DefaultLerpRate  = 0.25
	ColorMargin      = 10
	BrightnessMargin = 0.05
)

// LED is one addressable slot: a color and its own brightness.
type LED struct {
	Color      types.Color
	Brightness float64
}

var ledOff = LED{}

// PixelSetter receives LED values whenever a button's current value moves.
type PixelSetter interface {
	SetPixel(index int, c types.Color, brightness float64)
}

type pulseDirection int

const (
	pulseToward pulseDirection = iota + 1
	pulseBack
)

type pulse struct {
	from, to  LED
	direction pulseDirection
}

// Button is the visual state of one front panel button with two LEDs.
type Button struct {
	ID         types.ButtonID
	LeftIndex  int
	RightIndex int
	Rate       float64

	current [2]LED
	target  [2]LED
	pulse   *pulse
	sink    PixelSetter
}

func NewButton(id types.ButtonID, left, right int, sink PixelSetter) *Button {
	return &Button{
		ID:         id,
		LeftIndex:  left,
		RightIndex: right,
		Rate:       DefaultLerpRate,
		sink:       sink,
	}
}

// NewPanel builds the six front panel buttons. Each button owns two
// consecutive LEDs in panel order.
func NewPanel(sink PixelSetter) [types.ButtonCount]*Button {
	var panel [types.ButtonCount]*Button
	for i, id := range types.AllButtons {
		panel[i] = NewButton(id, 2*i, 2*i+1, sink)
	}
	return panel
}

// Set animates both LEDs toward c. Any active pulse is cancelled.
func (b *Button) Set(c types.Color, brightness float64) {
	b.pulse = nil
	b.setTarget(LED{c, brightness})
}

// Snap sets both LEDs to c without animating. Any active pulse is cancelled.
func (b *Button) Snap(c types.Color, brightness float64) {
	b.pulse = nil
	led := LED{c, brightness}
	b.target = [2]LED{led, led}
	if b.current != b.target {
		b.current = b.target
		b.render()
	}
}

// Clear animates both LEDs to off. Any active pulse is cancelled.
func (b *Button) Clear() {
	b.pulse = nil
	b.setTarget(ledOff)
}

// Pulsate oscillates between two endpoints, heading toward `to` first.
func (b *Button) Pulsate(from types.Color, fromBrightness float64, to types.Color, toBrightness float64) {
	b.pulse = &pulse{
		from:      LED{from, fromBrightness},
		to:        LED{to, toBrightness},
		direction: pulseToward,
	}
	b.setTarget(b.pulse.to)
}

// StopPulsating leaves the current target in place.
func (b *Button) StopPulsating() {
	b.pulse = nil
}

func (b *Button) Pulsing() bool {
	return b.pulse != nil
}

func (b *Button) Target() LED {
	return b.target[0]
}

func (b *Button) Current() LED {
	return b.current[0]
}

// AnimateStep closes Rate of the remaining distance to the target and
// flips the pulse direction once the approached endpoint is reached.
func (b *Button) AnimateStep() {
	if p := b.pulse; p != nil {
		switch p.direction {
		case pulseToward:
			b.setTarget(p.to)
			if b.reached(p.to) {
				p.direction = pulseBack
			}
		case pulseBack:
			b.setTarget(p.from)
			if b.reached(p.from) {
				p.direction = pulseToward
			}
		}
	}

	changed := false
	for i := range b.current {
		next := lerp(b.current[i], b.target[i], b.Rate)
		if next != b.current[i] {
			b.current[i] = next
			changed = true
		}
	}
	if changed {
		b.render()
	}
}

func (b *Button) setTarget(led LED) {
	b.target = [2]LED{led, led}
}

func (b *Button) reached(led LED) bool {
	cur := b.current[0]
	if absInt(int(led.Color.R)-int(cur.Color.R)) > ColorMargin ||
		absInt(int(led.Color.G)-int(cur.Color.G)) > ColorMargin ||
		absInt(int(led.Color.B)-int(cur.Color.B)) > ColorMargin {
		return false
	}
	return math.Abs(led.Brightness-cur.Brightness) <= BrightnessMargin
}

func (b *Button) render() {
	if b.sink == nil {
		return
	}
	b.sink.SetPixel(b.LeftIndex, b.current[0].Color, b.current[0].Brightness)
	b.sink.SetPixel(b.RightIndex, b.current[1].Color, b.current[1].Brightness)
}

func lerp(cur, target LED, rate float64) LED {
	return LED{
		Color: types.Color{
			R: lerpChannel(cur.Color.R, target.Color.R, rate),
			G: lerpChannel(cur.Color.G, target.Color.G, rate),
			B: lerpChannel(cur.Color.B, target.Color.B, rate),
		},
		Brightness: cur.Brightness + (target.Brightness-cur.Brightness)*rate,
	}
}

// lerpChannel truncates toward zero, so a channel can settle a few units
// short of its target.
func lerpChannel(cur, target uint8, rate float64) uint8 {
	delta := int(float64(int(target)-int(cur)) * rate)
	return uint8(int(cur) + delta)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
