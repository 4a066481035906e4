package ui

import (
	"fmt"

	"pixel-pump/internal/types"
)

const PixelCount = 12

// Strip is the physical LED chain a frame is pushed to.
type Strip interface {
	Write(pixels []types.Color) error
}

// Renderer is the shared frame buffer for all button LEDs.
type Renderer struct {
	pixels     [PixelCount]types.Color
	brightness [PixelCount]float64
	modifier   float64
	dirty      bool
	strip      Strip
}

func NewRenderer(strip Strip, modifier float64) *Renderer {
	return &Renderer{
		strip:    strip,
		modifier: modifier,
		dirty:    true,
	}
}

// SetPixel stores a pixel for the next flush. Out of range indices are ignored.
func (r *Renderer) SetPixel(index int, c types.Color, brightness float64) {
	if index < 0 || index >= PixelCount {
		return
	}
	r.pixels[index] = c
	r.brightness[index] = brightness
	r.dirty = true
}

func (r *Renderer) SetModifier(m float64) {
	if m != r.modifier {
		r.modifier = m
		r.dirty = true
	}
}

func (r *Renderer) Modifier() float64 {
	return r.modifier
}

func (r *Renderer) Dirty() bool {
	return r.dirty
}

// Frame returns the scaled colors that a flush would write.
func (r *Renderer) Frame() []types.Color {
	out := make([]types.Color, PixelCount)
	for i, c := range r.pixels {
		scale := r.brightness[i] * r.modifier
		out[i] = types.Color{
			R: scaleChannel(c.R, scale),
			G: scaleChannel(c.G, scale),
			B: scaleChannel(c.B, scale),
		}
	}
	return out
}

// Flush pushes the frame to the strip if anything changed since the last
// successful flush.
func (r *Renderer) Flush() error {
	if !r.dirty {
		return nil
	}
	if r.strip != nil {
		if err := r.strip.Write(r.Frame()); err != nil {
			return fmt.Errorf("failed to write LED frame: %w", err)
		}
	}
	r.dirty = false
	return nil
}

func scaleChannel(v uint8, scale float64) uint8 {
	f := float64(v) * scale
	switch {
	case f <= 0:
		return 0
	case f >= 255:
		return 255
	}
	return uint8(f)
}
