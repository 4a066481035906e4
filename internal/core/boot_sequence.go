package core

import (
	"time"

	"pixel-pump/internal/control"
	"pixel-pump/internal/types"
	"pixel-pump/internal/ui"
)

const (
	bootRainbowSteps     = 255
	bootRainbowPeak      = 0.3
	bootRainbowStepDelay = 1200 * time.Microsecond
	bootValveOnDelay     = 120 * time.Millisecond
	bootValveOffDelay    = 80 * time.Millisecond
)

// wheel maps 0..255 onto a red, green, blue color wheel.
func wheel(pos int) types.Color {
	switch {
	case pos < 0 || pos > 255:
		return types.ColorNone
	case pos < 85:
		return types.Color{R: uint8(255 - pos*3), G: uint8(pos * 3)}
	case pos < 170:
		pos -= 85
		return types.Color{G: uint8(255 - pos*3), B: uint8(pos * 3)}
	}
	pos -= 170
	return types.Color{R: uint8(pos * 3), B: uint8(255 - pos*3)}
}

func (s *PumpSystem) rainbowFrame(step int, brightness float64) {
	for i := 0; i < ui.PixelCount; i++ {
		s.renderer.SetPixel(i, wheel((i*256/ui.PixelCount+step)&255), brightness)
	}
	if err := s.renderer.Flush(); err != nil {
		s.logger.Warnf("Boot sequence: %v", err)
	}
	s.sleep(bootRainbowStepDelay)
}

// runBootSequence fades a rainbow in and out, then clicks the valves.
// It runs before the control loop starts and blocks while it plays.
func (s *PumpSystem) runBootSequence(valves []*control.Valve) {
	s.logger.Infof("Running boot sequence")
	for i := 0; i < bootRainbowSteps; i++ {
		s.rainbowFrame(i, float64(i)/bootRainbowSteps*bootRainbowPeak)
	}
	for i := 0; i < bootRainbowSteps; i++ {
		s.rainbowFrame(i, bootRainbowPeak-float64(i)/bootRainbowSteps*bootRainbowPeak)
	}
	for i := 0; i < ui.PixelCount; i++ {
		s.renderer.SetPixel(i, types.ColorNone, 0)
	}
	if err := s.renderer.Flush(); err != nil {
		s.logger.Warnf("Boot sequence: %v", err)
	}

	for _, v := range valves {
		v.Activate(0)
		s.sleep(bootValveOnDelay)
	}
	for _, v := range valves {
		s.sleep(bootValveOffDelay)
		v.Deactivate(0)
	}
}
