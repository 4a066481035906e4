package fsm

import (
	"pixel-pump/internal/input"
	"pixel-pump/internal/types"
)

const (
	bootloaderGraceMillis = 500
	screenSaverStepMillis = 50
	screenSaverSteps      = 10
)

// ===== Bootloader =====

// bootloaderState is terminal: it lights every button white and hands over
// to the firmware updater once the animation has settled.
type bootloaderState struct {
	baseState
	enteredAt int64
	started   bool
	rebooted  bool
}

func (s *bootloaderState) Kind() types.StateKind { return types.StateBootloader }

func (s *bootloaderState) OnEnter(State) {
	for _, id := range types.AllButtons {
		s.m.Button(id).Set(types.ColorWhite, types.BrightnessDefault)
	}
}

func (s *bootloaderState) OnButtonEvent(types.ButtonID, input.Event) {}

func (s *bootloaderState) Tick(now int64) {
	if !s.started {
		s.started = true
		s.enteredAt = now
	}
	if s.rebooted || now-s.enteredAt <= bootloaderGraceMillis {
		return
	}
	s.rebooted = true
	s.m.logger.Infof("Rebooting into bootloader")
	if s.m.Rebooter == nil {
		s.m.logger.Errorf("No bootloader reboot configured")
		return
	}
	if err := s.m.Rebooter.RebootToBootloader(); err != nil {
		s.m.logger.Errorf("Failed to reboot into bootloader: %v", err)
	}
}

// ===== Screen saver =====

// screenSaverState walks a dim blue light across the buttons until any
// button is touched.
type screenSaverState struct {
	baseState
	lastStepAt int64
	step       int
}

func (s *screenSaverState) Kind() types.StateKind { return types.StateScreenSaver }

func (s *screenSaverState) OnEnter(State) {
	for _, id := range types.AllButtons {
		b := s.m.Button(id)
		b.StopPulsating()
		b.Clear()
	}
}

func (s *screenSaverState) OnExit(State) {
	for _, id := range types.AllButtons {
		s.m.Button(id).Clear()
	}
	s.m.SetPowerMode(s.m.PowerMode())
}

func (s *screenSaverState) OnButtonEvent(types.ButtonID, input.Event) {
	s.m.SetLastState()
}

func (s *screenSaverState) Tick(now int64) {
	if now-s.lastStepAt <= screenSaverStepMillis {
		return
	}
	s.lastStepAt = now
	s.step++
	if s.step >= screenSaverSteps {
		s.step = 0
	}
	if s.step < types.ButtonCount {
		s.m.Button(types.AllButtons[s.step]).Set(types.ColorBlue, types.BrightnessDimmer)
		return
	}
	s.m.Button(types.AllButtons[s.step-types.ButtonCount]).Clear()
}
