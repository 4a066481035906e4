package fsm

import (
	"pixel-pump/internal/control"
	"pixel-pump/internal/input"
	"pixel-pump/internal/settings"
	"pixel-pump/internal/types"
)

const (
	brightnessStep   = 0.05
	powerSettingStep = 5
)

// ===== Brightness settings =====

type brightnessSettingsState struct {
	baseState
	oldModifier     float64
	currentModifier float64
}

func (s *brightnessSettingsState) Kind() types.StateKind { return types.StateBrightnessSettings }

func (s *brightnessSettingsState) OnEnter(State) {
	s.oldModifier = s.m.Renderer.Modifier()
	s.currentModifier = s.oldModifier
	s.m.Button(types.ButtonTrigger).Set(types.ColorGreen, types.BrightnessDefault)
	s.m.Button(types.ButtonReverse).Set(types.ColorRed, types.BrightnessDefault)
	s.m.Button(types.ButtonLow).Set(types.ColorBlue, types.BrightnessDefault)
	s.m.Button(types.ButtonHigh).Set(types.ColorBlue, types.BrightnessDefault)
}

func (s *brightnessSettingsState) OnExit(State) {
	s.m.Button(types.ButtonTrigger).Clear()
	s.m.Button(types.ButtonReverse).Clear()
	s.m.SetPowerMode(s.m.PowerMode())
}

// OnButtonEvent nudges the modifier on release. Each direction only clamps
// at its own bound.
func (s *brightnessSettingsState) OnButtonEvent(id types.ButtonID, ev input.Event) {
	switch {
	case id == types.ButtonLow && ev == input.Deactivate:
		s.currentModifier -= brightnessStep
		if s.currentModifier < settings.MinBrightness {
			s.currentModifier = settings.MinBrightness
		}
		s.m.Renderer.SetModifier(s.currentModifier)
	case id == types.ButtonHigh && ev == input.Deactivate:
		s.currentModifier += brightnessStep
		if s.currentModifier > settings.MaxBrightness {
			s.currentModifier = settings.MaxBrightness
		}
		s.m.Renderer.SetModifier(s.currentModifier)
	case id == types.ButtonDrop && ev == input.LongHold:
		s.m.SetState(newState(s.m, types.StateBootloader))
	}
}

// ToReverse cancels and restores the previous brightness.
func (s *brightnessSettingsState) ToReverse() {
	s.m.Renderer.SetModifier(s.oldModifier)
	s.m.SetLastState()
}

// TriggerOff commits the new brightness.
func (s *brightnessSettingsState) TriggerOff() {
	s.m.Renderer.SetModifier(s.currentModifier)
	if err := s.m.Settings.SetBrightness(s.currentModifier, true); err != nil {
		s.m.logger.Errorf("Failed to persist brightness: %v", err)
	}
	s.m.SetLastState()
}

// ===== Power settings =====

// powerSettingsState tunes the duty preset of one power mode with the motor
// running so the change can be felt.
type powerSettingsState struct {
	baseState
	tuned        types.PowerMode
	oldPercent   int
	oldPowerMode types.PowerMode
}

func (s *powerSettingsState) Kind() types.StateKind {
	if s.tuned == types.PowerLow {
		return types.StateLowPowerSettings
	}
	return types.StateHighPowerSettings
}

func (s *powerSettingsState) percent() *int {
	if s.tuned == types.PowerLow {
		return &s.m.lowPercent
	}
	return &s.m.highPercent
}

func (s *powerSettingsState) tunedButton() types.ButtonID {
	if s.tuned == types.PowerLow {
		return types.ButtonLow
	}
	return types.ButtonHigh
}

func (s *powerSettingsState) otherButton() types.ButtonID {
	if s.tuned == types.PowerLow {
		return types.ButtonHigh
	}
	return types.ButtonLow
}

func (s *powerSettingsState) OnEnter(State) {
	s.oldPercent = *s.percent()
	s.oldPowerMode = s.m.PowerMode()
	s.m.SetPowerMode(s.tuned)
	s.m.Motor.Start()
	s.m.Button(types.ButtonTrigger).Set(types.ColorGreen, types.BrightnessDefault)
	s.m.Button(types.ButtonReverse).Set(types.ColorRed, types.BrightnessDefault)
	s.m.Button(s.tunedButton()).Pulsate(types.ColorBlue, types.BrightnessDimmer, types.ColorBlue, types.BrightnessBrighter)
	s.m.Button(s.otherButton()).Set(types.ColorBlue, types.BrightnessDimmer)
}

func (s *powerSettingsState) OnExit(State) {
	s.m.Motor.Stop()
	s.m.Button(types.ButtonTrigger).Clear()
	s.m.Button(types.ButtonReverse).Clear()
	tuned := s.m.Button(s.tunedButton())
	tuned.StopPulsating()
	tuned.Clear()
	s.m.SetPowerMode(s.oldPowerMode)
}

// OnButtonEvent nudges the preset on touch down.
func (s *powerSettingsState) OnButtonEvent(id types.ButtonID, ev input.Event) {
	if ev != input.Activate {
		return
	}
	p := s.percent()
	switch id {
	case types.ButtonLow:
		*p -= powerSettingStep
		if *p < settings.MinPowerSetting {
			*p = settings.MinPowerSetting
		}
	case types.ButtonHigh:
		*p += powerSettingStep
		if *p > settings.MaxPowerSetting {
			*p = settings.MaxPowerSetting
		}
	default:
		return
	}
	s.m.logger.Debugf("%s power setting now %d%%", s.tuned, *p)
}

// ToReverse cancels the change.
func (s *powerSettingsState) ToReverse() {
	s.cancel()
}

// TriggerOff commits the change.
func (s *powerSettingsState) TriggerOff() {
	var err error
	if s.tuned == types.PowerLow {
		err = s.m.Settings.SetLowPowerSetting(*s.percent(), true)
	} else {
		err = s.m.Settings.SetHighPowerSetting(*s.percent(), true)
	}
	if err != nil {
		s.m.logger.Errorf("Failed to persist %s power setting: %v", s.tuned, err)
	}
	s.m.SetLastState()
}

func (s *powerSettingsState) OnMotorTimeout(*control.Motor) {
	s.cancel()
}

func (s *powerSettingsState) cancel() {
	*s.percent() = s.oldPercent
	s.m.SetLastState()
}
