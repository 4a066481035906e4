package fsm

import (
	"pixel-pump/internal/control"
	"pixel-pump/internal/input"
	"pixel-pump/internal/types"
)

// ===== Lift =====

// liftState holds the part against the nozzle while the trigger is down.
type liftState struct {
	baseState
}

func (s *liftState) Kind() types.StateKind { return types.StateLift }

func (s *liftState) OnEnter(State) {
	s.m.setMode(types.ModeLift)
	s.m.Button(types.ButtonLift).Set(types.ColorBlue, types.BrightnessDefault)
	s.m.Motor.Stop()
	s.m.NC.Deactivate(0)
	s.m.pulseTrigger()
}

func (s *liftState) OnExit(State) {
	s.m.Button(types.ButtonLift).Clear()
	s.m.NC.Deactivate(0)
	s.m.clearTrigger()
}

func (s *liftState) ToDrop(bool) {
	s.m.SetState(newState(s.m, types.StateDrop))
}

func (s *liftState) ToReverse() {
	s.m.SetState(newState(s.m, types.StateReverse))
}

func (s *liftState) ToBrightnessSettings() {
	s.m.SetState(newState(s.m, types.StateBrightnessSettings))
}

func (s *liftState) TriggerOn() {
	t := s.m.Button(types.ButtonTrigger)
	t.StopPulsating()
	t.Set(types.ColorGreen, types.BrightnessDefault)
	s.m.Motor.Start()
	s.m.NC.Deactivate(0)
}

func (s *liftState) TriggerOff() {
	s.release()
}

func (s *liftState) OnMotorTimeout(*control.Motor) {
	s.release()
}

func (s *liftState) release() {
	s.m.pulseTrigger()
	s.m.Motor.Stop()
	s.m.vent()
}

// ===== Drop =====

// dropState keeps suction on until the trigger toggles it off.
type dropState struct {
	baseState
	paused bool
}

func (s *dropState) Kind() types.StateKind { return types.StateDrop }

func (s *dropState) OnEnter(State) {
	s.m.setMode(types.ModeDrop)
	s.m.Button(types.ButtonDrop).Set(types.ColorBlue, types.BrightnessDefault)
	s.setPaused()
}

func (s *dropState) OnExit(State) {
	s.m.clearTrigger()
	s.m.Button(types.ButtonDrop).Clear()
	s.m.Motor.Stop()
}

func (s *dropState) Paused() bool {
	return s.paused
}

func (s *dropState) setPaused() {
	s.paused = true
	s.m.Motor.Stop()
	s.m.pulseTrigger()
}

func (s *dropState) setRunning() {
	s.paused = false
	s.m.Motor.Start()
	t := s.m.Button(types.ButtonTrigger)
	t.StopPulsating()
	t.Set(types.ColorGreen, types.BrightnessDefault)
}

func (s *dropState) ToLift() {
	s.m.SetState(newState(s.m, types.StateLift))
}

func (s *dropState) ToDrop(autorun bool) {
	if !autorun {
		return
	}
	if s.paused {
		s.setRunning()
		return
	}
	s.setPaused()
	s.m.vent()
}

func (s *dropState) ToReverse() {
	s.m.SetState(newState(s.m, types.StateReverse))
}

func (s *dropState) ToBrightnessSettings() {
	s.m.SetState(newState(s.m, types.StateBrightnessSettings))
}

func (s *dropState) TriggerOn() {
	if s.paused {
		s.setRunning()
		return
	}
	s.m.Motor.Stop()
	s.m.vent()
	s.m.pulseTrigger()
}

func (s *dropState) TriggerOff() {
	s.setRunning()
	s.m.NC.Deactivate(0)
}

func (s *dropState) OnMotorTimeout(*control.Motor) {
	s.setPaused()
	s.m.vent()
}

// ===== Reverse =====

// reverseState blows the part off at full power.
type reverseState struct {
	baseState
	oldPowerMode types.PowerMode
}

func (s *reverseState) Kind() types.StateKind { return types.StateReverse }

func (s *reverseState) OnEnter(State) {
	s.m.setMode(types.ModeReverse)
	s.m.Button(types.ButtonReverse).Set(types.ColorRed, types.BrightnessDefault)
	s.m.pulseTrigger()
	s.oldPowerMode = s.m.PowerMode()
	s.m.SetPowerMode(types.PowerMax)
	s.m.Button(types.ButtonLow).Clear()
	s.m.Button(types.ButtonHigh).Clear()
}

func (s *reverseState) OnExit(State) {
	s.m.Button(types.ButtonReverse).Clear()
	s.m.clearTrigger()
	s.m.NO.Deactivate(0)
	s.m.NC.Deactivate(0)
	s.m.ThreeWay.Deactivate(0)
	s.m.SetPowerMode(s.oldPowerMode)
}

func (s *reverseState) ToLift() {
	s.m.SetState(newState(s.m, types.StateLift))
}

func (s *reverseState) ToDrop(bool) {
	s.m.SetState(newState(s.m, types.StateDrop))
}

// ToReverse on a second tap leaves Reverse for the last Lift or Drop mode.
func (s *reverseState) ToReverse() {
	s.m.Button(types.ButtonReverse).Clear()
	s.m.returnToMode()
}

func (s *reverseState) ToBrightnessSettings() {
	s.m.SetState(newState(s.m, types.StateBrightnessSettings))
}

// TriggerOn stages the valves open to avoid a pressure shock.
func (s *reverseState) TriggerOn() {
	s.m.Motor.Start()
	t := s.m.Button(types.ButtonTrigger)
	t.StopPulsating()
	t.Set(types.ColorGreen, types.BrightnessDefault)

	s.m.ThreeWay.Activate(0)
	s.m.NC.Activate(100)
	s.m.NO.Activate(200)
}

func (s *reverseState) TriggerOff() {
	s.closeValves()
}

func (s *reverseState) OnMotorTimeout(*control.Motor) {
	s.closeValves()
}

func (s *reverseState) closeValves() {
	s.m.Motor.Stop()
	s.m.pulseTrigger()

	s.m.NO.Deactivate(0)
	s.m.NC.Deactivate(100)
	s.m.ThreeWay.Deactivate(200)
}

func (s *reverseState) OnButtonEvent(types.ButtonID, input.Event) {}
