package fsm

import (
	"pixel-pump/internal/control"
	"pixel-pump/internal/input"
	"pixel-pump/internal/types"
)

// State is one device mode. Every hook runs on the control loop.
type State interface {
	Kind() types.StateKind

	OnEnter(prev State)
	OnExit(next State)

	ToLift()
	ToDrop(autorun bool)
	ToReverse()
	ToBrightnessSettings()
	TriggerOn()
	TriggerOff()

	OnButtonEvent(id types.ButtonID, ev input.Event)
	OnMotorTimeout(m *control.Motor)
	Tick(now int64)
}

// baseState provides the no-op hooks shared by every state.
type baseState struct {
	m *Machine
}

func (baseState) OnEnter(State)                 {}
func (baseState) OnExit(State)                  {}
func (baseState) ToLift()                       {}
func (baseState) ToDrop(bool)                   {}
func (baseState) ToReverse()                    {}
func (baseState) ToBrightnessSettings()         {}
func (baseState) TriggerOn()                    {}
func (baseState) TriggerOff()                   {}
func (baseState) OnMotorTimeout(*control.Motor) {}
func (baseState) Tick(int64)                    {}

// OnButtonEvent switches power mode on low/high release and opens the
// power tuning overlays on a long hold.
func (s baseState) OnButtonEvent(id types.ButtonID, ev input.Event) {
	switch id {
	case types.ButtonLow:
		if ev == input.Deactivate {
			s.m.SetPowerMode(types.PowerLow)
		}
		if ev == input.LongHold {
			s.m.SetState(newState(s.m, types.StateLowPowerSettings))
		}
	case types.ButtonHigh:
		if ev == input.Deactivate {
			s.m.SetPowerMode(types.PowerHigh)
		}
		if ev == input.LongHold {
			s.m.SetState(newState(s.m, types.StateHighPowerSettings))
		}
	}
}
