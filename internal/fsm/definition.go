package fsm

import (
	"pixel-pump/internal/input"
	"pixel-pump/internal/types"
)

// newState builds a fresh, zero-initialized state of the given kind.
func newState(m *Machine, kind types.StateKind) State {
	base := baseState{m: m}
	switch kind {
	case types.StateLift:
		return &liftState{baseState: base}
	case types.StateDrop:
		return &dropState{baseState: base}
	case types.StateReverse:
		return &reverseState{baseState: base}
	case types.StateBrightnessSettings:
		return &brightnessSettingsState{baseState: base}
	case types.StateLowPowerSettings:
		return &powerSettingsState{baseState: base, tuned: types.PowerLow}
	case types.StateHighPowerSettings:
		return &powerSettingsState{baseState: base, tuned: types.PowerHigh}
	case types.StateBootloader:
		return &bootloaderState{baseState: base}
	case types.StateScreenSaver:
		return &screenSaverState{baseState: base}
	}
	return &liftState{baseState: base}
}

// stateForMode maps a persisted operating mode to its state kind.
func stateForMode(mode types.Mode) types.StateKind {
	switch mode {
	case types.ModeDrop:
		return types.StateDrop
	case types.ModeReverse:
		return types.StateReverse
	}
	return types.StateLift
}

func isOperatingState(kind types.StateKind) bool {
	return kind == types.StateLift || kind == types.StateDrop
}

// routeGesture maps a raw button event to the state's gesture hooks.
func routeGesture(s State, id types.ButtonID, ev input.Event) {
	switch id {
	case types.ButtonLift:
		if ev == input.Activate {
			s.ToLift()
		}
		if ev == input.LongHold {
			s.ToBrightnessSettings()
		}
	case types.ButtonDrop:
		if ev == input.Activate {
			s.ToDrop(true)
		}
	case types.ButtonReverse:
		if ev == input.Activate {
			s.ToReverse()
		}
	case types.ButtonTrigger:
		if ev == input.Activate {
			s.TriggerOn()
		}
		if ev == input.Deactivate {
			s.TriggerOff()
		}
	}
}
