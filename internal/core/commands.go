package core

import (
	"fmt"

	"pixel-pump/internal/command"
	"pixel-pump/internal/types"
)

// PumpSystem is the command target for every transport. All of these run
// on the control loop goroutine.
var _ command.Target = (*PumpSystem)(nil)

func (s *PumpSystem) Restart() {
	s.logger.Infof("Restart requested")
	s.restart = true
}

func (s *PumpSystem) Reboot() {
	s.logger.Infof("Rebooting host")
	if err := s.rebootHost(); err != nil {
		s.logger.Errorf("Failed to reboot: %v", err)
	}
}

func (s *PumpSystem) DumpSettings() ([]byte, error) {
	return s.store.Dump()
}

func (s *PumpSystem) LoadSettings(doc []byte) error {
	return s.store.Load(doc)
}

func (s *PumpSystem) ResetSettings() error {
	return s.store.Reset()
}

func (s *PumpSystem) SetBrightness(b float64) error {
	return s.machine.SetBrightness(b)
}

func (s *PumpSystem) SelectMode(m types.Mode) {
	s.machine.SelectMode(m)
}

func (s *PumpSystem) SetPowerMode(p types.PowerMode) {
	s.machine.SetPowerMode(p)
}

func (s *PumpSystem) SetLowPowerSetting(pct int) error {
	return s.machine.SetLowPowerSetting(pct)
}

func (s *PumpSystem) SetHighPowerSetting(pct int) error {
	return s.machine.SetHighPowerSetting(pct)
}

func (s *PumpSystem) SetPedalKey(slot command.PedalSlot, code uint8) error {
	switch slot {
	case command.PedalKey:
		return s.store.SetSecondaryPedalKey(code, true)
	case command.PedalKeyModifier:
		return s.store.SetSecondaryPedalKeyModifier(code, true)
	case command.PedalLongKey:
		return s.store.SetSecondaryPedalLongKey(code, true)
	case command.PedalLongKeyModifier:
		return s.store.SetSecondaryPedalLongKeyModifier(code, true)
	}
	return fmt.Errorf("unknown pedal slot %v", slot)
}
