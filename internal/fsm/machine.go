// Package fsm is the device state machine. It owns the actuators and button
// visuals and decides how gestures and timeouts drive them.
package fsm

import (
	"math"

	"pixel-pump/internal/control"
	"pixel-pump/internal/input"
	"pixel-pump/internal/logger"
	"pixel-pump/internal/settings"
	"pixel-pump/internal/types"
	"pixel-pump/internal/ui"
)

// Rebooter restarts the controller into its firmware update mode.
type Rebooter interface {
	RebootToBootloader() error
}

// Device bundles the components the machine drives.
type Device struct {
	Motor    *control.Motor
	NC       *control.Valve
	NO       *control.Valve
	ThreeWay *control.Valve
	Renderer *ui.Renderer
	Buttons  [types.ButtonCount]*ui.Button
	Settings *settings.Store
	Rebooter Rebooter
}

type buttonEvent struct {
	id types.ButtonID
	ev input.Event
}

type Machine struct {
	Device

	logger       *logger.Logger
	state        State
	lastKind     types.StateKind
	lastModeKind types.StateKind
	powerMode    types.PowerMode
	lowPercent   int
	highPercent  int
	queue        []buttonEvent
}

func NewMachine(dev Device, l *logger.Logger) *Machine {
	if l == nil {
		l = logger.Discard()
	}
	m := &Machine{
		Device:       dev,
		logger:       l.WithTag("fsm"),
		lastModeKind: types.StateLift,
	}
	m.Motor.OnTimeout = func(mot *control.Motor) {
		m.logger.Warnf("Motor timeout in %s", m.state.Kind())
		m.state.OnMotorTimeout(mot)
	}
	return m
}

// Boot restores persisted settings and enters the saved operating mode.
func (m *Machine) Boot() {
	s := m.Settings
	m.Renderer.SetModifier(s.Brightness())
	m.lowPercent = s.LowPowerSetting()
	m.highPercent = s.HighPowerSetting()

	power := s.PowerMode()
	if power == types.PowerMax {
		// MAX is only ever held by Reverse and must not survive a power cycle.
		power = types.PowerHigh
	}
	m.SetPowerMode(power)

	kind := stateForMode(s.Mode())
	m.logger.Infof("Booting into %s (power mode %s)", kind, power)
	m.SetState(newState(m, kind))
}

func (m *Machine) Button(id types.ButtonID) *ui.Button {
	return m.Buttons[id]
}

func (m *Machine) State() State {
	return m.state
}

func (m *Machine) StateKind() types.StateKind {
	if m.state == nil {
		return ""
	}
	return m.state.Kind()
}

func (m *Machine) LastStateKind() types.StateKind {
	return m.lastKind
}

// SetState runs the outgoing exit hook, then the incoming enter hook, even
// when both are the same kind.
func (m *Machine) SetState(next State) {
	prev := m.state
	if prev != nil {
		m.lastKind = prev.Kind()
		if isOperatingState(prev.Kind()) {
			m.lastModeKind = prev.Kind()
		}
		m.logger.Infof("Transition %s -> %s", prev.Kind(), next.Kind())
		prev.OnExit(next)
	}
	m.state = next
	next.OnEnter(prev)
}

// SetLastState switches to a fresh instance of the previously active kind.
func (m *Machine) SetLastState() {
	if m.lastKind == "" {
		m.logger.Warnf("No previous state to return to from %s", m.StateKind())
		return
	}
	m.SetState(newState(m, m.lastKind))
}

// returnToMode switches to the most recent Lift or Drop state.
func (m *Machine) returnToMode() {
	m.SetState(newState(m, m.lastModeKind))
}

func (m *Machine) PowerMode() types.PowerMode {
	return m.powerMode
}

// SetPowerMode selects the duty preset, updates the low/high indicators and
// persists the choice.
func (m *Machine) SetPowerMode(p types.PowerMode) {
	m.powerMode = p
	if err := m.Settings.SetPowerMode(p, true); err != nil {
		m.logger.Errorf("Failed to persist power mode: %v", err)
	}
	if p == types.PowerHigh {
		m.Button(types.ButtonHigh).Set(types.ColorBlue, types.BrightnessDefault)
		m.Button(types.ButtonLow).Clear()
	} else {
		m.Button(types.ButtonLow).Set(types.ColorBlue, types.BrightnessDefault)
		m.Button(types.ButtonHigh).Clear()
	}
}

// DutyForPercent converts a power setting percentage to a motor duty.
func DutyForPercent(pct int) uint8 {
	d := math.Round(float64(pct) * 2.55)
	if d < 0 {
		return 0
	}
	if d > 255 {
		return 255
	}
	return uint8(d)
}

func (m *Machine) LowPercent() int  { return m.lowPercent }
func (m *Machine) HighPercent() int { return m.highPercent }

// TargetDuty is the duty the motor should run at in the current power mode.
func (m *Machine) TargetDuty() uint8 {
	switch m.powerMode {
	case types.PowerLow:
		return DutyForPercent(m.lowPercent)
	case types.PowerHigh:
		return DutyForPercent(m.highPercent)
	}
	return 255
}

// QueueButton records the events of one button for the next Tick.
func (m *Machine) QueueButton(id types.ButtonID, ev input.Event) {
	if ev == 0 {
		return
	}
	m.queue = append(m.queue, buttonEvent{id, ev})
}

// Tick dispatches queued button events, updates the motor duty and runs the
// active state's periodic behavior.
func (m *Machine) Tick(now int64) {
	for _, be := range m.queue {
		for _, flag := range input.DispatchOrder {
			if !be.ev.Has(flag) {
				continue
			}
			if flag != input.Hold {
				m.logger.Debugf("%s %s in %s", be.id, flag, m.state.Kind())
			}
			routeGesture(m.state, be.id, flag)
			m.state.OnButtonEvent(be.id, flag)
		}
	}
	m.queue = m.queue[:0]

	m.Motor.SetPWM(m.TargetDuty())
	m.state.Tick(now)
}

// SelectMode switches the operating mode the way the command channel does:
// Drop is entered without toggling its paused state.
func (m *Machine) SelectMode(mode types.Mode) {
	switch mode {
	case types.ModeLift:
		m.state.ToLift()
	case types.ModeDrop:
		m.state.ToDrop(false)
	case types.ModeReverse:
		m.state.ToReverse()
	}
}

// SetBrightness persists a new global brightness and applies it.
func (m *Machine) SetBrightness(b float64) error {
	err := m.Settings.SetBrightness(b, true)
	m.Renderer.SetModifier(m.Settings.Brightness())
	return err
}

func (m *Machine) SetLowPowerSetting(pct int) error {
	err := m.Settings.SetLowPowerSetting(pct, true)
	m.lowPercent = m.Settings.LowPowerSetting()
	return err
}

func (m *Machine) SetHighPowerSetting(pct int) error {
	err := m.Settings.SetHighPowerSetting(pct, true)
	m.highPercent = m.Settings.HighPowerSetting()
	return err
}

// EnterScreenSaver starts the idle animation from Lift or Drop.
func (m *Machine) EnterScreenSaver() bool {
	if !isOperatingState(m.StateKind()) {
		return false
	}
	m.SetState(newState(m, types.StateScreenSaver))
	return true
}

func (m *Machine) setMode(mode types.Mode) {
	if err := m.Settings.SetMode(mode, true); err != nil {
		m.logger.Errorf("Failed to persist mode: %v", err)
	}
}

func (m *Machine) pulseTrigger() {
	m.Button(types.ButtonTrigger).Pulsate(types.ColorNone, types.BrightnessDefault, types.ColorGreen, types.BrightnessDefault)
}

func (m *Machine) clearTrigger() {
	t := m.Button(types.ButtonTrigger)
	t.StopPulsating()
	t.Clear()
}

// vent opens the normally closed valve and closes it again after 500ms.
func (m *Machine) vent() {
	m.NC.Activate(0)
	m.NC.Deactivate(500)
}
