// Package control drives the pump's actuators: solenoid valves and the motor.
package control

import (
	"pixel-pump/internal/logger"
)

// Line is a single digital output. *gpiocdev.Line satisfies it.
type Line interface {
	SetValue(value int) error
}

// Valve is a binary output with optional deferred activate/deactivate.
// Deadlines are absolute milliseconds; zero means unset.
type Valve struct {
	Name string

	line         Line
	logger       *logger.Logger
	now          func() int64
	active       bool
	activateAt   int64
	deactivateAt int64
}

func NewValve(name string, line Line, now func() int64, l *logger.Logger) *Valve {
	if l == nil {
		l = logger.Discard()
	}
	return &Valve{
		Name:   name,
		line:   line,
		logger: l.WithTag("valve:" + name),
		now:    now,
	}
}

// Activate opens the valve now, or after delayMillis when positive. Either
// way a pending deactivation is dropped.
func (v *Valve) Activate(delayMillis int64) {
	if delayMillis > 0 {
		v.deactivateAt = 0
		v.activateAt = v.now() + delayMillis
		v.logger.Debugf("activate scheduled at %d", v.activateAt)
		return
	}
	v.activateAt = 0
	v.deactivateAt = 0
	v.write(true)
}

// Deactivate closes the valve now, or after delayMillis when positive. Either
// way a pending activation is dropped.
func (v *Valve) Deactivate(delayMillis int64) {
	if delayMillis > 0 {
		v.activateAt = 0
		v.deactivateAt = v.now() + delayMillis
		v.logger.Debugf("deactivate scheduled at %d", v.deactivateAt)
		return
	}
	v.activateAt = 0
	v.deactivateAt = 0
	v.write(false)
}

// Tick applies any deadline that has passed. Deactivation wins when both
// are due.
func (v *Valve) Tick(now int64) {
	if v.deactivateAt > 0 && now >= v.deactivateAt {
		v.Deactivate(0)
		return
	}
	if v.activateAt > 0 && now >= v.activateAt {
		v.Activate(0)
	}
}

func (v *Valve) Active() bool {
	return v.active
}

// Pending reports the scheduled deadlines.
func (v *Valve) Pending() (activateAt, deactivateAt int64) {
	return v.activateAt, v.deactivateAt
}

func (v *Valve) write(active bool) {
	v.active = active
	if v.line == nil {
		return
	}
	val := 0
	if active {
		val = 1
	}
	if err := v.line.SetValue(val); err != nil {
		v.logger.Errorf("Failed to set output to %d: %v", val, err)
	}
}
