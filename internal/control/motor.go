package control

import (
	"pixel-pump/internal/logger"
)

const DefaultMotorTimeoutMillis = 30000

// PWMSink takes the squared duty, 0..65025.
type PWMSink interface {
	SetDuty(duty uint16) error
}

// Motor is the pump motor with a safety auto-shutoff.
type Motor struct {
	TimeoutMillis int64
	OnTimeout     func(*Motor)

	sink        PWMSink
	logger      *logger.Logger
	now         func() int64
	duty        uint8
	running     bool
	activatedAt int64
	lastOutput  uint16
	wrote       bool
}

func NewMotor(sink PWMSink, now func() int64, l *logger.Logger) *Motor {
	if l == nil {
		l = logger.Discard()
	}
	return &Motor{
		TimeoutMillis: DefaultMotorTimeoutMillis,
		sink:          sink,
		logger:        l.WithTag("motor"),
		now:           now,
	}
}

func (m *Motor) Start() {
	m.running = true
	m.activatedAt = m.now()
}

func (m *Motor) StartWithDuty(duty uint8) {
	m.duty = duty
	m.Start()
}

func (m *Motor) Stop() {
	m.running = false
}

// SetPWM changes the target duty without touching the running state.
func (m *Motor) SetPWM(duty uint8) {
	m.duty = duty
}

func (m *Motor) Duty() uint8 {
	return m.duty
}

func (m *Motor) Running() bool {
	return m.running
}

// Output is the value written to the sink for the current state.
func (m *Motor) Output() uint16 {
	if !m.running {
		return 0
	}
	return uint16(m.duty) * uint16(m.duty)
}

// Tick enforces the safety timeout and writes the output.
func (m *Motor) Tick(now int64) {
	if m.running && now-m.activatedAt > m.TimeoutMillis {
		m.logger.Warnf("Running for over %dms, stopping", m.TimeoutMillis)
		m.running = false
		if m.OnTimeout != nil {
			m.OnTimeout(m)
		}
	}

	out := m.Output()
	if m.sink == nil || (m.wrote && out == m.lastOutput) {
		return
	}
	if err := m.sink.SetDuty(out); err != nil {
		m.logger.Errorf("Failed to set duty %d: %v", out, err)
		return
	}
	m.lastOutput = out
	m.wrote = true
}
