// Package core runs the pump: it owns the hardware, the state machine and
// the cooperative control loop, and bridges them to the messaging layer.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pixel-pump/internal/command"
	"pixel-pump/internal/config"
	"pixel-pump/internal/control"
	"pixel-pump/internal/fsm"
	"pixel-pump/internal/hardware"
	"pixel-pump/internal/input"
	"pixel-pump/internal/logger"
	"pixel-pump/internal/messaging"
	"pixel-pump/internal/settings"
	"pixel-pump/internal/types"
	"pixel-pump/internal/ui"
)

const commandQueueSize = 16

// ErrRestartRequested is returned by Run when a command asked for a restart.
var ErrRestartRequested = errors.New("restart requested")

type PumpSystem struct {
	cfg        *config.Config
	logger     *logger.Logger
	io         HardwareIO
	publishers []Publisher
	rebooter   fsm.Rebooter
	rebootHost func() error

	store    *settings.Store
	renderer *ui.Renderer
	machine  *fsm.Machine
	handler  *command.Handler
	sources  [types.ButtonCount]*input.Source
	pedal    *input.Source
	commands chan messaging.CommandRequest

	now   func() int64
	sleep func(time.Duration)

	lastActivity int64
	lastAnimate  int64
	lastRender   int64
	lastPublish  int64
	published    messaging.StateUpdate
	inputFaults  map[string]bool
	restart      bool
}

func NewPumpSystem(cfg *config.Config, io HardwareIO, l *logger.Logger) *PumpSystem {
	if l == nil {
		l = logger.Discard()
	}
	start := time.Now()
	return &PumpSystem{
		cfg:         cfg,
		logger:      l,
		io:          io,
		rebooter:    hardware.CommandRebooter{Argv: cfg.Bootloader.Command},
		rebootHost:  hardware.RebootHost,
		commands:    make(chan messaging.CommandRequest, commandQueueSize),
		now:         func() int64 { return time.Since(start).Milliseconds() },
		sleep:       time.Sleep,
		inputFaults: make(map[string]bool),
	}
}

// AddPublisher registers a transport that receives state and pedal events.
func (s *PumpSystem) AddPublisher(p Publisher) {
	s.publishers = append(s.publishers, p)
}

// Callbacks returns the hooks messaging clients use to hand commands to
// the control loop.
func (s *PumpSystem) Callbacks() messaging.Callbacks {
	return messaging.Callbacks{CommandCallback: s.SubmitCommand}
}

// SubmitCommand queues a command line for the next loop iteration. It is
// safe to call from any goroutine and never blocks.
func (s *PumpSystem) SubmitCommand(req messaging.CommandRequest) {
	select {
	case s.commands <- req:
	default:
		s.logger.Warnf("Command queue full, dropping %q from %s", req.Line, req.Source)
	}
}

// Start opens the hardware, restores settings and boots the state machine.
func (s *PumpSystem) Start(backend settings.Backend) error {
	s.logger.Infof("Starting pump system")

	if err := s.io.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize hardware: %w", err)
	}

	s.store = settings.Open(backend, s.logger)
	s.renderer = ui.NewRenderer(s.io.LEDStrip(), s.store.Brightness())

	nc, no, threeWay, err := s.newValves()
	if err != nil {
		s.io.Cleanup()
		return err
	}
	motor := control.NewMotor(s.io.MotorPWM(), s.now, s.logger)
	motor.TimeoutMillis = s.cfg.Motor.TimeoutMillis

	if s.cfg.BootSequence {
		s.runBootSequence([]*control.Valve{no, nc, threeWay})
	}

	s.machine = fsm.NewMachine(fsm.Device{
		Motor:    motor,
		NC:       nc,
		NO:       no,
		ThreeWay: threeWay,
		Renderer: s.renderer,
		Buttons:  ui.NewPanel(s.renderer),
		Settings: s.store,
		Rebooter: s.rebooter,
	}, s.logger)
	s.handler = command.NewHandler(s, s.logger)

	for _, id := range types.AllButtons {
		s.sources[id] = s.newSource(id.String())
	}
	if s.io.HasInput(hardware.ChannelSecondaryPedal) {
		s.pedal = s.newSource(hardware.ChannelSecondaryPedal)
	}

	s.machine.Boot()

	now := s.now()
	s.lastActivity = now
	s.publishState(now, true)

	s.logger.Infof("Pump system started in %s", s.machine.StateKind())
	return nil
}

func (s *PumpSystem) newValves() (nc, no, threeWay *control.Valve, err error) {
	if nc, err = s.newValve(hardware.ValveNC); err != nil {
		return
	}
	if no, err = s.newValve(hardware.ValveNO); err != nil {
		return
	}
	threeWay, err = s.newValve(hardware.ValveThreeWay)
	return
}

func (s *PumpSystem) newValve(name string) (*control.Valve, error) {
	line, err := s.io.ValveLine(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get valve %s: %w", name, err)
	}
	return control.NewValve(name, line, s.now, s.logger), nil
}

func (s *PumpSystem) newSource(name string) *input.Source {
	src := input.NewSource(name)
	src.LongHoldMillis = s.cfg.Input.LongHoldMillis
	src.TapMillis = s.cfg.Input.TapMillis
	return src
}

// Run drives the control loop until ctx is cancelled or a command requests
// a restart.
func (s *PumpSystem) Run(ctx context.Context) error {
	poll := time.Duration(s.cfg.Loop.PollIntervalMillis) * time.Millisecond
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	s.logger.Infof("Control loop running every %v", poll)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.step(s.now())
			if s.restart {
				return ErrRestartRequested
			}
		}
	}
}

// step is one loop iteration. Everything the loop owns is only touched here.
func (s *PumpSystem) step(now int64) {
	s.drainCommands(now)
	s.sampleInputs(now)

	m := s.machine
	m.NC.Tick(now)
	m.NO.Tick(now)
	m.ThreeWay.Tick(now)
	m.Motor.Tick(now)
	m.Tick(now)

	s.checkIdle(now)
	s.publishState(now, false)

	if now-s.lastAnimate >= int64(s.cfg.Loop.AnimationIntervalMillis) {
		for _, id := range types.AllButtons {
			m.Button(id).AnimateStep()
		}
		s.lastAnimate = now
	}
	if now-s.lastRender >= int64(s.cfg.Loop.RenderIntervalMillis) {
		if err := s.renderer.Flush(); err != nil {
			s.logger.Warnf("%v", err)
		}
		s.lastRender = now
	}
}

func (s *PumpSystem) drainCommands(now int64) {
	for {
		select {
		case req := <-s.commands:
			s.logger.Debugf("Command from %s: %s", req.Source, req.Line)
			s.handler.Execute(req.Line, req.Reply)
			s.lastActivity = now
		default:
			return
		}
	}
}

func (s *PumpSystem) sampleInputs(now int64) {
	for _, id := range types.AllButtons {
		levels := []bool{s.readInput(id.String())}
		if id == types.ButtonTrigger && s.io.HasInput(hardware.ChannelTriggerSecondary) {
			levels = append(levels, s.readInput(hardware.ChannelTriggerSecondary))
		}
		ev := s.sources[id].Update(now, levels...)
		if ev == 0 {
			continue
		}
		s.machine.QueueButton(id, ev)
		s.lastActivity = now
	}

	if s.pedal == nil {
		return
	}
	ev := s.pedal.Update(now, s.readInput(hardware.ChannelSecondaryPedal))
	modifier, key, longModifier, longKey := s.store.PedalKeys()
	if ev.Has(input.Tapped) {
		s.publishButtonEvent(fmt.Sprintf("secondary-pedal:tap:0x%02x:0x%02x", modifier, key))
	}
	if ev.Has(input.LongHold) {
		s.publishButtonEvent(fmt.Sprintf("secondary-pedal:long:0x%02x:0x%02x", longModifier, longKey))
	}
}

// readInput treats a failed read as released and logs once per fault.
func (s *PumpSystem) readInput(channel string) bool {
	value, err := s.io.ReadDigitalInput(channel)
	if err != nil {
		if !s.inputFaults[channel] {
			s.logger.Warnf("Failed to read %s: %v", channel, err)
			s.inputFaults[channel] = true
		}
		return false
	}
	if s.inputFaults[channel] {
		s.logger.Infof("Input %s recovered", channel)
		delete(s.inputFaults, channel)
	}
	return value
}

// checkIdle starts the screen saver once nothing happened for the
// configured timeout. A running motor counts as activity.
func (s *PumpSystem) checkIdle(now int64) {
	timeout := int64(s.cfg.Loop.ScreenSaverTimeoutMillis)
	if timeout == 0 {
		return
	}
	if s.machine.Motor.Running() {
		s.lastActivity = now
		return
	}
	if now-s.lastActivity >= timeout && s.machine.EnterScreenSaver() {
		s.logger.Infof("Idle for %dms, starting screen saver", timeout)
	}
}

func (s *PumpSystem) stateUpdate() messaging.StateUpdate {
	return messaging.StateUpdate{
		State:            string(s.machine.StateKind()),
		Mode:             s.store.Mode().String(),
		PowerMode:        s.machine.PowerMode().String(),
		Brightness:       s.store.Brightness(),
		LowPowerSetting:  s.machine.LowPercent(),
		HighPowerSetting: s.machine.HighPercent(),
		MotorRunning:     s.machine.Motor.Running(),
	}
}

// publishState sends the state when it changed, or as a heartbeat once the
// publish interval has passed.
func (s *PumpSystem) publishState(now int64, force bool) {
	if len(s.publishers) == 0 {
		return
	}
	u := s.stateUpdate()
	interval := int64(s.cfg.Loop.StatePublishIntervalMillis)
	if !force && u == s.published && (interval == 0 || now-s.lastPublish < interval) {
		return
	}
	for _, p := range s.publishers {
		if err := p.PublishState(u); err != nil {
			s.logger.Warnf("Failed to publish state: %v", err)
		}
	}
	s.published = u
	s.lastPublish = now
}

func (s *PumpSystem) publishButtonEvent(event string) {
	s.logger.Debugf("Button event %s", event)
	for _, p := range s.publishers {
		if err := p.PublishButtonEvent(event); err != nil {
			s.logger.Warnf("Failed to publish button event: %v", err)
		}
	}
}

// Machine exposes the state machine, mainly for diagnostics.
func (s *PumpSystem) Machine() *fsm.Machine {
	return s.machine
}

func (s *PumpSystem) Shutdown() {
	s.logger.Infof("Shutting down pump system")
	if s.machine != nil {
		s.machine.Motor.Stop()
		s.machine.Motor.Tick(s.now())
		for _, v := range []*control.Valve{s.machine.NC, s.machine.NO, s.machine.ThreeWay} {
			v.Deactivate(0)
		}
	}
	for _, p := range s.publishers {
		if err := p.Close(); err != nil {
			s.logger.Warnf("Failed to close publisher: %v", err)
		}
	}
	if s.io != nil {
		s.io.Cleanup()
	}
}
