package hardware

import (
	"fmt"
	"sort"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"pixel-pump/internal/control"
	"pixel-pump/internal/logger"
	"pixel-pump/internal/ui"
)

// Options describes the board wiring.
type Options struct {
	Chip    string
	Inputs  map[string]int
	Outputs map[string]int

	PWMChip     int
	PWMChannel  int
	PWMPeriodNs int

	SPIDevice  string
	SPISpeedHz int
}

// DefaultOptions returns the stock pump board wiring.
func DefaultOptions() Options {
	inputs := make(map[string]int, len(DefaultInputMappings))
	for k, v := range DefaultInputMappings {
		inputs[k] = v
	}
	outputs := make(map[string]int, len(DefaultOutputMappings))
	for k, v := range DefaultOutputMappings {
		outputs[k] = v
	}
	return Options{
		Chip:        DefaultGpioChip,
		Inputs:      inputs,
		Outputs:     outputs,
		PWMPeriodNs: DefaultPWMPeriodNs,
		SPIDevice:   DefaultSPIDevice,
		SPISpeedHz:  DefaultSPISpeedHz,
	}
}

type LinuxHardwareIO struct {
	opts    Options
	logger  *logger.Logger
	chip    *gpiocdev.Chip
	inputs  map[string]*gpiocdev.Line
	outputs map[string]*gpiocdev.Line
	pwm     *SysfsPWM
	strip   *SPIStrip
	mu      sync.RWMutex
}

func NewLinuxHardwareIO(opts Options, l *logger.Logger) *LinuxHardwareIO {
	if l == nil {
		l = logger.Discard()
	}
	return &LinuxHardwareIO{
		opts:    opts,
		logger:  l.WithTag("hardware"),
		inputs:  make(map[string]*gpiocdev.Line),
		outputs: make(map[string]*gpiocdev.Line),
	}
}

// Initialize requests every line and opens the PWM channel and LED strip.
// On failure whatever was acquired so far is released again.
func (io *LinuxHardwareIO) Initialize() (err error) {
	io.logger.Infof("Initializing hardware IO")

	io.mu.Lock()
	defer io.mu.Unlock()
	defer func() {
		if err != nil {
			io.releaseLocked()
		}
	}()

	chip, err := gpiocdev.NewChip(io.opts.Chip, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return fmt.Errorf("failed to open GPIO chip %s: %w", io.opts.Chip, err)
	}
	io.chip = chip

	// Outputs first so the valves are driven low as early as possible.
	for _, name := range sortedKeys(io.opts.Outputs) {
		offset := io.opts.Outputs[name]
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
		if err != nil {
			return fmt.Errorf("failed to request output line %d (%s): %w", offset, name, err)
		}
		io.outputs[name] = line
		io.logger.Infof("Configured DO %s: chip=%s, line=%d", name, io.opts.Chip, offset)
	}

	for _, name := range sortedKeys(io.opts.Inputs) {
		offset := io.opts.Inputs[name]
		line, err := chip.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithPullDown)
		if err != nil {
			return fmt.Errorf("failed to request input line %d (%s): %w", offset, name, err)
		}
		io.inputs[name] = line
		io.logger.Infof("Configured DI %s: chip=%s, line=%d", name, io.opts.Chip, offset)
	}

	io.pwm = NewSysfsPWM(io.opts.PWMChip, io.opts.PWMChannel, io.opts.PWMPeriodNs)
	if err := io.pwm.Init(); err != nil {
		return fmt.Errorf("failed to initialize motor PWM: %w", err)
	}

	io.strip = NewSPIStrip(io.opts.SPIDevice, io.opts.SPISpeedHz)
	if err := io.strip.Open(); err != nil {
		return fmt.Errorf("failed to open LED strip: %w", err)
	}

	return nil
}

// ReadDigitalInput samples one input line. Touch sensors are active high.
func (io *LinuxHardwareIO) ReadDigitalInput(channel string) (bool, error) {
	io.mu.RLock()
	line, ok := io.inputs[channel]
	io.mu.RUnlock()

	if !ok {
		return false, fmt.Errorf("unknown input channel: %s", channel)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("failed to read DI %s: %w", channel, err)
	}
	return v == 1, nil
}

// HasInput reports whether a channel is wired.
func (io *LinuxHardwareIO) HasInput(channel string) bool {
	io.mu.RLock()
	defer io.mu.RUnlock()
	_, ok := io.inputs[channel]
	return ok
}

// ValveLine returns the output line of a valve.
func (io *LinuxHardwareIO) ValveLine(name string) (control.Line, error) {
	io.mu.RLock()
	defer io.mu.RUnlock()
	line, ok := io.outputs[name]
	if !ok {
		return nil, fmt.Errorf("unknown digital output channel: %s", name)
	}
	return line, nil
}

func (io *LinuxHardwareIO) MotorPWM() control.PWMSink {
	return io.pwm
}

func (io *LinuxHardwareIO) LEDStrip() ui.Strip {
	return io.strip
}

func (io *LinuxHardwareIO) Cleanup() {
	io.mu.Lock()
	defer io.mu.Unlock()

	io.logger.Infof("Cleaning up hardware resources")
	io.releaseLocked()
	io.logger.Infof("Hardware cleanup complete")
}

// releaseLocked drives the outputs low and closes everything that is open.
// It is safe to call more than once.
func (io *LinuxHardwareIO) releaseLocked() {
	if io.strip != nil {
		if err := io.strip.Close(); err != nil {
			io.logger.Warnf("Failed to close LED strip: %v", err)
		}
	}
	if io.pwm != nil {
		if err := io.pwm.Close(); err != nil {
			io.logger.Warnf("Failed to release motor PWM: %v", err)
		}
	}

	for name, line := range io.outputs {
		if err := line.SetValue(0); err != nil {
			io.logger.Warnf("Failed to release DO %s: %v", name, err)
		}
		line.Close()
		delete(io.outputs, name)
	}
	for name, line := range io.inputs {
		line.Close()
		delete(io.inputs, name)
	}
	if io.chip != nil {
		io.chip.Close()
		io.chip = nil
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
