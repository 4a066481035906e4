package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"pixel-pump/internal/hardware"
	"pixel-pump/internal/input"
	"pixel-pump/internal/logger"
	"pixel-pump/internal/types"
)

type Config struct {
	LogLevel     string           `mapstructure:"log_level"`
	GPIO         GPIOConfig       `mapstructure:"gpio"`
	Motor        MotorConfig      `mapstructure:"motor"`
	LEDs         LEDConfig        `mapstructure:"leds"`
	Loop         LoopConfig       `mapstructure:"loop"`
	Input        InputConfig      `mapstructure:"input"`
	Settings     SettingsConfig   `mapstructure:"settings"`
	Redis        RedisConfig      `mapstructure:"redis"`
	MQTT         MQTTConfig       `mapstructure:"mqtt"`
	Serial       SerialConfig     `mapstructure:"serial"`
	BootSequence bool             `mapstructure:"boot_sequence"`
	Bootloader   BootloaderConfig `mapstructure:"bootloader"`
}

type GPIOConfig struct {
	Chip    string
	Buttons map[string]int

	// Negative offsets disable the optional inputs.
	TriggerSecondary int         `mapstructure:"trigger_secondary"`
	SecondaryPedal   int         `mapstructure:"secondary_pedal"`
	Valves           ValveConfig `mapstructure:"valves"`
}

type ValveConfig struct {
	NC       int `mapstructure:"nc"`
	NO       int `mapstructure:"no"`
	ThreeWay int `mapstructure:"three_way"`
}

type MotorConfig struct {
	PWMChip       int   `mapstructure:"pwm_chip"`
	PWMChannel    int   `mapstructure:"pwm_channel"`
	PeriodNs      int   `mapstructure:"period_ns"`
	TimeoutMillis int64 `mapstructure:"timeout_millis"`
}

type LEDConfig struct {
	SPIDevice string `mapstructure:"spi_device"`
	SpeedHz   int    `mapstructure:"speed_hz"`
}

type LoopConfig struct {
	PollIntervalMillis         uint32 `mapstructure:"poll_interval_millis"`
	AnimationIntervalMillis    uint32 `mapstructure:"animation_interval_millis"`
	RenderIntervalMillis       uint32 `mapstructure:"render_interval_millis"`
	ScreenSaverTimeoutMillis   uint32 `mapstructure:"screensaver_timeout_millis"`
	StatePublishIntervalMillis uint32 `mapstructure:"state_publish_interval_millis"`
}

type InputConfig struct {
	LongHoldMillis int64 `mapstructure:"long_hold_millis"`
	TapMillis      int64 `mapstructure:"tap_millis"`
}

type SettingsConfig struct {
	Backend string
	File    string
}

type RedisConfig struct {
	Enabled bool
	Host    string
	Port    int
}

type MQTTConfig struct {
	Enabled   bool
	Broker    string
	ClientID  string `mapstructure:"client_id"`
	BaseTopic string `mapstructure:"base_topic"`
}

type SerialConfig struct {
	Device string
}

type BootloaderConfig struct {
	Command []string
}

const (
	SettingsBackendFile  = "file"
	SettingsBackendRedis = "redis"

	minRenderIntervalMillis = 16
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("gpio.chip", hardware.DefaultGpioChip)
	for _, id := range types.AllButtons {
		v.SetDefault("gpio.buttons."+id.String(), hardware.DefaultInputMappings[id.String()])
	}
	v.SetDefault("gpio.trigger_secondary", hardware.DefaultInputMappings[hardware.ChannelTriggerSecondary])
	v.SetDefault("gpio.secondary_pedal", hardware.DefaultInputMappings[hardware.ChannelSecondaryPedal])
	v.SetDefault("gpio.valves.nc", hardware.DefaultOutputMappings[hardware.ValveNC])
	v.SetDefault("gpio.valves.no", hardware.DefaultOutputMappings[hardware.ValveNO])
	v.SetDefault("gpio.valves.three_way", hardware.DefaultOutputMappings[hardware.ValveThreeWay])

	v.SetDefault("motor.pwm_chip", 0)
	v.SetDefault("motor.pwm_channel", 0)
	v.SetDefault("motor.period_ns", hardware.DefaultPWMPeriodNs)
	v.SetDefault("motor.timeout_millis", 30000)

	v.SetDefault("leds.spi_device", hardware.DefaultSPIDevice)
	v.SetDefault("leds.speed_hz", hardware.DefaultSPISpeedHz)

	v.SetDefault("loop.poll_interval_millis", 5)
	v.SetDefault("loop.animation_interval_millis", 33)
	v.SetDefault("loop.render_interval_millis", 33)
	v.SetDefault("loop.screensaver_timeout_millis", 0)
	v.SetDefault("loop.state_publish_interval_millis", 1000)

	v.SetDefault("input.long_hold_millis", input.DefaultLongHoldMillis)
	v.SetDefault("input.tap_millis", input.DefaultTapMillis)

	v.SetDefault("settings.backend", SettingsBackendFile)
	v.SetDefault("settings.file", "/var/lib/pixel-pump/settings.json")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://127.0.0.1:1883")
	v.SetDefault("mqtt.client_id", "pixel-pump")
	v.SetDefault("mqtt.base_topic", "pixel-pump")

	v.SetDefault("serial.device", "")
	v.SetDefault("boot_sequence", true)
	v.SetDefault("bootloader.command", []string{})
}

// Load reads configuration from defaults, the optional YAML file and
// PIXELPUMP_* environment variables, in increasing precedence. An empty
// path falls back to CONFIG_FILE.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("pixelpump")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config param log_level: %w", err)
	}
	if c.Loop.PollIntervalMillis == 0 {
		return errors.New("config param loop.poll_interval_millis should be > 0")
	}
	if c.Loop.RenderIntervalMillis < minRenderIntervalMillis {
		return fmt.Errorf("config param loop.render_interval_millis should be >= %d", minRenderIntervalMillis)
	}
	if c.Loop.AnimationIntervalMillis == 0 {
		return errors.New("config param loop.animation_interval_millis should be > 0")
	}
	if c.Input.TapMillis <= input.TapFloorMillis {
		return fmt.Errorf("config param input.tap_millis should be > %d", input.TapFloorMillis)
	}
	if c.Input.LongHoldMillis <= c.Input.TapMillis {
		return errors.New("config param input.long_hold_millis must be > input.tap_millis")
	}
	if c.Motor.TimeoutMillis <= 0 {
		return errors.New("config param motor.timeout_millis should be > 0")
	}
	switch c.Settings.Backend {
	case SettingsBackendFile:
		if c.Settings.File == "" {
			return errors.New("config param settings.file is required for the file backend")
		}
	case SettingsBackendRedis:
		if !c.Redis.Enabled {
			return errors.New("settings.backend redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("unknown settings.backend %q", c.Settings.Backend)
	}
	for _, id := range types.AllButtons {
		if _, ok := c.GPIO.Buttons[id.String()]; !ok {
			return fmt.Errorf("config param gpio.buttons.%s is missing", id)
		}
	}
	if c.MQTT.Enabled && c.MQTT.BaseTopic == "" {
		return errors.New("config param mqtt.base_topic must not be empty")
	}
	return nil
}

// HardwareOptions maps the wiring sections onto the hardware layer.
func (c *Config) HardwareOptions() hardware.Options {
	opts := hardware.Options{
		Chip:        c.GPIO.Chip,
		Inputs:      make(map[string]int),
		Outputs:     make(map[string]int),
		PWMChip:     c.Motor.PWMChip,
		PWMChannel:  c.Motor.PWMChannel,
		PWMPeriodNs: c.Motor.PeriodNs,
		SPIDevice:   c.LEDs.SPIDevice,
		SPISpeedHz:  c.LEDs.SpeedHz,
	}
	for _, id := range types.AllButtons {
		opts.Inputs[id.String()] = c.GPIO.Buttons[id.String()]
	}
	if c.GPIO.TriggerSecondary >= 0 {
		opts.Inputs[hardware.ChannelTriggerSecondary] = c.GPIO.TriggerSecondary
	}
	if c.GPIO.SecondaryPedal >= 0 {
		opts.Inputs[hardware.ChannelSecondaryPedal] = c.GPIO.SecondaryPedal
	}
	opts.Outputs[hardware.ValveNC] = c.GPIO.Valves.NC
	opts.Outputs[hardware.ValveNO] = c.GPIO.Valves.NO
	opts.Outputs[hardware.ValveThreeWay] = c.GPIO.Valves.ThreeWay
	return opts
}
