package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sys/unix"

	"pixel-pump/internal/config"
	"pixel-pump/internal/core"
	"pixel-pump/internal/hardware"
	"pixel-pump/internal/logger"
	"pixel-pump/internal/messaging"
	"pixel-pump/internal/settings"
)

func main() {
	// Service log level, -1 defers to log_level from the config
	var serviceLogLevel int
	flag.IntVar(&serviceLogLevel, "log", -1, "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	configPath := flag.String("config", "", "Path to a YAML config file (default $CONFIG_FILE)")

	flag.Parse()

	// Create standard logger with appropriate format
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		// Running interactively, use timestamps
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewLogger(stdLogger, logger.LogLevelError).Fatalf("Failed to load config: %v", err)
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	if serviceLogLevel >= 0 {
		level = logger.LogLevel(serviceLogLevel)
	}
	l := logger.NewLogger(stdLogger, level)

	l.Infof("Starting pixel pump...")

	hw := hardware.NewLinuxHardwareIO(cfg.HardwareOptions(), l)
	system := core.NewPumpSystem(cfg, hw, l)

	var backend settings.Backend = settings.NewFileBackend(cfg.Settings.File)

	var redisClient *messaging.RedisClient
	if cfg.Redis.Enabled {
		redisClient = messaging.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, l, system.Callbacks())
		if err := redisClient.Connect(); err != nil {
			l.Warnf("Continuing without Redis for now: %v", err)
		}
		system.AddPublisher(redisClient)
		if cfg.Settings.Backend == config.SettingsBackendRedis {
			backend = redisClient.Settings()
		}
	}

	if cfg.MQTT.Enabled {
		mqtt := messaging.NewMQTTPublisher(messaging.MQTTOptions{
			Broker:    cfg.MQTT.Broker,
			ClientID:  cfg.MQTT.ClientID,
			BaseTopic: cfg.MQTT.BaseTopic,
		}, l, system.Callbacks())
		if err := mqtt.Connect(); err != nil {
			l.Warnf("MQTT not connected yet, retrying in background: %v", err)
		}
		system.AddPublisher(mqtt)
	}

	if err := system.Start(backend); err != nil {
		l.Fatalf("Failed to start system: %v", err)
	}

	if redisClient != nil {
		if err := redisClient.StartListening(); err != nil {
			l.Errorf("Failed to start Redis listeners: %v", err)
		}
	}

	var serial *messaging.SerialPort
	if cfg.Serial.Device != "" {
		serial = messaging.NewSerialPort(cfg.Serial.Device, l, system.Callbacks())
		if err := serial.Open(); err != nil {
			l.Warnf("Serial console disabled: %v", err)
			serial = nil
		}
	}

	l.Infof("System started successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = system.Run(ctx)
	stop()

	l.Infof("Shutting down...")
	if serial != nil {
		serial.Close()
	}
	system.Shutdown()

	if errors.Is(err, core.ErrRestartRequested) {
		restart(l)
	}
	l.Infof("Shutdown complete")
}

// restart replaces the process with a fresh copy of itself. If that fails
// the exit status lets the supervisor restart us instead.
func restart(l *logger.Logger) {
	exe, err := os.Executable()
	if err == nil {
		l.Infof("Restarting %s", exe)
		err = unix.Exec(exe, os.Args, os.Environ())
	}
	l.Errorf("Failed to restart: %v", err)
	os.Exit(1)
}
