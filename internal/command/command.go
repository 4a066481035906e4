// Package command parses the colon-delimited configuration protocol spoken
// over the serial console and the Redis command list.
package command

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"pixel-pump/internal/logger"
	"pixel-pump/internal/settings"
	"pixel-pump/internal/types"
)

// Diagnostics written back to the requester.
const (
	MsgMissingArgument = "Missing argument"
	MsgInvalidArgument = "Invalid argument"
	MsgInvalidJSON     = "Invalid JSON"
)

// PedalSlot selects one of the four secondary pedal key codes.
type PedalSlot int

const (
	PedalKey PedalSlot = iota
	PedalKeyModifier
	PedalLongKey
	PedalLongKeyModifier
)

func (p PedalSlot) String() string {
	switch p {
	case PedalKey:
		return "key"
	case PedalKeyModifier:
		return "key_modifier"
	case PedalLongKey:
		return "long_key"
	case PedalLongKeyModifier:
		return "long_key_modifier"
	}
	return fmt.Sprintf("PedalSlot(%d)", int(p))
}

// Target is what commands act on. Implementations run on the control loop,
// so none of these may block.
type Target interface {
	VersionInfo() string
	// Restart ends the process so the supervisor starts it again.
	Restart()
	// Reboot restarts the whole host.
	Reboot()

	DumpSettings() ([]byte, error)
	// LoadSettings returns settings.ErrInvalidDocument for malformed JSON.
	LoadSettings(doc []byte) error
	ResetSettings() error

	SetBrightness(b float64) error
	SelectMode(m types.Mode)
	SetPowerMode(p types.PowerMode)
	SetLowPowerSetting(pct int) error
	SetHighPowerSetting(pct int) error
	SetPedalKey(slot PedalSlot, code uint8) error
}

type Handler struct {
	target Target
	logger *logger.Logger
}

func NewHandler(target Target, l *logger.Logger) *Handler {
	if l == nil {
		l = logger.Discard()
	}
	return &Handler{target: target, logger: l.WithTag("command")}
}

// Execute runs one command line. Diagnostics and query results are written
// to reply, one per line. Malformed commands change nothing.
func (h *Handler) Execute(line string, reply io.Writer) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	h.logger.Debugf("Received %q", line)

	parts := strings.Split(line, ":")
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "version":
		h.version(args, reply)
	case "reset":
		h.reset(args, reply)
	case "settings":
		h.settings(args, reply)
	default:
		h.logger.Warnf("Unknown command %q", cmd)
		writeLine(reply, "Unknown command '"+cmd+"'")
	}
}

func (h *Handler) version(args []string, reply io.Writer) {
	if !hasArgument(args, 0, reply) {
		return
	}
	if args[0] == "info" {
		writeLine(reply, h.target.VersionInfo())
	}
}

func (h *Handler) reset(args []string, reply io.Writer) {
	if !hasArgument(args, 0, reply) {
		return
	}
	switch args[0] {
	case "soft":
		h.logger.Infof("Soft reset requested")
		h.target.Restart()
	case "hard":
		h.logger.Infof("Hard reset requested")
		h.target.Reboot()
	}
}

func (h *Handler) settings(args []string, reply io.Writer) {
	if !hasArgument(args, 0, reply) {
		return
	}

	switch sub := args[0]; sub {
	case "dump":
		data, err := h.target.DumpSettings()
		if err != nil {
			h.logger.Errorf("Failed to dump settings: %v", err)
			return
		}
		writeLine(reply, string(data))

	case "persist":
		if !hasArgument(args, 1, reply) {
			return
		}
		// The document itself may contain colons.
		doc := strings.Join(args[1:], ":")
		if err := h.target.LoadSettings([]byte(doc)); err != nil {
			if errors.Is(err, settings.ErrInvalidDocument) {
				writeLine(reply, MsgInvalidJSON)
				return
			}
			h.logger.Errorf("Failed to persist settings: %v", err)
		}
		h.target.Restart()

	case "reset":
		if err := h.target.ResetSettings(); err != nil {
			h.logger.Errorf("Failed to reset settings: %v", err)
		}
		h.target.Restart()

	case "set_brightness":
		b, ok := floatArgument(args, 1, reply)
		if !ok {
			return
		}
		h.logError("brightness", h.target.SetBrightness(b))

	case "set_mode":
		if !hasArgument(args, 1, reply) {
			return
		}
		mode, ok := types.ParseMode(args[1])
		if !ok {
			writeLine(reply, MsgInvalidArgument)
			return
		}
		h.target.SelectMode(mode)

	case "set_power_mode":
		if !hasArgument(args, 1, reply) {
			return
		}
		p, ok := types.ParsePowerMode(args[1])
		if !ok {
			writeLine(reply, MsgInvalidArgument)
			return
		}
		h.target.SetPowerMode(p)

	case "set_low_power_setting", "set_high_power_setting":
		pct, ok := intArgument(args, 1, reply)
		if !ok {
			return
		}
		pct = min(max(pct, settings.MinPowerSetting), settings.MaxPowerSetting)
		if sub == "set_low_power_setting" {
			h.logError("low power setting", h.target.SetLowPowerSetting(pct))
		} else {
			h.logError("high power setting", h.target.SetHighPowerSetting(pct))
		}

	case "set_secondary_pedal_key":
		h.pedal(PedalKey, args, reply)
	case "set_secondary_pedal_key_modifier":
		h.pedal(PedalKeyModifier, args, reply)
	case "set_secondary_pedal_long_key":
		h.pedal(PedalLongKey, args, reply)
	case "set_secondary_pedal_long_key_modifier":
		h.pedal(PedalLongKeyModifier, args, reply)

	default:
		h.logger.Debugf("Ignoring settings subcommand %q", sub)
	}
}

func (h *Handler) pedal(slot PedalSlot, args []string, reply io.Writer) {
	code, ok := hexArgument(args, 1, reply)
	if !ok {
		return
	}
	h.logError("secondary pedal "+slot.String(), h.target.SetPedalKey(slot, code))
}

func (h *Handler) logError(what string, err error) {
	if err != nil {
		h.logger.Errorf("Failed to set %s: %v", what, err)
	}
}

func hasArgument(args []string, index int, reply io.Writer) bool {
	if index >= len(args) {
		writeLine(reply, MsgMissingArgument)
		return false
	}
	return true
}

func floatArgument(args []string, index int, reply io.Writer) (float64, bool) {
	if !hasArgument(args, index, reply) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(args[index]), 64)
	if err != nil || math.IsNaN(v) {
		writeLine(reply, MsgInvalidArgument)
		return 0, false
	}
	return v, true
}

func intArgument(args []string, index int, reply io.Writer) (int, bool) {
	if !hasArgument(args, index, reply) {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(args[index]))
	if err != nil {
		writeLine(reply, MsgInvalidArgument)
		return 0, false
	}
	return v, true
}

// hexArgument accepts a key code with or without a 0x prefix.
func hexArgument(args []string, index int, reply io.Writer) (uint8, bool) {
	if !hasArgument(args, index, reply) {
		return 0, false
	}
	s := strings.TrimSpace(args[index])
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		writeLine(reply, MsgInvalidArgument)
		return 0, false
	}
	return uint8(v), true
}

func writeLine(w io.Writer, s string) {
	if w == nil {
		return
	}
	fmt.Fprintln(w, s)
}
