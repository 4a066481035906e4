// Package messaging connects the pump to the outside world: Redis and MQTT
// for state and commands, and the USB serial console.
package messaging

import (
	"encoding/json"
	"strconv"
)

// StateUpdate is the externally visible pump state.
type StateUpdate struct {
	State            string  `json:"state"`
	Mode             string  `json:"mode"`
	PowerMode        string  `json:"power_mode"`
	Brightness       float64 `json:"brightness"`
	LowPowerSetting  int     `json:"low_power_setting"`
	HighPowerSetting int     `json:"high_power_setting"`
	MotorRunning     bool    `json:"motor_running"`
}

// Fields flattens the update into Redis hash fields.
func (s StateUpdate) Fields() map[string]interface{} {
	return map[string]interface{}{
		"state":              s.State,
		"mode":               s.Mode,
		"power-mode":         s.PowerMode,
		"brightness":         strconv.FormatFloat(s.Brightness, 'f', 2, 64),
		"low-power-setting":  s.LowPowerSetting,
		"high-power-setting": s.HighPowerSetting,
		"motor":              onOff(s.MotorRunning),
	}
}

func (s StateUpdate) JSON() ([]byte, error) {
	return json.Marshal(s)
}

// CommandRequest is one command line together with where its reply goes.
type CommandRequest struct {
	Line   string
	Source string
	Reply  ReplyFunc
}

// ReplyFunc delivers one reply line back to the requester.
type ReplyFunc func(line string)

// Write lets a ReplyFunc be used as an io.Writer. Each call carries one or
// more newline terminated lines.
func (f ReplyFunc) Write(p []byte) (int, error) {
	if f == nil {
		return len(p), nil
	}
	start := 0
	for i, b := range p {
		if b == '\n' {
			f(string(p[start:i]))
			start = i + 1
		}
	}
	if start < len(p) {
		f(string(p[start:]))
	}
	return len(p), nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
