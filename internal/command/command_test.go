package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixel-pump/internal/settings"
	"pixel-pump/internal/types"
)

type fakeTarget struct {
	restarts   int
	reboots    int
	loaded     []byte
	loadErr    error
	resets     int
	brightness []float64
	modes      []types.Mode
	power      []types.PowerMode
	low        []int
	high       []int
	pedal      map[PedalSlot]uint8
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{pedal: map[PedalSlot]uint8{}}
}

func (f *fakeTarget) VersionInfo() string { return "v1.2.0,main,abc123,2026-01-01T00:00:00Z" }
func (f *fakeTarget) Restart()            { f.restarts++ }
func (f *fakeTarget) Reboot()             { f.reboots++ }

func (f *fakeTarget) DumpSettings() ([]byte, error) {
	return json.Marshal(settings.Defaults())
}

func (f *fakeTarget) LoadSettings(doc []byte) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	if !json.Valid(doc) {
		return fmt.Errorf("%w: bad input", settings.ErrInvalidDocument)
	}
	f.loaded = doc
	return nil
}

func (f *fakeTarget) ResetSettings() error { f.resets++; return nil }

func (f *fakeTarget) SetBrightness(b float64) error {
	f.brightness = append(f.brightness, b)
	return nil
}

func (f *fakeTarget) SelectMode(m types.Mode)        { f.modes = append(f.modes, m) }
func (f *fakeTarget) SetPowerMode(p types.PowerMode) { f.power = append(f.power, p) }

func (f *fakeTarget) SetLowPowerSetting(pct int) error {
	f.low = append(f.low, pct)
	return nil
}

func (f *fakeTarget) SetHighPowerSetting(pct int) error {
	f.high = append(f.high, pct)
	return nil
}

func (f *fakeTarget) SetPedalKey(slot PedalSlot, code uint8) error {
	f.pedal[slot] = code
	return nil
}

func run(t *testing.T, target *fakeTarget, line string) string {
	t.Helper()
	var out bytes.Buffer
	NewHandler(target, nil).Execute(line, &out)
	return out.String()
}

func TestUnknownCommand(t *testing.T) {
	f := newFakeTarget()
	assert.Equal(t, "Unknown command 'blink'\n", run(t, f, "blink:fast"))
}

func TestEmptyLineIsIgnored(t *testing.T) {
	f := newFakeTarget()
	assert.Empty(t, run(t, f, "   \r\n"))
}

func TestVersionInfo(t *testing.T) {
	f := newFakeTarget()
	assert.Equal(t, "v1.2.0,main,abc123,2026-01-01T00:00:00Z\n", run(t, f, "version:info\n"))
	assert.Equal(t, "Missing argument\n", run(t, f, "version"))
	assert.Empty(t, run(t, f, "version:other"))
}

func TestReset(t *testing.T) {
	f := newFakeTarget()
	run(t, f, "reset:soft")
	run(t, f, "reset:hard")
	run(t, f, "reset:warm")
	assert.Equal(t, 1, f.restarts)
	assert.Equal(t, 1, f.reboots)
	assert.Equal(t, "Missing argument\n", run(t, f, "reset"))
}

func TestSettingsDump(t *testing.T) {
	f := newFakeTarget()
	out := run(t, f, "settings:dump")

	var v settings.Values
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, settings.Defaults(), v)
}

func TestSettingsPersistJoinsColons(t *testing.T) {
	f := newFakeTarget()
	out := run(t, f, `settings:persist:{"mode": 1, "note": "a:b"}`)
	assert.Empty(t, out)
	assert.Equal(t, `{"mode": 1, "note": "a:b"}`, string(f.loaded))
	assert.Equal(t, 1, f.restarts)
}

func TestSettingsPersistInvalidJSON(t *testing.T) {
	f := newFakeTarget()
	assert.Equal(t, "Invalid JSON\n", run(t, f, "settings:persist:{mode"))
	assert.Nil(t, f.loaded)
	assert.Zero(t, f.restarts)

	assert.Equal(t, "Missing argument\n", run(t, f, "settings:persist"))
}

func TestSettingsPersistWriteFailureStillRestarts(t *testing.T) {
	f := newFakeTarget()
	f.loadErr = errors.New("disk full")
	assert.Empty(t, run(t, f, `settings:persist:{}`))
	assert.Equal(t, 1, f.restarts)
}

func TestSettingsReset(t *testing.T) {
	f := newFakeTarget()
	run(t, f, "settings:reset")
	assert.Equal(t, 1, f.resets)
	assert.Equal(t, 1, f.restarts)
}

func TestSetBrightness(t *testing.T) {
	f := newFakeTarget()
	assert.Empty(t, run(t, f, "settings:set_brightness:0.5"))
	assert.Equal(t, "Invalid argument\n", run(t, f, "settings:set_brightness:bright"))
	assert.Equal(t, "Invalid argument\n", run(t, f, "settings:set_brightness:NaN"))
	assert.Equal(t, "Missing argument\n", run(t, f, "settings:set_brightness"))
	assert.Equal(t, []float64{0.5}, f.brightness)
}

func TestSetMode(t *testing.T) {
	f := newFakeTarget()
	run(t, f, "settings:set_mode:lift")
	run(t, f, "settings:set_mode:drop")
	run(t, f, "settings:set_mode:reverse")
	assert.Equal(t, "Invalid argument\n", run(t, f, "settings:set_mode:Drop"))
	assert.Equal(t, "Missing argument\n", run(t, f, "settings:set_mode"))
	assert.Equal(t, []types.Mode{types.ModeLift, types.ModeDrop, types.ModeReverse}, f.modes)
}

func TestSetPowerMode(t *testing.T) {
	f := newFakeTarget()
	run(t, f, "settings:set_power_mode:low")
	run(t, f, "settings:set_power_mode:high")
	assert.Equal(t, "Invalid argument\n", run(t, f, "settings:set_power_mode:max"))
	assert.Equal(t, []types.PowerMode{types.PowerLow, types.PowerHigh}, f.power)
}

func TestPowerSettingsClamp(t *testing.T) {
	f := newFakeTarget()
	run(t, f, "settings:set_low_power_setting:-20")
	run(t, f, "settings:set_low_power_setting:45")
	run(t, f, "settings:set_high_power_setting:250")
	assert.Equal(t, "Invalid argument\n", run(t, f, "settings:set_high_power_setting:4.5"))
	assert.Equal(t, "Missing argument\n", run(t, f, "settings:set_low_power_setting"))

	assert.Equal(t, []int{0, 45}, f.low)
	assert.Equal(t, []int{100}, f.high)
}

func TestPedalKeys(t *testing.T) {
	tests := []struct {
		line string
		slot PedalSlot
		want uint8
	}{
		{"settings:set_secondary_pedal_key:0x2C", PedalKey, 0x2c},
		{"settings:set_secondary_pedal_key_modifier:02", PedalKeyModifier, 0x02},
		{"settings:set_secondary_pedal_long_key:ff", PedalLongKey, 0xff},
		{"settings:set_secondary_pedal_long_key_modifier:0X1", PedalLongKeyModifier, 0x01},
	}
	for _, tt := range tests {
		t.Run(tt.slot.String(), func(t *testing.T) {
			f := newFakeTarget()
			assert.Empty(t, run(t, f, tt.line))
			assert.Equal(t, tt.want, f.pedal[tt.slot])
		})
	}
}

func TestPedalKeyRejectsBadHex(t *testing.T) {
	f := newFakeTarget()
	assert.Equal(t, "Invalid argument\n", run(t, f, "settings:set_secondary_pedal_key:zz"))
	assert.Equal(t, "Invalid argument\n", run(t, f, "settings:set_secondary_pedal_key:100"))
	assert.Equal(t, "Invalid argument\n", run(t, f, "settings:set_secondary_pedal_key:-1"))
	assert.Equal(t, "Missing argument\n", run(t, f, "settings:set_secondary_pedal_long_key"))
	assert.Empty(t, f.pedal)
}

func TestUnknownSettingsSubcommandIsSilent(t *testing.T) {
	f := newFakeTarget()
	assert.Empty(t, run(t, f, "settings:frobnicate:1"))
	assert.Equal(t, "Missing argument\n", run(t, f, "settings"))
}
