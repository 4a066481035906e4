package settings

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixel-pump/internal/types"
)

type memBackend struct {
	data     []byte
	readErr  error
	writeErr error
	writes   int
}

func (m *memBackend) Read() ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.data, nil
}

func (m *memBackend) Write(data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.data = append([]byte(nil), data...)
	m.writes++
	return nil
}

func storedKeys(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestOpenWithoutStorageWritesDefaults(t *testing.T) {
	b := &memBackend{readErr: os.ErrNotExist}
	s := Open(b, nil)

	assert.Equal(t, Defaults(), s.Values())
	assert.Equal(t, 1, b.writes)

	keys := storedKeys(t, b.data)
	assert.EqualValues(t, 0x11, keys["secondary_pedal_key"])
	assert.EqualValues(t, 0x52, keys["secondary_pedal_long_key"])
	assert.EqualValues(t, 80, keys["low_power_setting"])
	assert.EqualValues(t, 100, keys["high_power_setting"])
	assert.EqualValues(t, 1, keys["power_mode"])
	assert.EqualValues(t, 0, keys["mode"])
}

func TestOpenCorruptStorage(t *testing.T) {
	b := &memBackend{data: []byte("{not json")}
	s := Open(b, nil)
	assert.Equal(t, Defaults(), s.Values())
	assert.Equal(t, 1, b.writes)
}

func TestLoadPrunesAndBackfills(t *testing.T) {
	b := &memBackend{data: []byte(`{"mode": 1, "legacy_duty": 200, "brightness": 0.5}`)}
	s := Open(b, nil)

	v := s.Values()
	assert.Equal(t, types.ModeDrop, v.Mode)
	assert.Equal(t, 0.5, v.Brightness)
	assert.Equal(t, 80, v.LowPowerSetting, "missing keys take defaults")

	keys := storedKeys(t, b.data)
	assert.NotContains(t, keys, "legacy_duty")
	assert.Contains(t, keys, "secondary_pedal_long_key_modifier")
}

func TestOpenAlreadyNormalizedDoesNotWrite(t *testing.T) {
	data, err := json.Marshal(Defaults())
	require.NoError(t, err)
	b := &memBackend{data: data}
	Open(b, nil)
	assert.Equal(t, 0, b.writes)
}

func TestLoadClampsOutOfRange(t *testing.T) {
	b := &memBackend{}
	s := Open(b, nil)
	require.NoError(t, s.Load([]byte(`{"brightness": 1.0, "low_power_setting": -5, "high_power_setting": 250, "power_mode": 7, "mode": 9}`)))

	v := s.Values()
	assert.Equal(t, MaxBrightness, v.Brightness)
	assert.Equal(t, 0, v.LowPowerSetting)
	assert.Equal(t, 100, v.HighPowerSetting)
	assert.Equal(t, types.PowerHigh, v.PowerMode)
	assert.Equal(t, types.ModeLift, v.Mode)
}

func TestLoadInvalidJSONChangesNothing(t *testing.T) {
	b := &memBackend{}
	s := Open(b, nil)
	require.NoError(t, s.SetMode(types.ModeReverse, true))
	writes := b.writes

	err := s.Load([]byte("mode=drop"))
	require.ErrorIs(t, err, ErrInvalidDocument)
	assert.Equal(t, types.ModeReverse, s.Mode())
	assert.Equal(t, writes, b.writes)
}

func TestOpenKeepsValidKeysNextToBadOne(t *testing.T) {
	b := &memBackend{data: []byte(`{"brightness":0.5,"mode":1,"power_mode":0,"low_power_setting":40,"secondary_pedal_key":300}`)}
	s := Open(b, nil)

	v := s.Values()
	assert.Equal(t, types.ModeDrop, v.Mode)
	assert.Equal(t, 0.5, v.Brightness)
	assert.Equal(t, types.PowerLow, v.PowerMode)
	assert.Equal(t, 40, v.LowPowerSetting)
	assert.Equal(t, uint8(0x11), v.SecondaryPedalKey, "out of range key code falls back to its default")

	keys := storedKeys(t, b.data)
	assert.EqualValues(t, 1, keys["mode"])
	assert.EqualValues(t, 40, keys["low_power_setting"])
	assert.EqualValues(t, 0x11, keys["secondary_pedal_key"])
}

func TestOpenMistypedValueFallsBackPerKey(t *testing.T) {
	b := &memBackend{data: []byte(`{"low_power_setting":"80","high_power_setting":null,"mode":2,"secondary_pedal_long_key":1.5}`)}
	s := Open(b, nil)

	v := s.Values()
	assert.Equal(t, types.ModeReverse, v.Mode)
	assert.Equal(t, 80, v.LowPowerSetting)
	assert.Equal(t, 100, v.HighPowerSetting)
	assert.Equal(t, uint8(0x52), v.SecondaryPedalLongKey)
	assert.Equal(t, 1, b.writes)
}

func TestOpenRoundsPowerSettings(t *testing.T) {
	s := Open(&memBackend{data: []byte(`{"low_power_setting":39.6,"high_power_setting":100.4}`)}, nil)
	assert.Equal(t, 40, s.LowPowerSetting())
	assert.Equal(t, 100, s.HighPowerSetting())
}

func TestOpenNonObjectIsCorrupt(t *testing.T) {
	for _, doc := range []string{`null`, `[1,2]`, `"mode"`} {
		t.Run(doc, func(t *testing.T) {
			b := &memBackend{data: []byte(doc)}
			s := Open(b, nil)
			assert.Equal(t, Defaults(), s.Values())
			assert.Equal(t, 1, b.writes)
		})
	}
}

func TestLoadOutOfRangeKeyIsNotInvalidDocument(t *testing.T) {
	b := &memBackend{}
	s := Open(b, nil)
	require.NoError(t, s.SetMode(types.ModeDrop, true))

	require.NoError(t, s.Load([]byte(`{"secondary_pedal_key":300,"mode":1}`)))
	assert.Equal(t, types.ModeDrop, s.Mode())
	assert.Equal(t, uint8(0x11), s.Values().SecondaryPedalKey)
}

func TestDumpLoadRoundTrip(t *testing.T) {
	b := &memBackend{}
	s := Open(b, nil)
	require.NoError(t, s.SetBrightness(0.55, false))
	require.NoError(t, s.SetLowPowerSetting(35, false))
	require.NoError(t, s.SetHighPowerSetting(90, false))
	require.NoError(t, s.SetPowerMode(types.PowerLow, false))
	require.NoError(t, s.SetMode(types.ModeDrop, false))
	require.NoError(t, s.SetSecondaryPedalKey(0x2c, false))
	require.NoError(t, s.SetSecondaryPedalKeyModifier(0x02, false))
	require.NoError(t, s.SetSecondaryPedalLongKey(0x28, false))
	require.NoError(t, s.SetSecondaryPedalLongKeyModifier(0x01, false))

	blob, err := s.Dump()
	require.NoError(t, err)

	other := Open(&memBackend{}, nil)
	require.NoError(t, other.Load(blob))
	assert.Equal(t, s.Values(), other.Values())
}

func TestSetPersistsOnlyOnChange(t *testing.T) {
	b := &memBackend{}
	s := Open(b, nil)
	start := b.writes

	require.NoError(t, s.SetMode(types.ModeLift, true))
	assert.Equal(t, start, b.writes, "unchanged value must not be written")

	require.NoError(t, s.SetMode(types.ModeDrop, true))
	assert.Equal(t, start+1, b.writes)

	require.NoError(t, s.SetMode(types.ModeReverse, false))
	assert.Equal(t, start+1, b.writes, "persist=false must not write")
	assert.Equal(t, types.ModeReverse, s.Mode())
}

func TestSetClamps(t *testing.T) {
	s := Open(&memBackend{}, nil)
	require.NoError(t, s.SetBrightness(0.1, false))
	assert.Equal(t, MinBrightness, s.Brightness())
	require.NoError(t, s.SetHighPowerSetting(105, false))
	assert.Equal(t, 100, s.HighPowerSetting())
	require.NoError(t, s.SetLowPowerSetting(-1, false))
	assert.Equal(t, 0, s.LowPowerSetting())
}

func TestWriteFailureKeepsValue(t *testing.T) {
	b := &memBackend{}
	s := Open(b, nil)
	b.writeErr = errors.New("flash full")

	err := s.SetPowerMode(types.PowerLow, true)
	require.Error(t, err)
	assert.Equal(t, types.PowerLow, s.PowerMode(), "in-memory value is not rolled back")
}

func TestResetRestoresDefaults(t *testing.T) {
	b := &memBackend{}
	s := Open(b, nil)
	require.NoError(t, s.SetLowPowerSetting(10, true))
	require.NoError(t, s.Reset())
	assert.Equal(t, Defaults(), s.Values())
	assert.EqualValues(t, 80, storedKeys(t, b.data)["low_power_setting"])
}

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "settings.json")
	fb := NewFileBackend(path)

	_, err := fb.Read()
	require.Error(t, err)

	s := Open(fb, nil)
	require.NoError(t, s.SetMode(types.ModeDrop, true))

	reopened := Open(NewFileBackend(path), nil)
	assert.Equal(t, types.ModeDrop, reopened.Mode())
}
