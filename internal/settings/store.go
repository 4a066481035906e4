// Package settings persists the user configurable pump settings.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"pixel-pump/internal/logger"
	"pixel-pump/internal/types"
)

const (
	MinBrightness = 0.35
	MaxBrightness = 0.8

	MinPowerSetting = 0
	MaxPowerSetting = 100
)

// ErrInvalidDocument is returned by Load when the document is not a JSON object.
var ErrInvalidDocument = errors.New("invalid settings document")

// Values is the persisted settings document. Keys not listed here are
// dropped on load.
type Values struct {
	Brightness                    float64         `json:"brightness"`
	LowPowerSetting               int             `json:"low_power_setting"`
	HighPowerSetting              int             `json:"high_power_setting"`
	PowerMode                     types.PowerMode `json:"power_mode"`
	Mode                          types.Mode      `json:"mode"`
	SecondaryPedalKey             uint8           `json:"secondary_pedal_key"`
	SecondaryPedalKeyModifier     uint8           `json:"secondary_pedal_key_modifier"`
	SecondaryPedalLongKey         uint8           `json:"secondary_pedal_long_key"`
	SecondaryPedalLongKeyModifier uint8           `json:"secondary_pedal_long_key_modifier"`
}

func Defaults() Values {
	return Values{
		Brightness:                    MaxBrightness,
		LowPowerSetting:               80,
		HighPowerSetting:              100,
		PowerMode:                     types.PowerHigh,
		Mode:                          types.ModeLift,
		SecondaryPedalKey:             0x11,
		SecondaryPedalKeyModifier:     0x00,
		SecondaryPedalLongKey:         0x52,
		SecondaryPedalLongKeyModifier: 0x00,
	}
}

// Backend stores the serialized settings document.
type Backend interface {
	Read() ([]byte, error)
	Write(data []byte) error
}

type Store struct {
	values  Values
	backend Backend
	logger  *logger.Logger
}

// Open reads settings from the backend. Unreadable or corrupt storage is
// replaced with defaults, which are written back.
func Open(backend Backend, l *logger.Logger) *Store {
	if l == nil {
		l = logger.Discard()
	}
	s := &Store{
		values:  Defaults(),
		backend: backend,
		logger:  l.WithTag("settings"),
	}

	data, err := backend.Read()
	if err != nil {
		s.logger.Warnf("Failed to read settings, using defaults: %v", err)
		s.writeBack()
		return s
	}

	values, rejected, err := decode(data)
	if err != nil {
		s.logger.Warnf("Stored settings are corrupt, using defaults: %v", err)
		s.writeBack()
		return s
	}
	s.warnRejected(rejected)
	s.values = values

	normalized, err := s.Dump()
	if err == nil && !bytes.Equal(bytes.TrimSpace(data), normalized) {
		s.logger.Infof("Migrating stored settings to current schema")
		s.writeBack()
	}
	return s
}

func (s *Store) writeBack() {
	if err := s.Persist(); err != nil {
		s.logger.Errorf("%v", err)
	}
}

func (s *Store) warnRejected(rejected []string) {
	for _, r := range rejected {
		s.logger.Warnf("Ignoring stored %s, using default", r)
	}
}

// decode overlays every known key of data on the defaults. Each key is
// parsed on its own: slider values are clamped, and a value of the wrong
// type or outside its enum keeps the default and is listed in rejected.
// Only a document that is not a JSON object is an error.
func decode(data []byte) (Values, []string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return Values{}, nil, err
	}
	if doc == nil {
		return Values{}, nil, errors.New("document is not an object")
	}

	f := fields{doc: doc}
	v := Defaults()
	if b, ok := f.number("brightness"); ok {
		v.Brightness = clampFloat(b, MinBrightness, MaxBrightness)
	}
	if p, ok := f.number("low_power_setting"); ok {
		v.LowPowerSetting = powerSetting(p)
	}
	if p, ok := f.number("high_power_setting"); ok {
		v.HighPowerSetting = powerSetting(p)
	}
	if p, ok := f.integer("power_mode", int(types.PowerLow), int(types.PowerMax)); ok {
		v.PowerMode = types.PowerMode(p)
	}
	if m, ok := f.integer("mode", int(types.ModeLift), int(types.ModeReverse)); ok {
		v.Mode = types.Mode(m)
	}
	if k, ok := f.integer("secondary_pedal_key", 0, math.MaxUint8); ok {
		v.SecondaryPedalKey = uint8(k)
	}
	if k, ok := f.integer("secondary_pedal_key_modifier", 0, math.MaxUint8); ok {
		v.SecondaryPedalKeyModifier = uint8(k)
	}
	if k, ok := f.integer("secondary_pedal_long_key", 0, math.MaxUint8); ok {
		v.SecondaryPedalLongKey = uint8(k)
	}
	if k, ok := f.integer("secondary_pedal_long_key_modifier", 0, math.MaxUint8); ok {
		v.SecondaryPedalLongKeyModifier = uint8(k)
	}
	return v, f.rejected, nil
}

// fields reads single keys out of a settings document, collecting the
// ones that could not be used.
type fields struct {
	doc      map[string]json.RawMessage
	rejected []string
}

// number reports the numeric value of key. Absent keys are not rejected.
func (f *fields) number(key string) (float64, bool) {
	raw, ok := f.doc[key]
	if !ok {
		return 0, false
	}
	var n *float64
	if err := json.Unmarshal(raw, &n); err != nil || n == nil {
		f.rejected = append(f.rejected, fmt.Sprintf("%s=%s: not a number", key, raw))
		return 0, false
	}
	return *n, true
}

// integer reports the value of key when it is a whole number in [lo, hi].
func (f *fields) integer(key string, lo, hi int) (int, bool) {
	n, ok := f.number(key)
	if !ok {
		return 0, false
	}
	if n != math.Trunc(n) || n < float64(lo) || n > float64(hi) {
		f.rejected = append(f.rejected, fmt.Sprintf("%s=%s: outside %d..%d", key, f.doc[key], lo, hi))
		return 0, false
	}
	return int(n), true
}

// Values returns a copy of the current settings.
func (s *Store) Values() Values {
	return s.values
}

func (s *Store) Dump() ([]byte, error) {
	data, err := json.Marshal(s.values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	return data, nil
}

// Load replaces all settings with the given document and persists it.
// A document that is not a JSON object leaves the store untouched.
func (s *Store) Load(data []byte) error {
	values, rejected, err := decode(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	s.warnRejected(rejected)
	s.values = values
	return s.Persist()
}

func (s *Store) Reset() error {
	s.values = Defaults()
	return s.Persist()
}

// Persist writes the current values. On failure the in-memory values are
// kept as they are.
func (s *Store) Persist() error {
	data, err := s.Dump()
	if err != nil {
		return err
	}
	if err := s.backend.Write(data); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	s.logger.Debugf("Persisted %s", data)
	return nil
}

// update applies mutate and persists only when something changed.
func (s *Store) update(persist bool, mutate func(v *Values)) error {
	next := s.values
	mutate(&next)
	if next == s.values {
		return nil
	}
	s.values = next
	if !persist {
		return nil
	}
	return s.Persist()
}

func (s *Store) Brightness() float64 { return s.values.Brightness }

func (s *Store) SetBrightness(b float64, persist bool) error {
	b = clampFloat(b, MinBrightness, MaxBrightness)
	return s.update(persist, func(v *Values) { v.Brightness = b })
}

func (s *Store) LowPowerSetting() int { return s.values.LowPowerSetting }

func (s *Store) SetLowPowerSetting(p int, persist bool) error {
	p = clampInt(p, MinPowerSetting, MaxPowerSetting)
	return s.update(persist, func(v *Values) { v.LowPowerSetting = p })
}

func (s *Store) HighPowerSetting() int { return s.values.HighPowerSetting }

func (s *Store) SetHighPowerSetting(p int, persist bool) error {
	p = clampInt(p, MinPowerSetting, MaxPowerSetting)
	return s.update(persist, func(v *Values) { v.HighPowerSetting = p })
}

func (s *Store) PowerMode() types.PowerMode { return s.values.PowerMode }

func (s *Store) SetPowerMode(p types.PowerMode, persist bool) error {
	return s.update(persist, func(v *Values) { v.PowerMode = p })
}

func (s *Store) Mode() types.Mode { return s.values.Mode }

func (s *Store) SetMode(m types.Mode, persist bool) error {
	return s.update(persist, func(v *Values) { v.Mode = m })
}

// PedalKeys returns the tap and long-hold key mappings of the secondary pedal.
func (s *Store) PedalKeys() (modifier, key, longModifier, longKey uint8) {
	v := s.values
	return v.SecondaryPedalKeyModifier, v.SecondaryPedalKey, v.SecondaryPedalLongKeyModifier, v.SecondaryPedalLongKey
}

func (s *Store) SetSecondaryPedalKey(k uint8, persist bool) error {
	return s.update(persist, func(v *Values) { v.SecondaryPedalKey = k })
}

func (s *Store) SetSecondaryPedalKeyModifier(k uint8, persist bool) error {
	return s.update(persist, func(v *Values) { v.SecondaryPedalKeyModifier = k })
}

func (s *Store) SetSecondaryPedalLongKey(k uint8, persist bool) error {
	return s.update(persist, func(v *Values) { v.SecondaryPedalLongKey = k })
}

func (s *Store) SetSecondaryPedalLongKeyModifier(k uint8, persist bool) error {
	return s.update(persist, func(v *Values) { v.SecondaryPedalLongKeyModifier = k })
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func powerSetting(p float64) int {
	return int(math.Round(clampFloat(p, MinPowerSetting, MaxPowerSetting)))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
