// Package input turns sampled line levels into button gestures.
package input

import "strings"

// Event is a bit set of gestures produced by a single Update.
type Event uint8

const (
	Activate Event = 1 << iota
	Deactivate
	Hold
	LongHold
	Tapped
)

// DispatchOrder is the order in which events from one Update are handled.
var DispatchOrder = []Event{LongHold, Tapped, Activate, Deactivate, Hold}

func (e Event) Has(flag Event) bool {
	return e&flag != 0
}

func (e Event) String() string {
	if e == 0 {
		return "none"
	}
	var parts []string
	for _, flag := range DispatchOrder {
		if e.Has(flag) {
			parts = append(parts, flagName(flag))
		}
	}
	return strings.Join(parts, "|")
}

func flagName(e Event) string {
	switch e {
	case Activate:
		return "activate"
	case Deactivate:
		return "deactivate"
	case Hold:
		return "hold"
	case LongHold:
		return "long-hold"
	case Tapped:
		return "tapped"
	}
	return "unknown"
}

const (
	DefaultLongHoldMillis = 750
	DefaultTapMillis      = 300
	TapFloorMillis        = 50
)

// Source debounces one logical control. Several physical lines may feed a
// single Source; their levels are OR'd before classification.
type Source struct {
	Name           string
	LongHoldMillis int64
	TapMillis      int64

	pressed    bool
	armed      bool
	pressStart int64
}

func NewSource(name string) *Source {
	return &Source{
		Name:           name,
		LongHoldMillis: DefaultLongHoldMillis,
		TapMillis:      DefaultTapMillis,
	}
}

func (s *Source) Pressed() bool {
	return s.pressed
}

// Update samples the lines at now and returns the events for this tick.
func (s *Source) Update(now int64, levels ...bool) Event {
	level := false
	for _, l := range levels {
		level = level || l
	}

	var ev Event

	if level && s.armed && now-s.pressStart > s.LongHoldMillis {
		s.armed = false
		ev |= LongHold
	}

	if !level && s.armed {
		held := now - s.pressStart
		if held > TapFloorMillis && held < s.TapMillis {
			s.armed = false
			ev |= Tapped
		}
	}

	if level != s.pressed {
		s.pressed = level
		if level {
			s.armed = true
			s.pressStart = now
			ev |= Activate
		} else {
			s.armed = false
			ev |= Deactivate
		}
	}

	if level {
		ev |= Hold
	}

	return ev
}
