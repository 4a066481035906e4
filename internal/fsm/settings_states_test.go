package fsm

import (
	"math"
	"testing"

	"pixel-pump/internal/control"
	"pixel-pump/internal/input"
	"pixel-pump/internal/settings"
	"pixel-pump/internal/types"
)

// ===== Brightness Settings Tests =====

func TestBrightnessSettingsEnter(t *testing.T) {
	h := newHarness(t, "")
	h.longPress(types.ButtonLift)
	expectState(t, h.m, types.StateBrightnessSettings)

	expectTarget(t, h, types.ButtonTrigger, types.ColorGreen, types.BrightnessDefault)
	expectTarget(t, h, types.ButtonReverse, types.ColorRed, types.BrightnessDefault)
	expectTarget(t, h, types.ButtonLow, types.ColorBlue, types.BrightnessDefault)
	expectTarget(t, h, types.ButtonHigh, types.ColorBlue, types.BrightnessDefault)
}

func TestBrightnessClampsAfterThirteenSteps(t *testing.T) {
	h := newHarness(t, "")
	h.m.Renderer.SetModifier(types.BrightnessDefault)
	h.longPress(types.ButtonLift)

	for i := 1; i <= 12; i++ {
		h.tap(types.ButtonHigh)
	}
	if got := h.m.Renderer.Modifier(); math.Abs(got-0.79) > 1e-9 {
		t.Fatalf("expected 0.79 after 12 steps, got %v", got)
	}

	h.tap(types.ButtonHigh)
	if got := h.m.Renderer.Modifier(); got != settings.MaxBrightness {
		t.Fatalf("expected clamp at %v after 13 steps, got %v", settings.MaxBrightness, got)
	}

	for i := 0; i < 5; i++ {
		h.tap(types.ButtonHigh)
	}
	if got := h.m.Renderer.Modifier(); got != settings.MaxBrightness {
		t.Fatalf("brightness must not exceed the ceiling, got %v", got)
	}
}

func TestBrightnessFloor(t *testing.T) {
	h := newHarness(t, "")
	h.longPress(types.ButtonLift)
	for i := 0; i < 20; i++ {
		h.tap(types.ButtonLow)
	}
	if got := h.m.Renderer.Modifier(); got != settings.MinBrightness {
		t.Fatalf("expected floor %v, got %v", settings.MinBrightness, got)
	}
}

func TestBrightnessCancelRestores(t *testing.T) {
	h := newHarness(t, "")
	h.longPress(types.ButtonLift)
	h.tap(types.ButtonLow)
	h.tap(types.ButtonLow)

	h.send(types.ButtonReverse, input.Activate)
	expectState(t, h.m, types.StateLift)
	if got := h.m.Renderer.Modifier(); got != settings.MaxBrightness {
		t.Errorf("cancel should restore %v, got %v", settings.MaxBrightness, got)
	}
	if h.store.Brightness() != settings.MaxBrightness {
		t.Errorf("cancel must not persist, got %v", h.store.Brightness())
	}
	expectTarget(t, h, types.ButtonHigh, types.ColorBlue, types.BrightnessDefault)
}

func TestBrightnessCommitPersists(t *testing.T) {
	h := newHarness(t, "")
	h.longPress(types.ButtonLift)
	h.tap(types.ButtonLow)
	h.tap(types.ButtonLow)

	h.send(types.ButtonTrigger, input.Activate)
	h.send(types.ButtonTrigger, input.Deactivate)
	expectState(t, h.m, types.StateLift)
	if got := h.store.Brightness(); math.Abs(got-0.7) > 1e-9 {
		t.Errorf("expected persisted 0.7, got %v", got)
	}
	if got := h.m.Renderer.Modifier(); math.Abs(got-0.7) > 1e-9 {
		t.Errorf("expected live 0.7, got %v", got)
	}
}

func TestBrightnessDropLongPressEntersBootloader(t *testing.T) {
	h := newHarness(t, "")
	h.longPress(types.ButtonLift)
	h.longPress(types.ButtonDrop)
	expectState(t, h.m, types.StateBootloader)
}

// ===== Power Settings Tests =====

func TestLowPowerSettingsTuneAndCommit(t *testing.T) {
	h := newHarness(t, "")
	h.longPress(types.ButtonLow)
	expectState(t, h.m, types.StateLowPowerSettings)

	if !h.m.Motor.Running() {
		t.Fatal("tuning runs the motor")
	}
	if h.m.PowerMode() != types.PowerLow {
		t.Fatalf("tuning low forces LOW, got %s", h.m.PowerMode())
	}
	if !h.m.Button(types.ButtonLow).Pulsing() {
		t.Error("tuned button pulses")
	}
	expectTarget(t, h, types.ButtonHigh, types.ColorBlue, types.BrightnessDimmer)

	h.send(types.ButtonLow, input.Activate)
	h.send(types.ButtonLow, input.Deactivate)
	h.send(types.ButtonLow, input.Activate)
	h.send(types.ButtonLow, input.Deactivate)
	if h.m.LowPercent() != 70 {
		t.Fatalf("expected 70%% after two decrements, got %d", h.m.LowPercent())
	}
	if h.m.Motor.Duty() != DutyForPercent(70) {
		t.Errorf("motor should follow the tuned duty live, got %d", h.m.Motor.Duty())
	}

	h.send(types.ButtonTrigger, input.Activate)
	h.send(types.ButtonTrigger, input.Deactivate)
	expectState(t, h.m, types.StateLift)
	if h.store.LowPowerSetting() != 70 {
		t.Errorf("commit should persist 70, got %d", h.store.LowPowerSetting())
	}
	if h.m.PowerMode() != types.PowerHigh {
		t.Errorf("exit restores the previous power mode, got %s", h.m.PowerMode())
	}
	if h.m.Motor.Running() {
		t.Error("exit stops the motor")
	}
}

func TestHighPowerSettingsClampAndCancel(t *testing.T) {
	h := newHarness(t, "")
	h.longPress(types.ButtonHigh)
	expectState(t, h.m, types.StateHighPowerSettings)

	h.send(types.ButtonHigh, input.Activate)
	if h.m.HighPercent() != 100 {
		t.Fatalf("high setting clamps at 100, got %d", h.m.HighPercent())
	}
	h.send(types.ButtonLow, input.Activate)
	if h.m.HighPercent() != 95 {
		t.Fatalf("expected 95, got %d", h.m.HighPercent())
	}

	h.send(types.ButtonReverse, input.Activate)
	expectState(t, h.m, types.StateLift)
	if h.m.HighPercent() != 100 {
		t.Errorf("cancel restores the old value, got %d", h.m.HighPercent())
	}
	if h.store.HighPowerSetting() != 100 {
		t.Errorf("cancel must not persist, got %d", h.store.HighPowerSetting())
	}
}

func TestPowerSettingsMotorTimeoutCancels(t *testing.T) {
	h := newHarness(t, `{"mode": 1, "power_mode": 0}`)
	h.longPress(types.ButtonLow)
	h.send(types.ButtonHigh, input.Activate)
	if h.m.LowPercent() != 85 {
		t.Fatalf("expected 85, got %d", h.m.LowPercent())
	}

	h.advance(control.DefaultMotorTimeoutMillis + 1)
	expectState(t, h.m, types.StateDrop)
	if h.m.LowPercent() != 80 {
		t.Errorf("timeout aborts the change, got %d", h.m.LowPercent())
	}
	if h.store.LowPowerSetting() != 80 {
		t.Errorf("timeout must not persist, got %d", h.store.LowPowerSetting())
	}
	if h.m.PowerMode() != types.PowerLow {
		t.Errorf("expected LOW restored, got %s", h.m.PowerMode())
	}
}

// ===== Bootloader Tests =====

func TestBootloaderRebootsOnceAfterGrace(t *testing.T) {
	h := newHarness(t, "")
	h.m.SetState(newState(h.m, types.StateBootloader))
	for _, id := range types.AllButtons {
		expectTarget(t, h, id, types.ColorWhite, types.BrightnessDefault)
	}

	h.advance(1)
	h.advance(500)
	if h.rebooter.calls != 0 {
		t.Fatal("rebooted before the grace period")
	}
	h.advance(1)
	if h.rebooter.calls != 1 {
		t.Fatalf("expected one reboot, got %d", h.rebooter.calls)
	}
	h.advance(1000)
	if h.rebooter.calls != 1 {
		t.Fatalf("reboot must only be requested once, got %d", h.rebooter.calls)
	}
}

func TestBootloaderIgnoresInput(t *testing.T) {
	h := newHarness(t, "")
	h.m.SetState(newState(h.m, types.StateBootloader))
	h.tap(types.ButtonLift)
	h.tap(types.ButtonLow)
	h.longPress(types.ButtonHigh)
	h.send(types.ButtonReverse, input.Activate)
	h.send(types.ButtonTrigger, input.Activate)
	expectState(t, h.m, types.StateBootloader)
	if h.m.Motor.Running() {
		t.Error("motor must stay off in the bootloader state")
	}
}

// ===== Screen Saver Tests =====

func TestScreenSaverCycle(t *testing.T) {
	h := newHarness(t, "")
	if !h.m.EnterScreenSaver() {
		t.Fatal("screen saver should start from lift")
	}
	for _, id := range types.AllButtons {
		expectTarget(t, h, id, types.ColorNone, 0)
	}

	for step := 1; step <= 5; step++ {
		h.advance(51)
		expectTarget(t, h, types.AllButtons[step], types.ColorBlue, types.BrightnessDimmer)
	}
	h.advance(51)
	expectTarget(t, h, types.AllButtons[0], types.ColorNone, 0)
	h.advance(51)
	expectTarget(t, h, types.AllButtons[1], types.ColorNone, 0)
}

func TestScreenSaverExitsOnAnyButton(t *testing.T) {
	h := newHarness(t, `{"mode": 1}`)
	h.m.EnterScreenSaver()
	h.advance(51)

	h.send(types.ButtonHigh, input.Activate)
	expectState(t, h.m, types.StateDrop)
	expectTarget(t, h, types.ButtonDrop, types.ColorBlue, types.BrightnessDefault)
	expectTarget(t, h, types.ButtonHigh, types.ColorBlue, types.BrightnessDefault)
}

func TestScreenSaverOnlyFromOperatingStates(t *testing.T) {
	h := newHarness(t, "")
	h.send(types.ButtonReverse, input.Activate)
	if h.m.EnterScreenSaver() {
		t.Error("screen saver must not interrupt reverse")
	}
}
