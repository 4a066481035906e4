package hardware

import (
	"bytes"
	"errors"
	"testing"

	"pixel-pump/internal/types"
)

// ===== LED Strip Tests =====

type fakePixels struct {
	frames   [][]byte
	halted   bool
	closed   bool
	writeErr error
}

func (f *fakePixels) Write(pixels []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.frames = append(f.frames, append([]byte(nil), pixels...))
	return len(pixels), nil
}

func (f *fakePixels) Halt() error {
	f.halted = true
	return nil
}

func (f *fakePixels) Close() error {
	f.closed = true
	return nil
}

func newAttachedStrip(dev *fakePixels) *SPIStrip {
	s := NewSPIStrip("/dev/spidev0.0", 0)
	s.dev = dev
	s.port = dev
	return s
}

func TestAppendRGBOrder(t *testing.T) {
	got := AppendRGB(nil, []types.Color{{R: 1, G: 2, B: 3}, {R: 0xFF}})
	want := []byte{1, 2, 3, 0xFF, 0, 0}
	if !bytes.Equal(got, want) {
		t.Fatalf("expected % X, got % X", want, got)
	}
}

func TestAppendRGBReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 64)
	out := AppendRGB(buf, []types.Color{types.ColorWhite})
	if &out[0] != &buf[:1][0] {
		t.Error("expected encoding to reuse the provided buffer")
	}
}

func TestStripWriteSendsFrame(t *testing.T) {
	dev := &fakePixels{}
	s := newAttachedStrip(dev)

	if err := s.Write([]types.Color{{R: 10, G: 20, B: 30}}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(dev.frames) != 1 || !bytes.Equal(dev.frames[0], []byte{10, 20, 30}) {
		t.Fatalf("unexpected frames %v", dev.frames)
	}
}

func TestStripWriteError(t *testing.T) {
	dev := &fakePixels{writeErr: errors.New("bus gone")}
	s := newAttachedStrip(dev)
	if err := s.Write(make([]types.Color, 3)); err == nil {
		t.Fatal("expected the driver error to surface")
	}
}

func TestStripWriteBeforeOpen(t *testing.T) {
	s := NewSPIStrip("/dev/spidev0.0", 0)
	if err := s.Write(make([]types.Color, 1)); err == nil {
		t.Fatal("expected an error before Open")
	}
	if s.speedHz != DefaultSPISpeedHz {
		t.Errorf("expected default speed, got %d", s.speedHz)
	}
}

func TestStripCloseHaltsAndReleases(t *testing.T) {
	dev := &fakePixels{}
	s := newAttachedStrip(dev)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !dev.halted || !dev.closed {
		t.Errorf("expected halt and close, got halted=%v closed=%v", dev.halted, dev.closed)
	}
	if err := s.Write(make([]types.Color, 1)); err == nil {
		t.Error("expected Write after Close to fail")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

// ===== PWM Tests =====

func TestDutyNsScale(t *testing.T) {
	p := NewSysfsPWM(0, 0, 50000)
	cases := map[uint16]int{0: 0, 65535: 50000, 32767: 24999}
	for duty, want := range cases {
		if got := p.DutyNs(duty); got != want {
			t.Errorf("DutyNs(%d) = %d, want %d", duty, got, want)
		}
	}
}

func TestSetDutyBeforeInit(t *testing.T) {
	p := NewSysfsPWM(0, 0, 0)
	if err := p.SetDuty(100); err == nil {
		t.Fatal("expected an error before Init")
	}
	if p.periodNs != DefaultPWMPeriodNs {
		t.Errorf("expected default period, got %d", p.periodNs)
	}
}

// ===== Lifecycle Tests =====

func TestInitializeFailureLeavesNothingOpen(t *testing.T) {
	opts := DefaultOptions()
	opts.Chip = "/nonexistent/gpiochip99"
	hw := NewLinuxHardwareIO(opts, nil)

	if err := hw.Initialize(); err == nil {
		t.Fatal("expected Initialize to fail without a GPIO chip")
	}
	if hw.chip != nil || len(hw.inputs) != 0 || len(hw.outputs) != 0 {
		t.Errorf("expected nothing held after a failed Initialize")
	}
	hw.Cleanup()
}

func TestCleanupReleasesPartialSetup(t *testing.T) {
	dev := &fakePixels{}
	hw := NewLinuxHardwareIO(DefaultOptions(), nil)
	hw.pwm = NewSysfsPWM(0, 0, 0)
	hw.strip = newAttachedStrip(dev)

	hw.Cleanup()
	if !dev.halted || !dev.closed {
		t.Errorf("expected the strip to be halted and closed, got halted=%v closed=%v", dev.halted, dev.closed)
	}
	hw.Cleanup()
}

// ===== Options Tests =====

func TestDefaultOptionsCopiesMappings(t *testing.T) {
	opts := DefaultOptions()
	opts.Inputs["lift"] = 99
	if DefaultInputMappings["lift"] != 8 {
		t.Fatal("DefaultOptions must not alias the package mappings")
	}
	if opts.Outputs[ValveNC] != 3 {
		t.Errorf("expected NC on line 3, got %d", opts.Outputs[ValveNC])
	}
}

func TestCommandRebooterRequiresArgv(t *testing.T) {
	if err := (CommandRebooter{}).RebootToBootloader(); err == nil {
		t.Fatal("expected an error without a command")
	}
}
