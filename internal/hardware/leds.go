package hardware

import (
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"pixel-pump/internal/types"
	"pixel-pump/internal/ui"
)

// pixelWriter is the part of nrzled.Dev the strip drives.
type pixelWriter interface {
	Write(pixels []byte) (int, error)
	Halt() error
}

// SPIStrip drives the WS2812 chain through a spidev port. Each LED bit
// takes three SPI bits, so the bus runs at three times the LED data rate.
type SPIStrip struct {
	path    string
	speedHz int
	lock    sync.Mutex
	port    io.Closer
	dev     pixelWriter
	buf     []byte
}

func NewSPIStrip(path string, speedHz int) *SPIStrip {
	if speedHz <= 0 {
		speedHz = DefaultSPISpeedHz
	}
	return &SPIStrip{path: path, speedHz: speedHz}
}

func (s *SPIStrip) Open() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph host: %w", err)
	}
	port, err := spireg.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.path, err)
	}

	opts := nrzled.DefaultOpts
	opts.NumPixels = ui.PixelCount
	opts.Channels = 3
	opts.Freq = physic.Frequency(s.speedHz/3) * physic.Hertz
	dev, err := nrzled.NewSPI(port, &opts)
	if err != nil {
		port.Close()
		return fmt.Errorf("failed to attach LED strip at %s: %w", opts.Freq, err)
	}
	s.port = port
	s.dev = dev
	return nil
}

// Write sends one frame. Colors are given in strip order.
func (s *SPIStrip) Write(colors []types.Color) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.dev == nil {
		return fmt.Errorf("LED strip %s not open", s.path)
	}
	s.buf = AppendRGB(s.buf[:0], colors)
	if _, err := s.dev.Write(s.buf); err != nil {
		return fmt.Errorf("failed to write LED frame: %w", err)
	}
	return nil
}

// Close blanks the strip and releases the port.
func (s *SPIStrip) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.dev == nil {
		return nil
	}
	err := s.dev.Halt()
	if cerr := s.port.Close(); err == nil {
		err = cerr
	}
	s.dev = nil
	s.port = nil
	return err
}

// AppendRGB appends the packed red, green, blue bytes of colors to dst.
// The driver reorders them for the wire.
func AppendRGB(dst []byte, colors []types.Color) []byte {
	for _, c := range colors {
		dst = append(dst, c.R, c.G, c.B)
	}
	return dst
}
