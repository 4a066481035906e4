package messaging

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.bug.st/serial"

	"pixel-pump/internal/logger"
)

const (
	serialBaudRate   = 115200
	serialOutboxSize = 64
)

// SerialPort reads command lines from the USB gadget console and writes
// replies back to it. Replies are queued and written by their own
// goroutine, so a host that stops reading only loses replies.
type SerialPort struct {
	path      string
	logger    *logger.Logger
	callbacks Callbacks
	openPort  func(path string) (io.ReadWriteCloser, error)

	mu     sync.Mutex
	port   io.ReadWriteCloser
	outbox chan string
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewSerialPort(path string, l *logger.Logger, callbacks Callbacks) *SerialPort {
	if l == nil {
		l = logger.Discard()
	}
	return &SerialPort{
		path:      path,
		logger:    l.WithTag("serial"),
		callbacks: callbacks,
		openPort:  openSerial,
		outbox:    make(chan string, serialOutboxSize),
	}
}

func openSerial(path string) (io.ReadWriteCloser, error) {
	return serial.Open(path, &serial.Mode{BaudRate: serialBaudRate})
}

func (s *SerialPort) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		return errors.New("serial port already open")
	}

	port, err := s.openPort(s.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	s.port = port
	s.done = make(chan struct{})
	s.logger.Infof("Listening for commands on %s", s.path)

	s.wg.Add(2)
	go s.readLoop(port)
	go s.writer(port, s.done)
	return nil
}

func (s *SerialPort) readLoop(r io.Reader) {
	defer s.wg.Done()
	scanLines(r, s.handleLine)
	s.logger.Infof("Serial reader on %s stopped", s.path)
}

// writer drains the reply outbox until the port is closed.
func (s *SerialPort) writer(w io.Writer, done <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-done:
			return
		case line := <-s.outbox:
			if _, err := io.WriteString(w, line+"\n"); err != nil {
				s.logger.Warnf("Failed to write reply: %v", err)
			}
		}
	}
}

// scanLines calls handle for every CR or LF terminated line.
func scanLines(r io.Reader, handle func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Split(splitCRLF)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			handle(line)
		}
	}
}

func splitCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (s *SerialPort) handleLine(line string) {
	s.logger.Debugf("Received %q", line)
	if s.callbacks.CommandCallback == nil {
		return
	}
	s.callbacks.CommandCallback(CommandRequest{
		Line:   line,
		Source: "serial",
		Reply:  s.WriteLine,
	})
}

// WriteLine queues one reply line. It never blocks; when the outbox is
// full the line is dropped.
func (s *SerialPort) WriteLine(line string) {
	select {
	case s.outbox <- line:
	default:
		s.logger.Warnf("Reply outbox full, dropping %q", line)
	}
}

func (s *SerialPort) Close() error {
	s.mu.Lock()
	port, done := s.port, s.done
	s.port = nil
	s.mu.Unlock()
	if port == nil {
		return nil
	}
	close(done)
	err := port.Close()
	s.wg.Wait()
	return err
}
