package drivers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/trialkit/pkg/domain"
	"go.bug.st/serial"
)

// ErrCodeOutOfRange is returned when a code does not fit in one byte.
var ErrCodeOutOfRange = errors.New("serial trigger code must be in [0,255]")

// ErrInvalidPortSettings is returned for line settings a port cannot take.
var ErrInvalidPortSettings = errors.New("invalid serial port settings")

// DefaultBaudRate is used when a port config names none.
const DefaultBaudRate = 115200

// Serial writes encoded events to a byte transport.
type Serial struct {
	*settings
	w io.Writer
}

// NewSerial wraps any writer: a device file, a socket or a buffer.
func NewSerial(w io.Writer, opts ...Option) *Serial {
	return &Serial{settings: newSettings("serial", opts), w: w}
}

func (s *Serial) Name() string { return s.name }
func (s *Serial) Open() error  { return nil }

// Close closes the transport if it is closable.
func (s *Serial) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Send writes the encoded event. Events that encode to nothing are dropped.
func (s *Serial) Send(event domain.TriggerEvent, wait bool) error {
	data, err := s.Encode(event)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	if d, ok := s.w.(drainer); ok && wait {
		if err := d.Drain(); err != nil {
			return fmt.Errorf("serial drain: %w", err)
		}
	}
	return nil
}

// drainer is implemented by device ports that can block until output is sent.
type drainer interface {
	Drain() error
}

// Encode returns the payload as-is, else the prefix followed by the code byte.
func (s *Serial) Encode(event domain.TriggerEvent) ([]byte, error) {
	if event.Payload != nil {
		return event.Payload, nil
	}
	if event.Code == nil {
		return nil, nil
	}
	code := *event.Code
	if code < 0 || code > 255 {
		return nil, fmt.Errorf("got %d: %w", code, ErrCodeOutOfRange)
	}
	out := make([]byte, 0, len(s.prefix)+1)
	out = append(out, s.prefix...)
	return append(out, byte(code)), nil
}

// PortSettings are the line settings of a serial device. Zero values take
// 115200 baud, 8 data bits, no parity and one stop bit.
type PortSettings struct {
	BaudRate int
	DataBits int
	Parity   string
	StopBits float64
}

// Mode converts the settings for the serial library.
func (p PortSettings) Mode() (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: p.BaudRate,
		DataBits: p.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if mode.BaudRate == 0 {
		mode.BaudRate = DefaultBaudRate
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}
	if mode.BaudRate < 0 || mode.DataBits < 5 || mode.DataBits > 8 {
		return nil, fmt.Errorf("baud %d, data bits %d: %w", mode.BaudRate, mode.DataBits, ErrInvalidPortSettings)
	}
	switch strings.ToUpper(strings.TrimSpace(p.Parity)) {
	case "", "N", "NONE":
	case "E", "EVEN":
		mode.Parity = serial.EvenParity
	case "O", "ODD":
		mode.Parity = serial.OddParity
	case "M", "MARK":
		mode.Parity = serial.MarkParity
	case "S", "SPACE":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("parity %q: %w", p.Parity, ErrInvalidPortSettings)
	}
	switch p.StopBits {
	case 0, 1:
	case 1.5:
		mode.StopBits = serial.OnePointFiveStopBits
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("stop bits %v: %w", p.StopBits, ErrInvalidPortSettings)
	}
	return mode, nil
}

// OpenPort opens a serial device such as /dev/ttyUSB0 or COM3 with the given
// line settings.
func OpenPort(name string, settings PortSettings) (io.WriteCloser, error) {
	mode, err := settings.Mode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return port, nil
}

// DialSerial opens a byte transport from a URL:
// tcp://host:port and udp://host:port dial a socket, loop:// is an in-memory
// loopback and file://path appends to a plain file. Anything else is a serial
// device opened with settings.
func DialSerial(url string, settings PortSettings) (io.WriteCloser, error) {
	url = strings.TrimSpace(url)
	switch {
	case url == "" || url == "loop://":
		return &Loopback{}, nil
	case strings.HasPrefix(url, "tcp://"):
		conn, err := net.Dial("tcp", strings.TrimPrefix(url, "tcp://"))
		if err != nil {
			return nil, fmt.Errorf("failed to dial serial transport %s: %w", url, err)
		}
		return conn, nil
	case strings.HasPrefix(url, "udp://"):
		conn, err := net.Dial("udp", strings.TrimPrefix(url, "udp://"))
		if err != nil {
			return nil, fmt.Errorf("failed to dial serial transport %s: %w", url, err)
		}
		return conn, nil
	case strings.HasPrefix(url, "file://"):
		path := strings.TrimPrefix(url, "file://")
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open serial file %s: %w", path, err)
		}
		return f, nil
	default:
		return OpenPort(url, settings)
	}
}

// Loopback is an in-memory transport that keeps what was written.
type Loopback struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (l *Loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, io.ErrClosedPipe
	}
	return l.buf.Write(p)
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Bytes returns everything written so far.
func (l *Loopback) Bytes() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.buf.Bytes()...)
}
