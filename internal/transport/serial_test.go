package transport

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/timengelbracht/Hameg-HM8143/pkg/protocol"
)

// fakePort 每次 Read 返回一个预设分片, 用完后模拟串口超时
type fakePort struct {
	reads   [][]byte
	written []byte
	readErr error
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.reads) == 0 {
		if p.readErr != nil {
			return 0, p.readErr
		}
		return 0, io.EOF
	}
	n := copy(b, p.reads[0])
	p.reads = p.reads[1:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestSerialConfigValidate(t *testing.T) {
	if err := (SerialConfig{Port: "/dev/ttyUSB0", Baud: 9600}).Validate(); err != nil {
		t.Errorf("9600: %v", err)
	}
	err := SerialConfig{Port: "/dev/ttyUSB0", Baud: 38400}.Validate()
	if !errors.Is(err, protocol.ErrUnsupportedBaud) {
		t.Errorf("38400: err = %v", err)
	}
	var verr *protocol.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("38400: err = %T, want *ValidationError", err)
	}
	if err := (SerialConfig{Baud: 9600}).Validate(); err == nil {
		t.Error("empty port accepted")
	}
}

func TestOpenSerialRejectsBaudBeforeOpening(t *testing.T) {
	_, err := OpenSerial(SerialConfig{Port: "/dev/does-not-exist", Baud: 38400})
	if !errors.Is(err, protocol.ErrUnsupportedBaud) {
		t.Fatalf("err = %v, want ErrUnsupportedBaud", err)
	}
}

func TestSerialReadLineAssemblesFragments(t *testing.T) {
	port := &fakePort{reads: [][]byte{[]byte("HM81"), []byte("43\r\nU1:"), []byte("05.00V\r\n")}}
	s := newSerial(port, time.Millisecond)

	line, err := s.ReadLine(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if line != "HM8143\r\n" {
		t.Errorf("first line = %q", line)
	}
	line, err = s.ReadLine(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if line != "U1:05.00V\r\n" {
		t.Errorf("second line = %q", line)
	}
}

func TestSerialReadLineWouldBlock(t *testing.T) {
	s := newSerial(&fakePort{reads: [][]byte{[]byte("partial")}}, time.Millisecond)
	_, err := s.ReadLine(0)
	if !errors.Is(err, protocol.ErrWouldBlock) {
		t.Fatalf("err = %v, want ErrWouldBlock", err)
	}
}

func TestSerialReadLineTimeout(t *testing.T) {
	s := newSerial(&fakePort{}, time.Millisecond)
	start := time.Now()
	_, err := s.ReadLine(30 * time.Millisecond)
	if !protocol.IsTimeout(err) {
		t.Fatalf("err = %v, want timeout", err)
	}
	var terr *protocol.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %T, want *TransportError", err)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Errorf("returned after %v", time.Since(start))
	}
}

func TestSerialReadLineTransportError(t *testing.T) {
	boom := errors.New("device disconnected")
	s := newSerial(&fakePort{readErr: boom}, time.Millisecond)
	_, err := s.ReadLine(time.Second)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if protocol.IsTimeout(err) {
		t.Fatal("disconnect reported as timeout")
	}
}

func TestSerialWriteAndClose(t *testing.T) {
	port := &fakePort{}
	s := newSerial(port, 0)
	if err := s.Write([]byte("SU1:06.90")); err != nil {
		t.Fatal(err)
	}
	if string(port.written) != "SU1:06.90" {
		t.Errorf("written = %q", port.written)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !port.closed {
		t.Error("port not closed")
	}
}
