package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"

	"github.com/timengelbracht/Hameg-HM8143/pkg/protocol"
)

// DefaultPollInterval 串口单次读取的等待时间
const DefaultPollInterval = 100 * time.Millisecond

// SerialConfig 串口参数, 数据格式固定为 8N1
type SerialConfig struct {
	Port         string
	Baud         int
	PollInterval time.Duration
}

// Validate 检查端口名和波特率
func (c SerialConfig) Validate() error {
	if c.Port == "" {
		return errors.New("串口名称为空")
	}
	return protocol.ValidateBaud(c.Baud)
}

// Serial 基于行的串口传输
type Serial struct {
	port  io.ReadWriteCloser
	buf   []byte
	chunk []byte
	poll  time.Duration
}

// OpenSerial 打开串口: 8 数据位, 无校验, 1 停止位
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: poll,
	})
	if err != nil {
		return nil, &protocol.TransportError{Op: "打开", Err: fmt.Errorf("%s: %w", cfg.Port, err)}
	}

	// 串口驱动自身已经等待 poll, 不再额外休眠
	return newSerial(port, 0), nil
}

func newSerial(port io.ReadWriteCloser, poll time.Duration) *Serial {
	return &Serial{
		port:  port,
		chunk: make([]byte, 256),
		poll:  poll,
	}
}

// Write 写入一条命令, 不追加结束符
func (s *Serial) Write(p []byte) error {
	n, err := s.port.Write(p)
	if err != nil {
		return &protocol.TransportError{Op: "写入", Err: err}
	}
	if n != len(p) {
		return &protocol.TransportError{Op: "写入", Err: io.ErrShortWrite}
	}
	return nil
}

// ReadLine 读取一行响应(包含换行符).
// timeout 为 0 时只检查一次, 没有完整行则返回 ErrWouldBlock;
// 否则一直等到完整行或超时 ErrTimeout.
func (s *Serial) ReadLine(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		if i := bytes.IndexByte(s.buf, protocol.LineDelimiter); i >= 0 {
			line := string(s.buf[:i+1])
			s.buf = s.buf[i+1:]
			return line, nil
		}

		n, err := s.port.Read(s.chunk)
		if n > 0 {
			s.buf = append(s.buf, s.chunk[:n]...)
			continue
		}
		// 超时的读取在 posix 上返回 io.EOF, 在 windows 上返回 nil
		if err != nil && !errors.Is(err, io.EOF) {
			return "", &protocol.TransportError{Op: "读取", Err: err}
		}

		if timeout <= 0 {
			return "", &protocol.TransportError{Op: "读取", Err: protocol.ErrWouldBlock}
		}
		if !time.Now().Before(deadline) {
			return "", &protocol.TransportError{Op: "读取", Err: protocol.ErrTimeout}
		}
		if s.poll > 0 {
			time.Sleep(s.poll)
		}
	}
}

// Close 释放串口
func (s *Serial) Close() error {
	if err := s.port.Close(); err != nil {
		return &protocol.TransportError{Op: "关闭", Err: err}
	}
	return nil
}
