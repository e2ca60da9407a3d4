package monitor

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/timengelbracht/Hameg-HM8143/pkg/protocol"
)

// Transport 与 session.Transport 相同的方法集
type Transport interface {
	Write(p []byte) error
	ReadLine(timeout time.Duration) (string, error)
	Close() error
}

// InstrumentedTransport 给传输层加上指标和日志, 行为本身不变
type InstrumentedTransport struct {
	next Transport
	log  *logrus.Logger
}

func Instrument(next Transport, log *logrus.Logger) *InstrumentedTransport {
	return &InstrumentedTransport{next: next, log: log}
}

func (t *InstrumentedTransport) Write(p []byte) error {
	cmd := string(p)
	CommandsSent.WithLabelValues(protocol.Mnemonic(cmd)).Inc()

	if err := t.next.Write(p); err != nil {
		TransportErrors.WithLabelValues("write").Inc()
		t.log.Errorf("写入失败 [%s]: %v", cmd, err)
		return err
	}
	BytesWritten.Add(float64(len(p)))
	t.log.Debugf("写入: %q", cmd)
	return nil
}

func (t *InstrumentedTransport) ReadLine(timeout time.Duration) (string, error) {
	startTime := time.Now()
	line, err := t.next.ReadLine(timeout)
	ResponseDuration.Observe(time.Since(startTime).Seconds())

	switch {
	case err == nil:
		BytesRead.Add(float64(len(line)))
		t.log.Debugf("读取: %q", line)
	case errors.Is(err, protocol.ErrTimeout):
		ReadTimeouts.Inc()
		t.log.Warnf("读取超时 (%v)", timeout)
	case errors.Is(err, protocol.ErrWouldBlock):
	default:
		TransportErrors.WithLabelValues("read").Inc()
		t.log.Errorf("读取失败: %v", err)
	}
	return line, err
}

func (t *InstrumentedTransport) Close() error {
	err := t.next.Close()
	if err != nil {
		TransportErrors.WithLabelValues("close").Inc()
		t.log.Errorf("关闭串口失败: %v", err)
		return err
	}
	t.log.Info("串口已关闭")
	return nil
}
