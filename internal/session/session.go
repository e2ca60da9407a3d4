package session

import (
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/timengelbracht/Hameg-HM8143/pkg/protocol"
)

const (
	DefaultReadTimeout = time.Second
	// DefaultSettleDelay 打开输出与 RUN 之间, 以及 STP 与关闭输出之间的等待
	DefaultSettleDelay = 100 * time.Millisecond
)

// ErrClosed 会话关闭后继续调用
var ErrClosed = errors.New("session: 会话已关闭")

// Transport 已配置好的字节传输
type Transport interface {
	Write(p []byte) error
	ReadLine(timeout time.Duration) (string, error)
	Close() error
}

// Options 会话参数, nil 时使用默认值
type Options struct {
	// Logger 为 nil 时不输出日志
	Logger      *logrus.Logger
	ReadTimeout time.Duration
	SettleDelay time.Duration
}

func (opts *Options) logger() *logrus.Logger {
	if opts == nil || opts.Logger == nil {
		log := logrus.New()
		log.SetOutput(io.Discard)
		return log
	}
	return opts.Logger
}

func (opts *Options) readTimeout() time.Duration {
	if opts == nil || opts.ReadTimeout <= 0 {
		return DefaultReadTimeout
	}
	return opts.ReadTimeout
}

func (opts *Options) settleDelay() time.Duration {
	if opts == nil || opts.SettleDelay <= 0 {
		return DefaultSettleDelay
	}
	return opts.SettleDelay
}

// Session 与一台 HM8143 的会话.
// 不做内部加锁, 并发调用方需要自行串行化.
type Session struct {
	transport   Transport
	log         *logrus.Logger
	readTimeout time.Duration
	settleDelay time.Duration
	closed      bool
}

// Open 绑定一个已配置好的传输
func Open(t Transport, opts *Options) *Session {
	return &Session{
		transport:   t,
		log:         opts.logger(),
		readTimeout: opts.readTimeout(),
		settleDelay: opts.settleDelay(),
	}
}

// send 写入一条命令, 不重试
func (s *Session) send(cmd string) error {
	if s.closed {
		return ErrClosed
	}
	s.log.Debugf("发送命令: %s", cmd)
	return s.transport.Write([]byte(cmd))
}

// query 写入一条查询并读取一行响应
func (s *Session) query(cmd string) (string, error) {
	if err := s.send(cmd); err != nil {
		return "", err
	}
	raw, err := s.transport.ReadLine(s.readTimeout)
	if err != nil {
		return "", err
	}
	resp := protocol.DecodeResponse(raw)
	s.log.Debugf("收到响应: %s -> %q", cmd, resp)
	return resp, nil
}

// encodeAndSend 关闭后的会话优先返回 ErrClosed, 其次才是参数错误
func (s *Session) encodeAndSend(cmd string, err error) error {
	if s.closed {
		return ErrClosed
	}
	if err != nil {
		return err
	}
	return s.send(cmd)
}

func (s *Session) encodeAndQuery(cmd string, err error) (string, error) {
	if s.closed {
		return "", ErrClosed
	}
	if err != nil {
		return "", err
	}
	return s.query(cmd)
}

// StartRemoteControl 进入远程控制, 禁用前面板
func (s *Session) StartRemoteControl() error { return s.send(protocol.CmdRemoteOn) }

// EndRemoteControl 退出远程控制, 恢复前面板
func (s *Session) EndRemoteControl() error { return s.send(protocol.CmdRemoteOff) }

// StartMixedControl 混合控制: 前面板和串口同时有效
func (s *Session) StartMixedControl() error { return s.send(protocol.CmdMixedOn) }

// EndMixedControl 退出混合控制, 回到远程控制
func (s *Session) EndMixedControl() error { return s.send(protocol.CmdMixedOff) }

func (s *Session) EnableOutputSockets() error { return s.send(protocol.CmdOutputOn) }

func (s *Session) DisableOutputSockets() error { return s.send(protocol.CmdOutputOff) }

// SetVoltage 设置通道电压
func (s *Session) SetVoltage(ch protocol.Channel, volts float64) error {
	return s.encodeAndSend(protocol.EncodeSetVoltage(ch, volts))
}

// SetVoltageTracking 跟踪模式下同时设置两个通道的电压
func (s *Session) SetVoltageTracking(volts float64) error {
	return s.encodeAndSend(protocol.EncodeSetVoltageTracking(volts))
}

// SetCurrent 设置通道电流
func (s *Session) SetCurrent(ch protocol.Channel, amps float64) error {
	return s.encodeAndSend(protocol.EncodeSetCurrent(ch, amps))
}

// SetCurrentTracking 跟踪模式下同时设置两个通道的电流
func (s *Session) SetCurrentTracking(amps float64) error {
	return s.encodeAndSend(protocol.EncodeSetCurrentTracking(amps))
}

// SetFuse 启用电子保险丝
func (s *Session) SetFuse() error { return s.send(protocol.CmdFuseSet) }

// ClearFuse 关闭电子保险丝
func (s *Session) ClearFuse() error { return s.send(protocol.CmdFuseClear) }

// TargetVoltage 返回通道的目标电压原始响应
func (s *Session) TargetVoltage(ch protocol.Channel) (string, error) {
	return s.encodeAndQuery(protocol.EncodeTargetVoltage(ch))
}

// TargetCurrent 返回通道的目标电流原始响应
func (s *Session) TargetCurrent(ch protocol.Channel) (string, error) {
	return s.encodeAndQuery(protocol.EncodeTargetCurrent(ch))
}

// ActualVoltage 返回通道的实测电压原始响应
func (s *Session) ActualVoltage(ch protocol.Channel) (string, error) {
	return s.encodeAndQuery(protocol.EncodeActualVoltage(ch))
}

// ActualCurrent 返回通道的实测电流原始响应
func (s *Session) ActualCurrent(ch protocol.Channel) (string, error) {
	return s.encodeAndQuery(protocol.EncodeActualCurrent(ch))
}

func (s *Session) Status() (string, error) { return s.query(protocol.CmdStatus) }

func (s *Session) Version() (string, error) { return s.query(protocol.CmdVersion) }

func (s *Session) ID() (string, error) { return s.query(protocol.CmdID) }

// Clear 关闭输出并把所有电压电流置零, 不影响跟踪模式和保险丝
func (s *Session) Clear() error { return s.send(protocol.CmdClear) }

// LoadArbitraryProgram 加载任意波形, iterations 为 0 时无限循环
func (s *Session) LoadArbitraryProgram(prog protocol.Program, iterations int) error {
	return s.encodeAndSend(protocol.EncodeArbitraryProgram(prog, iterations))
}

// RunArbitraryProgram 打开输出, 等待输出级稳定后 RUN
func (s *Session) RunArbitraryProgram() error {
	return s.sequence(protocol.RunSequence())
}

// StopArbitraryProgram STP, 等待稳定后关闭输出
func (s *Session) StopArbitraryProgram() error {
	return s.sequence(protocol.StopSequence())
}

func (s *Session) sequence(cmds []string) error {
	for i, cmd := range cmds {
		if i > 0 {
			time.Sleep(s.settleDelay)
		}
		if err := s.send(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Close 释放传输, 之后的任何调用都返回 ErrClosed
func (s *Session) Close() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	return s.transport.Close()
}
