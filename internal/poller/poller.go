package poller

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/timengelbracht/Hameg-HM8143/internal/monitor"
	"github.com/timengelbracht/Hameg-HM8143/internal/parser"
	"github.com/timengelbracht/Hameg-HM8143/pkg/protocol"
)

// Instrument 轮询所需的查询
type Instrument interface {
	ActualVoltage(ch protocol.Channel) (string, error)
	ActualCurrent(ch protocol.Channel) (string, error)
}

// Publisher 读数的去向, 可以为 nil. 每轮查询发布一次.
type Publisher interface {
	PublishBatch(ctx context.Context, readings []*protocol.Reading) error
}

// Poller 按固定间隔依次查询两个通道的实测电压和电流.
// 所有查询都在调用 Run 的 goroutine 中顺序执行.
type Poller struct {
	inst     Instrument
	parser   *parser.Parser
	pub      Publisher
	log      *logrus.Logger
	deviceID string
	interval time.Duration
}

func New(inst Instrument, pub Publisher, log *logrus.Logger, deviceID string, interval time.Duration) *Poller {
	return &Poller{
		inst:     inst,
		parser:   parser.NewParser(),
		pub:      pub,
		log:      log,
		deviceID: deviceID,
		interval: interval,
	}
}

// Run 轮询直到 ctx 结束或出现非超时的传输错误
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Infof("开始轮询 [%s], 间隔 %v", p.deviceID, p.interval)
	for {
		if _, err := p.PollOnce(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			p.log.Info("轮询停止")
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce 查询一轮. 超时和解析失败只计数, 其他错误返回给调用方.
func (p *Poller) PollOnce(ctx context.Context) ([]*protocol.Reading, error) {
	var readings []*protocol.Reading
	for _, ch := range protocol.Channels {
		for _, q := range []protocol.Quantity{protocol.QuantityVoltage, protocol.QuantityCurrent} {
			r, err := p.read(ch, q)
			if err != nil {
				if !recoverable(err) {
					p.publish(ctx, readings)
					return readings, err
				}
				monitor.PollErrors.Inc()
				p.log.Warnf("读取失败 [%s %s]: %v", ch, q, err)
				continue
			}
			readings = append(readings, r)
			p.record(r)
		}
	}
	p.publish(ctx, readings)
	return readings, nil
}

func (p *Poller) read(ch protocol.Channel, q protocol.Quantity) (*protocol.Reading, error) {
	query := p.inst.ActualVoltage
	if q == protocol.QuantityCurrent {
		query = p.inst.ActualCurrent
	}
	line, err := query(ch)
	if err != nil {
		return nil, err
	}

	result := p.parser.Parse(p.deviceID, ch, q, protocol.KindActual, line)
	if !result.Success {
		return nil, &parseError{err: result.Error}
	}
	return result.Data, nil
}

func (p *Poller) record(r *protocol.Reading) {
	monitor.ChannelReading.
		WithLabelValues(strconv.Itoa(int(r.Channel)), string(r.Quantity), string(r.Kind)).
		Set(r.Value)

	p.log.Debugf("读数 [%s]: %s %s=%.3f%s", p.deviceID, r.Channel, r.Quantity, r.Value, r.Unit)
}

// publish 发布失败只记录日志, 不中断轮询
func (p *Poller) publish(ctx context.Context, readings []*protocol.Reading) {
	if p.pub == nil || len(readings) == 0 {
		return
	}
	if err := p.pub.PublishBatch(ctx, readings); err != nil {
		p.log.Errorf("发布读数失败 [%s]: %v", p.deviceID, err)
	}
}

type parseError struct {
	err error
}

func (e *parseError) Error() string { return e.err.Error() }

func (e *parseError) Unwrap() error { return e.err }

func recoverable(err error) bool {
	var perr *parseError
	return protocol.IsTimeout(err) || errors.As(err, &perr)
}
