package controller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/timengelbracht/Hameg-HM8143/internal/config"
	"github.com/timengelbracht/Hameg-HM8143/internal/monitor"
	"github.com/timengelbracht/Hameg-HM8143/internal/poller"
	"github.com/timengelbracht/Hameg-HM8143/internal/session"
	"github.com/timengelbracht/Hameg-HM8143/internal/storage"
	"github.com/timengelbracht/Hameg-HM8143/internal/transport"
	"github.com/timengelbracht/Hameg-HM8143/pkg/protocol"
)

// 运行模式
const (
	ModeID    = "id"
	ModeSweep = "sweep"
	ModeArb   = "arb"
	ModePoll  = "poll"
	ModeClear = "clear"
)

// Modes 所有支持的运行模式
var Modes = []string{ModeID, ModeSweep, ModeArb, ModePoll, ModeClear}

type Controller struct {
	config    *config.Config
	session   *session.Session
	monitor   *monitor.Monitor
	publisher *storage.ReadingPublisher
	log       *logrus.Logger
	out       io.Writer

	metricsServer *http.Server
	stopRuntime   func()

	remote         bool
	programRunning bool
}

// NewController 打开串口并建立会话
func NewController(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Controller, error) {
	port, err := transport.OpenSerial(transport.SerialConfig{
		Port:         cfg.Serial.Port,
		Baud:         cfg.Serial.Baud,
		PollInterval: cfg.Serial.PollInterval,
	})
	if err != nil {
		return nil, err
	}
	log.Infof("串口已打开: %s @ %d baud", cfg.Serial.Port, cfg.Serial.Baud)

	var pub *storage.ReadingPublisher
	if cfg.Redis.Enabled {
		pub, err = storage.NewReadingPublisher(ctx,
			cfg.Redis.Addr,
			cfg.Redis.Password,
			cfg.Redis.Channel,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			log,
		)
		if err != nil {
			port.Close()
			return nil, err
		}
	}

	return newController(cfg, log, port, pub), nil
}

func newController(cfg *config.Config, log *logrus.Logger, t monitor.Transport, pub *storage.ReadingPublisher) *Controller {
	sess := session.Open(monitor.Instrument(t, log), &session.Options{
		Logger:      log,
		ReadTimeout: cfg.Session.ReadTimeout,
		SettleDelay: cfg.Session.SettleDelay,
	})

	return &Controller{
		config:    cfg,
		session:   sess,
		monitor:   monitor.NewMonitor(log),
		publisher: pub,
		log:       log,
		out:       os.Stdout,
	}
}

// Run 执行一个模式, 返回前总是把仪器恢复到安全状态并释放串口
func (c *Controller) Run(ctx context.Context, mode string) (err error) {
	if c.config.Monitor.Enabled {
		c.metricsServer = c.monitor.StartMetricsServer(c.config.Monitor.MetricsPort)
		c.stopRuntime = c.monitor.StartRuntimeMonitor(c.config.Monitor.RuntimeInterval)
	}
	defer func() {
		if shutdownErr := c.shutdown(); err == nil {
			err = shutdownErr
		}
	}()

	c.log.Infof("运行模式: %s", mode)
	switch mode {
	case ModeID:
		return c.identify()
	case ModeSweep:
		return c.sweep(ctx)
	case ModeArb:
		return c.runProgram(ctx)
	case ModePoll:
		return c.poll(ctx)
	case ModeClear:
		return c.session.Clear()
	default:
		return fmt.Errorf("未知模式 %q, 可选 %v", mode, Modes)
	}
}

func (c *Controller) identify() error {
	id, err := c.session.ID()
	if err != nil {
		return fmt.Errorf("读取ID失败: %w", err)
	}
	version, err := c.session.Version()
	if err != nil {
		return fmt.Errorf("读取版本失败: %w", err)
	}
	status, err := c.session.Status()
	if err != nil {
		return fmt.Errorf("读取状态失败: %w", err)
	}

	fmt.Fprintf(c.out, "ID:      %s\n", id)
	fmt.Fprintf(c.out, "Version: %s\n", version)
	fmt.Fprintf(c.out, "Status:  %s\n", status)
	return nil
}

func (c *Controller) startRemote() error {
	if err := c.session.StartRemoteControl(); err != nil {
		return err
	}
	c.remote = true
	return nil
}

// sweep 通道1电压从 1V 升到 30V, 通道2 反向, 电流随电压按比例变化
func (c *Controller) sweep(ctx context.Context) error {
	if err := c.startRemote(); err != nil {
		return err
	}

	for _, p := range SweepPoints(c.config.Sweep.Steps) {
		writes := []func() error{
			func() error { return c.session.SetVoltage(protocol.Channel1, p.Voltage1) },
			func() error { return c.session.SetCurrent(protocol.Channel1, p.Current1) },
			func() error { return c.session.SetVoltage(protocol.Channel2, p.Voltage2) },
			func() error { return c.session.SetCurrent(protocol.Channel2, p.Current2) },
		}
		for _, write := range writes {
			if err := write(); err != nil {
				return err
			}
			if !sleep(ctx, c.config.Sweep.Interval) {
				c.log.Info("扫描被中断")
				return nil
			}
		}
		c.log.Debugf("扫描: CH1 %.2fV/%.2fA, CH2 %.2fV/%.2fA", p.Voltage1, p.Current1, p.Voltage2, p.Current2)
	}
	return nil
}

// runProgram 加载并运行任意波形, 到时间或收到信号后停止
func (c *Controller) runProgram(ctx context.Context) error {
	arb := c.config.Arbitrary
	if err := c.startRemote(); err != nil {
		return err
	}
	if err := c.session.LoadArbitraryProgram(arb.Steps, arb.Iterations); err != nil {
		return fmt.Errorf("加载任意波形失败: %w", err)
	}
	c.log.Infof("任意波形已加载: %d 步, 迭代 %d 次", len(arb.Steps), arb.Iterations)

	if err := c.session.RunArbitraryProgram(); err != nil {
		return fmt.Errorf("启动任意波形失败: %w", err)
	}
	c.programRunning = true

	if arb.RunFor > 0 {
		sleep(ctx, arb.RunFor)
	} else {
		<-ctx.Done()
	}
	return c.stopProgram()
}

func (c *Controller) stopProgram() error {
	if !c.programRunning {
		return nil
	}
	if err := c.session.StopArbitraryProgram(); err != nil {
		return fmt.Errorf("停止任意波形失败: %w", err)
	}
	c.programRunning = false
	c.log.Info("任意波形已停止")
	return nil
}

func (c *Controller) poll(ctx context.Context) error {
	var pub poller.Publisher
	if c.publisher != nil {
		pub = c.publisher
	}
	p := poller.New(c.session, pub, c.log, c.config.Session.DeviceID, c.config.Monitor.PollInterval)
	return p.Run(ctx)
}

// HandleSignals 收到 SIGINT/SIGTERM 时取消 ctx
func (c *Controller) HandleSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		c.log.Infof("收到信号: %v, 开始关闭...", sig)
		signal.Stop(sigChan)
		cancel()
	}()
}

func (c *Controller) shutdown() error {
	var firstErr error
	keep := func(err error) {
		if err != nil {
			c.log.Errorf("关闭过程出错: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	keep(c.stopProgram())
	if c.remote {
		keep(c.session.EndRemoteControl())
		c.remote = false
	}
	keep(c.session.Close())

	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			c.log.Errorf("关闭Redis连接失败: %v", err)
		}
	}
	if c.stopRuntime != nil {
		c.stopRuntime()
	}
	if c.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			c.log.Errorf("关闭Metrics服务器失败: %v", err)
		}
	}

	c.log.Info("已关闭")
	return firstErr
}

// sleep 等待 d, ctx 结束时提前返回 false
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
