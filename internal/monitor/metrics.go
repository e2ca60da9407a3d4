package monitor

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// 命令指标
	CommandsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hm8143_commands_sent_total",
			Help: "发送的命令数, 按助记符分类",
		},
		[]string{"command"},
	)

	BytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hm8143_bytes_written_total",
		Help: "写入串口的字节总数",
	})

	BytesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hm8143_bytes_read_total",
		Help: "从串口读取的字节总数",
	})

	// 错误指标
	TransportErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hm8143_transport_errors_total",
			Help: "传输层错误数",
		},
		[]string{"op"},
	)

	ReadTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hm8143_read_timeouts_total",
		Help: "查询响应超时次数",
	})

	PollErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hm8143_poll_errors_total",
		Help: "轮询读数失败次数",
	})

	// 延迟指标
	ResponseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hm8143_response_duration_seconds",
		Help:    "等待响应行的耗时",
		Buckets: prometheus.DefBuckets,
	})

	// 最近一次读数
	ChannelReading = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hm8143_channel_reading",
			Help: "最近一次轮询到的通道读数",
		},
		[]string{"channel", "quantity", "kind"},
	)

	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hm8143_goroutines",
		Help: "当前Goroutine数量",
	})

	MemoryUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hm8143_memory_usage_bytes",
		Help: "内存使用量",
	})
)

var registerOnce sync.Once

type Monitor struct {
	log *logrus.Logger
}

func NewMonitor(log *logrus.Logger) *Monitor {
	// 注册指标
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CommandsSent,
			BytesWritten,
			BytesRead,
			TransportErrors,
			ReadTimeouts,
			PollErrors,
			ResponseDuration,
			ChannelReading,
			GoroutineCount,
			MemoryUsage,
		)
	})

	return &Monitor{log: log}
}

// Handler 返回 /metrics 和 /health 路由
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	// 健康检查端点
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// StartMetricsServer 启动Metrics HTTP服务器
func (m *Monitor) StartMetricsServer(port int) *http.Server {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: m.Handler()}
	m.log.Infof("Metrics服务器启动: %s", addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.log.Errorf("Metrics服务器错误: %v", err)
		}
	}()
	return srv
}

// StartRuntimeMonitor 启动运行时监控, 调用返回的函数停止
func (m *Monitor) StartRuntimeMonitor(interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			GoroutineCount.Set(float64(runtime.NumGoroutine()))

			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			MemoryUsage.Set(float64(memStats.Alloc))

			m.log.Debugf("Goroutines: %d, 内存: %.2f MB",
				runtime.NumGoroutine(),
				float64(memStats.Alloc)/1024/1024,
			)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
