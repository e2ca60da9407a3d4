package protocol

import (
	"fmt"
	"time"
)

// Channel 输出通道编号
type Channel int

const (
	Channel1 Channel = 1
	Channel2 Channel = 2
)

// Channels 仪器的全部输出通道
var Channels = []Channel{Channel1, Channel2}

// Valid 通道是否为 1 或 2
func (c Channel) Valid() bool {
	return c == Channel1 || c == Channel2
}

func (c Channel) String() string {
	return fmt.Sprintf("CH%d", int(c))
}

// 协议常量
const (
	// 取值范围
	MaxVoltage    = 30.0
	MaxCurrent    = 2.0
	MaxIterations = 255

	// 固定命令
	CmdRemoteOn  = "RM1"
	CmdRemoteOff = "RM0"
	CmdMixedOn   = "MX1"
	CmdMixedOff  = "MX0"
	CmdOutputOn  = "OP1"
	CmdOutputOff = "OP0"
	CmdFuseSet   = "SF"
	CmdFuseClear = "CF"
	CmdStatus    = "STA"
	CmdVersion   = "VER"
	CmdID        = "ID?"
	CmdClear     = "CLR"
	CmdRun       = "RUN"
	CmdStop      = "STP"

	// 任意波形命令
	ArbitraryPrefix    = "ABT:"
	ArbitraryStepEnd   = '_'
	ArbitraryIteration = 'N'

	// 响应行结束符
	LineDelimiter = '\n'
)

// SupportedBaudRates 串口允许的波特率
var SupportedBaudRates = []int{4800, 9600, 19200}

// Step 任意波形中的一步: 持续时间 + 电压
type Step struct {
	Duration time.Duration `json:"duration" yaml:"duration" toml:"duration"`
	Voltage  float64       `json:"voltage" yaml:"voltage" toml:"voltage"`
}

// Program 按执行顺序排列的任意波形
type Program []Step

// Quantity 读数的物理量
type Quantity string

const (
	QuantityVoltage Quantity = "voltage"
	QuantityCurrent Quantity = "current"
)

// Unit 物理量的单位
func (q Quantity) Unit() string {
	switch q {
	case QuantityVoltage:
		return "V"
	case QuantityCurrent:
		return "A"
	default:
		return ""
	}
}

// ReadingKind 目标值或实测值
type ReadingKind string

const (
	KindTarget ReadingKind = "target"
	KindActual ReadingKind = "actual"
)

// Reading 仪器读数
type Reading struct {
	DeviceID  string      `json:"device_id"`
	Timestamp time.Time   `json:"timestamp"`
	Channel   Channel     `json:"channel"`
	Quantity  Quantity    `json:"quantity"`
	Kind      ReadingKind `json:"kind"`
	Value     float64     `json:"value"`
	Unit      string      `json:"unit"`
	Raw       string      `json:"raw,omitempty"`
}

// ParseResult 解析结果
type ParseResult struct {
	Success bool
	Data    *Reading
	Error   error
}
