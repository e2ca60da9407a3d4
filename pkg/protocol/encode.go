package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// formatFixed 把电压或电流格式化为两位整数两位小数, 例如 6.9 -> "06.90"
func formatFixed(v float64) string {
	// -0 会被格式化成 "-0.00"
	if v == 0 {
		v = 0
	}
	return fmt.Sprintf("%05.2f", v)
}

func inRange(v, max float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= max
}

// ValidateChannel 检查通道编号
func ValidateChannel(ch Channel) error {
	if !ch.Valid() {
		return invalid(ErrInvalidChannel, "%d 不在 {1, 2} 中", int(ch))
	}
	return nil
}

// ValidateVoltage 检查电压是否在 [0, 30] V
func ValidateVoltage(v float64) error {
	if !inRange(v, MaxVoltage) {
		return invalid(ErrVoltageOutOfRange, "%v V 不在 [0, %v] 中", v, MaxVoltage)
	}
	return nil
}

// ValidateCurrent 检查电流是否在 [0, 2] A
func ValidateCurrent(c float64) error {
	if !inRange(c, MaxCurrent) {
		return invalid(ErrCurrentOutOfRange, "%v A 不在 [0, %v] 中", c, MaxCurrent)
	}
	return nil
}

// ValidateIterations 检查任意波形的迭代次数, 0 表示无限循环
func ValidateIterations(n int) error {
	if n < 0 || n > MaxIterations {
		return invalid(ErrInvalidIterations, "%d 不在 [0, %d] 中", n, MaxIterations)
	}
	return nil
}

// ValidateBaud 检查波特率是否在允许列表中
func ValidateBaud(baud int) error {
	for _, b := range SupportedBaudRates {
		if b == baud {
			return nil
		}
	}
	return invalid(ErrUnsupportedBaud, "%d, 可选 %v", baud, SupportedBaudRates)
}

// ValidateProgram 在编码之前检查整个任意波形
func ValidateProgram(prog Program, iterations int) error {
	if err := ValidateIterations(iterations); err != nil {
		return err
	}
	for i, step := range prog {
		if err := ValidateVoltage(step.Voltage); err != nil {
			return fmt.Errorf("第 %d 步: %w", i, err)
		}
		if _, ok := DurationCode(step.Duration); !ok {
			return fmt.Errorf("第 %d 步: %w",
				i, invalid(ErrUnsupportedDuration, "%v, 可选 %v", step.Duration, SupportedDurations()))
		}
	}
	return nil
}

// EncodeSetVoltage 编码 SU{ch}:{VV.VV}
func EncodeSetVoltage(ch Channel, v float64) (string, error) {
	if err := ValidateChannel(ch); err != nil {
		return "", err
	}
	if err := ValidateVoltage(v); err != nil {
		return "", err
	}
	return fmt.Sprintf("SU%d:%s", int(ch), formatFixed(v)), nil
}

// EncodeSetVoltageTracking 编码跟踪模式电压 TRU:{VV.VV}
func EncodeSetVoltageTracking(v float64) (string, error) {
	if err := ValidateVoltage(v); err != nil {
		return "", err
	}
	return "TRU:" + formatFixed(v), nil
}

// EncodeSetCurrent 编码 SI{ch}:{AA.AA}
func EncodeSetCurrent(ch Channel, c float64) (string, error) {
	if err := ValidateChannel(ch); err != nil {
		return "", err
	}
	if err := ValidateCurrent(c); err != nil {
		return "", err
	}
	return fmt.Sprintf("SI%d:%s", int(ch), formatFixed(c)), nil
}

// EncodeSetCurrentTracking 编码跟踪模式电流 TRI:{AA.AA}
func EncodeSetCurrentTracking(c float64) (string, error) {
	if err := ValidateCurrent(c); err != nil {
		return "", err
	}
	return "TRI:" + formatFixed(c), nil
}

func encodeChannelQuery(prefix string, ch Channel) (string, error) {
	if err := ValidateChannel(ch); err != nil {
		return "", err
	}
	return prefix + strconv.Itoa(int(ch)), nil
}

// EncodeTargetVoltage 查询目标电压 RU{ch}
func EncodeTargetVoltage(ch Channel) (string, error) {
	return encodeChannelQuery("RU", ch)
}

// EncodeTargetCurrent 查询目标电流 RI{ch}
func EncodeTargetCurrent(ch Channel) (string, error) {
	return encodeChannelQuery("RI", ch)
}

// EncodeActualVoltage 查询实测电压 MU{ch}
func EncodeActualVoltage(ch Channel) (string, error) {
	return encodeChannelQuery("MU", ch)
}

// EncodeActualCurrent 查询实测电流 MI{ch}
func EncodeActualCurrent(ch Channel) (string, error) {
	return encodeChannelQuery("MI", ch)
}

// EncodeArbitraryProgram 编码任意波形加载命令:
//
//	ABT:{code}{VV.VV}_{code}{VV.VV}_...N{iterations}
//
// 全部步骤校验通过后才开始拼接, 不会返回残缺的命令.
func EncodeArbitraryProgram(prog Program, iterations int) (string, error) {
	if err := ValidateProgram(prog, iterations); err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(ArbitraryPrefix) + len(prog)*7 + 4)
	b.WriteString(ArbitraryPrefix)
	for _, step := range prog {
		code, _ := DurationCode(step.Duration)
		b.WriteByte(code)
		b.WriteString(formatFixed(step.Voltage))
		b.WriteByte(ArbitraryStepEnd)
	}
	b.WriteByte(ArbitraryIteration)
	b.WriteString(strconv.Itoa(iterations))
	return b.String(), nil
}

// RunSequence 启动任意波形: 先打开输出, 再 RUN
func RunSequence() []string {
	return []string{CmdOutputOn, CmdRun}
}

// StopSequence 停止任意波形: 先 STP, 再关闭输出
func StopSequence() []string {
	return []string{CmdStop, CmdOutputOff}
}

// Mnemonic 返回命令助记符, 用作监控标签, 例如 "SU1:06.90" -> "SU"
func Mnemonic(cmd string) string {
	for i := 0; i < len(cmd); i++ {
		c := cmd[i]
		if c == ':' || (c >= '0' && c <= '9') {
			if i == 0 {
				break
			}
			return cmd[:i]
		}
	}
	return cmd
}
