package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/timengelbracht/Hameg-HM8143/pkg/protocol"
)

func main() {
	kind := flag.String("cmd", "voltage", "命令类型 (voltage, current, track-voltage, track-current, arb)")
	channel := flag.Int("channel", 1, "通道 (1, 2)")
	value := flag.Float64("value", 6.9, "电压(V)或电流(A)")
	steps := flag.String("steps", "1s:20,1ms:15,100ms:2", "任意波形步骤, 格式 时间:电压,...")
	iterations := flag.Int("n", 2, "任意波形迭代次数 (0 = 无限)")
	random := flag.Bool("random", false, "生成随机任意波形")
	count := flag.Int("count", 1, "生成数量")
	flag.Parse()

	for i := 0; i < *count; i++ {
		var (
			cmd string
			err error
		)

		switch {
		case *random:
			cmd, err = protocol.EncodeArbitraryProgram(randomProgram(), rand.Intn(protocol.MaxIterations+1))
		case *kind == "arb":
			var prog protocol.Program
			prog, err = parseSteps(*steps)
			if err == nil {
				cmd, err = protocol.EncodeArbitraryProgram(prog, *iterations)
			}
		default:
			cmd, err = encodeSetpoint(*kind, protocol.Channel(*channel), *value)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "编码失败: %v\n", err)
			os.Exit(1)
		}

		packet := []byte(cmd)
		fmt.Printf("命令 %d:\n", i+1)
		fmt.Printf("  ASCII:    %s\n", cmd)
		fmt.Printf("  十六进制: %s\n", hex.EncodeToString(packet))
		fmt.Printf("  字节数组: % x\n", packet)
		fmt.Printf("  Go格式:   []byte{%s}\n", toGoArray(packet))
		parseAndDisplay(cmd)
		fmt.Println()
	}
}

func encodeSetpoint(kind string, ch protocol.Channel, v float64) (string, error) {
	switch kind {
	case "voltage":
		return protocol.EncodeSetVoltage(ch, v)
	case "current":
		return protocol.EncodeSetCurrent(ch, v)
	case "track-voltage":
		return protocol.EncodeSetVoltageTracking(v)
	case "track-current":
		return protocol.EncodeSetCurrentTracking(v)
	default:
		return "", fmt.Errorf("未知命令类型: %s", kind)
	}
}

// parseSteps 解析 "1s:20,1ms:15" 形式的步骤列表
func parseSteps(s string) (protocol.Program, error) {
	var prog protocol.Program
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("步骤格式错误: %q", item)
		}
		d, err := time.ParseDuration(parts[0])
		if err != nil {
			return nil, fmt.Errorf("时间格式错误 %q: %w", parts[0], err)
		}
		v, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("电压格式错误 %q: %w", parts[1], err)
		}
		prog = append(prog, protocol.Step{Duration: d, Voltage: v})
	}
	return prog, nil
}

// randomProgram 生成 1~8 步的随机任意波形
func randomProgram() protocol.Program {
	durations := protocol.SupportedDurations()
	prog := make(protocol.Program, 1+rand.Intn(8))
	for i := range prog {
		prog[i] = protocol.Step{
			Duration: durations[rand.Intn(len(durations))],
			Voltage:  float64(rand.Intn(3001)) / 100,
		}
	}
	return prog
}

// parseAndDisplay 解析并显示任意波形命令内容
func parseAndDisplay(cmd string) {
	if !strings.HasPrefix(cmd, protocol.ArbitraryPrefix) {
		fmt.Printf("  助记符:   %s\n", protocol.Mnemonic(cmd))
		return
	}

	prog, n, err := protocol.DecodeArbitraryProgram(cmd)
	if err != nil {
		fmt.Printf("  错误: %v\n", err)
		return
	}

	fmt.Printf("  解析结果:\n")
	for i, step := range prog {
		code, _ := protocol.DurationCode(step.Duration)
		fmt.Printf("    步骤 %d:  %c = %-6v %6.2f V\n", i+1, code, step.Duration, step.Voltage)
	}
	if n == 0 {
		fmt.Printf("    迭代:     无限\n")
	} else {
		fmt.Printf("    迭代:     %d\n", n)
	}
}

func toGoArray(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("0x%02X", b)
	}
	return strings.Join(parts, ", ")
}
