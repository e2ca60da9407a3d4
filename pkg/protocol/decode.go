package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// DecodeResponse 去掉响应行末尾的换行符, 响应内容本身不做解释
func DecodeResponse(raw string) string {
	return strings.TrimRight(raw, "\r\n")
}

// DecodeArbitraryProgram 把 ABT 命令还原为步骤和迭代次数
func DecodeArbitraryProgram(cmd string) (Program, int, error) {
	if !strings.HasPrefix(cmd, ArbitraryPrefix) {
		return nil, 0, fmt.Errorf("protocol: 缺少前缀 %q: %q", ArbitraryPrefix, cmd)
	}
	body := cmd[len(ArbitraryPrefix):]

	n := strings.LastIndexByte(body, ArbitraryIteration)
	if n < 0 {
		return nil, 0, fmt.Errorf("protocol: 缺少迭代次数: %q", cmd)
	}
	iterations, err := strconv.Atoi(body[n+1:])
	if err != nil {
		return nil, 0, fmt.Errorf("protocol: 迭代次数解析失败: %w", err)
	}

	var prog Program
	steps := body[:n]
	for len(steps) > 0 {
		end := strings.IndexByte(steps, ArbitraryStepEnd)
		if end < 2 {
			return nil, 0, fmt.Errorf("protocol: 步骤格式错误: %q", steps)
		}
		d, ok := CodeDuration(steps[0])
		if !ok {
			return nil, 0, invalid(ErrUnsupportedDuration, "字符 %q", steps[0])
		}
		v, err := strconv.ParseFloat(steps[1:end], 64)
		if err != nil {
			return nil, 0, fmt.Errorf("protocol: 电压解析失败: %w", err)
		}
		prog = append(prog, Step{Duration: d, Voltage: v})
		steps = steps[end+1:]
	}

	if err := ValidateProgram(prog, iterations); err != nil {
		return nil, 0, err
	}
	return prog, iterations, nil
}
