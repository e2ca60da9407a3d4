package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/timengelbracht/Hameg-HM8143/pkg/protocol"
)

// Parser 把查询响应文本解析为读数
type Parser struct {
	now func() time.Time
}

func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// Parse 解析一行响应, 例如 "U1:12.00V", "I2:+0.500A", "500mA" 或 "05.00"
func (p *Parser) Parse(deviceID string, ch protocol.Channel, q protocol.Quantity, kind protocol.ReadingKind, line string) *protocol.ParseResult {
	result := &protocol.ParseResult{
		Success: false,
	}

	value, err := ParseValue(q, line)
	if err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	result.Data = &protocol.Reading{
		DeviceID:  deviceID,
		Timestamp: p.now(),
		Channel:   ch,
		Quantity:  q,
		Kind:      kind,
		Value:     value,
		Unit:      q.Unit(),
		Raw:       line,
	}
	return result
}

// ParseValue 提取数值并换算到基本单位 (V 或 A)
func ParseValue(q protocol.Quantity, line string) (float64, error) {
	s := strings.TrimSpace(protocol.DecodeResponse(line))
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}

	scale := 1.0
	if unit := q.Unit(); unit != "" {
		if strings.HasSuffix(strings.ToUpper(s), unit) {
			s = strings.TrimSpace(s[:len(s)-len(unit)])
			if strings.HasSuffix(s, "m") {
				s = s[:len(s)-1]
				scale = 1e-3
			}
		}
	}
	s = strings.TrimPrefix(s, "+")

	if s == "" {
		return 0, fmt.Errorf("响应中没有数值: %q", line)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("数值解析失败 %q: %w", line, err)
	}
	return v * scale, nil
}
