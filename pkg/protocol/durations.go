package protocol

import (
	"fmt"
	"time"
)

type durationCode struct {
	duration time.Duration
	code     byte
}

// 任意波形步长时间与命令字符的对照表
var durationTable = [...]durationCode{
	{100 * time.Microsecond, '0'},
	{1 * time.Millisecond, '1'},
	{2 * time.Millisecond, '2'},
	{5 * time.Millisecond, '3'},
	{10 * time.Millisecond, '4'},
	{20 * time.Millisecond, '5'},
	{50 * time.Millisecond, '6'},
	{100 * time.Millisecond, '7'},
	{200 * time.Millisecond, '8'},
	{500 * time.Millisecond, '9'},
	{1 * time.Second, 'A'},
	{2 * time.Second, 'B'},
	{5 * time.Second, 'C'},
	{10 * time.Second, 'D'},
	{20 * time.Second, 'E'},
	{50 * time.Second, 'F'},
}

var (
	codeByDuration map[time.Duration]byte
	durationByCode map[byte]time.Duration
)

func init() {
	var err error
	codeByDuration, durationByCode, err = buildDurationIndex(durationTable[:])
	if err != nil {
		panic(err)
	}
}

// buildDurationIndex 建立双向索引, 任何重复的时间或字符都是表定义错误
func buildDurationIndex(table []durationCode) (map[time.Duration]byte, map[byte]time.Duration, error) {
	byDuration := make(map[time.Duration]byte, len(table))
	byCode := make(map[byte]time.Duration, len(table))
	for _, e := range table {
		if c, ok := byDuration[e.duration]; ok {
			return nil, nil, fmt.Errorf("protocol: 时间 %v 重复映射到 %q 和 %q", e.duration, c, e.code)
		}
		if d, ok := byCode[e.code]; ok {
			return nil, nil, fmt.Errorf("protocol: 字符 %q 重复映射到 %v 和 %v", e.code, d, e.duration)
		}
		byDuration[e.duration] = e.code
		byCode[e.code] = e.duration
	}
	return byDuration, byCode, nil
}

// DurationCode 返回时间对应的命令字符
func DurationCode(d time.Duration) (byte, bool) {
	c, ok := codeByDuration[d]
	return c, ok
}

// CodeDuration 返回命令字符对应的时间
func CodeDuration(c byte) (time.Duration, bool) {
	d, ok := durationByCode[c]
	return d, ok
}

// SupportedDurations 按从短到长返回所有支持的步长时间
func SupportedDurations() []time.Duration {
	out := make([]time.Duration, len(durationTable))
	for i, e := range durationTable {
		out[i] = e.duration
	}
	return out
}
