package controller

import "github.com/timengelbracht/Hameg-HM8143/pkg/protocol"

const (
	sweepMin         = 1.0
	sweepCurrentStep = 0.06
)

// SweepPoint 扫描中的一组设定值
type SweepPoint struct {
	Voltage1, Current1 float64
	Voltage2, Current2 float64
}

// SweepPoints 在 [1, 30] V 上均匀取 n 个点.
// 通道1: U = u, I = 0.06u; 通道2: U = 30 - u, I = 2 - 0.06u.
func SweepPoints(n int) []SweepPoint {
	if n < 1 {
		return nil
	}
	points := make([]SweepPoint, n)
	for k := range points {
		u := sweepMin
		if n > 1 {
			u = sweepMin + (protocol.MaxVoltage-sweepMin)*float64(k)/float64(n-1)
		}
		points[k] = SweepPoint{
			Voltage1: clamp(u, protocol.MaxVoltage),
			Current1: clamp(u*sweepCurrentStep, protocol.MaxCurrent),
			Voltage2: clamp(protocol.MaxVoltage-u, protocol.MaxVoltage),
			Current2: clamp(protocol.MaxCurrent-u*sweepCurrentStep, protocol.MaxCurrent),
		}
	}
	return points
}

func clamp(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
