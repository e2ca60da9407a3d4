package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/timengelbracht/Hameg-HM8143/internal/session"
	"github.com/timengelbracht/Hameg-HM8143/internal/transport"
	"github.com/timengelbracht/Hameg-HM8143/pkg/protocol"
)

// 连接真实仪器的冒烟测试: 读 ID, 设置通道1, 读回目标值和实测值
func main() {
	port := flag.String("port", "/dev/ttyUSB0", "串口")
	baud := flag.Int("baud", 9600, "波特率")
	volts := flag.Float64("voltage", 6.9, "通道1电压")
	amps := flag.Float64("current", 0.42, "通道1电流")
	flag.Parse()

	tr, err := transport.OpenSerial(transport.SerialConfig{Port: *port, Baud: *baud})
	if err != nil {
		log.Fatalf("打开串口失败: %v", err)
	}
	s := session.Open(tr, nil)
	defer s.Close()

	fmt.Printf("已连接到: %s @ %d\n", *port, *baud)

	id, err := s.ID()
	if err != nil {
		log.Fatalf("读取ID失败: %v", err)
	}
	fmt.Printf("ID: %s\n", id)

	steps := []struct {
		name string
		run  func() error
	}{
		{"远程控制", s.StartRemoteControl},
		{"设置电压", func() error { return s.SetVoltage(protocol.Channel1, *volts) }},
		{"设置电流", func() error { return s.SetCurrent(protocol.Channel1, *amps) }},
		{"打开输出", s.EnableOutputSockets},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			log.Fatalf("%s失败: %v", step.name, err)
		}
		fmt.Printf("[%s] 完成\n", step.name)
		time.Sleep(100 * time.Millisecond)
	}

	for _, ch := range protocol.Channels {
		target, err := s.TargetVoltage(ch)
		if err != nil {
			log.Printf("%s 目标电压读取失败: %v", ch, err)
			continue
		}
		actual, err := s.ActualVoltage(ch)
		if err != nil {
			log.Printf("%s 实测电压读取失败: %v", ch, err)
			continue
		}
		fmt.Printf("%s 目标: %s 实测: %s\n", ch, target, actual)
	}

	if err := s.DisableOutputSockets(); err != nil {
		log.Printf("关闭输出失败: %v", err)
	}
	if err := s.EndRemoteControl(); err != nil {
		log.Printf("退出远程控制失败: %v", err)
	}
	fmt.Println("测试完成")
}
