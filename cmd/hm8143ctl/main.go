package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/timengelbracht/Hameg-HM8143/internal/config"
	"github.com/timengelbracht/Hameg-HM8143/internal/controller"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

func main() {
	// 命令行参数
	configFile := flag.String("config", "configs/config.yaml", "配置文件路径 (.yaml 或 .toml)")
	mode := flag.String("mode", controller.ModeID, "运行模式: "+strings.Join(controller.Modes, ", "))
	port := flag.String("port", "", "串口, 覆盖配置文件")
	baud := flag.Int("baud", 0, "波特率 (4800, 9600, 19200), 覆盖配置文件")
	showVersion := flag.Bool("version", false, "显示版本信息")
	flag.Parse()

	// 显示版本
	if *showVersion {
		fmt.Printf("HM8143 Controller v%s (Build: %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// 加载配置
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		cfg = config.GetDefaultConfig()
		fmt.Println("使用默认配置")
	}
	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "配置无效: %v\n", err)
		os.Exit(2)
	}

	// 初始化日志
	log := setupLogger(cfg.Log)
	log.Infof("HM8143 Controller v%s 启动中...", Version)
	log.Infof("配置文件: %s", *configFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl, err := controller.NewController(ctx, cfg, log)
	if err != nil {
		log.Fatalf("连接仪器失败: %v", err)
	}
	ctrl.HandleSignals(cancel)

	if err := ctrl.Run(ctx, *mode); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
}

func setupLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()

	// 设置日志级别
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	// 设置日志格式
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	// 设置输出
	if cfg.Output == "file" && cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Warnf("打开日志文件失败: %v, 使用标准输出", err)
		}
	}

	return log
}
