package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/timengelbracht/Hameg-HM8143/pkg/protocol"
)

// ReadingPublisher 把读数发布到 Redis Pub/Sub 频道, 不做持久化
type ReadingPublisher struct {
	client  *redis.Client
	channel string
	log     *logrus.Logger
}

func NewReadingPublisher(ctx context.Context, addr, password, channel string, db int, poolSize int, log *logrus.Logger) (*ReadingPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}

	log.Info("Redis连接成功")

	return &ReadingPublisher{
		client:  client,
		channel: channel,
		log:     log,
	}, nil
}

// EncodeReading 序列化读数
func EncodeReading(r *protocol.Reading) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("序列化数据失败: %w", err)
	}
	return data, nil
}

// PublishBatch 用 pipeline 发布一轮读数, 每条读数一条消息
func (p *ReadingPublisher) PublishBatch(ctx context.Context, readings []*protocol.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	pipe := p.client.Pipeline()

	for _, r := range readings {
		data, err := EncodeReading(r)
		if err != nil {
			p.log.Errorf("序列化数据失败: %v", err)
			continue
		}
		pipe.Publish(ctx, p.channel, data)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("发布消息失败: %w", err)
	}
	return nil
}

// Close 关闭连接
func (p *ReadingPublisher) Close() error {
	return p.client.Close()
}
