// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"clinic-chat-go/internal/config"
	"clinic-chat-go/pkg/events"
	"clinic-chat-go/pkg/log"
	"clinic-chat-go/pkg/metrics"
)

const (
	// maxAttempts 是单条消息的最大处理次数。
	maxAttempts = 3
	// retryBackoff 是重试间隔的基数，第 n 次失败后等待 n*retryBackoff。
	retryBackoff = 500 * time.Millisecond
)

func brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Producer 将聊天事件异步写入 Kafka。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。写入失败只记录日志。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers(cfg)...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				metrics.EventsPublished.WithLabelValues("error").Add(float64(len(messages)))
				log.Errorf("Kafka 消息投递失败: count=%d, err=%v", len(messages), err)
				return
			}
			metrics.EventsPublished.WithLabelValues("ok").Add(float64(len(messages)))
		},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// PublishTurns 投递一组聊天事件。
func (p *Producer) PublishTurns(ctx context.Context, evs ...events.ChatTurnEvent) error {
	msgs := make([]kafka.Message, 0, len(evs))
	for _, ev := range evs {
		b, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal chat event: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(ev.Key()), Value: b})
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close 刷新并关闭 writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// NopPublisher 在未配置 Kafka 时使用。
type NopPublisher struct{}

func (NopPublisher) PublishTurns(context.Context, ...events.ChatTurnEvent) error { return nil }

// TurnHandler 处理一条聊天事件，使消费者与具体的索引实现解耦。
type TurnHandler interface {
	Handle(ctx context.Context, ev events.ChatTurnEvent) error
}

// messageReader 是 Consumer 使用的 *kafka.Reader 子集。
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer 消费聊天事件并交给 TurnHandler。
// 处理失败时在原地重试，成功或放弃之后才提交 offset，保证不会越过失败的消息。
type Consumer struct {
	reader  messageReader
	topic   string
	handler TurnHandler
	rdb     *redis.Client
	backoff time.Duration
}

// NewConsumer 创建消费者。rdb 用于跨重启记录失败次数，可以为 nil。
func NewConsumer(cfg config.KafkaConfig, handler TurnHandler, rdb *redis.Client) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: r, topic: cfg.Topic, handler: handler, rdb: rdb, backoff: retryBackoff}
}

// Run 阻塞消费，直到 ctx 取消或读取失败。
func (c *Consumer) Run(ctx context.Context) {
	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", c.topic)
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}
		if !c.process(ctx, m.Value) {
			// 只有 ctx 取消时才会走到这里，未提交的消息在下次启动时重新投递
			log.Info("Kafka 消费者已停止")
			return
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}

// process 处理一条消息，失败时最多尝试 maxAttempts 次。
// 返回 false 表示 ctx 已取消、消息未处理完，不应提交 offset。
func (c *Consumer) process(ctx context.Context, value []byte) bool {
	var ev events.ChatTurnEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		// 消息格式错误，直接提交，避免阻塞队列
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(value))
		return true
	}

	attemptsKey := fmt.Sprintf("kafka:attempts:%s", ev.EventID)
	attempts := c.priorAttempts(ctx, attemptsKey)
	for attempts < maxAttempts {
		err := c.handler.Handle(ctx, ev)
		if err == nil {
			if c.rdb != nil {
				_ = c.rdb.Del(ctx, attemptsKey).Err()
			}
			return true
		}
		attempts = c.recordFailure(ctx, attemptsKey, attempts)
		log.Errorf("处理聊天事件失败(第 %d 次): event=%s, turn=%d, err=%v", attempts, ev.EventID, ev.TurnID, err)
		if attempts >= maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.backoff * time.Duration(attempts)):
		}
	}

	log.Errorf("聊天事件多次失败(>=%d)，提交 offset 终止重试: event=%s", maxAttempts, ev.EventID)
	if c.rdb != nil {
		_ = c.rdb.Del(ctx, attemptsKey).Err()
	}
	return true
}

// priorAttempts 读取之前运行中记录的失败次数。
func (c *Consumer) priorAttempts(ctx context.Context, key string) int {
	if c.rdb == nil {
		return 0
	}
	n, err := c.rdb.Get(ctx, key).Int()
	if err != nil {
		return 0
	}
	return n
}

// recordFailure 递增失败次数，Redis 不可用时退回本地计数。
func (c *Consumer) recordFailure(ctx context.Context, key string, local int) int {
	local++
	if c.rdb == nil {
		return local
	}
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return local
	}
	_ = c.rdb.Expire(ctx, key, 24*time.Hour).Err()
	if int(n) > local {
		return int(n)
	}
	return local
}
