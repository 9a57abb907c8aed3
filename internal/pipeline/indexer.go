// Package pipeline 负责处理从 Kafka 消费到的聊天事件。
package pipeline

import (
	"context"
	"fmt"

	"clinic-chat-go/internal/model"
	"clinic-chat-go/pkg/events"
	"clinic-chat-go/pkg/log"
	"clinic-chat-go/pkg/metrics"
)

// TurnIndexer 由 *es.Client 实现。
type TurnIndexer interface {
	IndexTurn(ctx context.Context, doc model.ChatTurnDocument) error
}

// Indexer 将聊天事件写入搜索索引。
type Indexer struct {
	index TurnIndexer
}

// NewIndexer 创建一个新的 Indexer。
func NewIndexer(index TurnIndexer) *Indexer {
	return &Indexer{index: index}
}

// Handle 实现 kafka.TurnHandler。
func (i *Indexer) Handle(ctx context.Context, ev events.ChatTurnEvent) error {
	if ev.TurnID == 0 {
		log.Warnf("[Indexer] 忽略缺少 turn_id 的事件: %s", ev.EventID)
		return nil
	}
	if err := i.index.IndexTurn(ctx, ev.Document()); err != nil {
		metrics.TurnsIndexed.WithLabelValues("error").Inc()
		return fmt.Errorf("index turn %d: %w", ev.TurnID, err)
	}
	metrics.TurnsIndexed.WithLabelValues("ok").Inc()
	log.Infow("[Indexer] 聊天记录已写入索引", "turnId", ev.TurnID, "patientId", ev.PatientID)
	return nil
}
