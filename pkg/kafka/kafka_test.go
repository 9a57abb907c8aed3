package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-chat-go/internal/config"
	"clinic-chat-go/pkg/events"
)

// stubHandler 记录处理过的 turn，fail 决定第 n 次处理某个 turn 时是否失败。
type stubHandler struct {
	mu    sync.Mutex
	turns []uint
	seen  map[uint]int
	fail  func(ev events.ChatTurnEvent, n int) error
}

func (s *stubHandler) Handle(_ context.Context, ev events.ChatTurnEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = map[uint]int{}
	}
	s.seen[ev.TurnID]++
	s.turns = append(s.turns, ev.TurnID)
	if s.fail != nil {
		return s.fail(ev, s.seen[ev.TurnID])
	}
	return nil
}

func (s *stubHandler) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

func alwaysFail(events.ChatTurnEvent, int) error { return errors.New("es down") }

func encode(t *testing.T, ev events.ChatTurnEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestConsumerProcess_Success(t *testing.T) {
	mr, rdb := newRedis(t)
	h := &stubHandler{}
	c := &Consumer{handler: h, rdb: rdb}

	assert.True(t, c.process(context.Background(), encode(t, events.ChatTurnEvent{EventID: "e1", TurnID: 1})))
	assert.Equal(t, 1, h.calls())
	assert.False(t, mr.Exists("kafka:attempts:e1"))
}

func TestConsumerProcess_MalformedIsCommitted(t *testing.T) {
	h := &stubHandler{}
	c := &Consumer{handler: h}

	assert.True(t, c.process(context.Background(), []byte("{not json")))
	assert.Zero(t, h.calls())
}

func TestConsumerProcess_RetriesInPlaceThenGivesUp(t *testing.T) {
	mr, rdb := newRedis(t)
	h := &stubHandler{fail: alwaysFail}
	c := &Consumer{handler: h, rdb: rdb}

	assert.True(t, c.process(context.Background(), encode(t, events.ChatTurnEvent{EventID: "e2", TurnID: 2})))
	assert.Equal(t, []uint{2, 2, 2}, h.turns)
	assert.False(t, mr.Exists("kafka:attempts:e2"))
}

func TestConsumerProcess_RecoversOnRetry(t *testing.T) {
	mr, rdb := newRedis(t)
	h := &stubHandler{fail: func(_ events.ChatTurnEvent, n int) error {
		if n < 2 {
			return errors.New("es busy")
		}
		return nil
	}}
	c := &Consumer{handler: h, rdb: rdb}

	assert.True(t, c.process(context.Background(), encode(t, events.ChatTurnEvent{EventID: "e3", TurnID: 3})))
	assert.Equal(t, 2, h.calls())
	assert.False(t, mr.Exists("kafka:attempts:e3"))
}

func TestConsumerProcess_WithoutRedisStillRetries(t *testing.T) {
	h := &stubHandler{fail: alwaysFail}
	c := &Consumer{handler: h}

	assert.True(t, c.process(context.Background(), encode(t, events.ChatTurnEvent{EventID: "e4", TurnID: 4})))
	assert.Equal(t, maxAttempts, h.calls())
}

func TestConsumerProcess_ResumesAttemptsFromRedis(t *testing.T) {
	mr, rdb := newRedis(t)
	require.NoError(t, mr.Set("kafka:attempts:e5", "2"))
	h := &stubHandler{fail: alwaysFail}
	c := &Consumer{handler: h, rdb: rdb}

	assert.True(t, c.process(context.Background(), encode(t, events.ChatTurnEvent{EventID: "e5", TurnID: 5})))
	assert.Equal(t, 1, h.calls())
}

func TestConsumerProcess_CancelDuringBackoffLeavesUncommitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &stubHandler{fail: func(events.ChatTurnEvent, int) error {
		cancel()
		return errors.New("es down")
	}}
	c := &Consumer{handler: h, backoff: time.Hour}

	assert.False(t, c.process(ctx, encode(t, events.ChatTurnEvent{EventID: "e6", TurnID: 6})))
	assert.Equal(t, 1, h.calls())
}

// fakeReader 依次返回 msgs，读完后返回 io.EOF。
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
	// handledAtCommit 记录每次提交时处理器已被调用的次数
	handledAtCommit []int
	handler         *stubHandler
	closed          bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(f.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	f.handledAtCommit = append(f.handledAtCommit, f.handler.calls())
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestConsumerRun_RetriesFailedMessageBeforeMovingOn(t *testing.T) {
	_, rdb := newRedis(t)
	h := &stubHandler{fail: func(ev events.ChatTurnEvent, _ int) error {
		if ev.TurnID == 1 {
			return errors.New("es down")
		}
		return nil
	}}
	a := kafka.Message{Offset: 10, Value: encode(t, events.ChatTurnEvent{EventID: "a", TurnID: 1})}
	b := kafka.Message{Offset: 11, Value: encode(t, events.ChatTurnEvent{EventID: "b", TurnID: 2})}
	reader := &fakeReader{msgs: []kafka.Message{a, b}, handler: h}
	c := &Consumer{reader: reader, topic: "chat-turns", handler: h, rdb: rdb}

	c.Run(context.Background())

	assert.Equal(t, []uint{1, 1, 1, 2}, h.turns, "failed turn is retried before the next message is fetched")
	require.Len(t, reader.committed, 2)
	assert.Equal(t, int64(10), reader.committed[0].Offset)
	assert.Equal(t, int64(11), reader.committed[1].Offset)
	assert.Equal(t, []int{3, 4}, reader.handledAtCommit)
	assert.True(t, reader.closed)
}

func TestConsumerRun_RecoveredMessageIsCommittedInOrder(t *testing.T) {
	h := &stubHandler{fail: func(ev events.ChatTurnEvent, n int) error {
		if ev.TurnID == 1 && n == 1 {
			return errors.New("es busy")
		}
		return nil
	}}
	a := kafka.Message{Offset: 1, Value: encode(t, events.ChatTurnEvent{EventID: "a", TurnID: 1})}
	b := kafka.Message{Offset: 2, Value: encode(t, events.ChatTurnEvent{EventID: "b", TurnID: 2})}
	reader := &fakeReader{msgs: []kafka.Message{a, b}, handler: h}
	c := &Consumer{reader: reader, handler: h}

	c.Run(context.Background())

	assert.Equal(t, []uint{1, 1, 2}, h.turns)
	assert.Equal(t, []int{2, 3}, reader.handledAtCommit)
}

func TestConsumerRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := &stubHandler{}
	reader := &fakeReader{msgs: []kafka.Message{{Value: encode(t, events.ChatTurnEvent{EventID: "a", TurnID: 1})}}, handler: h}
	c := &Consumer{reader: reader, handler: h}

	c.Run(ctx)

	assert.Zero(t, h.calls())
	assert.Empty(t, reader.committed)
	assert.True(t, reader.closed)
}

func TestBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, brokers(config.KafkaConfig{Brokers: " a:9092, ,b:9092"}))
	assert.Nil(t, brokers(config.KafkaConfig{}))
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishTurns(context.Background(), events.ChatTurnEvent{}))
}
