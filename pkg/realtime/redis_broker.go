package realtime

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

const (
	defaultChannel = "staffdesk:realtime"
	publishTimeout = 2 * time.Second
	queueSize      = 256
)

const (
	targetGroup     = "group"
	targetUser      = "user"
	targetBroadcast = "broadcast"
)

// envelope Redis 频道上的消息格式
type envelope struct {
	Target  string          `json:"target"`
	Key     string          `json:"key,omitempty"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PubSub RedisBroker 依赖的发布订阅能力，由 *redis.Client 实现
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error
}

// RedisBroker 经 Redis 发布订阅在多个进程间转发事件，
// 每个进程收到后交给本地 Hub 投递。
// 推送方法只把消息放入有界队列，由 Start 启动的协程串行发布。
type RedisBroker struct {
	client  PubSub
	local   *Hub
	channel string
	queue   chan []byte
	logger  *zap.Logger
}

// NewRedisBroker 创建 RedisBroker
func NewRedisBroker(client PubSub, local *Hub, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{
		client:  client,
		local:   local,
		channel: defaultChannel,
		queue:   make(chan []byte, queueSize),
		logger:  logger,
	}
}

// Start 订阅频道并启动发布协程，ctx 取消时两者都停止
func (b *RedisBroker) Start(ctx context.Context) error {
	if err := b.client.Subscribe(ctx, b.channel, b.dispatch); err != nil {
		return err
	}
	go b.drain(ctx)
	return nil
}

func (b *RedisBroker) PushToGroup(group, event string, payload interface{}) {
	b.enqueue(envelope{Target: targetGroup, Key: group, Event: event}, payload)
}

func (b *RedisBroker) PushToUser(userID, event string, payload interface{}) {
	b.enqueue(envelope{Target: targetUser, Key: userID, Event: event}, payload)
}

func (b *RedisBroker) Broadcast(event string, payload interface{}) {
	b.enqueue(envelope{Target: targetBroadcast, Event: event}, payload)
}

// enqueue 非阻塞入队，队列满时丢弃
func (b *RedisBroker) enqueue(env envelope, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn("实时事件序列化失败", zap.String("event", env.Event), zap.Error(err))
		return
	}
	env.Payload = raw

	msg, err := json.Marshal(env)
	if err != nil {
		b.logger.Warn("实时事件封装失败", zap.String("event", env.Event), zap.Error(err))
		return
	}

	select {
	case b.queue <- msg:
	default:
		b.logger.Warn("实时发布队列已满，事件丢弃", zap.String("event", env.Event))
	}
}

func (b *RedisBroker) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.queue:
			b.publish(ctx, msg)
		}
	}
}

// publish 发布失败时退化为仅本进程投递
func (b *RedisBroker) publish(ctx context.Context, msg []byte) {
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := b.client.Publish(pctx, b.channel, msg); err != nil {
		b.logger.Warn("Redis 发布失败，仅本地投递", zap.Error(err))
		b.dispatch(msg)
	}
}

// dispatch 处理频道消息
func (b *RedisBroker) dispatch(msg []byte) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		b.logger.Warn("忽略无法解析的实时消息", zap.Error(err))
		return
	}

	switch env.Target {
	case targetGroup:
		b.local.PushToGroup(env.Key, env.Event, env.Payload)
	case targetUser:
		b.local.PushToUser(env.Key, env.Event, env.Payload)
	case targetBroadcast:
		b.local.Broadcast(env.Event, env.Payload)
	default:
		b.logger.Warn("未知的实时消息目标", zap.String("target", env.Target))
	}
}
