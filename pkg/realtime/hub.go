package realtime

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const connBufferSize = 32

// Conn 一个在线连接
type Conn struct {
	id     string
	userID string
	groups []string
	ch     chan Event
}

// ID 连接标识
func (c *Conn) ID() string { return c.id }

// Events 事件通道，连接注销后关闭
func (c *Conn) Events() <-chan Event { return c.ch }

// Hub 进程内连接注册表
// 每个用户只记录最近一次注册的连接用于定向推送；组与广播推送到所有连接
type Hub struct {
	mu     sync.RWMutex
	conns  map[*Conn]struct{}
	users  map[string]*Conn
	groups map[string]map[*Conn]struct{}
	logger *zap.Logger
}

// NewHub 创建 Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		conns:  make(map[*Conn]struct{}),
		users:  make(map[string]*Conn),
		groups: make(map[string]map[*Conn]struct{}),
		logger: logger,
	}
}

// Register 注册连接并加入指定组
func (h *Hub) Register(userID string, groups ...string) *Conn {
	c := &Conn{
		id:     uuid.New().String(),
		userID: userID,
		groups: groups,
		ch:     make(chan Event, connBufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c] = struct{}{}
	h.users[userID] = c
	for _, g := range groups {
		members, ok := h.groups[g]
		if !ok {
			members = make(map[*Conn]struct{})
			h.groups[g] = members
		}
		members[c] = struct{}{}
	}

	h.logger.Debug("实时连接已注册", zap.String("user_id", userID), zap.String("conn_id", c.id))
	return c
}

// Unregister 注销连接并关闭其事件通道，可重复调用
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; !ok {
		return
	}
	delete(h.conns, c)
	if h.users[c.userID] == c {
		delete(h.users, c.userID)
	}
	for _, g := range c.groups {
		delete(h.groups[g], c)
		if len(h.groups[g]) == 0 {
			delete(h.groups, g)
		}
	}
	close(c.ch)

	h.logger.Debug("实时连接已注销", zap.String("user_id", c.userID), zap.String("conn_id", c.id))
}

// Close 注销全部连接，用于进程退出前结束 SSE 长连接
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.Unregister(c)
	}
}

// Online 当前在线连接数
func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// PushToGroup 推送到组内所有连接
func (h *Hub) PushToGroup(group, event string, payload interface{}) {
	ev := Event{Name: event, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.groups[group] {
		h.deliver(c, ev)
	}
}

// PushToUser 推送到用户最近的连接；用户不在线时丢弃
func (h *Hub) PushToUser(userID, event string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.users[userID]; ok {
		h.deliver(c, Event{Name: event, Payload: payload})
	}
}

// Broadcast 推送到所有连接
func (h *Hub) Broadcast(event string, payload interface{}) {
	ev := Event{Name: event, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		h.deliver(c, ev)
	}
}

// deliver 非阻塞写入；调用方需持有读锁
func (h *Hub) deliver(c *Conn, ev Event) {
	select {
	case c.ch <- ev:
	default:
		h.logger.Warn("实时连接缓冲已满，事件丢弃",
			zap.String("user_id", c.userID),
			zap.String("event", ev.Name),
		)
	}
}
