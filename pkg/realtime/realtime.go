// Package realtime 提供尽力而为的实时事件推送。
//
// 推送不重试、不排队：客户端离线时直接丢弃，重连后通过通知列表补齐。
// 单进程部署使用 Hub；多进程部署使用 RedisBroker 经 Redis 频道转发到各进程的本地 Hub。
package realtime

// GroupManagers 管理员与经理所在的广播组
const GroupManagers = "managers"

// 事件名
const (
	EventNewLeaveRequest   = "newLeaveRequest"
	EventLeaveStatusUpdate = "leaveStatusUpdate"
	EventNotificationRead  = "notificationRead"
)

// Event 推送给客户端的事件
type Event struct {
	Name    string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Publisher 推送接口，所有方法均不阻塞、无返回值
type Publisher interface {
	PushToGroup(group, event string, payload interface{})
	PushToUser(userID, event string, payload interface{})
	Broadcast(event string, payload interface{})
}

// Nop 丢弃所有事件
type Nop struct{}

func (Nop) PushToGroup(string, string, interface{}) {}
func (Nop) PushToUser(string, string, interface{})  {}
func (Nop) Broadcast(string, interface{})           {}
