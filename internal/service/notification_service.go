package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"staffdesk/internal/dto"
	"staffdesk/internal/model"
	"staffdesk/internal/repository"
	"staffdesk/pkg/realtime"
)

// ── 通知模块业务错误 ──

var ErrNotificationNotFound = errors.New("通知不存在")

// ════════════════════════════════════════════════════════════
// Notifier 请假事件的通知扇出
// ════════════════════════════════════════════════════════════
//
// 每个事件先为每个接收人写一行通知，再尽力推送实时事件。
// 写入失败只记日志，不影响已提交（或正在提交）的业务操作；推送不重试。

type Notifier struct {
	pub    realtime.Publisher
	clock  Clock
	logger *zap.Logger
}

// NewNotifier 创建 Notifier
func NewNotifier(pub realtime.Publisher, clock Clock, logger *zap.Logger) *Notifier {
	if pub == nil {
		pub = realtime.Nop{}
	}
	return &Notifier{pub: pub, clock: clock, logger: logger}
}

// OnSubmit 新申请：为全部管理员与经理各写一条 leave_request 通知，并推送到 managers 组
func (n *Notifier) OnSubmit(ctx context.Context, repo *repository.Repository, req *model.LeaveRequest, requesterName string) {
	approvers, err := repo.User.ListApprovers(ctx)
	if err != nil {
		n.logger.Error("查询审批人失败，跳过通知写入",
			zap.String("leave_request_id", req.LeaveRequestID), zap.Error(err))
	} else {
		data := model.JSONMap{
			"leaveRequestId": req.LeaveRequestID,
			"employeeId":     req.EmployeeID,
			"employeeName":   requesterName,
			"leaveType":      string(req.LeaveType),
			"startDate":      req.StartDate.String(),
			"endDate":        req.EndDate.String(),
			"days":           req.Days,
		}
		relatedID := req.LeaveRequestID
		items := make([]model.Notification, 0, len(approvers))
		for _, u := range approvers {
			items = append(items, model.Notification{
				UserID:    u.UserID,
				Type:      model.NotificationLeaveRequest,
				Title:     "新的请假申请",
				Message:   fmt.Sprintf("%s 申请了 %d 天%s", requesterName, req.Days, leaveTypeLabel(req.LeaveType)),
				Data:      data,
				RelatedID: &relatedID,
				Status:    model.NotificationUnread,
			})
		}
		if err := repo.Notification.CreateBatch(ctx, items); err != nil {
			n.logger.Error("写入请假通知失败",
				zap.String("leave_request_id", req.LeaveRequestID),
				zap.Int("recipients", len(items)),
				zap.Error(err))
		}
	}

	n.pub.PushToGroup(realtime.GroupManagers, realtime.EventNewLeaveRequest, map[string]interface{}{
		"id":           req.LeaveRequestID,
		"employeeName": requesterName,
		"leaveType":    string(req.LeaveType),
		"startDate":    req.StartDate.String(),
		"endDate":      req.EndDate.String(),
		"days":         req.Days,
		"reason":       req.Reason,
		"timestamp":    n.clock.now(),
	})
}

// OnDecide 审批结果：为申请人写一条 leave_status 通知。
// 在调用方事务内以 SAVEPOINT 执行，失败只回滚通知本身。
func (n *Notifier) OnDecide(ctx context.Context, repo *repository.Repository, req *model.LeaveRequest, requesterUserID, approverName string) {
	if requesterUserID == "" {
		n.logger.Warn("请假申请缺少申请人账号，跳过审批通知", zap.String("leave_request_id", req.LeaveRequestID))
		return
	}
	relatedID := req.LeaveRequestID
	notification := &model.Notification{
		UserID: requesterUserID,
		Type:   model.NotificationLeaveStatus,
		Title:  decisionTitle(req.Status),
		Message: fmt.Sprintf("你的%s申请（%d 天）已被 %s %s",
			leaveTypeLabel(req.LeaveType), req.Days, approverName, decisionVerb(req.Status)),
		Data: model.JSONMap{
			"leaveRequestId": req.LeaveRequestID,
			"leaveType":      string(req.LeaveType),
			"startDate":      req.StartDate.String(),
			"endDate":        req.EndDate.String(),
			"days":           req.Days,
			"status":         req.Status,
			"approverName":   approverName,
		},
		RelatedID: &relatedID,
		Status:    model.NotificationUnread,
	}

	err := repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		return txRepo.Notification.Create(ctx, notification)
	})
	if err != nil {
		n.logger.Error("写入审批通知失败",
			zap.String("leave_request_id", req.LeaveRequestID),
			zap.String("user_id", requesterUserID),
			zap.Error(err))
	}
}

// PushDecision 推送审批结果：先定向推给申请人，再无差别广播一次供客户端自行过滤
func (n *Notifier) PushDecision(req *model.LeaveRequest, requesterUserID string) {
	payload := map[string]interface{}{
		"leaveRequestId": req.LeaveRequestID,
		"status":         req.Status,
		"employeeId":     requesterUserID,
		"message":        fmt.Sprintf("你的请假申请已%s", decisionVerb(req.Status)),
		"timestamp":      n.clock.now(),
	}
	if requesterUserID != "" {
		n.pub.PushToUser(requesterUserID, realtime.EventLeaveStatusUpdate, payload)
	}
	n.pub.Broadcast(realtime.EventLeaveStatusUpdate, payload)
}

func leaveTypeLabel(t model.LeaveType) string {
	switch t {
	case model.LeaveSick:
		return "病假"
	case model.LeaveVacation:
		return "年假"
	case model.LeavePersonal:
		return "事假"
	case model.LeaveEmergency:
		return "紧急假"
	}
	return string(t)
}

func decisionTitle(status string) string {
	if status == model.LeaveApproved {
		return "请假申请已批准"
	}
	return "请假申请已驳回"
}

func decisionVerb(status string) string {
	if status == model.LeaveApproved {
		return "批准"
	}
	return "驳回"
}

// ════════════════════════════════════════════════════════════
// NotificationService 当前用户的通知收件箱
// ════════════════════════════════════════════════════════════

// NotificationService 通知业务接口
type NotificationService interface {
	List(ctx context.Context, userID string, req *dto.NotificationListRequest) (*dto.NotificationListResponse, error)
	// MarkRead 标记已读；leave_request 类型会同时标记所有审批人手中关联同一申请的通知
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (*dto.MarkAllReadResponse, error)
	Delete(ctx context.Context, userID, id string) error
}

type notificationService struct {
	repo   *repository.Repository
	pub    realtime.Publisher
	clock  Clock
	logger *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, pub realtime.Publisher, clock Clock, logger *zap.Logger) NotificationService {
	if pub == nil {
		pub = realtime.Nop{}
	}
	return &notificationService{repo: repo, pub: pub, clock: clock, logger: logger}
}

// ────────────────────── List ──────────────────────

func (s *notificationService) List(ctx context.Context, userID string, req *dto.NotificationListRequest) (*dto.NotificationListResponse, error) {
	status := req.Status
	if status == "all" {
		status = ""
	}

	items, total, err := s.repo.Notification.List(ctx, userID, status, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询通知列表失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	unread, err := s.repo.Notification.CountUnread(ctx, userID)
	if err != nil {
		s.logger.Error("统计未读通知失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	list := make([]dto.NotificationResponse, 0, len(items))
	for i := range items {
		list = append(list, toNotificationResponse(&items[i]))
	}
	return &dto.NotificationListResponse{
		List:        list,
		Total:       total,
		Page:        req.GetPage(),
		PageSize:    req.GetPageSize(),
		UnreadCount: unread,
	}, nil
}

// ────────────────────── MarkRead ──────────────────────

func (s *notificationService) MarkRead(ctx context.Context, userID, id string) error {
	n, err := s.repo.Notification.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		s.logger.Error("查询通知失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if n.UserID != userID {
		return ErrNotificationNotFound
	}

	now := s.clock.now()
	if n.Type == model.NotificationLeaveRequest && n.RelatedID != nil {
		return s.markLeaveRequestHandled(ctx, *n.RelatedID, userID, now)
	}

	if err := s.repo.Notification.MarkRead(ctx, id, now); err != nil {
		s.logger.Error("标记通知已读失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// markLeaveRequestHandled 一位审批人读过即视为该申请已被处理，所有副本一并置为已读
func (s *notificationService) markLeaveRequestHandled(ctx context.Context, leaveRequestID, userID string, at time.Time) error {
	affected, err := s.repo.Notification.MarkReadByLeaveRequest(ctx, leaveRequestID, at)
	if err != nil {
		s.logger.Error("批量标记请假通知已读失败", zap.String("leave_request_id", leaveRequestID), zap.Error(err))
		return err
	}
	s.logger.Debug("请假通知已全部标记已读",
		zap.String("leave_request_id", leaveRequestID),
		zap.Int64("affected", affected))

	s.pub.PushToGroup(realtime.GroupManagers, realtime.EventNotificationRead, map[string]interface{}{
		"leaveRequestId": leaveRequestID,
		"readBy":         userID,
		"timestamp":      at,
	})
	return nil
}

// ────────────────────── MarkAllRead ──────────────────────

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (*dto.MarkAllReadResponse, error) {
	updated, err := s.repo.Notification.MarkAllRead(ctx, userID, s.clock.now())
	if err != nil {
		s.logger.Error("全部标记已读失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return &dto.MarkAllReadResponse{Updated: updated}, nil
}

// ────────────────────── Delete ──────────────────────

func (s *notificationService) Delete(ctx context.Context, userID, id string) error {
	affected, err := s.repo.Notification.Delete(ctx, id, userID)
	if err != nil {
		s.logger.Error("删除通知失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func toNotificationResponse(n *model.Notification) dto.NotificationResponse {
	resp := dto.NotificationResponse{
		ID:        n.NotificationID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		Status:    n.Status,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
	if n.ReadAt != nil {
		resp.ReadAt = n.ReadAt.Format(time.RFC3339)
	}
	return resp
}
