package service

import (
	"errors"
	"testing"

	"staffdesk/internal/dto"
	"staffdesk/internal/model"
	"staffdesk/pkg/realtime"
)

func (f *fixture) unread(userID string) []dto.NotificationResponse {
	f.t.Helper()
	list, err := f.notification.List(f.ctx, userID, &dto.NotificationListRequest{Status: "unread"})
	if err != nil {
		f.t.Fatalf("List 应成功: %v", err)
	}
	return list.List
}

func TestNotificationService_MarkRead_CascadesToAllApprovers(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrg()

	f.submit(f.caller(o.alice), "sick", "2026-03-09", "2026-03-09")

	mine := f.unread(o.manager.UserID)
	if len(mine) != 1 {
		t.Fatalf("经理期望 1 条未读，实际=%d", len(mine))
	}
	if err := f.notification.MarkRead(f.ctx, o.manager.UserID, mine[0].ID); err != nil {
		t.Fatalf("MarkRead 应成功: %v", err)
	}

	// 一位审批人读过，其他审批人的副本同时变为已读
	if left := f.unread(o.admin.UserID); len(left) != 0 {
		t.Errorf("管理员的副本应同时变为已读，剩余=%d", len(left))
	}

	pushes := f.pub.byEvent(realtime.EventNotificationRead)
	if len(pushes) != 1 || pushes[0].Target != realtime.GroupManagers {
		t.Errorf("期望向 managers 组推送一次 notificationRead，实际=%+v", pushes)
	}
}

func TestNotificationService_MarkRead_StatusNotificationIsPersonal(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrg()

	req := f.submit(f.caller(o.alice), "sick", "2026-03-09", "2026-03-09")
	f.decide(f.caller(o.manager), req.ID, model.LeaveApproved)

	mine := f.unread(o.alice.UserID)
	if len(mine) != 1 {
		t.Fatalf("申请人期望 1 条未读，实际=%d", len(mine))
	}
	if err := f.notification.MarkRead(f.ctx, o.alice.UserID, mine[0].ID); err != nil {
		t.Fatalf("MarkRead 应成功: %v", err)
	}

	list, _ := f.notification.List(f.ctx, o.alice.UserID, &dto.NotificationListRequest{Status: "read"})
	if list.Total != 1 || list.List[0].ReadAt == "" {
		t.Errorf("期望 1 条已读且带 ReadAt，实际=%+v", list.List)
	}
	if len(f.pub.byEvent(realtime.EventNotificationRead)) != 0 {
		t.Error("审批结果通知已读不应广播 notificationRead")
	}
	// 审批人的 leave_request 通知不受影响
	if len(f.unread(o.admin.UserID)) != 1 {
		t.Error("管理员的申请通知不应被标记已读")
	}
}

func TestNotificationService_MarkRead_OtherUsersNotification(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrg()

	f.submit(f.caller(o.alice), "sick", "2026-03-09", "2026-03-09")
	adminItems := f.unread(o.admin.UserID)

	err := f.notification.MarkRead(f.ctx, o.manager.UserID, adminItems[0].ID)
	if !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("期望 ErrNotificationNotFound，实际: %v", err)
	}
	if err := f.notification.MarkRead(f.ctx, o.manager.UserID, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("不存在的通知: 期望 ErrNotificationNotFound，实际: %v", err)
	}
}

func TestNotificationService_MarkAllRead(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrg()

	f.submit(f.caller(o.alice), "sick", "2026-03-09", "2026-03-09")
	f.submit(f.caller(o.bob), "sick", "2026-03-10", "2026-03-10")

	resp, err := f.notification.MarkAllRead(f.ctx, o.admin.UserID)
	if err != nil {
		t.Fatalf("MarkAllRead 应成功: %v", err)
	}
	if resp.Updated != 2 {
		t.Errorf("期望更新 2 条，实际=%d", resp.Updated)
	}
	if len(f.unread(o.manager.UserID)) != 2 {
		t.Error("MarkAllRead 只影响本人通知")
	}
}

func TestNotificationService_Delete(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrg()

	f.submit(f.caller(o.alice), "sick", "2026-03-09", "2026-03-09")
	items := f.unread(o.admin.UserID)

	if err := f.notification.Delete(f.ctx, o.manager.UserID, items[0].ID); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("删除他人通知: 期望 ErrNotificationNotFound，实际: %v", err)
	}
	if err := f.notification.Delete(f.ctx, o.admin.UserID, items[0].ID); err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}
	if err := f.notification.Delete(f.ctx, o.admin.UserID, items[0].ID); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("重复删除: 期望 ErrNotificationNotFound，实际: %v", err)
	}
}

func TestLeaveTypeLabel(t *testing.T) {
	cases := map[model.LeaveType]string{
		model.LeaveSick:      "病假",
		model.LeaveVacation:  "年假",
		model.LeavePersonal:  "事假",
		model.LeaveEmergency: "紧急假",
	}
	for lt, want := range cases {
		if got := leaveTypeLabel(lt); got != want {
			t.Errorf("leaveTypeLabel(%s) 期望 %s，实际 %s", lt, want, got)
		}
	}
}
