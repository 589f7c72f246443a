package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrStaleState 条件更新未命中：记录状态已不满足前置条件（如请假单已被审批）
var ErrStaleState = errors.New("记录状态已变更")
