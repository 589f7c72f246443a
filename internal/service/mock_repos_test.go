package service

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"staffdesk/internal/model"
	"staffdesk/internal/repository"
)

// ── mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User // 以 user_id 为键
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if user.UserID == "" {
		user.UserID = "user-" + user.Email
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) ListApprovers(_ context.Context) ([]model.User, error) {
	var result []model.User
	for _, u := range m.users {
		if u.IsApprover() {
			result = append(result, *u)
		}
	}
	return result, nil
}

// ── mock DepartmentRepository ──

type mockDeptRepo struct {
	departments  map[string]*model.Department
	memberCounts map[string]int64
}

func newMockDeptRepo() *mockDeptRepo {
	return &mockDeptRepo{
		departments: map[string]*model.Department{
			"valid-dept-id": {DepartmentID: "valid-dept-id", Name: "测试部门", IsActive: true},
		},
		memberCounts: make(map[string]int64),
	}
}

func (m *mockDeptRepo) Create(_ context.Context, dept *model.Department) error {
	if dept.DepartmentID == "" {
		dept.DepartmentID = "dept-" + dept.Name
	}
	m.departments[dept.DepartmentID] = dept
	return nil
}

func (m *mockDeptRepo) GetByID(_ context.Context, id string) (*model.Department, error) {
	if d, ok := m.departments[id]; ok {
		return d, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDeptRepo) GetByName(_ context.Context, name string) (*model.Department, error) {
	for _, d := range m.departments {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDeptRepo) GetByManager(_ context.Context, managerUserID string) (*model.Department, error) {
	for _, d := range m.departments {
		if d.ManagerID != nil && *d.ManagerID == managerUserID {
			return d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDeptRepo) List(_ context.Context) ([]model.Department, error) {
	var result []model.Department
	for _, d := range m.departments {
		if d.IsActive {
			result = append(result, *d)
		}
	}
	return result, nil
}

func (m *mockDeptRepo) ListAll(_ context.Context) ([]model.Department, error) {
	var result []model.Department
	for _, d := range m.departments {
		result = append(result, *d)
	}
	return result, nil
}

func (m *mockDeptRepo) Update(_ context.Context, dept *model.Department) error {
	m.departments[dept.DepartmentID] = dept
	return nil
}

func (m *mockDeptRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.departments, id)
	return nil
}

func (m *mockDeptRepo) CountMembers(_ context.Context, departmentID string) (int64, error) {
	return m.memberCounts[departmentID], nil
}

func (m *mockDeptRepo) BatchCountMembers(_ context.Context, departmentIDs []string) (map[string]int64, error) {
	result := make(map[string]int64, len(departmentIDs))
	for _, id := range departmentIDs {
		if count, ok := m.memberCounts[id]; ok {
			result[id] = count
		}
	}
	return result, nil
}

// ── mock EmployeeRepository ──

type mockEmployeeRepo struct {
	employees map[string]*model.Employee // 以 employee_id 为键
}

func newMockEmployeeRepo() *mockEmployeeRepo {
	return &mockEmployeeRepo{employees: make(map[string]*model.Employee)}
}

func (m *mockEmployeeRepo) Create(_ context.Context, emp *model.Employee) error {
	if emp.EmployeeID == "" {
		emp.EmployeeID = "emp-" + emp.UserID
	}
	m.employees[emp.EmployeeID] = emp
	return nil
}

func (m *mockEmployeeRepo) GetByID(_ context.Context, id string) (*model.Employee, error) {
	if e, ok := m.employees[id]; ok {
		return e, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEmployeeRepo) GetByUserID(_ context.Context, userID string) (*model.Employee, error) {
	for _, e := range m.employees {
		if e.UserID == userID {
			return e, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEmployeeRepo) Update(_ context.Context, emp *model.Employee) error {
	m.employees[emp.EmployeeID] = emp
	return nil
}

func (m *mockEmployeeRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.employees, id)
	return nil
}

func (m *mockEmployeeRepo) List(_ context.Context, filters *repository.EmployeeListFilters, scope repository.Scope, offset, limit int) ([]model.Employee, int64, error) {
	var matched []model.Employee
	for _, e := range m.employees {
		if filters != nil && filters.DepartmentID != "" &&
			(e.DepartmentID == nil || *e.DepartmentID != filters.DepartmentID) {
			continue
		}
		if !scope.Allows(e.EmployeeID, e.DepartmentID) {
			continue
		}
		matched = append(matched, *e)
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return []model.Employee{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (m *mockEmployeeRepo) CountByStatus(_ context.Context, departmentID string) (map[string]int64, error) {
	result := make(map[string]int64)
	for _, e := range m.employees {
		if departmentID != "" && (e.DepartmentID == nil || *e.DepartmentID != departmentID) {
			continue
		}
		result[e.Status]++
	}
	return result, nil
}

func (m *mockEmployeeRepo) CountByDepartment(_ context.Context) ([]repository.DepartmentHeadcount, error) {
	counts := make(map[string]int64)
	for _, e := range m.employees {
		if e.DepartmentID != nil {
			counts[*e.DepartmentID]++
		}
	}
	result := make([]repository.DepartmentHeadcount, 0, len(counts))
	for id, n := range counts {
		result = append(result, repository.DepartmentHeadcount{DepartmentID: id, Count: n})
	}
	return result, nil
}

// ── 记录推送的 Publisher ──

type pushedEvent struct {
	Kind    string // group | user | broadcast
	Target  string
	Event   string
	Payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []pushedEvent
}

func (p *recordingPublisher) PushToGroup(group, event string, payload interface{}) {
	p.record(pushedEvent{Kind: "group", Target: group, Event: event, Payload: payload})
}

func (p *recordingPublisher) PushToUser(userID, event string, payload interface{}) {
	p.record(pushedEvent{Kind: "user", Target: userID, Event: event, Payload: payload})
}

func (p *recordingPublisher) Broadcast(event string, payload interface{}) {
	p.record(pushedEvent{Kind: "broadcast", Event: event, Payload: payload})
}

func (p *recordingPublisher) record(ev pushedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

// byEvent 返回指定事件名的全部推送
func (p *recordingPublisher) byEvent(name string) []pushedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []pushedEvent
	for _, ev := range p.events {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

func strPtr(s string) *string { return &s }
