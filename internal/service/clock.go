package service

import (
	"time"

	"staffdesk/internal/model"
)

// Clock 业务时钟，"今天" 与签到时间均按配置时区计算
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// NewClock 创建使用系统时间的时钟
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return Clock{Now: time.Now, Location: loc}
}

func (c Clock) now() time.Time {
	return c.Now().In(c.Location)
}

func (c Clock) today() model.Date {
	return model.DateOf(c.now())
}

// monthRange 返回某月的首日与末日
func monthRange(year, month int) (model.Date, model.Date) {
	first := model.NewDate(year, time.Month(month), 1)
	return first, model.Date{Time: first.AddDate(0, 1, -1)}
}
