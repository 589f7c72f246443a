// Package workday 计算工作日（周一至周五），不考虑法定节假日。
package workday

import "time"

// IsWeekend 是否为周六或周日
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Count 返回 [start, end] 闭区间内的工作日数；end 早于 start 时返回 0
func Count(start, end time.Time) int {
	start = truncate(start)
	end = truncate(end)
	if end.Before(start) {
		return 0
	}

	// 整周直接按 5 天计，余数逐日判断
	totalDays := int(end.Sub(start).Hours()/24) + 1
	weeks := totalDays / 7
	count := weeks * 5

	d := start.AddDate(0, 0, weeks*7)
	for !d.After(end) {
		if !IsWeekend(d) {
			count++
		}
		d = d.AddDate(0, 0, 1)
	}
	return count
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
