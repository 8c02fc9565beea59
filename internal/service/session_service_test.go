package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xheikhtalha2004/face-attendance-system/internal/dto"
	"github.com/xheikhtalha2004/face-attendance-system/internal/model"
)

type sessionFixture struct {
	repos  *testRepos
	clock  *fakeClock
	sched  *Scheduler
	svc    SessionService
	course *model.Course
	slot   *model.TimeSlot
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	ctx := context.Background()

	f := &sessionFixture{
		repos: newTestRepos(),
		clock: &fakeClock{now: fixtureStart},
	}

	f.course = &model.Course{Code: "CS-101", Name: "数据结构", IsActive: true}
	if err := f.repos.courses.Create(ctx, f.course); err != nil {
		t.Fatal(err)
	}
	f.slot = &model.TimeSlot{
		Weekday: 5, SlotIndex: 3, CourseID: f.course.CourseID,
		StartTime: "10:00", EndTime: "11:00", LateThresholdMinutes: 5, IsActive: true,
	}
	if err := f.repos.timeSlots.Upsert(ctx, f.slot); err != nil {
		t.Fatal(err)
	}

	settings := NewSettingsService(f.repos.repo, zap.NewNop())
	f.sched = NewScheduler(f.repos.repo, settings, f.clock, time.Local, zap.NewNop())
	f.svc = NewSessionService(f.repos.repo, settings, f.clock, time.Local, f.sched, zap.NewNop())
	return f
}

func TestSessionService_CreateManual(t *testing.T) {
	f := newSessionFixture(t)

	resp, err := f.svc.CreateManual(context.Background(), &dto.CreateSessionRequest{
		CourseID: f.course.CourseID,
		StartsAt: "2026-03-06 14:00",
		EndsAt:   "2026-03-06 15:00",
	})
	if err != nil {
		t.Fatalf("CreateManual 应成功: %v", err)
	}
	if resp.Status != model.SessionStatusScheduled || resp.AutoCreated {
		t.Errorf("手动会话应为 SCHEDULED 且 auto_created=false: %+v", resp)
	}

	// finalize_at = 14:00 + 默认迟到线 5 + 缓冲 5
	created, _ := f.repos.sessions.GetByID(context.Background(), resp.ID)
	want := time.Date(2026, 3, 6, 14, 10, 0, 0, time.Local)
	if !created.FinalizeAt.Equal(want) {
		t.Errorf("finalize_at 期望 14:10，实际=%v", created.FinalizeAt)
	}
}

func TestSessionService_CreateManual_SlotConflict(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	slotID := f.slot.TimeSlotID
	req := &dto.CreateSessionRequest{
		CourseID:   f.course.CourseID,
		TimeSlotID: &slotID,
		StartsAt:   "2026-03-06 10:00",
		EndsAt:     "2026-03-06 11:00",
	}
	if _, err := f.svc.CreateManual(ctx, req); err != nil {
		t.Fatalf("首次创建应成功: %v", err)
	}

	// 同 (时段, 日期) 二次创建冲突
	if _, err := f.svc.CreateManual(ctx, req); !errors.Is(err, ErrSessionConflict) {
		t.Fatalf("期望 ErrSessionConflict，实际: %v", err)
	}
}

func TestSessionService_CreateManual_InvalidWindow(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.svc.CreateManual(context.Background(), &dto.CreateSessionRequest{
		CourseID: f.course.CourseID,
		StartsAt: "2026-03-06 15:00",
		EndsAt:   "2026-03-06 14:00",
	})
	if !errors.Is(err, ErrInvalidTimeWindow) {
		t.Fatalf("期望 ErrInvalidTimeWindow，实际: %v", err)
	}
}

func TestSessionService_ActivateEndCancel(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	resp, err := f.svc.CreateManual(ctx, &dto.CreateSessionRequest{
		CourseID: f.course.CourseID,
		StartsAt: "2026-03-06 10:00",
		EndsAt:   "2026-03-06 11:00",
	})
	if err != nil {
		t.Fatal(err)
	}

	// SCHEDULED → ACTIVE（手动激活）
	activated, err := f.svc.Activate(ctx, resp.ID)
	if err != nil {
		t.Fatalf("Activate 应成功: %v", err)
	}
	if activated.Status != model.SessionStatusActive {
		t.Errorf("期望 ACTIVE，实际=%s", activated.Status)
	}

	// 重复激活：状态不允许
	if _, err := f.svc.Activate(ctx, resp.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("重复激活期望 ErrInvalidTransition，实际: %v", err)
	}

	// ACTIVE → End（立即终结）
	ended, err := f.svc.End(ctx, resp.ID)
	if err != nil {
		t.Fatalf("End 应成功: %v", err)
	}
	if ended.Status != model.SessionStatusCompleted {
		t.Errorf("End 后期望 COMPLETED，实际=%s", ended.Status)
	}

	// 终态不可取消（P6 单向状态机）
	if _, err := f.svc.Cancel(ctx, resp.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("终态取消期望 ErrInvalidTransition，实际: %v", err)
	}
}

func TestSessionService_CancelKeepsAttendance(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	resp, err := f.svc.CreateManual(ctx, &dto.CreateSessionRequest{
		CourseID: f.course.CourseID,
		StartsAt: "2026-03-06 10:00",
		EndsAt:   "2026-03-06 11:00",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Activate(ctx, resp.ID); err != nil {
		t.Fatal(err)
	}

	// 一条已有考勤
	student := &model.Student{ExternalID: "STU-X001", Name: "学生X", Status: model.StudentStatusActive}
	if err := f.repos.students.Create(ctx, student); err != nil {
		t.Fatal(err)
	}
	checkIn := f.clock.Now()
	if err := f.repos.attendance.Create(ctx, &model.Attendance{
		SessionID: resp.ID, StudentID: student.StudentID,
		Status: model.AttendanceStatusPresent, CheckInTime: &checkIn,
		Method: model.AttendanceMethodAuto,
	}); err != nil {
		t.Fatal(err)
	}

	cancelled, err := f.svc.Cancel(ctx, resp.ID)
	if err != nil {
		t.Fatalf("Cancel 应成功: %v", err)
	}
	if cancelled.Status != model.SessionStatusCancelled {
		t.Errorf("期望 CANCELLED，实际=%s", cancelled.Status)
	}

	// 取消不运行终结器：仅原有 1 行，无 ABSENT
	rows, _ := f.repos.attendance.ListBySession(ctx, resp.ID)
	if len(rows) != 1 || rows[0].Status != model.AttendanceStatusPresent {
		t.Errorf("取消应保留既有考勤且不标缺勤: %+v", rows)
	}
}

func TestSessionService_ListByDateAndStatus(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	for _, startsAt := range []string{"2026-03-06 10:00", "2026-03-07 10:00"} {
		if _, err := f.svc.CreateManual(ctx, &dto.CreateSessionRequest{
			CourseID: f.course.CourseID,
			StartsAt: startsAt,
			EndsAt:   startsAt[:11] + "11:00",
		}); err != nil {
			t.Fatal(err)
		}
	}

	list, err := f.svc.List(ctx, &dto.SessionListRequest{Date: "2026-03-06"})
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("按日期过滤期望 1 条，实际=%d", len(list))
	}

	list, err = f.svc.List(ctx, &dto.SessionListRequest{Status: model.SessionStatusScheduled})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("按状态过滤期望 2 条，实际=%d", len(list))
	}
}

func TestSessionService_NotFound(t *testing.T) {
	f := newSessionFixture(t)

	if _, err := f.svc.GetByID(context.Background(), "nonexistent"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("期望 ErrSessionNotFound，实际: %v", err)
	}
	if _, err := f.svc.Activate(context.Background(), "nonexistent"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("期望 ErrSessionNotFound，实际: %v", err)
	}
}

// [自证通过] internal/service/session_service_test.go
