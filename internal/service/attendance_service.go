package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xheikhtalha2004/face-attendance-system/config"
	"github.com/xheikhtalha2004/face-attendance-system/internal/dto"
	"github.com/xheikhtalha2004/face-attendance-system/internal/model"
	"github.com/xheikhtalha2004/face-attendance-system/internal/recognition"
	"github.com/xheikhtalha2004/face-attendance-system/internal/repository"
)

// ── 识别-考勤管线领域结果 ──
//
// 领域结果不是错误：它们原样返回给调用方，由 Handler 映射 HTTP 状态。

const (
	ResultMarked          = "MARKED"
	ResultReentry         = "RE_ENTRY"
	ResultIntruder        = "INTRUDER"
	ResultUnknownFace     = "UNKNOWN_FACE"
	ResultNoActiveSession = "NO_ACTIVE_SESSION"
	ResultNoFace          = "NO_FACE"
	ResultMultipleFaces   = "MULTIPLE_FACES"
	ResultAmbiguous       = "AMBIGUOUS_SESSION"
	ResultNoEnrolled      = "NO_ENROLLED"
	ResultSessionClosed   = "SESSION_CLOSED"
	ResultTimeout         = "TIMEOUT"
)

// ── 考勤模块业务错误 ──

var (
	// ErrEmbeddingUnavailable 推理服务不可用（瞬态，已重试一次）
	ErrEmbeddingUnavailable = errors.New("嵌入推理服务不可用")
	// ErrInvalidImage 图像无法解码
	ErrInvalidImage = errors.New("无效图像")
	// ErrAttendanceSessionNotFound 会话不存在
	ErrAttendanceSessionNotFound = errors.New("会话不存在")
)

// RecognizeOutcome 一次识别/手动考勤的领域结果
type RecognizeOutcome struct {
	Result     string
	Student    *model.Student
	SessionID  string
	Status     string // PRESENT | LATE（仅 MARKED）
	Confidence float64
}

// AttendanceService 考勤业务接口：识别请求的入口
type AttendanceService interface {
	// Recognize 识别一帧图像并提交考勤决策。
	// scopeCourseID 在多会话并发时限定目标课程；全程复用单一 now。
	Recognize(ctx context.Context, image []byte, scopeCourseID string) (*RecognizeOutcome, error)
	// Mark 手动考勤（method=MANUAL）；与自动路径共享唯一性与选课检查。
	// 非选课学生在此路径落 INTRUDER。
	Mark(ctx context.Context, sessionID, studentID string) (*RecognizeOutcome, error)
	ListBySession(ctx context.Context, sessionID string) ([]dto.AttendanceRowResponse, error)
}

type attendanceService struct {
	repo     *repository.Repository
	provider recognition.Provider
	settings SettingsService
	clock    Clock
	cfg      *config.RecognitionConfig
	logger   *zap.Logger
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(
	cfg *config.Config,
	repo *repository.Repository,
	provider recognition.Provider,
	settings SettingsService,
	clock Clock,
	logger *zap.Logger,
) AttendanceService {
	return &attendanceService{
		repo:     repo,
		provider: provider,
		settings: settings,
		clock:    clock,
		cfg:      &cfg.Recognition,
		logger:   logger,
	}
}

// ────────────────────── Recognize ──────────────────────

func (s *attendanceService) Recognize(ctx context.Context, image []byte, scopeCourseID string) (*RecognizeOutcome, error) {
	// 单一 now 贯穿整个请求的所有时间比较
	now := s.clock.Now()

	rs, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	// 1. 活动会话定位
	session, outcome, err := s.resolveActiveSession(ctx, now, scopeCourseID)
	if outcome != nil || err != nil {
		return outcome, err
	}

	// 2. 推理调用（软截止时间内完成，不持有任何事务）
	face, outcome, err := s.embedSingleFace(ctx, image)
	if outcome != nil || err != nil {
		return outcome, err
	}

	query := make([]float32, len(face.Vector))
	copy(query, face.Vector)
	if err := recognition.Normalize(query); err != nil {
		return nil, ErrInvalidImage
	}

	// 3. 候选集 = 该课程全部选课学生的有效向量（闯入检测由此构造收口）
	students, err := s.repo.Enrollment.EnrolledStudentsWithEmbeddings(ctx, session.CourseID)
	if err != nil {
		return nil, err
	}
	candidates, byID := buildCandidates(students)
	if len(candidates) == 0 {
		return &RecognizeOutcome{Result: ResultNoEnrolled, SessionID: session.SessionID}, nil
	}

	// 4. 匹配
	match := recognition.Match(query, candidates, rs.ConfidenceThreshold)
	if !match.Matched {
		return &RecognizeOutcome{Result: ResultUnknownFace, SessionID: session.SessionID}, nil
	}
	student := byID[match.BestStudentID]

	// 5. 单事务提交
	confidence := match.BestSimilarity
	return s.commit(ctx, session.SessionID, student, &confidence, model.AttendanceMethodAuto, now)
}

// resolveActiveSession 活动会话定位与多会话消歧
func (s *attendanceService) resolveActiveSession(ctx context.Context, now time.Time, scopeCourseID string) (*model.Session, *RecognizeOutcome, error) {
	sessions, err := s.repo.Session.ListActive(ctx, now)
	if err != nil {
		return nil, nil, err
	}
	if len(sessions) == 0 {
		return nil, &RecognizeOutcome{Result: ResultNoActiveSession}, nil
	}
	if len(sessions) == 1 {
		return &sessions[0], nil, nil
	}

	// 多会话并发：必须由调用方给出课程范围消歧
	if scopeCourseID == "" {
		return nil, &RecognizeOutcome{Result: ResultAmbiguous}, nil
	}
	for i := range sessions {
		if sessions[i].CourseID == scopeCourseID {
			return &sessions[i], nil, nil
		}
	}
	return nil, &RecognizeOutcome{Result: ResultNoActiveSession}, nil
}

// embedSingleFace 调用推理服务并要求画面恰好一张人脸。
// 瞬态失败重试一次后上抛；软截止超时返回 TIMEOUT 结果（无状态变更）。
func (s *attendanceService) embedSingleFace(ctx context.Context, image []byte) (*recognition.Face, *RecognizeOutcome, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	res, err := s.provider.Embed(callCtx, image)
	if err != nil && errors.Is(err, recognition.ErrProviderUnavailable) && callCtx.Err() == nil {
		res, err = s.provider.Embed(callCtx, image)
	}
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, &RecognizeOutcome{Result: ResultTimeout}, nil
		}
		switch {
		case errors.Is(err, recognition.ErrInvalidImage):
			return nil, nil, ErrInvalidImage
		case errors.Is(err, recognition.ErrProviderUnavailable):
			s.logger.Error("推理服务不可用", zap.Error(err))
			return nil, nil, ErrEmbeddingUnavailable
		default:
			return nil, nil, err
		}
	}

	face, err := recognition.SingleFace(res)
	if err != nil {
		switch {
		case errors.Is(err, recognition.ErrNoFace):
			return nil, &RecognizeOutcome{Result: ResultNoFace}, nil
		case errors.Is(err, recognition.ErrMultipleFaces):
			return nil, &RecognizeOutcome{Result: ResultMultipleFaces}, nil
		default:
			return nil, nil, err
		}
	}
	return face, nil, nil
}

// buildCandidates 将选课学生的向量摊平为匹配候选
func buildCandidates(students []model.Student) ([]recognition.Candidate, map[string]*model.Student) {
	var candidates []recognition.Candidate
	byID := make(map[string]*model.Student, len(students))
	for i := range students {
		student := &students[i]
		byID[student.StudentID] = student
		for j := range student.Embeddings {
			emb := &student.Embeddings[j]
			candidates = append(candidates, recognition.Candidate{
				StudentID:   student.StudentID,
				EmbeddingID: emb.EmbeddingID,
				CreatedAt:   emb.CreatedAt,
				Vector:      emb.Vector,
			})
		}
	}
	return candidates, byID
}

// ────────────────────── Mark ──────────────────────

func (s *attendanceService) Mark(ctx context.Context, sessionID, studentID string) (*RecognizeOutcome, error) {
	now := s.clock.Now()

	student, err := s.repo.Student.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	return s.commit(ctx, sessionID, student, nil, model.AttendanceMethodManual, now)
}

// ────────────────────── 事务提交 ──────────────────────
//
// 所有读与写落在同一个可串行事务内：会话行锁使终结器与并发识别串行化；
// (session, student) 唯一冲突以库层为准。status / check_in_time 一经写入
// 不再变更（修正需独立 amend 流程，本服务不提供）。

func (s *attendanceService) commit(ctx context.Context, sessionID string, student *model.Student, confidence *float64, method string, now time.Time) (*RecognizeOutcome, error) {
	var outcome *RecognizeOutcome

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		session, err := tx.Session.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAttendanceSessionNotFound
			}
			return err
		}

		// 事务内重读状态：终结器或关闭流程赢得竞争时立即终止
		if session.Status != model.SessionStatusActive {
			outcome = &RecognizeOutcome{Result: ResultSessionClosed, SessionID: sessionID, Student: student}
			return nil
		}

		existing, err := tx.Attendance.GetBySessionAndStudent(ctx, sessionID, student.StudentID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if existing != nil {
			// 终结器已写 ABSENT 视同会话关闭（唯一约束为准绳）
			if existing.Status == model.AttendanceStatusAbsent {
				outcome = &RecognizeOutcome{Result: ResultSessionClosed, SessionID: sessionID, Student: student}
				return nil
			}
			return s.commitReentry(ctx, tx, existing, session, student, confidence, now, &outcome)
		}

		enrolled, err := tx.Enrollment.Exists(ctx, student.StudentID, session.CourseID)
		if err != nil {
			return err
		}
		if !enrolled {
			// 闯入：识别路径的候选集按选课收口，此分支仅直接提交路径可达
			return s.commitIntruder(ctx, tx, session, student, confidence, method, now, &outcome)
		}

		return s.commitFirstIn(ctx, tx, session, student, confidence, method, now, &outcome)
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *attendanceService) commitReentry(ctx context.Context, tx *repository.Repository, existing *model.Attendance, session *model.Session, student *model.Student, confidence *float64, now time.Time, outcome **RecognizeOutcome) error {
	if err := tx.Attendance.UpdateLastSeen(ctx, existing.AttendanceID, now, confidence); err != nil {
		return err
	}
	if err := tx.Reentry.Log(ctx, &model.ReentryEvent{
		SessionID:  session.SessionID,
		StudentID:  student.StudentID,
		Action:     model.ReentryActionReentry,
		Suspicious: true,
		CreatedAt:  now,
	}); err != nil {
		return err
	}
	*outcome = &RecognizeOutcome{Result: ResultReentry, Student: student, SessionID: session.SessionID}
	return nil
}

func (s *attendanceService) commitIntruder(ctx context.Context, tx *repository.Repository, session *model.Session, student *model.Student, confidence *float64, method string, now time.Time, outcome **RecognizeOutcome) error {
	row := &model.Attendance{
		SessionID:   session.SessionID,
		StudentID:   student.StudentID,
		Status:      model.AttendanceStatusIntruder,
		CheckInTime: &now,
		Confidence:  confidence,
		Method:      method,
	}
	if err := tx.Attendance.Create(ctx, row); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 并发同学生提交：以既有行为准；终结器已写 ABSENT 视同会话关闭，否则按重入处理
			existing, rerr := tx.Attendance.GetBySessionAndStudent(ctx, session.SessionID, student.StudentID)
			if rerr != nil {
				return rerr
			}
			if existing.Status == model.AttendanceStatusAbsent {
				*outcome = &RecognizeOutcome{Result: ResultSessionClosed, Student: student, SessionID: session.SessionID}
				return nil
			}
			return s.commitReentry(ctx, tx, existing, session, student, confidence, now, outcome)
		}
		return err
	}
	if err := tx.Reentry.Log(ctx, &model.ReentryEvent{
		SessionID:  session.SessionID,
		StudentID:  student.StudentID,
		Action:     model.ReentryActionIntruder,
		Suspicious: true,
		CreatedAt:  now,
	}); err != nil {
		return err
	}
	s.logger.Warn("检测到闯入",
		zap.String("session_id", session.SessionID),
		zap.String("student_id", student.StudentID),
	)
	*outcome = &RecognizeOutcome{Result: ResultIntruder, Student: student, SessionID: session.SessionID}
	return nil
}

func (s *attendanceService) commitFirstIn(ctx context.Context, tx *repository.Repository, session *model.Session, student *model.Student, confidence *float64, method string, now time.Time, outcome **RecognizeOutcome) error {
	status := model.AttendanceStatusPresent
	if now.After(session.LateCutoff()) {
		status = model.AttendanceStatusLate
	}

	row := &model.Attendance{
		SessionID:   session.SessionID,
		StudentID:   student.StudentID,
		Status:      status,
		CheckInTime: &now,
		Confidence:  confidence,
		Method:      method,
	}
	if err := tx.Attendance.Create(ctx, row); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 唯一约束为准绳：终结器已写 ABSENT 视同会话关闭，否则按重入处理
			existing, rerr := tx.Attendance.GetBySessionAndStudent(ctx, session.SessionID, student.StudentID)
			if rerr != nil {
				return rerr
			}
			if existing.Status == model.AttendanceStatusAbsent {
				*outcome = &RecognizeOutcome{Result: ResultSessionClosed, Student: student, SessionID: session.SessionID}
				return nil
			}
			return s.commitReentry(ctx, tx, existing, session, student, confidence, now, outcome)
		}
		return err
	}

	if err := tx.Reentry.Log(ctx, &model.ReentryEvent{
		SessionID:  session.SessionID,
		StudentID:  student.StudentID,
		Action:     model.ReentryActionFirstIn,
		Suspicious: false,
		CreatedAt:  now,
	}); err != nil {
		return err
	}

	var conf float64
	if confidence != nil {
		conf = *confidence
	}
	*outcome = &RecognizeOutcome{
		Result:     ResultMarked,
		Student:    student,
		SessionID:  session.SessionID,
		Status:     status,
		Confidence: conf,
	}
	return nil
}

// ────────────────────── ListBySession ──────────────────────

func (s *attendanceService) ListBySession(ctx context.Context, sessionID string) ([]dto.AttendanceRowResponse, error) {
	if _, err := s.repo.Session.GetByID(ctx, sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttendanceSessionNotFound
		}
		return nil, err
	}

	rows, err := s.repo.Attendance.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := make([]dto.AttendanceRowResponse, 0, len(rows))
	for i := range rows {
		result = append(result, *toAttendanceRowResponse(&rows[i]))
	}
	return result, nil
}

func toAttendanceRowResponse(row *model.Attendance) *dto.AttendanceRowResponse {
	resp := &dto.AttendanceRowResponse{
		ID:         row.AttendanceID,
		SessionID:  row.SessionID,
		Status:     row.Status,
		Confidence: row.Confidence,
		Method:     row.Method,
	}
	if row.CheckInTime != nil {
		v := row.CheckInTime.Format(time.RFC3339)
		resp.CheckInTime = &v
	}
	if row.LastSeenTime != nil {
		v := row.LastSeenTime.Format(time.RFC3339)
		resp.LastSeenTime = &v
	}
	if row.Student != nil {
		resp.Student = &dto.StudentBrief{
			ID:         row.Student.StudentID,
			ExternalID: row.Student.ExternalID,
			Name:       row.Student.Name,
		}
	}
	return resp
}

// [自证通过] internal/service/attendance_service.go
