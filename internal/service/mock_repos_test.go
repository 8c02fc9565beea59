package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/xheikhtalha2004/face-attendance-system/internal/model"
	"github.com/xheikhtalha2004/face-attendance-system/internal/recognition"
	"github.com/xheikhtalha2004/face-attendance-system/internal/repository"
)

// ── 测试时钟 ──

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Set(t time.Time)         { c.now = t }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// ── 测试推理服务 ──

type fakeProvider struct {
	embedFn func(ctx context.Context, image []byte) (*recognition.Result, error)
}

func (p *fakeProvider) Embed(ctx context.Context, image []byte) (*recognition.Result, error) {
	return p.embedFn(ctx, image)
}

// singleFaceResult 构造单脸推理结果
func singleFaceResult(vector []float32) *recognition.Result {
	return &recognition.Result{Faces: []recognition.Face{{
		BBox:      recognition.BBox{X: 10, Y: 10, Width: 160, Height: 160},
		Vector:    vector,
		DetScore:  0.95,
		Sharpness: 150,
	}}}
}

// ── Mock StudentRepository ──

type mockStudentRepo struct {
	seq      int
	students map[string]*model.Student
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: make(map[string]*model.Student)}
}

func (m *mockStudentRepo) Create(_ context.Context, student *model.Student) error {
	for _, s := range m.students {
		if !s.DeletedAt.Valid && s.ExternalID == student.ExternalID {
			return gorm.ErrDuplicatedKey
		}
	}
	if student.StudentID == "" {
		m.seq++
		student.StudentID = fmt.Sprintf("stu-%03d", m.seq)
	}
	m.students[student.StudentID] = student
	return nil
}

func (m *mockStudentRepo) GetByID(_ context.Context, id string) (*model.Student, error) {
	if s, ok := m.students[id]; ok && !s.DeletedAt.Valid {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) GetByExternalID(_ context.Context, externalID string) (*model.Student, error) {
	for _, s := range m.students {
		if !s.DeletedAt.Valid && s.ExternalID == externalID {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) List(_ context.Context, department string) ([]model.Student, error) {
	var result []model.Student
	for _, s := range m.students {
		if s.DeletedAt.Valid {
			continue
		}
		if department != "" && s.Department != department {
			continue
		}
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExternalID < result[j].ExternalID })
	return result, nil
}

func (m *mockStudentRepo) Update(_ context.Context, student *model.Student) error {
	m.students[student.StudentID] = student
	return nil
}

func (m *mockStudentRepo) SoftDelete(_ context.Context, id string, now time.Time) error {
	s, ok := m.students[id]
	if !ok || s.DeletedAt.Valid {
		return gorm.ErrRecordNotFound
	}
	s.DeletedAt = gorm.DeletedAt{Time: now, Valid: true}
	return nil
}

// ── Mock EmbeddingRepository ──

type mockEmbeddingRepo struct {
	seq       int
	byStudent map[string][]model.Embedding
}

func newMockEmbeddingRepo() *mockEmbeddingRepo {
	return &mockEmbeddingRepo{byStudent: make(map[string][]model.Embedding)}
}

func (m *mockEmbeddingRepo) CreateBatch(_ context.Context, studentID string, embeddings []model.Embedding, replaceOld bool, _ time.Time) error {
	if replaceOld {
		m.byStudent[studentID] = nil
	}
	for i := range embeddings {
		m.seq++
		embeddings[i].EmbeddingID = fmt.Sprintf("emb-%03d", m.seq)
		m.byStudent[studentID] = append(m.byStudent[studentID], embeddings[i])
	}
	return nil
}

func (m *mockEmbeddingRepo) ListByStudent(_ context.Context, studentID string) ([]model.Embedding, error) {
	return m.byStudent[studentID], nil
}

func (m *mockEmbeddingRepo) CountByStudent(_ context.Context, studentID string) (int64, error) {
	return int64(len(m.byStudent[studentID])), nil
}

// ── Mock CourseRepository ──

type mockCourseRepo struct {
	seq     int
	courses map[string]*model.Course
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{courses: make(map[string]*model.Course)}
}

func (m *mockCourseRepo) Create(_ context.Context, course *model.Course) error {
	for _, c := range m.courses {
		if c.Code == course.Code {
			return gorm.ErrDuplicatedKey
		}
	}
	if course.CourseID == "" {
		m.seq++
		course.CourseID = fmt.Sprintf("course-%03d", m.seq)
	}
	m.courses[course.CourseID] = course
	return nil
}

func (m *mockCourseRepo) GetByID(_ context.Context, id string) (*model.Course, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCourseRepo) GetByCode(_ context.Context, code string) (*model.Course, error) {
	for _, c := range m.courses {
		if c.Code == code {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCourseRepo) List(_ context.Context, activeOnly bool) ([]model.Course, error) {
	var result []model.Course
	for _, c := range m.courses {
		if activeOnly && !c.IsActive {
			continue
		}
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (m *mockCourseRepo) Update(_ context.Context, course *model.Course) error {
	m.courses[course.CourseID] = course
	return nil
}

// ── Mock EnrollmentRepository ──

type mockEnrollmentRepo struct {
	seq         int
	enrollments []model.Enrollment
	students    *mockStudentRepo
	embeddings  *mockEmbeddingRepo
}

func newMockEnrollmentRepo(students *mockStudentRepo, embeddings *mockEmbeddingRepo) *mockEnrollmentRepo {
	return &mockEnrollmentRepo{students: students, embeddings: embeddings}
}

func (m *mockEnrollmentRepo) Create(_ context.Context, enrollment *model.Enrollment) error {
	for _, e := range m.enrollments {
		if e.StudentID == enrollment.StudentID && e.CourseID == enrollment.CourseID {
			return gorm.ErrDuplicatedKey
		}
	}
	m.seq++
	enrollment.EnrollmentID = fmt.Sprintf("enr-%03d", m.seq)
	m.enrollments = append(m.enrollments, *enrollment)
	return nil
}

func (m *mockEnrollmentRepo) Exists(_ context.Context, studentID, courseID string) (bool, error) {
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEnrollmentRepo) ListByCourse(_ context.Context, courseID string) ([]model.Enrollment, error) {
	var result []model.Enrollment
	for _, e := range m.enrollments {
		if e.CourseID != courseID {
			continue
		}
		// 软删除学生的选课行对终结器不可见
		if s, ok := m.students.students[e.StudentID]; !ok || s.DeletedAt.Valid {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (m *mockEnrollmentRepo) EnrolledStudentsWithEmbeddings(ctx context.Context, courseID string) ([]model.Student, error) {
	var result []model.Student
	for _, e := range m.enrollments {
		if e.CourseID != courseID {
			continue
		}
		s, ok := m.students.students[e.StudentID]
		if !ok || s.DeletedAt.Valid {
			continue
		}
		copied := *s
		copied.Embeddings = m.embeddings.byStudent[s.StudentID]
		result = append(result, copied)
	}
	return result, nil
}

func (m *mockEnrollmentRepo) Delete(_ context.Context, studentID, courseID string) error {
	for i, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			m.enrollments = append(m.enrollments[:i], m.enrollments[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── Mock TimeSlotRepository ──

type mockTimeSlotRepo struct {
	seq   int
	slots map[string]*model.TimeSlot
}

func newMockTimeSlotRepo() *mockTimeSlotRepo {
	return &mockTimeSlotRepo{slots: make(map[string]*model.TimeSlot)}
}

func (m *mockTimeSlotRepo) Upsert(_ context.Context, slot *model.TimeSlot) error {
	for _, existing := range m.slots {
		if existing.Weekday == slot.Weekday && existing.SlotIndex == slot.SlotIndex {
			existing.CourseID = slot.CourseID
			existing.StartTime = slot.StartTime
			existing.EndTime = slot.EndTime
			existing.LateThresholdMinutes = slot.LateThresholdMinutes
			existing.IsActive = slot.IsActive
			*slot = *existing
			return nil
		}
	}
	m.seq++
	slot.TimeSlotID = fmt.Sprintf("slot-%03d", m.seq)
	m.slots[slot.TimeSlotID] = slot
	return nil
}

func (m *mockTimeSlotRepo) GetByID(_ context.Context, id string) (*model.TimeSlot, error) {
	if s, ok := m.slots[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTimeSlotRepo) ListActiveByWeekday(_ context.Context, weekday int) ([]model.TimeSlot, error) {
	var result []model.TimeSlot
	for _, s := range m.slots {
		if s.IsActive && s.Weekday == weekday {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SlotIndex < result[j].SlotIndex })
	return result, nil
}

func (m *mockTimeSlotRepo) List(_ context.Context) ([]model.TimeSlot, error) {
	var result []model.TimeSlot
	for _, s := range m.slots {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Weekday != result[j].Weekday {
			return result[i].Weekday < result[j].Weekday
		}
		return result[i].SlotIndex < result[j].SlotIndex
	})
	return result, nil
}

func (m *mockTimeSlotRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.slots[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.slots, id)
	return nil
}

// ── Mock SessionRepository ──

type mockSessionRepo struct {
	seq      int
	sessions map[string]*model.Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*model.Session)}
}

func (m *mockSessionRepo) Create(_ context.Context, session *model.Session) error {
	if session.SessionID == "" {
		m.seq++
		session.SessionID = fmt.Sprintf("sess-%03d", m.seq)
	}
	m.sessions[session.SessionID] = session
	return nil
}

func (m *mockSessionRepo) FindOrCreateForSlot(ctx context.Context, session *model.Session) (*model.Session, bool, error) {
	day := session.StartsAt.Format("2006-01-02")
	for _, s := range m.sessions {
		if s.TimeSlotID != nil && session.TimeSlotID != nil &&
			*s.TimeSlotID == *session.TimeSlotID &&
			s.StartsAt.Format("2006-01-02") == day &&
			s.Status != model.SessionStatusCancelled {
			return s, false, nil
		}
	}
	if err := m.Create(ctx, session); err != nil {
		return nil, false, err
	}
	return session, true, nil
}

func (m *mockSessionRepo) GetByID(_ context.Context, id string) (*model.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSessionRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Session, error) {
	return m.GetByID(ctx, id)
}

func (m *mockSessionRepo) ListActive(_ context.Context, now time.Time) ([]model.Session, error) {
	var result []model.Session
	for _, s := range m.sessions {
		if s.Status == model.SessionStatusActive && !s.StartsAt.After(now) && s.EndsAt.After(now) {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartsAt.Before(result[j].StartsAt) })
	return result, nil
}

func (m *mockSessionRepo) ListDueToActivate(_ context.Context, now time.Time) ([]model.Session, error) {
	var result []model.Session
	for _, s := range m.sessions {
		if s.Status == model.SessionStatusScheduled && !s.StartsAt.After(now) && s.EndsAt.After(now) {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *mockSessionRepo) ListDueToClose(_ context.Context, now time.Time) ([]model.Session, error) {
	var result []model.Session
	for _, s := range m.sessions {
		if s.Status == model.SessionStatusActive && !s.EndsAt.After(now) {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *mockSessionRepo) ListDueToFinalize(_ context.Context, now time.Time) ([]model.Session, error) {
	var result []model.Session
	for _, s := range m.sessions {
		if s.Status == model.SessionStatusActive && !s.FinalizeAt.After(now) && s.FinalizedAt == nil {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *mockSessionRepo) List(_ context.Context, date *time.Time, status string) ([]model.Session, error) {
	var result []model.Session
	for _, s := range m.sessions {
		if date != nil && s.StartsAt.Format("2006-01-02") != date.Format("2006-01-02") {
			continue
		}
		if status != "" && s.Status != status {
			continue
		}
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartsAt.Before(result[j].StartsAt) })
	return result, nil
}

func (m *mockSessionRepo) TransitionStatus(_ context.Context, id, from, to string, now time.Time) (bool, error) {
	s, ok := m.sessions[id]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	s.UpdatedAt = now
	return true, nil
}

func (m *mockSessionRepo) MarkFinalized(_ context.Context, id string, now time.Time) error {
	s, ok := m.sessions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	t := now
	s.FinalizedAt = &t
	return nil
}

// ── Mock AttendanceRepository ──

type mockAttendanceRepo struct {
	seq  int
	rows map[string]*model.Attendance // key: sessionID|studentID
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{rows: make(map[string]*model.Attendance)}
}

func attKey(sessionID, studentID string) string { return sessionID + "|" + studentID }

func (m *mockAttendanceRepo) Create(_ context.Context, attendance *model.Attendance) error {
	key := attKey(attendance.SessionID, attendance.StudentID)
	if _, exists := m.rows[key]; exists {
		return gorm.ErrDuplicatedKey
	}
	m.seq++
	attendance.AttendanceID = fmt.Sprintf("att-%03d", m.seq)
	m.rows[key] = attendance
	return nil
}

func (m *mockAttendanceRepo) GetBySessionAndStudent(_ context.Context, sessionID, studentID string) (*model.Attendance, error) {
	if row, ok := m.rows[attKey(sessionID, studentID)]; ok {
		return row, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepo) UpdateLastSeen(_ context.Context, attendanceID string, now time.Time, confidence *float64) error {
	for _, row := range m.rows {
		if row.AttendanceID == attendanceID {
			t := now
			row.LastSeenTime = &t
			if confidence != nil {
				row.Confidence = confidence
			}
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepo) ListBySession(_ context.Context, sessionID string) ([]model.Attendance, error) {
	var result []model.Attendance
	for _, row := range m.rows {
		if row.SessionID == sessionID {
			result = append(result, *row)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AttendanceID < result[j].AttendanceID })
	return result, nil
}

// ── Mock ReentryRepository ──

type mockReentryRepo struct {
	events []model.ReentryEvent
}

func newMockReentryRepo() *mockReentryRepo { return &mockReentryRepo{} }

func (m *mockReentryRepo) Log(_ context.Context, event *model.ReentryEvent) error {
	event.EventID = fmt.Sprintf("evt-%03d", len(m.events)+1)
	m.events = append(m.events, *event)
	return nil
}

func (m *mockReentryRepo) ListBySession(_ context.Context, sessionID string) ([]model.ReentryEvent, error) {
	var result []model.ReentryEvent
	for _, e := range m.events {
		if e.SessionID == sessionID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockReentryRepo) ListSuspicious(_ context.Context, sessionID string) ([]model.ReentryEvent, error) {
	var result []model.ReentryEvent
	for _, e := range m.events {
		if e.SessionID == sessionID && e.Suspicious {
			result = append(result, e)
		}
	}
	return result, nil
}

// ── Mock SettingRepository ──

type mockSettingRepo struct {
	values map[string]string
}

func newMockSettingRepo() *mockSettingRepo {
	return &mockSettingRepo{values: make(map[string]string)}
}

func (m *mockSettingRepo) GetAll(_ context.Context) ([]model.Setting, error) {
	var result []model.Setting
	for k, v := range m.values {
		result = append(result, model.Setting{Key: k, Value: v})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (m *mockSettingRepo) Get(_ context.Context, key string) (*model.Setting, error) {
	if v, ok := m.values[key]; ok {
		return &model.Setting{Key: key, Value: v}, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSettingRepo) Upsert(_ context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	seq   int
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	m.seq++
	user.UserID = fmt.Sprintf("user-%03d", m.seq)
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── 聚合装配 ──

// testRepos 一次性装配全部 mock 仓储（db 为空，Transaction 直接执行）
type testRepos struct {
	repo       *repository.Repository
	students   *mockStudentRepo
	embeddings *mockEmbeddingRepo
	courses    *mockCourseRepo
	enrollment *mockEnrollmentRepo
	timeSlots  *mockTimeSlotRepo
	sessions   *mockSessionRepo
	attendance *mockAttendanceRepo
	reentry    *mockReentryRepo
	settings   *mockSettingRepo
	users      *mockUserRepo
}

func newTestRepos() *testRepos {
	students := newMockStudentRepo()
	embeddings := newMockEmbeddingRepo()
	t := &testRepos{
		students:   students,
		embeddings: embeddings,
		courses:    newMockCourseRepo(),
		enrollment: newMockEnrollmentRepo(students, embeddings),
		timeSlots:  newMockTimeSlotRepo(),
		sessions:   newMockSessionRepo(),
		attendance: newMockAttendanceRepo(),
		reentry:    newMockReentryRepo(),
		settings:   newMockSettingRepo(),
		users:      newMockUserRepo(),
	}
	t.repo = &repository.Repository{
		Student:    t.students,
		Embedding:  t.embeddings,
		Course:     t.courses,
		Enrollment: t.enrollment,
		TimeSlot:   t.timeSlots,
		Session:    t.sessions,
		Attendance: t.attendance,
		Reentry:    t.reentry,
		Setting:    t.settings,
		User:       t.users,
	}
	return t
}

// [自证通过] internal/service/mock_repos_test.go
