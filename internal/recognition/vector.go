package recognition

import (
	"errors"
	"math"
)

// ErrZeroVector 零向量或非有限向量无法归一化
var ErrZeroVector = errors.New("零向量无法归一化")

// Normalize 将向量原地单位归一化
func Normalize(v []float32) error {
	var sum float64
	for _, f := range v {
		x := float64(f)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ErrZeroVector
		}
		sum += x * x
	}
	if sum == 0 {
		return ErrZeroVector
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return nil
}

// Cosine 计算两个单位向量的余弦相似度（即点积）。
// 维度不一致时返回 -1（不可能匹配）。
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return -1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// [自证通过] internal/recognition/vector.go
