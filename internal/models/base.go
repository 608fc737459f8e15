package models

import (
	"time"
)

// BaseModel 基础模型
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SoftDelete 软删除标记；与 gorm.DeletedAt 不同，额外记录操作人和原因，查询过滤由仓储层显式完成
type SoftDelete struct {
	DeletedAt      *time.Time `json:"deleted_at,omitempty" gorm:"index"`
	DeletedBy      *string    `json:"deleted_by,omitempty" gorm:"size:100"`
	DeletionReason *string    `json:"deletion_reason,omitempty" gorm:"size:500"`
}

// IsDeleted 是否已被软删除
func (s SoftDelete) IsDeleted() bool {
	return s.DeletedAt != nil
}
