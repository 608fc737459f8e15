package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// KnowledgeDocument 租户知识库文档，供调研工作流引用
type KnowledgeDocument struct {
	ID        string `json:"id" gorm:"primaryKey;size:36"`
	TenantID  string `json:"tenant_id" gorm:"not null;size:100;index"`
	UserID    string `json:"user_id" gorm:"not null;size:100"`
	Title     string `json:"title" gorm:"size:300;not null"`
	Content   string `json:"content" gorm:"type:text"`
	SourceURL string `json:"source_url" gorm:"size:1000"`

	SoftDelete
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (KnowledgeDocument) TableName() string {
	return "knowledge_documents"
}

// BeforeCreate 生成ID
func (d *KnowledgeDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}
