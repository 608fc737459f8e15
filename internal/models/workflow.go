package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Workflow 一条线索的调研/起草工作流记录；同一线索以最新一条为准
type Workflow struct {
	ID         string `json:"id" gorm:"primaryKey;size:36"`
	TenantID   string `json:"tenant_id" gorm:"not null;size:100;index"`
	LeadID     string `json:"lead_id" gorm:"not null;size:36;index"`
	Definition string `json:"definition" gorm:"size:100"`
	Status     string `json:"status" gorm:"size:30;not null;default:'running';index"`

	EmailDraft      *string        `json:"email_draft" gorm:"type:text"`
	ResearchResults datatypes.JSON `json:"research_results"`
	Error           *string        `json:"error" gorm:"type:text"`

	ApprovedBy  *string    `json:"approved_by" gorm:"size:100"`
	ApprovedAt  *time.Time `json:"approved_at"`
	RejectedBy  *string    `json:"rejected_by" gorm:"size:100"`
	RejectedAt  *time.Time `json:"rejected_at"`
	CompletedAt *time.Time `json:"completed_at"`

	SoftDelete
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Workflow) TableName() string {
	return "workflows"
}

// BeforeCreate 生成ID
func (w *Workflow) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	return nil
}

// 工作流状态
const (
	WorkflowStatusRunning          = "running"
	WorkflowStatusAwaitingApproval = "awaiting_approval"
	WorkflowStatusCompleted        = "completed"
	WorkflowStatusFailed           = "failed"
	WorkflowStatusCancelled        = "cancelled"
)

// IsActive 仍可被取消
func (w *Workflow) IsActive() bool {
	return w.Status == WorkflowStatusRunning || w.Status == WorkflowStatusAwaitingApproval
}
