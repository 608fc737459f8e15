package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Lead 线索
type Lead struct {
	ID       string `json:"id" gorm:"primaryKey;size:36"`
	TenantID string `json:"tenant_id" gorm:"not null;size:100;index:idx_leads_tenant_status"`
	UserID   string `json:"user_id" gorm:"not null;size:100"`

	// 联系方式
	Name    string `json:"name" gorm:"size:200"`
	Email   string `json:"email" gorm:"size:200;index"`
	Company string `json:"company" gorm:"size:200"`
	Phone   string `json:"phone" gorm:"size:50"`
	Title   string `json:"title" gorm:"size:200"`
	Message string `json:"message" gorm:"type:text"`
	Source  string `json:"source" gorm:"size:20;default:'quiz'"`

	Status string `json:"status" gorm:"size:20;not null;default:'pending';index:idx_leads_tenant_status"`

	// 由工作流回填
	QualificationCategory *string        `json:"qualification_category" gorm:"size:50"`
	QualificationReason   *string        `json:"qualification_reason" gorm:"type:text"`
	EmailDraft            *string        `json:"email_draft" gorm:"type:text"`
	ResearchResults       datatypes.JSON `json:"research_results"`

	SoftDelete
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Score *LeadScore `json:"score,omitempty" gorm:"foreignKey:LeadID"`
}

// TableName 指定表名
func (Lead) TableName() string {
	return "leads"
}

// BeforeCreate 生成ID
func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// 线索状态
const (
	LeadStatusPending  = "pending"
	LeadStatusApproved = "approved"
	LeadStatusRejected = "rejected"
)

// 线索来源
const (
	LeadSourceQuiz = "quiz"
	LeadSourceDemo = "demo"
	LeadSourceForm = "form"
)

// IsTerminal 已审批或已拒绝
func (l *Lead) IsTerminal() bool {
	return l.Status == LeadStatusApproved || l.Status == LeadStatusRejected
}
