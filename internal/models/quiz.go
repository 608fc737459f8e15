package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuizQuestion 租户配置的测评题目，评分时只读
type QuizQuestion struct {
	BaseModel
	TenantID       string         `json:"tenant_id" gorm:"not null;size:100;uniqueIndex:idx_tenant_question_number"`
	QuestionNumber int            `json:"question_number" gorm:"not null;uniqueIndex:idx_tenant_question_number"`
	Type           string         `json:"type" gorm:"size:30;not null"`
	Text           string         `json:"text" gorm:"type:text;not null"`
	Subtext        string         `json:"subtext" gorm:"type:text"`
	Options        datatypes.JSON `json:"options"`
	ScoringWeight  int            `json:"scoring_weight" gorm:"default:0"`
	Required       bool           `json:"required" gorm:"not null"`
	MinSelections  int            `json:"min_selections" gorm:"default:0"`
}

// TableName 指定表名
func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// 题目类型
const (
	QuestionTypeContactInfo    = "contact_info"
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeCheckbox       = "checkbox"
	QuestionTypeText           = "text"
)

// QuizResponse 单题作答，创建后不可变
type QuizResponse struct {
	ID             uint           `json:"id" gorm:"primarykey"`
	TenantID       string         `json:"tenant_id" gorm:"not null;size:100;index"`
	LeadID         string         `json:"lead_id" gorm:"not null;size:36;index"`
	QuestionID     string         `json:"question_id" gorm:"size:100"`
	QuestionNumber int            `json:"question_number" gorm:"not null"`
	Answer         datatypes.JSON `json:"answer"`
	PointsEarned   int            `json:"points_earned"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TableName 指定表名
func (QuizResponse) TableName() string {
	return "quiz_responses"
}

// LeadScore 线索评分，与线索一对一
type LeadScore struct {
	ID                 uint              `json:"id" gorm:"primarykey"`
	TenantID           string            `json:"tenant_id" gorm:"not null;size:100;index"`
	LeadID             string            `json:"lead_id" gorm:"not null;size:36;uniqueIndex"`
	ReadinessScore     int               `json:"readiness_score"`
	QualificationScore *int              `json:"qualification_score"`
	TotalPoints        int               `json:"total_points"`
	MaxPossiblePoints  int               `json:"max_possible_points"`
	Tier               string            `json:"tier" gorm:"size:20;index"`
	Breakdown          datatypes.JSONMap `json:"breakdown"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// TableName 指定表名
func (LeadScore) TableName() string {
	return "lead_scores"
}
