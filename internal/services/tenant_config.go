package services

import (
	"context"
	"encoding/json"
	"fmt"

	"leadflow/internal/models"
	"leadflow/internal/repository"
	apperrors "leadflow/pkg/errors"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PublicConfig 测评页面渲染所需的租户信息，不含任何内部标识
type PublicConfig struct {
	Name      string                `json:"name"`
	Subdomain string                `json:"subdomain"`
	Branding  models.Branding       `json:"branding"`
	Questions []models.QuizQuestion `json:"questions"`
}

// QuestionInput 题目定义
type QuestionInput struct {
	QuestionNumber int             `json:"question_number" validate:"required,min=1,max=100"`
	Type           string          `json:"type" validate:"required,oneof=contact_info multiple_choice checkbox text"`
	Text           string          `json:"text" validate:"required"`
	Subtext        string          `json:"subtext"`
	Options        json.RawMessage `json:"options"`
	ScoringWeight  int             `json:"scoring_weight" validate:"min=0"`
	Required       bool            `json:"required"`
	MinSelections  int             `json:"min_selections" validate:"min=0"`
}

// TenantConfigService 租户公开配置与题目维护
type TenantConfigService struct {
	db       *gorm.DB
	validate *validator.Validate
}

func NewTenantConfigService(db *gorm.DB) *TenantConfigService {
	return &TenantConfigService{db: db, validate: NewValidator()}
}

// PublicConfig 品牌与题目
func (s *TenantConfigService) PublicConfig(ctx context.Context, tenant *models.Tenant) (*PublicConfig, error) {
	repo, err := repository.New(s.db, repository.PublicIntakeScope(tenant.OrgID))
	if err != nil {
		return nil, err
	}
	questions, err := repo.Questions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		questions[i].TenantID = ""
	}
	return &PublicConfig{
		Name:      tenant.Name,
		Subdomain: tenant.Subdomain,
		Branding:  tenant.Branding(),
		Questions: questions,
	}, nil
}

// ReplaceQuestions 整体替换题目；题号不能重复，第 1 题必须是联系方式
func (s *TenantConfigService) ReplaceQuestions(ctx context.Context, scope repository.Scope, in []QuestionInput) ([]models.QuizQuestion, error) {
	if err := scope.Require(models.PermOrgManage); err != nil {
		return nil, err
	}

	seen := make(map[int]struct{}, len(in))
	questions := make([]models.QuizQuestion, 0, len(in))
	for i, q := range in {
		if err := s.validate.Struct(q); err != nil {
			return nil, prefixField(fmt.Sprintf("questions[%d]", i), ValidationError(err))
		}
		if _, dup := seen[q.QuestionNumber]; dup {
			return nil, apperrors.Validation(fmt.Sprintf("questions[%d].question_number", i), "must be unique")
		}
		seen[q.QuestionNumber] = struct{}{}
		if q.QuestionNumber == 1 && q.Type != models.QuestionTypeContactInfo {
			return nil, apperrors.Validation(fmt.Sprintf("questions[%d].type", i), "question 1 must collect contact info")
		}
		questions = append(questions, models.QuizQuestion{
			QuestionNumber: q.QuestionNumber,
			Type:           q.Type,
			Text:           q.Text,
			Subtext:        q.Subtext,
			Options:        datatypes.JSON(q.Options),
			ScoringWeight:  q.ScoringWeight,
			Required:       q.Required,
			MinSelections:  q.MinSelections,
		})
	}

	repo, err := repository.New(s.db, scope)
	if err != nil {
		return nil, err
	}
	if err := repo.ReplaceQuestions(ctx, questions); err != nil {
		return nil, err
	}
	return repo.Questions(ctx)
}
