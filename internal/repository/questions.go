package repository

import (
	"context"

	"leadflow/internal/models"

	"gorm.io/gorm"
)

// Questions 租户的测评题目，按题号排序
func (r *Repository) Questions(ctx context.Context) ([]models.QuizQuestion, error) {
	var questions []models.QuizQuestion
	err := r.scoped(ctx).Order("question_number ASC").Find(&questions).Error
	return questions, err
}

// ReplaceQuestions 覆盖租户的测评题目
func (r *Repository) ReplaceQuestions(ctx context.Context, questions []models.QuizQuestion) error {
	if err := r.scope.Require(models.PermOrgManage); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.scopedTx(tx).Delete(&models.QuizQuestion{}).Error; err != nil {
			return err
		}
		if len(questions) == 0 {
			return nil
		}
		for i := range questions {
			questions[i].ID = 0
			questions[i].TenantID = r.scope.TenantID
		}
		return tx.Create(&questions).Error
	})
}
