package main

import (
	"context"
	"encoding/json"
	"fmt"

	"leadflow/internal/models"
	"leadflow/internal/repository"
	"leadflow/internal/services"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultSubdomain = "demo"
	defaultOrgID     = "org_demo"
)

// seedData 首次启动时创建演示租户及其题目；已有任何租户时跳过
func seedData(ctx context.Context, db *gorm.DB, log *logrus.Logger) error {
	log.Info("Starting seed data initialization...")

	store := repository.NewTenantStore(db)
	tenants, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("查询租户失败: %w", err)
	}
	if len(tenants) > 0 {
		log.Info("租户已存在，跳过初始化")
		return nil
	}

	// 1. 创建默认租户
	tenant := &models.Tenant{
		Name:      "Demo",
		Subdomain: defaultSubdomain,
		OrgID:     defaultOrgID,
		Plan:      models.PlanStarter,
		Status:    models.TenantStatusActive,
	}
	if err := store.Save(ctx, tenant); err != nil {
		return fmt.Errorf("创建默认租户失败: %w", err)
	}

	// 2. 初始化题目
	configs := services.NewTenantConfigService(db)
	if _, err := configs.ReplaceQuestions(ctx, repository.SystemScope(tenant.OrgID), defaultQuestions()); err != nil {
		return fmt.Errorf("初始化题目失败: %w", err)
	}

	log.WithFields(logrus.Fields{"subdomain": tenant.Subdomain, "org_id": tenant.OrgID}).
		Info("Seed data initialization completed successfully")
	return nil
}

func options(labels ...string) json.RawMessage {
	raw, _ := json.Marshal(labels)
	return raw
}

func defaultQuestions() []services.QuestionInput {
	return []services.QuestionInput{
		{QuestionNumber: 1, Type: models.QuestionTypeContactInfo, Text: "Tell us about yourself", Required: true},
		{QuestionNumber: 2, Type: models.QuestionTypeMultipleChoice, Text: "How large is your team?",
			Options: options("1-10", "11-50", "51-200", "200+"), ScoringWeight: 20, Required: true},
		{QuestionNumber: 4, Type: models.QuestionTypeMultipleChoice, Text: "How do you capture leads today?",
			Options: options("Spreadsheets", "A CRM", "Nothing formal"), ScoringWeight: 40, Required: true},
		{QuestionNumber: 9, Type: models.QuestionTypeCheckbox, Text: "What do you want to improve?",
			Options: options("Response time", "Qualification", "Personalised outreach", "Reporting"), ScoringWeight: 30, MinSelections: 1},
		{QuestionNumber: 12, Type: models.QuestionTypeMultipleChoice, Text: "When would you like to start?",
			Options: options("This month", "This quarter", "Just researching"), ScoringWeight: 50, Required: true},
		{QuestionNumber: 17, Type: models.QuestionTypeText, Text: "Anything else we should know?"},
	}
}
