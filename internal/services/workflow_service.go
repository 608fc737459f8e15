package services

import (
	"context"

	"leadflow/internal/models"
	"leadflow/internal/repository"

	"gorm.io/gorm"
)

// WorkflowService 工作流记录的查询与回收站操作；状态流转由 LeadLifecycle 负责
type WorkflowService struct {
	db *gorm.DB
}

func NewWorkflowService(db *gorm.DB) *WorkflowService {
	return &WorkflowService{db: db}
}

// List 分页查询
func (s *WorkflowService) List(ctx context.Context, scope repository.Scope, filter repository.WorkflowFilter) ([]models.Workflow, int64, error) {
	repo, err := repository.New(s.db, scope)
	if err != nil {
		return nil, 0, err
	}
	return repo.FindWorkflows(ctx, filter)
}

// Get 工作流详情
func (s *WorkflowService) Get(ctx context.Context, scope repository.Scope, id string) (*models.Workflow, error) {
	repo, err := repository.New(s.db, scope)
	if err != nil {
		return nil, err
	}
	return repo.FindWorkflowByID(ctx, id)
}

func (s *WorkflowService) SoftDelete(ctx context.Context, scope repository.Scope, id, reason string) error {
	repo, err := repository.New(s.db, scope)
	if err != nil {
		return err
	}
	return repo.SoftDeleteWorkflow(ctx, id, reason)
}

func (s *WorkflowService) Restore(ctx context.Context, scope repository.Scope, id string) error {
	repo, err := repository.New(s.db, scope)
	if err != nil {
		return err
	}
	return repo.RestoreWorkflow(ctx, id)
}
