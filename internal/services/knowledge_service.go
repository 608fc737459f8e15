package services

import (
	"context"
	"strings"

	"leadflow/internal/models"
	"leadflow/internal/repository"
	"leadflow/pkg/pagination"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// DocumentInput 新建知识库文档
type DocumentInput struct {
	Title     string `json:"title" validate:"required,max=300"`
	Content   string `json:"content" validate:"required"`
	SourceURL string `json:"source_url" validate:"omitempty,url,max=1000"`
}

// KnowledgeService 租户知识库，供调研工作流检索
type KnowledgeService struct {
	db       *gorm.DB
	validate *validator.Validate
}

func NewKnowledgeService(db *gorm.DB) *KnowledgeService {
	return &KnowledgeService{db: db, validate: NewValidator()}
}

// Create 新建文档
func (s *KnowledgeService) Create(ctx context.Context, scope repository.Scope, in DocumentInput) (*models.KnowledgeDocument, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.validate.Struct(in); err != nil {
		return nil, ValidationError(err)
	}
	repo, err := repository.New(s.db, scope)
	if err != nil {
		return nil, err
	}
	doc := &models.KnowledgeDocument{Title: in.Title, Content: in.Content, SourceURL: in.SourceURL}
	if err := repo.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// List 按标题关键字查询
func (s *KnowledgeService) List(ctx context.Context, scope repository.Scope, keyword string, page pagination.PageParams) ([]models.KnowledgeDocument, int64, error) {
	repo, err := repository.New(s.db, scope)
	if err != nil {
		return nil, 0, err
	}
	return repo.FindDocuments(ctx, keyword, page)
}

func (s *KnowledgeService) Get(ctx context.Context, scope repository.Scope, id string) (*models.KnowledgeDocument, error) {
	repo, err := repository.New(s.db, scope)
	if err != nil {
		return nil, err
	}
	return repo.FindDocumentByID(ctx, id)
}

func (s *KnowledgeService) SoftDelete(ctx context.Context, scope repository.Scope, id, reason string) error {
	repo, err := repository.New(s.db, scope)
	if err != nil {
		return err
	}
	return repo.SoftDeleteDocument(ctx, id, reason)
}

func (s *KnowledgeService) Restore(ctx context.Context, scope repository.Scope, id string) error {
	repo, err := repository.New(s.db, scope)
	if err != nil {
		return err
	}
	return repo.RestoreDocument(ctx, id)
}
