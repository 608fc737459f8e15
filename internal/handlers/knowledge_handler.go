package handlers

import (
	"strings"

	"leadflow/internal/middleware"
	"leadflow/internal/services"
	apperrors "leadflow/pkg/errors"
	"leadflow/pkg/pagination"
	"leadflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// KnowledgeHandler 知识库文档接口
type KnowledgeHandler struct {
	docs *services.KnowledgeService
}

func NewKnowledgeHandler(docs *services.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{docs: docs}
}

func (h *KnowledgeHandler) Create(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	var req services.DocumentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, apperrors.Validation("body", "must be valid JSON"))
		return
	}
	doc, err := h.docs.Create(c.Request.Context(), scope, req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *KnowledgeHandler) List(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	page := pagination.ParsePageParams(c)
	docs, total, err := h.docs.List(c.Request.Context(), scope, c.Query("keyword"), page)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithPage(c, docs, pagination.NewPageInfo(page, total))
}

func (h *KnowledgeHandler) Get(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	doc, err := h.docs.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *KnowledgeHandler) SoftDelete(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	if err := h.docs.SoftDelete(c.Request.Context(), scope, c.Param("id"), strings.TrimSpace(c.Query("reason"))); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *KnowledgeHandler) Restore(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	if err := h.docs.Restore(c.Request.Context(), scope, c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}
