package handlers

import (
	"leadflow/internal/middleware"
	"leadflow/internal/services"
	apperrors "leadflow/pkg/errors"
	"leadflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// TenantHandler 租户公开配置与题目维护
type TenantHandler struct {
	configs *services.TenantConfigService
}

func NewTenantHandler(configs *services.TenantConfigService) *TenantHandler {
	return &TenantHandler{configs: configs}
}

// ReplaceQuestionsRequest 整体替换题目
type ReplaceQuestionsRequest struct {
	Questions []services.QuestionInput `json:"questions"`
}

// PublicConfig 测评页按 Host 获取品牌与题目
func (h *TenantHandler) PublicConfig(c *gin.Context) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		response.FromError(c, apperrors.NotFound("tenant"))
		return
	}
	cfg, err := h.configs.PublicConfig(c.Request.Context(), tenant)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, cfg)
}

// Current 当前组织的租户信息
func (h *TenantHandler) Current(c *gin.Context) {
	tenant, _ := middleware.GetTenant(c)
	response.Success(c, tenant)
}

// ReplaceQuestions 替换当前组织的题目
func (h *TenantHandler) ReplaceQuestions(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	var req ReplaceQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, apperrors.Validation("body", "must be valid JSON"))
		return
	}
	questions, err := h.configs.ReplaceQuestions(c.Request.Context(), scope, req.Questions)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, questions)
}
