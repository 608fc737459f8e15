package handlers

import (
	"strings"

	"leadflow/internal/middleware"
	"leadflow/internal/models"
	"leadflow/internal/repository"
	"leadflow/internal/services"
	apperrors "leadflow/pkg/errors"
	"leadflow/pkg/pagination"
	"leadflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// WorkflowHandler 工作流记录接口，以及执行方的结果回调
type WorkflowHandler struct {
	workflows *services.WorkflowService
	lifecycle *services.LeadLifecycle
	validate  *validator.Validate
}

func NewWorkflowHandler(workflows *services.WorkflowService, lifecycle *services.LeadLifecycle) *WorkflowHandler {
	return &WorkflowHandler{workflows: workflows, lifecycle: lifecycle, validate: services.NewValidator()}
}

// ResultCallback 执行方回写的请求体
type ResultCallback struct {
	TenantID string `json:"tenant_id"`
	services.WorkflowResult
}

// List 工作流列表
func (h *WorkflowHandler) List(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	filter := repository.WorkflowFilter{
		LeadID:         c.Query("lead_id"),
		Status:         c.Query("status"),
		IncludeDeleted: c.Query("deleted") == "include",
		Page:           pagination.ParsePageParams(c),
	}
	if filter.IncludeDeleted {
		if err := scope.Require(models.PermLeadDelete); err != nil {
			response.FromError(c, err)
			return
		}
	}

	workflows, total, err := h.workflows.List(c.Request.Context(), scope, filter)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithPage(c, workflows, pagination.NewPageInfo(filter.Page, total))
}

// Get 工作流详情
func (h *WorkflowHandler) Get(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	wf, err := h.workflows.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, wf)
}

// Cancel 取消运行中的工作流
func (h *WorkflowHandler) Cancel(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	wf, err := h.lifecycle.CancelWorkflow(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, wf)
}

// SoftDelete 移入回收站
func (h *WorkflowHandler) SoftDelete(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	reason := strings.TrimSpace(c.Query("reason"))
	if err := h.workflows.SoftDelete(c.Request.Context(), scope, c.Param("id"), reason); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}

// Restore 从回收站恢复
func (h *WorkflowHandler) Restore(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	if err := h.workflows.Restore(c.Request.Context(), scope, c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}

// RecordResult 执行方回写调研结果与邮件草稿
func (h *WorkflowHandler) RecordResult(c *gin.Context) {
	var req ResultCallback
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, apperrors.Validation("body", "must be valid JSON"))
		return
	}
	if strings.TrimSpace(req.TenantID) == "" {
		response.FromError(c, apperrors.Validation("tenant_id", "is required"))
		return
	}
	if err := h.validate.Struct(req.WorkflowResult); err != nil {
		response.FromError(c, services.ValidationError(err))
		return
	}

	wf, err := h.lifecycle.RecordWorkflowResult(c.Request.Context(), req.TenantID, c.Param("id"), req.WorkflowResult)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, wf)
}
