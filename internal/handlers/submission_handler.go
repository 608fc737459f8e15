package handlers

import (
	"leadflow/internal/middleware"
	"leadflow/internal/services"
	apperrors "leadflow/pkg/errors"
	"leadflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// SubmissionHandler 公开测评与登录后表单的入口
type SubmissionHandler struct {
	guard *services.AdmissionGuard
}

func NewSubmissionHandler(guard *services.AdmissionGuard) *SubmissionHandler {
	return &SubmissionHandler{guard: guard}
}

// SubmitQuiz 正式测评提交
func (h *SubmissionHandler) SubmitQuiz(c *gin.Context) {
	h.submitQuiz(c, services.OpQuizSubmit)
}

// SubmitDemoQuiz 演示测评提交
func (h *SubmissionHandler) SubmitDemoQuiz(c *gin.Context) {
	h.submitQuiz(c, services.OpDemoQuiz)
}

func (h *SubmissionHandler) submitQuiz(c *gin.Context, op services.Operation) {
	tenant, ok := middleware.GetTenant(c)
	if !ok {
		response.FromError(c, apperrors.NotFound("tenant"))
		return
	}

	var payload services.QuizPayload
	sub := services.Submission{
		Operation: op,
		Tenant:    tenant,
		ClientIP:  c.ClientIP(),
		Request:   c.Request,
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		sub.DecodeErr = err
	} else {
		sub.Quiz = &payload
	}

	result, err := h.guard.Admit(c.Request.Context(), sub)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// SubmitForm 已登录用户提交联系表单
func (h *SubmissionHandler) SubmitForm(c *gin.Context) {
	tenant, _ := middleware.GetTenant(c)
	id, ok := middleware.GetIdentity(c)
	if !ok || tenant == nil {
		response.FromError(c, apperrors.ErrTenantContextMissing)
		return
	}

	var payload services.FormPayload
	sub := services.Submission{
		Operation: services.OpFormSubmit,
		Tenant:    tenant,
		Identity:  &id,
		ClientIP:  c.ClientIP(),
		Request:   c.Request,
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		sub.DecodeErr = err
	} else {
		sub.Form = &payload
	}

	result, err := h.guard.Admit(c.Request.Context(), sub)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}
