package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"leadflow/internal/middleware"
	"leadflow/internal/repository"
	"leadflow/internal/services"
	apperrors "leadflow/pkg/errors"
	"leadflow/pkg/pagination"
	"leadflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LeadHandler 线索管理接口
type LeadHandler struct {
	leads     *services.LeadService
	lifecycle *services.LeadLifecycle
	log       *logrus.Logger
}

func NewLeadHandler(leads *services.LeadService, lifecycle *services.LeadLifecycle, log *logrus.Logger) *LeadHandler {
	return &LeadHandler{leads: leads, lifecycle: lifecycle, log: log}
}

// ApproveRequest 审批请求，邮件草稿为编辑后的最终版本
type ApproveRequest struct {
	EmailDraft string `json:"email_draft"`
}

// DeleteRequest 移入回收站的原因
type DeleteRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// leadFilter 从查询参数构造过滤条件
func leadFilter(c *gin.Context) repository.LeadFilter {
	f := repository.LeadFilter{
		Status:  c.Query("status"),
		Source:  c.Query("source"),
		Keyword: c.Query("keyword"),
		Tier:    c.Query("tier"),
		Page:    pagination.ParsePageParams(c),
	}
	switch c.Query("deleted") {
	case "include":
		f.IncludeDeleted = true
	case "only":
		f.OnlyDeleted = true
	}
	return f
}

// List 线索列表
func (h *LeadHandler) List(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	filter := leadFilter(c)

	leads, total, err := h.leads.List(c.Request.Context(), scope, filter)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithPage(c, leads, pagination.NewPageInfo(filter.Page, total))
}

// Get 线索详情
func (h *LeadHandler) Get(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	detail, err := h.leads.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, detail)
}

// Score 线索评分
func (h *LeadHandler) Score(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	score, err := h.leads.Score(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, score)
}

// Update 修改联系信息
func (h *LeadHandler) Update(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	var req services.LeadUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, apperrors.Validation("body", "must be valid JSON"))
		return
	}
	lead, err := h.leads.Update(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, lead)
}

// Approve 审批通过
func (h *LeadHandler) Approve(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, apperrors.Validation("email_draft", "is required"))
		return
	}
	lead, err := h.lifecycle.Approve(c.Request.Context(), scope, c.Param("id"), req.EmailDraft)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, lead)
}

// Reject 拒绝，无请求体
func (h *LeadHandler) Reject(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	lead, err := h.lifecycle.Reject(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, lead)
}

// SoftDelete 移入回收站，原因可选
func (h *LeadHandler) SoftDelete(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	var req DeleteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.FromError(c, apperrors.Validation("reason", "must be at most 500 characters"))
			return
		}
	}
	if err := h.leads.SoftDelete(c.Request.Context(), scope, c.Param("id"), strings.TrimSpace(req.Reason)); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}

// Restore 从回收站恢复
func (h *LeadHandler) Restore(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	if err := h.leads.Restore(c.Request.Context(), scope, c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}

// Purge 物理删除
func (h *LeadHandler) Purge(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	if err := h.leads.Delete(c.Request.Context(), scope, c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}

// Stats 状态统计与本月用量
func (h *LeadHandler) Stats(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	tenant, _ := middleware.GetTenant(c)
	stats, err := h.leads.Stats(c.Request.Context(), scope, tenant)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, stats)
}

// Export 导出 CSV
func (h *LeadHandler) Export(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	filter := leadFilter(c)

	filename := fmt.Sprintf("leads-%s.csv", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)

	if _, err := h.leads.Export(c.Request.Context(), scope, filter, c.Writer); err != nil {
		if !c.Writer.Written() {
			c.Writer.Header().Del("Content-Disposition")
			c.Writer.Header().Set("Content-Type", "application/json; charset=utf-8")
			response.FromError(c, err)
			return
		}
		h.log.WithError(err).WithField("tenant_id", scope.TenantID).Error("Lead export aborted")
	}
}
