package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadflow/internal/models"
	"leadflow/internal/repository"
	apperrors "leadflow/pkg/errors"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WorkflowResult 工作流执行方回写的结果
type WorkflowResult struct {
	Status                string          `json:"status" validate:"required,oneof=awaiting_approval failed"`
	EmailDraft            string          `json:"email_draft"`
	ResearchResults       json.RawMessage `json:"research_results"`
	QualificationCategory string          `json:"qualification_category" validate:"max=50"`
	QualificationReason   string          `json:"qualification_reason"`
	QualificationScore    *int            `json:"qualification_score" validate:"omitempty,min=0,max=100"`
	Error                 string          `json:"error"`
}

// LeadLifecycle 线索状态机：pending → approved | rejected，并同步最新的工作流记录
type LeadLifecycle struct {
	db         *gorm.DB
	notifier   Notifier
	dispatcher *Dispatcher
	log        *logrus.Logger
	now        func() time.Time
}

// NewLeadLifecycle 创建状态机
func NewLeadLifecycle(db *gorm.DB, notifier Notifier, dispatcher *Dispatcher, log *logrus.Logger) *LeadLifecycle {
	return &LeadLifecycle{db: db, notifier: notifier, dispatcher: dispatcher, log: log, now: time.Now}
}

// Approve 审批通过并保存编辑后的邮件草稿；草稿随后异步交给通知方投递
func (l *LeadLifecycle) Approve(ctx context.Context, scope repository.Scope, leadID, draft string) (*models.Lead, error) {
	if err := scope.Require(models.PermLeadApprove); err != nil {
		return nil, err
	}
	if strings.TrimSpace(draft) == "" {
		return nil, apperrors.Validation("email_draft", "is required")
	}

	lead, err := l.transition(ctx, scope, leadID, models.LeadStatusApproved, draft)
	if err != nil {
		return nil, err
	}

	l.notify("deliver_approved_draft", Notification{
		Kind:      NotifyDraftApproved,
		TenantID:  scope.TenantID,
		LeadID:    lead.ID,
		Recipient: lead.Email,
		Subject:   fmt.Sprintf("Follow-up for %s", displayName(lead)),
		Body:      draft,
	})
	l.notify("publish_lead_event", leadEvent(NotifyLeadApproved, scope, lead))
	return lead, nil
}

// Reject 拒绝线索
func (l *LeadLifecycle) Reject(ctx context.Context, scope repository.Scope, leadID string) (*models.Lead, error) {
	if err := scope.Require(models.PermLeadApprove); err != nil {
		return nil, err
	}

	lead, err := l.transition(ctx, scope, leadID, models.LeadStatusRejected, "")
	if err != nil {
		return nil, err
	}
	l.notify("publish_lead_event", leadEvent(NotifyLeadRejected, scope, lead))
	return lead, nil
}

// transition 在一个事务里更新线索状态并标记最新工作流；没有工作流时只更新线索，
// 仍在运行或待审批的工作流随之完成
func (l *LeadLifecycle) transition(ctx context.Context, scope repository.Scope, leadID, to, draft string) (*models.Lead, error) {
	var lead *models.Lead
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo, err := repository.New(tx, scope)
		if err != nil {
			return err
		}

		lead, err = repo.FindByID(ctx, leadID)
		if err != nil {
			return err
		}
		if lead.Status != models.LeadStatusPending {
			return apperrors.InvalidTransition(lead.Status, to)
		}

		leadUpdates := map[string]interface{}{}
		if draft != "" {
			leadUpdates["email_draft"] = draft
		}
		if err := repo.SetStatus(ctx, leadID, to, leadUpdates); err != nil {
			return err
		}

		wf, err := repo.LatestWorkflowForLead(ctx, leadID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		now := l.now()
		wfUpdates := map[string]interface{}{}
		// 已取消或失败的工作流保留终态，只记录审批人
		if wf.IsActive() {
			wfUpdates["status"] = models.WorkflowStatusCompleted
			wfUpdates["completed_at"] = now
		}
		if to == models.LeadStatusApproved {
			wfUpdates["approved_by"] = scope.UserID
			wfUpdates["approved_at"] = now
			wfUpdates["email_draft"] = draft
		} else {
			wfUpdates["rejected_by"] = scope.UserID
			wfUpdates["rejected_at"] = now
		}
		return repo.UpdateWorkflow(ctx, wf.ID, wfUpdates)
	})
	if err != nil {
		return nil, err
	}

	lead.Status = to
	if draft != "" {
		lead.EmailDraft = &draft
	}
	l.log.WithFields(logrus.Fields{
		"tenant_id": scope.TenantID,
		"lead_id":   leadID,
		"status":    to,
		"actor":     scope.UserID,
	}).Info("Lead status changed")
	return lead, nil
}

// RecordWorkflowResult 工作流执行方回写调研结果与邮件草稿
func (l *LeadLifecycle) RecordWorkflowResult(ctx context.Context, tenantID, workflowID string, res WorkflowResult) (*models.Workflow, error) {
	scope := repository.SystemScope(tenantID)
	var wf *models.Workflow

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo, err := repository.New(tx, scope)
		if err != nil {
			return err
		}
		wf, err = repo.FindWorkflowByID(ctx, workflowID)
		if err != nil {
			return err
		}
		if wf.Status != models.WorkflowStatusRunning {
			return apperrors.InvalidTransition(wf.Status, res.Status)
		}

		updates := map[string]interface{}{"status": res.Status}
		if res.EmailDraft != "" {
			updates["email_draft"] = res.EmailDraft
		}
		if len(res.ResearchResults) > 0 {
			updates["research_results"] = datatypes.JSON(res.ResearchResults)
		}
		if res.Status == models.WorkflowStatusFailed {
			updates["error"] = res.Error
			updates["completed_at"] = l.now()
		}
		if err := repo.UpdateWorkflow(ctx, wf.ID, updates); err != nil {
			return err
		}
		if res.Status == models.WorkflowStatusFailed {
			return nil
		}

		leadUpdates := map[string]interface{}{}
		if res.EmailDraft != "" {
			leadUpdates["email_draft"] = res.EmailDraft
		}
		if len(res.ResearchResults) > 0 {
			leadUpdates["research_results"] = datatypes.JSON(res.ResearchResults)
		}
		if err := repo.Update(ctx, wf.LeadID, leadUpdates); err != nil {
			return err
		}
		if res.QualificationCategory == "" && res.QualificationScore == nil {
			return nil
		}
		return repo.BackfillQualification(ctx, wf.LeadID, repository.Qualification{
			Category: res.QualificationCategory,
			Reason:   res.QualificationReason,
			Score:    res.QualificationScore,
		})
	})
	if err != nil {
		return nil, err
	}

	wf.Status = res.Status
	return wf, nil
}

// CancelWorkflow 取消仍在运行或等待审批的工作流
func (l *LeadLifecycle) CancelWorkflow(ctx context.Context, scope repository.Scope, workflowID string) (*models.Workflow, error) {
	if err := scope.Require(models.PermWorkflowCancel); err != nil {
		return nil, err
	}

	var wf *models.Workflow
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo, err := repository.New(tx, scope)
		if err != nil {
			return err
		}
		wf, err = repo.FindWorkflowByID(ctx, workflowID)
		if err != nil {
			return err
		}
		if !wf.IsActive() {
			return apperrors.InvalidTransition(wf.Status, models.WorkflowStatusCancelled)
		}
		now := l.now()
		wf.Status = models.WorkflowStatusCancelled
		wf.CompletedAt = &now
		return repo.UpdateWorkflow(ctx, wf.ID, map[string]interface{}{
			"status":       models.WorkflowStatusCancelled,
			"completed_at": now,
		})
	})
	if err != nil {
		return nil, err
	}
	return wf, nil
}

func (l *LeadLifecycle) notify(task string, n Notification) {
	l.dispatcher.Submit(task, func(ctx context.Context) error {
		if err := l.notifier.Notify(ctx, n); err != nil {
			return apperrors.Downstream("notification", err)
		}
		return nil
	})
}

func leadEvent(kind NotificationKind, scope repository.Scope, lead *models.Lead) Notification {
	return Notification{
		Kind:     kind,
		TenantID: scope.TenantID,
		LeadID:   lead.ID,
		Fields: map[string]interface{}{
			"status": lead.Status,
			"actor":  scope.UserID,
		},
	}
}

func displayName(lead *models.Lead) string {
	switch {
	case lead.Name != "" && lead.Company != "":
		return fmt.Sprintf("%s (%s)", lead.Name, lead.Company)
	case lead.Name != "":
		return lead.Name
	case lead.Company != "":
		return lead.Company
	default:
		return lead.Email
	}
}
