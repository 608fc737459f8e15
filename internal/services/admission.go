package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"leadflow/internal/auth"
	"leadflow/internal/models"
	"leadflow/internal/repository"
	"leadflow/pkg/config"
	apperrors "leadflow/pkg/errors"
	"leadflow/pkg/metrics"
	"leadflow/pkg/scoring"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Operation 提交入口，每个入口有独立的限流预算
type Operation string

const (
	OpDemoQuiz   Operation = "demo_quiz"
	OpQuizSubmit Operation = "quiz_submit"
	OpFormSubmit Operation = "form_submit"
)

// ResponseInput 单题作答，得分由前端按题目权重计算
type ResponseInput struct {
	QuestionID     string          `json:"question_id" validate:"max=100"`
	QuestionNumber int             `json:"question_number" validate:"required,min=1,max=100"`
	Answer         json.RawMessage `json:"answer" validate:"required"`
	PointsEarned   int             `json:"points_earned" validate:"min=0"`
}

// QuizPayload 测评提交
type QuizPayload struct {
	Responses []ResponseInput `json:"responses" validate:"required,min=1,max=100,dive"`
	Message   string          `json:"message" validate:"max=5000"`
}

// FormPayload 已登录用户的联系表单
type FormPayload struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email,max=200"`
	Company string `json:"company" validate:"max=200"`
	Phone   string `json:"phone" validate:"max=50"`
	Title   string `json:"title" validate:"max=200"`
	Message string `json:"message" validate:"max=5000"`
}

// contactRules 第 1 题联系方式的校验规则
type contactRules struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email,max=200"`
	Company string `json:"company" validate:"max=200"`
	Phone   string `json:"phone" validate:"max=50"`
	Title   string `json:"title" validate:"max=200"`
}

// Submission 一次入站提交
type Submission struct {
	Operation Operation
	Tenant    *models.Tenant
	Identity  *auth.Identity // 表单提交时为登录用户，匿名测评为 nil
	ClientIP  string
	Request   *http.Request
	Quiz      *QuizPayload
	Form      *FormPayload
	DecodeErr error // 请求体无法解析，留到校验步骤再报告
}

// AdmissionResult 提交成功后返回给调用方的数据
type AdmissionResult struct {
	LeadID    string         `json:"leadId"`
	Score     int            `json:"score"`
	Tier      scoring.Tier   `json:"tier,omitempty"`
	Action    scoring.Action `json:"action"`
	Breakdown map[string]int `json:"breakdown,omitempty"`
}

// AdmissionDeps 准入守卫的协作方
type AdmissionDeps struct {
	DB         *gorm.DB
	Bots       BotDetector
	Limiter    RateLimiter
	Quota      QuotaGuard
	Starter    WorkflowStarter
	Notifier   Notifier
	Dispatcher *Dispatcher
	Budgets    config.RateLimitConfig
	Definition string
	Log        *logrus.Logger
	Metrics    *metrics.Metrics
}

// AdmissionGuard 依次执行 机器人检测 → 限流 → 配额 → 校验，全部通过后才创建线索
type AdmissionGuard struct {
	AdmissionDeps
	validate *validator.Validate
}

// NewAdmissionGuard 创建准入守卫
func NewAdmissionGuard(deps AdmissionDeps) *AdmissionGuard {
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	return &AdmissionGuard{AdmissionDeps: deps, validate: NewValidator()}
}

// NewValidator 校验错误中使用 json 字段名
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Admit 处理提交；守卫失败时不写入任何数据，创建之后的失败只记录日志
func (g *AdmissionGuard) Admit(ctx context.Context, sub Submission) (*AdmissionResult, error) {
	result, err := g.admit(ctx, sub)
	outcome := "accepted"
	if err != nil {
		outcome = "error"
		if appErr, ok := apperrors.As(err); ok {
			outcome = string(appErr.Kind)
		}
	}
	g.Metrics.Admission(string(sub.Operation), outcome)
	return result, err
}

func (g *AdmissionGuard) admit(ctx context.Context, sub Submission) (*AdmissionResult, error) {
	budget, ok := g.budgetFor(sub.Operation)
	if !ok {
		return nil, fmt.Errorf("unknown admission operation %q", sub.Operation)
	}
	if sub.Tenant == nil {
		return nil, apperrors.NotFound("tenant")
	}
	log := g.Log.WithFields(logrus.Fields{
		"operation": sub.Operation,
		"tenant_id": sub.Tenant.OrgID,
	})

	// 1. 机器人检测
	if sub.Request != nil {
		bot, err := g.Bots.IsBot(WithClientIP(ctx, sub.ClientIP), sub.Request)
		if err != nil {
			log.WithError(err).Warn("Bot check failed, continuing")
		}
		if bot {
			return nil, apperrors.ErrBotDetected
		}
	}

	// 2. 按客户端限流
	decision, err := g.Limiter.Allow(ctx, ClientKey(sub.ClientIP), budget)
	if err != nil {
		log.WithError(err).Warn("Rate limiter failed, allowing request")
	} else if !decision.Allowed {
		return nil, apperrors.RateLimited(decision.Limit, decision.Remaining, decision.ResetAt, decision.RetryAfter)
	}

	// 3. 租户月度配额
	reservation, err := g.Quota.Reserve(ctx, sub.Tenant)
	if err != nil {
		return nil, err
	}

	// 4. 校验并评分
	intake, result, err := g.buildIntake(sub)
	if err != nil {
		reservation.Release(ctx)
		return nil, err
	}

	scope := repository.PublicIntakeScope(sub.Tenant.OrgID)
	if sub.Identity != nil {
		scope.UserID = sub.Identity.UserID
	}
	repo, err := repository.New(g.DB, scope)
	if err != nil {
		reservation.Release(ctx)
		return nil, err
	}
	if err := repo.CreateIntake(ctx, intake); err != nil {
		reservation.Release(ctx)
		return nil, fmt.Errorf("create lead: %w", err)
	}

	lead := intake.Lead
	result.LeadID = lead.ID
	g.Metrics.LeadCreated(lead.Source, string(result.Tier))
	log.WithFields(logrus.Fields{
		"lead_id": lead.ID,
		"tier":    result.Tier,
		"action":  result.Action,
	}).Info("Lead admitted")

	g.afterCreate(scope, lead, result)
	return result, nil
}

func (g *AdmissionGuard) budgetFor(op Operation) (config.Budget, bool) {
	switch op {
	case OpDemoQuiz:
		return g.Budgets.DemoQuiz, true
	case OpQuizSubmit:
		return g.Budgets.QuizSubmit, true
	case OpFormSubmit:
		return g.Budgets.FormSubmit, true
	default:
		return config.Budget{}, false
	}
}

// buildIntake 校验负载并组装待写入的数据
func (g *AdmissionGuard) buildIntake(sub Submission) (repository.Intake, *AdmissionResult, error) {
	if sub.DecodeErr != nil {
		return repository.Intake{}, nil, apperrors.Validation("body", "must be valid JSON")
	}
	if sub.Operation == OpFormSubmit {
		return g.buildFormIntake(sub.Form)
	}

	engine, source := scoring.Production, models.LeadSourceQuiz
	if sub.Operation == OpDemoQuiz {
		engine, source = scoring.Demo, models.LeadSourceDemo
	}
	return g.buildQuizIntake(sub.Quiz, engine, source)
}

func (g *AdmissionGuard) buildQuizIntake(p *QuizPayload, engine scoring.Engine, source string) (repository.Intake, *AdmissionResult, error) {
	if p == nil {
		return repository.Intake{}, nil, apperrors.Validation("responses", "is required")
	}
	if err := g.validate.Struct(p); err != nil {
		return repository.Intake{}, nil, ValidationError(err)
	}

	seen := make(map[int]struct{}, len(p.Responses))
	responses := make([]scoring.Response, 0, len(p.Responses))
	rows := make([]models.QuizResponse, 0, len(p.Responses))
	for _, r := range p.Responses {
		if _, dup := seen[r.QuestionNumber]; dup {
			return repository.Intake{}, nil, apperrors.Validation("responses", fmt.Sprintf("question %d answered twice", r.QuestionNumber))
		}
		seen[r.QuestionNumber] = struct{}{}
		responses = append(responses, scoring.Response{QuestionNumber: r.QuestionNumber, Answer: r.Answer, PointsEarned: r.PointsEarned})
		rows = append(rows, models.QuizResponse{
			QuestionID:     r.QuestionID,
			QuestionNumber: r.QuestionNumber,
			Answer:         datatypes.JSON(r.Answer),
			PointsEarned:   r.PointsEarned,
		})
	}

	contact := scoring.ExtractContact(responses)
	if err := g.validate.Struct(contactRules(contact)); err != nil {
		return repository.Intake{}, nil, prefixField("contact", ValidationError(err))
	}

	scored := engine.Score(responses)
	breakdown := make(datatypes.JSONMap, len(scored.Breakdown))
	for k, v := range scored.Breakdown {
		breakdown[k] = v
	}

	intake := repository.Intake{
		Lead: &models.Lead{
			Name:    contact.Name,
			Email:   contact.Email,
			Company: contact.Company,
			Phone:   contact.Phone,
			Title:   contact.Title,
			Message: p.Message,
			Source:  source,
		},
		Responses: rows,
		Score: &models.LeadScore{
			ReadinessScore:    scored.PercentageScore,
			TotalPoints:       scored.TotalPoints,
			MaxPossiblePoints: scored.MaxPossiblePoints,
			Tier:              string(scored.Tier),
			Breakdown:         breakdown,
		},
	}
	return intake, &AdmissionResult{
		Score:     scored.PercentageScore,
		Tier:      scored.Tier,
		Action:    scoring.ActionFor(scored.Tier),
		Breakdown: scored.Breakdown,
	}, nil
}

func (g *AdmissionGuard) buildFormIntake(p *FormPayload) (repository.Intake, *AdmissionResult, error) {
	if p == nil {
		return repository.Intake{}, nil, apperrors.Validation("body", "is required")
	}
	form := *p
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	if err := g.validate.Struct(form); err != nil {
		return repository.Intake{}, nil, ValidationError(err)
	}
	intake := repository.Intake{Lead: &models.Lead{
		Name:    form.Name,
		Email:   form.Email,
		Company: strings.TrimSpace(form.Company),
		Phone:   strings.TrimSpace(form.Phone),
		Title:   strings.TrimSpace(form.Title),
		Message: form.Message,
		Source:  models.LeadSourceForm,
	}}
	// 表单线索没有测评分数，直接进入资格审查工作流
	return intake, &AdmissionResult{Action: scoring.ActionTriggerWorkflow}, nil
}

// afterCreate 线索已持久化，后续动作全部异步执行，失败只进入错误汇
func (g *AdmissionGuard) afterCreate(scope repository.Scope, lead *models.Lead, result *AdmissionResult) {
	g.Dispatcher.Submit("publish_lead_event", func(ctx context.Context) error {
		return g.Notifier.Notify(ctx, Notification{
			Kind:     NotifyLeadCreated,
			TenantID: scope.TenantID,
			LeadID:   lead.ID,
			Fields: map[string]interface{}{
				"source": lead.Source,
				"tier":   result.Tier,
				"score":  result.Score,
			},
		})
	})

	switch result.Action {
	case scoring.ActionTriggerWorkflow:
		g.Dispatcher.Submit("start_workflow", func(ctx context.Context) error {
			return g.startWorkflow(ctx, scope, lead, result)
		})
	case scoring.ActionManualReview:
		g.Dispatcher.Submit("sales_alert", func(ctx context.Context) error {
			err := g.Notifier.Notify(ctx, Notification{
				Kind:      NotifySalesAlert,
				TenantID:  scope.TenantID,
				LeadID:    lead.ID,
				Recipient: lead.Email,
				Subject:   fmt.Sprintf("New %s lead: %s", result.Tier, displayName(lead)),
				Body:      fmt.Sprintf("Score %d%%, email %s", result.Score, lead.Email),
				Fields: map[string]interface{}{
					"tier":  result.Tier,
					"score": result.Score,
				},
			})
			if err != nil {
				return apperrors.Downstream("sales alert", err)
			}
			return nil
		})
	case scoring.ActionNurture:
		// 培育阶段不启动工作流
	}
}

// startWorkflow 写入工作流记录并交给执行方；启动失败时把记录标记为 failed
func (g *AdmissionGuard) startWorkflow(ctx context.Context, scope repository.Scope, lead *models.Lead, result *AdmissionResult) error {
	repo, err := repository.New(g.DB, scope)
	if err != nil {
		return err
	}
	wf := &models.Workflow{LeadID: lead.ID, Definition: g.Definition}
	if err := repo.CreateWorkflow(ctx, wf); err != nil {
		return apperrors.Downstream("create workflow", err)
	}

	err = g.Starter.Start(ctx, g.Definition, WorkflowArgs{
		WorkflowID: wf.ID,
		TenantID:   scope.TenantID,
		LeadID:     lead.ID,
		Tier:       string(result.Tier),
		Score:      result.Score,
		Email:      lead.Email,
		Company:    lead.Company,
	})
	if err == nil {
		return nil
	}

	msg := err.Error()
	if uerr := repo.UpdateWorkflow(ctx, wf.ID, map[string]interface{}{
		"status": models.WorkflowStatusFailed,
		"error":  msg,
	}); uerr != nil {
		g.Log.WithError(uerr).WithField("workflow_id", wf.ID).Warn("Failed to mark workflow as failed")
	}
	return apperrors.Downstream("start workflow", err)
}

// ValidationError 取第一个校验错误，报告字段与原因
func ValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return apperrors.Validation("body", err.Error())
	}
	fe := verrs[0]
	return apperrors.Validation(fieldPath(fe.Namespace()), reasonFor(fe))
}

// fieldPath 去掉顶层结构体名：QuizPayload.responses[0].answer → responses[0].answer
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

func prefixField(prefix string, err error) error {
	if appErr, ok := apperrors.As(err); ok && appErr.Field != "" {
		return apperrors.Validation(prefix+"."+appErr.Field, appErr.Message)
	}
	return err
}
