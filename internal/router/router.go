package router

import (
	"time"

	"leadflow/internal/handlers"
	"leadflow/internal/middleware"
	"leadflow/internal/models"
	"leadflow/internal/services"
	"leadflow/pkg/config"
	"leadflow/pkg/jwt"
	"leadflow/pkg/metrics"
	"leadflow/pkg/queue"
	"leadflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Deps 路由依赖，全部由进程入口构造后传入
type Deps struct {
	Config     *config.Config
	Log        *logrus.Logger
	Metrics    *metrics.Metrics
	JWT        *jwt.JWTManager
	Queue      *queue.RedisQueue
	Tenants    *services.TenantResolver
	Admission  *services.AdmissionGuard
	Lifecycle  *services.LeadLifecycle
	Leads      *services.LeadService
	Workflows  *services.WorkflowService
	Knowledge  *services.KnowledgeService
	TenantCfgs *services.TenantConfigService
}

// SetupRouter 设置路由
func SetupRouter(d Deps) *gin.Engine {
	router := gin.New()
	// 未配置代理时 ClientIP 只取连接对端地址，伪造的 X-Forwarded-For 不参与限流
	if err := router.SetTrustedProxies(d.Config.Server.TrustedProxies); err != nil {
		d.Log.WithError(err).Warn("Invalid trusted proxies, forwarded headers ignored")
		_ = router.SetTrustedProxies(nil)
	}

	// 中间件
	router.Use(middleware.ErrorHandler(d.Log))
	router.Use(middleware.RequestLogger(d.Log))
	router.Use(middleware.SetupCORS(d.Config.CORS))
	router.Use(d.Metrics.Middleware())

	registerRoutes(router, d)
	return router
}

func registerRoutes(router *gin.Engine, d Deps) {
	auth := middleware.NewAuthMiddleware(d.JWT, d.Tenants)
	perm := middleware.RequirePermission

	router.GET("/health", healthCheck)
	router.GET("/ping", ping)
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	api := router.Group("/api")

	// 公开入口：按 Host 子域名确定租户
	submission := handlers.NewSubmissionHandler(d.Admission)
	tenantHandler := handlers.NewTenantHandler(d.TenantCfgs)
	public := api.Group("", auth.ResolveTenant())
	{
		public.GET("/tenant/config", tenantHandler.PublicConfig)
		public.POST("/quiz/submit", submission.SubmitQuiz)
		public.POST("/demo/quiz", submission.SubmitDemoQuiz)
	}

	// 工作流执行方回调
	workflowHandler := handlers.NewWorkflowHandler(d.Workflows, d.Lifecycle)
	internal := api.Group("/internal", middleware.RequireInternalToken(d.Config.Workflow.InternalToken))
	{
		internal.POST("/workflows/:id/result", workflowHandler.RecordResult)
	}

	// 事件流自行校验查询参数中的令牌
	ws := handlers.NewWebSocketHandler(d.Queue, d.JWT, d.Config.CORS.AllowOrigins, d.Log)
	api.GET("/events/ws", ws.LeadEvents)

	// 以下接口需要登录并选择组织
	org := api.Group("", auth.RequireLogin(), auth.RequireOrganization())

	org.POST("/forms/submit", perm(models.PermLeadWrite), submission.SubmitForm)
	org.GET("/tenant", tenantHandler.Current)
	org.PUT("/settings/questions", perm(models.PermOrgManage), tenantHandler.ReplaceQuestions)

	leadHandler := handlers.NewLeadHandler(d.Leads, d.Lifecycle, d.Log)
	leads := org.Group("/leads")
	{
		leads.GET("", perm(models.PermLeadRead), leadHandler.List)
		leads.GET("/stats", perm(models.PermAnalyticsView), leadHandler.Stats)
		leads.GET("/export", perm(models.PermLeadExport), leadHandler.Export)
		leads.GET("/:id", perm(models.PermLeadRead), leadHandler.Get)
		leads.GET("/:id/score", perm(models.PermLeadRead), leadHandler.Score)
		leads.PATCH("/:id", perm(models.PermLeadWrite), leadHandler.Update)
		leads.POST("/:id/approve", perm(models.PermLeadApprove), leadHandler.Approve)
		leads.POST("/:id/reject", perm(models.PermLeadApprove), leadHandler.Reject)
		leads.DELETE("/:id", perm(models.PermLeadDelete), leadHandler.SoftDelete)
		leads.POST("/:id/restore", perm(models.PermLeadDelete), leadHandler.Restore)
		leads.DELETE("/:id/permanent", perm(models.PermLeadDelete), leadHandler.Purge)
	}

	workflows := org.Group("/workflows")
	{
		workflows.GET("", perm(models.PermWorkflowRead), workflowHandler.List)
		workflows.GET("/:id", perm(models.PermWorkflowRead), workflowHandler.Get)
		workflows.POST("/:id/cancel", perm(models.PermWorkflowCancel), workflowHandler.Cancel)
		workflows.DELETE("/:id", perm(models.PermLeadDelete), workflowHandler.SoftDelete)
		workflows.POST("/:id/restore", perm(models.PermLeadDelete), workflowHandler.Restore)
	}

	knowledgeHandler := handlers.NewKnowledgeHandler(d.Knowledge)
	docs := org.Group("/knowledge")
	{
		docs.GET("", perm(models.PermLeadRead), knowledgeHandler.List)
		docs.POST("", perm(models.PermLeadWrite), knowledgeHandler.Create)
		docs.GET("/:id", perm(models.PermLeadRead), knowledgeHandler.Get)
		docs.DELETE("/:id", perm(models.PermLeadDelete), knowledgeHandler.SoftDelete)
		docs.POST("/:id/restore", perm(models.PermLeadDelete), knowledgeHandler.Restore)
	}
}

func healthCheck(c *gin.Context) {
	data := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "leadflow",
	}
	response.Success(c, data)
}

func ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
