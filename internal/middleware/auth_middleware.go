package middleware

import (
	"crypto/subtle"
	"strings"

	"leadflow/internal/auth"
	"leadflow/internal/models"
	"leadflow/internal/repository"
	"leadflow/internal/services"
	apperrors "leadflow/pkg/errors"
	"leadflow/pkg/jwt"
	"leadflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// 上下文键
const (
	ctxIdentity = "identity"
	ctxScope    = "scope"
	ctxTenant   = "tenant"
)

// InternalTokenHeader 工作流执行方回调时携带的令牌头
const InternalTokenHeader = "X-Internal-Token"

// AuthMiddleware 身份、组织与权限中间件
type AuthMiddleware struct {
	jwtManager *jwt.JWTManager
	tenants    *services.TenantResolver
}

func NewAuthMiddleware(jwtManager *jwt.JWTManager, tenants *services.TenantResolver) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		tenants:    tenants,
	}
}

// RequireLogin 校验 Bearer 令牌并把身份放入上下文
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.FromError(c, apperrors.ErrUnauthenticated)
			c.Abort()
			return
		}

		claims, err := m.jwtManager.VerifyToken(strings.TrimSpace(authHeader[7:]))
		if err != nil {
			response.FromError(c, apperrors.ErrUnauthenticated)
			c.Abort()
			return
		}

		id := auth.Identity{UserID: claims.UserID, OrgID: claims.OrgID, OrgRole: claims.OrgRole}
		c.Set(ctxIdentity, id)
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequireOrganization 要求已选择组织，解析出仓储范围与租户记录
func (m *AuthMiddleware) RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			response.FromError(c, apperrors.ErrUnauthenticated)
			c.Abort()
			return
		}
		scope, err := repository.ScopeFromIdentity(id)
		if err != nil {
			response.FromError(c, err)
			c.Abort()
			return
		}
		tenant, err := m.tenants.ByOrgID(c.Request.Context(), scope.TenantID)
		if err != nil {
			response.FromError(c, err)
			c.Abort()
			return
		}

		c.Set(ctxScope, scope)
		c.Set(ctxTenant, tenant)
		c.Next()
	}
}

// RequirePermission 当前角色缺少权限时返回 403
func RequirePermission(perm models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := GetScope(c)
		if !ok {
			response.FromError(c, apperrors.ErrTenantContextMissing)
			c.Abort()
			return
		}
		if err := scope.Require(perm); err != nil {
			response.FromError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ResolveTenant 公开入口按 Host 子域名确定租户
func (m *AuthMiddleware) ResolveTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, err := m.tenants.Resolve(c.Request.Context(), c.Request.Host)
		if err != nil {
			response.FromError(c, err)
			c.Abort()
			return
		}
		c.Set(ctxTenant, tenant)
		c.Next()
	}
}

// RequireInternalToken 内部回调接口；未配置令牌时一律拒绝
func RequireInternalToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(InternalTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			response.FromError(c, apperrors.ErrUnauthenticated)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetIdentity 取出已登录的身份
func GetIdentity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// GetScope 取出仓储范围
func GetScope(c *gin.Context) (repository.Scope, bool) {
	v, ok := c.Get(ctxScope)
	if !ok {
		return repository.Scope{}, false
	}
	scope, ok := v.(repository.Scope)
	return scope, ok
}

// GetTenant 取出当前租户
func GetTenant(c *gin.Context) (*models.Tenant, bool) {
	v, ok := c.Get(ctxTenant)
	if !ok {
		return nil, false
	}
	tenant, ok := v.(*models.Tenant)
	return tenant, ok
}
