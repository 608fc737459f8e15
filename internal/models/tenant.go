package models

// Tenant 租户模型；OrgID 即身份提供方的组织ID，也是所有租户数据行上的 tenant_id
type Tenant struct {
	BaseModel
	Name      string `json:"name" gorm:"not null;size:100"`
	Subdomain string `json:"subdomain" gorm:"uniqueIndex;not null;size:63"`
	OrgID     string `json:"org_id" gorm:"uniqueIndex;not null;size:100"`
	Plan      string `json:"plan" gorm:"default:'starter';size:20"`
	Status    string `json:"status" gorm:"default:'active';size:20"`

	// 品牌
	PrimaryColor   string `json:"primary_color" gorm:"size:20"`
	SecondaryColor string `json:"secondary_color" gorm:"size:20"`
	Font           string `json:"font" gorm:"size:100"`
}

// TableName 表名
func (t *Tenant) TableName() string {
	return "tenants"
}

// 租户状态常量
const (
	TenantStatusActive   = "active"
	TenantStatusInactive = "inactive"
)

// 套餐常量
const (
	PlanStarter    = "starter"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Branding 公开的品牌信息
type Branding struct {
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
	Font           string `json:"font"`
}

// Branding 返回品牌信息
func (t *Tenant) Branding() Branding {
	return Branding{
		PrimaryColor:   t.PrimaryColor,
		SecondaryColor: t.SecondaryColor,
		Font:           t.Font,
	}
}

// IsActive 是否启用
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}
