package rbac

import "strings"

// 权限常量
const (
	// 普通操作权限
	PermissionReadEmail    = "email:read"
	PermissionSyncEmail    = "email:sync"
	PermissionProcessEmail = "ai:process"
	PermissionReadCalendar = "calendar:read"

	// 敏感操作权限
	PermissionListUsers   = "users:list"
	PermissionManageCache = "cache:manage"
)

// 角色常量
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleUser: {
		PermissionReadEmail,
		PermissionSyncEmail,
		PermissionProcessEmail,
		PermissionReadCalendar,
	},
	RoleAdmin: {
		PermissionReadEmail,
		PermissionSyncEmail,
		PermissionProcessEmail,
		PermissionReadCalendar,
		PermissionListUsers,
		PermissionManageCache,
	},
}

// Policy 根据邮箱地址决定角色；配置中的管理员邮箱为 admin，其余为 user
type Policy struct {
	admins map[string]bool
}

// NewPolicy 创建策略，邮箱比较不区分大小写
func NewPolicy(adminEmails []string) *Policy {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = normalize(e); e != "" {
			admins[e] = true
		}
	}
	return &Policy{admins: admins}
}

// Role 获取用户角色
func (p *Policy) Role(email string) string {
	if p != nil && p.admins[normalize(email)] {
		return RoleAdmin
	}
	return RoleUser
}

// HasPermission 检查用户是否有指定权限
func (p *Policy) HasPermission(email, permission string) bool {
	for _, perm := range rolePermissions[p.Role(email)] {
		if perm == permission {
			return true
		}
	}
	return false
}

// CheckPermission 检查用户是否有指定权限（返回错误而不是布尔值，便于处理）
func (p *Policy) CheckPermission(email, permission string) error {
	if !p.HasPermission(email, permission) {
		return &PermissionDeniedError{Email: email, Permission: permission}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Email      string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
