package presale

import (
	"strings"

	"github.com/blues/pss/internal/config"
)

// Role 角色
type Role string

const (
	RoleAdmin        Role = "admin"         // 默认管理员
	RoleRoundManager Role = "round_manager" // 轮次管理
	RoleEventEnabler Role = "event_enabler" // TGE启用
	RoleTreasury     Role = "treasury"      // 资金操作
)

// AuthContext 显式授权上下文：特权入口在开头做能力查找
type AuthContext struct {
	grants map[Role]map[string]struct{}
}

// NewAuthContext 从配置构建授权上下文
func NewAuthContext(cfg config.RolesConfig) *AuthContext {
	a := &AuthContext{grants: make(map[Role]map[string]struct{})}
	a.grant(RoleAdmin, cfg.Admin)
	a.grant(RoleRoundManager, cfg.RoundManager)
	a.grant(RoleEventEnabler, cfg.EventEnabler)
	a.grant(RoleTreasury, cfg.Treasury)
	return a
}

func (a *AuthContext) grant(role Role, addresses []string) {
	m := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		m[normalizeAddress(addr)] = struct{}{}
	}
	a.grants[role] = m
}

// Has 判断地址是否持有角色
func (a *AuthContext) Has(role Role, caller string) bool {
	_, ok := a.grants[role][normalizeAddress(caller)]
	return ok
}

// Require 角色检查，失败返回 AuthorizationFailure
func (a *AuthContext) Require(role Role, caller string) error {
	if !a.Has(role, caller) {
		return Errorf(KindAuthorizationFailure, "caller %s is missing role %s", caller, role)
	}
	return nil
}

// normalizeAddress 地址统一小写比较
func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
