package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/isyourdayok/backend/models"
)

// Capabilities checked by protected endpoints.
const (
	CapChatBroadcast  = "chat:broadcast"
	CapChatModerate   = "chat:moderate"
	CapUsersList      = "users:list"
	CapMintsReconcile = "mints:reconcile"
	CapRolesManage    = "roles:manage"
)

// RoleAdmin is seeded from configuration at boot.
const RoleAdmin = "admin"

// Authorizer answers capability questions from stored roles and a role policy.
type Authorizer struct {
	db     *gorm.DB
	policy map[string]map[string]bool
}

// NewAuthorizer builds an authorizer from a role -> capabilities policy.
func NewAuthorizer(db *gorm.DB, policy map[string][]string) *Authorizer {
	p := make(map[string]map[string]bool, len(policy))
	for role, caps := range policy {
		set := make(map[string]bool, len(caps))
		for _, c := range caps {
			set[strings.TrimSpace(c)] = true
		}
		p[strings.ToLower(role)] = set
	}
	return &Authorizer{db: db, policy: p}
}

// Roles returns the roles granted to address.
func (a *Authorizer) Roles(ctx context.Context, address string) ([]string, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	var roles []string
	if err := a.db.WithContext(ctx).Model(&models.UserRole{}).
		Where("address = ?", addr).Pluck("role", &roles).Error; err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	sort.Strings(roles)
	return roles, nil
}

// Can reports whether any role of address grants capability.
func (a *Authorizer) Can(ctx context.Context, address, capability string) (bool, error) {
	roles, err := a.Roles(ctx, address)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if a.policy[strings.ToLower(r)][capability] {
			return true, nil
		}
	}
	return false, nil
}

// Grant adds role to address. Granting twice is a no-op.
func (a *Authorizer) Grant(ctx context.Context, address, role string) error {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if _, ok := a.policy[role]; !ok {
		return invalid("unknown role %q", role)
	}
	err = a.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.UserRole{Address: addr, Role: role}).Error
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

// Revoke removes role from address.
func (a *Authorizer) Revoke(ctx context.Context, address, role string) error {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	err = a.db.WithContext(ctx).Where("address = ? AND role = ?", addr, strings.ToLower(role)).
		Delete(&models.UserRole{}).Error
	if err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	return nil
}

// SeedAdmins grants the admin role to every configured address.
func (a *Authorizer) SeedAdmins(ctx context.Context, addresses []string) error {
	for _, addr := range addresses {
		if strings.TrimSpace(addr) == "" {
			continue
		}
		if err := a.Grant(ctx, addr, RoleAdmin); err != nil {
			return fmt.Errorf("seed admin %s: %w", addr, err)
		}
	}
	return nil
}
