package service

import (
	"context"
	"fmt"
	"time"

	"marketplace/internal/model"
	"marketplace/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

type PermissionResponse struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

type GrantResponse struct {
	Role              string  `json:"role"`
	ApprovalRequestID *string `json:"approval_request_id"`
	GrantedAt         string  `json:"granted_at"`
}

// AccountAccessResponse lists what approved registrations granted an account.
type AccountAccessResponse struct {
	AccountID   string          `json:"account_id"`
	Grants      []GrantResponse `json:"grants"`
	Permissions []string        `json:"permissions"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	AccountAccess(ctx context.Context, accountID uuid.UUID) (*AccountAccessResponse, error)
}

type roleService struct {
	roles repository.RoleRepository
}

func NewRoleService(roles repository.RoleRepository) RoleService {
	return &roleService{roles: roles}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, nil
}

func (s *roleService) AccountAccess(ctx context.Context, accountID uuid.UUID) (*AccountAccessResponse, error) {
	grants, err := s.roles.GrantsForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch grants: %w", err)
	}

	names := make([]string, 0, len(grants))
	res := &AccountAccessResponse{
		AccountID:   accountID.String(),
		Grants:      make([]GrantResponse, 0, len(grants)),
		Permissions: []string{},
	}
	for _, g := range grants {
		names = append(names, g.RoleName)
		grant := GrantResponse{Role: g.RoleName, GrantedAt: g.GrantedAt.Format(time.RFC3339)}
		if g.ApprovalRequestID != nil {
			id := g.ApprovalRequestID.String()
			grant.ApprovalRequestID = &id
		}
		res.Grants = append(res.Grants, grant)
	}

	perms, err := s.roles.GetPermissionsByRoleNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}
	if perms != nil {
		res.Permissions = perms
	}
	return res, nil
}

func toRoleResponse(r model.Role) RoleResponse {
	perms := make([]PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, PermissionResponse{
			ID:    p.ID.String(),
			Code:  p.Code,
			Name:  p.Name,
			Group: p.Group,
		})
	}

	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
