package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"backoffice/internal/gateway"
	"backoffice/internal/model"
)

var ErrRoleNotFound = errors.New("role not found")

// --- DTOs ---

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Permissions []PermissionResponse `json:"permissions"`
}

type PermissionResponse struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	// ListPermissions merges the permissions of every role, sorted by group
	// and code.
	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
}

type roleService struct {
	api gateway.API
}

func NewRoleService(api gateway.API) RoleService {
	return &roleService{api: api}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.api.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (s *roleService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	roles, err := s.ListRoles(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	res := make([]PermissionResponse, 0)
	for _, r := range roles {
		for _, p := range r.Permissions {
			if _, ok := seen[p.Code]; ok {
				continue
			}
			seen[p.Code] = struct{}{}
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Group != res[j].Group {
			return res[i].Group < res[j].Group
		}
		return res[i].Code < res[j].Code
	})
	return res, nil
}

func (s *roleService) GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error) {
	roles, err := s.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		if r.Name != roleName {
			continue
		}
		codes := make([]string, 0, len(r.Permissions))
		for _, p := range r.Permissions {
			codes = append(codes, p.Code)
		}
		return codes, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, roleName)
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
		Permissions: perms,
	}
}
