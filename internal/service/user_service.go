package service

import (
	"context"
	"fmt"
	"regexp"
	"slices"

	"backoffice/internal/gateway"
	"backoffice/internal/model"
	"backoffice/internal/session"
	"backoffice/internal/workflow"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Name        string   `json:"name" binding:"required"`
	Email       string   `json:"email" binding:"required,email"`
	Password    string   `json:"password" binding:"required,min=6"`
	Role        string   `json:"role" binding:"required"`
	Area        string   `json:"area"`
	Permissions []string `json:"permissions"`
}

type UpdateUserRequest struct {
	Name        string   `json:"name"`
	Email       string   `json:"email" binding:"omitempty,email"`
	Password    string   `json:"password" binding:"omitempty,min=6"`
	Role        string   `json:"role"`
	Area        string   `json:"area"`
	Permissions []string `json:"permissions"`
}

// UserService manages back-office users through the backend. Passwords are
// forwarded and never kept.
type UserService interface {
	CreateUser(ctx context.Context, userID string, req CreateUserRequest) (model.User, error)
	UpdateUser(ctx context.Context, userID, id string, req UpdateUserRequest) (model.User, error)
	DeleteUser(ctx context.Context, userID, id string) error
}

type userService struct {
	api      gateway.API
	sessions *session.Store
	roles    RoleService
}

func NewUserService(api gateway.API, sessions *session.Store, roles RoleService) UserService {
	return &userService{api: api, sessions: sessions, roles: roles}
}

var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// checkRole accepts the names the backend lists under /roles.
func (s *userService) checkRole(ctx context.Context, v workflow.Violations, role string) error {
	if role == "" {
		return nil
	}
	roles, err := s.roles.ListRoles(ctx)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(roles, func(r RoleResponse) bool { return r.Name == role }) {
		v["role"] = workflow.CodeInvalid
	}
	return nil
}

func (s *userService) CreateUser(ctx context.Context, userID string, req CreateUserRequest) (model.User, error) {
	v := workflow.Violations{}
	v.Required("name", req.Name)
	v.Required("role", req.Role)
	if !emailRegex.MatchString(req.Email) {
		v["email"] = workflow.CodeInvalid
	}
	if len(req.Password) < 6 {
		v["password"] = workflow.CodeInvalid
	}
	if err := s.checkRole(ctx, v, req.Role); err != nil {
		return model.User{}, err
	}
	if err := v.Err(); err != nil {
		return model.User{}, err
	}

	u, err := s.api.CreateUser(ctx, gateway.UserInput{
		Name: req.Name, Email: req.Email, Password: req.Password,
		Role: req.Role, Area: req.Area, Permissions: req.Permissions,
	})
	if err != nil {
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	s.withUsers(userID, func(t *session.UsersTable) {
		t.Engine.Prepend(u)
	})
	return u, nil
}

func (s *userService) UpdateUser(ctx context.Context, userID, id string, req UpdateUserRequest) (model.User, error) {
	v := workflow.Violations{}
	if req.Email != "" && !emailRegex.MatchString(req.Email) {
		v["email"] = workflow.CodeInvalid
	}
	if req.Password != "" && len(req.Password) < 6 {
		v["password"] = workflow.CodeInvalid
	}
	if err := s.checkRole(ctx, v, req.Role); err != nil {
		return model.User{}, err
	}
	if err := v.Err(); err != nil {
		return model.User{}, err
	}

	u, err := s.api.UpdateUser(ctx, id, gateway.UserInput{
		Name: req.Name, Email: req.Email, Password: req.Password,
		Role: req.Role, Area: req.Area, Permissions: req.Permissions,
	})
	if err != nil {
		return model.User{}, fmt.Errorf("failed to update user %s: %w", id, err)
	}

	s.withUsers(userID, func(t *session.UsersTable) {
		t.Engine.Update(u)
	})
	return u, nil
}

func (s *userService) DeleteUser(ctx context.Context, userID, id string) error {
	if err := s.api.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	s.withUsers(userID, func(t *session.UsersTable) {
		t.Engine.Remove(id)
	})
	return nil
}

// withUsers edits a loaded users table of the acting user.
func (s *userService) withUsers(userID string, fn func(*session.UsersTable)) {
	sess := s.sessions.Get(userID)
	sess.Lock()
	defer sess.Unlock()
	if sess.Users.Loaded() {
		fn(sess.Users)
	}
}
