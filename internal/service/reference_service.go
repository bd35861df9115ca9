package service

import (
	"context"
	"fmt"

	"backoffice/internal/composer"
	"backoffice/internal/gateway"
	"backoffice/internal/model"
	"backoffice/internal/refcache"
	"backoffice/internal/workflow"
)

// Scope parameter names understood by the backend reference endpoints.
const (
	ScopePersonnelType = "personnel_type"
	ScopeProject       = "project"
)

// --- Interface ---

type ReferenceService interface {
	List(ctx context.Context, userID string, res model.ReferenceResource, scope map[string]string) ([]model.Option, error)
	Invalidate(ctx context.Context, userID string) error
	// Source adapts the service to the form composers of one user.
	Source(userID string) composer.ReferenceSource
}

type referenceService struct {
	api   gateway.API
	cache *refcache.Cache
}

func NewReferenceService(api gateway.API, cache *refcache.Cache) ReferenceService {
	return &referenceService{api: api, cache: cache}
}

// --- Implementation ---

func (s *referenceService) List(ctx context.Context, userID string, res model.ReferenceResource, scope map[string]string) ([]model.Option, error) {
	if !res.IsValid() {
		return nil, (workflow.Violations{"resource": workflow.CodeInvalid}).Err()
	}
	switch res {
	case model.RefResponsibles, model.RefTransports:
		v := workflow.Violations{}
		v.Required(ScopeProject, scope[ScopeProject])
		if err := v.Err(); err != nil {
			return nil, err
		}
	}

	key := refcache.Key{Session: userID, Resource: res, Scope: scope}
	opts, err := s.cache.Get(ctx, key, func(ctx context.Context) ([]model.Option, error) {
		return s.api.ListReference(ctx, res, scope)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", res, err)
	}
	return opts, nil
}

func (s *referenceService) Invalidate(ctx context.Context, userID string) error {
	return s.cache.Invalidate(ctx, userID)
}

func (s *referenceService) Source(userID string) composer.ReferenceSource {
	return &referenceSource{svc: s, userID: userID}
}

type referenceSource struct {
	svc    *referenceService
	userID string
}

func (r *referenceSource) Accounts(ctx context.Context, personnel model.PersonnelType) ([]model.Option, error) {
	return r.svc.List(ctx, r.userID, model.RefAccounts, map[string]string{ScopePersonnelType: string(personnel)})
}

func (r *referenceSource) Projects(ctx context.Context) ([]model.Option, error) {
	return r.svc.List(ctx, r.userID, model.RefProjects, nil)
}

func (r *referenceSource) Responsibles(ctx context.Context, project string) ([]model.Option, error) {
	return r.svc.List(ctx, r.userID, model.RefResponsibles, map[string]string{ScopeProject: project})
}

func (r *referenceSource) Transports(ctx context.Context, project string) ([]model.Option, error) {
	return r.svc.List(ctx, r.userID, model.RefTransports, map[string]string{ScopeProject: project})
}
