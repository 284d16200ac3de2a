package ingest

import (
	"context"
	"errors"
	"strings"

	"leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/platform/logger"

	"github.com/google/uuid"
)

// AssignmentResolver picks the owning agent for a new lead.
type AssignmentResolver struct {
	store     repository.AssignmentReader
	adSource  string
	preferred string
	roles     []string
	log       *logger.Logger
}

func NewAssignmentResolver(store repository.AssignmentReader, adSource, preferredIdentity string, roles []string, log *logger.Logger) *AssignmentResolver {
	return &AssignmentResolver{
		store:     store,
		adSource:  adSource,
		preferred: strings.TrimSpace(preferredIdentity),
		roles:     roles,
		log:       log,
	}
}

// ResolveOwner returns the agent id, or nil when no eligible agent exists.
func (r *AssignmentResolver) ResolveOwner(ctx context.Context, source string) (*uuid.UUID, error) {
	if source == r.adSource {
		return r.resolvePreferred(ctx)
	}
	return r.resolveRoundRobin(ctx)
}

func (r *AssignmentResolver) resolvePreferred(ctx context.Context) (*uuid.UUID, error) {
	if r.preferred != "" {
		user, err := r.store.FindUserByIdentity(ctx, r.preferred)
		switch {
		case err == nil && user.IsActive:
			id := user.ID
			return &id, nil
		case err == nil:
			r.log.Warn("assignment: preferred agent inactive, falling back", "identity", r.preferred)
		case errors.Is(err, repository.ErrUserNotFound):
			r.log.Warn("assignment: preferred agent not found, falling back", "identity", r.preferred)
		default:
			return nil, err
		}
	}

	users, err := r.store.FindUsersByRole(ctx, r.roles)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	id := users[0].ID
	return &id, nil
}

func (r *AssignmentResolver) resolveRoundRobin(ctx context.Context) (*uuid.UUID, error) {
	users, err := r.store.FindUsersByRole(ctx, r.roles)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}

	next := users[0].ID
	latest, err := r.store.FindLatestAssignedLead(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, err
	case latest.AssignedTo != nil:
		for i, u := range users {
			if u.ID == *latest.AssignedTo {
				next = users[(i+1)%len(users)].ID
				break
			}
		}
	}
	return &next, nil
}
