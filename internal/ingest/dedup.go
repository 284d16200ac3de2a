package ingest

import (
	"context"
	"errors"
	"strings"

	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/platform/phone"
)

// DuplicateFinder is the lookup surface deduplication needs.
type DuplicateFinder interface {
	FindLeadByExternalID(ctx context.Context, source, externalLeadID string) (domain.Lead, error)
	FindLeadByContact(ctx context.Context, source, phone string, email *string) (domain.Lead, error)
}

// DeduplicationResolver decides whether an inbound lead already exists.
type DeduplicationResolver struct {
	store DuplicateFinder
}

func NewDeduplicationResolver(store DuplicateFinder) *DeduplicationResolver {
	return &DeduplicationResolver{store: store}
}

// FindDuplicate returns the existing lead, or nil when it is safe to create one.
// Matching is by external id first, then by canonical phone or email within the source.
func (r *DeduplicationResolver) FindDuplicate(ctx context.Context, source, canonicalPhone string, email *string, externalLeadID string) (*domain.Lead, error) {
	if id := strings.TrimSpace(externalLeadID); id != "" {
		lead, err := r.store.FindLeadByExternalID(ctx, source, id)
		if err == nil {
			return &lead, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	if canonicalPhone == "" || phone.IsPlaceholder(canonicalPhone) {
		return nil, nil
	}

	lead, err := r.store.FindLeadByContact(ctx, source, canonicalPhone, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}
