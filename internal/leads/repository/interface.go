package repository

import (
	"context"

	"leadcrm_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadReader provides the lookups used by deduplication and repair.
type LeadReader interface {
	FindLeadByExternalID(ctx context.Context, source, externalLeadID string) (domain.Lead, error)
	FindLeadByContact(ctx context.Context, source, phone string, email *string) (domain.Lead, error)
	ListPlaceholderLeads(ctx context.Context, source string, limit int) ([]domain.Lead, error)
}

// LeadWriter creates and patches leads. Both write their audit event in the same transaction.
type LeadWriter interface {
	CreateLead(ctx context.Context, params CreateLeadParams) (domain.Lead, error)
	UpdateLead(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (domain.Lead, error)
}

// AuditWriter appends audit events outside of a lead write.
type AuditWriter interface {
	CreateAuditEvent(ctx context.Context, params AuditParams) (domain.AuditEvent, error)
}

// AssignmentReader provides what owner resolution needs.
type AssignmentReader interface {
	FindLatestAssignedLead(ctx context.Context) (domain.Lead, error)
	FindUsersByRole(ctx context.Context, roles []string) ([]domain.User, error)
	FindUserByIdentity(ctx context.Context, identity string) (domain.User, error)
}

// =====================================
// Composite Interface
// =====================================

// Store is the full persistence surface of lead ingestion.
type Store interface {
	LeadReader
	LeadWriter
	AuditWriter
	AssignmentReader
}

// Ensure Repository implements Store
var _ Store = (*Repository)(nil)
