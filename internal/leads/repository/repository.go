package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound      = errors.New("lead not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateLead = errors.New("lead already exists for source and external id")
	ErrNotPending    = errors.New("lead is no longer pending enrichment")
	ErrUnknownStatus = errors.New("unknown lead status")
)

type Repository struct {
	db db.Querier
}

func New(q db.Querier) *Repository {
	return &Repository{db: q}
}

// AuditParams describes one audit event. LeadID is filled in by CreateLead.
type AuditParams struct {
	LeadID      uuid.UUID
	Actor       string
	Action      string
	Description string
}

type CreateLeadParams struct {
	ExternalLeadID *string
	Source         string
	Name           string
	Phone          string
	Email          *string
	CampaignName   *string
	Status         string
	AssignedTo     *uuid.UUID
	Metadata       domain.LeadMetadata
	Audit          AuditParams
}

// UpdateLeadParams patches a lead. Nil fields are left untouched; metadata is
// always replaced. Audit is written in the same transaction when set.
// OnlyIfPending restricts the write to leads still awaiting enrichment; a lead
// that moved on returns ErrNotPending and is left untouched.
type UpdateLeadParams struct {
	Name          *string
	Phone         *string
	Email         *string
	CampaignName  *string
	Metadata      domain.LeadMetadata
	Audit         *AuditParams
	OnlyIfPending bool
}

const leadColumns = `id, external_lead_id, source, name, phone, email, campaign_name, status,
	assigned_to, call_attempts, metadata, created_at, updated_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var lead domain.Lead
	var metadata []byte
	err := row.Scan(
		&lead.ID, &lead.ExternalLeadID, &lead.Source, &lead.Name, &lead.Phone, &lead.Email, &lead.CampaignName, &lead.Status,
		&lead.AssignedTo, &lead.CallAttempts, &metadata, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &lead.Metadata); err != nil {
			return domain.Lead{}, fmt.Errorf("decode lead metadata: %w", err)
		}
	}
	return lead, nil
}

// CreateLead inserts the lead and its creation audit event in one transaction.
// A concurrent insert of the same (source, external id) yields ErrDuplicateLead.
func (r *Repository) CreateLead(ctx context.Context, params CreateLeadParams) (domain.Lead, error) {
	metadata, err := json.Marshal(params.Metadata)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("encode lead metadata: %w", err)
	}
	status := params.Status
	if status == "" {
		status = domain.LeadStatusNew
	}
	if !domain.IsKnownLeadStatus(status) {
		return domain.Lead{}, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lead, err := scanLead(tx.QueryRow(ctx, `
		INSERT INTO leads (
			id, external_lead_id, source, name, phone, email, campaign_name, status, assigned_to, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (source, external_lead_id) WHERE external_lead_id IS NOT NULL DO NOTHING
		RETURNING `+leadColumns,
		uuid.New(), params.ExternalLeadID, params.Source, params.Name, params.Phone, params.Email, params.CampaignName,
		status, params.AssignedTo, metadata,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrDuplicateLead
	}
	if err != nil {
		return domain.Lead{}, err
	}

	audit := params.Audit
	audit.LeadID = lead.ID
	if _, err := insertAudit(ctx, tx, audit); err != nil {
		return domain.Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

func (r *Repository) UpdateLead(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (domain.Lead, error) {
	metadata, err := json.Marshal(params.Metadata)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("encode lead metadata: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	guard := ""
	args := []any{id, params.Name, params.Phone, params.Email, params.CampaignName, metadata}
	if params.OnlyIfPending {
		guard = " AND metadata->>'enrichment_status' = $7"
		args = append(args, domain.EnrichmentPending)
	}

	lead, err := scanLead(tx.QueryRow(ctx, `
		UPDATE leads SET
			name = COALESCE($2, name),
			phone = COALESCE($3, phone),
			email = COALESCE($4, email),
			campaign_name = COALESCE($5, campaign_name),
			metadata = $6,
			updated_at = now()
		WHERE id = $1`+guard+`
		RETURNING `+leadColumns,
		args...,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		if params.OnlyIfPending {
			return domain.Lead{}, ErrNotPending
		}
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}

	if params.Audit != nil {
		audit := *params.Audit
		audit.LeadID = lead.ID
		if _, err := insertAudit(ctx, tx, audit); err != nil {
			return domain.Lead{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

func (r *Repository) FindLeadByExternalID(ctx context.Context, source, externalLeadID string) (domain.Lead, error) {
	lead, err := scanLead(r.db.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE source = $1 AND external_lead_id = $2
	`, source, externalLeadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// FindLeadByContact matches on phone OR email within a source, newest first.
// An empty phone never matches.
func (r *Repository) FindLeadByContact(ctx context.Context, source, phone string, email *string) (domain.Lead, error) {
	var emailArg *string
	if email != nil && strings.TrimSpace(*email) != "" {
		trimmed := strings.TrimSpace(*email)
		emailArg = &trimmed
	}
	if phone == "" && emailArg == nil {
		return domain.Lead{}, ErrNotFound
	}

	lead, err := scanLead(r.db.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE source = $1
			AND (
				($2 <> '' AND phone = $2)
				OR ($3::text IS NOT NULL AND lower(email) = lower($3::text))
			)
		ORDER BY created_at DESC
		LIMIT 1
	`, source, phone, emailArg))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// ListPlaceholderLeads returns leads still waiting for enrichment, oldest first.
func (r *Repository) ListPlaceholderLeads(ctx context.Context, source string, limit int) ([]domain.Lead, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE source = $1
			AND external_lead_id IS NOT NULL
			AND metadata->>'enrichment_status' = $2
		ORDER BY created_at ASC
		LIMIT $3
	`, source, domain.EnrichmentPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

func (r *Repository) FindLatestAssignedLead(ctx context.Context) (domain.Lead, error) {
	lead, err := scanLead(r.db.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE assigned_to IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) CreateAuditEvent(ctx context.Context, params AuditParams) (domain.AuditEvent, error) {
	return insertAudit(ctx, r.db, params)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertAudit(ctx context.Context, q queryRower, params AuditParams) (domain.AuditEvent, error) {
	actor := params.Actor
	if actor == "" {
		actor = domain.ActorSystem
	}

	event := domain.AuditEvent{
		ID:          uuid.New(),
		LeadID:      params.LeadID,
		Actor:       actor,
		Action:      params.Action,
		Description: params.Description,
	}
	err := q.QueryRow(ctx, `
		INSERT INTO lead_audit_events (id, lead_id, actor, action, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, event.ID, event.LeadID, event.Actor, event.Action, event.Description).Scan(&event.CreatedAt)
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("insert audit event: %w", err)
	}
	return event, nil
}

// FindUsersByRole returns active users holding any of roles, in stable rotation order.
func (r *Repository) FindUsersByRole(ctx context.Context, roles []string) ([]domain.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, name, email, role, is_active, created_at
		FROM users
		WHERE is_active = true AND role = ANY($1)
		ORDER BY created_at ASC, id ASC
	`, roles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return users, nil
}

// FindUserByIdentity looks a user up by email, case-insensitively. Inactive users are returned too.
func (r *Repository) FindUserByIdentity(ctx context.Context, identity string) (domain.User, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return domain.User{}, ErrUserNotFound
	}

	var u domain.User
	err := r.db.QueryRow(ctx, `
		SELECT id, name, email, role, is_active, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`, identity).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}
