// Package repositorytest provides an in-memory lead store for tests.
package repositorytest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// Memory implements repository.Store with the same uniqueness rule as the
// leads_source_external_lead_id_key index.
type Memory struct {
	mu     sync.Mutex
	leads  []domain.Lead
	audits []domain.AuditEvent
	users  []domain.User

	// CreateErr, when set, fails every CreateLead call.
	CreateErr error
	// BeforeCreate runs before CreateLead takes the lock.
	BeforeCreate func()
}

var _ repository.Store = (*Memory)(nil)

func New() *Memory {
	return &Memory{}
}

// AddUser registers an agent. Users keep insertion order.
func (m *Memory) AddUser(u domain.User) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	m.users = append(m.users, u)
	return u
}

// Seed stores a lead as-is, bypassing uniqueness checks.
func (m *Memory) Seed(lead domain.Lead) domain.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now()
	}
	lead.UpdatedAt = lead.CreatedAt
	m.leads = append(m.leads, lead)
	return lead
}

func (m *Memory) Leads() []domain.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Lead(nil), m.leads...)
}

func (m *Memory) Audits() []domain.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditEvent(nil), m.audits...)
}

func (m *Memory) CreateLead(_ context.Context, params repository.CreateLeadParams) (domain.Lead, error) {
	if m.BeforeCreate != nil {
		m.BeforeCreate()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return domain.Lead{}, m.CreateErr
	}
	if params.ExternalLeadID != nil {
		for _, l := range m.leads {
			if l.Source == params.Source && l.ExternalLeadID != nil && *l.ExternalLeadID == *params.ExternalLeadID {
				return domain.Lead{}, repository.ErrDuplicateLead
			}
		}
	}

	status := params.Status
	if status == "" {
		status = domain.LeadStatusNew
	}
	if !domain.IsKnownLeadStatus(status) {
		return domain.Lead{}, fmt.Errorf("%w: %q", repository.ErrUnknownStatus, status)
	}
	now := time.Now()
	lead := domain.Lead{
		ID:             uuid.New(),
		ExternalLeadID: params.ExternalLeadID,
		Source:         params.Source,
		Name:           params.Name,
		Phone:          params.Phone,
		Email:          params.Email,
		CampaignName:   params.CampaignName,
		Status:         status,
		AssignedTo:     params.AssignedTo,
		Metadata:       params.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.leads = append(m.leads, lead)
	m.appendAudit(lead.ID, params.Audit)
	return lead, nil
}

func (m *Memory) UpdateLead(_ context.Context, id uuid.UUID, params repository.UpdateLeadParams) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.leads {
		if m.leads[i].ID != id {
			continue
		}
		lead := &m.leads[i]
		if params.OnlyIfPending && !lead.IsPlaceholder() {
			return domain.Lead{}, repository.ErrNotPending
		}
		if params.Name != nil {
			lead.Name = *params.Name
		}
		if params.Phone != nil {
			lead.Phone = *params.Phone
		}
		if params.Email != nil {
			lead.Email = params.Email
		}
		if params.CampaignName != nil {
			lead.CampaignName = params.CampaignName
		}
		lead.Metadata = params.Metadata
		lead.UpdatedAt = time.Now()
		if params.Audit != nil {
			m.appendAudit(lead.ID, *params.Audit)
		}
		return *lead, nil
	}
	if params.OnlyIfPending {
		return domain.Lead{}, repository.ErrNotPending
	}
	return domain.Lead{}, repository.ErrNotFound
}

func (m *Memory) FindLeadByExternalID(_ context.Context, source, externalLeadID string) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.leads {
		if l.Source == source && l.ExternalLeadID != nil && *l.ExternalLeadID == externalLeadID {
			return l, nil
		}
	}
	return domain.Lead{}, repository.ErrNotFound
}

func (m *Memory) FindLeadByContact(_ context.Context, source, phone string, email *string) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wantEmail := ""
	if email != nil {
		wantEmail = strings.ToLower(strings.TrimSpace(*email))
	}

	for i := len(m.leads) - 1; i >= 0; i-- {
		l := m.leads[i]
		if l.Source != source {
			continue
		}
		if phone != "" && l.Phone == phone {
			return l, nil
		}
		if wantEmail != "" && l.Email != nil && strings.ToLower(*l.Email) == wantEmail {
			return l, nil
		}
	}
	return domain.Lead{}, repository.ErrNotFound
}

func (m *Memory) ListPlaceholderLeads(_ context.Context, source string, limit int) ([]domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Lead, 0)
	for _, l := range m.leads {
		if l.Source == source && l.ExternalLeadID != nil && l.IsPlaceholder() {
			out = append(out, l)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) FindLatestAssignedLead(_ context.Context) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.leads) - 1; i >= 0; i-- {
		if m.leads[i].AssignedTo != nil {
			return m.leads[i], nil
		}
	}
	return domain.Lead{}, repository.ErrNotFound
}

func (m *Memory) CreateAuditEvent(_ context.Context, params repository.AuditParams) (domain.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendAudit(params.LeadID, params), nil
}

func (m *Memory) FindUsersByRole(_ context.Context, roles []string) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.User, 0)
	for _, u := range m.users {
		if !u.IsActive {
			continue
		}
		for _, role := range roles {
			if u.Role == role {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) FindUserByIdentity(_ context.Context, identity string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(identity)) {
			return u, nil
		}
	}
	return domain.User{}, repository.ErrUserNotFound
}

func (m *Memory) appendAudit(leadID uuid.UUID, params repository.AuditParams) domain.AuditEvent {
	actor := params.Actor
	if actor == "" {
		actor = domain.ActorSystem
	}
	event := domain.AuditEvent{
		ID:          uuid.New(),
		LeadID:      leadID,
		Actor:       actor,
		Action:      params.Action,
		Description: params.Description,
		CreatedAt:   time.Now(),
	}
	m.audits = append(m.audits, event)
	return event
}
