package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"leadcrm_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var leadColumnNames = []string{
	"id", "external_lead_id", "source", "name", "phone", "email", "campaign_name", "status",
	"assigned_to", "call_attempts", "metadata", "created_at", "updated_at",
}

func strPtr(v string) *string { return &v }

func leadRow(t *testing.T, id uuid.UUID, externalID string, meta domain.LeadMetadata) *pgxmock.Rows {
	t.Helper()
	raw, err := json.Marshal(meta)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(leadColumnNames).AddRow(
		id, strPtr(externalID), "meta", "Asha K", "919876543210", strPtr("asha@example.com"), strPtr("Diwali Promo"), "new",
		nil, 0, raw, now, now,
	)
}

func TestCreateLeadWritesLeadAndAuditInOneTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	meta := domain.LeadMetadata{FormID: "F1", EnrichmentStatus: domain.EnrichmentComplete}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO leads").WillReturnRows(leadRow(t, id, "L1", meta))
	mock.ExpectQuery("INSERT INTO lead_audit_events").
		WithArgs(pgxmock.AnyArg(), id, domain.ActorSystem, domain.AuditActionCreated, "Lead created").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	repo := New(mock)
	lead, err := repo.CreateLead(context.Background(), CreateLeadParams{
		ExternalLeadID: strPtr("L1"),
		Source:         "meta",
		Name:           "Asha K",
		Phone:          "919876543210",
		Metadata:       meta,
		Audit:          AuditParams{Action: domain.AuditActionCreated, Description: "Lead created"},
	})

	require.NoError(t, err)
	assert.Equal(t, id, lead.ID)
	assert.Equal(t, "F1", lead.Metadata.FormID)
	assert.Equal(t, "L1", *lead.ExternalLeadID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLeadLostRaceReturnsDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("ON CONFLICT \\(source, external_lead_id\\)").
		WillReturnRows(pgxmock.NewRows(leadColumnNames))
	mock.ExpectRollback()

	repo := New(mock)
	_, err = repo.CreateLead(context.Background(), CreateLeadParams{
		ExternalLeadID: strPtr("L1"),
		Source:         "meta",
		Phone:          "919876543210",
	})

	assert.True(t, errors.Is(err, ErrDuplicateLead))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLeadRejectsUnknownStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := New(mock)
	_, err = repo.CreateLead(context.Background(), CreateLeadParams{
		Source: "meta",
		Name:   "Asha K",
		Phone:  "919876543210",
		Status: "archived",
	})

	assert.ErrorIs(t, err, ErrUnknownStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLeadRollsBackWhenAuditFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO leads").WillReturnRows(leadRow(t, uuid.New(), "L2", domain.LeadMetadata{}))
	mock.ExpectQuery("INSERT INTO lead_audit_events").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	repo := New(mock)
	_, err = repo.CreateLead(context.Background(), CreateLeadParams{
		ExternalLeadID: strPtr("L2"),
		Source:         "meta",
		Phone:          "919876543210",
		Audit:          AuditParams{Action: domain.AuditActionCreated},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert audit event")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLeadPatchesInPlace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	meta := domain.LeadMetadata{EnrichmentStatus: domain.EnrichmentComplete, IngestPath: domain.IngestPathRepair}

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE leads SET").WillReturnRows(leadRow(t, id, "L3", meta))
	mock.ExpectQuery("INSERT INTO lead_audit_events").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	repo := New(mock)
	lead, err := repo.UpdateLead(context.Background(), id, UpdateLeadParams{
		Phone:    strPtr("919876543210"),
		Metadata: meta,
		Audit:    &AuditParams{Action: domain.AuditActionEnriched, Description: "Contact details repaired"},
	})

	require.NoError(t, err)
	assert.Equal(t, id, lead.ID)
	assert.Equal(t, domain.EnrichmentComplete, lead.Metadata.EnrichmentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLeadMissingReturnsNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE leads SET").WillReturnRows(pgxmock.NewRows(leadColumnNames))
	mock.ExpectRollback()

	repo := New(mock)
	_, err = repo.UpdateLead(context.Background(), uuid.New(), UpdateLeadParams{})

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLeadOnlyIfPendingSettledLeadReturnsNotPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE id = \$1 AND metadata->>'enrichment_status' = \$7`).
		WithArgs(id, (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), pgxmock.AnyArg(), domain.EnrichmentPending).
		WillReturnRows(pgxmock.NewRows(leadColumnNames))
	mock.ExpectRollback()

	repo := New(mock)
	_, err = repo.UpdateLead(context.Background(), id, UpdateLeadParams{
		Metadata:      domain.LeadMetadata{EnrichmentStatus: domain.EnrichmentFailed},
		Audit:         &AuditParams{Action: domain.AuditActionEnrichmentFailed, Description: "Enrichment failed: gone"},
		OnlyIfPending: true,
	})

	assert.ErrorIs(t, err, ErrNotPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindLeadByExternalID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("WHERE source = \\$1 AND external_lead_id = \\$2").
		WithArgs("meta", "L1").
		WillReturnRows(leadRow(t, id, "L1", domain.LeadMetadata{}))
	mock.ExpectQuery("WHERE source = \\$1 AND external_lead_id = \\$2").
		WithArgs("meta", "missing").
		WillReturnRows(pgxmock.NewRows(leadColumnNames))

	repo := New(mock)

	lead, err := repo.FindLeadByExternalID(context.Background(), "meta", "L1")
	require.NoError(t, err)
	assert.Equal(t, id, lead.ID)

	_, err = repo.FindLeadByExternalID(context.Background(), "meta", "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindLeadByContactWithoutKeysSkipsQuery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := New(mock)
	_, err = repo.FindLeadByContact(context.Background(), "meta", "", strPtr("  "))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindLeadByContactMatchesPhoneOrEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs("meta", "919876543210", strPtr("asha@example.com")).
		WillReturnRows(leadRow(t, id, "L9", domain.LeadMetadata{}))

	repo := New(mock)
	lead, err := repo.FindLeadByContact(context.Background(), "meta", "919876543210", strPtr(" asha@example.com "))

	require.NoError(t, err)
	assert.Equal(t, id, lead.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPlaceholderLeads(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	pending := domain.LeadMetadata{EnrichmentStatus: domain.EnrichmentPending}
	rows := leadRow(t, uuid.New(), "P1", pending)
	mock.ExpectQuery("metadata->>'enrichment_status' = \\$2").
		WithArgs("meta", domain.EnrichmentPending, 50).
		WillReturnRows(rows)

	repo := New(mock)
	leads, err := repo.ListPlaceholderLeads(context.Background(), "meta", 50)

	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.True(t, leads[0].IsPlaceholder())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUsersByRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	a, b := uuid.New(), uuid.New()
	mock.ExpectQuery("role = ANY\\(\\$1\\)").
		WithArgs([]string{"sales", "telecaller"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "role", "is_active", "created_at"}).
			AddRow(a, "Ravi", "ravi@example.com", "sales", true, now).
			AddRow(b, "Meena", "meena@example.com", "telecaller", true, now))

	repo := New(mock)
	users, err := repo.FindUsersByRole(context.Background(), []string{"sales", "telecaller"})

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, a, users[0].ID)
	assert.Equal(t, "Meena", users[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUserByIdentityNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("lower\\(email\\) = lower\\(\\$1\\)").
		WithArgs("nobody@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "role", "is_active", "created_at"}))

	repo := New(mock)
	_, err = repo.FindUserByIdentity(context.Background(), "nobody@example.com")
	assert.True(t, errors.Is(err, ErrUserNotFound))

	_, err = repo.FindUserByIdentity(context.Background(), "  ")
	assert.True(t, errors.Is(err, ErrUserNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
