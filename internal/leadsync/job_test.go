package leadsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadcrm_backend/internal/ingest"
	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/leads/repository/repositorytest"
	"leadcrm_backend/internal/metaleads"
	"leadcrm_backend/platform/logger"
	"leadcrm_backend/platform/phone"
	"leadcrm_backend/platform/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestConfig struct{}

func (ingestConfig) GetLeadSource() string                { return "meta" }
func (ingestConfig) GetPhoneDefaultRegion() string        { return "IN" }
func (ingestConfig) GetPreferredAgentIdentity() string    { return "" }
func (ingestConfig) GetAssignmentEligibleRoles() []string { return []string{"sales"} }

type syncConfig struct {
	pageID      string
	maxAttempts int
}

func (c syncConfig) GetMetaPageID() string                     { return c.pageID }
func (c syncConfig) GetLeadSyncDefaultLookback() time.Duration { return time.Hour }
func (c syncConfig) GetLeadSyncMaxLookback() time.Duration     { return 30 * 24 * time.Hour }
func (c syncConfig) GetLeadSyncRepairBatchSize() int           { return 10 }
func (c syncConfig) GetLeadSyncMaxRepairAttempts() int         { return c.maxAttempts }
func (c syncConfig) GetCronSecret() string                     { return "cron-secret" }
func (c syncConfig) GetCronTrustedCIDRs() []string             { return []string{"10.0.0.0/8"} }

type fakeGraph struct {
	mu         sync.Mutex
	details    map[string]metaleads.LeadDetail
	detailErrs map[string]error
	names      map[string]string
	forms      []metaleads.LeadForm
	formsErr   error
	byForm     map[string][]metaleads.LeadDetail
	formErrs   map[string]error
	since      []time.Time
	onFetch    func(leadID string)
}

func (f *fakeGraph) FetchLeadDetail(_ context.Context, leadID string) (metaleads.LeadDetail, error) {
	if f.onFetch != nil {
		f.onFetch(leadID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.detailErrs[leadID]; ok {
		return metaleads.LeadDetail{}, err
	}
	d, ok := f.details[leadID]
	if !ok {
		return metaleads.LeadDetail{}, metaleads.ErrNotFound
	}
	return d, nil
}

func (f *fakeGraph) FetchEntityName(_ context.Context, entityID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.names[entityID]
	return name, ok
}

func (f *fakeGraph) ListLeadForms(_ context.Context, _ string) ([]metaleads.LeadForm, error) {
	return f.forms, f.formsErr
}

func (f *fakeGraph) ListLeadsSince(_ context.Context, formID string, since time.Time) ([]metaleads.LeadDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = append(f.since, since)
	if err, ok := f.formErrs[formID]; ok {
		return nil, err
	}
	return f.byForm[formID], nil
}

type recordingStatus struct {
	saved []Summary
}

func (r *recordingStatus) Save(_ context.Context, s Summary) error {
	r.saved = append(r.saved, s)
	return nil
}

func (r *recordingStatus) Last(context.Context) (Summary, bool, error) {
	if len(r.saved) == 0 {
		return Summary{}, false, nil
	}
	return r.saved[len(r.saved)-1], true, nil
}

func newTestJob(store *repositorytest.Memory, graph *fakeGraph, cfg syncConfig, status StatusStore) *Job {
	svc := ingest.New(store, graph, ingestConfig{}, validator.New(), logger.Discard())
	return NewJob(svc, graph, store, status, cfg, logger.Discard())
}

func detail(id, phoneNumber string) metaleads.LeadDetail {
	return metaleads.LeadDetail{
		ID:          id,
		CreatedTime: metaleads.GraphTime{Time: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		FormID:      "F1",
		AdID:        "A1",
		CampaignID:  "C1",
		FieldData: []metaleads.FieldValue{
			{Name: "full_name", Values: []string{"Asha K"}},
			{Name: "phone_number", Values: []string{phoneNumber}},
			{Name: "email", Values: []string{"asha@example.com"}},
		},
	}
}

func seedPlaceholder(store *repositorytest.Memory, externalID string, attempts int) domain.Lead {
	id := externalID
	return store.Seed(domain.Lead{
		ExternalLeadID: &id,
		Source:         "meta",
		Name:           "Pending enrichment",
		Phone:          phone.Placeholder,
		Status:         domain.LeadStatusNew,
		Metadata: domain.LeadMetadata{
			PageID:           "P1",
			IngestPath:       domain.IngestPathWebhook,
			EnrichmentStatus: domain.EnrichmentPending,
			RepairAttempts:   attempts,
		},
	})
}

func TestRepairPlaceholdersCompletesLeadInPlace(t *testing.T) {
	store := repositorytest.New()
	placeholder := seedPlaceholder(store, "L1", 0)
	graph := &fakeGraph{
		details: map[string]metaleads.LeadDetail{"L1": detail("L1", "+91 98765 43210")},
		names:   map[string]string{"C1": "Diwali Promo"},
	}
	job := newTestJob(store, graph, syncConfig{pageID: "P1", maxAttempts: 3}, nil)

	summary := job.RepairPlaceholders(context.Background())

	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 0, summary.Errors)

	leads := store.Leads()
	require.Len(t, leads, 1)
	lead := leads[0]
	assert.Equal(t, placeholder.ID, lead.ID)
	assert.Equal(t, "Asha K", lead.Name)
	assert.Equal(t, "919876543210", lead.Phone)
	require.NotNil(t, lead.CampaignName)
	assert.Equal(t, "Diwali Promo", *lead.CampaignName)
	assert.Equal(t, domain.EnrichmentComplete, lead.Metadata.EnrichmentStatus)
	assert.Equal(t, domain.IngestPathRepair, lead.Metadata.IngestPath)
	assert.Equal(t, "F1", lead.Metadata.FormID)
	assert.Empty(t, lead.Metadata.LastRepairError)

	audits := store.Audits()
	require.Len(t, audits, 1)
	assert.Equal(t, domain.AuditActionEnriched, audits[0].Action)
}

func TestRepairPlaceholdersMarksMissingLeadFailed(t *testing.T) {
	store := repositorytest.New()
	seedPlaceholder(store, "gone", 0)
	job := newTestJob(store, &fakeGraph{}, syncConfig{maxAttempts: 3}, nil)

	summary := job.RepairPlaceholders(context.Background())

	assert.Equal(t, 1, summary.MarkedFailed)
	lead := store.Leads()[0]
	assert.Equal(t, domain.EnrichmentFailed, lead.Metadata.EnrichmentStatus)
	assert.Equal(t, phone.Placeholder, lead.Phone)

	audits := store.Audits()
	require.Len(t, audits, 1)
	assert.Equal(t, domain.AuditActionEnrichmentFailed, audits[0].Action)
}

func TestRepairPlaceholdersMarksDetailWithoutPhoneFailed(t *testing.T) {
	store := repositorytest.New()
	seedPlaceholder(store, "L1", 0)
	graph := &fakeGraph{details: map[string]metaleads.LeadDetail{"L1": detail("L1", "n/a")}}
	job := newTestJob(store, graph, syncConfig{maxAttempts: 3}, nil)

	summary := job.RepairPlaceholders(context.Background())

	assert.Equal(t, 1, summary.MarkedFailed)
	assert.Equal(t, domain.EnrichmentFailed, store.Leads()[0].Metadata.EnrichmentStatus)
}

func TestRepairPlaceholdersCountsTransientAttempts(t *testing.T) {
	store := repositorytest.New()
	seedPlaceholder(store, "L1", 0)
	graph := &fakeGraph{detailErrs: map[string]error{
		"L1": &metaleads.TransientError{Op: "fetch lead", StatusCode: 503, Err: errors.New("unavailable")},
	}}
	job := newTestJob(store, graph, syncConfig{maxAttempts: 2}, nil)

	first := job.RepairPlaceholders(context.Background())
	assert.Equal(t, 1, first.Errors)
	lead := store.Leads()[0]
	assert.Equal(t, domain.EnrichmentPending, lead.Metadata.EnrichmentStatus)
	assert.Equal(t, 1, lead.Metadata.RepairAttempts)
	assert.Contains(t, lead.Metadata.LastRepairError, "unavailable")
	assert.Empty(t, store.Audits())

	second := job.RepairPlaceholders(context.Background())
	assert.Equal(t, 1, second.MarkedFailed)
	lead = store.Leads()[0]
	assert.Equal(t, domain.EnrichmentFailed, lead.Metadata.EnrichmentStatus)
	assert.Equal(t, 2, lead.Metadata.RepairAttempts)

	third := job.RepairPlaceholders(context.Background())
	assert.Equal(t, Summary{}, third)
}

func TestDiscoverGapsIngestsMissingLeads(t *testing.T) {
	store := repositorytest.New()
	existing := "L2"
	store.Seed(domain.Lead{ExternalLeadID: &existing, Source: "meta", Name: "Ravi", Phone: "919812345678"})

	graph := &fakeGraph{
		forms: []metaleads.LeadForm{{ID: "F1"}, {ID: "F2"}, {ID: "F3"}},
		byForm: map[string][]metaleads.LeadDetail{
			"F1": {detail("L1", "9876543210"), detail("L2", "9812345678")},
			"F3": {detail("L3", "")},
		},
		formErrs: map[string]error{"F2": &metaleads.TransientError{Op: "list leads", Err: errors.New("timeout")}},
	}
	job := newTestJob(store, graph, syncConfig{pageID: "P1", maxAttempts: 3}, nil)

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	summary, err := job.DiscoverGaps(context.Background(), since)

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Forms)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.Errors)
	assert.Len(t, store.Leads(), 2)
	for _, s := range graph.since {
		assert.Equal(t, since, s)
	}

	created := store.Leads()[1]
	assert.Equal(t, domain.IngestPathBackupSync, created.Metadata.IngestPath)
	assert.Equal(t, "P1", created.Metadata.PageID)
}

func TestDiscoverGapsWithoutPageIsNoop(t *testing.T) {
	graph := &fakeGraph{forms: []metaleads.LeadForm{{ID: "F1"}}}
	job := newTestJob(repositorytest.New(), graph, syncConfig{maxAttempts: 3}, nil)

	summary, err := job.DiscoverGaps(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)
	assert.Empty(t, graph.since)
}

func TestRunAggregatesAndStoresSummary(t *testing.T) {
	store := repositorytest.New()
	seedPlaceholder(store, "gone", 0)
	graph := &fakeGraph{
		forms:  []metaleads.LeadForm{{ID: "F1"}},
		byForm: map[string][]metaleads.LeadDetail{"F1": {detail("L1", "9876543210")}},
	}
	status := &recordingStatus{}
	job := newTestJob(store, graph, syncConfig{pageID: "P1", maxAttempts: 3}, status)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	summary := job.Run(context.Background(), 90*24*time.Hour)

	assert.Equal(t, now.Add(-30*24*time.Hour), summary.Since)
	assert.Equal(t, 1, summary.MarkedFailed)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Forms)
	assert.Equal(t, now, summary.FinishedAt)

	last, ok, err := job.LastRun(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, summary, last)
}

func TestRunSurvivesFormListingFailure(t *testing.T) {
	graph := &fakeGraph{formsErr: &metaleads.APIError{StatusCode: 400, Code: 100, Message: "bad page"}}
	job := newTestJob(repositorytest.New(), graph, syncConfig{pageID: "P1", maxAttempts: 3}, nil)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	summary := job.Run(context.Background(), 0)

	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, now.Add(-time.Hour), summary.Since)
}

func TestOverlappingRepairPassesKeepTheFirstCompletion(t *testing.T) {
	store := repositorytest.New()
	seedPlaceholder(store, "L1", 0)
	seedPlaceholder(store, "gone", 0)

	winner := newTestJob(store, &fakeGraph{
		details: map[string]metaleads.LeadDetail{
			"L1":   detail("L1", "9876543210"),
			"gone": detail("gone", "9812345678"),
		},
	}, syncConfig{maxAttempts: 3}, nil)

	// The slow pass lists both placeholders, then the fast pass completes them
	// before the slow pass gets any answer from the platform.
	var once sync.Once
	var fast Summary
	slowGraph := &fakeGraph{
		detailErrs: map[string]error{
			"L1": &metaleads.TransientError{Op: "fetch lead", StatusCode: 503, Err: errors.New("unavailable")},
		},
		onFetch: func(string) {
			once.Do(func() { fast = winner.RepairPlaceholders(context.Background()) })
		},
	}
	slow := newTestJob(store, slowGraph, syncConfig{maxAttempts: 1}, nil)

	summary := slow.RepairPlaceholders(context.Background())

	assert.Equal(t, 2, fast.Updated)
	assert.Equal(t, 2, summary.Skipped)
	assert.Zero(t, summary.Errors)
	assert.Zero(t, summary.MarkedFailed)

	for _, lead := range store.Leads() {
		assert.Equal(t, domain.EnrichmentComplete, lead.Metadata.EnrichmentStatus)
		assert.Empty(t, lead.Metadata.LastRepairError)
		assert.Zero(t, lead.Metadata.RepairAttempts)
		assert.NotEqual(t, phone.Placeholder, lead.Phone)
	}
	audits := store.Audits()
	require.Len(t, audits, 2)
	for _, a := range audits {
		assert.Equal(t, domain.AuditActionEnriched, a.Action)
	}
}

func TestRepairSkipsStaleSnapshotOfCompletedLead(t *testing.T) {
	store := repositorytest.New()
	stale := seedPlaceholder(store, "L1", 0)
	graph := &fakeGraph{details: map[string]metaleads.LeadDetail{"L1": detail("L1", "9876543210")}}
	job := newTestJob(store, graph, syncConfig{maxAttempts: 3}, nil)
	require.Equal(t, 1, job.RepairPlaceholders(context.Background()).Updated)

	assert.Equal(t, repairSkipped, job.repairOne(context.Background(), stale))

	flaky := newTestJob(store, &fakeGraph{detailErrs: map[string]error{
		"L1": &metaleads.TransientError{Op: "fetch lead", StatusCode: 503, Err: errors.New("unavailable")},
	}}, syncConfig{maxAttempts: 3}, nil)
	assert.Equal(t, repairSkipped, flaky.repairOne(context.Background(), stale))

	lead := store.Leads()[0]
	assert.Equal(t, domain.EnrichmentComplete, lead.Metadata.EnrichmentStatus)
	assert.Zero(t, lead.Metadata.RepairAttempts)
	assert.Empty(t, lead.Metadata.LastRepairError)
	assert.Len(t, store.Audits(), 1)
}
