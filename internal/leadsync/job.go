// Package leadsync provides the backup sync job that repairs placeholder leads
// and re-discovers leads the webhook missed.
package leadsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadcrm_backend/internal/ingest"
	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/internal/metaleads"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultRepairBatchSize   = 100
	defaultMaxRepairAttempts = 5
)

// Ingester is the ingestion surface the job drives.
type Ingester interface {
	Source() string
	Ingest(ctx context.Context, payload ingest.IngestionPayload) ingest.Result
	ParseContact(fields []ingest.Field) (ingest.Contact, bool)
	ResolveNames(ctx context.Context, payload ingest.IngestionPayload) ingest.EntityNames
}

// LeadSource lists and fetches leads from the ad platform.
type LeadSource interface {
	FetchLeadDetail(ctx context.Context, leadID string) (metaleads.LeadDetail, error)
	ListLeadForms(ctx context.Context, pageID string) ([]metaleads.LeadForm, error)
	ListLeadsSince(ctx context.Context, formID string, since time.Time) ([]metaleads.LeadDetail, error)
}

// Store is the persistence the repair pass needs.
type Store interface {
	ListPlaceholderLeads(ctx context.Context, source string, limit int) ([]domain.Lead, error)
	UpdateLead(ctx context.Context, id uuid.UUID, params repository.UpdateLeadParams) (domain.Lead, error)
}

// Summary aggregates one run. Runs never fail as a whole; problems are counted.
type Summary struct {
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
	Since        time.Time `json:"since"`
	Forms        int       `json:"forms"`
	Updated      int       `json:"updated"`
	MarkedFailed int       `json:"markedFailed"`
	Created      int       `json:"created"`
	Skipped      int       `json:"skipped"`
	Rejected     int       `json:"rejected"`
	Errors       int       `json:"errors"`
}

func (s *Summary) add(other Summary) {
	s.Forms += other.Forms
	s.Updated += other.Updated
	s.MarkedFailed += other.MarkedFailed
	s.Created += other.Created
	s.Skipped += other.Skipped
	s.Rejected += other.Rejected
	s.Errors += other.Errors
}

func (s *Summary) count(res ingest.Result) {
	switch res.Outcome {
	case ingest.OutcomeCreated:
		s.Created++
	case ingest.OutcomeSkipped:
		s.Skipped++
	case ingest.OutcomeRejected:
		s.Rejected++
	default:
		s.Errors++
	}
}

type Job struct {
	ingester      Ingester
	client        LeadSource
	store         Store
	status        StatusStore
	pageID        string
	batchSize     int
	maxAttempts   int
	defaultWindow time.Duration
	maxWindow     time.Duration
	log           *logger.Logger
	now           func() time.Time
}

func NewJob(ingester Ingester, client LeadSource, store Store, status StatusStore, cfg config.LeadSyncConfig, log *logger.Logger) *Job {
	batch := cfg.GetLeadSyncRepairBatchSize()
	if batch < 1 {
		batch = defaultRepairBatchSize
	}
	attempts := cfg.GetLeadSyncMaxRepairAttempts()
	if attempts < 1 {
		attempts = defaultMaxRepairAttempts
	}
	if status == nil {
		status = NopStatusStore{}
	}

	return &Job{
		ingester:      ingester,
		client:        client,
		store:         store,
		status:        status,
		pageID:        cfg.GetMetaPageID(),
		batchSize:     batch,
		maxAttempts:   attempts,
		defaultWindow: cfg.GetLeadSyncDefaultLookback(),
		maxWindow:     cfg.GetLeadSyncMaxLookback(),
		log:           log,
		now:           time.Now,
	}
}

// Run repairs placeholders, then discovers leads created within lookback.
// A non-positive lookback uses the default window; larger ones are capped.
func (j *Job) Run(ctx context.Context, lookback time.Duration) Summary {
	started := j.now().UTC()
	window := j.clampWindow(lookback)

	summary := Summary{StartedAt: started, Since: started.Add(-window)}
	summary.add(j.RepairPlaceholders(ctx))

	gaps, err := j.DiscoverGaps(ctx, summary.Since)
	if err != nil {
		j.log.Error("leadsync: gap discovery failed", "error", err)
		summary.Errors++
	}
	summary.add(gaps)
	summary.FinishedAt = j.now().UTC()

	if err := j.status.Save(ctx, summary); err != nil {
		j.log.Warn("leadsync: failed to store run status", "error", err)
	}

	j.log.Info("leadsync: run complete",
		"since", summary.Since, "forms", summary.Forms,
		"updated", summary.Updated, "markedFailed", summary.MarkedFailed,
		"created", summary.Created, "skipped", summary.Skipped,
		"rejected", summary.Rejected, "errors", summary.Errors,
		"durationMs", summary.FinishedAt.Sub(started).Milliseconds())
	return summary
}

// LastRun returns the most recently stored summary.
func (j *Job) LastRun(ctx context.Context) (Summary, bool, error) {
	return j.status.Last(ctx)
}

func (j *Job) clampWindow(lookback time.Duration) time.Duration {
	if lookback <= 0 {
		lookback = j.defaultWindow
	}
	if lookback <= 0 {
		lookback = time.Hour
	}
	if j.maxWindow > 0 && lookback > j.maxWindow {
		lookback = j.maxWindow
	}
	return lookback
}

// RepairPlaceholders completes or fails leads waiting for enrichment. It updates
// leads in place and never creates new ones.
func (j *Job) RepairPlaceholders(ctx context.Context) Summary {
	var summary Summary

	leads, err := j.store.ListPlaceholderLeads(ctx, j.ingester.Source(), j.batchSize)
	if err != nil {
		j.log.Error("leadsync: list placeholder leads failed", "error", err)
		summary.Errors++
		return summary
	}

	for _, lead := range leads {
		if ctx.Err() != nil {
			summary.Errors++
			break
		}
		switch j.repairOne(ctx, lead) {
		case repairUpdated:
			summary.Updated++
		case repairMarkedFailed:
			summary.MarkedFailed++
		case repairSkipped:
			summary.Skipped++
		default:
			summary.Errors++
		}
	}
	return summary
}

type repairOutcome int

const (
	repairUpdated repairOutcome = iota
	repairMarkedFailed
	repairRetry
	repairSkipped
)

// repairOne works from the snapshot listed at the start of the pass. Every
// write is conditional on the lead still pending, so an overlapping pass that
// already finished the lead wins and this one backs off.
func (j *Job) repairOne(ctx context.Context, lead domain.Lead) repairOutcome {
	if !lead.IsPlaceholder() {
		return repairSkipped
	}
	meta := lead.Metadata
	externalID := ""
	if lead.ExternalLeadID != nil {
		externalID = *lead.ExternalLeadID
	}

	detail, err := j.client.FetchLeadDetail(ctx, externalID)
	if errors.Is(err, metaleads.ErrNotFound) {
		return j.markFailed(ctx, lead, "lead no longer available on the platform")
	}
	if err != nil {
		meta.RepairAttempts++
		meta.LastRepairError = err.Error()
		if meta.RepairAttempts >= j.maxAttempts {
			lead.Metadata = meta
			return j.markFailed(ctx, lead, fmt.Sprintf("gave up after %d attempts: %v", meta.RepairAttempts, err))
		}
		_, uerr := j.store.UpdateLead(ctx, lead.ID, repository.UpdateLeadParams{Metadata: meta, OnlyIfPending: true})
		if errors.Is(uerr, repository.ErrNotPending) {
			j.log.Info("leadsync: placeholder settled by another run", "leadId", lead.ID)
			return repairSkipped
		}
		if uerr != nil {
			j.log.Error("leadsync: record repair attempt failed", "leadId", lead.ID, "error", uerr)
		}
		j.log.Warn("leadsync: placeholder repair deferred", "leadId", lead.ID, "leadgenId", externalID,
			"attempt", meta.RepairAttempts, "error", err)
		return repairRetry
	}

	payload := ingest.PayloadFromDetail(detail, meta.PageID, domain.IngestPathRepair)
	contact, ok := j.ingester.ParseContact(payload.Fields)
	if !ok {
		return j.markFailed(ctx, lead, "lead detail has no usable phone")
	}

	payload.AdID = firstNonEmpty(payload.AdID, meta.AdID)
	payload.AdsetID = firstNonEmpty(payload.AdsetID, meta.AdsetID)
	payload.CampaignID = firstNonEmpty(payload.CampaignID, meta.CampaignID)
	names := j.ingester.ResolveNames(ctx, payload)

	meta.FormID = firstNonEmpty(payload.FormID, meta.FormID)
	meta.AdID = payload.AdID
	meta.AdsetID = payload.AdsetID
	meta.CampaignID = payload.CampaignID
	meta.AdName = names.Ad
	meta.AdsetName = names.Adset
	meta.CampaignName = names.Campaign
	meta.EnrichmentStatus = domain.EnrichmentComplete
	meta.LastRepairError = ""
	meta.IngestPath = domain.IngestPathRepair
	meta.Fields = contact.Extra
	if meta.SubmittedAt == nil && !payload.SubmittedAt.IsZero() {
		submitted := payload.SubmittedAt.UTC()
		meta.SubmittedAt = &submitted
	}

	params := repository.UpdateLeadParams{
		Phone:         &contact.Phone,
		Email:         contact.Email,
		Metadata:      meta,
		OnlyIfPending: true,
		Audit: &repository.AuditParams{
			Actor:       domain.ActorSystem,
			Action:      domain.AuditActionEnriched,
			Description: "Contact details completed by backup sync",
		},
	}
	if contact.Name != "" {
		params.Name = &contact.Name
	}
	if campaign := names.CampaignOrID(payload.CampaignID); campaign != "" {
		params.CampaignName = &campaign
	}

	_, err = j.store.UpdateLead(ctx, lead.ID, params)
	if errors.Is(err, repository.ErrNotPending) {
		j.log.Info("leadsync: placeholder settled by another run", "leadId", lead.ID)
		return repairSkipped
	}
	if err != nil {
		j.log.Error("leadsync: repair update failed", "leadId", lead.ID, "error", err)
		return repairRetry
	}
	j.log.Info("leadsync: placeholder repaired", "leadId", lead.ID, "leadgenId", externalID)
	return repairUpdated
}

func (j *Job) markFailed(ctx context.Context, lead domain.Lead, reason string) repairOutcome {
	meta := lead.Metadata
	meta.EnrichmentStatus = domain.EnrichmentFailed
	meta.LastRepairError = reason

	_, err := j.store.UpdateLead(ctx, lead.ID, repository.UpdateLeadParams{
		Metadata: meta,
		Audit: &repository.AuditParams{
			Actor:       domain.ActorSystem,
			Action:      domain.AuditActionEnrichmentFailed,
			Description: "Enrichment failed: " + reason,
		},
		OnlyIfPending: true,
	})
	if errors.Is(err, repository.ErrNotPending) {
		j.log.Info("leadsync: placeholder settled by another run", "leadId", lead.ID)
		return repairSkipped
	}
	if err != nil {
		j.log.Error("leadsync: mark enrichment failed", "leadId", lead.ID, "error", err)
		return repairRetry
	}
	j.log.Warn("leadsync: placeholder marked failed", "leadId", lead.ID, "reason", reason)
	return repairMarkedFailed
}

// DiscoverGaps ingests every platform lead created after since. Deduplication
// inside Ingest is re-checked right before each insert.
func (j *Job) DiscoverGaps(ctx context.Context, since time.Time) (Summary, error) {
	var summary Summary
	if j.pageID == "" {
		j.log.Warn("leadsync: META_PAGE_ID not configured, gap discovery skipped")
		return summary, nil
	}

	forms, err := j.client.ListLeadForms(ctx, j.pageID)
	if err != nil {
		return summary, fmt.Errorf("list lead forms: %w", err)
	}
	summary.Forms = len(forms)

	for _, form := range forms {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		details, err := j.client.ListLeadsSince(ctx, form.ID, since)
		if err != nil {
			j.log.Error("leadsync: list leads failed", "formId", form.ID, "error", err)
			summary.Errors++
			continue
		}

		for _, detail := range details {
			payload := ingest.PayloadFromDetail(detail, j.pageID, domain.IngestPathBackupSync)
			payload.FormID = firstNonEmpty(payload.FormID, form.ID)
			summary.count(j.ingester.Ingest(ctx, payload))
		}
	}
	return summary, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
