// Package ingest turns inbound ad-platform lead events into canonical leads.
// Both the webhook and the backup sync job funnel through Service.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/internal/metaleads"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"
	"leadcrm_backend/platform/phone"
	"leadcrm_backend/platform/validator"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// Result is the terminal state of one ingestion attempt.
type Result struct {
	Outcome     Outcome
	Reason      string
	LeadID      uuid.UUID
	Placeholder bool
	Err         error
}

const (
	placeholderName = "Pending enrichment"
	auditCreated    = "Lead created"
)

// Store is the persistence surface of ingestion.
type Store interface {
	DuplicateFinder
	repository.AssignmentReader
	CreateLead(ctx context.Context, params repository.CreateLeadParams) (domain.Lead, error)
}

// LeadClient is the ad-platform API used during ingestion.
type LeadClient interface {
	FetchLeadDetail(ctx context.Context, leadID string) (metaleads.LeadDetail, error)
	FetchEntityName(ctx context.Context, entityID string) (string, bool)
}

// LeadNotification is one lead event as delivered by the webhook.
type LeadNotification struct {
	LeadgenID   string
	FormID      string
	PageID      string
	AdID        string
	AdgroupID   string
	CampaignID  string
	CreatedTime time.Time
}

type Service struct {
	store      Store
	client     LeadClient
	dedup      *DeduplicationResolver
	assign     *AssignmentResolver
	normalizer *phone.Normalizer
	validator  *validator.Validator
	source     string
	log        *logger.Logger
	now        func() time.Time
}

func New(store Store, client LeadClient, cfg config.IngestConfig, val *validator.Validator, log *logger.Logger) *Service {
	source := cfg.GetLeadSource()
	return &Service{
		store:      store,
		client:     client,
		dedup:      NewDeduplicationResolver(store),
		assign:     NewAssignmentResolver(store, source, cfg.GetPreferredAgentIdentity(), cfg.GetAssignmentEligibleRoles(), log),
		normalizer: phone.NewNormalizer(cfg.GetPhoneDefaultRegion()),
		validator:  val,
		source:     source,
		log:        log,
		now:        time.Now,
	}
}

// Source returns the lead source this service writes.
func (s *Service) Source() string {
	return s.source
}

// Ingest runs one payload through dedup, enrichment, assignment and persistence.
// It never panics on bad input; every path ends in a Result.
func (s *Service) Ingest(ctx context.Context, payload IngestionPayload) Result {
	res := s.ingest(ctx, payload)
	s.record(ctx, payload.Path, payload.ExternalLeadID, res)
	return res
}

func (s *Service) ingest(ctx context.Context, payload IngestionPayload) Result {
	payload.ExternalLeadID = strings.TrimSpace(payload.ExternalLeadID)
	if err := s.validator.Struct(payload); err != nil {
		if validator.FirstFailedField(err) == "ExternalLeadID" {
			return Result{Outcome: OutcomeRejected, Reason: "missing external lead id"}
		}
		return Result{Outcome: OutcomeRejected, Reason: "invalid payload: " + strings.ToLower(validator.FirstFailedField(err))}
	}

	c, ok := s.ParseContact(payload.Fields)
	if !ok {
		return Result{Outcome: OutcomeRejected, Reason: "missing phone"}
	}

	dup, err := s.dedup.FindDuplicate(ctx, s.source, c.Phone, c.Email, payload.ExternalLeadID)
	if err != nil {
		return failed("duplicate check failed", err)
	}
	if dup != nil {
		return Result{Outcome: OutcomeSkipped, Reason: "duplicate", LeadID: dup.ID}
	}

	names := s.ResolveNames(ctx, payload)
	owner := s.resolveOwner(ctx)

	now := s.now().UTC()
	meta := domain.LeadMetadata{
		FormID:           payload.FormID,
		PageID:           payload.PageID,
		AdID:             payload.AdID,
		AdsetID:          payload.AdsetID,
		CampaignID:       payload.CampaignID,
		AdName:           names.Ad,
		AdsetName:        names.Adset,
		CampaignName:     names.Campaign,
		IngestedAt:       &now,
		IngestPath:       payload.Path,
		EnrichmentStatus: domain.EnrichmentComplete,
		Fields:           c.Extra,
	}
	if !payload.SubmittedAt.IsZero() {
		submitted := payload.SubmittedAt.UTC()
		meta.SubmittedAt = &submitted
	}

	campaign := names.CampaignOrID(payload.CampaignID)

	externalID := payload.ExternalLeadID
	lead, err := s.store.CreateLead(ctx, repository.CreateLeadParams{
		ExternalLeadID: &externalID,
		Source:         s.source,
		Name:           c.Name,
		Phone:          c.Phone,
		Email:          c.Email,
		CampaignName:   optional(campaign),
		Status:         domain.LeadStatusNew,
		AssignedTo:     owner,
		Metadata:       meta,
		Audit: repository.AuditParams{
			Actor:       domain.ActorSystem,
			Action:      domain.AuditActionCreated,
			Description: creationDescription(s.source, payload.Path, campaign, names.Ad),
		},
	})
	if errors.Is(err, repository.ErrDuplicateLead) {
		return Result{Outcome: OutcomeSkipped, Reason: "duplicate (concurrent insert)"}
	}
	if err != nil {
		return failed("persist lead", err)
	}

	return Result{Outcome: OutcomeCreated, LeadID: lead.ID}
}

// HandleNotification ingests a webhook event. It fetches the lead detail first;
// when the platform is unreachable it stores a placeholder lead for later repair.
func (s *Service) HandleNotification(ctx context.Context, n LeadNotification) Result {
	n.LeadgenID = strings.TrimSpace(n.LeadgenID)
	if n.LeadgenID == "" {
		res := Result{Outcome: OutcomeRejected, Reason: "missing external lead id"}
		s.record(ctx, domain.IngestPathWebhook, "", res)
		return res
	}

	// Redeliveries are common; skip them without calling the Graph API.
	existing, err := s.store.FindLeadByExternalID(ctx, s.source, n.LeadgenID)
	if err == nil {
		res := Result{Outcome: OutcomeSkipped, Reason: "duplicate", LeadID: existing.ID}
		s.record(ctx, domain.IngestPathWebhook, n.LeadgenID, res)
		return res
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.log.Warn("ingest: early duplicate check failed", "leadgenId", n.LeadgenID, "error", err)
	}

	detail, err := s.client.FetchLeadDetail(ctx, n.LeadgenID)
	if err != nil {
		var res Result
		switch {
		case metaleads.IsTransient(err):
			res = s.createPlaceholder(ctx, n, err)
		case errors.Is(err, metaleads.ErrNotFound):
			res = failed("lead detail not found", err)
		default:
			res = failed("lead detail fetch failed", err)
		}
		s.record(ctx, domain.IngestPathWebhook, n.LeadgenID, res)
		return res
	}

	payload := PayloadFromDetail(detail, n.PageID, domain.IngestPathWebhook)
	payload.ExternalLeadID = n.LeadgenID
	payload.FormID = firstNonEmpty(payload.FormID, n.FormID)
	payload.AdID = firstNonEmpty(payload.AdID, n.AdID)
	payload.AdsetID = firstNonEmpty(payload.AdsetID, n.AdgroupID)
	payload.CampaignID = firstNonEmpty(payload.CampaignID, n.CampaignID)
	if payload.SubmittedAt.IsZero() {
		payload.SubmittedAt = n.CreatedTime
	}
	return s.Ingest(ctx, payload)
}

func (s *Service) createPlaceholder(ctx context.Context, n LeadNotification, cause error) Result {
	now := s.now().UTC()
	meta := domain.LeadMetadata{
		FormID:           n.FormID,
		PageID:           n.PageID,
		AdID:             n.AdID,
		AdsetID:          n.AdgroupID,
		CampaignID:       n.CampaignID,
		IngestedAt:       &now,
		IngestPath:       domain.IngestPathWebhook,
		EnrichmentStatus: domain.EnrichmentPending,
		LastRepairError:  cause.Error(),
	}
	if !n.CreatedTime.IsZero() {
		submitted := n.CreatedTime.UTC()
		meta.SubmittedAt = &submitted
	}

	externalID := n.LeadgenID
	lead, err := s.store.CreateLead(ctx, repository.CreateLeadParams{
		ExternalLeadID: &externalID,
		Source:         s.source,
		Name:           placeholderName,
		Phone:          phone.Placeholder,
		CampaignName:   optional(n.CampaignID),
		Status:         domain.LeadStatusNew,
		AssignedTo:     s.resolveOwner(ctx),
		Metadata:       meta,
		Audit: repository.AuditParams{
			Actor:       domain.ActorSystem,
			Action:      domain.AuditActionCreated,
			Description: fmt.Sprintf("Placeholder lead created from %s webhook; contact details pending enrichment", s.source),
		},
	})
	if errors.Is(err, repository.ErrDuplicateLead) {
		return Result{Outcome: OutcomeSkipped, Reason: "duplicate (concurrent insert)"}
	}
	if err != nil {
		return failed("persist placeholder lead", err)
	}

	return Result{Outcome: OutcomeCreated, LeadID: lead.ID, Placeholder: true, Reason: "lead detail unavailable"}
}

// Contact is the canonical contact read from a lead form.
type Contact struct {
	Name  string
	Phone string
	Email *string
	Extra map[string]string
}

// ParseContact extracts and normalizes the contact fields.
// ok is false when no plausible phone remains after normalization.
func (s *Service) ParseContact(fields []Field) (Contact, bool) {
	c := extractContact(fields)
	canonical := s.normalizer.Normalize(c.RawPhone)
	if !phone.IsPlausible(canonical) {
		return Contact{}, false
	}
	return Contact{
		Name:  c.Name,
		Phone: canonical,
		Email: optional(c.Email),
		Extra: c.Extra,
	}, true
}

// EntityNames are the display names of the ad hierarchy behind a lead.
type EntityNames struct {
	Ad       string
	Adset    string
	Campaign string
}

// CampaignOrID returns the campaign name, falling back to the raw id.
func (n EntityNames) CampaignOrID(campaignID string) string {
	if n.Campaign != "" {
		return n.Campaign
	}
	return strings.TrimSpace(campaignID)
}

// ResolveNames looks up display names in parallel. Lookups never fail the caller.
func (s *Service) ResolveNames(ctx context.Context, payload IngestionPayload) EntityNames {
	names := EntityNames{
		Ad:       strings.TrimSpace(payload.AdName),
		Adset:    strings.TrimSpace(payload.AdsetName),
		Campaign: strings.TrimSpace(payload.CampaignName),
	}

	g, gctx := errgroup.WithContext(ctx)
	lookup := func(current *string, id string) {
		if *current != "" || strings.TrimSpace(id) == "" {
			return
		}
		g.Go(func() error {
			if name, ok := s.client.FetchEntityName(gctx, id); ok {
				*current = name
			}
			return nil
		})
	}
	lookup(&names.Ad, payload.AdID)
	lookup(&names.Adset, payload.AdsetID)
	lookup(&names.Campaign, payload.CampaignID)
	_ = g.Wait()

	return names
}

func (s *Service) resolveOwner(ctx context.Context) *uuid.UUID {
	owner, err := s.assign.ResolveOwner(ctx, s.source)
	if err != nil {
		s.log.Warn("ingest: owner resolution failed, lead stays unassigned", "error", err)
		return nil
	}
	return owner
}

func (s *Service) record(ctx context.Context, path, externalLeadID string, res Result) {
	log := s.log.WithContext(ctx)
	if res.Err != nil {
		log.Error("ingest: "+res.Reason, "leadgenId", externalLeadID, "path", path, "error", res.Err)
	}
	log.IngestEvent(path, externalLeadID, string(res.Outcome), res.Reason)
}

func creationDescription(source, path, campaign, ad string) string {
	parts := []string{fmt.Sprintf("%s from %s via %s", auditCreated, source, path)}
	if campaign != "" {
		parts = append(parts, "campaign: "+campaign)
	}
	if ad != "" {
		parts = append(parts, "ad: "+ad)
	}
	return strings.Join(parts, "; ")
}

func failed(reason string, err error) Result {
	return Result{Outcome: OutcomeFailed, Reason: reason, Err: err}
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
