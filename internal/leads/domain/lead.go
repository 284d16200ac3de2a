package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	LeadStatusNew         = "new"
	LeadStatusFollowup    = "followup"
	LeadStatusUnreach     = "unreach"
	LeadStatusUnqualified = "unqualified"
	LeadStatusWon         = "won"
	LeadStatusLost        = "lost"
)

var knownLeadStatuses = map[string]struct{}{
	LeadStatusNew:         {},
	LeadStatusFollowup:    {},
	LeadStatusUnreach:     {},
	LeadStatusUnqualified: {},
	LeadStatusWon:         {},
	LeadStatusLost:        {},
}

func IsKnownLeadStatus(status string) bool {
	_, ok := knownLeadStatuses[status]
	return ok
}

// Ingest paths recorded in metadata.
const (
	IngestPathWebhook    = "webhook"
	IngestPathBackupSync = "backup_sync"
	IngestPathRepair     = "repair"
)

// Enrichment states. A pending lead carries the placeholder phone until repaired.
const (
	EnrichmentComplete = "complete"
	EnrichmentPending  = "pending"
	EnrichmentFailed   = "failed"
)

// Lead is the canonical sales lead.
type Lead struct {
	ID             uuid.UUID
	ExternalLeadID *string
	Source         string
	Name           string
	Phone          string
	Email          *string
	CampaignName   *string
	Status         string
	AssignedTo     *uuid.UUID
	CallAttempts   int
	Metadata       LeadMetadata
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsPlaceholder reports whether the lead still waits for its contact details.
func (l Lead) IsPlaceholder() bool {
	return l.Metadata.EnrichmentStatus == EnrichmentPending
}

// LeadMetadata is the provenance blob stored as JSONB.
type LeadMetadata struct {
	FormID           string            `json:"form_id,omitempty"`
	PageID           string            `json:"page_id,omitempty"`
	AdID             string            `json:"ad_id,omitempty"`
	AdsetID          string            `json:"adset_id,omitempty"`
	CampaignID       string            `json:"campaign_id,omitempty"`
	AdName           string            `json:"ad_name,omitempty"`
	AdsetName        string            `json:"adset_name,omitempty"`
	CampaignName     string            `json:"campaign_name,omitempty"`
	SubmittedAt      *time.Time        `json:"submitted_at,omitempty"`
	IngestedAt       *time.Time        `json:"ingested_at,omitempty"`
	IngestPath       string            `json:"ingest_path,omitempty"`
	EnrichmentStatus string            `json:"enrichment_status,omitempty"`
	RepairAttempts   int               `json:"repair_attempts,omitempty"`
	LastRepairError  string            `json:"last_repair_error,omitempty"`
	Fields           map[string]string `json:"fields,omitempty"`
}
