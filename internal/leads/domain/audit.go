package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActorSystem marks events written by automated ingestion.
const ActorSystem = "system"

const (
	AuditActionCreated          = "created"
	AuditActionEnriched         = "enriched"
	AuditActionEnrichmentFailed = "enrichment_failed"
	AuditActionAssigned         = "assigned"
)

// AuditEvent is an append-only record of something that happened to a lead.
type AuditEvent struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	Actor       string
	Action      string
	Description string
	CreatedAt   time.Time
}
