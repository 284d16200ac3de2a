package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a CRM agent. Ingestion only reads users to pick an owner.
type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Role      string
	IsActive  bool
	CreatedAt time.Time
}
