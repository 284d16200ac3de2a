package ingest

import (
	"strings"
	"time"

	"leadcrm_backend/internal/metaleads"
	"leadcrm_backend/platform/sanitize"
)

const (
	maxNameRunes  = 120
	maxEmailRunes = 254
	maxFieldRunes = 500
)

// Field is one raw form answer.
type Field struct {
	Name   string
	Values []string
}

// IngestionPayload is the parsed form of one inbound lead event.
type IngestionPayload struct {
	ExternalLeadID string `validate:"required"`
	FormID         string
	PageID         string
	AdID           string
	AdsetID        string
	CampaignID     string
	AdName         string
	AdsetName      string
	CampaignName   string
	Fields         []Field
	SubmittedAt    time.Time
	Path           string `validate:"required,oneof=webhook backup_sync repair"`
}

// PayloadFromDetail builds a payload from a Graph lead object.
func PayloadFromDetail(detail metaleads.LeadDetail, pageID, path string) IngestionPayload {
	fields := make([]Field, 0, len(detail.FieldData))
	for _, fv := range detail.FieldData {
		fields = append(fields, Field{Name: fv.Name, Values: fv.Values})
	}

	return IngestionPayload{
		ExternalLeadID: strings.TrimSpace(detail.ID),
		FormID:         detail.FormID,
		PageID:         pageID,
		AdID:           detail.AdID,
		AdsetID:        detail.AdsetID,
		CampaignID:     detail.CampaignID,
		AdName:         detail.AdName,
		AdsetName:      detail.AdsetName,
		CampaignName:   detail.CampaignName,
		Fields:         fields,
		SubmittedAt:    detail.CreatedTime.Time,
		Path:           path,
	}
}

// contact is what ingestion reads out of the raw field list.
type contact struct {
	Name     string
	RawPhone string
	Email    string
	Extra    map[string]string
}

func extractContact(fields []Field) contact {
	var c contact
	var first, last string
	extra := make(map[string]string)

	for _, f := range fields {
		value := sanitize.Truncate(strings.Join(f.Values, ", "), maxFieldRunes)
		if value == "" {
			continue
		}

		switch classifyField(f.Name) {
		case "fullName":
			if c.Name == "" {
				c.Name = value
			}
		case "firstName":
			first = value
		case "lastName":
			last = value
		case "phone":
			if c.RawPhone == "" {
				c.RawPhone = value
			}
		case "email":
			if c.Email == "" {
				c.Email = strings.ToLower(sanitize.Truncate(value, maxEmailRunes))
			}
		default:
			key := strings.TrimSpace(f.Name)
			if key != "" {
				extra[key] = value
			}
		}
	}

	if c.Name == "" {
		c.Name = strings.TrimSpace(first + " " + last)
	}
	c.Name = sanitize.Truncate(c.Name, maxNameRunes)
	if !strings.Contains(c.Email, "@") {
		c.Email = ""
	}
	if len(extra) > 0 {
		c.Extra = extra
	}
	return c
}

// classifyField maps form question keys to contact fields.
func classifyField(name string) string {
	label := strings.ToLower(strings.TrimSpace(name))
	label = strings.ReplaceAll(label, "_", " ")

	switch {
	case label == "":
		return ""
	case containsAny(label, "first name", "given"):
		return "firstName"
	case containsAny(label, "last name", "surname", "family"):
		return "lastName"
	case containsAny(label, "full name") || label == "name":
		return "fullName"
	case containsAny(label, "email", "e-mail"):
		return "email"
	case containsAny(label, "phone", "mobile", "whatsapp", "contact number"):
		return "phone"
	default:
		return ""
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
