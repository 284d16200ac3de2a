package metaleads

import (
	"encoding/json"
	"strings"
	"time"
)

const graphTimeLayout = "2006-01-02T15:04:05-0700"

// GraphTime parses the Graph API timestamp format ("2024-03-01T10:00:00+0000").
type GraphTime struct {
	time.Time
}

func (t *GraphTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(graphTimeLayout, raw)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return err
		}
	}
	t.Time = parsed.UTC()
	return nil
}

// FieldValue is one answered question of a lead form.
type FieldValue struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// LeadDetail is the lead object returned by the Graph API.
type LeadDetail struct {
	ID           string       `json:"id"`
	CreatedTime  GraphTime    `json:"created_time"`
	FormID       string       `json:"form_id"`
	AdID         string       `json:"ad_id"`
	AdName       string       `json:"ad_name"`
	AdsetID      string       `json:"adset_id"`
	AdsetName    string       `json:"adset_name"`
	CampaignID   string       `json:"campaign_id"`
	CampaignName string       `json:"campaign_name"`
	FieldData    []FieldValue `json:"field_data"`
}

// LeadForm is a lead-gen form attached to a page.
type LeadForm struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// CredentialStatus is the outcome of a token check.
type CredentialStatus string

const (
	CredentialValid   CredentialStatus = "valid"
	CredentialInvalid CredentialStatus = "invalid"
	CredentialExpired CredentialStatus = "expired"
)

type graphErrorEnvelope struct {
	Error *struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
	} `json:"error"`
}

type paging struct {
	Next string `json:"next"`
}

type leadFormsPage struct {
	Data   []LeadForm `json:"data"`
	Paging paging     `json:"paging"`
}

type leadsPage struct {
	Data   []LeadDetail `json:"data"`
	Paging paging       `json:"paging"`
}

type entityName struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type debugTokenResponse struct {
	Data struct {
		IsValid   bool  `json:"is_valid"`
		ExpiresAt int64 `json:"expires_at"`
		Error     *struct {
			Code    int    `json:"code"`
			Subcode int    `json:"subcode"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"data"`
}
