package webhook

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"leadcrm_backend/internal/ingest"
)

const leadgenField = "leadgen"

// flexID accepts ids sent either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// unixTime accepts a unix timestamp as number, numeric string or Graph
// timestamp string. Anything else decodes to zero rather than failing the event.
type unixTime int64

var timeLayouts = []string{"2006-01-02T15:04:05-0700", time.RFC3339}

func (u *unixTime) UnmarshalJSON(data []byte) error {
	*u = 0
	var id flexID
	if err := id.UnmarshalJSON(data); err != nil || id == "" {
		return nil
	}
	if v, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		*u = unixTime(v)
		return nil
	}
	if f, err := strconv.ParseFloat(string(id), 64); err == nil {
		*u = unixTime(int64(f))
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, string(id)); err == nil {
			*u = unixTime(t.Unix())
			return nil
		}
	}
	return nil
}

// DeliveryPayload is the body Meta posts to the lead webhook. Entries and
// changes stay raw so one odd item cannot hide its siblings.
type DeliveryPayload struct {
	Object string            `json:"object"`
	Entry  []json.RawMessage `json:"entry"`
}

type Entry struct {
	ID      flexID            `json:"id"`
	Time    unixTime          `json:"time"`
	Changes []json.RawMessage `json:"changes"`
}

type Change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

type LeadgenValue struct {
	LeadgenID   flexID   `json:"leadgen_id"`
	FormID      flexID   `json:"form_id"`
	PageID      flexID   `json:"page_id"`
	AdID        flexID   `json:"ad_id"`
	AdgroupID   flexID   `json:"adgroup_id"`
	CampaignID  flexID   `json:"campaign_id"`
	CreatedTime unixTime `json:"created_time"`
}

// leadNotifications flattens every leadgen change of a delivery. malformed
// counts entries and leadgen changes that could not be decoded; changes of
// other fields are ignored whatever their shape.
func leadNotifications(payload DeliveryPayload) (out []ingest.LeadNotification, malformed int) {
	out = make([]ingest.LeadNotification, 0)
	for _, rawEntry := range payload.Entry {
		var entry Entry
		if err := json.Unmarshal(rawEntry, &entry); err != nil {
			malformed++
			continue
		}
		for _, rawChange := range entry.Changes {
			var change Change
			if err := json.Unmarshal(rawChange, &change); err != nil {
				malformed++
				continue
			}
			if change.Field != leadgenField {
				continue
			}
			var v LeadgenValue
			if err := json.Unmarshal(change.Value, &v); err != nil {
				malformed++
				continue
			}
			n := ingest.LeadNotification{
				LeadgenID:  string(v.LeadgenID),
				FormID:     string(v.FormID),
				PageID:     string(v.PageID),
				AdID:       string(v.AdID),
				AdgroupID:  string(v.AdgroupID),
				CampaignID: string(v.CampaignID),
			}
			if n.PageID == "" {
				n.PageID = string(entry.ID)
			}
			if v.CreatedTime > 0 {
				n.CreatedTime = time.Unix(int64(v.CreatedTime), 0).UTC()
			}
			out = append(out, n)
		}
	}
	return out, malformed
}
