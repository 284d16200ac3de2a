// Package metaleads provides the Meta Graph API client for lead ads.
package metaleads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxPages              = 50
	pageLimit             = "100"

	leadFields = "id,created_time,field_data,form_id,ad_id,ad_name,adset_id,adset_name,campaign_id,campaign_name"

	// Graph error codes. Code 100 is a generic invalid-parameter error; only
	// subcode 33 means the object does not exist.
	codeInvalidParam  = 100
	subcodeNoObject   = 33
	codeUnknown       = 1
	codeService       = 2
	codeTooManyCalls  = 4
	codeUserThrottle  = 17
	codePageThrottle  = 32
	codeAppThrottle   = 613
	codeTokenInvalid  = 190
	subcodeExpired    = 463
)

// Client calls the Graph API. It never retries; callers decide.
type Client struct {
	baseURL     string
	accessToken string
	timeout     time.Duration
	httpClient  *http.Client
	log         *logger.Logger
}

// New creates a Graph API client.
func New(cfg config.MetaConfig, log *logger.Logger) *Client {
	timeout := cfg.GetMetaRequestTimeout()
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	base := strings.TrimRight(cfg.GetMetaGraphBaseURL(), "/")
	if version := strings.Trim(cfg.GetMetaGraphVersion(), "/"); version != "" {
		base = base + "/" + version
	}

	return &Client{
		baseURL:     base,
		accessToken: cfg.GetMetaAccessToken(),
		timeout:     timeout,
		httpClient:  &http.Client{Timeout: timeout},
		log:         log,
	}
}

// FetchLeadDetail loads the full lead including its form answers.
func (c *Client) FetchLeadDetail(ctx context.Context, leadID string) (LeadDetail, error) {
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return LeadDetail{}, ErrNotFound
	}

	params := url.Values{}
	params.Set("fields", leadFields)

	var detail LeadDetail
	if err := c.get(ctx, "lead detail", c.endpoint(leadID, params), &detail); err != nil {
		return LeadDetail{}, err
	}
	if detail.ID == "" {
		detail.ID = leadID
	}
	return detail, nil
}

// FetchEntityName returns the display name of an ad, ad set or campaign.
// Any failure yields ("", false); enrichment must never block ingestion.
func (c *Client) FetchEntityName(ctx context.Context, entityID string) (string, bool) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return "", false
	}

	params := url.Values{}
	params.Set("fields", "name")

	var entity entityName
	if err := c.get(ctx, "entity name", c.endpoint(entityID, params), &entity); err != nil {
		c.log.Debug("meta: entity name lookup failed", "entityId", entityID, "error", err)
		return "", false
	}

	name := strings.TrimSpace(entity.Name)
	return name, name != ""
}

// ValidateCredential checks the configured access token with debug_token.
func (c *Client) ValidateCredential(ctx context.Context) (CredentialStatus, error) {
	if c.accessToken == "" {
		return CredentialInvalid, nil
	}

	params := url.Values{}
	params.Set("input_token", c.accessToken)

	var resp debugTokenResponse
	err := c.get(ctx, "debug token", c.endpoint("debug_token", params), &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == codeTokenInvalid {
			if apiErr.Subcode == subcodeExpired {
				return CredentialExpired, nil
			}
			return CredentialInvalid, nil
		}
		return "", err
	}

	data := resp.Data
	if data.Error != nil && data.Error.Subcode == subcodeExpired {
		return CredentialExpired, nil
	}
	if data.ExpiresAt > 0 && time.Unix(data.ExpiresAt, 0).Before(time.Now()) {
		return CredentialExpired, nil
	}
	if !data.IsValid {
		return CredentialInvalid, nil
	}
	return CredentialValid, nil
}

// ListLeadForms returns every lead-gen form of a page.
func (c *Client) ListLeadForms(ctx context.Context, pageID string) ([]LeadForm, error) {
	params := url.Values{}
	params.Set("fields", "id,name,status")
	params.Set("limit", pageLimit)

	next := c.endpoint(strings.TrimSpace(pageID)+"/leadgen_forms", params)
	forms := make([]LeadForm, 0)
	for page := 0; next != "" && page < maxPages; page++ {
		var resp leadFormsPage
		if err := c.get(ctx, "list lead forms", next, &resp); err != nil {
			return nil, err
		}
		forms = append(forms, resp.Data...)
		next = resp.Paging.Next
	}
	return forms, nil
}

// ListLeadsSince returns the leads of a form created after since.
func (c *Client) ListLeadsSince(ctx context.Context, formID string, since time.Time) ([]LeadDetail, error) {
	filter := fmt.Sprintf(`[{"field":"time_created","operator":"GREATER_THAN","value":%d}]`, since.Unix())

	params := url.Values{}
	params.Set("fields", leadFields)
	params.Set("filtering", filter)
	params.Set("limit", pageLimit)

	next := c.endpoint(strings.TrimSpace(formID)+"/leads", params)
	leads := make([]LeadDetail, 0)
	for page := 0; next != "" && page < maxPages; page++ {
		var resp leadsPage
		if err := c.get(ctx, "list leads", next, &resp); err != nil {
			return nil, err
		}
		leads = append(leads, resp.Data...)
		next = resp.Paging.Next
	}
	return leads, nil
}

func (c *Client) endpoint(path string, params url.Values) string {
	return fmt.Sprintf("%s/%s?%s", c.baseURL, strings.TrimLeft(path, "/"), params.Encode())
}

func (c *Client) get(ctx context.Context, op, rawURL string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqURL, err := c.withToken(rawURL)
	if err != nil {
		return fmt.Errorf("meta: %s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("meta: %s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &TransientError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return classify(op, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("meta: %s: decode response: %w", op, err)
	}
	return nil
}

// withToken adds the access token unless a paging cursor already carries one.
func (c *Client) withToken(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if q.Get("access_token") == "" && c.accessToken != "" {
		q.Set("access_token", c.accessToken)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func classify(op string, status int, body []byte) error {
	var envelope graphErrorEnvelope
	_ = json.Unmarshal(body, &envelope)

	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}
	if envelope.Error != nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Subcode = envelope.Error.ErrorSubcode
		apiErr.Message = envelope.Error.Message
	}

	switch {
	case status == http.StatusNotFound || (apiErr.Code == codeInvalidParam && apiErr.Subcode == subcodeNoObject):
		return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return &TransientError{Op: op, StatusCode: status, Err: apiErr}
	}

	switch apiErr.Code {
	case codeUnknown, codeService, codeTooManyCalls, codeUserThrottle, codePageThrottle, codeAppThrottle:
		return &TransientError{Op: op, StatusCode: status, Err: apiErr}
	}
	return apiErr
}
