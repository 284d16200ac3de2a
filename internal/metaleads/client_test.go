package metaleads

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leadcrm_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	baseURL string
	timeout time.Duration
}

func (c testConfig) GetMetaGraphBaseURL() string { return c.baseURL }
func (c testConfig) GetMetaGraphVersion() string { return "v19.0" }
func (c testConfig) GetMetaAccessToken() string  { return "page-token" }
func (c testConfig) GetMetaRequestTimeout() time.Duration {
	if c.timeout > 0 {
		return c.timeout
	}
	return 2 * time.Second
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(testConfig{baseURL: srv.URL}, logger.Discard())
}

func TestFetchLeadDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v19.0/L1", r.URL.Path)
		assert.Equal(t, "page-token", r.URL.Query().Get("access_token"))
		assert.Contains(t, r.URL.Query().Get("fields"), "field_data")
		fmt.Fprint(w, `{
			"id": "L1",
			"created_time": "2026-03-01T10:00:00+0000",
			"form_id": "F1",
			"campaign_id": "C1",
			"field_data": [
				{"name": "full_name", "values": ["Asha K"]},
				{"name": "phone_number", "values": ["+91 98765 43210"]}
			]
		}`)
	})

	detail, err := client.FetchLeadDetail(context.Background(), "L1")
	require.NoError(t, err)
	assert.Equal(t, "L1", detail.ID)
	assert.Equal(t, "F1", detail.FormID)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), detail.CreatedTime.Time)
	require.Len(t, detail.FieldData, 2)
	assert.Equal(t, "+91 98765 43210", detail.FieldData[1].Values[0])
}

func TestFetchLeadDetailErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		notFound  bool
		transient bool
	}{
		{"http 404", http.StatusNotFound, `{}`, true, false},
		{"graph code 100", http.StatusBadRequest, `{"error":{"message":"Unsupported get request","code":100,"error_subcode":33}}`, true, false},
		{"graph code 100 bad field", http.StatusBadRequest, `{"error":{"message":"Tried accessing nonexisting field (phone)","code":100}}`, false, false},
		{"graph code 100 other subcode", http.StatusBadRequest, `{"error":{"message":"Invalid parameter","code":100,"error_subcode":1487124}}`, false, false},
		{"throttled", http.StatusTooManyRequests, `{}`, false, true},
		{"server error", http.StatusBadGateway, `bad gateway`, false, true},
		{"app throttle code", http.StatusBadRequest, `{"error":{"message":"limit","code":4}}`, false, true},
		{"invalid token", http.StatusBadRequest, `{"error":{"message":"token","code":190}}`, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			})

			_, err := client.FetchLeadDetail(context.Background(), "L1")
			require.Error(t, err)
			assert.Equal(t, tc.notFound, errors.Is(err, ErrNotFound))
			assert.Equal(t, tc.transient, IsTransient(err))
			if !tc.notFound && !tc.transient {
				var apiErr *APIError
				assert.ErrorAs(t, err, &apiErr)
			}
		})
	}
}

func TestFetchLeadDetailTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := New(testConfig{baseURL: srv.URL, timeout: 50 * time.Millisecond}, logger.Discard())
	_, err := client.FetchLeadDetail(context.Background(), "L1")

	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestFetchEntityNameNeverFails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v19.0/C1":
			fmt.Fprint(w, `{"id":"C1","name":" Diwali Promo "}`)
		case "/v19.0/C2":
			fmt.Fprint(w, `{"id":"C2"}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	name, ok := client.FetchEntityName(context.Background(), "C1")
	assert.True(t, ok)
	assert.Equal(t, "Diwali Promo", name)

	_, ok = client.FetchEntityName(context.Background(), "C2")
	assert.False(t, ok)

	_, ok = client.FetchEntityName(context.Background(), "C3")
	assert.False(t, ok)

	_, ok = client.FetchEntityName(context.Background(), " ")
	assert.False(t, ok)
}

func TestValidateCredential(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   CredentialStatus
	}{
		{"valid", http.StatusOK, `{"data":{"is_valid":true,"expires_at":0}}`, CredentialValid},
		{"invalid", http.StatusOK, `{"data":{"is_valid":false}}`, CredentialInvalid},
		{"expired by timestamp", http.StatusOK, `{"data":{"is_valid":true,"expires_at":1000}}`, CredentialExpired},
		{"expired by subcode", http.StatusOK, `{"data":{"is_valid":false,"error":{"code":190,"subcode":463}}}`, CredentialExpired},
		{"rejected token", http.StatusBadRequest, `{"error":{"code":190,"message":"Invalid OAuth access token"}}`, CredentialInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v19.0/debug_token", r.URL.Path)
				assert.Equal(t, "page-token", r.URL.Query().Get("input_token"))
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			})

			got, err := client.ValidateCredential(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestListLeadsSinceFollowsPaging(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "page-token", r.URL.Query().Get("access_token"))
		if r.URL.Query().Get("after") == "cursor2" {
			fmt.Fprint(w, `{"data":[{"id":"L2","form_id":"F1"}],"paging":{}}`)
			return
		}
		assert.True(t, strings.Contains(r.URL.Query().Get("filtering"), "GREATER_THAN"))
		fmt.Fprintf(w, `{"data":[{"id":"L1","form_id":"F1"}],"paging":{"next":"%s/v19.0/F1/leads?after=cursor2"}}`, srvURL)
	}))
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	client := New(testConfig{baseURL: srv.URL}, logger.Discard())
	leads, err := client.ListLeadsSince(context.Background(), "F1", time.Now().Add(-time.Hour))

	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "L1", leads[0].ID)
	assert.Equal(t, "L2", leads[1].ID)
}

func TestListLeadForms(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v19.0/P1/leadgen_forms", r.URL.Path)
		fmt.Fprint(w, `{"data":[{"id":"F1","name":"Site visit","status":"ACTIVE"},{"id":"F2","status":"ARCHIVED"}]}`)
	})

	forms, err := client.ListLeadForms(context.Background(), "P1")
	require.NoError(t, err)
	require.Len(t, forms, 2)
	assert.Equal(t, "Site visit", forms[0].Name)
}
