package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimpoint/internal"
	"claimpoint/internal/config"
	"claimpoint/internal/mapping"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func newTestClient(fn roundTripFunc) *Client {
	cfg := config.Config{ProxyBaseURL: "https://records.example.test/", ProxyTimeoutMs: 1000, ProxyRateLimitRPS: 1000}
	client := NewClient(cfg, nil)
	client.httpClient = &http.Client{Transport: fn}
	return client
}

func TestFetchDecodesRecords(t *testing.T) {
	calls := 0
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		calls++
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/records", r.URL.Path)
		assert.Equal(t, "claim_templates", r.URL.Query().Get("table"))
		return jsonResponse(http.StatusOK,
			`[{"id":"t1","template_name":"Monthly","mappings":{"Claims":{"Zeta":"Paid","Alpha":"Billed"}},"size":3}]`), nil
	})

	records, err := client.Fetch(context.Background(), internal.TableClaimTemplates)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "Monthly", records[0]["template_name"])
	assert.Equal(t, json.Number("3"), records[0]["size"])

	parsed, err := mapping.ParseSheetMappings(records[0]["mappings"])
	require.NoError(t, err)
	assert.Equal(t, []mapping.Pair{{Source: "Zeta", Target: "Paid"}, {Source: "Alpha", Target: "Billed"}},
		parsed["Claims"].Pairs())
}

func TestInsertPostsArray(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `[{"name":"Acme"}]`, string(body))
		return jsonResponse(http.StatusCreated, `[{"id":7,"name":"Acme"}]`), nil
	})

	stored, err := client.Insert(context.Background(), internal.TablePolicies, []internal.Record{{"name": "Acme"}})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, json.Number("7"), stored[0]["id"])
}

func TestErrorStatusIsNotRetried(t *testing.T) {
	calls := 0
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusInternalServerError, `{"error":"Internal Server Error"}`), nil
	})

	_, err := client.Fetch(context.Background(), internal.TablePolicies)
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "Internal Server Error", statusErr.Message)
	assert.NotErrorIs(t, err, internal.ErrValidation)
}

func TestBadRequestMatchesValidation(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{"error":"Invalid table parameter"}`), nil
	})
	_, err := client.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, internal.ErrValidation)
}

func TestMalformedBody(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `"not records"`), nil
	})
	_, err := client.Fetch(context.Background(), internal.TablePolicies)
	assert.Error(t, err)
}
