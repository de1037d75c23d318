package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/visitorguard/pkg/config"
	"github.com/richxcame/visitorguard/pkg/redis"
)

func newTestClient(t *testing.T, baseURL string, cache *redis.Client, cacheTTLSeconds int) *Client {
	t.Helper()
	client, err := NewClient(config.ProviderConfig{
		APIKey:         "test-key",
		Region:         "us",
		TimeoutSeconds: 2,
		CacheTTL:       cacheTTLSeconds,
	}, cache)
	require.NoError(t, err)
	client.baseURL = baseURL
	return client
}

func sampleDetail() *EventDetail {
	jailbroken := &BoolSignal{}
	jailbroken.Data.Result = true
	suspect := &ScoreSignal{}
	suspect.Data.Result = 30

	detail := &EventDetail{}
	detail.Products.Jailbroken = jailbroken
	detail.Products.SuspectScore = suspect
	return detail
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(config.ProviderConfig{Region: "us"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}

func TestNewClientRejectsUnknownRegion(t *testing.T) {
	_, err := NewClient(config.ProviderConfig{APIKey: "k", Region: "mars"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider region")
}

func TestNewClientRegionEndpoints(t *testing.T) {
	cases := map[string]string{
		"us": "https://api.fpjs.io",
		"eu": "https://eu.api.fpjs.io",
		"ap": "https://ap.api.fpjs.io",
	}
	for region, want := range cases {
		client, err := NewClient(config.ProviderConfig{APIKey: "k", Region: region}, nil)
		require.NoError(t, err)
		assert.Equal(t, want, client.baseURL)
	}
}

func TestEventDetailFetchesAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/events/req-1", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("Auth-API-Key"))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(sampleDetail()))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil, 0)

	detail, err := client.EventDetail(context.Background(), "req-1")
	require.NoError(t, err)
	require.NotNil(t, detail.Products.Jailbroken)
	assert.True(t, detail.Products.Jailbroken.Data.Result)
	require.NotNil(t, detail.Products.SuspectScore)
	assert.Equal(t, 30, detail.Products.SuspectScore.Data.Result)
}

func TestEventDetailRejectsEmptyRequestID(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil, 0)

	_, err := client.EventDetail(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, int32(0), hits.Load())
}

func TestEventDetailSurfacesNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"RequestNotFound"}}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil, 0)

	detail, err := client.EventDetail(context.Background(), "ghost")
	require.Error(t, err)
	assert.Nil(t, detail)
	assert.Contains(t, err.Error(), "404")
}

func TestEventDetailServedFromCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	raw, err := json.Marshal(sampleDetail())
	require.NoError(t, err)

	db, mock := redismock.NewClientMock()
	mock.ExpectGet("fp:event:req-1").SetVal(string(raw))

	client := newTestClient(t, server.URL, redis.NewFromExisting(db), 60)

	detail, err := client.EventDetail(context.Background(), "req-1")
	require.NoError(t, err)
	require.NotNil(t, detail.Products.Jailbroken)
	assert.True(t, detail.Products.Jailbroken.Data.Result)

	assert.Equal(t, int32(0), hits.Load())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventDetailWritesThroughCache(t *testing.T) {
	detail := sampleDetail()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(detail))
	}))
	defer server.Close()

	raw, err := json.Marshal(detail)
	require.NoError(t, err)

	db, mock := redismock.NewClientMock()
	mock.ExpectGet("fp:event:req-1").RedisNil()
	mock.ExpectSet("fp:event:req-1", raw, 60*time.Second).SetVal("OK")

	client := newTestClient(t, server.URL, redis.NewFromExisting(db), 60)

	got, err := client.EventDetail(context.Background(), "req-1")
	require.NoError(t, err)
	require.NotNil(t, got.Products.Jailbroken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventDetailBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := client.EventDetail(ctx, "req-1")
		require.Error(t, err)
	}
	assert.Equal(t, int32(5), hits.Load())

	// Breaker is open now; the next call never reaches the upstream
	_, err := client.EventDetail(ctx, "req-1")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(5), hits.Load())
}
