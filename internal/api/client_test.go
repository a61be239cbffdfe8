package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimgraph/internal/cache"
	"github.com/ppiankov/claimgraph/internal/model"
)

func testConfig() model.HTTPConfig {
	cfg := model.DefaultConfig().HTTP
	cfg.RequestsPerSecond = 0
	cfg.Timeout = 5 * time.Second
	return cfg
}

func noSleep(t *testing.T) {
	orig := retrySleep
	retrySleep = func(time.Duration) {}
	t.Cleanup(func() { retrySleep = orig })
}

const treeJSON = `{"roots":[{"id":"a","claim":"A","confidence":0.9,"status":"active",
	"children":[{"id":"b","claim":"B","confidence":0.4,"status":"active"}]}]}`

func TestFetchTree(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tree", r.URL.Path)
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, treeJSON)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "w1", testConfig())
	forest, err := c.FetchTree(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, forest, 1)
	assert.Equal(t, "a", forest[0].ID)
	require.Len(t, forest[0].Children, 1)
	assert.Equal(t, 0.4, forest[0].Children[0].Confidence)
	assert.Equal(t, "max_depth=10&workspace_id=w1", gotQuery)
}

func TestFetchTree_BareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `[{"id":"r1"},{"id":"r2"}]`)
	}))
	defer srv.Close()

	forest, err := NewHTTPClient(srv.URL, "", testConfig()).FetchTree(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, forest, 2)
}

func TestFetchTree_TransientThenSuccess(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, treeJSON)
	}))
	defer srv.Close()

	forest, err := NewHTTPClient(srv.URL, "w1", testConfig()).FetchTree(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, forest, 1)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestFetchTree_FallsBackToCache(t *testing.T) {
	noSleep(t)
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = fmt.Fprint(w, treeJSON)
	}))
	defer srv.Close()

	store := cache.NewMemoryCache(time.Minute, time.Minute)
	c := NewHTTPClient(srv.URL, "w1", testConfig(), WithCache(store, time.Hour))

	_, err := c.FetchTree(context.Background(), 10)
	require.NoError(t, err)

	healthy.Store(false)
	forest, err := c.FetchTree(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.Equal(t, "a", forest[0].ID)

	// A different depth has no cached copy
	_, err = c.FetchTree(context.Background(), 3)
	require.Error(t, err)
}

func TestFetchNode_NotFoundIsNotRetried(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"detail":"Node not found"}`)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "w1", testConfig()).FetchNode(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "Node not found")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetchNode_EscapesID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/nodes/a%2Fb", r.URL.EscapedPath())
		_, _ = fmt.Fprint(w, `{"id":"a/b","claim":"slashy","confidence":0.5}`)
	}))
	defer srv.Close()

	node, err := NewHTTPClient(srv.URL, "w1", testConfig()).FetchNode(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "slashy", node.Claim)
}

func TestSearchNodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dark matter", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = fmt.Fprint(w, `{"results":[{"node":{"id":"d","claim":"Dark matter halos"},"score":0.82}]}`)
	}))
	defer srv.Close()

	hits, err := NewHTTPClient(srv.URL, "w1", testConfig()).SearchNodes(context.Background(), "dark matter", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d", hits[0].Node.ID)
	assert.InDelta(t, 0.82, hits[0].Score, 1e-9)
}

func TestGet_GivesUpAfterRetries(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxRetries = 2
	_, err := NewHTTPClient(srv.URL, "w1", cfg).SearchNodes(context.Background(), "x", 0)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestWithProxy(t *testing.T) {
	var gotHost string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		_, _ = fmt.Fprint(w, treeJSON)
	}))
	defer proxy.Close()

	proxyURL, err := url.Parse(proxy.URL)
	require.NoError(t, err)

	c := NewHTTPClient("http://research.invalid", "w1", testConfig(), WithProxy(http.ProxyURL(proxyURL)))
	forest, err := c.FetchTree(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, forest, 1)
	assert.Equal(t, "research.invalid", gotHost)
}

func TestWithProxy_AppliesAfterHTTPClient(t *testing.T) {
	var hits atomic.Int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = fmt.Fprint(w, treeJSON)
	}))
	defer proxy.Close()

	proxyURL, err := url.Parse(proxy.URL)
	require.NoError(t, err)

	supplied := &http.Client{Timeout: 5 * time.Second}
	c := NewHTTPClient("http://research.invalid", "w1", testConfig(),
		WithProxy(http.ProxyURL(proxyURL)),
		WithHTTPClient(supplied),
	)
	_, err = c.FetchTree(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.Nil(t, supplied.Transport, "caller's client was modified")
}
