// Package api talks to the research backend's REST endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ppiankov/claimgraph/internal/cache"
	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/telemetry"
	"github.com/ppiankov/claimgraph/internal/worker"
)

// ErrNotFound matches APIErrors with status 404
var ErrNotFound = errors.New("not found")

// Client is the repository API the session depends on
type Client interface {
	FetchTree(ctx context.Context, maxDepth int) (model.Forest, error)
	FetchNode(ctx context.Context, id string) (*model.ClaimNode, error)
	SearchNodes(ctx context.Context, query string, limit int) ([]SearchHit, error)
}

// SearchHit is one search result
type SearchHit struct {
	Node  model.ClaimNode `json:"node"`
	Score float64         `json:"score"`
}

// APIError is a non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

func (e *APIError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// retrySleep is swapped out in tests
var retrySleep = func(d time.Duration) { time.Sleep(d) }

const retryBaseDelay = 250 * time.Millisecond

// HTTPClient implements Client over HTTP
type HTTPClient struct {
	baseURL     string
	workspaceID string
	httpClient  *http.Client
	userAgent   string
	maxBytes    int64
	maxRetries  int
	limiter     *worker.Limiter
	cache       cache.Cache
	cacheTTL    time.Duration
	logger      *slog.Logger
	metrics     *telemetry.Metrics
	proxy       func(*http.Request) (*url.URL, error)
}

// Option configures an HTTPClient
type Option func(*HTTPClient)

// WithCache keeps successful tree responses as a fallback for failed fetches
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(h *HTTPClient) {
		if c != nil {
			h.cache = c
			h.cacheTTL = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *HTTPClient) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(h *HTTPClient) { h.metrics = m }
}

// WithProxy routes requests through proxy. It applies to the client's
// transport whatever the option order.
func WithProxy(proxy func(*http.Request) (*url.URL, error)) Option {
	return func(h *HTTPClient) { h.proxy = proxy }
}

// WithHTTPClient replaces the underlying *http.Client
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		if c != nil {
			h.httpClient = c
		}
	}
}

// NewHTTPClient creates a client for the backend at baseURL
func NewHTTPClient(baseURL, workspaceID string, cfg model.HTTPConfig, opts ...Option) *HTTPClient {
	if workspaceID == "" {
		workspaceID = "default"
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 8 << 20
	}

	h := &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		workspaceID: workspaceID,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
		maxRetries: cfg.MaxRetries,
		limiter:    worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		cache:      cache.Nop{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.proxy != nil {
		h.applyProxy()
	}
	return h
}

// applyProxy installs the proxy on a copy of the client and its transport
// so a caller supplied *http.Client is left untouched
func (h *HTTPClient) applyProxy() {
	base := h.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	tr, ok := base.(*http.Transport)
	if !ok {
		h.logger.Warn("proxy ignored: custom round tripper", "type", fmt.Sprintf("%T", base))
		return
	}
	tr = tr.Clone()
	tr.Proxy = h.proxy
	c := *h.httpClient
	c.Transport = tr
	h.httpClient = &c
}

type treeResponse struct {
	Roots model.Forest `json:"roots"`
}

type searchResponse struct {
	Results []SearchHit `json:"results"`
}

// FetchTree loads the forest down to maxDepth. When the backend fails and
// an earlier response is cached, the cached forest is returned instead.
func (h *HTTPClient) FetchTree(ctx context.Context, maxDepth int) (model.Forest, error) {
	q := url.Values{}
	if maxDepth > 0 {
		q.Set("max_depth", strconv.Itoa(maxDepth))
	}
	key := cache.Key(h.workspaceID, "tree", strconv.Itoa(maxDepth))

	body, err := h.get(ctx, "/api/tree", q)
	if err != nil {
		h.metrics.FetchFailed("tree")
		if cached, ok := h.cache.Get(key); ok {
			if forest, jerr := decodeForest(cached); jerr == nil {
				h.logger.Warn("tree fetch failed, serving cached forest", "error", err, "roots", len(forest))
				return forest, nil
			}
		}
		return nil, fmt.Errorf("fetch tree: %w", err)
	}

	forest, err := decodeForest(body)
	if err != nil {
		h.metrics.FetchFailed("tree")
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	if err := h.cache.Set(key, body, h.cacheTTL); err != nil {
		h.logger.Debug("caching tree failed", "error", err)
	}
	return forest, nil
}

// decodeForest accepts {"roots": [...]} or a bare array of roots
func decodeForest(body []byte) (model.Forest, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var forest model.Forest
		if err := json.Unmarshal(body, &forest); err != nil {
			return nil, err
		}
		return forest, nil
	}
	var resp treeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return resp.Roots, nil
}

// FetchNode loads one node with its children
func (h *HTTPClient) FetchNode(ctx context.Context, id string) (*model.ClaimNode, error) {
	body, err := h.get(ctx, "/api/nodes/"+url.PathEscape(id), nil)
	if err != nil {
		h.metrics.FetchFailed("node")
		return nil, fmt.Errorf("fetch node %s: %w", id, err)
	}

	var node model.ClaimNode
	if err := json.Unmarshal(body, &node); err != nil {
		h.metrics.FetchFailed("node")
		return nil, fmt.Errorf("decode node %s: %w", id, err)
	}
	return &node, nil
}

// SearchNodes runs a server-side search
func (h *HTTPClient) SearchNodes(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	q := url.Values{}
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	body, err := h.get(ctx, "/api/search", q)
	if err != nil {
		h.metrics.FetchFailed("search")
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		h.metrics.FetchFailed("search")
		return nil, fmt.Errorf("decode search results: %w", err)
	}
	return resp.Results, nil
}

// get performs a GET with retries on transport errors, 5xx and 429
func (h *HTTPClient) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("workspace_id", h.workspaceID)
	rawURL := h.baseURL + path + "?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if attempt > 0 {
			retrySleep(retryBaseDelay << (attempt - 1))
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		body, err := h.doGet(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
		h.logger.Debug("request failed", "url", rawURL, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (h *HTTPClient) doGet(ctx context.Context, rawURL string) ([]byte, error) {
	if err := h.limiter.Wait(ctx, rawURL); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
			Error  string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &errResp) == nil {
			if errResp.Detail != "" {
				msg = errResp.Detail
			} else if errResp.Error != "" {
				msg = errResp.Error
			}
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return body, nil
}
