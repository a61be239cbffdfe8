package repo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/claimgraph/internal/cache"
	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/worker"
)

var errAbsent = errors.New("node absent")

// NodeFetcher loads one node from the backend
type NodeFetcher interface {
	FetchNode(ctx context.Context, id string) (*model.ClaimNode, error)
}

// Resolver serves nodes from the repository and falls back to the
// backend. Failed lookups resolve to absent and are remembered for a while
// so a broken id is not fetched on every render.
type Resolver struct {
	repo    *Repository
	fetcher NodeFetcher
	misses  cache.Cache
	missTTL time.Duration
	workers int
	logger  *slog.Logger
	group   singleflight.Group
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

func WithMissCache(c cache.Cache, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.misses = c
		r.missTTL = ttl
	}
}

func WithWorkers(n int) ResolverOption {
	return func(r *Resolver) { r.workers = n }
}

func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a resolver over repo
func NewResolver(repo *Repository, fetcher NodeFetcher, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		repo:    repo,
		fetcher: fetcher,
		misses:  cache.NewMemoryCache(30*time.Second, time.Minute),
		missTTL: 30 * time.Second,
		workers: 4,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the node with id, fetching it when not cached
func (r *Resolver) Resolve(ctx context.Context, id string) (model.ClaimNode, bool) {
	if n, ok := r.repo.Get(id); ok {
		return n, true
	}
	if _, missed := r.misses.Get(missKey(id)); missed {
		return model.ClaimNode{}, false
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		node, err := r.fetcher.FetchNode(ctx, id)
		if err != nil {
			return nil, err
		}
		if node == nil {
			return nil, errAbsent
		}
		shallow := node.Shallow()
		r.repo.Put(shallow)
		return shallow, nil
	})
	if err != nil {
		r.logger.Debug("node lookup failed, treating as absent", "id", id, "error", err)
		_ = r.misses.Set(missKey(id), []byte{1}, r.missTTL)
		return model.ClaimNode{}, false
	}
	return v.(model.ClaimNode), true
}

// ResolveMany resolves ids concurrently. The result has one entry per
// resolvable id; absent ids are left out.
func (r *Resolver) ResolveMany(ctx context.Context, ids []string) map[string]model.ClaimNode {
	jobs := make([]worker.Job[model.ClaimNode], len(ids))
	for i, id := range ids {
		jobs[i] = func(ctx context.Context) (model.ClaimNode, error) {
			n, ok := r.Resolve(ctx, id)
			if !ok {
				return n, errAbsent
			}
			return n, nil
		}
	}

	out := make(map[string]model.ClaimNode, len(ids))
	for _, res := range worker.Map(ctx, r.workers, jobs) {
		if res.Err == nil {
			out[res.Value.ID] = res.Value
		}
	}
	return out
}

// Forget drops any remembered miss for id
func (r *Resolver) Forget(id string) {
	_ = r.misses.Delete(missKey(id))
}

func missKey(id string) string {
	return "miss:" + id
}
