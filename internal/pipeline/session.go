// Package pipeline runs a live session: it keeps the forest in sync with the
// backend from channel events and publishes a laid out, decorated view.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ppiankov/claimgraph/internal/api"
	"github.com/ppiankov/claimgraph/internal/cache"
	"github.com/ppiankov/claimgraph/internal/cycle"
	"github.com/ppiankov/claimgraph/internal/focus"
	"github.com/ppiankov/claimgraph/internal/layout"
	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/repo"
	"github.com/ppiankov/claimgraph/internal/stream"
	"github.com/ppiankov/claimgraph/internal/telemetry"
)

// ErrSessionUsed is returned when Run is called more than once
var ErrSessionUsed = errors.New("session already ran")

// Session owns the event channel, the run status store, the node
// repository and the current view. All state changes happen on the Run
// goroutine; readers get immutable snapshots.
type Session struct {
	cfg      *model.Config
	client   api.Client
	channel  *stream.Channel
	store    *cycle.Store
	repo     *repo.Repository
	resolver *repo.Resolver
	logger   *slog.Logger
	metrics  *telemetry.Metrics

	events     chan stream.Event
	states     chan stream.State
	commands   chan func()
	fetched    chan fetchResult
	refetchDue chan struct{}
	done       chan struct{}
	ran        atomic.Bool

	search  *focus.Debouncer[string]
	refetch *focus.Debouncer[struct{}]

	forest atomic.Pointer[model.Forest]
	view   atomic.Pointer[focus.View]

	mu             sync.Mutex
	listeners      []func(focus.View)
	stateListeners []func(stream.State)

	// Owned by the Run goroutine
	ctx        context.Context
	query      focus.Query
	opts       layout.Options
	graph      layout.Graph
	fetchSeq   uint64
	openedOnce bool
}

type fetchResult struct {
	seq    uint64
	forest model.Forest
	err    error
}

type settings struct {
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	missCache cache.Cache
}

// Option configures a Session
type Option func(*settings)

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithMissCache sets where failed node lookups are remembered
func WithMissCache(c cache.Cache) Option {
	return func(s *settings) { s.missCache = c }
}

// Endpoint returns what the transport dials for cfg: a NATS subject for
// the nats transport, a websocket URL otherwise
func Endpoint(cfg *model.Config) (string, error) {
	if cfg.Server.Transport == "nats" {
		return stream.NATSSubject(cfg.Server.WorkspaceID), nil
	}
	return stream.EndpointURL(cfg.Server.Origin, cfg.Server.EventsPath, cfg.Server.WorkspaceID)
}

// NewSession builds a session that streams events over transport and loads
// the tree through client
func NewSession(cfg *model.Config, transport stream.Transport, client api.Client, opts ...Option) (*Session, error) {
	st := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&st)
	}
	if st.missCache == nil {
		st.missCache = cache.NewMemoryCache(cfg.Cache.MissTTL, time.Minute)
	}

	strategy, err := layout.ParseStrategy(cfg.Layout.Strategy)
	if err != nil {
		return nil, err
	}
	endpoint, err := Endpoint(cfg)
	if err != nil {
		return nil, fmt.Errorf("event endpoint: %w", err)
	}

	s := &Session{
		cfg:        cfg,
		client:     client,
		store:      cycle.NewStore(cfg.Stream.EventLogSize, st.logger),
		repo:       repo.New(),
		logger:     st.logger,
		metrics:    st.metrics,
		events:     make(chan stream.Event, 256),
		states:     make(chan stream.State, 32),
		commands:   make(chan func(), 64),
		fetched:    make(chan fetchResult, 1),
		refetchDue: make(chan struct{}, 1),
		done:       make(chan struct{}),
		query:      focus.Query{FocusMode: cfg.Focus.FocusMode},
		opts:       layout.Options{Strategy: strategy, MinConfidence: cfg.Layout.MinConfidence},
	}
	s.resolver = repo.NewResolver(s.repo, client,
		repo.WithMissCache(st.missCache, cfg.Cache.MissTTL),
		repo.WithWorkers(cfg.HTTP.FetchWorkers),
		repo.WithLogger(st.logger),
	)

	s.channel = stream.NewChannel(transport, endpoint,
		stream.WithLogger(st.logger),
		stream.WithMetrics(st.metrics),
		stream.WithBackoff(cfg.Stream.MaxReconnectAttempts, cfg.Stream.BaseReconnectDelay),
		stream.WithPingInterval(cfg.Stream.PingInterval),
		stream.WithStateListener(s.stateChanged),
	)

	s.search = focus.NewDebouncer(cfg.Focus.SearchDebounce, func(text string) {
		s.post(func() {
			s.query.Search = text
			s.publish()
		})
	})
	s.refetch = focus.NewDebouncer(cfg.Focus.RefetchDebounce, func(struct{}) {
		select {
		case s.refetchDue <- struct{}{}:
		default:
		}
	})

	empty := focus.View{Query: s.query}
	s.view.Store(&empty)
	return s, nil
}

// Run loads the tree, connects the channel and processes events until ctx
// is done. A Session runs once.
func (s *Session) Run(ctx context.Context) error {
	if !s.ran.CompareAndSwap(false, true) {
		return ErrSessionUsed
	}

	detach := s.store.Attach(s.channel)
	unsubscribe := s.channel.Subscribe(s.enqueue)
	defer func() {
		close(s.done)
		s.search.Cancel()
		s.refetch.Cancel()
		s.channel.Disconnect()
		unsubscribe()
		detach()
	}()

	s.ctx = ctx
	s.relayout()
	s.startFetch()
	s.channel.Connect()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.handleEvent(ev)
		case st := <-s.states:
			s.handleState(st)
		case cmd := <-s.commands:
			cmd()
		case res := <-s.fetched:
			s.applyFetch(res)
		case <-s.refetchDue:
			s.startFetch()
		}
	}
}

// View returns the latest published view
func (s *Session) View() focus.View {
	return *s.view.Load()
}

// Forest returns the current forest
func (s *Session) Forest() model.Forest {
	if f := s.forest.Load(); f != nil {
		return *f
	}
	return nil
}

func (s *Session) Status() model.RunStatus {
	return s.store.Status()
}

// Events returns the event log, newest first
func (s *Session) Events() []stream.Event {
	return s.store.Snapshot().Log.Entries()
}

func (s *Session) ChannelState() stream.State {
	return s.channel.State()
}

// Store exposes the run status store for change notifications
func (s *Session) Store() *cycle.Store {
	return s.store
}

// Node returns a node from the repository, fetching it if needed. A node
// that cannot be loaded is reported absent.
func (s *Session) Node(ctx context.Context, id string) (model.ClaimNode, bool) {
	return s.resolver.Resolve(ctx, id)
}

// OnViewChange registers fn to receive every published view. fn runs on the
// session goroutine and must not block.
func (s *Session) OnViewChange(fn func(focus.View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners[:len(s.listeners):len(s.listeners)], fn)
}

// OnChannelState registers fn to receive channel state changes on the
// session goroutine
func (s *Session) OnChannelState(fn func(stream.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateListeners = append(s.stateListeners[:len(s.stateListeners):len(s.stateListeners)], fn)
}

// Select focuses id; an empty id clears the selection
func (s *Session) Select(id string) {
	s.post(func() {
		s.query.SelectedID = id
		s.publish()
	})
}

// SetSearch updates the search text after the search debounce
func (s *Session) SetSearch(text string) {
	s.search.Submit(text)
}

func (s *Session) SetFocusMode(on bool) {
	s.post(func() {
		s.query.FocusMode = on
		s.publish()
	})
}

// SetMinConfidence changes the confidence threshold. Positions stay put.
func (s *Session) SetMinConfidence(v float64) {
	s.post(func() {
		s.opts.MinConfidence = v
		s.relayout()
	})
}

func (s *Session) SetStrategy(strategy layout.Strategy) {
	s.post(func() {
		s.opts.Strategy = strategy
		s.relayout()
	})
}

// Refresh reloads the tree now
func (s *Session) Refresh() {
	s.post(func() {
		s.refetch.Cancel()
		s.startFetch()
	})
}

func (s *Session) post(cmd func()) {
	select {
	case s.commands <- cmd:
	case <-s.done:
	}
}

func (s *Session) enqueue(ev stream.Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Session) stateChanged(st stream.State) {
	select {
	case s.states <- st:
	case <-s.done:
	}
}

func (s *Session) handleEvent(ev stream.Event) {
	switch p := ev.Payload.(type) {
	case stream.NodeUpdated:
		conf := p.NewConfidence
		s.repo.Merge(p.NodeID, repo.Patch{Confidence: &conf})
		forest := s.Forest()
		if _, ok := forest.Find(p.NodeID); ok {
			s.setForest(forest.Update(p.NodeID, func(n *model.ClaimNode) { n.Confidence = conf }))
			s.relayout()
		}
	case stream.NodeCreated:
		node := model.ClaimNode{
			ID:         p.NodeID,
			Claim:      p.Claim,
			Confidence: p.Confidence,
			NodeType:   model.NodeType(p.NodeType),
			Status:     model.NodeStatusActive,
		}
		s.repo.Put(node)
		s.resolver.Forget(p.NodeID)
		forest := s.Forest()
		_, exists := forest.Find(p.NodeID)
		_, parentKnown := forest.Find(p.ParentID)
		if !exists && (p.ParentID == "" || parentKnown) {
			s.setForest(forest.AppendChild(p.ParentID, &node))
			s.relayout()
		}
	case stream.Unknown:
		s.logger.Debug("unrecognized event", "type", p.Type)
	}

	if cycle.ChangesTree(ev) {
		s.refetch.Submit(struct{}{})
	}
}

func (s *Session) handleState(st stream.State) {
	switch st {
	case stream.StateOpen:
		if s.openedOnce {
			s.logger.Info("event channel reconnected, refreshing tree")
			s.refetch.Cancel()
			s.startFetch()
		}
		s.openedOnce = true
	case stream.StateGivenUp:
		s.logger.Warn("event channel gave up reconnecting; showing last known tree")
	}

	s.mu.Lock()
	listeners := s.stateListeners
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(st)
	}
}

func (s *Session) startFetch() {
	s.fetchSeq++
	seq := s.fetchSeq
	ctx := s.ctx
	go func() {
		forest, err := s.client.FetchTree(ctx, s.cfg.Layout.MaxDepth)
		select {
		case s.fetched <- fetchResult{seq: seq, forest: forest, err: err}:
		case <-s.done:
		}
	}()
}

func (s *Session) applyFetch(res fetchResult) {
	if res.seq != s.fetchSeq {
		s.logger.Debug("dropping stale tree fetch", "seq", res.seq, "latest", s.fetchSeq)
		return
	}
	if res.err != nil {
		s.logger.Warn("tree fetch failed, keeping current tree", "error", res.err, "nodes", s.Forest().Count())
		return
	}

	s.repo.IndexForest(res.forest)
	s.setForest(res.forest)
	s.metrics.Refetched()
	s.logger.Debug("tree refreshed", "roots", len(res.forest), "nodes", res.forest.Count())
	s.relayout()
}

func (s *Session) setForest(f model.Forest) {
	s.forest.Store(&f)
}

func (s *Session) relayout() {
	start := time.Now()
	s.graph = layout.Compute(s.Forest(), s.opts)
	s.metrics.ObserveLayout(string(s.opts.Strategy), time.Since(start))
	s.publish()
}

func (s *Session) publish() {
	v := focus.Apply(s.graph, s.query)
	s.view.Store(&v)

	s.mu.Lock()
	listeners := s.listeners
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(v)
	}
}
