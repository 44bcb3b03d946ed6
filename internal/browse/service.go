package browse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/scadad/internal/channel"
)

// Params describe one browse request from a caller.
type Params struct {
	ConnectionID string
	Target       string
	Filter       Filter

	// Depth is the caller-supplied browse depth. Nil means auto-select.
	Depth *int

	// Offset and Limit page the full result set. Limit 0 means the
	// configured page limit.
	Offset int
	Limit  int
}

// Service orchestrates the browse engine: correlators per connection, depth
// planning, exploration, the result cache and pagination.
type Service struct {
	channel channel.Channel
	cache   *Cache
	limits  *Limits
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer

	mu          sync.Mutex
	correlators map[string]*Correlator
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics sets custom metrics for the service.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a browse service over a peripheral channel.
func NewService(ch channel.Channel, limits *Limits, logger *zap.Logger, opts ...Option) (*Service, error) {
	if ch == nil {
		return nil, fmt.Errorf("channel is required")
	}
	if limits == nil {
		limits = DefaultLimits()
	}
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid limits: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		channel:     ch,
		cache:       NewCache(limits.CacheTTL(), limits.CacheMaxBytes, logger.Named("cache")),
		limits:      limits,
		logger:      logger,
		tracer:      otel.Tracer(instrumentationName),
		correlators: make(map[string]*Correlator),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(logger)
	}
	return s, nil
}

// Limits returns the service's effective limits.
func (s *Service) Limits() *Limits {
	return s.limits
}

func (s *Service) correlator(connectionID string) *Correlator {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.correlators[connectionID]; ok {
		return c
	}
	c := NewCorrelator(s.channel, connectionID, s.limits.ReplyTimeout(), s.logger.Named("correlator"))
	s.correlators[connectionID] = c
	return c
}

// Browse resolves a browse request: cache lookup, depth planning, strategy
// execution, cache write, pagination. The returned page always makes
// truncation explicit through IsPartial, Expandable and NextOffset.
func (s *Service) Browse(ctx context.Context, p Params) (*Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "browse.Browse", trace.WithAttributes(
		attribute.String("connection_id", p.ConnectionID),
		attribute.String("target", p.Target),
	))
	defer span.End()

	if p.ConnectionID == "" {
		return nil, ErrEmptyConnection
	}
	if p.Target == "" {
		return nil, ErrEmptyTarget
	}
	filter, err := ParseFilter(string(p.Filter))
	if err != nil {
		return nil, err
	}

	key := NewKey(p.ConnectionID, p.Target, filter, p.Depth)
	if full, ok := s.cache.Get(key); ok {
		s.metrics.RecordCache(ctx, true)
		s.metrics.RecordBrowse(ctx, "cache", time.Since(start), nil)
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return Page(full, p.Offset, p.Limit, s.limits.PageLimit), nil
	}
	s.metrics.RecordCache(ctx, false)

	corr := s.correlator(p.ConnectionID)
	apiCalls := 0
	send := func(ctx context.Context, target string, f Filter, depth int) ([]Node, error) {
		apiCalls++
		s.metrics.AddDriverCalls(ctx, 1)
		return corr.Send(ctx, target, f, depth)
	}

	plan, err := NewPlanner(s.limits, send, s.logger.Named("planner")).Plan(ctx, p.Target, filter, p.Depth)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordBrowse(ctx, "rejected", time.Since(start), err)
		return nil, err
	}
	span.SetAttributes(attribute.String("strategy", string(plan.Strategy)))

	var full *Result
	switch plan.Strategy {
	case StrategyAutoBranch:
		full, err = NewExplorer(s.limits, send, s.logger.Named("explorer")).Explore(ctx, p.Target, filter)
	case StrategyAutoRoot:
		full, err = s.autoRoot(ctx, send, p.Target, filter)
	default:
		full, err = s.single(ctx, send, p.Target, filter, plan.Depth)
	}
	s.metrics.RecordBrowse(ctx, string(plan.Strategy), time.Since(start), err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Planner probes go through the same wrapper, so this counts every
	// driver round trip the request cost, not just the strategy's own.
	full.Stats.APICalls = apiCalls

	s.cache.Put(key, full)
	s.logger.Debug("browse completed",
		zap.String("connection_id", p.ConnectionID),
		zap.String("target", p.Target),
		zap.String("strategy", string(plan.Strategy)),
		zap.Int("nodes", len(full.Nodes)),
		zap.Int("api_calls", full.Stats.APICalls))

	return Page(full, p.Offset, p.Limit, s.limits.PageLimit), nil
}

// single issues one driver call at the planned depth.
func (s *Service) single(ctx context.Context, send sendFunc, target string, filter Filter, depth int) (*Result, error) {
	nodes, err := send(ctx, target, filter, depth)
	if err != nil {
		return nil, err
	}
	return composeFlat(nodes, depth), nil
}

// autoRoot browses a well-known root at depth 2; when that overflows the
// page budget it retries at depth 1 with an explanatory note. Only two
// candidate depths are ever tried, bounding root browsing at two round
// trips.
func (s *Service) autoRoot(ctx context.Context, send sendFunc, target string, filter Filter) (*Result, error) {
	nodes, err := send(ctx, target, filter, 2)
	if err != nil {
		return nil, err
	}
	if len(nodes) <= s.limits.PageLimit {
		return composeFlat(nodes, 2), nil
	}

	shallow, err := send(ctx, target, filter, 1)
	if err != nil {
		return nil, err
	}
	res := composeFlat(shallow, 1)
	res.Note = fmt.Sprintf("depth reduced to 1: depth 2 returned %d nodes, over the %d page budget",
		len(nodes), s.limits.PageLimit)
	return res, nil
}

// composeFlat builds a full result from one flat driver reply. Containers in
// the reply may extend past the requested depth, so they are reported as
// expandable rather than explored.
func composeFlat(nodes []Node, depth int) *Result {
	res := &Result{
		Nodes:          nodes,
		TotalAvailable: len(nodes),
		ActualDepth:    depth,
		Stats:          Stats{MaxDepth: depth},
	}
	for _, n := range nodes {
		switch n.HasChildren {
		case ChildrenNo:
			res.Stats.LeafCount++
		default:
			res.Expandable = append(res.Expandable, Branch{ID: n.ID, DisplayName: n.DisplayName, Level: depth})
		}
	}
	// Anything still expandable means the subtree was not fully browsed.
	res.IsPartial = len(res.Expandable) > 0
	return res
}

// Invalidate drops all cached results for a connection. The provisioning
// layer calls this when the connection's registered sources change.
func (s *Service) Invalidate(connectionID string) int {
	n := s.cache.Invalidate(connectionID)
	if n > 0 {
		s.logger.Info("invalidated cached browse results",
			zap.String("connection_id", connectionID),
			zap.Int("entries", n))
	}
	return n
}
