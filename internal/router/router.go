package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/eventsage/internal/classifier"
	"github.com/dshills/eventsage/internal/metrics"
	"github.com/dshills/eventsage/internal/ranker"
	"github.com/dshills/eventsage/internal/storage"
	"github.com/dshills/eventsage/internal/textmatch"
	"github.com/dshills/eventsage/pkg/logger"
	"github.com/dshills/eventsage/pkg/types"
)

// Strategy names the retrieval path that produced a result
type Strategy string

const (
	StrategyExactName Strategy = "exact_name"
	StrategyCount     Strategy = "count"
	StrategyReport    Strategy = "report"
	StrategyDateRange Strategy = "date_range"
	StrategyPerson    Strategy = "person"
	StrategyMode      Strategy = "mode"
	StrategyDomain    Strategy = "domain"
	StrategyHybrid    Strategy = "hybrid"
	StrategyVector    Strategy = "vector"
	StrategyNone      Strategy = "none"
)

// Defaults applied when Options leave a field zero
const (
	DefaultLimit     = 5
	DefaultCacheSize = 1000
	DefaultCacheTTL  = time.Hour
)

// Result is the outcome of routing one question
type Result struct {
	Strategy       Strategy
	Classification types.Classification
	Events         []types.RankedEvent
	Count          *int // set only by StrategyCount
	Filter         storage.EventFilter
	CacheHit       bool
}

// Found reports whether any strategy answered
func (r *Result) Found() bool {
	return r.Strategy != StrategyNone
}

// Options configures a Router
type Options struct {
	Limit     int           // cap for hybrid and vector results; 0 = DefaultLimit
	CacheSize int           // 0 = DefaultCacheSize, negative disables the cache
	CacheTTL  time.Duration // 0 = DefaultCacheTTL
	Logger    logger.Logger
}

// cacheEntry represents a cached route result with expiration time
type cacheEntry struct {
	result    *Result
	expiresAt time.Time
}

// Router walks the retrieval strategies in precedence order and returns the
// first non-empty result
type Router struct {
	storage storage.Storage
	ranker  *ranker.Ranker
	limit   int
	ttl     time.Duration
	log     logger.Logger

	cache   *lru.Cache[string, *cacheEntry]
	cacheMu sync.RWMutex
}

// New creates a Router
func New(store storage.Storage, rk *ranker.Ranker, opts Options) (*Router, error) {
	r := &Router{
		storage: store,
		ranker:  rk,
		limit:   opts.Limit,
		ttl:     opts.CacheTTL,
		log:     opts.Logger,
	}
	if r.limit <= 0 {
		r.limit = DefaultLimit
	}
	if r.ttl <= 0 {
		r.ttl = DefaultCacheTTL
	}
	if r.log == nil {
		r.log = logger.Nop()
	}
	r.log = r.log.Named("router")

	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 {
		cache, err := lru.New[string, *cacheEntry](size)
		if err != nil {
			return nil, fmt.Errorf("failed to create query cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Route classifies question and resolves it. Strategy failures are logged
// and fall through; the only error returned is context cancellation.
func (r *Router) Route(ctx context.Context, question string) (*Result, error) {
	start := time.Now()
	c := classifier.Classify(question)

	if cached := r.checkCache(c.Text); cached != nil {
		metrics.RecordQueryCache(true)
		return cached, nil
	}
	if r.cache != nil {
		metrics.RecordQueryCache(false)
	}

	res, err := r.resolve(ctx, c)
	if err != nil {
		return nil, err
	}

	metrics.RecordQuery(string(res.Strategy), float64(time.Since(start).Milliseconds()))
	r.log.Debug(ctx, "routed query",
		logger.String("strategy", string(res.Strategy)),
		logger.String("intent", string(c.Intent)),
		logger.Int("results", len(res.Events)),
		logger.Duration("duration", time.Since(start)))

	if res.Found() {
		r.storeInCache(c.Text, res)
	}
	return res, nil
}

// strategy is one step of the precedence chain. Steps with an intent run
// only when classifier.Applies says so; the rest always run. run returns
// nil when it found nothing.
type strategy struct {
	name   Strategy
	intent types.Intent
	run    func(ctx context.Context, c *types.Classification) (*Result, error)
}

func (s *strategy) applies(c *types.Classification) bool {
	return s.intent == "" || classifier.Applies(s.intent, c)
}

func (r *Router) chain() []strategy {
	return []strategy{
		{StrategyExactName, "", r.exactName},
		{StrategyCount, types.IntentCount, r.count},
		{StrategyReport, types.IntentReport, r.report},
		{StrategyDateRange, types.IntentDateRange, r.dateRange},
		{StrategyPerson, types.IntentPersonLookup, r.person},
		{StrategyMode, types.IntentMode, r.mode},
		{StrategyDomain, types.IntentDomain, r.domain},
		{StrategyHybrid, types.IntentHybridSearch, r.hybrid},
		{StrategyVector, "", r.vector},
	}
}

func (r *Router) resolve(ctx context.Context, c types.Classification) (*Result, error) {
	if c.Text == "" {
		return &Result{Strategy: StrategyNone, Classification: c}, nil
	}

	steps := r.chain()
	for i := range steps {
		s := &steps[i]
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.applies(&c) {
			continue
		}

		res, err := s.run(ctx, &c)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			r.log.Warn(ctx, "retrieval strategy failed, falling through",
				logger.String("strategy", string(s.name)), logger.Error(err))
			metrics.RecordStorageError(string(s.name))
			continue
		}
		if res == nil {
			continue
		}

		res.Strategy = s.name
		res.Classification = c
		return res, nil
	}

	return &Result{Strategy: StrategyNone, Classification: c}, nil
}

func (r *Router) exactName(ctx context.Context, c *types.Classification) (*Result, error) {
	ev, err := r.storage.FindByNormalizedName(ctx, textmatch.Normalize(c.Text))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Result{Events: types.Unranked([]*types.Event{ev})}, nil
}

func (r *Router) count(ctx context.Context, c *types.Classification) (*Result, error) {
	filter := yearFeeFilter(c)
	n, err := r.storage.CountEvents(ctx, &filter)
	if err != nil {
		return nil, err
	}
	// a zero count is still an answer
	return &Result{Count: &n, Filter: filter}, nil
}

func (r *Router) report(ctx context.Context, c *types.Classification) (*Result, error) {
	filter := yearFeeFilter(c)
	return r.list(ctx, filter)
}

func (r *Router) dateRange(ctx context.Context, c *types.Classification) (*Result, error) {
	return r.list(ctx, storage.EventFilter{Date: types.MonthRange(*c.Year, *c.Month)})
}

func (r *Router) list(ctx context.Context, filter storage.EventFilter) (*Result, error) {
	events, err := r.storage.ListEvents(ctx, &filter)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &Result{Events: types.Unranked(events), Filter: filter}, nil
}

func (r *Router) person(ctx context.Context, c *types.Classification) (*Result, error) {
	return wrap(r.storage.SearchPeople(ctx, c.Person, 0))
}

func (r *Router) mode(ctx context.Context, c *types.Classification) (*Result, error) {
	return wrap(r.storage.SearchMode(ctx, string(c.Mode), 0))
}

func (r *Router) domain(ctx context.Context, c *types.Classification) (*Result, error) {
	return wrap(r.storage.SearchDomain(ctx, c.Domain, 0))
}

func wrap(events []*types.Event, err error) (*Result, error) {
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &Result{Events: types.Unranked(events)}, nil
}

func (r *Router) hybrid(ctx context.Context, c *types.Classification) (*Result, error) {
	filter := storage.EventFilter{Date: types.DateFilterFor(*c), FeeCeiling: c.FeeCeiling}
	limit := r.limit
	if c.WantsAll {
		limit = 0
	}

	events, err := r.ranker.Rank(ctx, ranker.Request{Query: c.Text, Filter: &filter, Limit: limit})
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &Result{Events: events, Filter: filter}, nil
}

func (r *Router) vector(ctx context.Context, c *types.Classification) (*Result, error) {
	events, err := r.ranker.Nearest(ctx, classifier.CleanQuery(c.Text), r.limit)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &Result{Events: events}, nil
}

// yearFeeFilter is the filter used by count and report: year and fee only
func yearFeeFilter(c *types.Classification) storage.EventFilter {
	f := storage.EventFilter{FeeCeiling: c.FeeCeiling}
	if c.Year != nil {
		f.Date = types.YearRange(*c.Year)
	}
	return f
}

// checkCache looks up a cached route result
func (r *Router) checkCache(key string) *Result {
	if r.cache == nil {
		return nil
	}
	now := time.Now()

	r.cacheMu.RLock()
	entry, found := r.cache.Get(key)
	if !found {
		r.cacheMu.RUnlock()
		return nil
	}
	if now.After(entry.expiresAt) {
		r.cacheMu.RUnlock()

		r.cacheMu.Lock()
		r.cache.Remove(key)
		r.cacheMu.Unlock()
		return nil
	}
	res := copyResult(entry.result)
	r.cacheMu.RUnlock()

	res.CacheHit = true
	return res
}

// storeInCache saves a route result
func (r *Router) storeInCache(key string, res *Result) {
	if r.cache == nil {
		return
	}
	entry := &cacheEntry{
		result:    copyResult(res),
		expiresAt: time.Now().Add(r.ttl),
	}

	r.cacheMu.Lock()
	r.cache.Add(key, entry)
	r.cacheMu.Unlock()
}

// Invalidate drops every cached result. Called after any index write.
func (r *Router) Invalidate() {
	if r.cache == nil {
		return
	}
	r.cacheMu.Lock()
	r.cache.Purge()
	r.cacheMu.Unlock()
}

// copyResult deep-copies the parts of a Result a caller may mutate
func copyResult(src *Result) *Result {
	dst := *src
	if src.Events != nil {
		dst.Events = make([]types.RankedEvent, len(src.Events))
		copy(dst.Events, src.Events)
	}
	if src.Count != nil {
		n := *src.Count
		dst.Count = &n
	}
	return &dst
}
