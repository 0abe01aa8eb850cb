package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/inmet-alerts/internal/domain"
	"github.com/couchcryptid/inmet-alerts/internal/observability"
	"github.com/couchcryptid/inmet-alerts/internal/reconcile"
	"github.com/jonboulle/clockwork"
)

// ErrPollInFlight is returned by Poll when another poll for the same region
// has not finished yet.
var ErrPollInFlight = errors.New("poll already in flight")

// Fetcher retrieves the raw alert feed for a city.
type Fetcher interface {
	Fetch(ctx context.Context, cityCode string) ([]byte, error)
}

// EventSink receives the transitions produced by one successful poll.
type EventSink interface {
	Publish(ctx context.Context, events []domain.TransitionEvent) error
}

// PollerConfig holds the per-region settings of a Poller.
type PollerConfig struct {
	City          domain.City
	Interval      time.Duration
	MinInterval   time.Duration
	FetchTimeout  time.Duration
	DetailBaseURL string

	// Resolver fills in the city's name and coordinates when City lacks them.
	// Optional.
	Resolver domain.CityResolver
	// Clock defaults to the real clock.
	Clock clockwork.Clock
	// EngineOptions are passed to reconcile.New.
	EngineOptions []reconcile.Option
}

// PollStatus summarizes the most recent polls of one region.
type PollStatus struct {
	Region        string     `json:"region"`
	City          string     `json:"city,omitempty"`
	Interval      string     `json:"interval"`
	Polls         int        `json:"polls"`
	InFlight      bool       `json:"in_flight"`
	LastPollAt    *time.Time `json:"last_poll_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastOutcome   string     `json:"last_outcome,omitempty"`
	LastError     string     `json:"last_error,omitempty"`

	// Counts from the last successful poll.
	Total   int `json:"total"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

// Poller runs fetch, parse, resolve and reconcile for a single region on a
// fixed interval. It owns the region's reconciliation engine.
type Poller struct {
	fetcher  Fetcher
	resolver domain.CityResolver
	parser   domain.Parser
	engine   *reconcile.Engine
	sink     EventSink
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	region       string
	interval     time.Duration
	fetchTimeout time.Duration

	inFlight atomic.Bool
	ready    atomic.Bool

	mu           sync.RWMutex
	city         domain.City
	cityResolved bool
	status       PollStatus
}

// NewPoller creates a Poller. An interval below cfg.MinInterval is raised to
// the floor with a warning. A nil sink discards transitions.
func NewPoller(cfg PollerConfig, fetcher Fetcher, sink EventSink, logger *slog.Logger, metrics *observability.Metrics) *Poller {
	logger = logger.With("region", cfg.City.Code)

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if sink == nil {
		sink = discardSink{}
	}

	interval := cfg.Interval
	if interval < cfg.MinInterval {
		logger.Warn("poll interval below minimum, using minimum",
			"interval", cfg.Interval, "min_interval", cfg.MinInterval)
		interval = cfg.MinInterval
	}
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 || fetchTimeout > interval {
		fetchTimeout = interval
	}

	return &Poller{
		fetcher:      fetcher,
		resolver:     cfg.Resolver,
		parser:       domain.Parser{DetailBaseURL: cfg.DetailBaseURL},
		engine:       reconcile.New(cfg.City.Code, cfg.EngineOptions...),
		sink:         sink,
		clock:        clock,
		logger:       logger,
		metrics:      metrics,
		region:       cfg.City.Code,
		interval:     interval,
		fetchTimeout: fetchTimeout,
		city:         cfg.City,
		cityResolved: cfg.Resolver == nil || (cfg.City.Name != "" && cfg.City.HasCoordinates()),
		status:       PollStatus{Region: cfg.City.Code, City: cfg.City.Name, Interval: interval.String()},
	}
}

// Region returns the city code this poller watches.
func (p *Poller) Region() string { return p.region }

// Interval returns the effective poll interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// City returns the monitored city as currently known.
func (p *Poller) City() domain.City {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.city
}

// Active returns a copy of the region's active alert set.
func (p *Poller) Active() []domain.AlertRecord {
	return p.engine.Snapshot()
}

// Status returns the latest poll summary.
func (p *Poller) Status() PollStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.status
	s.InFlight = p.inFlight.Load()
	return s
}

// CheckReadiness returns nil once the region has completed a successful poll.
func (p *Poller) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return fmt.Errorf("region %s has not completed a successful poll", p.region)
	}
	return nil
}

// Run polls immediately and then on every interval tick until ctx is
// cancelled. Failed polls are logged and retried on the next tick; the
// interval never changes.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", p.interval, "fetch_timeout", p.fetchTimeout)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); errors.Is(err, ErrPollInFlight) {
			p.logger.Debug("tick skipped, poll in flight")
		}

		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

// Poll runs one cycle. Either the whole snapshot is applied and its
// transitions published, or the active set is left untouched and the error
// (a *domain.FetchError or *domain.MalformedSourceError) is returned.
// ErrPollInFlight is returned without doing anything if a poll is running.
func (p *Poller) Poll(ctx context.Context) (PollStatus, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.metrics.PollsTotal.WithLabelValues(p.region, observability.OutcomeSkipped).Inc()
		return p.Status(), ErrPollInFlight
	}
	defer p.inFlight.Store(false)

	start := p.clock.Now()
	events, err := p.cycle(ctx)
	p.metrics.PollDuration.WithLabelValues(p.region).Observe(p.clock.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return p.Status(), ctx.Err()
		}
		p.recordFailure(start, err)
		return p.Status(), err
	}

	p.recordSuccess(start, events)
	if len(events) > 0 {
		if err := p.sink.Publish(ctx, events); err != nil {
			p.logger.Warn("publish transitions failed", "error", err, "events", len(events))
		}
	}
	return p.Status(), nil
}

func (p *Poller) cycle(ctx context.Context) ([]domain.TransitionEvent, error) {
	city, err := p.ensureCity(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := p.fetch(ctx, city.Code)
	if err != nil {
		return nil, err
	}

	records, err := p.parser.Parse(raw, city)
	if err != nil {
		return nil, err
	}

	return p.engine.Reconcile(domain.Resolve(records), p.clock.Now()), nil
}

// fetch bounds the fetcher by fetchTimeout even if it ignores its context.
func (p *Poller) fetch(ctx context.Context, code string) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	type result struct {
		raw []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		raw, err := p.fetcher.Fetch(fetchCtx, code)
		done <- result{raw, err}
	}()

	var r result
	select {
	case r = <-done:
	case <-fetchCtx.Done():
		r.err = fetchCtx.Err()
	}
	if r.err == nil {
		return r.raw, nil
	}

	var fe *domain.FetchError
	switch {
	case errors.As(r.err, &fe):
		return nil, r.err
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(r.err, context.DeadlineExceeded):
		return nil, &domain.FetchError{Kind: domain.FetchTimeout, Err: r.err}
	default:
		return nil, &domain.FetchError{Kind: domain.FetchNetwork, Err: r.err}
	}
}

// ensureCity looks up missing city details until a lookup succeeds. Records
// carry the city's coordinates, so a poll cannot proceed without them; a
// failed lookup for a city with only a missing name is logged and tolerated.
func (p *Poller) ensureCity(ctx context.Context) (domain.City, error) {
	p.mu.RLock()
	city, resolved := p.city, p.cityResolved
	p.mu.RUnlock()
	if resolved {
		return city, nil
	}

	found, err := p.resolver.LookupCity(ctx, city.Code)
	if err != nil {
		if city.HasCoordinates() {
			p.logger.Warn("city lookup failed", "error", err)
			return city, nil
		}
		err = fmt.Errorf("lookup city %s: %w", city.Code, err)
		if !domain.IsTransient(err) {
			err = &domain.FetchError{Kind: domain.FetchNetwork, Err: err}
		}
		return city, err
	}
	city = mergeCity(city, found)

	p.mu.Lock()
	p.city = city
	p.cityResolved = true
	p.status.City = city.Name
	p.mu.Unlock()
	return city, nil
}

func (p *Poller) recordFailure(at time.Time, err error) {
	outcome := observability.OutcomeFetchError
	var me *domain.MalformedSourceError
	if errors.As(err, &me) {
		outcome = observability.OutcomeMalformed
	}
	p.metrics.PollsTotal.WithLabelValues(p.region, outcome).Inc()
	p.logger.Warn("poll failed, keeping active set", "outcome", outcome, "error", err)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Polls++
	p.status.LastPollAt = &at
	p.status.LastOutcome = outcome
	p.status.LastError = err.Error()
}

func (p *Poller) recordSuccess(at time.Time, events []domain.TransitionEvent) {
	var created, updated, removed int
	for _, e := range events {
		switch e.Kind {
		case domain.Entered:
			created++
		case domain.Updated:
			updated++
		case domain.Exited:
			removed++
		}
		p.metrics.Transitions.WithLabelValues(p.region, string(e.Kind)).Inc()
	}
	total := p.engine.Len()

	p.metrics.PollsTotal.WithLabelValues(p.region, observability.OutcomeSuccess).Inc()
	p.metrics.ActiveAlerts.WithLabelValues(p.region).Set(float64(total))
	p.metrics.LastSuccess.WithLabelValues(p.region).Set(float64(at.Unix()))
	p.ready.Store(true)

	p.logger.Info("poll completed",
		"total", total, "created", created, "updated", updated, "removed", removed)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Polls++
	p.status.LastPollAt = &at
	p.status.LastSuccessAt = &at
	p.status.LastOutcome = observability.OutcomeSuccess
	p.status.LastError = ""
	p.status.Total = total
	p.status.Created = created
	p.status.Updated = updated
	p.status.Removed = removed
}

// mergeCity fills blank fields of configured from looked-up details.
func mergeCity(configured, found domain.City) domain.City {
	if configured.Name == "" {
		configured.Name = found.Name
	}
	if !configured.HasCoordinates() {
		configured.Latitude = found.Latitude
		configured.Longitude = found.Longitude
	}
	return configured
}

type discardSink struct{}

func (discardSink) Publish(context.Context, []domain.TransitionEvent) error { return nil }
