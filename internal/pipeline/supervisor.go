package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/couchcryptid/inmet-alerts/internal/domain"
	"github.com/couchcryptid/inmet-alerts/internal/observability"
)

// Supervisor runs one Poller per region and aggregates their readiness.
type Supervisor struct {
	pollers  []*Poller
	byRegion map[string]*Poller
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewSupervisor creates a Supervisor. Pollers are kept in region order.
func NewSupervisor(pollers []*Poller, logger *slog.Logger, metrics *observability.Metrics) *Supervisor {
	sorted := slices.Clone(pollers)
	slices.SortFunc(sorted, func(a, b *Poller) int { return strings.Compare(a.Region(), b.Region()) })

	byRegion := make(map[string]*Poller, len(sorted))
	for _, p := range sorted {
		byRegion[p.Region()] = p
	}
	return &Supervisor{pollers: sorted, byRegion: byRegion, logger: logger, metrics: metrics}
}

// Pollers returns the pollers sorted by region code.
func (s *Supervisor) Pollers() []*Poller {
	return slices.Clone(s.pollers)
}

// Poller returns the poller for region.
func (s *Supervisor) Poller(region string) (*Poller, bool) {
	p, ok := s.byRegion[region]
	return p, ok
}

// Run starts every poller and blocks until all of them have returned after
// ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("supervisor started", "regions", len(s.pollers))

	var wg sync.WaitGroup
	errs := make([]error, len(s.pollers))
	for i, p := range s.pollers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.metrics.PollersRunning.Inc()
			defer s.metrics.PollersRunning.Dec()
			if err := p.Run(ctx); err != nil {
				errs[i] = fmt.Errorf("region %s: %w", p.Region(), err)
			}
		}()
	}
	wg.Wait()

	s.logger.Info("supervisor stopped")
	return errors.Join(errs...)
}

// CheckReadiness returns nil once every region has completed a successful poll.
func (s *Supervisor) CheckReadiness(ctx context.Context) error {
	if len(s.pollers) == 0 {
		return errors.New("no regions configured")
	}
	var errs []error
	for _, p := range s.pollers {
		if err := p.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResolveCities completes configured regions with names and coordinates from
// resolver. A code the authority does not know is a *domain.ConfigurationError.
// Transient lookup failures are logged and the region is kept as configured;
// its poller retries the lookup and fails its polls until coordinates are known.
func ResolveCities(ctx context.Context, regions []domain.City, resolver domain.CityResolver, logger *slog.Logger) ([]domain.City, error) {
	out := make([]domain.City, 0, len(regions))
	for _, r := range regions {
		if err := domain.ValidateCityCode(r.Code); err != nil {
			return nil, err
		}
		if r.Name != "" && r.HasCoordinates() {
			out = append(out, r)
			continue
		}

		found, err := resolver.LookupCity(ctx, r.Code)
		switch {
		case errors.Is(err, domain.ErrUnknownCity):
			return nil, &domain.ConfigurationError{Field: "city code", Value: r.Code, Err: err}
		case err != nil:
			logger.Warn("city lookup failed, continuing with configured values", "region", r.Code, "error", err)
			out = append(out, r)
		default:
			out = append(out, mergeCity(r, found))
		}
	}
	return out, nil
}
