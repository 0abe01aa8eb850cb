// Package inmet talks to INMET's public alert API (apiprevmet3.inmet.gov.br).
package inmet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/inmet-alerts/internal/domain"
	"github.com/couchcryptid/inmet-alerts/internal/observability"
)

// maxBodyBytes caps upstream response bodies.
const maxBodyBytes = 8 << 20

const (
	endpointAlerts = "alerts"
	endpointCity   = "city"
)

// Client fetches the active-alert feed and resolves municipality details.
// It implements pipeline.Fetcher and domain.CityResolver.
type Client struct {
	alertsURL  string
	cityURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an INMET client. timeout bounds each request; callers may
// impose a shorter deadline through the context.
func NewClient(alertsURL, cityURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		alertsURL: alertsURL,
		cityURL:   strings.TrimRight(cityURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch returns the raw /avisos/ativos payload. The feed is national, so
// cityCode only tags logs; filtering happens in domain.Parser.
// Failures are *domain.FetchError.
func (c *Client) Fetch(ctx context.Context, cityCode string) ([]byte, error) {
	body, err := c.get(ctx, c.alertsURL, endpointAlerts)
	if err != nil {
		c.logger.Debug("alert feed fetch failed", "region", cityCode, "error", err)
		return nil, err
	}
	return body, nil
}

// LookupCity resolves a 7-digit IBGE code via /buscar/cidade/{code}. An empty
// result is domain.ErrUnknownCity.
func (c *Client) LookupCity(ctx context.Context, code string) (domain.City, error) {
	body, err := c.get(ctx, c.cityURL+"/"+url.PathEscape(code), endpointCity)
	if err != nil {
		var fe *domain.FetchError
		if errors.As(err, &fe) && fe.Kind == domain.FetchHTTPStatus && fe.StatusCode == http.StatusNotFound {
			return domain.City{}, fmt.Errorf("city %s: %w", code, domain.ErrUnknownCity)
		}
		return domain.City{}, err
	}

	var matches []cityResponse
	if err := json.Unmarshal(body, &matches); err != nil {
		return domain.City{}, &domain.MalformedSourceError{Reason: "decode city lookup", Err: err}
	}
	if len(matches) == 0 {
		return domain.City{}, fmt.Errorf("city %s: %w", code, domain.ErrUnknownCity)
	}

	m := matches[0]
	return domain.City{
		Code:      code,
		Name:      strings.TrimSpace(m.Label),
		Latitude:  float64(m.Latitude),
		Longitude: float64(m.Longitude),
	}, nil
}

func (c *Client) get(ctx context.Context, fullURL, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	body, err := c.do(req)
	c.metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	return body, err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.FetchError{
			Kind:       domain.FetchHTTPStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("inmet API error: %s", bytes.TrimSpace(snippet)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(err)
	}
	return body, nil
}

// classify maps transport errors onto fetch error kinds.
func classify(err error) *domain.FetchError {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &domain.FetchError{Kind: domain.FetchTimeout, Err: err}
	}
	return &domain.FetchError{Kind: domain.FetchNetwork, Err: err}
}

// cityResponse is one element of the /buscar/cidade response.
type cityResponse struct {
	Label     string     `json:"label"`
	Latitude  coordinate `json:"latitude"`
	Longitude coordinate `json:"longitude"`
}

// coordinate accepts a JSON number or a numeric string.
type coordinate float64

func (c *coordinate) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %s", data)
	}
	*c = coordinate(f)
	return nil
}
