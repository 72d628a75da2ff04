package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// ScheduleClient lists shift assignments from the scheduling API.
type ScheduleClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewScheduleClient creates a new ScheduleClient.
func NewScheduleClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *ScheduleClient {
	return &ScheduleClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

// ListAssignments fetches assignments starting in [from, to] with retry,
// circuit breaker, and tracing.
func (c *ScheduleClient) ListAssignments(ctx context.Context, orgID string, from, to time.Time) ([]domain.ShiftAssignment, error) {
	ctx, span := tracer.Start(ctx, "ScheduleClient.ListAssignments")
	defer span.End()
	span.SetAttributes(attribute.String("organization.id", orgID))

	q := url.Values{}
	q.Set("from", from.Format(time.RFC3339))
	q.Set("to", to.Format(time.RFC3339))
	endpoint := fmt.Sprintf("%s/v1/orgs/%s/assignments?%s", c.baseURL, url.PathEscape(orgID), q.Encode())

	var assignments []domain.ShiftAssignment
	err := resilience.Execute(ctx, c.cb, c.cfg, "schedule", func() error {
		assignments = nil
		return getJSON(ctx, c.httpClient, endpoint, "schedule", &assignments)
	})
	if err != nil {
		return nil, wrapExternal("schedule", err)
	}
	if assignments == nil {
		assignments = []domain.ShiftAssignment{}
	}
	return assignments, nil
}

// getJSON performs a GET and decodes a 200 answer into out. 4xx answers
// are permanent; everything else may be retried.
func getJSON(ctx context.Context, httpClient *http.Client, endpoint, service string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return resilience.Permanent(fmt.Errorf("%s API returned status %d", service, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s API returned status %d", service, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resilience.Permanent(fmt.Errorf("decode %s response: %w", service, err))
	}
	return nil
}

func wrapExternal(service string, err error) error {
	var open *domain.ErrCircuitOpen
	if errors.As(err, &open) {
		return open
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}
