package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/plantao-presenca-go/internal/domain"
	"github.com/boddenberg/plantao-presenca-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
)

// RosterClient lists professionals from the roster/identity API.
type RosterClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewRosterClient creates a new RosterClient.
func NewRosterClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *RosterClient {
	return &RosterClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

// ListProfessionals fetches the organization roster.
func (c *RosterClient) ListProfessionals(ctx context.Context, orgID string) ([]domain.Professional, error) {
	ctx, span := tracer.Start(ctx, "RosterClient.ListProfessionals")
	defer span.End()
	span.SetAttributes(attribute.String("organization.id", orgID))

	endpoint := fmt.Sprintf("%s/v1/orgs/%s/professionals", c.baseURL, url.PathEscape(orgID))

	var roster []domain.Professional
	err := resilience.Execute(ctx, c.cb, c.cfg, "roster", func() error {
		roster = nil
		return getJSON(ctx, c.httpClient, endpoint, "roster", &roster)
	})
	if err != nil {
		return nil, wrapExternal("roster", err)
	}
	return roster, nil
}
