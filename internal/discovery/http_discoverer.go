package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/outreach-hub/backend/internal/models"
	"go.uber.org/zap"
)

// DefaultMaxResults caps a search that does not name its own limit.
const DefaultMaxResults = 10

type searchRequest struct {
	Query      string `json:"query"`
	Source     string `json:"source,omitempty"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	People []Person `json:"people"`
}

// HTTPDiscoverer asks a discovery service for people matching a campaign's query.
type HTTPDiscoverer struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewHTTPDiscoverer(baseURL string, httpClient *http.Client, log *zap.Logger) *HTTPDiscoverer {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPDiscoverer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        log,
	}
}

func (d *HTTPDiscoverer) Discover(ctx context.Context, q models.Discovery) ([]models.Target, error) {
	limit := q.MaxTargets
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	body, err := json.Marshal(searchRequest{Query: q.Query, Source: q.Source, MaxResults: limit})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/internal/discovery/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("discovery service returned %d: %s", resp.StatusCode, string(b))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode discovery result: %w", err)
	}

	people := Dedupe(out.People)
	if len(people) > limit {
		people = people[:limit]
	}
	targets := make([]models.Target, 0, len(people))
	for _, p := range people {
		targets = append(targets, p.ToTarget())
	}
	d.log.Info("targets discovered",
		zap.String("query", q.Query),
		zap.Int("hits", len(out.People)),
		zap.Int("targets", len(targets)),
	)
	return targets, nil
}
