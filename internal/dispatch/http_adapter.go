package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// HTTPAdapter forwards actions to an adapter service over its internal API.
type HTTPAdapter struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewHTTPAdapter(baseURL string, httpClient *http.Client, log *zap.Logger) *HTTPAdapter {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPAdapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        log,
	}
}

func (a *HTTPAdapter) Execute(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, err
	}

	url := fmt.Sprintf("%s/internal/actions/%s/%s", a.baseURL, req.Platform, req.Kind)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("adapter service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("adapter service returned %d: %s", resp.StatusCode, string(b))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decode adapter result: %w", err)
	}
	return result, nil
}
