// Package dispatch is the boundary between the orchestrator and the platform adapters that
// physically perform an action.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Request is the abstract action handed to an adapter.
type Request struct {
	ActionID   string `json:"action_id"`
	CampaignID string `json:"campaign_id"`
	UserID     string `json:"user_id"`
	Kind       string `json:"kind"`
	Platform   string `json:"platform"`
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name,omitempty"`
	TargetRef  string `json:"target_ref,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Result is opaque to the orchestrator beyond Success and Error.
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Adapter executes actions for one or more platforms.
type Adapter interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// Registry routes a request to the adapter registered for its platform.
type Registry struct {
	adapters map[string]Adapter
	fallback Adapter
	timeout  time.Duration
	log      *zap.Logger
}

func NewRegistry(timeout time.Duration, log *zap.Logger) *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		timeout:  timeout,
		log:      log,
	}
}

func (r *Registry) Register(platform string, a Adapter) {
	r.adapters[platform] = a
}

// SetFallback sets the adapter for platforms with no registration.
func (r *Registry) SetFallback(a Adapter) {
	r.fallback = a
}

// Dispatch runs the action under the registry timeout. Adapter errors, timeouts and
// missing adapters come back as failed results so the caller can always record an outcome.
func (r *Registry) Dispatch(ctx context.Context, req Request) Result {
	adapter, ok := r.adapters[req.Platform]
	if !ok {
		adapter = r.fallback
	}
	if adapter == nil {
		return Result{Error: fmt.Sprintf("no adapter for platform %q", req.Platform)}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := adapter.Execute(ctx, req)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "adapter timed out"
		}
		r.log.Warn("dispatch failed",
			zap.String("action_id", req.ActionID),
			zap.String("platform", req.Platform),
			zap.String("kind", req.Kind),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return Result{Error: msg}
	}
	if !res.Success && res.Error == "" {
		res.Error = "adapter reported failure"
	}
	return res
}
