package dispatch

import (
	"context"

	"go.uber.org/zap"
)

// DryRunAdapter logs actions and reports success without touching any platform.
type DryRunAdapter struct {
	log *zap.Logger
}

func NewDryRunAdapter(log *zap.Logger) *DryRunAdapter {
	return &DryRunAdapter{log: log}
}

func (a *DryRunAdapter) Execute(_ context.Context, req Request) (Result, error) {
	a.log.Info("dry run action",
		zap.String("action_id", req.ActionID),
		zap.String("platform", req.Platform),
		zap.String("kind", req.Kind),
		zap.String("target_id", req.TargetID),
	)
	return Result{Success: true, Data: map[string]any{"dry_run": true}}, nil
}
