package runner

import (
	"context"
	"time"

	"serp-similarity/internal/models"
)

// Engine exposes the minimal contract used by web and admin layers.
// Keep it small to decouple from implementation details; callers can mock
// this interface. NOTE: extend carefully, prefer helper functions over
// expanding the surface.

type Engine interface {
	Start()
	Stop(timeout time.Duration) error
	Submit(ctx context.Context, run *models.Run, source string) error
	GetStats() EngineStats
	SetInsightsEnabled(enabled bool)
	DefaultProvider() string
}

// Ensure AnalysisEngine implements Engine.
var _ Engine = (*AnalysisEngine)(nil)
