package services

import (
	"context"

	goa "goa.design/goa/v3/pkg"

	"oikos/internal/channels"
)

// HealthResult is the body of GET /health
type HealthResult struct {
	Status   string          `json:"status"`
	Service  string          `json:"service"`
	Version  string          `json:"version"`
	Channels map[string]bool `json:"channels"`
}

// HealthService implements the health service
type HealthService struct {
	name     string
	version  string
	channels []channels.Channel
}

// NewHealthService creates a new health service
func NewHealthService(name, version string, chans []channels.Channel) *HealthService {
	return &HealthService{
		name:     name,
		version:  version,
		channels: chans,
	}
}

// Check reports liveness and which channels have credentials. The service is
// "degraded" when no channel is configured, since every submission would
// then fail.
func (s *HealthService) Check(ctx context.Context) (*HealthResult, error) {
	res := &HealthResult{
		Status:   "healthy",
		Service:  s.name,
		Version:  s.version,
		Channels: make(map[string]bool, len(s.channels)),
	}

	configured := 0
	for _, ch := range s.channels {
		ok := ch.Configured()
		res.Channels[string(ch.Name())] = ok
		if ok {
			configured++
		}
	}
	if configured == 0 {
		res.Status = "degraded"
	}

	return res, nil
}

// NewHealthEndpoint wraps Check as a goa endpoint.
func NewHealthEndpoint(s *HealthService) goa.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		return s.Check(ctx)
	}
}
