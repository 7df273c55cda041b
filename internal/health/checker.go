// Package health aggregates dependency probes for the service health
// endpoints.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Status is the aggregate health of the service.
type Status string

const (
	// StatusHealthy means every dependency responded.
	StatusHealthy Status = "healthy"
	// StatusDegraded means an optional dependency failed; the service keeps
	// serving but part of the pipeline is impaired.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy means a critical dependency failed.
	StatusUnhealthy Status = "unhealthy"
)

type probe struct {
	name     string
	check    func(ctx context.Context) error
	optional bool
}

// Checker runs registered dependency probes and folds them into one status.
type Checker struct {
	mu     sync.RWMutex
	probes []probe
}

// NewChecker creates an empty health checker.
func NewChecker() *Checker {
	return &Checker{}
}

// RegisterFunc adds a critical probe. Its failure makes the service
// unhealthy.
func (c *Checker) RegisterFunc(name string, fn func(ctx context.Context) error) {
	c.register(probe{name: name, check: fn})
}

// RegisterOptionalFunc adds a non-critical probe. Its failure degrades the
// service instead of failing it: the API keeps serving while, for example,
// the zero-shot model server is down and classification backs up.
func (c *Checker) RegisterOptionalFunc(name string, fn func(ctx context.Context) error) {
	c.register(probe{name: name, check: fn, optional: true})
}

func (c *Checker) register(p probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes = append(c.probes, p)
}

// Check runs every probe and returns the folded status plus the per-probe
// results, keyed by probe name.
func (c *Checker) Check(ctx context.Context) (Status, map[string]string) {
	c.mu.RLock()
	probes := make([]probe, len(c.probes))
	copy(probes, c.probes)
	c.mu.RUnlock()

	sort.SliceStable(probes, func(i, j int) bool { return probes[i].name < probes[j].name })

	results := make(map[string]string, len(probes))
	status := StatusHealthy

	for _, p := range probes {
		if err := p.check(ctx); err != nil {
			results[p.name] = fmt.Sprintf("error: %v", err)
			if p.optional {
				if status == StatusHealthy {
					status = StatusDegraded
				}
			} else {
				status = StatusUnhealthy
			}
			continue
		}
		results[p.name] = "ok"
	}

	return status, results
}
