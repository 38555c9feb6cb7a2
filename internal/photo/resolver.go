// Package photo resolves subject photos in parallel. Photo lookups are the
// slowest and least important part of a request: an individual failure
// degrades to "no photo" rather than failing the request.
package photo

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds the fan-out when no explicit limit is configured.
// The identifier set size is caller-controlled, so unbounded dispatch could
// exhaust upstream connection limits.
const DefaultWorkers = 10

// LookupFunc fetches the photo reference for a single subject code. An empty
// result with a nil error means the subject has no photo.
type LookupFunc func(ctx context.Context, code int) (string, error)

// Resolver fans photo lookups out across a bounded worker group.
type Resolver struct {
	workers int
}

// NewResolver creates a resolver with the given concurrency bound. Zero or
// negative values fall back to DefaultWorkers.
func NewResolver(workers int) *Resolver {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Resolver{workers: workers}
}

// ResolveMany fetches photos for the given codes, at most workers lookups in
// flight at a time, and blocks until every lookup has completed. Duplicate
// codes are resolved once. The returned map holds an entry per code that
// produced a photo; codes whose lookup failed, timed out or came back empty
// are simply absent. ResolveMany itself never fails.
func (r *Resolver) ResolveMany(ctx context.Context, lookup LookupFunc, codes []int) map[int]string {
	photos := make(map[int]string, len(codes))
	if len(codes) == 0 {
		return photos
	}

	seen := make(map[int]struct{}, len(codes))

	var mu sync.Mutex
	group := &errgroup.Group{}
	group.SetLimit(r.workers)

	for _, code := range codes {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		group.Go(func() error {
			photo, err := lookup(ctx, code)
			if err != nil {
				// absorbed: a missing photo never fails the request
				log.Debug().Int("code", code).Err(err).Msg("photo lookup failed")
				return nil
			}
			if photo == "" {
				return nil
			}

			mu.Lock()
			photos[code] = photo
			mu.Unlock()
			return nil
		})
	}

	// lookups never return an error, so this is purely a join point
	_ = group.Wait()

	return photos
}
