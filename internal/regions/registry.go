// Package regions provides regional reference data lookups.
package regions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openwelfare/ubk/internal/domain"
	"github.com/openwelfare/ubk/internal/repository"
)

// defaultTTL bounds how long a stale coefficient can be served after a
// region update lands in the repository.
const defaultTTL = 10 * time.Minute

// Registry resolves regions through the cache with repository fallback.
// Region reference data is read on every evaluation, so lookups go through
// the cache first; the repository is the source of truth.
type Registry struct {
	repo  domain.Repository
	cache domain.Cache
	ttl   time.Duration
}

// NewRegistry creates a region registry.
func NewRegistry(repo domain.Repository, cache domain.Cache) *Registry {
	return &Registry{
		repo:  repo,
		cache: cache,
		ttl:   defaultTTL,
	}
}

// Region resolves one region by id. Returns domain.ErrUnknownRegion when no
// reference data exists for the id.
func (r *Registry) Region(ctx context.Context, id string) (*domain.Region, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty region id", domain.ErrUnknownRegion)
	}

	if r.cache != nil {
		if region, err := r.cache.GetRegion(ctx, id); err == nil && region != nil {
			return region, nil
		}
	}

	region, err := r.repo.GetRegion(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRegion, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load region %s: %w", id, err)
	}

	if r.cache != nil {
		_ = r.cache.SetRegion(ctx, region, r.ttl)
	}
	return region, nil
}

// List returns all known regions from the repository.
func (r *Registry) List(ctx context.Context) ([]*domain.Region, error) {
	return r.repo.ListRegions(ctx)
}

// Save stores a region and invalidates its cache entry.
func (r *Registry) Save(ctx context.Context, region *domain.Region) error {
	if err := r.repo.SaveRegion(ctx, region); err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.cache.Delete(ctx, "region:"+region.ID)
	}
	return nil
}
