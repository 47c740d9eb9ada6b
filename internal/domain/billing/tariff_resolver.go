package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type tariffCacheKey struct {
	providerID  uuid.UUID
	serviceType ServiceType
}

// TariffResolver resolves the pricing rule active for a provider and service
// on a given date.
//
// Resolutions are memoized per (provider, service) for the lifetime of the
// resolver. A resolver is created at the start of one billing run and
// discarded at its end, so cached tariffs never leak across runs or tenants.
// Not safe for concurrent use; each worker owns its own resolver.
type TariffResolver struct {
	tariffs TariffRepository
	cache   map[tariffCacheKey]*Tariff
}

// NewTariffResolver creates a resolver with an empty run-scoped cache
func NewTariffResolver(tariffs TariffRepository) *TariffResolver {
	return &TariffResolver{
		tariffs: tariffs,
		cache:   make(map[tariffCacheKey]*Tariff),
	}
}

// Resolve returns the tariff active for the provider and service on the
// given date. When several candidate windows overlap, the most recently
// started rule wins (latest ActiveFrom); a remaining tie goes to the most
// recently entered rule (latest CreatedAt). Returns MissingTariffError when
// no candidate covers the date.
//
// A second call for the same (provider, service) within one run is served
// from the cache and never reaches storage.
func (r *TariffResolver) Resolve(ctx context.Context, providerID uuid.UUID, serviceType ServiceType, onDate time.Time) (*Tariff, error) {
	key := tariffCacheKey{providerID: providerID, serviceType: serviceType}
	if cached, ok := r.cache[key]; ok {
		return cached, nil
	}

	candidates, err := r.tariffs.FindCandidates(ctx, providerID, onDate)
	if err != nil {
		return nil, err
	}

	var winner *Tariff
	for i := range candidates {
		c := &candidates[i]
		if !c.IsActiveOn(onDate) {
			continue
		}
		if winner == nil {
			winner = c
			continue
		}
		if c.ActiveFrom.After(winner.ActiveFrom) {
			winner = c
			continue
		}
		if c.ActiveFrom.Equal(winner.ActiveFrom) && c.CreatedAt.After(winner.CreatedAt) {
			winner = c
		}
	}

	if winner == nil {
		return nil, NewMissingTariffError(providerID, serviceType, onDate)
	}

	r.cache[key] = winner
	return winner, nil
}
