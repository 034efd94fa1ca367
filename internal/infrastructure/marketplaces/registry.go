package marketplaces

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/infrastructure/config"
)

// StaticRegistry holds the adapters configured at startup. The set never
// changes after construction, so lookups need no locking.
type StaticRegistry struct {
	adapters map[marketplace.Code]marketplace.Adapter
}

// NewStaticRegistry creates a registry from an explicit adapter list
func NewStaticRegistry(adapters ...marketplace.Adapter) *StaticRegistry {
	registry := &StaticRegistry{
		adapters: make(map[marketplace.Code]marketplace.Adapter, len(adapters)),
	}
	for _, adapter := range adapters {
		registry.adapters[adapter.Code()] = adapter
	}
	return registry
}

// NewRegistryFromConfig builds adapters for every marketplace enabled in the
// configuration and returns them as a registry
func NewRegistryFromConfig(cfg config.MarketplacesConfig, logger *zap.Logger) (*StaticRegistry, error) {
	var adapters []marketplace.Adapter

	if cfg.Ebay.Enabled {
		adapter, err := NewEbayAdapter(ClientConfigFromApp(cfg.Ebay))
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	if cfg.YahooAuction.Enabled {
		adapter, err := NewYahooAuctionAdapter(ClientConfigFromApp(cfg.YahooAuction))
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	if cfg.Mercari.Enabled {
		adapter, err := NewMercariAdapter(ClientConfigFromApp(cfg.Mercari))
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}

	for _, adapter := range adapters {
		logger.Info("Registered marketplace adapter",
			zap.String("marketplace", adapter.Code().String()),
			zap.Bool("supports_auction", adapter.Capabilities().SupportsAuction),
			zap.Bool("supports_fixed_price", adapter.Capabilities().SupportsFixedPrice))
	}
	return NewStaticRegistry(adapters...), nil
}

// GetAdapter returns the adapter for the specified marketplace code
func (r *StaticRegistry) GetAdapter(code marketplace.Code) (marketplace.Adapter, error) {
	adapter, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", marketplace.ErrAdapterNotRegistered, code)
	}
	return adapter, nil
}

// ListAdapters returns all registered adapters ordered by marketplace code
func (r *StaticRegistry) ListAdapters() []marketplace.Adapter {
	adapters := make([]marketplace.Adapter, 0, len(r.adapters))
	for _, adapter := range r.adapters {
		adapters = append(adapters, adapter)
	}
	sort.Slice(adapters, func(i, j int) bool {
		return adapters[i].Code() < adapters[j].Code()
	})
	return adapters
}

// ListAuctionAdapters returns the adapters for auction-capable marketplaces,
// ordered by marketplace code
func (r *StaticRegistry) ListAuctionAdapters() []marketplace.Adapter {
	var adapters []marketplace.Adapter
	for _, adapter := range r.ListAdapters() {
		if adapter.Capabilities().SupportsAuction {
			adapters = append(adapters, adapter)
		}
	}
	return adapters
}

var _ marketplace.AdapterRegistry = (*StaticRegistry)(nil)
