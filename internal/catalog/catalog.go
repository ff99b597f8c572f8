// Package catalog holds the process-wide service catalog. Entries come from
// static configuration and are read-only to the rest of the system; every
// order snapshots the price it saw, so later catalog edits never reprice
// existing orders.
package catalog

import (
	"sort"

	"github.com/gashop/shop-ledger/internal/models"
)

type Catalog struct {
	services map[string]models.Service
}

func New(services []models.Service) *Catalog {
	byID := make(map[string]models.Service, len(services))
	for _, svc := range services {
		byID[svc.ID] = svc
	}
	return &Catalog{services: byID}
}

// Lookup returns an active catalog entry. Inactive and unknown services are
// both reported as not found so callers cannot order a retired service.
func (c *Catalog) Lookup(id string) (models.Service, error) {
	svc, ok := c.services[id]
	if !ok || !svc.Active {
		return models.Service{}, models.ErrServiceNotFound
	}
	return svc, nil
}

// List returns all active entries sorted by id.
func (c *Catalog) List() []models.Service {
	out := make([]models.Service, 0, len(c.services))
	for _, svc := range c.services {
		if svc.Active {
			out = append(out, svc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
