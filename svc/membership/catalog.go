package membership

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/memberkit/pkg/logger"
)

// Catalog serves plans through an optional read-through cache.
type Catalog struct {
	store  PlanStore
	cache  PlanCache
	logger *slog.Logger
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

func WithPlanCache(c PlanCache) CatalogOption {
	return func(cat *Catalog) {
		if c != nil {
			cat.cache = c
		}
	}
}

func WithCatalogLogger(l *slog.Logger) CatalogOption {
	return func(cat *Catalog) {
		if l != nil {
			cat.logger = l
		}
	}
}

// NewCatalog creates a plan catalog. Panics if store is nil.
func NewCatalog(store PlanStore, opts ...CatalogOption) *Catalog {
	if store == nil {
		panic("membership: plan store cannot be nil")
	}
	c := &Catalog{
		store:  store,
		cache:  nopCollaborator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("catalog"))
	return c
}

// Get returns the plan with id or ErrPlanNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (*Plan, error) {
	if p, ok := c.cache.Get(ctx, id); ok {
		return p, nil
	}
	p, err := c.store.GetPlan(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, persistenceError("get plan", err)
	}
	c.cache.Set(ctx, p)
	return p, nil
}

// List returns plans ordered by id.
func (c *Catalog) List(ctx context.Context, enabledOnly bool) ([]*Plan, error) {
	plans, err := c.store.ListPlans(ctx)
	if err != nil {
		return nil, persistenceError("list plans", err)
	}
	if !enabledOnly {
		return plans, nil
	}
	out := plans[:0]
	for _, p := range plans {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out, nil
}

// Save validates and stores the plan.
func (c *Catalog) Save(ctx context.Context, plan *Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	if err := c.store.SavePlan(ctx, plan); err != nil {
		return persistenceError("save plan", err)
	}
	c.cache.Delete(ctx, plan.ID)
	c.logger.InfoContext(ctx, "plan saved", logger.PlanID(plan.ID))
	return nil
}

// Delete removes a plan. Plans with members need a transfer target.
func (c *Catalog) Delete(ctx context.Context, id, transferTo string) error {
	if _, err := c.Get(ctx, id); err != nil {
		return err
	}
	if transferTo == id {
		return ErrInvalidTransfer
	}

	if transferTo == "" {
		n, err := c.store.CountMembers(ctx, id)
		if err != nil {
			return persistenceError("count plan members", err)
		}
		if n > 0 {
			return ErrPlanHasMembers
		}
	} else if _, err := c.Get(ctx, transferTo); err != nil {
		return err
	}

	if err := c.store.DeletePlan(ctx, id, transferTo); err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			return ErrPlanNotFound
		}
		return persistenceError("delete plan", err)
	}
	c.cache.Delete(ctx, id)
	c.logger.InfoContext(ctx, "plan deleted", logger.PlanID(id), slog.String("transfer_to", transferTo))
	return nil
}

// Seed stores the plans that do not exist yet and returns how many were added.
func (c *Catalog) Seed(ctx context.Context, plans []*Plan) (int, error) {
	added := 0
	for _, p := range plans {
		_, err := c.store.GetPlan(ctx, p.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrPlanNotFound) {
			return added, persistenceError("seed plans", err)
		}
		if err := c.Save(ctx, p); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
