package container

import (
	"context"

	"elimfilters/internal/api/handlers/classification"
	"elimfilters/internal/api/handlers/common"
	"elimfilters/internal/api/handlers/selfheal"
	"elimfilters/internal/api/handlers/sku"
	"elimfilters/internal/api/routes"
)

func (c *Container) initHandlers(ctx context.Context) error {
	base := common.NewBaseHandler(c.Logger)
	c.Handlers = routes.Handlers{
		SKU:            sku.NewHandler(base, c.UseCase),
		Classification: classification.NewHandler(base, c.Resolver, c.Rules),
		SelfHeal:       selfheal.NewHandler(base, c.Runner, c.FailureLog),
	}
	return nil
}
