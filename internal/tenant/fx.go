package tenant

import (
	"context"

	"github.com/smallbiznis/tillway/internal/sharding"
	storedomain "github.com/smallbiznis/tillway/internal/store/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ResolverParam collects resolver dependencies. Schemas arrive through the
// "tenant.schemas" group, contributed by each sharded-entity domain module.
type ResolverParam struct {
	fx.In

	Registry *sharding.Registry
	Dir      storedomain.Directory
	Schemas  []Schema `group:"tenant.schemas"`
	Log      *zap.Logger
}

// Module provides the tenant model resolver.
var Module = fx.Module("tenant.resolver",
	fx.Provide(func(p ResolverParam) *Resolver {
		return NewResolver(p.Registry, p.Dir, p.Schemas, p.Log)
	}),
	fx.Invoke(func(lc fx.Lifecycle, resolver *Resolver) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				resolver.Reset()
				return nil
			},
		})
	}),
)

// ProvideSchema registers one entity schema into the resolver group.
func ProvideSchema(entity Entity, prototype func() any) fx.Option {
	return fx.Supply(fx.Annotate(
		Schema{Entity: entity, Prototype: prototype},
		fx.ResultTags(`group:"tenant.schemas"`),
	))
}
