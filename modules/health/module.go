package health

import (
	"github.com/labx-platform/testbed/modules/health/presentation/controllers"
	"github.com/labx-platform/testbed/modules/health/services"
	"github.com/labx-platform/testbed/pkg/application"
	"github.com/labx-platform/testbed/pkg/configuration"
)

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()
	opts := []services.Option{}
	if pool := app.DB(); pool != nil {
		opts = append(opts, services.WithDatabase(services.PoolProbe(pool)))
	}
	if client := app.Redis(); client != nil {
		opts = append(opts, services.WithRedis(services.RedisProbe(client)))
	}
	app.RegisterServices(services.NewHealthService(conf.ServiceName, conf.ServiceVersion, app.EventPublisher(), opts...))
	app.RegisterControllers(controllers.NewHealthController(app))
	return nil
}

func (m *Module) Name() string {
	return "health"
}
