package loadtesting

import (
	"context"

	"github.com/labx-platform/testbed/modules/loadtesting/presentation/controllers"
	"github.com/labx-platform/testbed/modules/loadtesting/services"
	"github.com/labx-platform/testbed/pkg/application"
)

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

func (m *Module) Register(app application.Application) error {
	service := services.NewLoadTestService(app.EventPublisher(), services.WithLogger(app.Logger()))
	if err := service.Initialize(context.Background()); err != nil {
		return err
	}
	app.RegisterServices(service)
	app.RegisterControllers(controllers.NewLoadTestController(app))
	app.RegisterWorkers(service)
	return nil
}

func (m *Module) Name() string {
	return "loadtesting"
}
