package layers

import (
	"github.com/labx-platform/testbed/modules/layers/presentation/controllers"
	"github.com/labx-platform/testbed/modules/layers/services"
	"github.com/labx-platform/testbed/pkg/application"
)

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

func (m *Module) Register(app application.Application) error {
	tracker := services.NewTracker(app.EventPublisher(), services.WithTrackerLogger(app.Logger()))
	app.RegisterServices(tracker)
	app.RegisterControllers(controllers.NewLayerController(app))
	app.RegisterWorkers(tracker)
	return nil
}

func (m *Module) Name() string {
	return "layers"
}
