package deployment

import (
	"context"

	"github.com/labx-platform/testbed/modules/deployment/presentation/controllers"
	"github.com/labx-platform/testbed/modules/deployment/services"
	"github.com/labx-platform/testbed/pkg/application"
	"github.com/labx-platform/testbed/pkg/configuration"
)

const webhookRetries = 3

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()
	service := services.NewDeploymentService(app.EventPublisher(),
		services.WithLogger(app.Logger()),
		services.WithStepDelay(conf.Deployment.StepDelay),
		services.WithNotifier(services.NewWebhookNotifier(app.Logger(), webhookRetries), conf.Deployment.WebhookURL),
	)
	if err := service.Initialize(context.Background()); err != nil {
		return err
	}
	app.RegisterServices(service)
	app.RegisterControllers(controllers.NewDeploymentController(app))
	app.RegisterWorkers(service)
	return nil
}

func (m *Module) Name() string {
	return "deployment"
}
