package execution

import (
	"context"
	"embed"

	"github.com/labx-platform/testbed/modules/execution/domain/entities/execution"
	"github.com/labx-platform/testbed/modules/execution/infrastructure/persistence"
	"github.com/labx-platform/testbed/modules/execution/presentation/controllers"
	"github.com/labx-platform/testbed/modules/execution/services"
	tcservices "github.com/labx-platform/testbed/modules/testcases/services"
	"github.com/labx-platform/testbed/pkg/application"
	"github.com/labx-platform/testbed/pkg/composables"
	"github.com/labx-platform/testbed/pkg/configuration"
)

//go:embed infrastructure/persistence/schema/*.sql
var migrationFiles embed.FS

// Schema is the goose migration set of the postgres repository.
func Schema() application.Schema {
	return application.Schema{
		Name: "executions",
		FS:   migrationFiles,
		Dir:  "infrastructure/persistence/schema",
	}
}

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

// Register needs the testcases module to be registered first.
func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()

	baseCtx := context.Background()
	var repo execution.Repository
	if conf.Storage.Executions == configuration.StoragePostgres {
		repo = persistence.NewPgExecutionRepository()
		baseCtx = composables.WithPool(baseCtx, app.DB())
		app.Migrations().RegisterSchema(Schema())
	} else {
		repo = persistence.NewInmemExecutionRepository()
	}

	testCases := app.Service(tcservices.TestCaseService{}).(*tcservices.TestCaseService)
	bus := app.EventPublisher()
	engine := services.NewEngine(repo, testCases, bus,
		services.WithBaseContext(baseCtx),
		services.WithEngineLogger(app.Logger()),
		services.WithDefaultAcceleration(conf.Execution.TimeAcceleration),
	)
	dataFlow := services.NewDataFlowManager(bus, app.Logger(), conf.Execution.MessageInterval)
	cellSearch := services.NewCellSearchSimulator(testCases, bus, app.Logger(), conf.Execution.CellSearchStepInterval)
	app.RegisterServices(
		engine,
		dataFlow,
		cellSearch,
		services.NewStreamClients(),
	)
	app.RegisterControllers(
		controllers.NewExecutionController(app),
		controllers.NewStreamController(app, controllers.StreamOptions{
			UpdateInterval:    conf.Execution.WSUpdateInterval,
			MaxStream:         conf.Execution.WSMaxStream,
			HeartbeatInterval: conf.Execution.WSHeartbeatInterval,
			IdleTimeout:       conf.Execution.WSIdleTimeout,
			CheckOrigin:       controllers.AllowedOrigins(conf.CORSOrigins()),
		}),
	)
	app.RegisterWorkers(services.NewShutdownWorker(engine, dataFlow, cellSearch))
	return nil
}

func (m *Module) Name() string {
	return "execution"
}
