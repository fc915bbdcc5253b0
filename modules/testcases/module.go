package testcases

import (
	"context"
	"embed"

	"github.com/labx-platform/testbed/modules/testcases/domain/entities/testcase"
	"github.com/labx-platform/testbed/modules/testcases/infrastructure/persistence"
	"github.com/labx-platform/testbed/modules/testcases/presentation/controllers"
	"github.com/labx-platform/testbed/modules/testcases/services"
	"github.com/labx-platform/testbed/pkg/application"
	"github.com/labx-platform/testbed/pkg/configuration"
)

//go:embed infrastructure/persistence/schema/*.sql
var migrationFiles embed.FS

// Schema is the goose migration set of the postgres repository.
func Schema() application.Schema {
	return application.Schema{
		Name: "test-cases",
		FS:   migrationFiles,
		Dir:  "infrastructure/persistence/schema",
	}
}

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()

	var repo testcase.Repository
	if conf.Storage.TestCases == configuration.StoragePostgres {
		repo = persistence.NewPgTestCaseRepository()
		app.Migrations().RegisterSchema(Schema())
	} else {
		repo = persistence.NewInmemTestCaseRepository()
	}

	testCaseService := services.NewTestCaseService(repo)
	app.RegisterServices(testCaseService)
	app.RegisterControllers(
		controllers.NewTestCaseController(app, conf.MaxUploadSize),
	)
	if conf.Storage.SeedCatalog {
		app.Seeder().Register("test-case-catalog", func(ctx context.Context, _ application.Application) error {
			return testCaseService.SeedCatalog(ctx)
		})
	}
	return nil
}

func (m *Module) Name() string {
	return "testcases"
}
