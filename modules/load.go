package modules

import (
	"github.com/labx-platform/testbed/modules/deployment"
	"github.com/labx-platform/testbed/modules/execution"
	"github.com/labx-platform/testbed/modules/health"
	"github.com/labx-platform/testbed/modules/layers"
	"github.com/labx-platform/testbed/modules/loadtesting"
	"github.com/labx-platform/testbed/modules/testcases"
	"github.com/labx-platform/testbed/pkg/application"
)

var (
	// BuiltInModules are registered in order; later modules may look up
	// services registered by earlier ones.
	BuiltInModules = []application.Module{
		testcases.NewModule(),
		execution.NewModule(),
		layers.NewModule(),
		deployment.NewModule(),
		loadtesting.NewModule(),
		health.NewModule(),
	}
)

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
