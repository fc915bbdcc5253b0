package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labx-platform/testbed/modules/execution"
	"github.com/labx-platform/testbed/modules/testcases"
	"github.com/labx-platform/testbed/modules/testcases/domain/entities/testcase"
	"github.com/labx-platform/testbed/modules/testcases/infrastructure/persistence"
	"github.com/labx-platform/testbed/modules/testcases/services"
	"github.com/labx-platform/testbed/pkg/application"
	"github.com/labx-platform/testbed/pkg/composables"
	"github.com/labx-platform/testbed/pkg/configuration"
)

func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, configuration.Use().Database.Opts)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

func newMigrations() application.MigrationManager {
	m := application.NewMigrationManager(configuration.Use().Logger())
	m.RegisterSchema(testcases.Schema(), execution.Schema())
	return m
}

// catalog returns a test case service with the context it must be called
// with. Without a pool the catalog lives in memory.
func catalog(ctx context.Context, pool *pgxpool.Pool) (*services.TestCaseService, context.Context) {
	var repo testcase.Repository
	if pool != nil {
		repo = persistence.NewPgTestCaseRepository()
		ctx = composables.WithPool(ctx, pool)
	} else {
		repo = persistence.NewInmemTestCaseRepository()
	}
	return services.NewTestCaseService(repo), ctx
}
