package application

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/labx-platform/testbed/pkg/eventbus"
)

// ---- Seeder implementation ----

func NewSeeder(logger *logrus.Logger) Seeder {
	return &seeder{logger: logger}
}

type seeder struct {
	logger    *logrus.Logger
	seedFuncs []namedSeed
}

type namedSeed struct {
	name string
	fn   SeedFunc
}

func (s *seeder) Seed(ctx context.Context, app Application) error {
	for _, seed := range s.seedFuncs {
		if s.logger != nil {
			s.logger.Infof("Seeding %s", seed.name)
		}
		if err := seed.fn(ctx, app); err != nil {
			return fmt.Errorf("seed %s: %w", seed.name, err)
		}
	}
	return nil
}

func (s *seeder) Register(name string, seedFunc SeedFunc) {
	s.seedFuncs = append(s.seedFuncs, namedSeed{name: name, fn: seedFunc})
}

// ---- Application implementation ----

type ApplicationOptions struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	EventBus eventbus.EventBusWithError
	Logger   *logrus.Logger
}

func New(opts *ApplicationOptions) Application {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	bus := opts.EventBus
	if bus == nil {
		bus = eventbus.NewEventPublisher(logger)
	}
	return &application{
		pool:           opts.Pool,
		redis:          opts.Redis,
		eventPublisher: bus,
		logger:         logger,
		controllers:    make(map[string]Controller),
		services:       make(map[reflect.Type]interface{}),
		workers:        make(map[string]Worker),
		migrations:     NewMigrationManager(logger),
		seeder:         NewSeeder(logger),
	}
}

// application with a dynamically extendable service registry
type application struct {
	pool           *pgxpool.Pool
	redis          *redis.Client
	eventPublisher eventbus.EventBusWithError
	logger         *logrus.Logger
	services       map[reflect.Type]interface{}
	controllers    map[string]Controller
	workers        map[string]Worker
	middleware     []mux.MiddlewareFunc
	migrations     MigrationManager
	seeder         Seeder
}

func (app *application) Middleware() []mux.MiddlewareFunc {
	return app.middleware
}

func (app *application) DB() *pgxpool.Pool {
	return app.pool
}

func (app *application) Redis() *redis.Client {
	return app.redis
}

func (app *application) Logger() *logrus.Logger {
	return app.logger
}

func (app *application) EventPublisher() eventbus.EventBusWithError {
	return app.eventPublisher
}

// Controllers are returned ordered by key so route registration is deterministic.
func (app *application) Controllers() []Controller {
	keys := make([]string, 0, len(app.controllers))
	for k := range app.controllers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	controllers := make([]Controller, 0, len(app.controllers))
	for _, k := range keys {
		controllers = append(controllers, app.controllers[k])
	}
	return controllers
}

func (app *application) Migrations() MigrationManager {
	return app.migrations
}

func (app *application) Seeder() Seeder {
	return app.seeder
}

func (app *application) RegisterControllers(controllers ...Controller) {
	for _, c := range controllers {
		app.controllers[c.Key()] = c
	}
}

func (app *application) RegisterMiddleware(middleware ...mux.MiddlewareFunc) {
	app.middleware = append(app.middleware, middleware...)
}

func (app *application) RegisterWorkers(workers ...Worker) {
	for _, w := range workers {
		app.workers[w.Name()] = w
	}
}

func (app *application) Workers() []Worker {
	names := make([]string, 0, len(app.workers))
	for name := range app.workers {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Worker, 0, len(names))
	for _, name := range names {
		out = append(out, app.workers[name])
	}
	return out
}

// RegisterServices registers a new service in the application by its type
func (app *application) RegisterServices(services ...interface{}) {
	for _, service := range services {
		serviceType := reflect.TypeOf(service).Elem()
		app.services[serviceType] = service
	}
}

// Service retrieves a service by its type
func (app *application) Service(service interface{}) interface{} {
	serviceType := reflect.TypeOf(service)
	svc, exists := app.services[serviceType]
	if !exists {
		panic(fmt.Sprintf("service %s not found", serviceType.Name()))
	}
	return svc
}

func (app *application) Services() map[reflect.Type]interface{} {
	return app.services
}
