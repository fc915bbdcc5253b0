package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/modules/health/services"
	"github.com/labx-platform/testbed/pkg/eventbus"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newBus() eventbus.EventBus {
	return eventbus.NewEventPublisher(logrus.New())
}

func TestHealthService_NoDependencies(t *testing.T) {
	s := services.NewHealthService("labx-testbed", "1.0.0", newBus(), services.WithClock(fixedClock))

	r := s.Check(context.Background())
	assert.Equal(t, services.StatusHealthy, r.Status)
	assert.Equal(t, "2026-03-01T12:00:00Z", r.Timestamp)
	assert.Equal(t, "labx-testbed", r.Service)
	require.Contains(t, r.Checks, "database")
	assert.Equal(t, false, r.Checks["database"].Details["enabled"])
	assert.Equal(t, false, r.Checks["redis"].Details["enabled"])
	assert.Equal(t, services.StatusHealthy, r.Checks["eventbus"].Status)
}

func TestHealthService_SlowDatabaseIsDegraded(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillDelayFor(150 * time.Millisecond)

	s := services.NewHealthService("labx-testbed", "1.0.0", newBus(), services.WithDatabase(db.PingContext))
	r := s.Check(context.Background())

	assert.Equal(t, services.StatusDegraded, r.Checks["database"].Status)
	assert.Equal(t, services.StatusDegraded, r.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthService_FailingDatabaseIsDown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection reset"))

	s := services.NewHealthService("labx-testbed", "1.0.0", newBus(), services.WithDatabase(db.PingContext))
	r := s.Check(context.Background())

	assert.Equal(t, services.StatusDown, r.Status)
	assert.Contains(t, r.Checks["database"].Error, "connection reset")
}

func TestHealthService_UnreachableRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	defer client.Close()

	s := services.NewHealthService("labx-testbed", "1.0.0", newBus(), services.WithRedis(services.RedisProbe(client)))
	r := s.Check(context.Background())

	assert.Equal(t, services.StatusDown, r.Checks["redis"].Status)
	assert.Equal(t, services.StatusDown, r.Status)
	assert.NotEmpty(t, r.Checks["redis"].Error)
}

func TestHealthService_Live(t *testing.T) {
	s := services.NewHealthService("labx-testbed", "2.1.0", nil, services.WithClock(fixedClock))

	r := s.Live()
	assert.Equal(t, services.StatusHealthy, r.Status)
	assert.Equal(t, "2.1.0", r.Version)
	assert.Nil(t, r.Checks)

	assert.Equal(t, services.StatusDown, s.Check(context.Background()).Checks["eventbus"].Status)
}
