package persistence

import (
	"context"
	"sort"

	"github.com/labx-platform/testbed/modules/execution/domain/entities/execution"
	"github.com/labx-platform/testbed/pkg/repo"
)

type InmemExecutionRepository struct {
	executions *repo.SafeMap[string, execution.Execution]
}

func NewInmemExecutionRepository() execution.Repository {
	return &InmemExecutionRepository{
		executions: repo.NewSafeMap[string, execution.Execution](),
	}
}

func (r *InmemExecutionRepository) Save(_ context.Context, e execution.Execution) error {
	r.executions.Set(e.ID, e.Clone())
	return nil
}

func (r *InmemExecutionRepository) GetByID(_ context.Context, id string) (execution.Execution, error) {
	e, ok := r.executions.Get(id)
	if !ok {
		return execution.Execution{}, execution.ErrNotFound
	}
	return e.Clone(), nil
}

func (r *InmemExecutionRepository) List(_ context.Context, params *execution.FindParams) ([]execution.Execution, error) {
	if params == nil {
		params = &execution.FindParams{}
	}
	params.Normalize()
	out := []execution.Execution{}
	for _, e := range r.executions.Values() {
		if params.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}
