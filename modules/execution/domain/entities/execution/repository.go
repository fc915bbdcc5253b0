package execution

import "context"

const DefaultListLimit = 100

type FindParams struct {
	Status     Status `form:"status"`
	TestCaseID string `form:"testCaseId"`
	Limit      int    `form:"limit"`
}

func (p *FindParams) Normalize() {
	if p.Limit <= 0 || p.Limit > 1000 {
		p.Limit = DefaultListLimit
	}
}

func (p *FindParams) Matches(e Execution) bool {
	if p.Status != "" && e.Status != p.Status {
		return false
	}
	return p.TestCaseID == "" || e.TestCaseID == p.TestCaseID
}

type Repository interface {
	// Save inserts or replaces the execution.
	Save(ctx context.Context, e Execution) error
	GetByID(ctx context.Context, id string) (Execution, error)
	// List returns matching executions, newest first.
	List(ctx context.Context, params *FindParams) ([]Execution, error)
}
