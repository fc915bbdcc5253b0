package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/labx-platform/testbed/modules/execution/domain/entities/execution"
	"github.com/labx-platform/testbed/pkg/composables"
	"github.com/labx-platform/testbed/pkg/repo"
)

const (
	saveQuery = `INSERT INTO test_executions (id, test_case_id, status, started_at, ended_at, duration_ms, progress, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status, ended_at = EXCLUDED.ended_at, duration_ms = EXCLUDED.duration_ms,
		progress = EXCLUDED.progress, payload = EXCLUDED.payload`

	selectPayload = `SELECT payload FROM test_executions`
)

type PgExecutionRepository struct{}

func NewPgExecutionRepository() execution.Repository {
	return &PgExecutionRepository{}
}

func (r *PgExecutionRepository) Save(ctx context.Context, e execution.Execution) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal execution")
	}
	if _, err := tx.Exec(ctx, saveQuery,
		e.ID, e.TestCaseID, string(e.Status), e.StartedAt, e.EndedAt, e.DurationMs, e.Progress, payload,
	); err != nil {
		return errors.Wrapf(err, "save execution %s", e.ID)
	}
	return nil
}

func (r *PgExecutionRepository) GetByID(ctx context.Context, id string) (execution.Execution, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return execution.Execution{}, err
	}
	var payload []byte
	if err := tx.QueryRow(ctx, selectPayload+" WHERE id = $1", id).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return execution.Execution{}, execution.ErrNotFound
		}
		return execution.Execution{}, errors.Wrapf(err, "get execution %s", id)
	}
	return decode(payload)
}

func buildWhere(params *execution.FindParams) (string, []any) {
	where := []string{}
	args := []any{}
	if params.Status != "" {
		args = append(args, string(params.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.TestCaseID != "" {
		args = append(args, params.TestCaseID)
		where = append(where, fmt.Sprintf("test_case_id = $%d", len(args)))
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func (r *PgExecutionRepository) List(ctx context.Context, params *execution.FindParams) ([]execution.Execution, error) {
	if params == nil {
		params = &execution.FindParams{}
	}
	params.Normalize()
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	where, args := buildWhere(params)
	rows, err := tx.Query(ctx, selectPayload+where+" ORDER BY started_at DESC "+repo.FormatLimitOffset(params.Limit, 0), args...)
	if err != nil {
		return nil, errors.Wrap(err, "list executions")
	}
	defer rows.Close()

	out := []execution.Execution{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "scan execution")
		}
		e, err := decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func decode(payload []byte) (execution.Execution, error) {
	var e execution.Execution
	if err := json.Unmarshal(payload, &e); err != nil {
		return execution.Execution{}, errors.Wrap(err, "decode execution payload")
	}
	return e, nil
}
