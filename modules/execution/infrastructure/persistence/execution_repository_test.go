package persistence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/modules/execution/domain/entities/execution"
	"github.com/labx-platform/testbed/pkg/constants"
)

type stubTx struct {
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *stubTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (s *stubTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }

func (s *stubTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return s.execFunc(ctx, sql, args...)
}

func (s *stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return s.queryFunc(ctx, sql, args...)
}

func (s *stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return s.queryRowFunc(ctx, sql, args...)
}

type payloadRow struct {
	payload []byte
	err     error
}

func (r payloadRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.payload
	return nil
}

type payloadRows struct {
	pgx.Rows
	payloads [][]byte
	idx      int
}

func (r *payloadRows) Next() bool {
	r.idx++
	return r.idx <= len(r.payloads)
}

func (r *payloadRows) Scan(dest ...any) error {
	*(dest[0].(*[]byte)) = r.payloads[r.idx-1]
	return nil
}

func (r *payloadRows) Err() error { return nil }
func (r *payloadRows) Close()     {}

func withTx(tx *stubTx) context.Context {
	return context.WithValue(context.Background(), constants.TxKey, tx)
}

func TestPgExecutionRepository_Save(t *testing.T) {
	e := execution.Execution{ID: "rt_exec_1", TestCaseID: "LTE-1", Status: execution.StatusCompleted, Progress: 100}
	tx := &stubTx{
		execFunc: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			assert.Contains(t, sql, "ON CONFLICT (id) DO UPDATE")
			require.Len(t, args, 8)
			assert.Equal(t, "completed", args[2])
			var decoded execution.Execution
			require.NoError(t, json.Unmarshal(args[7].([]byte), &decoded))
			assert.Equal(t, "LTE-1", decoded.TestCaseID)
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}
	require.NoError(t, NewPgExecutionRepository().Save(withTx(tx), e))
}

func TestPgExecutionRepository_GetByIDNotFound(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(_ context.Context, sql string, args ...any) pgx.Row {
			assert.Contains(t, sql, "WHERE id = $1")
			return payloadRow{err: pgx.ErrNoRows}
		},
	}
	_, err := NewPgExecutionRepository().GetByID(withTx(tx), "missing")
	require.ErrorIs(t, err, execution.ErrNotFound)
}

func TestPgExecutionRepository_List(t *testing.T) {
	a, _ := json.Marshal(execution.Execution{ID: "b", StartedAt: time.Unix(20, 0)})
	b, _ := json.Marshal(execution.Execution{ID: "a", StartedAt: time.Unix(10, 0)})
	tx := &stubTx{
		queryFunc: func(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
			assert.Contains(t, sql, "WHERE status = $1 AND test_case_id = $2 ORDER BY started_at DESC LIMIT 100")
			assert.Equal(t, []any{"running", "LTE-1"}, args)
			return &payloadRows{payloads: [][]byte{a, b}}, nil
		},
	}
	out, err := NewPgExecutionRepository().List(withTx(tx), &execution.FindParams{Status: execution.StatusRunning, TestCaseID: "LTE-1"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID)
}

func TestInmemExecutionRepository(t *testing.T) {
	ctx := context.Background()
	r := NewInmemExecutionRepository()
	require.NoError(t, r.Save(ctx, execution.Execution{ID: "old", TestCaseID: "A", Status: execution.StatusCompleted, StartedAt: time.Unix(1, 0)}))
	require.NoError(t, r.Save(ctx, execution.Execution{ID: "new", TestCaseID: "A", Status: execution.StatusFailed, StartedAt: time.Unix(2, 0)}))
	require.NoError(t, r.Save(ctx, execution.Execution{ID: "other", TestCaseID: "B", Status: execution.StatusCompleted, StartedAt: time.Unix(3, 0)}))

	got, err := r.GetByID(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "A", got.TestCaseID)
	_, err = r.GetByID(ctx, "nope")
	require.ErrorIs(t, err, execution.ErrNotFound)

	all, err := r.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "other", all[0].ID)

	forA, err := r.List(ctx, &execution.FindParams{TestCaseID: "A", Status: execution.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, forA, 1)
	assert.Equal(t, "old", forA[0].ID)
}
