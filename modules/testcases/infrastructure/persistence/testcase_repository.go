package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/labx-platform/testbed/modules/testcases/domain/entities/testcase"
	"github.com/labx-platform/testbed/pkg/composables"
	"github.com/labx-platform/testbed/pkg/repo"
)

const (
	selectColumns = `id, test_case_id, name, description, category, protocol, protocol_version, test_type,
		complexity, priority, duration_ms, tags, message_flow, layers, prerequisites, expected_results,
		success_criteria, failure_scenarios, performance_metrics, test_environment, is_active, created_at, updated_at`

	insertQuery = `INSERT INTO test_cases (` + selectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`

	updateQuery = `UPDATE test_cases SET
		test_case_id = $2, name = $3, description = $4, category = $5, protocol = $6, protocol_version = $7,
		test_type = $8, complexity = $9, priority = $10, duration_ms = $11, tags = $12, message_flow = $13,
		layers = $14, prerequisites = $15, expected_results = $16, success_criteria = $17,
		failure_scenarios = $18, performance_metrics = $19, test_environment = $20, is_active = $21,
		updated_at = $22
		WHERE id = $1`

	upsertQuery = insertQuery + `
		ON CONFLICT (test_case_id) DO UPDATE SET
		name = EXCLUDED.name, description = EXCLUDED.description, category = EXCLUDED.category,
		protocol = EXCLUDED.protocol, protocol_version = EXCLUDED.protocol_version, test_type = EXCLUDED.test_type,
		complexity = EXCLUDED.complexity, priority = EXCLUDED.priority, duration_ms = EXCLUDED.duration_ms,
		tags = EXCLUDED.tags, message_flow = EXCLUDED.message_flow, layers = EXCLUDED.layers,
		prerequisites = EXCLUDED.prerequisites, expected_results = EXCLUDED.expected_results,
		success_criteria = EXCLUDED.success_criteria, failure_scenarios = EXCLUDED.failure_scenarios,
		performance_metrics = EXCLUDED.performance_metrics, test_environment = EXCLUDED.test_environment,
		is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted, id, created_at`

	priorityOrder = `CASE priority WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END`
)

type PgTestCaseRepository struct{}

func NewPgTestCaseRepository() testcase.Repository {
	return &PgTestCaseRepository{}
}

func buildWhere(params *testcase.FindParams) (string, []any) {
	where := []string{"1 = 1"}
	args := []any{}
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if params.Category != "" {
		add("category = $%d", params.Category)
	}
	if params.Protocol != "" {
		add("protocol = $%d", params.Protocol)
	}
	if params.TestType != "" {
		add("test_type = $%d", params.TestType)
	}
	if params.Complexity != "" {
		add("complexity = $%d", strings.ToLower(params.Complexity))
	}
	if params.Active != nil {
		add("is_active = $%d", *params.Active)
	}
	if len(params.Tags) > 0 {
		add("tags && $%d", params.Tags)
	}
	if q := strings.TrimSpace(params.Search); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR test_case_id ILIKE $%d OR description ILIKE $%d)", n, n, n))
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func orderBy(params *testcase.FindParams) string {
	dir := "ASC"
	if params.Order == "desc" {
		dir = "DESC"
	}
	col := "name"
	switch params.Sort {
	case testcase.SortByCreatedAt:
		col = "created_at"
	case testcase.SortByDurationMs:
		col = "duration_ms"
	case testcase.SortByPriority:
		col = priorityOrder
	}
	return fmt.Sprintf(" ORDER BY %s %s, test_case_id ASC", col, dir)
}

func (r *PgTestCaseRepository) Find(ctx context.Context, params *testcase.FindParams) ([]testcase.TestCase, int64, error) {
	if params == nil {
		params = &testcase.FindParams{}
	}
	params.Normalize()
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}

	where, args := buildWhere(params)
	var total int64
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM test_cases"+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count test cases")
	}

	query := "SELECT " + selectColumns + " FROM test_cases" + where + orderBy(params) + " " +
		repo.FormatLimitOffset(params.Limit, params.Offset())
	out, err := r.queryTestCases(ctx, tx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *PgTestCaseRepository) Facets(ctx context.Context, params *testcase.FindParams) (testcase.Facets, error) {
	if params == nil {
		params = &testcase.FindParams{}
	}
	params.Normalize()
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return testcase.Facets{}, err
	}
	where, args := buildWhere(params)
	rows, err := tx.Query(ctx, "SELECT category, test_type, complexity, COUNT(*) FROM test_cases"+where+
		" GROUP BY category, test_type, complexity", args...)
	if err != nil {
		return testcase.Facets{}, errors.Wrap(err, "query facets")
	}
	defer rows.Close()

	facets := testcase.NewFacets()
	for rows.Next() {
		var category, testType, complexity string
		var n int
		if err := rows.Scan(&category, &testType, &complexity, &n); err != nil {
			return testcase.Facets{}, errors.Wrap(err, "scan facet")
		}
		if category != "" {
			facets.Categories[category] += n
		}
		if testType != "" {
			facets.TestTypes[testType] += n
		}
		if complexity != "" {
			facets.Complexities[complexity] += n
		}
	}
	return facets, rows.Err()
}

func (r *PgTestCaseRepository) GetByID(ctx context.Context, id uuid.UUID) (testcase.TestCase, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *PgTestCaseRepository) GetByTestCaseID(ctx context.Context, testCaseID string) (testcase.TestCase, error) {
	return r.getOne(ctx, "test_case_id = $1", strings.TrimSpace(testCaseID))
}

func (r *PgTestCaseRepository) All(ctx context.Context) ([]testcase.TestCase, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return r.queryTestCases(ctx, tx, "SELECT "+selectColumns+" FROM test_cases ORDER BY category, test_case_id")
}

func (r *PgTestCaseRepository) getOne(ctx context.Context, clause string, arg any) (testcase.TestCase, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return testcase.TestCase{}, err
	}
	out, err := r.queryTestCases(ctx, tx, "SELECT "+selectColumns+" FROM test_cases WHERE "+clause, arg)
	if err != nil {
		return testcase.TestCase{}, err
	}
	if len(out) == 0 {
		return testcase.TestCase{}, testcase.ErrNotFound
	}
	return out[0], nil
}

func (r *PgTestCaseRepository) Create(ctx context.Context, t testcase.TestCase) (testcase.TestCase, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return testcase.TestCase{}, err
	}
	args, err := rowArgs(t)
	if err != nil {
		return testcase.TestCase{}, err
	}
	if _, err := tx.Exec(ctx, insertQuery, args...); err != nil {
		if isUniqueViolation(err) {
			return testcase.TestCase{}, testcase.ErrDuplicateID.WithDetails(t.TestCaseID)
		}
		return testcase.TestCase{}, errors.Wrap(err, "insert test case")
	}
	return t, nil
}

func (r *PgTestCaseRepository) Update(ctx context.Context, t testcase.TestCase) (testcase.TestCase, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return testcase.TestCase{}, err
	}
	args, err := rowArgs(t)
	if err != nil {
		return testcase.TestCase{}, err
	}
	// created_at is immutable; updated_at takes its slot.
	args = append(args[:21:21], t.UpdatedAt)
	tag, err := tx.Exec(ctx, updateQuery, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return testcase.TestCase{}, testcase.ErrDuplicateID.WithDetails(t.TestCaseID)
		}
		return testcase.TestCase{}, errors.Wrap(err, "update test case")
	}
	if tag.RowsAffected() == 0 {
		return testcase.TestCase{}, testcase.ErrNotFound
	}
	return t, nil
}

func (r *PgTestCaseRepository) Upsert(ctx context.Context, t testcase.TestCase) (testcase.TestCase, bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return testcase.TestCase{}, false, err
	}
	args, err := rowArgs(t)
	if err != nil {
		return testcase.TestCase{}, false, err
	}
	var inserted bool
	if err := tx.QueryRow(ctx, upsertQuery, args...).Scan(&inserted, &t.ID, &t.CreatedAt); err != nil {
		return testcase.TestCase{}, false, errors.Wrap(err, "upsert test case")
	}
	return t, inserted, nil
}

func (r *PgTestCaseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, "DELETE FROM test_cases WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "delete test case")
	}
	if tag.RowsAffected() == 0 {
		return testcase.ErrNotFound
	}
	return nil
}

func (r *PgTestCaseRepository) queryTestCases(ctx context.Context, tx repo.Tx, query string, args ...any) ([]testcase.TestCase, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query test cases")
	}
	defer rows.Close()

	out := []testcase.TestCase{}
	for rows.Next() {
		t, err := scanTestCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate test cases")
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type jsonColumns struct {
	flow, layers, prerequisites, expected, success, failure, performance, environment []byte
}

func rowArgs(t testcase.TestCase) ([]any, error) {
	t.Normalize()
	var cols jsonColumns
	targets := []struct {
		dst *[]byte
		v   any
	}{
		{&cols.flow, t.MessageFlow},
		{&cols.layers, t.Layers},
		{&cols.prerequisites, t.Prerequisites},
		{&cols.expected, t.ExpectedResults},
		{&cols.success, t.SuccessCriteria},
		{&cols.failure, t.FailureScenarios},
		{&cols.performance, t.PerformanceMetrics},
		{&cols.environment, t.TestEnvironment},
	}
	for _, target := range targets {
		b, err := json.Marshal(target.v)
		if err != nil {
			return nil, errors.Wrap(err, "encode jsonb column")
		}
		*target.dst = b
	}
	if t.Layers == nil {
		cols.layers = []byte("{}")
	}
	return []any{
		t.ID, t.TestCaseID, t.Name, t.Description, t.Category, t.Protocol, t.ProtocolVersion, t.TestType,
		string(t.Complexity), string(t.Priority), t.DurationMs, t.Tags, cols.flow, cols.layers,
		cols.prerequisites, cols.expected, cols.success, cols.failure, cols.performance, cols.environment,
		t.IsActive, t.CreatedAt, t.UpdatedAt,
	}, nil
}

func scanTestCase(row pgx.Row) (testcase.TestCase, error) {
	var (
		t          testcase.TestCase
		complexity string
		priority   string
		cols       jsonColumns
	)
	err := row.Scan(
		&t.ID, &t.TestCaseID, &t.Name, &t.Description, &t.Category, &t.Protocol, &t.ProtocolVersion, &t.TestType,
		&complexity, &priority, &t.DurationMs, &t.Tags, &cols.flow, &cols.layers,
		&cols.prerequisites, &cols.expected, &cols.success, &cols.failure, &cols.performance, &cols.environment,
		&t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return testcase.TestCase{}, testcase.ErrNotFound
		}
		return testcase.TestCase{}, errors.Wrap(err, "scan test case")
	}
	t.Complexity = testcase.Complexity(complexity)
	t.Priority = testcase.Priority(priority)

	decode := []struct {
		src []byte
		dst any
	}{
		{cols.flow, &t.MessageFlow},
		{cols.layers, &t.Layers},
		{cols.prerequisites, &t.Prerequisites},
		{cols.expected, &t.ExpectedResults},
		{cols.success, &t.SuccessCriteria},
		{cols.failure, &t.FailureScenarios},
		{cols.performance, &t.PerformanceMetrics},
		{cols.environment, &t.TestEnvironment},
	}
	for _, d := range decode {
		if len(d.src) == 0 {
			continue
		}
		if err := json.Unmarshal(d.src, d.dst); err != nil {
			return testcase.TestCase{}, errors.Wrap(err, "decode jsonb column")
		}
	}
	t.Normalize()
	return t, nil
}
