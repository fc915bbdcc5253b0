package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/labx-platform/testbed/modules/testcases/domain/entities/testcase"
	"github.com/labx-platform/testbed/pkg/serrors"
)

const (
	catalogSheet = "TestCases"
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var catalogColumns = []string{
	"test_case_id", "name", "description", "category", "protocol", "protocol_version", "test_type",
	"complexity", "priority", "duration_ms", "tags", "is_active", "message_flow",
}

type ImportError struct {
	Row        int    `json:"row"`
	TestCaseID string `json:"test_case_id,omitempty"`
	Message    string `json:"message"`
}

type ImportResult struct {
	Format  string        `json:"format"`
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Failed  int           `json:"failed"`
	Errors  []ImportError `json:"errors"`
}

// Export writes every stored test case as one row of an XLSX workbook.
func (s *TestCaseService) Export(ctx context.Context, w io.Writer) (int, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", catalogSheet); err != nil {
		return 0, errors.Wrap(err, "rename sheet")
	}
	header := make([]any, len(catalogColumns))
	for i, c := range catalogColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(catalogSheet, "A1", &header); err != nil {
		return 0, errors.Wrap(err, "write header")
	}

	for i, t := range all {
		flow, err := json.Marshal(t.MessageFlow)
		if err != nil {
			return 0, errors.Wrapf(err, "encode message flow of %s", t.TestCaseID)
		}
		row := []any{
			t.TestCaseID, t.Name, t.Description, t.Category, t.Protocol, t.ProtocolVersion, t.TestType,
			string(t.Complexity), string(t.Priority), t.DurationMs, strings.Join(t.Tags, ","), t.IsActive, string(flow),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		if err := f.SetSheetRow(catalogSheet, cell, &row); err != nil {
			return 0, errors.Wrapf(err, "write row %d", i+2)
		}
	}
	if err := f.Write(w); err != nil {
		return 0, errors.Wrap(err, "write workbook")
	}
	return len(all), nil
}

// Import reads a JSON array of test cases or an XLSX workbook in the Export
// layout. Rows are upserted by test case id; invalid rows are counted as failed.
func (s *TestCaseService) Import(ctx context.Context, data []byte) (ImportResult, error) {
	dtos, format, err := decodeCatalog(data)
	if err != nil {
		return ImportResult{}, err
	}
	res := ImportResult{Format: format, Errors: []ImportError{}}
	for i, row := range dtos {
		if row.err != nil {
			res.fail(i+1, row.dto.TestCaseID, row.err)
			continue
		}
		created, err := s.importOne(ctx, &row.dto)
		if err != nil {
			res.fail(i+1, row.dto.TestCaseID, err)
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

func (r *ImportResult) fail(row int, id string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, ImportError{Row: row, TestCaseID: id, Message: err.Error()})
}

func (s *TestCaseService) importOne(ctx context.Context, dto *testcase.CreateDTO) (bool, error) {
	dto.Normalize()
	if verrs := serrors.ValidateStruct(dto); verrs != nil {
		return false, verrs
	}
	entity := dto.ToEntity(s.now())
	if err := entity.Validate(); err != nil {
		return false, err
	}
	existing, err := s.repo.GetByTestCaseID(ctx, entity.TestCaseID)
	switch {
	case err == nil:
		entity.ID = existing.ID
		entity.CreatedAt = existing.CreatedAt
		_, err = s.repo.Update(ctx, entity)
		return false, err
	case errors.Is(err, testcase.ErrNotFound):
		_, err = s.repo.Create(ctx, entity)
		return err == nil, err
	default:
		return false, err
	}
}

type importRow struct {
	dto testcase.CreateDTO
	err error
}

func decodeCatalog(data []byte) ([]importRow, string, error) {
	mtype := mimetype.Detect(data)
	trimmed := bytes.TrimSpace(data)
	switch {
	case mtype.Is("application/json") || (len(trimmed) > 0 && trimmed[0] == '['):
		var dtos []testcase.CreateDTO
		if err := json.Unmarshal(trimmed, &dtos); err != nil {
			return nil, "", serrors.NewError("INVALID_REQUEST", "invalid JSON catalog", err.Error())
		}
		rows := make([]importRow, len(dtos))
		for i, d := range dtos {
			rows[i] = importRow{dto: d}
		}
		return rows, "json", nil
	case mtype.Is(xlsxMIME) || mtype.Is("application/zip"):
		rows, err := decodeWorkbook(data)
		if err != nil {
			return nil, "", err
		}
		return rows, "xlsx", nil
	default:
		return nil, "", testcase.ErrUnsupportedFmt.WithDetails(mtype.String())
	}
}

func decodeWorkbook(data []byte) ([]importRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, testcase.ErrUnsupportedFmt.WithDetails(err.Error())
	}
	defer func() { _ = f.Close() }()

	sheet := catalogSheet
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheet = f.GetSheetList()[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrap(err, "read workbook rows")
	}
	if len(rows) == 0 {
		return []importRow{}, nil
	}

	index := map[string]int{}
	for i, h := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	out := make([]importRow, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[i])
		}
		out = append(out, rowToDTO(get))
	}
	return out, nil
}

func rowToDTO(get func(string) string) importRow {
	dto := testcase.CreateDTO{
		TestCaseID:      get("test_case_id"),
		Name:            get("name"),
		Description:     get("description"),
		Category:        get("category"),
		Protocol:        get("protocol"),
		ProtocolVersion: get("protocol_version"),
		TestType:        get("test_type"),
		Complexity:      get("complexity"),
		Priority:        get("priority"),
	}
	if v := get("duration_ms"); v != "" {
		d, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return importRow{dto: dto, err: errors.Wrap(err, "duration_ms")}
		}
		dto.DurationMs = d
	}
	for _, tag := range strings.Split(get("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			dto.Tags = append(dto.Tags, tag)
		}
	}
	if v := get("is_active"); v != "" {
		active, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			return importRow{dto: dto, err: errors.Wrap(err, "is_active")}
		}
		dto.IsActive = &active
	}
	if v := get("message_flow"); v != "" {
		if err := json.Unmarshal([]byte(v), &dto.MessageFlow); err != nil {
			return importRow{dto: dto, err: errors.Wrap(err, "message_flow")}
		}
	}
	return importRow{dto: dto}
}
