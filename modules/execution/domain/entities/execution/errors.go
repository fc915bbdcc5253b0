package execution

import (
	"net/http"

	"github.com/labx-platform/testbed/pkg/serrors"
)

var (
	ErrNotFound         = serrors.NewHTTPError(http.StatusNotFound, "EXECUTION_NOT_FOUND", "execution not found")
	ErrInvalidState     = serrors.NewHTTPError(http.StatusConflict, "EXECUTION_INVALID_STATE", "execution is not running")
	ErrTestCaseNotFound = serrors.NewHTTPError(http.StatusNotFound, "TEST_CASE_NOT_FOUND", "test case not found")
)
