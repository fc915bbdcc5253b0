package loadtest

import (
	"net/http"

	"github.com/labx-platform/testbed/pkg/serrors"
)

var (
	ErrConfigNotFound   = serrors.NewHTTPError(http.StatusNotFound, "LOAD_TEST_CONFIG_NOT_FOUND", "Test configuration not found")
	ErrNotFound         = serrors.NewHTTPError(http.StatusNotFound, "LOAD_TEST_NOT_FOUND", "load test execution not found")
	ErrConfigDisabled   = serrors.NewHTTPError(http.StatusConflict, "LOAD_TEST_INVALID_STATE", "test configuration is disabled")
	ErrInvalidState     = serrors.NewHTTPError(http.StatusConflict, "LOAD_TEST_INVALID_STATE", "load test is not running")
	ErrNotCompleted     = serrors.NewHTTPError(http.StatusConflict, "LOAD_TEST_INVALID_STATE", "load test has not completed")
	ErrBaselineNotFound = serrors.NewHTTPError(http.StatusNotFound, "LOAD_TEST_BASELINE_NOT_FOUND", "no baseline set for this configuration")
	ErrBaselineMismatch = serrors.NewHTTPError(http.StatusUnprocessableEntity, "LOAD_TEST_BASELINE_MISMATCH", "execution belongs to a different configuration")
	ErrInvalidTarget    = serrors.NewHTTPError(http.StatusUnprocessableEntity, "LOAD_TEST_INVALID_TARGET", "live targets need an absolute http(s) URL")
	ErrInvalidScenarios = serrors.NewHTTPError(http.StatusUnprocessableEntity, "LOAD_TEST_INVALID_SCENARIOS", "scenario weights must add up to a positive total")
	ErrLoadTooLarge     = serrors.NewHTTPError(http.StatusUnprocessableEntity, "LOAD_TEST_TOO_LARGE", "simulated load is too large")
)
