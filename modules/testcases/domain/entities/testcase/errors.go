package testcase

import (
	"net/http"

	"github.com/labx-platform/testbed/pkg/serrors"
)

var (
	ErrNotFound       = serrors.NewHTTPError(http.StatusNotFound, "TEST_CASE_NOT_FOUND", "test case not found")
	ErrDuplicateID    = serrors.NewHTTPError(http.StatusConflict, "TEST_CASE_CONFLICT", "test case id already exists")
	ErrInvalidPatch   = serrors.NewHTTPError(http.StatusBadRequest, "INVALID_PATCH", "invalid merge patch")
	ErrUnknownSuite   = serrors.NewHTTPError(http.StatusBadRequest, "UNKNOWN_SUITE", "unknown generator suite")
	ErrUnsupportedFmt = serrors.NewHTTPError(http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", "unsupported import format")
)
