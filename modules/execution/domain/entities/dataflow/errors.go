package dataflow

import (
	"net/http"

	"github.com/labx-platform/testbed/pkg/serrors"
)

var (
	ErrNotFound   = serrors.NewHTTPError(http.StatusNotFound, "DATAFLOW_EXECUTION_NOT_FOUND", "data flow execution not found")
	ErrNotRunning  = serrors.NewHTTPError(http.StatusConflict, "DATAFLOW_NOT_RUNNING", "no data flow execution is running")
)
