package layer

import (
	"net/http"

	"github.com/labx-platform/testbed/pkg/serrors"
)

var ErrNoData = serrors.NewHTTPError(http.StatusNotFound, "LAYER_DATA_NOT_FOUND", "no layer data recorded for this execution")
