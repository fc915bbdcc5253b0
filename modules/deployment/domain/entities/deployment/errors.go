package deployment

import (
	"net/http"

	"github.com/labx-platform/testbed/pkg/serrors"
)

var (
	ErrConfigNotFound   = serrors.NewHTTPError(http.StatusNotFound, "DEPLOYMENT_CONFIG_NOT_FOUND", "Deployment configuration not found")
	ErrNotFound         = serrors.NewHTTPError(http.StatusNotFound, "DEPLOYMENT_NOT_FOUND", "deployment not found")
	ErrConfigDisabled   = serrors.NewHTTPError(http.StatusConflict, "DEPLOYMENT_INVALID_STATE", "deployment configuration is disabled")
	ErrInvalidState     = serrors.NewHTTPError(http.StatusConflict, "DEPLOYMENT_INVALID_STATE", "deployment is not in progress")
	ErrInvalidVersion   = serrors.NewHTTPError(http.StatusUnprocessableEntity, "DEPLOYMENT_INVALID_VERSION", "version is not a valid semantic version")
	ErrNoRollbackTarget = serrors.NewHTTPError(http.StatusConflict, "DEPLOYMENT_NO_ROLLBACK_TARGET", "no completed deployment older than the current version")
)
