package middleware

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"

	"github.com/labx-platform/testbed/pkg/composables"
	"github.com/labx-platform/testbed/pkg/httpapi"
	"github.com/labx-platform/testbed/pkg/metrics"
)

// WithTransaction wraps a request in a transaction when a pool is in context.
// The transaction is committed only for non-error responses. Websocket
// upgrades are long lived and run without one.
func WithTransaction() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pool, err := composables.UsePool(r.Context())
			if err != nil || websocket.IsWebSocketUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}
			tx, err := pool.Begin(r.Context())
			if err != nil {
				httpapi.WriteAPIError(w, r, http.StatusInternalServerError, httpapi.CodeInternal, "failed to begin transaction")
				return
			}
			defer func() {
				if err := tx.Rollback(r.Context()); err != nil {
					if errors.Is(err, pgx.ErrTxClosed) {
						return
					}
					composables.UseLogger(r.Context()).WithError(err).Error("failed to rollback transaction")
				}
			}()
			rec := metrics.NewStatusRecorder(w)
			next.ServeHTTP(rec, r.WithContext(composables.WithTx(r.Context(), tx)))
			if rec.Status() >= http.StatusBadRequest {
				return
			}
			if err := tx.Commit(r.Context()); err != nil {
				composables.UseLogger(r.Context()).WithError(err).Error("failed to commit transaction")
			}
		})
	}
}
