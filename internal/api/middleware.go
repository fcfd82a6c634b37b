package api

import (
	"context"
	"net/http"
	"strconv"
)

type ctxKey int

const ownerKey ctxKey = iota

// OwnerFromContext returns the owner id stamped by RequireOwner.
func OwnerFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(ownerKey).(int64)
	return id
}

// RequireOwner reads the X-Owner-ID header set by the auth gateway in front
// of this service. Requests without it never reach a handler.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get("X-Owner-ID"), 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing or invalid X-Owner-ID header"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, id)))
	})
}
