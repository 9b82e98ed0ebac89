package session

import (
	"context"
	"net/http"
)

type ctxKey struct{}

// Middleware leases the current connection for the whole request and makes
// it available through FromContext. Requests arriving while nothing is
// connected pass through without a handle; handlers decide how to answer.
//
// Never mount it on the route that calls Connect: the request's own lease
// would block the swap forever.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, release, err := m.Acquire()
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		defer release()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, h)))
	})
}

// FromContext returns the handle leased by Middleware, if any.
func FromContext(ctx context.Context) (*Handle, bool) {
	h, ok := ctx.Value(ctxKey{}).(*Handle)
	return h, ok && h != nil
}
