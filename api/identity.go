/*
identity.go - Verified caller identity

Authentication is an external collaborator: an upstream gateway verifies
credentials and forwards the caller's stable identity in the X-User-ID
header. This middleware lifts that identity into the request context;
handlers behind RequireIdentity can rely on CallerID being non-empty.
*/
package api

import (
	"context"
	"net/http"
)

type contextKey string

const callerIDKey contextKey = "caller_id"

// IdentityHeader carries the verified caller identity.
const IdentityHeader = "X-User-ID"

// Identity stores the verified caller identity, if any, in the request
// context.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(IdentityHeader); id != "" {
			r = r.WithContext(context.WithValue(r.Context(), callerIDKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireIdentity rejects requests that arrived without a verified identity.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CallerID(r.Context()) == "" {
			writeError(w, http.StatusUnauthorized, "Missing caller identity", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CallerID returns the verified caller identity, or "" when absent.
func CallerID(ctx context.Context) string {
	id, _ := ctx.Value(callerIDKey).(string)
	return id
}
