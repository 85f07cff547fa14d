package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/orthopulse/growth-platform/internal/session"
)

// requireOrgAccess enforces that org-scoped routes are only reachable by a
// session belonging to that organization. Admin sessions may reach any org.
func requireOrgAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := strings.TrimSpace(chi.URLParam(r, "orgID"))
		if orgID == "" {
			http.Error(w, `{"error":"missing org id"}`, http.StatusBadRequest)
			return
		}

		sess, ok := session.FromContext(r.Context())
		if !ok {
			http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
			return
		}
		if sess.Role != "admin" && sess.OrgID != orgID {
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
