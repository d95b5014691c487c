package complaints

import (
	"net/http"

	"complaintdesk/core/rbac"

	"github.com/go-chi/chi/v5"
)

type RouteDeps struct {
	WithSession       func(http.HandlerFunc) http.HandlerFunc
	RequirePermission func(rbac.Permission) func(http.HandlerFunc) http.HandlerFunc
	Handler           *Handler
}

func RegisterRoutes(deps RouteDeps) http.Handler {
	r := chi.NewRouter()
	h := deps.Handler
	withSession := deps.WithSession
	require := deps.RequirePermission

	r.MethodFunc(http.MethodGet, "/complaints", withSession(require(rbac.PermComplaintsRead)(h.List)))
	r.MethodFunc(http.MethodPost, "/complaints", withSession(require(rbac.PermComplaintsCreate)(h.Create)))
	r.MethodFunc(http.MethodGet, "/complaints/stats", withSession(require(rbac.PermComplaintsRead)(h.Stats)))
	r.MethodFunc(http.MethodGet, "/complaints/{id}", withSession(require(rbac.PermComplaintsRead)(h.Get)))
	r.MethodFunc(http.MethodPost, "/complaints/{id}/resolve", withSession(require(rbac.PermComplaintsAct)(h.Resolve)))
	r.MethodFunc(http.MethodPost, "/complaints/{id}/reject", withSession(require(rbac.PermComplaintsAct)(h.Reject)))
	r.MethodFunc(http.MethodPost, "/complaints/{id}/forward", withSession(require(rbac.PermComplaintsForward)(h.Forward)))
	return r
}
