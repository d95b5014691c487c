package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"complaintdesk/core/auth"
	"complaintdesk/core/directory"
	"complaintdesk/core/notify"
	"complaintdesk/core/routing"
	"complaintdesk/core/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Person    directory.Person `json:"person"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "auth.bad_request", "common.badRequest", "malformed json body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "auth.validation", "auth.errors.validation", err.Error())
		return
	}
	person, err := s.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.auditLog(r, req.Email, "auth.login.failed", "")
		writeError(w, http.StatusUnauthorized, "auth.invalid_credentials", "auth.errors.invalidCredentials", "")
		return
	}
	token, sess, err := s.auth.IssueToken(person)
	if err != nil {
		s.logger.Errorf("issue token for %s: %v", person.ID, err)
		writeError(w, http.StatusInternalServerError, "app.internal", "common.serverError", "")
		return
	}
	s.auditLog(r, person.ID, "auth.login", "session="+sess.ID)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: sess.ExpiresAt, Person: person})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"person":      sess.Person,
		"permissions": s.policy.Permissions(string(sess.Person.Role)),
		"expires_at":  sess.ExpiresAt,
	})
}

func (s *Server) getPerson(w http.ResponseWriter, r *http.Request) {
	p, ok := s.people.Lookup(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "people.not_found", "people.errors.notFound", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": p})
}

// chain shows the escalation path a complaint by the given student would take.
func (s *Server) chain(w http.ResponseWriter, r *http.Request) {
	p, ok := s.people.Lookup(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "people.not_found", "people.errors.notFound", "")
		return
	}
	chain, err := s.resolver.Chain(p)
	resp := map[string]any{"items": nonNilPeople(chain), "complete": err == nil}
	if err != nil {
		if !errors.Is(err, routing.ErrNoHandlerFound) && !errors.Is(err, routing.ErrForwardNotAllowed) {
			s.logger.Errorf("chain for %s: %v", p.ID, err)
			writeError(w, http.StatusInternalServerError, "app.internal", "common.serverError", "")
			return
		}
		resp["gap"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func nonNilPeople(in []directory.Person) []directory.Person {
	if in == nil {
		return []directory.Person{}
	}
	return in
}

// inbox lists notifications addressed to the caller, newest first.
func (s *Server) inbox(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFrom(r.Context())
	items, err := s.outbox.ListForRecipient(r.Context(), sess.Person.ID, parseLimit(r, 50))
	if err != nil {
		s.logger.Errorf("inbox for %s: %v", sess.Person.ID, err)
		writeError(w, http.StatusInternalServerError, "app.internal", "common.serverError", "")
		return
	}
	if items == nil {
		items = []notify.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	items, err := s.audits.List(r.Context(), parseLimit(r, 100))
	if err != nil {
		s.logger.Errorf("audit list: %v", err)
		writeError(w, http.StatusInternalServerError, "app.internal", "common.serverError", "")
		return
	}
	if items == nil {
		items = []store.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) auditLog(r *http.Request, username, action, details string) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Log(r.Context(), username, action, details); err != nil {
		s.logger.Errorf("audit %s: %v", action, err)
	}
}

func parseLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("limit")))
	if err != nil || n <= 0 || n > 500 {
		return def
	}
	return n
}
