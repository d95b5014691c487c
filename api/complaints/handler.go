package complaints

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"complaintdesk/core/auth"
	corecomplaints "complaintdesk/core/complaints"
	"complaintdesk/core/directory"
	"complaintdesk/core/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const payloadMaxBytes = 64 * 1024

// ServicePort is the part of the complaints service the HTTP layer drives.
type ServicePort interface {
	Create(ctx context.Context, actor directory.Person, title, description string) (*corecomplaints.Complaint, error)
	Resolve(ctx context.Context, actor directory.Person, id, note string) (*corecomplaints.Complaint, error)
	Reject(ctx context.Context, actor directory.Person, id, note string) (*corecomplaints.Complaint, error)
	Forward(ctx context.Context, actor directory.Person, id, note string) (*corecomplaints.Complaint, error)
	Get(ctx context.Context, id string) (*corecomplaints.Complaint, error)
	List(ctx context.Context) ([]corecomplaints.Complaint, error)
}

type Handler struct {
	svc      ServicePort
	validate *validator.Validate
	logger   *utils.Logger
}

func NewHandler(svc ServicePort, logger *utils.Logger) *Handler {
	return &Handler{svc: svc, validate: validator.New(validator.WithRequiredStructEnabled()), logger: logger}
}

type createRequest struct {
	Title       string `json:"title" validate:"max=200"`
	Description string `json:"description" validate:"max=5000"`
}

type actionRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	items, err := h.svc.List(r.Context())
	if err != nil {
		h.internal(w, r, err)
		return
	}
	items, ok := h.project(items, actor, r)
	if !ok {
		writeError(w, http.StatusBadRequest, corecomplaints.ErrorCodeValidation, corecomplaints.ErrorKeyValidation, "unknown view")
		return
	}
	items = corecomplaints.FilterStatus(items, corecomplaints.Status(strings.TrimSpace(r.URL.Query().Get("status"))))
	items = corecomplaints.Search(items, r.URL.Query().Get("q"))
	if items == nil {
		items = []corecomplaints.Complaint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	actor := currentActor(r)
	items, err := h.svc.List(r.Context())
	if err != nil {
		h.internal(w, r, err)
		return
	}
	items, ok := h.project(items, actor, r)
	if !ok {
		writeError(w, http.StatusBadRequest, corecomplaints.ErrorCodeValidation, corecomplaints.ErrorKeyValidation, "unknown view")
		return
	}
	writeJSON(w, http.StatusOK, corecomplaints.Summarize(items))
}

// project applies the view query parameter: mine (default), all or history.
func (h *Handler) project(items []corecomplaints.Complaint, actor directory.Person, r *http.Request) ([]corecomplaints.Complaint, bool) {
	switch strings.TrimSpace(r.URL.Query().Get("view")) {
	case "", "mine":
		return corecomplaints.ViewFor(items, actor), true
	case "all":
		return items, true
	case "history":
		return corecomplaints.ActedOn(items, actor.ID), true
	default:
		return nil, false
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": c})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.svc.Create(r.Context(), currentActor(r), req.Title, req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": c})
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.svc.Resolve)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.svc.Reject)
}

func (h *Handler) Forward(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.svc.Forward)
}

type actionFunc func(ctx context.Context, actor directory.Person, id, note string) (*corecomplaints.Complaint, error)

func (h *Handler) act(w http.ResponseWriter, r *http.Request, fn actionFunc) {
	var req actionRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := fn(r.Context(), currentActor(r), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": c})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, corecomplaints.ErrorCodeValidation, corecomplaints.ErrorKeyValidation, "request body is required")
		return false
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, payloadMaxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, corecomplaints.ErrorCodeValidation, corecomplaints.ErrorKeyValidation, "malformed json body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, corecomplaints.ErrorCodeValidation, corecomplaints.ErrorKeyValidation, err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if de, ok := corecomplaints.AsDomainError(err); ok {
		writeError(w, domainErrorHTTPStatus(de.Code), de.Code, de.I18NKey, de.Message)
		return
	}
	h.internal(w, r, err)
}

func (h *Handler) internal(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	writeError(w, http.StatusInternalServerError, "complaints.internal", "common.serverError", "")
}

func domainErrorHTTPStatus(code string) int {
	switch code {
	case corecomplaints.ErrorCodeNotFound:
		return http.StatusNotFound
	case corecomplaints.ErrorCodeUnauthorized:
		return http.StatusForbidden
	case corecomplaints.ErrorCodeInvalidTransition, corecomplaints.ErrorCodeConflict:
		return http.StatusConflict
	case corecomplaints.ErrorCodeNoHandlerFound, corecomplaints.ErrorCodeValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func currentActor(r *http.Request) directory.Person {
	p, _ := auth.CurrentActor(r.Context())
	return p
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, i18nKey, message string) {
	body := map[string]string{"code": code, "i18n_key": i18nKey}
	if message != "" {
		body["message"] = message
	}
	writeJSON(w, status, map[string]any{"error": body})
}
