package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dynforms/internal/forms/models"
	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	"dynforms/pkg/platform/httputil"
	"dynforms/pkg/platform/middleware/admin"
	"dynforms/pkg/requestcontext"
)

// Service defines the form instance and step operations exposed over HTTP.
type Service interface {
	CreateInstance(ctx context.Context, principal id.Principal, req models.CreateInstanceRequest) (*models.FormInstance, error)
	GetInstance(ctx context.Context, principal id.Principal, instanceID id.InstanceID) (*models.FormInstance, error)
	ListInstances(ctx context.Context, principal id.Principal) ([]*models.FormInstance, error)
	UpdateInstance(ctx context.Context, principal id.Principal, instanceID id.InstanceID, req models.UpdateInstanceRequest) (*models.FormInstance, error)
	DeleteInstance(ctx context.Context, principal id.Principal, instanceID id.InstanceID, deleteFiles bool) error
	UpsertStep(ctx context.Context, principal id.Principal, instanceID id.InstanceID, stepKey, dataJSON string) (*models.FormStepResponse, error)
	ListSteps(ctx context.Context, principal id.Principal, instanceID id.InstanceID) ([]*models.FormStepResponse, error)
	DeleteStep(ctx context.Context, principal id.Principal, instanceID id.InstanceID, stepKey string) error
}

// Handler serves /forms and the step routes beneath it.
type Handler struct {
	forms  Service
	logger *slog.Logger
}

func New(forms Service, logger *slog.Logger) *Handler {
	return &Handler{forms: forms, logger: logger}
}

// Register mounts the form routes. Patterns are flat; the evidence handler
// registers under the same /forms/{instanceID} prefix.
func (h *Handler) Register(r chi.Router) {
	adminOnly := admin.RequireAdmin(h.logger)

	r.Post("/forms", h.handleCreate)
	r.Get("/forms", h.handleList)
	r.Get("/forms/{instanceID}", h.handleGet)
	r.With(adminOnly).Patch("/forms/{instanceID}", h.handleUpdate)
	r.With(adminOnly).Delete("/forms/{instanceID}", h.handleDelete)

	r.Get("/forms/{instanceID}/steps", h.handleListSteps)
	r.Post("/forms/{instanceID}/steps/{stepKey}", h.handleUpsertStep)
	r.Put("/forms/{instanceID}/steps/{stepKey}", h.handleUpsertStep)
	r.Delete("/forms/{instanceID}/steps/{stepKey}", h.handleDeleteStep)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	principal, err := requestcontext.RequirePrincipal(r.Context())
	if err != nil {
		h.fail(w, r, "unauthenticated create form", err)
		return
	}
	var req models.CreateInstanceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid create form body", err)
		return
	}
	fi, err := h.forms.CreateInstance(r.Context(), principal, req)
	if err != nil {
		h.fail(w, r, "failed to create form", err)
		return
	}
	w.Header().Set("Location", "/forms/"+fi.ID.String())
	httputil.WriteJSON(w, http.StatusCreated, fi)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	principal, err := requestcontext.RequirePrincipal(r.Context())
	if err != nil {
		h.fail(w, r, "unauthenticated list forms", err)
		return
	}
	list, err := h.forms.ListInstances(r.Context(), principal)
	if err != nil {
		h.fail(w, r, "failed to list forms", err)
		return
	}
	if list == nil {
		list = []*models.FormInstance{}
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	principal, instanceID, err := formParams(r)
	if err != nil {
		h.fail(w, r, "invalid form request", err)
		return
	}
	fi, err := h.forms.GetInstance(r.Context(), principal, instanceID)
	if err != nil {
		h.fail(w, r, "failed to get form", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fi)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	principal, instanceID, err := formParams(r)
	if err != nil {
		h.fail(w, r, "invalid form request", err)
		return
	}
	var req models.UpdateInstanceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid update form body", err)
		return
	}
	fi, err := h.forms.UpdateInstance(r.Context(), principal, instanceID, req)
	if err != nil {
		h.fail(w, r, "failed to update form", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fi)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	principal, instanceID, err := formParams(r)
	if err != nil {
		h.fail(w, r, "invalid form request", err)
		return
	}
	deleteFiles, err := httputil.QueryBool(r, "deleteFiles")
	if err != nil {
		h.fail(w, r, "invalid deleteFiles flag", err)
		return
	}
	if err := h.forms.DeleteInstance(r.Context(), principal, instanceID, deleteFiles); err != nil {
		h.fail(w, r, "failed to delete form", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListSteps(w http.ResponseWriter, r *http.Request) {
	principal, instanceID, err := formParams(r)
	if err != nil {
		h.fail(w, r, "invalid form request", err)
		return
	}
	steps, err := h.forms.ListSteps(r.Context(), principal, instanceID)
	if err != nil {
		h.fail(w, r, "failed to list steps", err)
		return
	}
	if steps == nil {
		steps = []*models.FormStepResponse{}
	}
	httputil.WriteJSON(w, http.StatusOK, steps)
}

// handleUpsertStep serves both POST and PUT; either creates or replaces.
func (h *Handler) handleUpsertStep(w http.ResponseWriter, r *http.Request) {
	principal, instanceID, err := formParams(r)
	if err != nil {
		h.fail(w, r, "invalid form request", err)
		return
	}
	var req models.UpsertStepRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid step body", err)
		return
	}
	step, err := h.forms.UpsertStep(r.Context(), principal, instanceID, chi.URLParam(r, "stepKey"), req.DataJSON)
	if err != nil {
		h.fail(w, r, "failed to upsert step", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, step)
}

func (h *Handler) handleDeleteStep(w http.ResponseWriter, r *http.Request) {
	principal, instanceID, err := formParams(r)
	if err != nil {
		h.fail(w, r, "invalid form request", err)
		return
	}
	if err := h.forms.DeleteStep(r.Context(), principal, instanceID, chi.URLParam(r, "stepKey")); err != nil {
		h.fail(w, r, "failed to delete step", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func formParams(r *http.Request) (id.Principal, id.InstanceID, error) {
	principal, err := requestcontext.RequirePrincipal(r.Context())
	if err != nil {
		return id.Principal{}, id.InstanceID{}, err
	}
	instanceID, err := id.ParseInstanceID(chi.URLParam(r, "instanceID"))
	if err != nil {
		return id.Principal{}, id.InstanceID{}, err
	}
	return principal, instanceID, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
