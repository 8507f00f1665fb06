package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"dynforms/internal/catalog/models"
	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	"dynforms/pkg/platform/httputil"
	"dynforms/pkg/platform/middleware/admin"
	"dynforms/pkg/requestcontext"
)

// Service defines the catalog operations exposed over HTTP.
type Service interface {
	CreateTemplate(ctx context.Context, req models.CreateTemplateRequest) (*models.Template, error)
	GetTemplate(ctx context.Context, templateID id.TemplateID) (*models.Template, error)
	ListTemplates(ctx context.Context) ([]*models.Template, error)
	UpdateTemplate(ctx context.Context, templateID id.TemplateID, req models.UpdateTemplateRequest) (*models.Template, error)
	DeleteTemplate(ctx context.Context, templateID id.TemplateID) error
	CreateVersion(ctx context.Context, templateID id.TemplateID, req models.CreateVersionRequest) (*models.TemplateVersion, error)
	ListVersions(ctx context.Context, templateID id.TemplateID) ([]*models.TemplateVersion, error)
	GetLatestVersion(ctx context.Context, templateID id.TemplateID, publishedOnly bool) (*models.TemplateVersion, error)
	UpdateVersion(ctx context.Context, templateID id.TemplateID, version int, req models.UpdateVersionRequest) (*models.TemplateVersion, error)
	PublishVersion(ctx context.Context, templateID id.TemplateID, version int) (*models.TemplateVersion, error)
	DeleteVersion(ctx context.Context, templateID id.TemplateID, version int) error
}

// Handler serves /templates. Routes expect auth.RequireAuth to have run.
type Handler struct {
	catalog Service
	logger  *slog.Logger
}

func New(catalog Service, logger *slog.Logger) *Handler {
	return &Handler{catalog: catalog, logger: logger}
}

// Register mounts the catalog routes with their role policies.
func (h *Handler) Register(r chi.Router) {
	adminOnly := admin.RequireAdmin(h.logger)
	reviewer := admin.RequireReviewer(h.logger)

	r.Route("/templates", func(r chi.Router) {
		r.With(adminOnly).Post("/", h.handleCreateTemplate)
		r.With(reviewer).Get("/", h.handleListTemplates)

		r.Route("/{templateID}", func(r chi.Router) {
			r.With(reviewer).Get("/", h.handleGetTemplate)
			r.With(adminOnly).Put("/", h.handleUpdateTemplate)
			r.With(adminOnly).Delete("/", h.handleDeleteTemplate)

			r.With(adminOnly).Post("/versions", h.handleCreateVersion)
			r.With(reviewer).Get("/versions", h.handleListVersions)
			r.Get("/versions/latest", h.handleLatestVersion)
			r.With(adminOnly).Put("/versions/{version}", h.handleUpdateVersion)
			r.With(adminOnly).Post("/versions/{version}/publish", h.handlePublishVersion)
			r.With(adminOnly).Delete("/versions/{version}", h.handleDeleteVersion)
		})
	})
}

func (h *Handler) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateTemplateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid create template body", err)
		return
	}
	t, err := h.catalog.CreateTemplate(ctx, req)
	if err != nil {
		h.fail(w, r, "failed to create template", err)
		return
	}
	w.Header().Set("Location", "/templates/"+t.ID.String())
	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.catalog.ListTemplates(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list templates", err)
		return
	}
	if templates == nil {
		templates = []*models.Template{}
	}
	httputil.WriteJSON(w, http.StatusOK, templates)
}

func (h *Handler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, err := id.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		h.fail(w, r, "invalid template id", err)
		return
	}
	t, err := h.catalog.GetTemplate(r.Context(), templateID)
	if err != nil {
		h.fail(w, r, "failed to get template", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, err := id.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		h.fail(w, r, "invalid template id", err)
		return
	}
	var req models.UpdateTemplateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid update template body", err)
		return
	}
	t, err := h.catalog.UpdateTemplate(r.Context(), templateID, req)
	if err != nil {
		h.fail(w, r, "failed to update template", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, err := id.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		h.fail(w, r, "invalid template id", err)
		return
	}
	if err := h.catalog.DeleteTemplate(r.Context(), templateID); err != nil {
		h.fail(w, r, "failed to delete template", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	templateID, err := id.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		h.fail(w, r, "invalid template id", err)
		return
	}
	var req models.CreateVersionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid create version body", err)
		return
	}
	if req.CreatedBy == nil {
		if userID := requestcontext.UserID(ctx); !userID.IsNil() {
			createdBy := userID.String()
			req.CreatedBy = &createdBy
		}
	}
	v, err := h.catalog.CreateVersion(ctx, templateID, req)
	if err != nil {
		h.fail(w, r, "failed to create version", err)
		return
	}
	w.Header().Set("Location", "/templates/"+templateID.String()+"/versions/"+strconv.Itoa(v.Version))
	httputil.WriteJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleListVersions(w http.ResponseWriter, r *http.Request) {
	templateID, err := id.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		h.fail(w, r, "invalid template id", err)
		return
	}
	versions, err := h.catalog.ListVersions(r.Context(), templateID)
	if err != nil {
		h.fail(w, r, "failed to list versions", err)
		return
	}
	if versions == nil {
		versions = []*models.TemplateVersion{}
	}
	httputil.WriteJSON(w, http.StatusOK, versions)
}

func (h *Handler) handleLatestVersion(w http.ResponseWriter, r *http.Request) {
	templateID, err := id.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		h.fail(w, r, "invalid template id", err)
		return
	}
	publishedOnly, err := httputil.QueryBool(r, "published")
	if err != nil {
		h.fail(w, r, "invalid published flag", err)
		return
	}
	v, err := h.catalog.GetLatestVersion(r.Context(), templateID, publishedOnly)
	if err != nil {
		h.fail(w, r, "failed to get latest version", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleUpdateVersion(w http.ResponseWriter, r *http.Request) {
	templateID, version, err := versionParams(r)
	if err != nil {
		h.fail(w, r, "invalid version path", err)
		return
	}
	var req models.UpdateVersionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid update version body", err)
		return
	}
	v, err := h.catalog.UpdateVersion(r.Context(), templateID, version, req)
	if err != nil {
		h.fail(w, r, "failed to update version", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handlePublishVersion(w http.ResponseWriter, r *http.Request) {
	templateID, version, err := versionParams(r)
	if err != nil {
		h.fail(w, r, "invalid version path", err)
		return
	}
	v, err := h.catalog.PublishVersion(r.Context(), templateID, version)
	if err != nil {
		h.fail(w, r, "failed to publish version", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleDeleteVersion(w http.ResponseWriter, r *http.Request) {
	templateID, version, err := versionParams(r)
	if err != nil {
		h.fail(w, r, "invalid version path", err)
		return
	}
	if err := h.catalog.DeleteVersion(r.Context(), templateID, version); err != nil {
		h.fail(w, r, "failed to delete version", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func versionParams(r *http.Request) (id.TemplateID, int, error) {
	templateID, err := id.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		return id.TemplateID{}, 0, err
	}
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		return id.TemplateID{}, 0, dErrors.New(dErrors.CodeInvalidInput, "version must be a positive integer")
	}
	return templateID, version, nil
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
