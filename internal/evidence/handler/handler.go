package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dynforms/internal/evidence/models"
	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	"dynforms/pkg/platform/httputil"
	"dynforms/pkg/requestcontext"
)

// Service defines the evidence operations exposed over HTTP.
type Service interface {
	AddDocument(ctx context.Context, principal id.Principal, instanceID id.InstanceID, req models.AddDocumentRequest) (*models.IdentityDocument, error)
	UpdateDocument(ctx context.Context, principal id.Principal, instanceID id.InstanceID, docID id.DocumentID, req models.UpdateDocumentRequest) (*models.IdentityDocument, error)
	DeleteDocument(ctx context.Context, principal id.Principal, instanceID id.InstanceID, docID id.DocumentID, deleteFile bool) error
	ListDocuments(ctx context.Context, principal id.Principal, instanceID id.InstanceID) ([]*models.IdentityDocument, error)
	AddBiometric(ctx context.Context, principal id.Principal, instanceID id.InstanceID, req models.AddBiometricRequest) (*models.BiometricCapture, error)
	UpdateBiometric(ctx context.Context, principal id.Principal, instanceID id.InstanceID, bioID id.BiometricID, req models.UpdateBiometricRequest) (*models.BiometricCapture, error)
	DeleteBiometric(ctx context.Context, principal id.Principal, instanceID id.InstanceID, bioID id.BiometricID, deleteFiles bool) error
	ListBiometrics(ctx context.Context, principal id.Principal, instanceID id.InstanceID) ([]*models.BiometricCapture, error)
}

// Handler serves the evidence routes nested under a form instance.
type Handler struct {
	evidence Service
	logger   *slog.Logger
}

func New(evidence Service, logger *slog.Logger) *Handler {
	return &Handler{evidence: evidence, logger: logger}
}

// Register mounts the evidence routes. Ownership is enforced by the service.
func (h *Handler) Register(r chi.Router) {
	r.Get("/forms/{instanceID}/documents", h.handleListDocuments)
	r.Post("/forms/{instanceID}/documents", h.handleAddDocument)
	r.Put("/forms/{instanceID}/documents/{docID}", h.handleUpdateDocument)
	r.Delete("/forms/{instanceID}/documents/{docID}", h.handleDeleteDocument)

	r.Get("/forms/{instanceID}/biometric", h.handleListBiometrics)
	r.Post("/forms/{instanceID}/biometric", h.handleAddBiometric)
	r.Put("/forms/{instanceID}/biometric/{bioID}", h.handleUpdateBiometric)
	r.Delete("/forms/{instanceID}/biometric/{bioID}", h.handleDeleteBiometric)
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	principal, instanceID, err := formParams(r)
	if err != nil {
		h.fail(w, r, "invalid documents request", err)
		return
	}
	docs, err := h.evidence.ListDocuments(r.Context(), principal, instanceID)
	if err != nil {
		h.fail(w, r, "failed to list documents", err)
		return
	}
	if docs == nil {
		docs = []*models.IdentityDocument{}
	}
	httputil.WriteJSON(w, http.StatusOK, docs)
}

func (h *Handler) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	principal, instanceID, err := formParams(r)
	if err != nil {
		h.fail(w, r, "invalid documents request", err)
		return
	}
	var req models.AddDocumentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid add document body", err)
		return
	}
	doc, err := h.evidence.AddDocument(r.Context(), principal, instanceID, req)
	if err != nil {
		h.fail(w, r, "failed to add document", err)
		return
	}
	w.Header().Set("Location", "/forms/"+instanceID.String()+"/documents/"+doc.ID.String())
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	principal, instanceID, err := formParams(r)
	if err != nil {
		h.fail(w, r, "invalid documents request", err)
		return
	}
	docID, err := id.ParseDocumentID(chi.URLParam(r, "docID"))
	if err != nil {
		h.fail(w, r, "invalid document id", err)
		return
	}
	var req models.UpdateDocumentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid update document body", err)
		return
	}
	doc, err := h.evidence.UpdateDocument(r.Context(), principal, instanceID, docID, req)
	if err != nil {
		h.fail(w, r, "failed to update document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	principal, instanceID, err := formParams(r)
	if err != nil {
		h.fail(w, r, "invalid documents request", err)
		return
	}
	docID, err := id.ParseDocumentID(chi.URLParam(r, "docID"))
	if err != nil {
		h.fail(w, r, "invalid document id", err)
		return
	}
	deleteFile, err := httputil.QueryBool(r, "deleteFile")
	if err != nil {
		h.fail(w, r, "invalid deleteFile flag", err)
		return
	}
	if err := h.evidence.DeleteDocument(r.Context(), principal, instanceID, docID, deleteFile); err != nil {
		h.fail(w, r, "failed to delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListBiometrics(w http.ResponseWriter, r *http.Request) {
	principal, instanceID, err := formParams(r)
	if err != nil {
		h.fail(w, r, "invalid biometric request", err)
		return
	}
	captures, err := h.evidence.ListBiometrics(r.Context(), principal, instanceID)
	if err != nil {
		h.fail(w, r, "failed to list biometrics", err)
		return
	}
	if captures == nil {
		captures = []*models.BiometricCapture{}
	}
	httputil.WriteJSON(w, http.StatusOK, captures)
}

func (h *Handler) handleAddBiometric(w http.ResponseWriter, r *http.Request) {
	principal, instanceID, err := formParams(r)
	if err != nil {
		h.fail(w, r, "invalid biometric request", err)
		return
	}
	var req models.AddBiometricRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid add biometric body", err)
		return
	}
	b, err := h.evidence.AddBiometric(r.Context(), principal, instanceID, req)
	if err != nil {
		h.fail(w, r, "failed to add biometric", err)
		return
	}
	w.Header().Set("Location", "/forms/"+instanceID.String()+"/biometric/"+b.ID.String())
	httputil.WriteJSON(w, http.StatusCreated, b)
}

func (h *Handler) handleUpdateBiometric(w http.ResponseWriter, r *http.Request) {
	principal, instanceID, err := formParams(r)
	if err != nil {
		h.fail(w, r, "invalid biometric request", err)
		return
	}
	bioID, err := id.ParseBiometricID(chi.URLParam(r, "bioID"))
	if err != nil {
		h.fail(w, r, "invalid biometric id", err)
		return
	}
	var req models.UpdateBiometricRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid update biometric body", err)
		return
	}
	b, err := h.evidence.UpdateBiometric(r.Context(), principal, instanceID, bioID, req)
	if err != nil {
		h.fail(w, r, "failed to update biometric", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) handleDeleteBiometric(w http.ResponseWriter, r *http.Request) {
	principal, instanceID, err := formParams(r)
	if err != nil {
		h.fail(w, r, "invalid biometric request", err)
		return
	}
	bioID, err := id.ParseBiometricID(chi.URLParam(r, "bioID"))
	if err != nil {
		h.fail(w, r, "invalid biometric id", err)
		return
	}
	deleteFiles, err := httputil.QueryBool(r, "deleteFiles")
	if err != nil {
		h.fail(w, r, "invalid deleteFiles flag", err)
		return
	}
	if err := h.evidence.DeleteBiometric(r.Context(), principal, instanceID, bioID, deleteFiles); err != nil {
		h.fail(w, r, "failed to delete biometric", err)
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
