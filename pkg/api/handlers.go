package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	apperrors "github.com/jordigilh/docflow/internal/errors"
	"github.com/jordigilh/docflow/pkg/workflow/engine"
)

var validate = validator.New()

type handlers struct {
	engine *engine.Engine
	docs   Documents
	log    *logrus.Logger
}

type createDocumentRequest struct {
	Title  string         `json:"title" validate:"required"`
	Config *engine.Config `json:"config"`
}

type startRequest struct {
	DocumentID string         `json:"document_id" validate:"required"`
	Prompt     string         `json:"prompt" validate:"required"`
	Config     *engine.Config `json:"config"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (h *handlers) createDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	config := engine.DefaultConfig()
	if req.Config != nil {
		config = *req.Config
	}

	doc, err := h.docs.Create(req.Title, config)
	if err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to create document"))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *handlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	docs, err := h.docs.List(userID)
	if err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to list documents"))
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	handle, err := h.engine.Start(r.Context(), req.DocumentID, req.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: "workflow started",
		Data:    map[string]string{"task_id": handle.DocumentID + "-" + handle.Stage},
	})
}

func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.engine.Stop(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "workflow stopped"})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snapshot, err := h.engine.Status(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *handlers) nodes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snapshot, err := h.engine.Status(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot.Nodes)
}

func (h *handlers) rollback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	nodeID := chi.URLParam(r, "node_id")
	if err := h.engine.RollbackTo(r.Context(), id, nodeID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "rollback enqueued"})
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, apperrors.NewValidationError("malformed request body"))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, apperrors.NewValidationError(formatValidationError(err)))
		return false
	}
	return true
}

func formatValidationError(err error) string {
	fields := make([]string, 0)
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
	}
	return "missing or invalid field(s): " + strings.Join(fields, ", ")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := apperrors.GetStatusCode(err)
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": apperrors.SafeErrorMessage(err),
	})
}
