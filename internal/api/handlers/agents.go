package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/voiceagents/internal/agent"
	"github.com/nikhilbhutani/voiceagents/internal/audit"
	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/tenant"
)

// AgentService is implemented by agent.Service.
type AgentService interface {
	List(ctx context.Context, orgID uuid.UUID) ([]models.Agent, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Agent, error)
	Create(ctx context.Context, orgID uuid.UUID, req agent.CreateRequest) (*models.Agent, error)
	Update(ctx context.Context, orgID, id uuid.UUID, req agent.UpdateRequest) (*models.Agent, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	SetStructuredOutput(ctx context.Context, orgID, id uuid.UUID, req agent.StructuredOutputRequest) (*models.Agent, error)
	ClearStructuredOutput(ctx context.Context, orgID, id uuid.UUID) error
	TestWebhook(ctx context.Context, orgID, id uuid.UUID) (*agent.TestWebhookResult, error)

	UploadDocument(ctx context.Context, orgID, agentID uuid.UUID, up agent.Upload) (*models.AgentFile, error)
	ListDocuments(ctx context.Context, orgID, agentID uuid.UUID) ([]models.AgentFile, error)
	DeleteDocument(ctx context.Context, orgID, agentID, fileID uuid.UUID) error
}

// Auditor records privileged actions without failing the request.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

type AgentHandler struct {
	svc       AgentService
	audit     Auditor
	maxUpload int64
}

func NewAgentHandler(svc AgentService, auditor Auditor, maxUpload int64) *AgentHandler {
	return &AgentHandler{svc: svc, audit: auditor, maxUpload: maxUpload}
}

func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	agents, err := h.svc.List(r.Context(), tenant.IDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents, "count": len(agents)})
}

func (h *AgentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	a, err := h.svc.Get(r.Context(), tenant.IDFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req agent.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.Create(r.Context(), tenant.IDFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.Entry{
		Action:       audit.ActionAgentCreated,
		ResourceType: "agent",
		ResourceID:   &a.ID,
		Details:      map[string]any{"name": a.Name},
		IPAddress:    clientIP(r),
	})
	writeJSON(w, http.StatusCreated, a)
}

func (h *AgentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	var req agent.UpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.Update(r.Context(), tenant.IDFromContext(r.Context()), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AgentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), tenant.IDFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.Entry{
		Action:       audit.ActionAgentDeleted,
		ResourceType: "agent",
		ResourceID:   &id,
		IPAddress:    clientIP(r),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AgentHandler) SetStructuredOutput(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	var req agent.StructuredOutputRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.SetStructuredOutput(r.Context(), tenant.IDFromContext(r.Context()), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AgentHandler) ClearStructuredOutput(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.ClearStructuredOutput(r.Context(), tenant.IDFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AgentHandler) TestWebhook(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.TestWebhook(r.Context(), tenant.IDFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AgentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	files, err := h.svc.ListDocuments(r.Context(), tenant.IDFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": files, "count": len(files)})
}

func (h *AgentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	// multipart overhead on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file field required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read file"})
		return
	}

	f, err := h.svc.UploadDocument(r.Context(), tenant.IDFromContext(r.Context()), id, agent.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *AgentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	fileID, ok := urlUUID(w, r, "fileID")
	if !ok {
		return
	}
	if err := h.svc.DeleteDocument(r.Context(), tenant.IDFromContext(r.Context()), id, fileID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
