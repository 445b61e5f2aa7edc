package agent

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/vapi"
	"github.com/nikhilbhutani/voiceagents/pkg/textextract"
)

const excerptChars = 1500

type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// UploadDocument stores the file, registers it with the voice platform and
// resyncs the agent's knowledge base. A failed step removes what the earlier
// steps created.
func (s *Service) UploadDocument(ctx context.Context, orgID, agentID uuid.UUID, up Upload) (*models.AgentFile, error) {
	a, err := s.store.Get(ctx, orgID, agentID)
	if err != nil {
		return nil, err
	}

	name := cleanFileName(up.FileName)
	if name == "" {
		return nil, fmt.Errorf("file name is required: %w", models.ErrInvalid)
	}
	size := int64(len(up.Data))
	if size == 0 {
		return nil, fmt.Errorf("file is empty: %w", models.ErrInvalid)
	}
	if s.cfg.MaxUploadBytes > 0 && size > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("file exceeds %d bytes: %w", s.cfg.MaxUploadBytes, models.ErrInvalid)
	}
	fileType := textextract.DetectType(name, up.ContentType)
	if fileType == "" {
		return nil, fmt.Errorf("unsupported file type, accepted: %s: %w",
			strings.Join(textextract.SupportedTypes(), ", "), models.ErrInvalid)
	}
	contentType := textextract.ContentType(fileType)

	f := &models.AgentFile{
		ID:             uuid.New(),
		AgentID:        agentID,
		OrganizationID: orgID,
		FileName:       name,
		FileType:       strings.TrimPrefix(fileType, "."),
		FileSize:       size,
	}
	f.StoragePath = path.Join(orgID.String(), agentID.String(), f.ID.String()+"-"+name)
	log := slog.With("agent_id", agentID, "file_id", f.ID)

	if err := s.files.Upload(ctx, f.StoragePath, up.Data, contentType); err != nil {
		return nil, fmt.Errorf("store file: %w: %w", models.ErrUpstream, err)
	}

	uploaded, err := s.platform.UploadFile(ctx, name, contentType, up.Data)
	if err != nil {
		if derr := s.files.Delete(context.WithoutCancel(ctx), f.StoragePath); derr != nil {
			log.Warn("remove stored file after failed upload", "error", derr)
		}
		return nil, fmt.Errorf("upload file: %w: %w", models.ErrUpstream, err)
	}
	f.VapiFileID = uploaded.ID

	if excerpt, err := textextract.Excerpt(up.Data, fileType, excerptChars); err != nil {
		log.Warn("text extraction failed", "file_type", fileType, "error", err)
	} else {
		f.Excerpt = excerpt
	}

	if err := s.store.InsertFile(ctx, f); err != nil {
		s.removeFileObjects(context.WithoutCancel(ctx), f)
		return nil, err
	}

	// The document is kept even if the sync fails; the next change retries.
	_ = s.kb.Sync(ctx, agentID, a.VapiAssistantID)

	log.Info("document uploaded", "file_type", f.FileType, "size", size)
	return f, nil
}

// ListDocuments returns the agent's files with short-lived download links.
// A link that cannot be signed is left null.
func (s *Service) ListDocuments(ctx context.Context, orgID, agentID uuid.UUID) ([]models.AgentFile, error) {
	if _, err := s.store.Get(ctx, orgID, agentID); err != nil {
		return nil, err
	}
	files, err := s.store.ListFiles(ctx, agentID)
	if err != nil {
		return nil, err
	}
	for i := range files {
		u, err := s.files.SignedURL(ctx, files[i].StoragePath, s.cfg.SignedURLTTL)
		if err != nil {
			slog.Warn("sign download url failed", "file_id", files[i].ID, "error", err)
			continue
		}
		files[i].DownloadURL = &u
	}
	return files, nil
}

// DeleteDocument removes the row and resyncs before deleting the platform
// file, so the query tool never references a file that is already gone.
func (s *Service) DeleteDocument(ctx context.Context, orgID, agentID, fileID uuid.UUID) error {
	a, err := s.store.Get(ctx, orgID, agentID)
	if err != nil {
		return err
	}
	f, err := s.store.GetFile(ctx, agentID, fileID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteFile(ctx, agentID, fileID); err != nil {
		return err
	}

	_ = s.kb.Sync(ctx, agentID, a.VapiAssistantID)

	s.removeFileObjects(ctx, f)
	slog.Info("document deleted", "agent_id", agentID, "file_id", fileID)
	return nil
}

func (s *Service) removeFileObjects(ctx context.Context, f *models.AgentFile) {
	if f.VapiFileID != "" {
		if err := s.platform.DeleteFile(ctx, f.VapiFileID); err != nil && !vapi.IsNotFound(err) {
			slog.Warn("delete platform file failed", "file_id", f.ID, "vapi_file_id", f.VapiFileID, "error", err)
		}
	}
	if f.StoragePath != "" {
		if err := s.files.Delete(ctx, f.StoragePath); err != nil {
			slog.Warn("delete stored file failed", "file_id", f.ID, "error", err)
		}
	}
}

func cleanFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
