package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/voiceagents/internal/models"
)

// Store persists agents and their knowledge-base files.
type Store interface {
	List(ctx context.Context, orgID uuid.UUID) ([]models.Agent, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Agent, error)
	GetByAssistantID(ctx context.Context, assistantID string) (*models.Agent, error)
	Insert(ctx context.Context, a *models.Agent) error
	Update(ctx context.Context, a *models.Agent) error
	SetStructuredOutput(ctx context.Context, orgID, id uuid.UUID, outputID *string) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error

	ListFiles(ctx context.Context, agentID uuid.UUID) ([]models.AgentFile, error)
	GetFile(ctx context.Context, agentID, fileID uuid.UUID) (*models.AgentFile, error)
	InsertFile(ctx context.Context, f *models.AgentFile) error
	DeleteFile(ctx context.Context, agentID, fileID uuid.UUID) error

	// BoundNumbers returns the voice-platform ids of active numbers routed
	// to the agent.
	BoundNumbers(ctx context.Context, orgID, agentID uuid.UUID) ([]string, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const agentColumns = `id, organization_id, name, first_message, system_prompt, voice_id,
	vapi_assistant_id, advanced_config, structured_output_id, created_at, updated_at`

func scanAgent(row pgx.Row) (*models.Agent, error) {
	var a models.Agent
	var cfg []byte
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Name, &a.FirstMessage, &a.SystemPrompt, &a.VoiceID,
		&a.VapiAssistantID, &cfg, &a.StructuredOutputID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &a.AdvancedConfig); err != nil {
			return nil, fmt.Errorf("decode advanced config: %w", err)
		}
	}
	return &a, nil
}

func (s *PGStore) List(ctx context.Context, orgID uuid.UUID) ([]models.Agent, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+agentColumns+" FROM agents WHERE organization_id = $1 ORDER BY created_at DESC", orgID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	agents := []models.Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

func (s *PGStore) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Agent, error) {
	a, err := scanAgent(s.db.QueryRow(ctx,
		"SELECT "+agentColumns+" FROM agents WHERE organization_id = $1 AND id = $2", orgID, id))
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

func (s *PGStore) GetByAssistantID(ctx context.Context, assistantID string) (*models.Agent, error) {
	a, err := scanAgent(s.db.QueryRow(ctx,
		"SELECT "+agentColumns+" FROM agents WHERE vapi_assistant_id = $1 AND vapi_assistant_id <> ''", assistantID))
	if err != nil {
		return nil, fmt.Errorf("get agent by assistant: %w", err)
	}
	return a, nil
}

// AssistantID resolves an agent of the organization to its assistant id.
func (s *PGStore) AssistantID(ctx context.Context, orgID, agentID uuid.UUID) (string, error) {
	var id string
	err := s.db.QueryRow(ctx,
		"SELECT vapi_assistant_id FROM agents WHERE organization_id = $1 AND id = $2", orgID, agentID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("agent %s: %w", agentID, models.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get assistant id: %w", err)
	}
	return id, nil
}

func (s *PGStore) Insert(ctx context.Context, a *models.Agent) error {
	cfg, err := json.Marshal(a.AdvancedConfig)
	if err != nil {
		return fmt.Errorf("encode advanced config: %w", err)
	}
	err = s.db.QueryRow(ctx,
		`INSERT INTO agents (id, organization_id, name, first_message, system_prompt, voice_id, vapi_assistant_id, advanced_config)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		a.ID, a.OrganizationID, a.Name, a.FirstMessage, a.SystemPrompt, a.VoiceID, a.VapiAssistantID, cfg,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

func (s *PGStore) Update(ctx context.Context, a *models.Agent) error {
	cfg, err := json.Marshal(a.AdvancedConfig)
	if err != nil {
		return fmt.Errorf("encode advanced config: %w", err)
	}
	err = s.db.QueryRow(ctx,
		`UPDATE agents SET name = $3, first_message = $4, system_prompt = $5, voice_id = $6,
		        advanced_config = $7, updated_at = now()
		 WHERE organization_id = $1 AND id = $2
		 RETURNING updated_at`,
		a.OrganizationID, a.ID, a.Name, a.FirstMessage, a.SystemPrompt, a.VoiceID, cfg,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update agent: %w", models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	return nil
}

func (s *PGStore) SetStructuredOutput(ctx context.Context, orgID, id uuid.UUID, outputID *string) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE agents SET structured_output_id = $3, updated_at = now() WHERE organization_id = $1 AND id = $2",
		orgID, id, outputID)
	if err != nil {
		return fmt.Errorf("set structured output: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set structured output: %w", models.ErrNotFound)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM agents WHERE organization_id = $1 AND id = $2", orgID, id)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete agent: %w", models.ErrNotFound)
	}
	return nil
}

// GetPrompt returns the agent's name and visible system prompt.
func (s *PGStore) GetPrompt(ctx context.Context, agentID uuid.UUID) (string, string, error) {
	var name, p string
	err := s.db.QueryRow(ctx, "SELECT name, system_prompt FROM agents WHERE id = $1", agentID).Scan(&name, &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", fmt.Errorf("get system prompt: %w", models.ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("get system prompt: %w", err)
	}
	return name, p, nil
}

func (s *PGStore) UpdateSystemPrompt(ctx context.Context, agentID uuid.UUID, prompt string) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE agents SET system_prompt = $2, updated_at = now() WHERE id = $1", agentID, prompt)
	if err != nil {
		return fmt.Errorf("update system prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update system prompt: %w", models.ErrNotFound)
	}
	return nil
}

const fileColumns = `id, agent_id, organization_id, file_name, file_type, file_size, storage_path,
	vapi_file_id, excerpt, created_at`

func scanFile(row pgx.Row) (*models.AgentFile, error) {
	var f models.AgentFile
	err := row.Scan(&f.ID, &f.AgentID, &f.OrganizationID, &f.FileName, &f.FileType, &f.FileSize,
		&f.StoragePath, &f.VapiFileID, &f.Excerpt, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *PGStore) ListFiles(ctx context.Context, agentID uuid.UUID) ([]models.AgentFile, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+fileColumns+" FROM agent_files WHERE agent_id = $1 ORDER BY created_at", agentID)
	if err != nil {
		return nil, fmt.Errorf("list agent files: %w", err)
	}
	defer rows.Close()

	files := []models.AgentFile{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent file: %w", err)
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

func (s *PGStore) GetFile(ctx context.Context, agentID, fileID uuid.UUID) (*models.AgentFile, error) {
	f, err := scanFile(s.db.QueryRow(ctx,
		"SELECT "+fileColumns+" FROM agent_files WHERE agent_id = $1 AND id = $2", agentID, fileID))
	if err != nil {
		return nil, fmt.Errorf("get agent file: %w", err)
	}
	return f, nil
}

func (s *PGStore) InsertFile(ctx context.Context, f *models.AgentFile) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO agent_files (id, agent_id, organization_id, file_name, file_type, file_size, storage_path, vapi_file_id, excerpt)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		f.ID, f.AgentID, f.OrganizationID, f.FileName, f.FileType, f.FileSize, f.StoragePath, f.VapiFileID, f.Excerpt,
	).Scan(&f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert agent file: %w", err)
	}
	return nil
}

func (s *PGStore) DeleteFile(ctx context.Context, agentID, fileID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM agent_files WHERE agent_id = $1 AND id = $2", agentID, fileID)
	if err != nil {
		return fmt.Errorf("delete agent file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete agent file: %w", models.ErrNotFound)
	}
	return nil
}

func (s *PGStore) BoundNumbers(ctx context.Context, orgID, agentID uuid.UUID) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT vapi_phone_number_id FROM phone_numbers
		 WHERE organization_id = $1 AND agent_id = $2 AND status = 'active' AND vapi_phone_number_id <> ''`,
		orgID, agentID)
	if err != nil {
		return nil, fmt.Errorf("list bound numbers: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan bound numbers: %w", err)
	}
	return ids, nil
}
