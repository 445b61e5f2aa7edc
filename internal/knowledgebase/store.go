package knowledgebase

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/voiceagents/internal/models"
)

// Store is the slice of agent persistence the synchronizer needs.
type Store interface {
	ListFiles(ctx context.Context, agentID uuid.UUID) ([]models.AgentFile, error)
	// GetPrompt returns the agent's name and visible system prompt.
	GetPrompt(ctx context.Context, agentID uuid.UUID) (name, systemPrompt string, err error)
	UpdateSystemPrompt(ctx context.Context, agentID uuid.UUID, prompt string) error
}
