package models

import (
	"time"

	"github.com/google/uuid"
)

// Agent is a voice assistant configuration. SystemPrompt holds only the part
// of the prompt the organization can see and edit.
type Agent struct {
	ID                 uuid.UUID      `json:"id" db:"id"`
	OrganizationID     uuid.UUID      `json:"organization_id" db:"organization_id"`
	Name               string         `json:"name" db:"name"`
	FirstMessage       string         `json:"first_message" db:"first_message"`
	SystemPrompt       string         `json:"system_prompt" db:"system_prompt"`
	VoiceID            string         `json:"voice_id" db:"voice_id"`
	VapiAssistantID    string         `json:"vapi_assistant_id,omitempty" db:"vapi_assistant_id"`
	AdvancedConfig     AdvancedConfig `json:"advanced_config" db:"advanced_config"`
	StructuredOutputID *string        `json:"structured_output_id,omitempty" db:"structured_output_id"`
	CreatedAt          time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at" db:"updated_at"`
}

// AdvancedConfig is stored as a JSON blob next to the agent row.
type AdvancedConfig struct {
	ModelProvider      string            `json:"model_provider,omitempty"`
	Model              string            `json:"model,omitempty"`
	Temperature        *float64          `json:"temperature,omitempty"`
	MaxTokens          int               `json:"max_tokens,omitempty"`
	VoiceProvider      string            `json:"voice_provider,omitempty"`
	MaxDurationSeconds int               `json:"max_duration_seconds,omitempty"`
	EndCallPhrases     []string          `json:"end_call_phrases,omitempty"`
	WebhookURL         string            `json:"webhook_url,omitempty"`
	WebhookSecret      string            `json:"webhook_secret,omitempty"`
	WebhookHeaders     map[string]string `json:"webhook_headers,omitempty"`
}

// AgentFile is one knowledge-base document uploaded for an agent.
type AgentFile struct {
	ID             uuid.UUID `json:"id" db:"id"`
	AgentID        uuid.UUID `json:"agent_id" db:"agent_id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	FileName       string    `json:"file_name" db:"file_name"`
	FileType       string    `json:"file_type" db:"file_type"`
	FileSize       int64     `json:"file_size" db:"file_size"`
	StoragePath    string    `json:"-" db:"storage_path"`
	VapiFileID     string    `json:"vapi_file_id" db:"vapi_file_id"`
	Excerpt        string    `json:"-" db:"excerpt"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`

	DownloadURL *string `json:"download_url"`
}
