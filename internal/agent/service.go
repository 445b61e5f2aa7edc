// Package agent manages voice agents, their mirror on the voice platform and
// their knowledge-base documents.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/voiceagents/internal/knowledgebase"
	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/prompt"
	"github.com/nikhilbhutani/voiceagents/internal/storage"
	"github.com/nikhilbhutani/voiceagents/internal/vapi"
	"github.com/nikhilbhutani/voiceagents/internal/webhook"
)

// Platform is the subset of the voice-platform client agents need.
type Platform interface {
	CreateAssistant(ctx context.Context, a *vapi.Assistant) (*vapi.Assistant, error)
	GetAssistant(ctx context.Context, id string) (*vapi.Assistant, error)
	UpdateAssistant(ctx context.Context, id string, a *vapi.Assistant) (*vapi.Assistant, error)
	DeleteAssistant(ctx context.Context, id string) error

	ListQueryTools(ctx context.Context) ([]vapi.Tool, error)
	DeleteTool(ctx context.Context, id string) error
	UploadFile(ctx context.Context, name, contentType string, data []byte) (*vapi.File, error)
	DeleteFile(ctx context.Context, id string) error

	CreateStructuredOutput(ctx context.Context, so *vapi.StructuredOutput) (*vapi.StructuredOutput, error)
	UpdateStructuredOutput(ctx context.Context, id string, so *vapi.StructuredOutput) (*vapi.StructuredOutput, error)
	DeleteStructuredOutput(ctx context.Context, id string) error

	SetPhoneNumberAssistant(ctx context.Context, id, assistantID string) error
}

// Syncer reconciles an agent's knowledge base after its documents change.
type Syncer interface {
	Sync(ctx context.Context, agentID uuid.UUID, assistantID string) error
}

// WebhookSender posts one event to an agent's webhook endpoint.
type WebhookSender interface {
	Deliver(ctx context.Context, t webhook.Target, d webhook.Delivery) (*webhook.Result, error)
}

type Config struct {
	ModelProvider  string
	DefaultModel   string
	VoiceProvider  string
	DefaultVoice   string
	ServerURL      string
	ServerSecret   string
	MaxUploadBytes int64
	SignedURLTTL   time.Duration
}

type Service struct {
	store    Store
	platform Platform
	files    storage.Storage
	kb       Syncer
	hooks    WebhookSender
	cfg      Config
}

func NewService(store Store, platform Platform, files storage.Storage, kb Syncer, hooks WebhookSender, cfg Config) *Service {
	if cfg.ModelProvider == "" {
		cfg.ModelProvider = "openai"
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}
	return &Service{
		store:    store,
		platform: platform,
		files:    files,
		kb:       kb,
		hooks:    hooks,
		cfg:      cfg,
	}
}

type CreateRequest struct {
	Name           string                `json:"name"`
	FirstMessage   string                `json:"first_message"`
	SystemPrompt   string                `json:"system_prompt"`
	VoiceID        string                `json:"voice_id"`
	AdvancedConfig models.AdvancedConfig `json:"advanced_config"`
}

// UpdateRequest changes only the fields that are present.
type UpdateRequest struct {
	Name           *string                `json:"name"`
	FirstMessage   *string                `json:"first_message"`
	SystemPrompt   *string                `json:"system_prompt"`
	VoiceID        *string                `json:"voice_id"`
	AdvancedConfig *models.AdvancedConfig `json:"advanced_config"`
}

func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]models.Agent, error) {
	return s.store.List(ctx, orgID)
}

func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Agent, error) {
	return s.store.Get(ctx, orgID, id)
}

// Create registers the assistant on the voice platform first and removes it
// again if the agent row cannot be written.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, req CreateRequest) (*models.Agent, error) {
	a := &models.Agent{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           strings.TrimSpace(req.Name),
		FirstMessage:   req.FirstMessage,
		SystemPrompt:   prompt.StripKnowledgeBlock(prompt.StripHidden(req.SystemPrompt)),
		VoiceID:        req.VoiceID,
		AdvancedConfig: req.AdvancedConfig,
	}
	if a.VoiceID == "" {
		a.VoiceID = s.cfg.DefaultVoice
	}
	if err := validate(a); err != nil {
		return nil, err
	}

	created, err := s.platform.CreateAssistant(ctx, s.assistantFor(a, []string{}))
	if err != nil {
		return nil, fmt.Errorf("create assistant: %w: %w", models.ErrUpstream, err)
	}
	a.VapiAssistantID = created.ID

	if err := s.store.Insert(ctx, a); err != nil {
		if derr := s.platform.DeleteAssistant(context.WithoutCancel(ctx), created.ID); derr != nil {
			slog.Warn("orphaned assistant after failed insert", "assistant_id", created.ID, "error", derr)
		}
		return nil, err
	}

	slog.Info("agent created", "organization_id", orgID, "agent_id", a.ID, "assistant_id", a.VapiAssistantID)
	return a, nil
}

// Update persists the change and then pushes the whole assistant. The
// knowledge-base block is owned by the synchronizer, so an edited prompt
// keeps the block it had before.
func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, req UpdateRequest) (*models.Agent, error) {
	a, err := s.store.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		a.Name = strings.TrimSpace(*req.Name)
	}
	if req.FirstMessage != nil {
		a.FirstMessage = *req.FirstMessage
	}
	if req.VoiceID != nil {
		a.VoiceID = *req.VoiceID
	}
	if req.AdvancedConfig != nil {
		a.AdvancedConfig = *req.AdvancedConfig
	}
	if req.SystemPrompt != nil {
		visible := prompt.StripKnowledgeBlock(prompt.StripHidden(*req.SystemPrompt))
		if instr, ok := prompt.KnowledgeBlock(a.SystemPrompt); ok {
			visible = prompt.AppendKnowledgeBlock(visible, instr)
		}
		a.SystemPrompt = visible
	}
	if err := validate(a); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, a); err != nil {
		return nil, err
	}

	if a.VapiAssistantID != "" {
		current, err := s.platform.GetAssistant(ctx, a.VapiAssistantID)
		if err != nil {
			return nil, fmt.Errorf("fetch assistant: %w: %w", models.ErrUpstream, err)
		}
		var toolIDs []string
		if current.Model != nil {
			toolIDs = current.Model.ToolIDs
		}
		if _, err := s.platform.UpdateAssistant(ctx, a.VapiAssistantID, s.assistantFor(a, toolIDs)); err != nil {
			return nil, fmt.Errorf("push assistant: %w: %w", models.ErrUpstream, err)
		}
	}
	return a, nil
}

// Delete removes the agent and everything it owns. External cleanup is best
// effort; only the row deletion can fail the call.
func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	a, err := s.store.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	log := slog.With("organization_id", orgID, "agent_id", id)

	if tools, err := s.platform.ListQueryTools(ctx); err != nil {
		log.Warn("list tools failed", "error", err)
	} else {
		name := knowledgebase.ToolName(id)
		for _, t := range tools {
			if t.Function != nil && t.Function.Name == name {
				if err := s.platform.DeleteTool(ctx, t.ID); err != nil && !vapi.IsNotFound(err) {
					log.Warn("delete tool failed", "tool_id", t.ID, "error", err)
				}
			}
		}
	}

	files, err := s.store.ListFiles(ctx, id)
	if err != nil {
		log.Warn("list files failed", "error", err)
	}
	for _, f := range files {
		s.removeFileObjects(ctx, &f)
	}

	numbers, err := s.store.BoundNumbers(ctx, orgID, id)
	if err != nil {
		log.Warn("list bound numbers failed", "error", err)
	}
	for _, n := range numbers {
		if err := s.platform.SetPhoneNumberAssistant(ctx, n, ""); err != nil {
			log.Warn("unbind phone number failed", "vapi_phone_number_id", n, "error", err)
		}
	}

	if a.StructuredOutputID != nil {
		if err := s.platform.DeleteStructuredOutput(ctx, *a.StructuredOutputID); err != nil && !vapi.IsNotFound(err) {
			log.Warn("delete structured output failed", "error", err)
		}
	}
	if a.VapiAssistantID != "" {
		if err := s.platform.DeleteAssistant(ctx, a.VapiAssistantID); err != nil && !vapi.IsNotFound(err) {
			log.Warn("delete assistant failed", "assistant_id", a.VapiAssistantID, "error", err)
		}
	}

	if err := s.store.Delete(ctx, orgID, id); err != nil {
		return err
	}
	log.Info("agent deleted", "files", len(files), "numbers", len(numbers))
	return nil
}

type StructuredOutputRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

// SetStructuredOutput creates or replaces the schema extracted from every
// call and attaches it to the assistant's artifact plan.
func (s *Service) SetStructuredOutput(ctx context.Context, orgID, id uuid.UUID, req StructuredOutputRequest) (*models.Agent, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("structured output name is required: %w", models.ErrInvalid)
	}
	if _, ok := req.Schema["type"]; !ok {
		return nil, fmt.Errorf("schema must declare a type: %w", models.ErrInvalid)
	}
	a, err := s.store.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	so := &vapi.StructuredOutput{Name: req.Name, Description: req.Description, Schema: req.Schema}
	var out *vapi.StructuredOutput
	if a.StructuredOutputID != nil {
		out, err = s.platform.UpdateStructuredOutput(ctx, *a.StructuredOutputID, so)
	} else {
		out, err = s.platform.CreateStructuredOutput(ctx, so)
	}
	if err != nil {
		return nil, fmt.Errorf("save structured output: %w: %w", models.ErrUpstream, err)
	}
	if out.ID == "" && a.StructuredOutputID != nil {
		out.ID = *a.StructuredOutputID
	}

	if _, err := s.platform.UpdateAssistant(ctx, a.VapiAssistantID, &vapi.Assistant{
		ArtifactPlan: &vapi.ArtifactPlan{StructuredOutputIDs: []string{out.ID}},
	}); err != nil {
		return nil, fmt.Errorf("attach structured output: %w: %w", models.ErrUpstream, err)
	}

	if err := s.store.SetStructuredOutput(ctx, orgID, id, &out.ID); err != nil {
		return nil, err
	}
	a.StructuredOutputID = &out.ID
	return a, nil
}

func (s *Service) ClearStructuredOutput(ctx context.Context, orgID, id uuid.UUID) error {
	a, err := s.store.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if a.StructuredOutputID == nil {
		return nil
	}

	if _, err := s.platform.UpdateAssistant(ctx, a.VapiAssistantID, &vapi.Assistant{
		ArtifactPlan: &vapi.ArtifactPlan{StructuredOutputIDs: []string{}},
	}); err != nil {
		return fmt.Errorf("detach structured output: %w: %w", models.ErrUpstream, err)
	}
	if err := s.platform.DeleteStructuredOutput(ctx, *a.StructuredOutputID); err != nil && !vapi.IsNotFound(err) {
		slog.Warn("delete structured output failed", "agent_id", id, "error", err)
	}
	return s.store.SetStructuredOutput(ctx, orgID, id, nil)
}

type TestWebhookResult struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Response   string `json:"response,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TestWebhook delivers a sample event synchronously. Endpoint failures are
// reported in the result rather than as an error.
func (s *Service) TestWebhook(ctx context.Context, orgID, id uuid.UUID) (*TestWebhookResult, error) {
	a, err := s.store.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	target := webhook.TargetOf(a)
	if target.URL == "" {
		return nil, fmt.Errorf("agent has no webhook url: %w", models.ErrInvalid)
	}

	sample, _ := json.Marshal(map[string]any{
		"message":    "This is a test event from your voice agent dashboard.",
		"agent_name": a.Name,
	})
	res, err := s.hooks.Deliver(ctx, target, webhook.Delivery{
		Event:          webhook.EventTest,
		AgentID:        a.ID,
		OrganizationID: a.OrganizationID,
		Data:           sample,
	})

	out := &TestWebhookResult{Success: err == nil}
	if res != nil {
		out.StatusCode = res.StatusCode
		out.DurationMs = res.DurationMs
		out.Response = res.ResponseBody
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out, nil
}

func (s *Service) assistantFor(a *models.Agent, toolIDs []string) *vapi.Assistant {
	cfg := a.AdvancedConfig

	model := &vapi.Model{
		Provider:    s.cfg.ModelProvider,
		Model:       s.cfg.DefaultModel,
		Messages:    []vapi.Message{{Role: "system", Content: prompt.RenderExternal(a.SystemPrompt)}},
		ToolIDs:     toolIDs,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	if cfg.ModelProvider != "" {
		model.Provider = cfg.ModelProvider
	}
	if cfg.Model != "" {
		model.Model = cfg.Model
	}
	if model.ToolIDs == nil {
		model.ToolIDs = []string{}
	}

	voice := &vapi.Voice{Provider: s.cfg.VoiceProvider, VoiceID: a.VoiceID}
	if cfg.VoiceProvider != "" {
		voice.Provider = cfg.VoiceProvider
	}

	out := &vapi.Assistant{
		Name:               a.Name,
		FirstMessage:       a.FirstMessage,
		Model:              model,
		Voice:              voice,
		MaxDurationSeconds: cfg.MaxDurationSeconds,
		EndCallPhrases:     cfg.EndCallPhrases,
		Metadata: map[string]string{
			"agent_id":        a.ID.String(),
			"organization_id": a.OrganizationID.String(),
		},
	}
	if s.cfg.ServerURL != "" {
		out.Server = &vapi.Server{URL: s.cfg.ServerURL, Secret: s.cfg.ServerSecret}
	}
	if a.StructuredOutputID != nil {
		out.ArtifactPlan = &vapi.ArtifactPlan{StructuredOutputIDs: []string{*a.StructuredOutputID}}
	}
	return out
}

func validate(a *models.Agent) error {
	if a.Name == "" {
		return fmt.Errorf("name is required: %w", models.ErrInvalid)
	}
	if len(a.Name) > 120 {
		return fmt.Errorf("name is too long: %w", models.ErrInvalid)
	}
	cfg := a.AdvancedConfig
	if t := cfg.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("temperature must be between 0 and 2: %w", models.ErrInvalid)
	}
	if cfg.MaxTokens < 0 || cfg.MaxDurationSeconds < 0 {
		return fmt.Errorf("limits must not be negative: %w", models.ErrInvalid)
	}
	if cfg.WebhookURL != "" {
		u, err := url.Parse(cfg.WebhookURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return fmt.Errorf("webhook url must be an absolute http(s) url: %w", models.ErrInvalid)
		}
	}
	return nil
}
