// Package knowledgebase keeps an agent's voice-platform query tool and the
// knowledge-base block of its prompt consistent with its uploaded documents.
package knowledgebase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/prompt"
	"github.com/nikhilbhutani/voiceagents/internal/vapi"
)

// Platform is the subset of the voice-platform client used by Sync.
type Platform interface {
	GetAssistant(ctx context.Context, id string) (*vapi.Assistant, error)
	UpdateAssistant(ctx context.Context, id string, a *vapi.Assistant) (*vapi.Assistant, error)
	ListQueryTools(ctx context.Context) ([]vapi.Tool, error)
	CreateTool(ctx context.Context, t *vapi.Tool) (*vapi.Tool, error)
	UpdateTool(ctx context.Context, id string, t *vapi.Tool) (*vapi.Tool, error)
}

type Synchronizer struct {
	store        Store
	platform     Platform
	describer    Describer
	defaultModel string
}

func NewSynchronizer(store Store, platform Platform, describer Describer, defaultModel string) *Synchronizer {
	return &Synchronizer{
		store:        store,
		platform:     platform,
		describer:    describer,
		defaultModel: defaultModel,
	}
}

// ToolName is the deterministic name of an agent's query tool.
func ToolName(agentID uuid.UUID) string {
	id := strings.ToLower(agentID.String())
	var b strings.Builder
	b.WriteString("kb_")
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Sync reconciles the agent's tool and prompt with its current files.
//
// The database write and the platform write are independent: if pushing to
// the platform fails after the prompt was persisted, the error is returned
// and the next document change retries implicitly.
func (s *Synchronizer) Sync(ctx context.Context, agentID uuid.UUID, assistantID string) error {
	log := slog.With("agent_id", agentID, "assistant_id", assistantID)

	result, err := s.sync(ctx, agentID, assistantID)
	if err != nil {
		syncTotal.WithLabelValues("error").Inc()
		log.Error("knowledge base sync failed", "error", err)
		return err
	}
	syncTotal.WithLabelValues(result).Inc()
	log.Info("knowledge base synced", "result", result)
	return nil
}

func (s *Synchronizer) sync(ctx context.Context, agentID uuid.UUID, assistantID string) (string, error) {
	files, err := s.store.ListFiles(ctx, agentID)
	if err != nil {
		return "", err
	}
	name, stored, err := s.store.GetPrompt(ctx, agentID)
	if err != nil {
		return "", err
	}

	assistant, err := s.platform.GetAssistant(ctx, assistantID)
	if err != nil {
		return "", fmt.Errorf("fetch assistant: %w: %w", models.ErrUpstream, err)
	}
	tools, err := s.platform.ListQueryTools(ctx)
	if err != nil {
		return "", fmt.Errorf("list tools: %w: %w", models.ErrUpstream, err)
	}

	toolName := ToolName(agentID)
	var existing *vapi.Tool
	for i := range tools {
		if tools[i].Function != nil && tools[i].Function.Name == toolName {
			existing = &tools[i]
			break
		}
	}

	current := currentToolIDs(assistant)

	if len(files) == 0 {
		cleaned := prompt.StripKnowledgeBlock(stored)
		if err := s.persist(ctx, agentID, stored, cleaned); err != nil {
			return "", err
		}
		toolIDs := current
		if existing != nil {
			toolIDs = slices.DeleteFunc(slices.Clone(current), func(id string) bool { return id == existing.ID })
		}
		if err := s.push(ctx, assistantID, assistant, cleaned, toolIDs); err != nil {
			return "", err
		}
		return "detached", nil
	}

	fileIDs := make([]string, len(files))
	for i, f := range files {
		fileIDs[i] = f.VapiFileID
	}

	result := "attached"
	var instruction string
	var tool *vapi.Tool

	if prev, ok := prompt.KnowledgeBlock(stored); ok && existing != nil && sameSet(existing.FileIDs(), fileIDs) {
		instruction = prev
		tool = existing
		result = "unchanged"
	} else {
		desc, err := s.describer.Describe(ctx, name, files)
		if err != nil {
			slog.Warn("tool description generation failed, using defaults", "agent_id", agentID, "error", err)
			describeTotal.WithLabelValues("fallback").Inc()
			desc = DefaultDescription(files)
		} else {
			describeTotal.WithLabelValues("generated").Inc()
		}
		instruction = desc.Instruction

		want := &vapi.Tool{
			Type: vapi.ToolTypeQuery,
			Function: &vapi.ToolFunction{
				Name:        toolName,
				Description: desc.ToolDescription,
			},
			KnowledgeBases: []vapi.KnowledgeBase{{
				Provider:    "google",
				Name:        toolName,
				Description: desc.ToolDescription,
				FileIDs:     fileIDs,
			}},
		}
		if existing == nil {
			tool, err = s.platform.CreateTool(ctx, want)
		} else {
			tool, err = s.platform.UpdateTool(ctx, existing.ID, want)
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", models.ErrUpstream, err)
		}
		if tool.ID == "" && existing != nil {
			tool.ID = existing.ID
		}
	}

	updated := prompt.AppendKnowledgeBlock(stored, instruction)
	if err := s.persist(ctx, agentID, stored, updated); err != nil {
		return "", err
	}

	toolIDs := append(slices.Clone(current), tool.ID)
	if err := s.push(ctx, assistantID, assistant, updated, dedupe(toolIDs)); err != nil {
		return "", err
	}
	return result, nil
}

func (s *Synchronizer) persist(ctx context.Context, agentID uuid.UUID, before, after string) error {
	if before == after {
		return nil
	}
	return s.store.UpdateSystemPrompt(ctx, agentID, after)
}

// push replaces the assistant's model with the rendered prompt and tool ids,
// keeping provider settings and any non-system messages.
func (s *Synchronizer) push(ctx context.Context, assistantID string, a *vapi.Assistant, visible string, toolIDs []string) error {
	model := vapi.Model{Provider: "openai", Model: s.defaultModel}
	if a.Model != nil {
		model = *a.Model
	}

	msgs := []vapi.Message{{Role: "system", Content: prompt.RenderExternal(visible)}}
	for _, m := range model.Messages {
		if m.Role != "system" {
			msgs = append(msgs, m)
		}
	}
	model.Messages = msgs
	model.ToolIDs = toolIDs
	if model.ToolIDs == nil {
		model.ToolIDs = []string{}
	}

	if _, err := s.platform.UpdateAssistant(ctx, assistantID, &vapi.Assistant{Model: &model}); err != nil {
		return fmt.Errorf("push assistant: %w: %w", models.ErrUpstream, err)
	}
	return nil
}

func currentToolIDs(a *vapi.Assistant) []string {
	if a.Model == nil {
		return nil
	}
	return a.Model.ToolIDs
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := slices.Clone(a)
	y := slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
