package knowledgebase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/voiceagents/internal/llm"
	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/prompt"
	"github.com/nikhilbhutani/voiceagents/pkg/tokenizer"
)

const (
	maxExcerptTokens = 150
	maxPromptTokens  = 1500
)

// Description is what the voice platform's tool and the agent prompt say
// about an agent's documents.
type Description struct {
	ToolDescription string `json:"description"`
	Instruction     string `json:"instruction"`
}

type Describer interface {
	Describe(ctx context.Context, agentName string, files []models.AgentFile) (Description, error)
}

// DefaultDescription is used whenever generation is unavailable.
func DefaultDescription(files []models.AgentFile) Description {
	return Description{
		ToolDescription: fmt.Sprintf("Knowledge base with the following documents: %s. Use it to answer questions about their content.",
			strings.Join(fileNames(files), ", ")),
		Instruction: prompt.DefaultKnowledgeInstruction,
	}
}

// LLMDescriber asks a language model for a short tool description and a
// prompt instruction tailored to the uploaded documents.
type LLMDescriber struct {
	gateway llm.Gateway
	model   string
}

func NewLLMDescriber(gateway llm.Gateway, model string) *LLMDescriber {
	return &LLMDescriber{gateway: gateway, model: model}
}

const describeSystemPrompt = `You write configuration text for a phone assistant's document search tool.
Given the assistant name and its documents, answer with a JSON object with two string fields:
"description": one or two sentences describing what the documents contain, used by the model to decide when to search them;
"instruction": one short paragraph telling the assistant when and how to use the search tool during a call.
Do not invent facts that are not suggested by the file names or excerpts.`

func (d *LLMDescriber) Describe(ctx context.Context, agentName string, files []models.AgentFile) (Description, error) {
	if d == nil || d.gateway == nil {
		return Description{}, errors.New("no language model configured")
	}

	c, err := d.gateway.Complete(ctx, llm.Request{
		Model:       d.model,
		System:      describeSystemPrompt,
		Prompt:      buildDescribeInput(agentName, files),
		Temperature: 0.2,
		MaxTokens:   400,
		JSON:        true,
	})
	if err != nil {
		return Description{}, fmt.Errorf("describe documents: %w", err)
	}
	slog.Debug("generated knowledge-base description",
		"provider", c.Provider,
		"model", c.Model,
		"cost_usd", llm.Spend(c),
		"latency_ms", c.Latency.Milliseconds(),
	)
	return parseDescription(c.Text)
}

func buildDescribeInput(agentName string, files []models.AgentFile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assistant: %s\nDocuments:\n", agentName)
	for _, f := range files {
		fmt.Fprintf(&b, "- %s\n", f.FileName)
		if ex := strings.TrimSpace(f.Excerpt); ex != "" {
			ex = tokenizer.Truncate(ex, maxExcerptTokens)
			fmt.Fprintf(&b, "  excerpt: %s\n", strings.Join(strings.Fields(ex), " "))
		}
		if tokenizer.CountTokens(b.String()) > maxPromptTokens {
			break
		}
	}
	return b.String()
}

func parseDescription(content string) (Description, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var d Description
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &d); err != nil {
		return Description{}, fmt.Errorf("parse description: %w", err)
	}
	d.ToolDescription = strings.TrimSpace(d.ToolDescription)
	d.Instruction = strings.TrimSpace(d.Instruction)
	if d.ToolDescription == "" || d.Instruction == "" {
		return Description{}, errors.New("parse description: empty field")
	}
	return d, nil
}

func fileNames(files []models.AgentFile) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.FileName
	}
	return names
}
