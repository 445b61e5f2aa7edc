package knowledgebase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/nikhilbhutani/voiceagents/internal/prompt"
	"github.com/nikhilbhutani/voiceagents/internal/vapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	files   []models.AgentFile
	name    string
	prompt  string
	updates int
}

func (f *fakeStore) ListFiles(context.Context, uuid.UUID) ([]models.AgentFile, error) {
	return f.files, nil
}

func (f *fakeStore) GetPrompt(context.Context, uuid.UUID) (string, string, error) {
	return f.name, f.prompt, nil
}

func (f *fakeStore) UpdateSystemPrompt(_ context.Context, _ uuid.UUID, p string) error {
	f.updates++
	f.prompt = p
	return nil
}

type fakePlatform struct {
	assistant   *vapi.Assistant
	tools       []vapi.Tool
	getErr      error
	creates     int
	toolUpdates int
	pushes      int
}

func (f *fakePlatform) GetAssistant(context.Context, string) (*vapi.Assistant, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	a := *f.assistant
	return &a, nil
}

func (f *fakePlatform) UpdateAssistant(_ context.Context, _ string, a *vapi.Assistant) (*vapi.Assistant, error) {
	f.pushes++
	f.assistant.Model = a.Model
	return f.assistant, nil
}

func (f *fakePlatform) ListQueryTools(context.Context) ([]vapi.Tool, error) {
	return append([]vapi.Tool(nil), f.tools...), nil
}

func (f *fakePlatform) CreateTool(_ context.Context, t *vapi.Tool) (*vapi.Tool, error) {
	f.creates++
	created := *t
	created.ID = fmt.Sprintf("tool_%d", f.creates)
	f.tools = append(f.tools, created)
	return &created, nil
}

func (f *fakePlatform) UpdateTool(_ context.Context, id string, t *vapi.Tool) (*vapi.Tool, error) {
	f.toolUpdates++
	for i := range f.tools {
		if f.tools[i].ID == id {
			f.tools[i].Function = t.Function
			f.tools[i].KnowledgeBases = t.KnowledgeBases
			out := f.tools[i]
			return &out, nil
		}
	}
	return nil, errors.New("no such tool")
}

type fakeDescriber struct {
	desc  Description
	err   error
	calls int
}

func (f *fakeDescriber) Describe(context.Context, string, []models.AgentFile) (Description, error) {
	f.calls++
	return f.desc, f.err
}

func newFixture(initialPrompt string) (*Synchronizer, *fakeStore, *fakePlatform, *fakeDescriber) {
	store := &fakeStore{name: "Front desk", prompt: initialPrompt}
	platform := &fakePlatform{assistant: &vapi.Assistant{
		ID: "asst_1",
		Model: &vapi.Model{
			Provider: "openai",
			Model:    "gpt-4o",
			ToolIDs:  []string{"transfer_tool"},
			Messages: []vapi.Message{{Role: "system", Content: prompt.RenderExternal(initialPrompt)}},
		},
	}}
	desc := &fakeDescriber{desc: Description{
		ToolDescription: "Clinic opening hours and prices.",
		Instruction:     "Search the clinic documents for hours and prices before answering.",
	}}
	return NewSynchronizer(store, platform, desc, "gpt-4o"), store, platform, desc
}

func file(vapiID, name string) models.AgentFile {
	return models.AgentFile{ID: uuid.New(), FileName: name, VapiFileID: vapiID}
}

func TestToolName(t *testing.T) {
	id := uuid.MustParse("6F9619FF-8B86-D011-B42D-00C04FC964FF")
	assert.Equal(t, "kb_6f9619ff_8b86_d011_b42d_00c04fc964ff", ToolName(id))
}

func TestSync_AttachesToolAndBlock(t *testing.T) {
	const base = "You are the front desk of a dental clinic."
	s, store, platform, _ := newFixture(base)
	store.files = []models.AgentFile{file("file_1", "hours.pdf")}
	agentID := uuid.New()

	require.NoError(t, s.Sync(t.Context(), agentID, "asst_1"))

	assert.Equal(t, 1, platform.creates)
	require.Len(t, platform.tools, 1)
	tool := platform.tools[0]
	assert.Equal(t, vapi.ToolTypeQuery, tool.Type)
	assert.Equal(t, ToolName(agentID), tool.Function.Name)
	assert.Equal(t, []string{"file_1"}, tool.FileIDs())

	assert.Equal(t, 1, strings.Count(store.prompt, prompt.KnowledgeBaseHeader))
	assert.True(t, strings.HasPrefix(store.prompt, base))
	assert.NotContains(t, store.prompt, prompt.HiddenSuffix)

	model := platform.assistant.Model
	assert.Equal(t, []string{"transfer_tool", "tool_1"}, model.ToolIDs)
	assert.Equal(t, prompt.RenderExternal(store.prompt), model.SystemPrompt())
	assert.Equal(t, "gpt-4o", model.Model)
}

func TestSync_IsIdempotent(t *testing.T) {
	s, store, platform, desc := newFixture("Be brief.")
	store.files = []models.AgentFile{file("file_1", "menu.txt"), file("file_2", "faq.txt")}
	agentID := uuid.New()

	require.NoError(t, s.Sync(t.Context(), agentID, "asst_1"))
	first := store.prompt
	firstTools := append([]string(nil), platform.assistant.Model.ToolIDs...)

	require.NoError(t, s.Sync(t.Context(), agentID, "asst_1"))

	assert.Equal(t, first, store.prompt)
	assert.Equal(t, firstTools, platform.assistant.Model.ToolIDs)
	assert.Equal(t, 1, desc.calls)
	assert.Equal(t, 1, platform.creates)
	assert.Equal(t, 0, platform.toolUpdates)
	assert.Equal(t, 1, store.updates)
}

func TestSync_FileSetChangeUpdatesExistingTool(t *testing.T) {
	s, store, platform, desc := newFixture("Be brief.")
	store.files = []models.AgentFile{file("file_1", "menu.txt")}
	agentID := uuid.New()
	require.NoError(t, s.Sync(t.Context(), agentID, "asst_1"))

	store.files = append(store.files, file("file_2", "allergens.txt"))
	desc.desc.Instruction = "Check the menu and allergen list."
	require.NoError(t, s.Sync(t.Context(), agentID, "asst_1"))

	assert.Equal(t, 1, platform.creates)
	assert.Equal(t, 1, platform.toolUpdates)
	assert.ElementsMatch(t, []string{"file_1", "file_2"}, platform.tools[0].FileIDs())
	assert.Equal(t, []string{"transfer_tool", "tool_1"}, platform.assistant.Model.ToolIDs)

	instr, ok := prompt.KnowledgeBlock(store.prompt)
	require.True(t, ok)
	assert.Equal(t, "Check the menu and allergen list.", instr)
	assert.Equal(t, 1, strings.Count(store.prompt, prompt.KnowledgeBaseHeader))
}

func TestSync_DescriberFailureUsesDefaults(t *testing.T) {
	s, store, platform, desc := newFixture("")
	desc.err = errors.New("rate limited")
	store.files = []models.AgentFile{file("file_1", "policies.docx")}

	require.NoError(t, s.Sync(t.Context(), uuid.New(), "asst_1"))

	instr, ok := prompt.KnowledgeBlock(store.prompt)
	require.True(t, ok)
	assert.Equal(t, prompt.DefaultKnowledgeInstruction, instr)
	assert.Contains(t, platform.tools[0].Function.Description, "policies.docx")
}

func TestSync_NoFilesRestoresPromptAndDetachesTool(t *testing.T) {
	const base = "Greet callers warmly."
	s, store, platform, _ := newFixture(base)
	store.files = []models.AgentFile{file("file_1", "faq.txt")}
	agentID := uuid.New()
	require.NoError(t, s.Sync(t.Context(), agentID, "asst_1"))
	require.Contains(t, platform.assistant.Model.ToolIDs, "tool_1")

	store.files = nil
	require.NoError(t, s.Sync(t.Context(), agentID, "asst_1"))

	assert.Equal(t, base, store.prompt)
	assert.Equal(t, []string{"transfer_tool"}, platform.assistant.Model.ToolIDs)
	assert.Equal(t, prompt.RenderExternal(base), platform.assistant.Model.SystemPrompt())
}

func TestSync_NoFilesEmptyPrompt(t *testing.T) {
	s, store, platform, _ := newFixture("")
	platform.assistant.Model.ToolIDs = nil
	agentID := uuid.New()

	store.files = []models.AgentFile{file("file_1", "faq.txt")}
	require.NoError(t, s.Sync(t.Context(), agentID, "asst_1"))
	store.files = nil
	require.NoError(t, s.Sync(t.Context(), agentID, "asst_1"))

	assert.Equal(t, "", store.prompt)
	assert.NotNil(t, platform.assistant.Model.ToolIDs)
	assert.Empty(t, platform.assistant.Model.ToolIDs)
	assert.Equal(t, prompt.HiddenSuffix, platform.assistant.Model.SystemPrompt())
}

func TestSync_AssistantFetchFailureAborts(t *testing.T) {
	s, store, platform, desc := newFixture("Hi.")
	store.files = []models.AgentFile{file("file_1", "faq.txt")}
	platform.getErr = errors.New("503")

	err := s.Sync(t.Context(), uuid.New(), "asst_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUpstream)
	assert.Equal(t, 0, store.updates)
	assert.Equal(t, 0, desc.calls)
	assert.Equal(t, 0, platform.pushes)
}

func TestSync_DedupesToolIDs(t *testing.T) {
	s, store, platform, _ := newFixture("Hi.")
	agentID := uuid.New()
	platform.tools = []vapi.Tool{{
		ID:       "kb_tool",
		Type:     vapi.ToolTypeQuery,
		Function: &vapi.ToolFunction{Name: ToolName(agentID)},
	}}
	platform.assistant.Model.ToolIDs = []string{"kb_tool", "kb_tool", "other"}
	store.files = []models.AgentFile{file("file_1", "faq.txt")}

	require.NoError(t, s.Sync(t.Context(), agentID, "asst_1"))

	assert.Equal(t, []string{"kb_tool", "other"}, platform.assistant.Model.ToolIDs)
	assert.Equal(t, 0, platform.creates)
	assert.Equal(t, 1, platform.toolUpdates)
}
