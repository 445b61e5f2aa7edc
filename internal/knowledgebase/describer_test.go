package knowledgebase

import (
	"context"
	"strings"
	"testing"

	"github.com/nikhilbhutani/voiceagents/internal/llm"
	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	content string
	err     error
	last    llm.Request
}

func (f *fakeGateway) Complete(_ context.Context, req llm.Request) (*llm.Completion, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{Text: f.content}, nil
}

func TestLLMDescriber_Describe(t *testing.T) {
	gw := &fakeGateway{content: "```json\n{\"description\":\"Menu and hours.\",\"instruction\":\"Look up the menu.\"}\n```"}
	d := NewLLMDescriber(gw, "gpt-4o-mini")

	files := []models.AgentFile{
		{FileName: "menu.pdf", Excerpt: "Margherita 12\n\nMarinara 10"},
		{FileName: "hours.txt"},
	}
	got, err := d.Describe(t.Context(), "Pizza line", files)
	require.NoError(t, err)
	assert.Equal(t, "Menu and hours.", got.ToolDescription)
	assert.Equal(t, "Look up the menu.", got.Instruction)

	assert.True(t, gw.last.JSON)
	assert.Equal(t, "gpt-4o-mini", gw.last.Model)
	user := gw.last.Prompt
	assert.Contains(t, user, "Pizza line")
	assert.Contains(t, user, "- menu.pdf")
	assert.Contains(t, user, "excerpt: Margherita 12 Marinara 10")
	assert.Contains(t, user, "- hours.txt")
}

func TestLLMDescriber_Errors(t *testing.T) {
	var nilDescriber *LLMDescriber
	_, err := nilDescriber.Describe(t.Context(), "a", nil)
	assert.Error(t, err)

	_, err = NewLLMDescriber(nil, "").Describe(t.Context(), "a", nil)
	assert.Error(t, err)

	_, err = NewLLMDescriber(&fakeGateway{content: "not json"}, "").Describe(t.Context(), "a", nil)
	assert.ErrorContains(t, err, "parse description")

	_, err = NewLLMDescriber(&fakeGateway{content: `{"description":"x","instruction":" "}`}, "").Describe(t.Context(), "a", nil)
	assert.ErrorContains(t, err, "empty field")
}

func TestBuildDescribeInput_TruncatesExcerpts(t *testing.T) {
	long := strings.Repeat("a", maxExcerptTokens*20)
	in := buildDescribeInput("x", []models.AgentFile{{FileName: "big.txt", Excerpt: long}})
	assert.Less(t, len(in), maxExcerptTokens*4+100)
}

func TestDefaultDescription(t *testing.T) {
	d := DefaultDescription([]models.AgentFile{{FileName: "a.pdf"}, {FileName: "b.txt"}})
	assert.Contains(t, d.ToolDescription, "a.pdf, b.txt")
	assert.NotEmpty(t, d.Instruction)
}
